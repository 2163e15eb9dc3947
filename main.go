package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"thumbsmith/internal/batch"
	"thumbsmith/internal/filesystem"
	"thumbsmith/internal/history"
	"thumbsmith/internal/logging"
	"thumbsmith/internal/media"
	"thumbsmith/internal/memory"
	"thumbsmith/internal/metrics"
	"thumbsmith/internal/middleware"
	"thumbsmith/internal/progress"
	"thumbsmith/internal/startup"
	"thumbsmith/internal/workers"
)

// Process exit codes.
const (
	exitOK          = 0
	exitConfig      = 1
	exitPartial     = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	code := exitCode(err)
	if err != nil && code != exitInterrupted {
		fmt.Fprintln(stderr, err)
	}
	return code
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thumbsmith [flags] WIDTH HEIGHT SOURCE_DIR DEST_DIR",
		Short: "Create fixed-size thumbnails for every image in a directory",
		Long: `thumbsmith reads every jpg, jpeg, png and gif file directly inside SOURCE_DIR,
turns it upright according to its EXIF orientation, center-crops it to the
WIDTH:HEIGHT aspect ratio, resizes it with a Lanczos filter and writes it to
DEST_DIR under the same name. WIDTH and HEIGHT must be between 100 and 200
pixels and WIDTH must not be smaller than HEIGHT.

Exit status is 0 when every file succeeded, 1 for configuration or scan
errors, 2 when some files failed and 130 when interrupted.`,
		Version:       startup.VersionString(),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := startup.NewViper(cmd.Flags())
			if err != nil {
				return err
			}

			cfg, err := startup.LoadConfig(v, args)
			if err != nil {
				return err
			}
			if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
				logging.SetLevel(lvl)
			}

			return run(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	startup.RegisterFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg *startup.Config, stdout, stderr io.Writer) error {
	startTime := time.Now()

	startup.PrintBanner(stderr)
	startup.LogSystemInfo()
	startup.LogConfig(cfg)

	memResult := memory.ConfigureFromEnv()
	startup.LogMemoryConfig(memResult)

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"source": cfg.SourceDir,
		"dest":   cfg.DestDir,
	}))

	var monitor *memory.Monitor
	if memResult.Configured {
		monitor = memory.NewMonitor(memory.DefaultConfig())
		monitor.Start()
		defer monitor.Stop()
	}

	decoder, err := media.NewDecoder(cfg.Decoder)
	if err != nil {
		return &startup.ConfigError{Message: "Invalid decoder", Err: err}
	}
	if decoder.Name() == "vips" {
		vipsErr := media.InitVips(workers.ForCPU(workers.DefaultLimit))
		startup.LogVipsInit(vipsErr)
		if vipsErr == nil {
			defer media.ShutdownVips()
		}
	}

	transformer := media.NewTransformer(cfg.Spec)
	transformer.Decoder = decoder
	transformer.Mode = cfg.Orientation
	transformer.JPEGQuality = cfg.JPEGQuality

	if cfg.MetricsAddr != "" {
		opts := metrics.RouterOptions{
			Version:   startup.Version,
			StartTime: startTime,
			Gatherer:  prometheus.DefaultGatherer,
			Running:   batch.Running,
		}
		if monitor != nil {
			opts.Memory = monitor
		}
		router := metrics.NewRouter(opts)
		handler := middleware.Logger(middleware.DefaultLoggingConfig())(middleware.Metrics()(router))
		srv, err := metrics.StartServer(cfg.MetricsAddr, handler)
		if err != nil {
			return &startup.ConfigError{Message: "Failed to start metrics server", Err: err}
		}
		startup.LogMetricsServer(srv.Addr())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logging.Warn("Metrics server shutdown: %v", err)
			}
		}()
	}

	observers := []batch.Observer{progress.New(stdout)}

	var recorder *history.Recorder
	if cfg.HistoryPath != "" {
		store, err := history.Open(ctx, cfg.HistoryPath)
		if err != nil {
			return &startup.ConfigError{Message: "Failed to open run history", Err: err}
		}
		defer store.Close()

		recorder = store.NewRecorder(ctx, cfg.SourceDir, cfg.DestDir, cfg.Spec)
		observers = append(observers, recorder)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			startup.LogShutdownInitiated("interrupt")
		case <-done:
		}
	}()

	report, err := batch.ProcessDirectory(ctx, batch.Config{
		Spec:        cfg.Spec,
		SourceDir:   cfg.SourceDir,
		DestDir:     cfg.DestDir,
		Workers:     cfg.Workers,
		Thumbnailer: transformer,
		Monitor:     monitor,
		Observers:   observers,
	})

	if recorder != nil {
		if herr := recorder.Finish(report); herr == nil && report != nil {
			startup.LogShutdownStepComplete("Run recorded in history")
		}
	}

	if report != nil {
		startup.LogBatchSummary(report)
	}
	if err != nil {
		return err
	}
	return report.Err()
}

// exitCode maps the outcome of a run to the process exit status. Anything
// that is neither an interruption nor a partial failure (a *ConfigError, a
// *media.ScanError or a flag parsing error) is a configuration error.
func exitCode(err error) int {
	var batchErr *batch.BatchError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.As(err, &batchErr):
		return exitPartial
	default:
		return exitConfig
	}
}
