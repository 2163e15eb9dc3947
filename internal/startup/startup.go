package startup

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"thumbsmith/internal/batch"
	"thumbsmith/internal/logging"
	"thumbsmith/internal/memory"
	"thumbsmith/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const rule = "------------------------------------------------------------"

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// VersionString is the one-line form used by --version.
func VersionString() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", Version, Commit, BuildTime, GoVersion)
}

func section(title string) {
	logging.Info("")
	logging.Info("%s", rule)
	logging.Info("%s", title)
	logging.Info("%s", rule)
}

// PrintBanner writes the banner to w and logs build information.
func PrintBanner(w io.Writer) {
	banner := `
------------------------------------------------------------
  _   _                     _                    _ _   _
 | |_| |__  _   _ _ __ ___ | |__  ___ _ __ ___ (_) |_| |__
 | __| '_ \| | | | '_ ' _ \| '_ \/ __| '_ ' _ \| | __| '_ \
 | |_| | | | |_| | | | | | | |_) \__ \ | | | | | | |_| | | |
  \__|_| |_|\__,_|_| |_| |_|_.__/|___/_| |_| |_|_|\__|_| |_|

------------------------------------------------------------`
	fmt.Fprintln(w, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

// LogSystemInfo logs runtime and CPU information.
func LogSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}

// LogConfig logs the effective configuration.
func LogConfig(cfg *Config) {
	section("CONFIGURATION")
	logging.Info("  Thumbnail size:  %dx%d", cfg.Spec.Width, cfg.Spec.Height)
	logging.Info("  Source dir:      %s", cfg.SourceDir)
	logging.Info("  Dest dir:        %s", cfg.DestDir)
	if cfg.Workers > 0 {
		logging.Info("  Workers:         %d", cfg.Workers)
	} else {
		logging.Info("  Workers:         auto (up to %d)", workers.Resolve(0, 0))
	}
	logging.Info("  Orientation:     %s", cfg.Orientation)
	logging.Info("  Decoder:         %s", cfg.Decoder)
	logging.Info("  JPEG quality:    %d", cfg.JPEGQuality)
	logging.Info("  Metrics:         %s", orDisabled(cfg.MetricsAddr))
	logging.Info("  History:         %s", orDisabled(cfg.HistoryPath))
	if cfg.ConfigFile != "" {
		logging.Info("  Config file:     %s", cfg.ConfigFile)
	}
}

// LogMemoryConfig logs memory limit configuration.
func LogMemoryConfig(result memory.ConfigResult) {
	section("MEMORY CONFIGURATION")
	switch result.Source {
	case "MEMORY_LIMIT":
		logging.Info("  Container limit: %d MiB", result.ContainerLimit/(1<<20))
		logging.Info("  GOMEMLIMIT:      %d MiB (%.0f%%)", result.GoMemLimit/(1<<20), result.Ratio*100)
	case "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT:      %d MiB (from environment)", result.GoMemLimit/(1<<20))
	default:
		logging.Info("  No memory limit configured (set MEMORY_LIMIT or GOMEMLIMIT)")
		logging.Info("  Memory backpressure: DISABLED")
	}
}

// LogVipsInit logs the outcome of libvips startup.
func LogVipsInit(err error) {
	section("DECODER INITIALIZATION")
	if err != nil {
		logging.Warn("  libvips unavailable: %v", err)
		logging.Warn("  Falling back to the imaging decoder")
		return
	}
	logging.Info("  [OK] libvips initialized")
}

// LogMetricsServer logs the metrics endpoint.
func LogMetricsServer(addr string) {
	logging.Info("  [OK] Metrics available at http://%s/metrics", addr)
}

// LogBatchSummary logs the outcome of a batch.
func LogBatchSummary(r *batch.Report) {
	section("BATCH COMPLETE")
	logging.Info("  Run ID:          %s", r.RunID)
	logging.Info("  Status:          %s", r.Status())
	logging.Info("  Files:           %d", r.Total)
	logging.Info("  Processed:       %d", len(r.Processed))
	logging.Info("  Failed:          %d", len(r.Failures))
	logging.Info("  Skipped:         %d", len(r.Skipped))
	logging.Info("  Duration:        %v", r.Duration().Round(time.Millisecond))

	for _, f := range r.Failures {
		logging.Warn("    %s: %v", f.Filename, f.Err)
	}
	logging.Info("%s", rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
	logging.Info("  Waiting for running thumbnails to finish...")
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func orDisabled(s string) string {
	if s == "" {
		return "DISABLED"
	}
	return s
}
