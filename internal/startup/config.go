package startup

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"thumbsmith/internal/filesystem"
	"thumbsmith/internal/logging"
	"thumbsmith/internal/media"
)

// EnvPrefix prefixes every environment override, e.g. THUMBSMITH_WORKERS.
const EnvPrefix = "THUMBSMITH"

// Usage is returned when the positional arguments are missing.
const Usage = "Usage: thumbsmith width height source_dir dest_dir"

// Flag names. Each one is also read from THUMBSMITH_<NAME> (dashes become
// underscores) and from the config file under the same key.
const (
	FlagWorkers     = "workers"
	FlagOrientation = "orientation"
	FlagDecoder     = "decoder"
	FlagQuality     = "quality"
	FlagMetricsAddr = "metrics-addr"
	FlagHistory     = "history"
	FlagConfig      = "config"
	FlagLogLevel    = "log-level"
)

// Config holds the validated settings of one invocation.
type Config struct {
	Spec      media.Spec
	SourceDir string
	DestDir   string

	Workers     int
	Orientation media.OrientationMode
	Decoder     string
	JPEGQuality int
	MetricsAddr string
	HistoryPath string
	LogLevel    string
	ConfigFile  string
}

// ConfigError is a configuration rejected before any file is touched.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configError(msg string) error {
	return &ConfigError{Message: msg}
}

// RegisterFlags defines the optional flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.IntP(FlagWorkers, "w", 0, "number of concurrent workers (0 = 1.5 per CPU, capped at 16)")
	fs.String(FlagOrientation, "rotate", "EXIF orientation handling: rotate, full or none")
	fs.String(FlagDecoder, "imaging", "image decoder: imaging or vips")
	fs.IntP(FlagQuality, "q", media.DefaultJPEGQuality, "JPEG quality (1-100)")
	fs.String(FlagMetricsAddr, "", "serve Prometheus metrics on this address while running, e.g. :9090")
	fs.String(FlagHistory, "", "record runs in this SQLite database file")
	fs.StringP(FlagConfig, "c", "", "YAML config file")
	fs.String(FlagLogLevel, "", "log level: debug, info, warn or error (default from LOG_LEVEL)")
}

// NewViper returns a viper instance bound to fs and to THUMBSMITH_*
// environment variables.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}

// LoadConfig validates args (width, height, source dir, dest dir) and the
// flag, env and config file values held by v.
//
// Checks run in a fixed order and the first failure wins: argument count,
// numeric sizes, size bounds, landscape constraint, distinct directories,
// then directory existence.
func LoadConfig(v *viper.Viper, args []string) (*Config, error) {
	if path := v.GetString(FlagConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigError{Message: "failed to read config file " + path, Err: err}
		}
		logging.Debug("Loaded config file %s", v.ConfigFileUsed())
	}

	if len(args) != 4 {
		return nil, configError(Usage)
	}

	width, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return nil, configError("Width must be a number")
	}
	height, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return nil, configError("Height must be a number")
	}

	spec, err := media.NewSpec(width, height, media.DefaultBounds)
	if err != nil {
		var specErr *media.SpecError
		if errors.As(err, &specErr) {
			return nil, configError(specErr.Message)
		}
		return nil, err
	}

	sourceDir, destDir := args[2], args[3]
	if filepath.Clean(sourceDir) == filepath.Clean(destDir) {
		return nil, configError("Source dir and dest dir must be different.")
	}
	if !isDir(sourceDir) {
		return nil, configError("Source dir must exist.")
	}
	if !isDir(destDir) {
		return nil, configError("Dest dir must exist.")
	}

	cfg := &Config{
		Spec:        spec,
		SourceDir:   sourceDir,
		DestDir:     destDir,
		Workers:     v.GetInt(FlagWorkers),
		Decoder:     strings.ToLower(strings.TrimSpace(v.GetString(FlagDecoder))),
		JPEGQuality: v.GetInt(FlagQuality),
		MetricsAddr: v.GetString(FlagMetricsAddr),
		HistoryPath: v.GetString(FlagHistory),
		LogLevel:    v.GetString(FlagLogLevel),
		ConfigFile:  v.ConfigFileUsed(),
	}

	if cfg.Workers < 0 {
		return nil, configError("Workers must not be negative.")
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return nil, configError("Quality must be between 1 and 100.")
	}

	mode, err := media.ParseOrientationMode(v.GetString(FlagOrientation))
	if err != nil {
		return nil, &ConfigError{Message: "Invalid orientation mode", Err: err}
	}
	cfg.Orientation = mode

	if _, err := media.NewDecoder(cfg.Decoder); err != nil {
		return nil, &ConfigError{Message: "Invalid decoder", Err: err}
	}

	if cfg.LogLevel != "" {
		if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
			return nil, configError(fmt.Sprintf("Invalid log level %q", cfg.LogLevel))
		}
	}

	return cfg, nil
}

// isDir tolerates stale NFS handles, since both directories are often mounts.
func isDir(path string) bool {
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	return err == nil && info.IsDir()
}
