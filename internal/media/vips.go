package media

import (
	"bytes"
	"errors"
	"image"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"thumbsmith/internal/logging"
	"thumbsmith/internal/metrics"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// errVipsUnavailable is returned by the vips loader before InitVips.
var errVipsUnavailable = errors.New("libvips not available")

// vipsLogHandler forwards libvips messages at or above minLevel to the
// application logger.
func vipsLogHandler(minLevel vips.LogLevel) func(string, vips.LogLevel, string) {
	return func(domain string, level vips.LogLevel, msg string) {
		// vips levels grow more verbose as their value increases.
		if level > minLevel {
			return
		}
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}
}

// vipsLevelFor maps the application log level to the libvips threshold.
func vipsLevelFor(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError
	case logging.LevelError:
		return vips.LogLevelCritical
	default:
		return vips.LogLevelWarning
	}
}

// InitVips starts libvips with a concurrency level matching the worker pool.
// It is a no-op when already initialized.
func InitVips(concurrency int) error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	level := vipsLevelFor(logging.GetLevel())
	vips.LoggingSettings(vipsLogHandler(level), level)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: max(1, concurrency),
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsDecoder decodes with libvips, which is faster than the Go codecs on
// large JPEGs. Files libvips cannot load are retried with Fallback.
type VipsDecoder struct {
	Fallback Decoder
}

// NewVipsDecoder returns a VipsDecoder that falls back to fallback.
func NewVipsDecoder(fallback Decoder) *VipsDecoder {
	return &VipsDecoder{Fallback: fallback}
}

func (d *VipsDecoder) Name() string { return "vips" }

func (d *VipsDecoder) Decode(path string) (image.Image, error) {
	img, err := loadWithVips(path)
	if err == nil {
		return img, nil
	}
	if d.Fallback == nil {
		return nil, err
	}

	if !errors.Is(err, errVipsUnavailable) {
		logging.Debug("libvips could not load %s, falling back to %s: %v", filepath.Base(path), d.Fallback.Name(), err)
	}
	metrics.ThumbnailDecoderFallbacks.Inc()
	return d.Fallback.Decode(path)
}

// loadWithVips decodes path at full size without auto-rotation and hands the
// pixels over as a lossless PNG, so crop and resize stay in one code path.
func loadWithVips(path string) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, errVipsUnavailable
	}

	params := vips.NewImportParams()
	params.AutoRotate.Set(false)
	params.FailOnError.Set(true)

	ref, err := vips.LoadImageFromFile(path, params)
	if err != nil {
		return nil, err
	}
	defer ref.Close()

	buf, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, err
	}

	return imaging.Decode(bytes.NewReader(buf))
}
