package media

import (
	"fmt"
	"image"

	"thumbsmith/internal/filesystem"
	"thumbsmith/internal/logging"

	// Source format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// DefaultMaxPixels caps the decoded size of a source image. A 100MP RGBA
// bitmap is ~400MB, which is already more than most containers allow per
// worker.
const DefaultMaxPixels = 100_000_000

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// Pixels returns Width*Height.
func (d ImageDimensions) Pixels() int {
	return d.Width * d.Height
}

// GetImageDimensions returns image dimensions from the header without
// decoding the pixel data.
func GetImageDimensions(path string, retry filesystem.RetryConfig) (*ImageDimensions, error) {
	file, err := filesystem.OpenWithRetry(path, retry)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}

// checkPixelBudget rejects images whose header declares more than maxPixels
// pixels, before any pixel buffer is allocated. maxPixels <= 0 disables it.
func checkPixelBudget(path string, maxPixels int, retry filesystem.RetryConfig) error {
	if maxPixels <= 0 {
		return nil
	}

	dims, err := GetImageDimensions(path, retry)
	if err != nil {
		return err
	}

	if dims.Pixels() > maxPixels {
		return fmt.Errorf("image is %dx%d (%d pixels), limit is %d", dims.Width, dims.Height, dims.Pixels(), maxPixels)
	}
	return nil
}
