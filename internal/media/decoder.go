package media

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"thumbsmith/internal/filesystem"
)

// Decoder loads the full pixel data of a source image. Implementations must
// not apply EXIF orientation; the transformer does that itself.
type Decoder interface {
	Decode(path string) (image.Image, error)
	Name() string
}

// ImagingDecoder decodes with the pure Go codecs registered with the image
// package. Animated GIFs yield their first frame.
type ImagingDecoder struct {
	Retry filesystem.RetryConfig
	// MaxPixels rejects larger images before decoding; 0 disables the check.
	MaxPixels int
}

// NewImagingDecoder returns an ImagingDecoder with the default retry policy
// and pixel budget.
func NewImagingDecoder() *ImagingDecoder {
	return &ImagingDecoder{Retry: filesystem.DefaultRetryConfig(), MaxPixels: DefaultMaxPixels}
}

func (d *ImagingDecoder) Name() string { return "imaging" }

func (d *ImagingDecoder) Decode(path string) (image.Image, error) {
	if err := checkPixelBudget(path, d.MaxPixels, d.Retry); err != nil {
		return nil, err
	}

	f, err := filesystem.OpenWithRetry(path, d.Retry)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("image has no pixels (%dx%d)", b.Dx(), b.Dy())
	}
	return img, nil
}

// NewDecoder returns the decoder registered under name: "imaging" (default)
// or "vips". The vips decoder falls back to imaging for files libvips
// rejects.
func NewDecoder(name string) (Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "imaging":
		return NewImagingDecoder(), nil
	case "vips", "libvips":
		return NewVipsDecoder(NewImagingDecoder()), nil
	default:
		return nil, fmt.Errorf("unknown decoder %q (want imaging or vips)", name)
	}
}
