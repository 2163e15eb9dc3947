package media

import (
	"bytes"
	"fmt"
	"time"

	"github.com/disintegration/imaging"

	"thumbsmith/internal/filesystem"
	"thumbsmith/internal/logging"
	"thumbsmith/internal/metrics"
)

// DefaultJPEGQuality is used when Transformer.JPEGQuality is zero.
const DefaultJPEGQuality = 90

// Outcome describes a finished transform.
type Outcome struct {
	Orientation Orientation
	Correction  string
	Crop        CropRect
	Duration    time.Duration
}

// Transformer turns one source image into one thumbnail. A Transformer is
// safe for concurrent use once configured.
type Transformer struct {
	Spec        Spec
	Decoder     Decoder
	Mode        OrientationMode
	JPEGQuality int
	Retry       filesystem.RetryConfig
}

// NewTransformer returns a Transformer for spec using the pure Go decoder,
// rotate-only orientation correction and the default JPEG quality.
func NewTransformer(spec Spec) *Transformer {
	return &Transformer{
		Spec:        spec,
		Decoder:     NewImagingDecoder(),
		Mode:        OrientationRotateOnly,
		JPEGQuality: DefaultJPEGQuality,
		Retry:       filesystem.DefaultRetryConfig(),
	}
}

// Transform writes a Spec.Width x Spec.Height thumbnail of src to dst,
// replacing any existing file. The output format follows dst's extension.
func (t *Transformer) Transform(src, dst string) error {
	_, err := t.Run(src, dst)
	return err
}

// Run is Transform, also reporting what was done to the image.
func (t *Transformer) Run(src, dst string) (Outcome, error) {
	start := time.Now()
	var out Outcome

	phase := time.Now()
	img, err := t.decoder().Decode(src)
	if err != nil {
		return out, &DecodeError{Path: src, Err: err}
	}
	metrics.ThumbnailDecodeByFormat.WithLabelValues(formatLabel(src)).Inc()
	observePhase("decode", phase)

	phase = time.Now()
	out.Orientation = ResolveOrientation(src)
	img, out.Correction = t.Mode.Correct(img, out.Orientation)
	observePhase("orient", phase)

	phase = time.Now()
	b := img.Bounds()
	out.Crop = PlanCrop(b.Dx(), b.Dy(), t.Spec.Width, t.Spec.Height)
	if out.Crop.Empty() {
		return out, &DecodeError{Path: src, Err: fmt.Errorf("cannot crop %dx%d image to %dx%d", b.Dx(), b.Dy(), t.Spec.Width, t.Spec.Height)}
	}
	cropped := imaging.Crop(img, out.Crop.Rect(b.Min))
	observePhase("crop", phase)

	phase = time.Now()
	thumb := imaging.Resize(cropped, t.Spec.Width, t.Spec.Height, imaging.Lanczos)
	observePhase("resize", phase)

	phase = time.Now()
	format, err := imaging.FormatFromFilename(dst)
	if err != nil {
		return out, &EncodeError{Path: src, Err: err}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format, imaging.JPEGQuality(t.quality())); err != nil {
		return out, &EncodeError{Path: src, Err: err}
	}
	observePhase("encode", phase)

	phase = time.Now()
	if err := filesystem.WriteFileAtomic(dst, buf.Bytes(), 0o644, t.retry()); err != nil {
		return out, &WriteError{Path: dst, Err: err}
	}
	observePhase("write", phase)

	out.Duration = time.Since(start)
	logging.Debug("Thumbnail %s: orientation=%d correction=%q crop=%s in %v",
		dst, out.Orientation, out.Correction, out.Crop, out.Duration)
	return out, nil
}

func (t *Transformer) decoder() Decoder {
	if t.Decoder == nil {
		return NewImagingDecoder()
	}
	return t.Decoder
}

func (t *Transformer) quality() int {
	if t.JPEGQuality <= 0 || t.JPEGQuality > 100 {
		return DefaultJPEGQuality
	}
	return t.JPEGQuality
}

func (t *Transformer) retry() filesystem.RetryConfig {
	if t.Retry.MaxRetries == 0 && t.Retry.InitialBackoff == 0 {
		return filesystem.DefaultRetryConfig()
	}
	return t.Retry
}

func observePhase(name string, start time.Time) {
	metrics.ThumbnailPhaseDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
