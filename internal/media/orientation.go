package media

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"thumbsmith/internal/filesystem"
	"thumbsmith/internal/logging"
	"thumbsmith/internal/metrics"
)

// Orientation is an EXIF orientation code. Names follow the TIFF convention
// of where row 0 and column 0 of the stored pixels sit when displayed.
type Orientation int

const (
	OrientationTopLeft     Orientation = 1
	OrientationTopRight    Orientation = 2
	OrientationBottomRight Orientation = 3
	OrientationBottomLeft  Orientation = 4
	OrientationLeftTop     Orientation = 5
	OrientationRightTop    Orientation = 6
	OrientationRightBottom Orientation = 7
	OrientationLeftBottom  Orientation = 8

	// OrientationNormal is used whenever no valid value can be read.
	OrientationNormal = OrientationTopLeft
)

// Valid reports whether o is in 1..8.
func (o Orientation) Valid() bool {
	return o >= OrientationTopLeft && o <= OrientationLeftBottom
}

// ResolveOrientation reads the EXIF orientation of the file at path. Missing,
// unreadable, malformed or out-of-range metadata all yield OrientationNormal.
// It never fails and never touches the pixel data.
func ResolveOrientation(path string) Orientation {
	o, reason := readOrientation(path)
	if reason != "" {
		metrics.OrientationReadFailures.WithLabelValues(reason).Inc()
	}
	metrics.OrientationResolved.WithLabelValues(strconv.Itoa(int(o))).Inc()
	return o
}

func readOrientation(path string) (Orientation, string) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Debug("Orientation: cannot open %s: %v", path, err)
		return OrientationNormal, "open"
	}
	defer f.Close()

	payload, err := findExif(bufio.NewReader(f))
	if err != nil {
		if errors.Is(err, errNoExif) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			logging.Debug("Orientation: no EXIF data in %s", filepath.Base(path))
			return OrientationNormal, "no_exif"
		}
		logging.Debug("Orientation: corrupt container in %s: %v", filepath.Base(path), err)
		return OrientationNormal, "corrupt"
	}

	x, err := exif.Decode(bytes.NewReader(payload))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		logging.Debug("Orientation: corrupt EXIF data in %s: %v", filepath.Base(path), err)
		return OrientationNormal, "corrupt"
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		logging.Debug("Orientation: no orientation tag in %s", filepath.Base(path))
		return OrientationNormal, "no_exif"
	}

	v, err := tag.Int(0)
	if err != nil {
		logging.Debug("Orientation: unreadable orientation tag in %s: %v", filepath.Base(path), err)
		return OrientationNormal, "corrupt"
	}

	o := Orientation(v)
	if !o.Valid() {
		logging.Debug("Orientation: out of range value %d in %s", v, filepath.Base(path))
		return OrientationNormal, "out_of_range"
	}
	return o, ""
}

// OrientationMode selects how a resolved orientation is corrected.
type OrientationMode int

const (
	// OrientationRotateOnly corrects only the rotation codes 3, 6 and 8.
	// Code 8 is turned clockwise like code 6, which matches the thumbnails
	// produced by earlier releases.
	OrientationRotateOnly OrientationMode = iota
	// OrientationFull applies all eight EXIF transforms.
	OrientationFull
	// OrientationIgnore leaves pixels as stored.
	OrientationIgnore
)

func (m OrientationMode) String() string {
	switch m {
	case OrientationRotateOnly:
		return "rotate"
	case OrientationFull:
		return "full"
	case OrientationIgnore:
		return "none"
	default:
		return fmt.Sprintf("OrientationMode(%d)", int(m))
	}
}

// ParseOrientationMode accepts "rotate", "full" or "none".
func ParseOrientationMode(s string) (OrientationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rotate":
		return OrientationRotateOnly, nil
	case "full":
		return OrientationFull, nil
	case "none", "ignore", "off":
		return OrientationIgnore, nil
	default:
		return OrientationRotateOnly, fmt.Errorf("unknown orientation mode %q (want rotate, full or none)", s)
	}
}

type correction struct {
	name string
	fn   func(image.Image) *image.NRGBA
}

// imaging rotates counter-clockwise, so a clockwise quarter turn is Rotate270.
var (
	rotateCW     = correction{"rotate270", imaging.Rotate270}
	rotateCCW    = correction{"rotate90", imaging.Rotate90}
	rotateHalf   = correction{"rotate180", imaging.Rotate180}
	flipH        = correction{"flip_h", imaging.FlipH}
	flipV        = correction{"flip_v", imaging.FlipV}
	transpose    = correction{"transpose", imaging.Transpose}
	transverse   = correction{"transverse", imaging.Transverse}
	rotateOnlyTo = map[Orientation]correction{
		OrientationBottomRight: rotateHalf,
		OrientationRightTop:    rotateCW,
		OrientationLeftBottom:  rotateCW,
	}
	fullTo = map[Orientation]correction{
		OrientationTopRight:    flipH,
		OrientationBottomRight: rotateHalf,
		OrientationBottomLeft:  flipV,
		OrientationLeftTop:     transpose,
		OrientationRightTop:    rotateCW,
		OrientationRightBottom: transverse,
		OrientationLeftBottom:  rotateCCW,
	}
)

// Correct returns img with the pixel transform for o applied under mode m,
// and the name of the transform ("" when none applies).
func (m OrientationMode) Correct(img image.Image, o Orientation) (image.Image, string) {
	var table map[Orientation]correction
	switch m {
	case OrientationRotateOnly:
		table = rotateOnlyTo
	case OrientationFull:
		table = fullTo
	default:
		return img, ""
	}

	c, ok := table[o]
	if !ok {
		return img, ""
	}
	metrics.OrientationCorrections.WithLabelValues(c.name).Inc()
	return c.fn(img), c.name
}
