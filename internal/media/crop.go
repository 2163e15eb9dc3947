package media

import (
	"fmt"
	"image"
)

// CropRect is a region of the oriented source image, in pixels relative to
// its top-left corner.
type CropRect struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r CropRect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Empty reports whether r covers no pixels.
func (r CropRect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Rect converts r to an image.Rectangle anchored at origin.
func (r CropRect) Rect(origin image.Point) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height).Add(origin)
}

// PlanCrop returns the largest centered region of a srcW x srcH image whose
// aspect ratio matches dstW:dstH. Ratios are computed in float32 and sizes
// truncated toward zero, so results are stable across releases. Wider sources
// lose columns evenly from both sides, taller ones lose rows. Equal ratios
// keep the full image. Any non-positive dimension yields the zero rectangle.
func PlanCrop(srcW, srcH, dstW, dstH int) CropRect {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return CropRect{}
	}

	targetRatio := float32(dstW) / float32(dstH)
	sourceRatio := float32(srcW) / float32(srcH)

	switch {
	case sourceRatio == targetRatio:
		return CropRect{Width: srcW, Height: srcH}

	case sourceRatio > targetRatio:
		cropW := clampSide(int(float32(srcH)*targetRatio), srcW)
		return CropRect{X: (srcW - cropW) / 2, Width: cropW, Height: srcH}

	default:
		cropH := clampSide(int(float32(srcW)/targetRatio), srcH)
		return CropRect{Y: (srcH - cropH) / 2, Width: srcW, Height: cropH}
	}
}

func clampSide(v, limit int) int {
	return max(1, min(v, limit))
}
