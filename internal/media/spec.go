package media

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Bounds is the inclusive range accepted for each thumbnail side.
type Bounds struct {
	Min int
	Max int
}

// DefaultBounds are the side limits enforced by the CLI.
var DefaultBounds = Bounds{Min: 100, Max: 200}

// Spec is the immutable target size shared by every job in a batch.
type Spec struct {
	Width  int
	Height int
}

// SpecError reports a rejected thumbnail size. Field is "width" or "height".
type SpecError struct {
	Field   string
	Message string
}

func (e *SpecError) Error() string {
	return e.Message
}

// NewSpec validates a thumbnail size against b. Width is checked before
// height, and both before the landscape constraint.
func NewSpec(width, height int, b Bounds) (Spec, error) {
	if width < b.Min || width > b.Max {
		return Spec{}, &SpecError{
			Field:   "width",
			Message: "Width must be between " + strconv.Itoa(b.Min) + " to " + strconv.Itoa(b.Max) + " pixels",
		}
	}
	if height < b.Min || height > b.Max {
		return Spec{}, &SpecError{
			Field:   "height",
			Message: "Height must be between " + strconv.Itoa(b.Min) + " to " + strconv.Itoa(b.Max) + " pixels",
		}
	}
	if width < height {
		return Spec{}, &SpecError{
			Field:   "width",
			Message: "Width must be greater than or equal to height.",
		}
	}
	return Spec{Width: width, Height: height}, nil
}

// Ratio returns the target aspect ratio in the precision used for cropping.
func (s Spec) Ratio() float32 {
	return float32(s.Width) / float32(s.Height)
}

// SupportedExtensions lists the lowercase extensions the scanner accepts.
var SupportedExtensions = []string{"jpg", "jpeg", "png", "gif"}

// extension returns the lowercase extension of name without the dot.
// Dotfiles such as ".jpg" have no extension.
func extension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// IsSupportedExtension reports whether name has a jpg, jpeg, png or gif
// extension in any letter case.
func IsSupportedExtension(name string) bool {
	ext := extension(name)
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// formatLabel maps a file name to the decode metric label.
func formatLabel(name string) string {
	switch extension(name) {
	case "jpg", "jpeg":
		return "jpeg"
	case "png":
		return "png"
	case "gif":
		return "gif"
	default:
		return "unknown"
	}
}
