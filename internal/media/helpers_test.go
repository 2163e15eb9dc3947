package media

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// gradient returns a w x h image with distinct pixels so resampling has real
// work to do.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func writeFile(t testing.TB, path string, data []byte) string {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
	return path
}

// writeImage writes a w x h image to dir/name, encoded by extension.
func writeImage(t testing.TB, dir, name string, w, h int) string {
	t.Helper()
	img := gradient(w, h)
	path := filepath.Join(dir, name)

	var buf bytes.Buffer
	var err error
	switch extension(name) {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		return writeFile(t, path, encodeJPEG(t, img))
	}
	if err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return writeFile(t, path, buf.Bytes())
}

// tiffOrientation returns a big-endian TIFF structure with a single IFD0
// entry: Orientation (0x0112, SHORT) = value.
func tiffOrientation(value uint16) []byte {
	return []byte{
		'M', 'M', 0x00, 0x2A, // byte order, magic
		0x00, 0x00, 0x00, 0x08, // IFD0 offset
		0x00, 0x01, // entry count
		0x01, 0x12, // tag
		0x00, 0x03, // type SHORT
		0x00, 0x00, 0x00, 0x01, // count
		byte(value >> 8), byte(value), 0x00, 0x00, // inline value
		0x00, 0x00, 0x00, 0x00, // next IFD
	}
}

// exifSegment builds a JPEG APP1 segment holding tiffOrientation(value).
func exifSegment(value uint16) []byte {
	return app1(append([]byte("Exif\x00\x00"), tiffOrientation(value)...))
}

// xmpSegment builds an APP1 segment with an XMP packet.
func xmpSegment() []byte {
	payload := append([]byte("http://ns.adobe.com/xap/1.0/\x00"),
		[]byte(`<x:xmpmeta xmlns:x="adobe:ns:meta/"></x:xmpmeta>`)...)
	return app1(payload)
}

// pngChunk encodes one PNG chunk with its CRC.
func pngChunk(kind string, data []byte) []byte {
	out := make([]byte, 8, 12+len(data))
	binary.BigEndian.PutUint32(out[:4], uint32(len(data)))
	copy(out[4:], kind)
	out = append(out, data...)
	crc := crc32.ChecksumIEEE(append([]byte(kind), data...))
	return binary.BigEndian.AppendUint32(out, crc)
}

// writeOrientedPNG writes a w x h PNG with an eXIf chunk after IHDR.
func writeOrientedPNG(t testing.TB, dir, name string, w, h int, orientation uint16) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	data := buf.Bytes()

	// Signature (8) plus the IHDR chunk (8 + 13 + 4).
	const afterIHDR = 33
	out := append([]byte{}, data[:afterIHDR]...)
	out = append(out, pngChunk("eXIf", tiffOrientation(orientation))...)
	out = append(out, data[afterIHDR:]...)
	return writeFile(t, filepath.Join(dir, name), out)
}

func app1(payload []byte) []byte {
	n := len(payload) + 2
	return append([]byte{0xFF, 0xE1, byte(n >> 8), byte(n)}, payload...)
}

// withSegment inserts seg right after the JPEG SOI marker.
func withSegment(jpegData, seg []byte) []byte {
	out := make([]byte, 0, len(jpegData)+len(seg))
	out = append(out, jpegData[:2]...)
	out = append(out, seg...)
	return append(out, jpegData[2:]...)
}

// writeOrientedJPEG writes a w x h JPEG tagged with the given orientation.
func writeOrientedJPEG(t testing.TB, dir, name string, w, h int, orientation uint16) string {
	t.Helper()
	data := withSegment(encodeJPEG(t, gradient(w, h)), exifSegment(orientation))
	return writeFile(t, filepath.Join(dir, name), data)
}

func decodeSize(t testing.TB, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("DecodeConfig(%s) error = %v", path, err)
	}
	return cfg.Width, cfg.Height
}
