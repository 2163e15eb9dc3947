package media

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// errNoExif means the container was read without finding EXIF metadata.
var errNoExif = errors.New("no exif metadata")

// maxExifPayload bounds the metadata read from PNG chunks and raw TIFF files.
// JPEG segments are limited to 64KB by their length field.
const maxExifPayload = 16 << 20

var (
	jpegSOI      = []byte{0xFF, 0xD8}
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	exifHeader   = []byte("Exif\x00\x00")
	tiffLittle   = []byte("II*\x00")
	tiffBig      = []byte("MM\x00*")
)

const (
	pngExifChunk = "eXIf"
	pngEndChunk  = "IEND"

	jpegMarkerPad = 0xFF
	jpegAPP1      = 0xE1
	jpegSOS       = 0xDA
	jpegEOI       = 0xD9
	jpegTEM       = 0x01
	jpegRSTFirst  = 0xD0
	jpegRSTLast   = 0xD7
)

// findExif returns the TIFF structure holding the EXIF metadata of a JPEG,
// PNG or raw TIFF stream. In JPEG files every APP1 segment is checked, since
// XMP often comes first. In PNG files the eXIf chunk is used.
func findExif(r *bufio.Reader) ([]byte, error) {
	head, err := r.Peek(8)
	if err != nil && len(head) < 4 {
		return nil, errNoExif
	}

	switch {
	case bytes.HasPrefix(head, jpegSOI):
		if _, err := r.Discard(len(jpegSOI)); err != nil {
			return nil, err
		}
		return jpegExif(r)

	case bytes.Equal(head, pngSignature):
		if _, err := r.Discard(len(pngSignature)); err != nil {
			return nil, err
		}
		return pngExif(r)

	case bytes.HasPrefix(head, tiffLittle), bytes.HasPrefix(head, tiffBig):
		return io.ReadAll(io.LimitReader(r, maxExifPayload))

	default:
		return nil, errNoExif
	}
}

// jpegExif walks the marker segments that precede the image data.
func jpegExif(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != jpegMarkerPad {
			return nil, fmt.Errorf("jpeg: expected marker, found 0x%02x", b)
		}

		marker := byte(jpegMarkerPad)
		for marker == jpegMarkerPad {
			if marker, err = r.ReadByte(); err != nil {
				return nil, err
			}
		}

		switch {
		case marker == jpegSOS, marker == jpegEOI:
			return nil, errNoExif
		case marker == jpegTEM, marker >= jpegRSTFirst && marker <= jpegRSTLast:
			continue
		}

		var length uint16
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		if length < 2 {
			return nil, fmt.Errorf("jpeg: segment 0x%02x has invalid length %d", marker, length)
		}
		size := int(length) - 2

		if marker != jpegAPP1 {
			if _, err := r.Discard(size); err != nil {
				return nil, err
			}
			continue
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		if bytes.HasPrefix(payload, exifHeader) {
			return payload[len(exifHeader):], nil
		}
	}
}

// pngExif walks the chunks up to IEND looking for eXIf.
func pngExif(r *bufio.Reader) ([]byte, error) {
	var header [8]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}
		length := binary.BigEndian.Uint32(header[:4])
		chunk := string(header[4:])

		switch chunk {
		case pngEndChunk:
			return nil, errNoExif

		case pngExifChunk:
			if length > maxExifPayload {
				return nil, fmt.Errorf("png: eXIf chunk of %d bytes exceeds %d", length, maxExifPayload)
			}
			payload := make([]byte, length)
			if _, err := io.ReadFull(r, payload); err != nil {
				return nil, err
			}
			// Some writers keep the JPEG style prefix.
			return bytes.TrimPrefix(payload, exifHeader), nil
		}

		// Chunk data plus CRC.
		if _, err := r.Discard(int(length) + 4); err != nil {
			return nil, err
		}
	}
}
