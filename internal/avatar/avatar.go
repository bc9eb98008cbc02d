// Package avatar normalizes uploaded profile images into fixed-size PNGs.
package avatar

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	// Register decoders for the accepted upload formats.
	_ "image/jpeg"
	_ "image/png"
)

const (
	// MaxUploadBytes caps the declared upload size.
	MaxUploadBytes = 1_000_000
	// Dimension is the side length of every stored avatar.
	Dimension = 250
)

var (
	ErrTooLarge = errors.New("file exceeds the 1MB upload limit")
	ErrBadType  = errors.New("please upload a .jpg, .jpeg or .png file")
	ErrBadImage = errors.New("unable to decode image")
)

var acceptedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Process validates an upload and normalizes it to a 250x250 PNG. The input
// format and metadata are discarded; output is always the same shape
// regardless of source dimensions. Oversized or wrong-type uploads fail
// before any decoding happens.
func Process(raw []byte, filename string, declaredSize int64) ([]byte, error) {
	if declaredSize > MaxUploadBytes || int64(len(raw)) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	if !acceptedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return nil, ErrBadType
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrBadImage
	}

	dst := image.NewRGBA(image.Rect(0, 0, Dimension, Dimension))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, coverCrop(src.Bounds()), draw.Src, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, ErrBadImage
	}
	return out.Bytes(), nil
}

// coverCrop returns the largest centered square of the source, so scaling to
// the square target covers it fully without stretching.
func coverCrop(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	side := w
	if h < side {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}
