package avatar

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDimensions(t *testing.T, data []byte) (string, int, int) {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return format, img.Bounds().Dx(), img.Bounds().Dy()
}

func TestProcessNormalizesTinyPNG(t *testing.T) {
	raw := encodePNG(t, 10, 10)

	out, err := Process(raw, "tiny.png", int64(len(raw)))
	require.NoError(t, err)

	format, w, h := decodeDimensions(t, out)
	assert.Equal(t, "png", format)
	assert.Equal(t, Dimension, w)
	assert.Equal(t, Dimension, h)
}

func TestProcessNormalizesNonSquareImages(t *testing.T) {
	for _, dims := range [][2]int{{500, 100}, {100, 500}, {1000, 1000}} {
		raw := encodePNG(t, dims[0], dims[1])

		out, err := Process(raw, "photo.png", int64(len(raw)))
		require.NoError(t, err)

		format, w, h := decodeDimensions(t, out)
		assert.Equal(t, "png", format)
		assert.Equal(t, Dimension, w)
		assert.Equal(t, Dimension, h)
	}
}

func TestProcessReencodesJPEGAsPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	out, err := Process(buf.Bytes(), "photo.jpeg", int64(buf.Len()))
	require.NoError(t, err)

	format, w, h := decodeDimensions(t, out)
	assert.Equal(t, "png", format)
	assert.Equal(t, Dimension, w)
	assert.Equal(t, Dimension, h)
}

func TestProcessRejectsOversizedUpload(t *testing.T) {
	raw := encodePNG(t, 10, 10)

	_, err := Process(raw, "big.png", 2_000_000)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = Process(make([]byte, MaxUploadBytes+1), "big.png", 100)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestProcessRejectsUnacceptedExtensions(t *testing.T) {
	raw := encodePNG(t, 10, 10)

	for _, name := range []string{"anim.gif", "doc.pdf", "image.bmp", "noext"} {
		_, err := Process(raw, name, int64(len(raw)))
		assert.ErrorIs(t, err, ErrBadType, "filename %q", name)
	}

	// Extension matching is case-insensitive.
	_, err := Process(raw, "PHOTO.PNG", int64(len(raw)))
	assert.NoError(t, err)
}

func TestProcessRejectsUndecodableBytes(t *testing.T) {
	_, err := Process([]byte("definitely not an image"), "fake.png", 23)
	assert.ErrorIs(t, err, ErrBadImage)
}
