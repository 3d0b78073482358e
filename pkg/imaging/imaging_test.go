package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewear/rewear-backend/pkg/config"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 20, G: 120, B: 200, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h)))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestProcessKeepsSmallImages(t *testing.T) {
	p := NewProcessor(config.MediaConfig{ImageMaxSize: 256, ImageQuality: 80})

	result, err := p.Process(bytes.NewReader(encodeJPEG(t, 100, 60)))
	require.NoError(t, err)
	assert.Equal(t, OutputMIME, result.MIME)
	assert.Equal(t, 100, result.Width)
	assert.Equal(t, 60, result.Height)

	decoded, err := jpeg.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
}

func TestProcessDownscalesAndConvertsPNG(t *testing.T) {
	p := NewProcessor(config.MediaConfig{ImageMaxSize: 100})

	result, err := p.Process(bytes.NewReader(encodePNG(t, 400, 200)))
	require.NoError(t, err)
	assert.Equal(t, 100, result.Width)
	assert.Equal(t, 50, result.Height)

	portrait, err := p.Process(bytes.NewReader(encodePNG(t, 50, 300)))
	require.NoError(t, err)
	assert.Equal(t, 16, portrait.Width)
	assert.Equal(t, 100, portrait.Height)
}

func TestProcessRejectsNonImages(t *testing.T) {
	p := NewProcessor(config.MediaConfig{})

	_, err := p.Process(bytes.NewReader([]byte("%PDF-1.4 not an image")))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = p.Process(bytes.NewReader([]byte("\x89PNG\r\n\x1a\ntruncated")))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNewProcessorDefaults(t *testing.T) {
	p := NewProcessor(config.MediaConfig{ImageQuality: 500})
	assert.Equal(t, defaultMaxDimension, p.maxDimension)
	assert.Equal(t, defaultQuality, p.quality)
}
