package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/rewear/rewear-backend/pkg/config"
)

const (
	defaultMaxDimension = 1024
	defaultQuality      = 85
	OutputMIME          = "image/jpeg"
	OutputExt           = ".jpg"
)

// ErrUnsupportedFormat is returned when the sniffed content is not an accepted image type.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Result is a normalised upload ready to be stored.
type Result struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Processor validates uploads by content, downscales them and re-encodes as JPEG.
type Processor struct {
	maxDimension int
	quality      int
}

func NewProcessor(cfg config.MediaConfig) *Processor {
	p := &Processor{maxDimension: cfg.ImageMaxSize, quality: cfg.ImageQuality}
	if p.maxDimension <= 0 {
		p.maxDimension = defaultMaxDimension
	}
	if p.quality <= 0 || p.quality > 100 {
		p.quality = defaultQuality
	}
	return p
}

// Process never trusts the client supplied content type; the format is
// detected from the bytes themselves.
func (p *Processor) Process(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = downscale(img, p.maxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}

	bounds := img.Bounds()
	return &Result{
		Data:   buf.Bytes(),
		MIME:   OutputMIME,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// downscale keeps the aspect ratio and returns img untouched when it already fits.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
