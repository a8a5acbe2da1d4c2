package services

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxImageSide = 1024
	// MaxImagePixels bounds the decoded size of an evidence image.
	MaxImagePixels = 50_000_000
	jpegQuality    = 85
)

// ImageOptimizer shrinks evidence images before they are sent to the model.
type ImageOptimizer interface {
	Optimize(data []byte) ([]byte, string, error)
}

type imageOptimizer struct {
	maxWidth  int
	maxHeight int
	maxPixels int
}

func NewImageOptimizer(maxSide int) ImageOptimizer {
	if maxSide <= 0 {
		maxSide = DefaultMaxImageSide
	}
	return &imageOptimizer{maxWidth: maxSide, maxHeight: maxSide, maxPixels: MaxImagePixels}
}

// Optimize decodes a JPEG, PNG or WebP image, scales it down to fit the
// bounding box keeping its aspect ratio, flattens it onto white and
// re-encodes it as JPEG. Images that already fit are not upscaled. The
// header is read first so oversized images are rejected before decoding.
func (o *imageOptimizer) Optimize(data []byte) ([]byte, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(ErrUnsupportedFile, err.Error())
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(o.maxPixels) {
		return nil, "", errors.Wrapf(ErrUnsupportedFile, "image is %dx%d, above the %d pixel limit", cfg.Width, cfg.Height, o.maxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(ErrUnsupportedFile, err.Error())
	}

	bounds := src.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), o.maxWidth, o.maxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", errors.Wrap(err, "failed to encode image")
	}

	return buf.Bytes(), "image/jpeg", nil
}

func fitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}

	scale := float64(maxWidth) / float64(width)
	if hs := float64(maxHeight) / float64(height); hs < scale {
		scale = hs
	}

	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
