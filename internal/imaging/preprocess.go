// Package imaging turns uploaded image bytes into model input tensors.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/nfnt/resize"

	"github.com/kailas-cloud/mushi/internal/domain"
)

// Layout is the tensor memory order.
type Layout string

const (
	// NHWC stores pixels interleaved: R G B R G B ...
	NHWC Layout = "nhwc"
	// NCHW stores one plane per channel.
	NCHW Layout = "nchw"
)

// Scale is the value range written into the tensor.
type Scale string

const (
	// ScaleRaw keeps 0..255; the network rescales internally.
	ScaleRaw Scale = "raw"
	// ScaleUnit maps to 0..1.
	ScaleUnit Scale = "unit"
)

const channels = 3

// Preprocessor resizes images to a square model input.
type Preprocessor struct {
	size   int
	layout Layout
	scale  Scale
}

// New creates a preprocessor. Empty layout and scale default to NHWC and raw.
func New(size int, layout Layout, scale Scale) (*Preprocessor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %d", size)
	}
	if layout == "" {
		layout = NHWC
	}
	if scale == "" {
		scale = ScaleRaw
	}
	if layout != NHWC && layout != NCHW {
		return nil, fmt.Errorf("unknown tensor layout %q", layout)
	}
	if scale != ScaleRaw && scale != ScaleUnit {
		return nil, fmt.Errorf("unknown tensor scale %q", scale)
	}
	return &Preprocessor{size: size, layout: layout, scale: scale}, nil
}

// Size returns the square edge length in pixels.
func (p *Preprocessor) Size() int { return p.size }

// TensorLen returns the number of float32 values Tensor produces.
func (p *Preprocessor) TensorLen() int { return channels * p.size * p.size }

// Decode parses JPEG or PNG bytes.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrInvalidImage, err)
	}
	if format != "jpeg" && format != "png" {
		return nil, "", fmt.Errorf("%w: format %s", domain.ErrUnsupportedMediaType, format)
	}
	return img, format, nil
}

// Preprocess decodes data and converts it to a tensor.
func (p *Preprocessor) Preprocess(data []byte) ([]float32, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return p.Tensor(img), nil
}

// Tensor resizes img with nearest-neighbour sampling and flattens its RGB values.
// Alpha is dropped.
func (p *Preprocessor) Tensor(img image.Image) []float32 {
	size := uint(p.size) //nolint:gosec // validated positive in New
	resized := resize.Resize(size, size, img, resize.NearestNeighbor)

	b := resized.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, channels*w*h)

	div := float32(1)
	if p.scale == ScaleUnit {
		div = 255
	}

	plane := w * h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			rv := float32(r>>8) / div
			gv := float32(g>>8) / div
			bv := float32(bl>>8) / div

			px := y*w + x
			if p.layout == NCHW {
				out[px] = rv
				out[plane+px] = gv
				out[2*plane+px] = bv
				continue
			}
			out[px*channels] = rv
			out[px*channels+1] = gv
			out[px*channels+2] = bv
		}
	}
	return out
}
