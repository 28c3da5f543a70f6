package contextlib

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"

	"github.com/pkg/errors"

	"flowrun/internal/model"
)

// ImageBuffer accumulates RGBA scanlines into an in-memory raster, then
// PNG-encodes it once full - standing in for "image output" (spec §1) and
// demonstrating a context implementation that mutates process state behind
// its own internal synchronization (Design Note), since it is shared by
// every invocation on the context executor but could in principle be
// inspected from elsewhere (tests, a status endpoint).
type ImageBuffer struct {
	mu     sync.Mutex
	width  int
	height int
	path   string

	img  *image.RGBA
	next int // next scanline to fill
}

// NewImageBuffer builds an accumulator for a width x height image, written
// to path once the last scanline is received.
func NewImageBuffer(width, height int, path string) *ImageBuffer {
	return &ImageBuffer{
		width:  width,
		height: height,
		path:   path,
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Accumulate takes inputs[0], an array of width RGBA-quadruple arrays
// ([[r,g,b,a], ...]) for one scanline, and writes it into the raster. Once
// every scanline has arrived it PNG-encodes the image to path and stops
// (RunAgain=false); until then it keeps running.
func (b *ImageBuffer) Accumulate(inputs []model.Value) (model.Value, bool, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	row, ok := inputs[0].([]any)
	if !ok || len(row) != b.width {
		return nil, false, true, errors.Errorf("image_buffer: expected a %d-pixel scanline, got %T", b.width, inputs[0])
	}
	if b.next >= b.height {
		return nil, false, false, errors.New("image_buffer: received more scanlines than height")
	}

	for x, px := range row {
		rgba, err := decodePixel(px)
		if err != nil {
			return nil, false, true, errors.Wrapf(err, "image_buffer: scanline %d pixel %d", b.next, x)
		}
		b.img.Set(x, b.next, rgba)
	}
	b.next++

	if b.next < b.height {
		return nil, false, true, nil
	}
	if err := b.flushLocked(); err != nil {
		return nil, false, false, err
	}
	return nil, false, false, nil
}

func (b *ImageBuffer) flushLocked() error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, b.img); err != nil {
		return errors.Wrap(err, "image_buffer: encoding PNG")
	}
	if err := os.WriteFile(b.path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "image_buffer: writing %q", b.path)
	}
	return nil
}

func decodePixel(px any) (color.RGBA, error) {
	arr, ok := px.([]any)
	if !ok || len(arr) != 4 {
		return color.RGBA{}, errors.Errorf("expected a 4-element [r,g,b,a] array, got %T", px)
	}
	channels := make([]uint8, 4)
	for i, c := range arr {
		f, ok := c.(float64)
		if !ok || f < 0 || f > 255 {
			return color.RGBA{}, errors.Errorf("channel %d out of range: %v", i, c)
		}
		channels[i] = uint8(f)
	}
	return color.RGBA{R: channels[0], G: channels[1], B: channels[2], A: channels[3]}, nil
}
