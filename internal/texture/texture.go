// Package texture decodes images into GPU-ready pixel buffers.
//
// Pixel data is kept the way BMP stores it: rows bottom-up, tightly packed,
// RGB or RGBA channel order, with alpha premultiplied for images that carry
// an alpha channel. Buffers live in an arena and are never freed by the
// Texture itself.
package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"grapple/internal/arena"
	"grapple/internal/gpu"
)

// Texture is a decoded image plus its GPU binding.
type Texture struct {
	Width    int
	Height   int
	Channels int
	Data     []byte
	// Handle is nil until the texture has been uploaded.
	Handle gpu.Handle
}

// Uploaded reports whether the texture has a GPU handle.
func (t *Texture) Uploaded() bool { return t != nil && !t.Handle.IsNil() }

// Pitch is the size of one row of Data in bytes.
func (t *Texture) Pitch() int { return t.Width * t.Channels }

// Format returns the source pixel format for the channel count.
func (t *Texture) Format() (gpu.Format, error) {
	switch t.Channels {
	case 4:
		return gpu.FormatRGBA8, nil
	case 3:
		return gpu.FormatRGB8, nil
	case 1:
		return gpu.FormatR8, nil
	}
	return 0, fmt.Errorf("texture: unsupported channel count %d", t.Channels)
}

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("texture: invalid")

// Validate checks that t describes a complete pixel buffer.
func (t *Texture) Validate() error {
	switch {
	case t == nil:
		return fmt.Errorf("%w: nil texture", ErrInvalid)
	case t.Data == nil:
		return fmt.Errorf("%w: no pixel data", ErrInvalid)
	case t.Width <= 0 || t.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalid, t.Width, t.Height)
	}
	if _, err := t.Format(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if need := t.Pitch() * t.Height; len(t.Data) < need {
		return fmt.Errorf("%w: %d bytes of pixel data, need %d", ErrInvalid, len(t.Data), need)
	}
	return nil
}

// FromImage converts img into a texture with the given channel count (3 or
// 4), allocating pixel data from a.
func FromImage(img image.Image, channels int, a *arena.Arena) (*Texture, error) {
	if channels != 3 && channels != 4 {
		return nil, fmt.Errorf("texture: unsupported channel count %d", channels)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalid)
	}
	data, err := arena.Bytes(a, w*h*channels)
	if err != nil {
		return nil, fmt.Errorf("texture: allocate %dx%d pixels: %w", w, h, err)
	}

	pitch := w * channels
	for y := 0; y < h; y++ {
		// bottom-up: the first row of Data is the last row of the image
		row := data[(h-1-y)*pitch : (h-y)*pitch]
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			px := row[x*channels : (x+1)*channels]
			if channels == 3 {
				px[0], px[1], px[2] = c.R, c.G, c.B
				continue
			}
			px[0] = premultiply(c.R, c.A)
			px[1] = premultiply(c.G, c.A)
			px[2] = premultiply(c.B, c.A)
			px[3] = c.A
		}
	}
	return &Texture{Width: w, Height: h, Channels: channels, Data: data}, nil
}

// premultiply scales an sRGB-encoded channel by alpha in approximately linear
// space, using gamma 2 in place of the sRGB curve.
func premultiply(c, a uint8) uint8 {
	if a == 0xff {
		return c
	}
	lin := float64(c) / 255
	lin *= lin
	lin *= float64(a) / 255
	return uint8(math.Round(math.Sqrt(lin) * 255))
}
