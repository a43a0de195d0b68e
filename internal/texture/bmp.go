package texture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"

	"grapple/internal/arena"

	"golang.org/x/image/bmp"
)

// ErrNotBMP is returned for data without a BMP file signature.
var ErrNotBMP = errors.New("texture: not a BMP file")

const (
	bmpPixelOffset       = 10
	bmpWidthOffset       = 18
	bmpHeightOffset      = 22
	bmpBitCountOffset    = 28
	bmpCompressionOffset = 30
	bmpMasksOffset       = 54

	biBitfields = 3
)

// LoadBMP decodes a BMP file. 24-bit images produce 3-channel textures, every
// other depth produces 4 channels with premultiplied alpha.
func LoadBMP(data []byte, a *arena.Arena) (*Texture, error) {
	if len(data) < bmpCompressionOffset+4 || data[0] != 'B' || data[1] != 'M' {
		return nil, ErrNotBMP
	}
	bpp := binary.LittleEndian.Uint16(data[bmpBitCountOffset:])
	if binary.LittleEndian.Uint32(data[bmpCompressionOffset:]) == biBitfields {
		return decodeBitfields(data, bpp, a)
	}

	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode bmp: %w", err)
	}
	channels := 4
	if bpp == 24 {
		channels = 3
	}
	return FromImage(img, channels, a)
}

// channelMask extracts one channel of a BI_BITFIELDS pixel and scales it to
// 8 bits.
type channelMask struct {
	mask  uint32
	shift int
	max   uint32
}

func newChannelMask(mask uint32) (channelMask, bool) {
	if mask == 0 {
		return channelMask{}, false
	}
	shift := bits.TrailingZeros32(mask)
	return channelMask{mask: mask, shift: shift, max: mask >> shift}, true
}

func (m channelMask) value(px uint32) uint8 {
	v := (px & m.mask) >> m.shift
	if m.max == 0xff {
		return uint8(v)
	}
	return uint8((uint64(v)*255 + uint64(m.max)/2) / uint64(m.max))
}

// decodeBitfields reads a 32-bit BI_BITFIELDS image whose red, green and blue
// masks follow the 40-byte info header. Alpha is whatever bits the three
// masks leave uncovered; when there are none the image is opaque.
func decodeBitfields(data []byte, bpp uint16, a *arena.Arena) (*Texture, error) {
	if bpp != 32 {
		return nil, fmt.Errorf("decode bmp: %d-bit bitfields not supported", bpp)
	}
	if len(data) < bmpMasksOffset+12 {
		return nil, fmt.Errorf("decode bmp: truncated bitfield masks")
	}
	le := binary.LittleEndian
	w := int(int32(le.Uint32(data[bmpWidthOffset:])))
	h := int(int32(le.Uint32(data[bmpHeightOffset:])))
	offset := int(le.Uint32(data[bmpPixelOffset:]))

	topDown := h < 0
	if topDown {
		h = -h
	}
	if w <= 0 || h == 0 {
		return nil, fmt.Errorf("%w: bitmap %dx%d", ErrInvalid, w, h)
	}
	if offset < bmpMasksOffset+12 || offset+w*h*4 > len(data) || offset+w*h*4 < offset {
		return nil, fmt.Errorf("decode bmp: pixel data at %d does not fit %d bytes", offset, len(data))
	}

	rm := le.Uint32(data[bmpMasksOffset:])
	gm := le.Uint32(data[bmpMasksOffset+4:])
	bm := le.Uint32(data[bmpMasksOffset+8:])
	r, okR := newChannelMask(rm)
	g, okG := newChannelMask(gm)
	b, okB := newChannelMask(bm)
	if !okR || !okG || !okB || rm&gm != 0 || rm&bm != 0 || gm&bm != 0 {
		return nil, fmt.Errorf("decode bmp: invalid masks r=%#08x g=%#08x b=%#08x", rm, gm, bm)
	}
	alpha, hasAlpha := newChannelMask(^(rm | gm | bm))

	out, err := arena.Bytes(a, w*h*4)
	if err != nil {
		return nil, fmt.Errorf("texture: allocate %dx%d pixels: %w", w, h, err)
	}
	src := data[offset:]
	for y := range h {
		// keep rows bottom-up like every other texture
		dy := y
		if topDown {
			dy = h - 1 - y
		}
		for x := range w {
			px := le.Uint32(src[(y*w+x)*4:])
			var av uint8 = 0xff
			if hasAlpha {
				av = alpha.value(px)
			}
			o := out[(dy*w+x)*4:][:4]
			o[0] = premultiply(r.value(px), av)
			o[1] = premultiply(g.value(px), av)
			o[2] = premultiply(b.value(px), av)
			o[3] = av
		}
	}
	return &Texture{Width: w, Height: h, Channels: 4, Data: out}, nil
}

// LoadFile reads path into arena memory and decodes it as a BMP.
func LoadFile(path string, a *arena.Arena) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open texture: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat texture: %w", err)
	}
	data, err := arena.Bytes(a, int(st.Size()))
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", path, err)
	}
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("read texture %s: %w", path, err)
	}

	t, err := LoadBMP(data, a)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", path, err)
	}
	return t, nil
}
