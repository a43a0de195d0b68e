package texture

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"math/bits"
	"os"
	"path/filepath"
	"testing"

	"grapple/internal/arena"
	"grapple/internal/gpu"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bmp24 builds an uncompressed bottom-up 24-bit BMP. rows are given top to
// bottom in RGB order.
func bmp24(w, h int, rows [][]color.RGBA) []byte {
	pitch := (w*3 + 3) &^ 3
	var buf bytes.Buffer
	le := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("BM")
	le(uint32(54 + pitch*h))
	le(uint32(0))
	le(uint32(54))

	le(uint32(40))
	le(int32(w))
	le(int32(h))
	le(uint16(1))
	le(uint16(24))
	le(uint32(0))
	le(uint32(pitch * h))
	le(int32(2835))
	le(int32(2835))
	le(uint32(0))
	le(uint32(0))

	for y := h - 1; y >= 0; y-- {
		row := make([]byte, pitch)
		for x, c := range rows[y] {
			row[x*3], row[x*3+1], row[x*3+2] = c.B, c.G, c.R
		}
		buf.Write(row)
	}
	return buf.Bytes()
}

// bmp32 builds a 32-bit BI_BITFIELDS BMP with a 40-byte info header followed
// by the red, green and blue masks. Alpha goes in the bits no mask covers.
// rows are given top to bottom; a negative h stores them top-down.
func bmp32(w, h int, rm, gm, bm uint32, rows [][]color.NRGBA) []byte {
	n := h
	if n < 0 {
		n = -n
	}
	var buf bytes.Buffer
	le := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("BM")
	le(uint32(66 + 4*w*n))
	le(uint32(0))
	le(uint32(66))

	le(uint32(40))
	le(int32(w))
	le(int32(h))
	le(uint16(1))
	le(uint16(32))
	le(uint32(3))
	le(uint32(4 * w * n))
	le(int32(2835))
	le(int32(2835))
	le(uint32(0))
	le(uint32(0))
	le(rm)
	le(gm)
	le(bm)

	am := ^(rm | gm | bm)
	place := func(v uint8, mask uint32) uint32 {
		if mask == 0 {
			return 0
		}
		return uint32(v) << bits.TrailingZeros32(mask)
	}
	for i := range n {
		y := n - 1 - i
		if h < 0 {
			y = i
		}
		for _, c := range rows[y] {
			le(place(c.R, rm) | place(c.G, gm) | place(c.B, bm) | place(c.A, am))
		}
	}
	return buf.Bytes()
}

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	white = color.RGBA{255, 255, 255, 255}
)

func TestLoadBMP24ReordersChannelsBottomUp(t *testing.T) {
	data := bmp24(2, 2, [][]color.RGBA{
		{blue, white},
		{red, green},
	})

	a := arena.New(1 << 10)
	tex, err := LoadBMP(data, a)
	require.NoError(t, err)

	assert.Equal(t, 2, tex.Width)
	assert.Equal(t, 2, tex.Height)
	assert.Equal(t, 3, tex.Channels)
	assert.Equal(t, 6, tex.Pitch())
	assert.Equal(t, []byte{
		255, 0, 0, 0, 255, 0, // bottom row
		0, 0, 255, 255, 255, 255, // top row
	}, tex.Data[:12])
	assert.True(t, tex.Handle.IsNil())
	assert.Greater(t, a.Len(), 0, "pixels come from the arena")
}

func TestLoadBMPBitfieldsMaskOrders(t *testing.T) {
	rows := [][]color.NRGBA{
		{{R: 10, G: 20, B: 30, A: 255}},  // top
		{{R: 255, G: 255, B: 255, A: 64}}, // bottom
	}
	for name, m := range map[string][3]uint32{
		"BGRA": {0x00ff0000, 0x0000ff00, 0x000000ff},
		"RGBA": {0xff000000, 0x00ff0000, 0x0000ff00},
		"ABGR": {0x000000ff, 0x0000ff00, 0x00ff0000},
		"ARGB": {0x0000ff00, 0x00ff0000, 0xff000000},
	} {
		t.Run(name, func(t *testing.T) {
			tex, err := LoadBMP(bmp32(1, 2, m[0], m[1], m[2], rows), arena.New(1<<10))
			require.NoError(t, err)

			assert.Equal(t, 4, tex.Channels)
			assert.Equal(t, 1, tex.Width)
			assert.Equal(t, 2, tex.Height)
			// bottom row first, premultiplied like FromImage
			assert.Equal(t, []byte{128, 128, 128, 64}, tex.Data[0:4])
			assert.Equal(t, []byte{10, 20, 30, 255}, tex.Data[4:8])
		})
	}
}

func TestLoadBMPBitfieldsTopDown(t *testing.T) {
	rows := [][]color.NRGBA{
		{{R: 1, G: 2, B: 3, A: 255}},
		{{R: 4, G: 5, B: 6, A: 255}},
	}
	tex, err := LoadBMP(bmp32(1, -2, 0x00ff0000, 0x0000ff00, 0x000000ff, rows), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5, 6, 255, 1, 2, 3, 255}, tex.Data)
}

func TestLoadBMPBitfieldsWithoutAlphaBitsIsOpaque(t *testing.T) {
	// 11-11-10 masks use every bit
	px := [][]color.NRGBA{{{}}}
	data := bmp32(1, 1, 0xffe00000, 0x001ffc00, 0x000003ff, px)
	binary.LittleEndian.PutUint32(data[66:], 0xffffffff)

	tex, err := LoadBMP(data, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 255, 255, 255}, tex.Data)
}

func TestLoadBMPBitfieldsRejectsBadHeaders(t *testing.T) {
	rows := [][]color.NRGBA{{{A: 255}}}

	overlap := bmp32(1, 1, 0x00ff0000, 0x00ff0000, 0x000000ff, rows)
	_, err := LoadBMP(overlap, nil)
	assert.Error(t, err)

	zero := bmp32(1, 1, 0, 0x0000ff00, 0x000000ff, rows)
	_, err = LoadBMP(zero, nil)
	assert.Error(t, err)

	truncated := bmp32(2, 2, 0x00ff0000, 0x0000ff00, 0x000000ff,
		[][]color.NRGBA{{{}, {}}, {{}, {}}})
	_, err = LoadBMP(truncated[:len(truncated)-1], nil)
	assert.Error(t, err)

	bpp24 := bmp32(1, 1, 0x00ff0000, 0x0000ff00, 0x000000ff, rows)
	binary.LittleEndian.PutUint16(bpp24[28:], 24)
	_, err = LoadBMP(bpp24, nil)
	assert.Error(t, err)
}

func TestLoadBMPRejectsOtherFormats(t *testing.T) {
	_, err := LoadBMP([]byte("\x89PNG\r\n\x1a\n0000000000000000000000000000"), nil)
	assert.ErrorIs(t, err, ErrNotBMP)

	_, err = LoadBMP([]byte("BM"), nil)
	assert.ErrorIs(t, err, ErrNotBMP)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icon.bmp")
	require.NoError(t, os.WriteFile(path, bmp24(1, 1, [][]color.RGBA{{green}}), 0o644))

	tex, err := LoadFile(path, arena.New(1<<10))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255, 0}, tex.Data)

	_, err = LoadFile(filepath.Join(dir, "missing.bmp"), nil)
	assert.Error(t, err)
}

func TestFromImagePremultipliesAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	img.SetNRGBA(0, 0, color.NRGBA{255, 128, 0, 255})
	img.SetNRGBA(0, 1, color.NRGBA{255, 255, 255, 64})

	tex, err := FromImage(img, 4, nil)
	require.NoError(t, err)

	// bottom row first
	bottom, top := tex.Data[0:4], tex.Data[4:8]
	assert.Equal(t, []byte{255, 128, 0, 255}, top, "opaque pixels are unchanged")
	// 255 * sqrt(64/255) = 127.75
	assert.Equal(t, []byte{128, 128, 128, 64}, bottom)
}

func TestPremultiply(t *testing.T) {
	assert.Equal(t, uint8(0), premultiply(200, 0))
	assert.Equal(t, uint8(200), premultiply(200, 255))
	assert.Equal(t, uint8(0), premultiply(0, 128))
}

func TestValidate(t *testing.T) {
	ok := &Texture{Width: 2, Height: 1, Channels: 4, Data: make([]byte, 8)}
	assert.NoError(t, ok.Validate())

	for name, tex := range map[string]*Texture{
		"nil":         nil,
		"no data":     {Width: 2, Height: 1, Channels: 4},
		"zero width":  {Width: 0, Height: 1, Channels: 4, Data: make([]byte, 8)},
		"zero height": {Width: 2, Height: 0, Channels: 4, Data: make([]byte, 8)},
		"channels":    {Width: 2, Height: 1, Channels: 2, Data: make([]byte, 8)},
		"short data":  {Width: 2, Height: 2, Channels: 4, Data: make([]byte, 8)},
	} {
		assert.ErrorIs(t, tex.Validate(), ErrInvalid, name)
	}
}

func TestFormat(t *testing.T) {
	for channels, want := range map[int]gpu.Format{4: gpu.FormatRGBA8, 3: gpu.FormatRGB8, 1: gpu.FormatR8} {
		f, err := (&Texture{Channels: channels}).Format()
		require.NoError(t, err)
		assert.Equal(t, want, f)
	}
}

type countingUploader struct{ n int }

func (u *countingUploader) UploadTexture(t *Texture) error {
	u.n++
	t.Handle = gpu.NewHandle(gpu.KindHeadless, gpu.ClassTexture, uint32(u.n))
	return nil
}

func TestCacheLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bmp")
	require.NoError(t, os.WriteFile(path, bmp24(1, 1, [][]color.RGBA{{red}}), 0o644))

	u := &countingUploader{}
	c := NewCache(u, nil)
	t1, err := c.Get(path)
	require.NoError(t, err)
	t2, err := c.Get(path)
	require.NoError(t, err)

	assert.Same(t, t1, t2)
	assert.Equal(t, 1, u.n)
	assert.Equal(t, 1, c.Len())
	assert.True(t, t1.Uploaded())
}
