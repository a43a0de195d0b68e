package text

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// RuneRange is an inclusive range of code points to bake into the atlas.
type RuneRange struct {
	First, Last rune
}

// DefaultRunes covers printable ASCII and the Greek block.
var DefaultRunes = []RuneRange{
	{0x20, 0x7e},
	{0x391, 0x3c9},
}

// Glyph is one character's placement in the atlas and its metrics.
type Glyph struct {
	// Pixel rectangle in the atlas (top-left origin).
	X, Y, W, H float32
	// Offset from the pen position on the baseline to the top-left of the
	// glyph bitmap.
	BearingX, BearingY float32
	Advance            float32
}

// Atlas is a single-channel coverage bitmap holding a glyph set.
type Atlas struct {
	Width, Height int
	// Pixels is Width*Height bytes of coverage, top row first.
	Pixels     []byte
	Glyphs     map[rune]Glyph
	Ascent     float32
	LineHeight float32
}

const (
	atlasWidth   = 512
	glyphPadding = 1
)

// BuildAtlas rasterizes runes from an OpenType font at size pixels. A nil ttf
// selects the embedded Go Regular face.
func BuildAtlas(ttf []byte, size float64, runes []RuneRange) (*Atlas, error) {
	if ttf == nil {
		ttf = goregular.TTF
	}
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	defer face.Close()

	type placed struct {
		r    rune
		dr   image.Rectangle
		mask image.Image
		mp   image.Point
		adv  fixed.Int26_6
	}
	var glyphs []placed
	for _, rr := range runes {
		for r := rr.First; r <= rr.Last; r++ {
			dr, mask, mp, adv, ok := face.Glyph(fixed.P(0, 0), r)
			if !ok {
				continue
			}
			glyphs = append(glyphs, placed{r, dr, mask, mp, adv})
		}
	}

	// glyphs wider than a row widen the atlas
	width := atlasWidth
	for _, g := range glyphs {
		width = max(width, nextPow2(g.dr.Dx()+glyphPadding))
	}

	// row packing pass to size the atlas
	x, y, rowH := 0, 0, 0
	origins := make([]image.Point, len(glyphs))
	for i, g := range glyphs {
		w, h := g.dr.Dx(), g.dr.Dy()
		if w == 0 || h == 0 {
			continue
		}
		if x+w+glyphPadding > width {
			x, y = 0, y+rowH+glyphPadding
			rowH = 0
		}
		origins[i] = image.Pt(x, y)
		x += w + glyphPadding
		rowH = max(rowH, h)
	}
	height := nextPow2(y + rowH + glyphPadding)

	img := image.NewAlpha(image.Rect(0, 0, width, height))
	atlas := &Atlas{
		Width:  width,
		Height: height,
		Glyphs: make(map[rune]Glyph, len(glyphs)),
	}
	for i, g := range glyphs {
		w, h := g.dr.Dx(), g.dr.Dy()
		o := origins[i]
		if w > 0 && h > 0 && g.mask != nil {
			draw.Draw(img, image.Rect(o.X, o.Y, o.X+w, o.Y+h), g.mask, g.mp, draw.Src)
		}
		atlas.Glyphs[g.r] = Glyph{
			X: float32(o.X), Y: float32(o.Y),
			W: float32(w), H: float32(h),
			BearingX: float32(g.dr.Min.X),
			BearingY: float32(g.dr.Min.Y),
			Advance:  float32(math.Round(float64(g.adv) / 64)),
		}
	}
	atlas.Pixels = img.Pix

	m := face.Metrics()
	atlas.Ascent = float32(m.Ascent.Ceil())
	atlas.LineHeight = float32(m.Height.Ceil())
	return atlas, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
