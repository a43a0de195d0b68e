package text

import "strings"

// Rect is a pixel-space rectangle with a top-left origin. A zero W disables
// wrapping, a zero H disables clipping.
type Rect struct {
	X, Y, W, H float32
}

func (a *Atlas) advance(r rune) float32 {
	if g, ok := a.Glyphs[r]; ok {
		return g.Advance
	}
	return a.Glyphs[' '].Advance
}

func (a *Atlas) wordWidth(w string) float32 {
	var width float32
	for _, r := range w {
		width += a.advance(r)
	}
	return width
}

// Layout places s inside bounds, wrapping at spaces, and calls emit with the
// pen position on the baseline for every drawable glyph. Lines that do not
// fit vertically are dropped. It returns the number of lines laid out.
func (a *Atlas) Layout(s string, bounds Rect, emit func(g Glyph, x, y float32)) int {
	line := 0
	fits := func() bool {
		return bounds.H <= 0 || float32(line+1)*a.LineHeight <= bounds.H
	}

	for i, para := range strings.Split(s, "\n") {
		if i > 0 {
			line++
		}
		if !fits() {
			return line
		}
		x := bounds.X
		for j, word := range strings.Split(para, " ") {
			ww := a.wordWidth(word)
			if j > 0 {
				space := a.advance(' ')
				if bounds.W > 0 && x+space+ww > bounds.X+bounds.W && x > bounds.X {
					line++
					if !fits() {
						return line
					}
					x = bounds.X
				} else {
					x += space
				}
			}
			y := bounds.Y + a.Ascent + float32(line)*a.LineHeight
			for _, r := range word {
				g, ok := a.Glyphs[r]
				if ok && g.W > 0 && g.H > 0 && emit != nil {
					emit(g, x, y)
				}
				x += a.advance(r)
			}
		}
	}
	return line + 1
}

// Measure returns the size of s laid out without wrapping.
func (a *Atlas) Measure(s string) (w, h float32) {
	lines := strings.Split(s, "\n")
	for _, l := range lines {
		w = max(w, a.wordWidth(l))
	}
	return w, float32(len(lines)) * a.LineHeight
}
