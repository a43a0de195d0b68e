package text

import (
	"errors"
	"testing"

	"grapple/internal/gpu"
	"grapple/internal/gpu/gputest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildAtlas(t *testing.T) *Atlas {
	t.Helper()
	a, err := BuildAtlas(nil, DefaultSize, DefaultRunes)
	require.NoError(t, err)
	return a
}

func TestBuildAtlas(t *testing.T) {
	a := buildAtlas(t)

	assert.Equal(t, atlasWidth, a.Width)
	assert.Zero(t, a.Height&(a.Height-1), "height %d is a power of two", a.Height)
	assert.Len(t, a.Pixels, a.Width*a.Height)
	assert.Greater(t, a.LineHeight, float32(0))

	for _, r := range []rune{'A', 'g', ' ', 'α', 'Ω'} {
		_, ok := a.Glyphs[r]
		assert.True(t, ok, "glyph %q", r)
	}
	space := a.Glyphs[' ']
	assert.Zero(t, space.W)
	assert.Greater(t, space.Advance, float32(0))

	g := a.Glyphs['A']
	assert.LessOrEqual(t, g.X+g.W, float32(a.Width))
	assert.LessOrEqual(t, g.Y+g.H, float32(a.Height))
	assert.Less(t, g.BearingY, float32(0), "glyph sits above the baseline")
}

func TestBuildAtlasWidensForLargeGlyphs(t *testing.T) {
	a, err := BuildAtlas(nil, 1000, []RuneRange{{'W', 'W'}})
	require.NoError(t, err)

	g := a.Glyphs['W']
	require.Greater(t, g.W, float32(atlasWidth), "glyph is wider than a default row")
	assert.GreaterOrEqual(t, float32(a.Width), g.X+g.W)
	assert.Zero(t, a.Width&(a.Width-1), "width %d is a power of two", a.Width)
	assert.Len(t, a.Pixels, a.Width*a.Height)
}

func TestLayoutWrapsAtSpaces(t *testing.T) {
	a := buildAtlas(t)
	width := a.wordWidth("hello")

	var ys []float32
	lines := a.Layout("hello world", Rect{W: width + 1}, func(g Glyph, x, y float32) {
		ys = append(ys, y)
	})

	assert.Equal(t, 2, lines)
	require.Len(t, ys, 10)
	assert.Equal(t, a.Ascent, ys[0])
	assert.Equal(t, a.Ascent+a.LineHeight, ys[9])
}

func TestLayoutNewlinesAndClipping(t *testing.T) {
	a := buildAtlas(t)

	n := 0
	lines := a.Layout("one\ntwo\nthree", Rect{H: a.LineHeight * 2}, func(Glyph, float32, float32) { n++ })
	assert.Equal(t, 2, lines)
	assert.Equal(t, 6, n, "third line is clipped")

	w, h := a.Measure("one\nthree")
	assert.Equal(t, a.wordWidth("three"), w)
	assert.Equal(t, 2*a.LineHeight, h)
}

func TestLayoutMissingGlyphAdvancesBySpace(t *testing.T) {
	a := buildAtlas(t)
	var xs []float32
	a.Layout("a世b", Rect{}, func(g Glyph, x, y float32) { xs = append(xs, x) })

	require.Len(t, xs, 2)
	assert.Equal(t, a.Glyphs['a'].Advance+a.Glyphs[' '].Advance, xs[1])
}

func TestRendererFlushBatches(t *testing.T) {
	rec := gputest.New()
	r, err := New(rec, 800, 600, Options{GlyphsPerBatch: 2}, nil)
	require.NoError(t, err)
	rec.ResetCalls()

	r.Draw("abc d", Rect{X: 10, Y: 10}, gpu.White)
	assert.Equal(t, 4, r.Pending())

	require.NoError(t, r.Flush())
	require.Len(t, rec.Draws, 2)
	assert.Equal(t, 12, rec.Draws[0].IndexCount)
	assert.Equal(t, 12, rec.Draws[1].IndexCount)
	assert.Zero(t, r.Pending())

	batches, glyphs := r.Stats()
	assert.Equal(t, 2, batches)
	assert.Equal(t, 4, glyphs)

	// empty flush issues nothing
	require.NoError(t, r.Flush())
	assert.Len(t, rec.Draws, 2)

	r.ResetStats()
	batches, glyphs = r.Stats()
	assert.Zero(t, batches+glyphs)
}

func TestRendererUploadsAtlasAsSingleChannel(t *testing.T) {
	rec := gputest.New()
	r, err := New(rec, 640, 480, Options{}, nil)
	require.NoError(t, err)

	require.Len(t, rec.Textures, 1)
	for _, tex := range rec.Textures {
		assert.Equal(t, gpu.FormatR8, tex.Desc.Format)
		assert.Equal(t, r.Atlas().Width, tex.Desc.Width)
	}
	assert.Len(t, rec.Writes[r.uniforms], 64)
}

func TestRendererDestroyReleasesEverything(t *testing.T) {
	rec := gputest.New()
	r, err := New(rec, 640, 480, Options{}, nil)
	require.NoError(t, err)
	require.Equal(t, 7, rec.Live())

	require.NoError(t, r.Destroy())
	assert.Zero(t, rec.Live())
	assert.Equal(t, r.texture, rec.Released[0], "atlas was acquired last")
	assert.Panics(t, func() { r.Draw("x", Rect{}, gpu.White) })
	assert.NoError(t, r.Destroy())
}

func TestNewReleasesOnFailure(t *testing.T) {
	rec := gputest.New()
	boom := errors.New("out of video memory")
	rec.FailOn(gputest.OpCreateTexture, boom)

	_, err := New(rec, 640, 480, Options{}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, rec.Live())
}
