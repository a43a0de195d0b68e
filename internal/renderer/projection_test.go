package renderer

import (
	"math"
	"testing"
	"unsafe"

	"grapple/internal/gpu"
	"grapple/internal/gpu/gputest"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrthoMapsCorners(t *testing.T) {
	const w, h = 800, 600
	m := Ortho(w, h)

	for _, tc := range []struct {
		px, ndc mgl32.Vec2
	}{
		{mgl32.Vec2{0, 0}, mgl32.Vec2{-1, 1}},
		{mgl32.Vec2{w, 0}, mgl32.Vec2{1, 1}},
		{mgl32.Vec2{0, h}, mgl32.Vec2{-1, -1}},
		{mgl32.Vec2{w, h}, mgl32.Vec2{1, -1}},
		{mgl32.Vec2{w / 2, h / 2}, mgl32.Vec2{0, 0}},
	} {
		got := m.Mul4x1(mgl32.Vec4{tc.px.X(), tc.px.Y(), 0, 1})
		if !got.Vec2().ApproxEqual(tc.ndc) || got.W() != 1 {
			t.Fatalf("pixel %v maps to %v, want %v", tc.px, got, tc.ndc)
		}
	}
}

// The buffer holds the column-major form, i.e. the row-major matrix
// transposed.
func TestProjectionUploadIsColumnMajor(t *testing.T) {
	r, rec, _ := newTestRenderer(t, 4)

	data := rec.Writes[r.uniforms]
	require.Len(t, data, projectionSize)
	floats := unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), 16)

	m := Ortho(800, 600)
	rowMajor := m.Transpose()
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			// element (row, col) lives at col*4+row in column-major order
			assert.Equal(t, m.At(row, col), floats[col*4+row])
			assert.Equal(t, rowMajor[row*4+col], floats[col*4+row])
		}
	}
	// the translation sits in the last column
	assert.Equal(t, float32(-1), floats[12])
	assert.Equal(t, float32(1), floats[13])
}

func TestBeginFrameRebindsProjectionEveryFrame(t *testing.T) {
	r, rec, win := newTestRenderer(t, 4)
	rec.ResetCalls()

	for i := 0; i < 3; i++ {
		require.NoError(t, r.BeginFrame(win))
		require.NoError(t, r.EndFrame())
	}
	assert.Equal(t, 3, rec.Count(gputest.OpBindUniformBuffer))
}

func TestBeginFrameFollowsResize(t *testing.T) {
	r, rec, win := newTestRenderer(t, 4)

	win.w, win.h = 1024, 768
	require.NoError(t, r.BeginFrame(win))
	require.NoError(t, r.EndFrame())

	w, h := r.Size()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)
	assert.Equal(t, Ortho(1024, 768), r.Projection())
	assert.Equal(t, [2]int{1024, 768}, rec.Targets[len(rec.Targets)-1])

	// minimized windows keep the last size
	win.w, win.h = 0, 0
	require.NoError(t, r.BeginFrame(win))
	require.NoError(t, r.EndFrame())
	assert.Equal(t, Ortho(1024, 768), r.Projection())
	for _, f := range r.Projection() {
		assert.False(t, math.IsInf(float64(f), 0) || math.IsNaN(float64(f)))
	}
}

func TestSetProjectionFlushesPendingQuads(t *testing.T) {
	r, rec, win := newTestRenderer(t, 8)
	tex := uploaded(t, r, 8, 8)

	require.NoError(t, r.BeginFrame(win))
	require.NoError(t, r.DrawTexture(tex, mgl32.Vec2{}, quadSize))
	require.NoError(t, r.SetProjection(mgl32.Ident4()))
	assert.Equal(t, 1, rec.Count(gputest.OpDrawIndexed))
	assert.Zero(t, r.Pending())
	require.NoError(t, r.EndFrame())
}

func TestClearFlushesThenClears(t *testing.T) {
	r, rec, win := newTestRenderer(t, 8)
	tex := uploaded(t, r, 8, 8)

	require.NoError(t, r.BeginFrame(win))
	require.NoError(t, r.DrawTexture(tex, mgl32.Vec2{}, quadSize))
	rec.ResetCalls()
	grey := gpu.RGBA(0.125, 0.125, 0.125, 1)
	require.NoError(t, r.Clear(grey))
	require.NoError(t, r.EndFrame())

	var ops []string
	for _, c := range rec.Calls {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{
		gputest.OpWriteBuffer, gputest.OpDrawIndexed,
		gputest.OpBindRenderTarget, gputest.OpClear,
		gputest.OpPresent,
	}, ops)
	assert.Equal(t, []gpu.Color{grey}, rec.Clears)
}
