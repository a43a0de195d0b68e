package main

import (
	"grapple/internal/arena"
	"grapple/internal/texture"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

const (
	iconSize    = 32
	iconY       = 50
	slideFrom   = 50
	slideTo     = 250
	slideTime   = 1.5
	gridCols    = 16
	gridRows    = 8
	gridCell    = 20
	gridOriginX = 50
	gridOriginY = 160
)

type quadDrawer interface {
	DrawTexture(t *texture.Texture, pos, dim mgl32.Vec2) error
}

// scene slides the icon back and forth and optionally draws a grid of
// alternating textures, which forces a batch break per cell. The icon can be
// dragged with the mouse; the slide resumes from where it is dropped.
type scene struct {
	icon, tile *texture.Texture

	slide   *gween.Tween
	pos     mgl32.Vec2
	forward bool

	dragging   bool
	grabOffset mgl32.Vec2
	bounds     mgl32.Vec2

	paused   bool
	showGrid bool

	// per-frame positions; reset at the start of every draw
	scratch *arena.Arena
}

func newScene(icon, tile *texture.Texture, scratch *arena.Arena, width, height int) *scene {
	return &scene{
		icon:    icon,
		tile:    tile,
		slide:   gween.New(slideFrom, slideTo, slideTime, ease.InOutQuad),
		pos:     mgl32.Vec2{slideFrom, iconY},
		forward: true,
		bounds:  mgl32.Vec2{float32(width), float32(height)},
		scratch: scratch,
	}
}

func (s *scene) update(dt float64) {
	if s.paused || s.dragging {
		return
	}
	x, done := s.slide.Update(float32(dt))
	s.pos[0] = x
	if done {
		s.forward = !s.forward
		s.restartSlide()
	}
}

// restartSlide tweens from the current x to the end the icon is heading for.
func (s *scene) restartSlide() {
	to := float32(slideFrom)
	if s.forward {
		to = slideTo
	}
	s.slide = gween.New(s.pos.X(), to, slideTime, ease.InOutQuad)
}

// resize keeps the icon reachable after the surface shrinks.
func (s *scene) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.bounds = mgl32.Vec2{float32(width), float32(height)}
	s.pos = s.clamp(s.pos)
}

func (s *scene) clamp(p mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{
		mgl32.Clamp(p.X(), 0, max(s.bounds.X()-iconSize, 0)),
		mgl32.Clamp(p.Y(), 0, max(s.bounds.Y()-iconSize, 0)),
	}
}

// press starts a drag when the cursor is over the icon.
func (s *scene) press(cursor mgl32.Vec2) {
	rel := cursor.Sub(s.pos)
	if rel.X() < 0 || rel.Y() < 0 || rel.X() >= iconSize || rel.Y() >= iconSize {
		return
	}
	s.dragging = true
	s.grabOffset = rel
}

func (s *scene) dragTo(cursor mgl32.Vec2) {
	if s.dragging {
		s.pos = s.clamp(cursor.Sub(s.grabOffset))
	}
}

func (s *scene) release() {
	if s.dragging {
		s.dragging = false
		s.restartSlide()
	}
}

func (s *scene) gridPositions() ([]mgl32.Vec2, error) {
	s.scratch.Reset()
	pos, err := arena.MakeSlice[mgl32.Vec2](s.scratch, gridCols*gridRows)
	if err != nil {
		return nil, err
	}
	for i := range pos {
		col, row := i%gridCols, i/gridCols
		pos[i] = mgl32.Vec2{gridOriginX + float32(col*gridCell), gridOriginY + float32(row*gridCell)}
	}
	return pos, nil
}

func (s *scene) draw(d quadDrawer) error {
	if err := d.DrawTexture(s.icon, s.pos, mgl32.Vec2{iconSize, iconSize}); err != nil {
		return err
	}
	if !s.showGrid {
		return nil
	}

	pos, err := s.gridPositions()
	if err != nil {
		return err
	}
	dim := mgl32.Vec2{gridCell - 2, gridCell - 2}
	for i, p := range pos {
		t := s.tile
		if i%2 == 1 {
			t = s.icon
		}
		if err := d.DrawTexture(t, p, dim); err != nil {
			return err
		}
	}
	return nil
}
