package renderer

import (
	"fmt"
	"log/slog"

	"grapple/internal/gpu"
)

// Stats counts one frame's GPU traffic.
type Stats struct {
	Batches     int
	Quads       int
	TextBatches int
	Glyphs      int
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("batches", s.Batches),
		slog.Int("quads", s.Quads),
		slog.Int("text_batches", s.TextBatches),
		slog.Int("glyphs", s.Glyphs))
}

// BeginFrame starts a frame sized to win. The projection and viewport follow
// the surface when its size changed; the projection is uploaded and bound
// every frame regardless. Per-frame counters start from zero.
func (r *Renderer) BeginFrame(win Surface) error {
	r.mustNotBeDestroyed("BeginFrame")
	if r.state == stateFrameBegun {
		panic("renderer: BeginFrame called twice without EndFrame")
	}

	// a minimized window reports 0x0; keep drawing at the last real size
	if w, h := win.Size(); w > 0 && h > 0 && (w != r.width || h != r.height) {
		r.log.Info("surface resized",
			slog.Int("from_width", r.width), slog.Int("from_height", r.height),
			slog.Int("width", w), slog.Int("height", h))
		r.width, r.height = w, h
		if err := r.text.Resize(w, h); err != nil {
			return err
		}
	}
	r.backend.BindRenderTarget(r.width, r.height)
	if err := r.SetProjection(Ortho(r.width, r.height)); err != nil {
		return err
	}

	r.quadsInBatch = 0
	r.batchCount = 0
	r.totalQuads = 0
	r.current = gpu.Handle{}
	r.text.ResetStats()
	r.state = stateFrameBegun
	return nil
}

// Clear submits pending quads, then clears the render target to c.
func (r *Renderer) Clear(c gpu.Color) error {
	r.mustNotBeDestroyed("Clear")
	if err := r.flush(); err != nil {
		return err
	}
	r.backend.BindRenderTarget(r.width, r.height)
	r.backend.Clear(c)
	return nil
}

// EndFrame submits the pending batch and queued text, then presents. With
// nothing pending it presents without drawing.
func (r *Renderer) EndFrame() error {
	r.mustNotBeDestroyed("EndFrame")
	if r.state != stateFrameBegun {
		panic("renderer: EndFrame without BeginFrame")
	}
	r.state = stateIdle

	if err := r.flush(); err != nil {
		return err
	}
	if err := r.text.Flush(); err != nil {
		return err
	}
	if err := r.backend.Present(); err != nil {
		return fmt.Errorf("renderer: present: %w", err)
	}

	textBatches, glyphs := r.text.Stats()
	r.last = Stats{
		Batches:     r.batchCount,
		Quads:       r.totalQuads,
		TextBatches: textBatches,
		Glyphs:      glyphs,
	}
	r.log.Debug("frame", slog.Any("stats", r.last))
	return nil
}

// Stats returns the counters of the last presented frame.
func (r *Renderer) Stats() Stats { return r.last }

// FrameStats returns the counters of the frame in progress. Batches only
// counts submissions made so far.
func (r *Renderer) FrameStats() Stats {
	tb, g := r.text.Stats()
	return Stats{Batches: r.batchCount, Quads: r.totalQuads, TextBatches: tb, Glyphs: g}
}

// Pending returns the number of quads waiting in the current batch.
func (r *Renderer) Pending() int { return r.quadsInBatch }
