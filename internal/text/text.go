// Package text draws strings from a baked glyph atlas. It is a separate GPU
// client from the quad renderer: it owns its own program, buffers and atlas
// texture and only shares the backend and the presentation surface.
package text

import (
	"fmt"

	"grapple/internal/gpu"
	"grapple/internal/log"

	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is one corner of a glyph quad.
type Vertex struct {
	Pos   mgl32.Vec2
	UV    mgl32.Vec2
	Color gpu.Color
}

const (
	vertexSize            = 32
	DefaultSize           = 16
	DefaultGlyphsPerBatch = 2048
	maxGlyphsPerBatch     = 16384
)

var vertexLayout = gpu.VertexLayout{
	Stride: vertexSize,
	Attributes: []gpu.VertexAttribute{
		{Name: "aPos", Location: 0, Components: 2, Offset: 0},
		{Name: "aTexCoord", Location: 1, Components: 2, Offset: 8},
		{Name: "aColor", Location: 2, Components: 4, Offset: 16},
	},
}

// Options configure the font and batch size. Zero values select defaults.
type Options struct {
	// Font is an OpenType/TrueType file; nil selects Go Regular.
	Font           []byte
	Size           float64
	Runes          []RuneRange
	GlyphsPerBatch int
}

func (o *Options) defaults() {
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.Runes == nil {
		o.Runes = DefaultRunes
	}
	if o.GlyphsPerBatch <= 0 {
		o.GlyphsPerBatch = DefaultGlyphsPerBatch
	}
	o.GlyphsPerBatch = min(o.GlyphsPerBatch, maxGlyphsPerBatch)
}

type Renderer struct {
	backend gpu.Backend
	owned   *gpu.Owned
	log     *log.Logger
	atlas   *Atlas

	program  gpu.Handle
	vertices gpu.Handle
	indices  gpu.Handle
	uniforms gpu.Handle
	sampler  gpu.Handle
	blend    gpu.Handle
	texture  gpu.Handle

	queue    []Vertex
	capacity int

	batches, glyphs int
	destroyed       bool
}

// New builds the atlas and the GPU objects needed to draw it onto a
// width x height surface.
func New(b gpu.Backend, width, height int, opts Options, lg *log.Logger) (_ *Renderer, err error) {
	opts.defaults()

	atlas, err := BuildAtlas(opts.Font, opts.Size, opts.Runes)
	if err != nil {
		return nil, fmt.Errorf("text: %w", err)
	}

	r := &Renderer{
		backend:  b,
		owned:    gpu.NewOwned(b),
		log:      lg,
		atlas:    atlas,
		capacity: opts.GlyphsPerBatch,
	}
	defer func() {
		if err != nil {
			r.owned.Release()
		}
	}()

	if r.program, err = b.CreateProgram(gpu.ProgramDesc{
		Name:         "text",
		Layout:       vertexLayout,
		UniformBlock: "Projection",
		Sampler:      "uAtlas",
	}); err != nil {
		return nil, fmt.Errorf("text: create program: %w", err)
	}
	r.owned.Add(r.program)

	if r.vertices, err = b.CreateBuffer(gpu.BufferDesc{
		Kind: gpu.VertexBuffer, Usage: gpu.Dynamic, Size: r.capacity * 4 * vertexSize,
	}, nil); err != nil {
		return nil, fmt.Errorf("text: create vertex buffer: %w", err)
	}
	r.owned.Add(r.vertices)

	indices := gpu.QuadIndices(r.capacity)
	if r.indices, err = b.CreateBuffer(gpu.BufferDesc{
		Kind: gpu.IndexBuffer, Usage: gpu.Immutable, Size: len(indices) * 2,
	}, gpu.Bytes(indices)); err != nil {
		return nil, fmt.Errorf("text: create index buffer: %w", err)
	}
	r.owned.Add(r.indices)

	if r.uniforms, err = b.CreateBuffer(gpu.BufferDesc{
		Kind: gpu.UniformBuffer, Usage: gpu.Dynamic, Size: 64,
	}, nil); err != nil {
		return nil, fmt.Errorf("text: create uniform buffer: %w", err)
	}
	r.owned.Add(r.uniforms)

	if r.sampler, err = b.CreateSampler(gpu.SamplerDesc{Filter: gpu.FilterLinear, Address: gpu.AddressClamp}); err != nil {
		return nil, fmt.Errorf("text: create sampler: %w", err)
	}
	r.owned.Add(r.sampler)

	if r.blend, err = b.CreateBlendState(gpu.AlphaBlend); err != nil {
		return nil, fmt.Errorf("text: create blend state: %w", err)
	}
	r.owned.Add(r.blend)

	if r.texture, err = b.CreateTexture(gpu.TextureDesc{
		Width: atlas.Width, Height: atlas.Height, Format: gpu.FormatR8,
	}, atlas.Pixels); err != nil {
		return nil, fmt.Errorf("text: upload atlas: %w", err)
	}
	r.owned.Add(r.texture)

	if err = r.Resize(width, height); err != nil {
		return nil, err
	}

	lg.Info("text renderer ready",
		"atlas_w", atlas.Width, "atlas_h", atlas.Height,
		"glyphs", len(atlas.Glyphs), "size", opts.Size)
	return r, nil
}

func (r *Renderer) mustBeAlive(op string) {
	if r.destroyed {
		panic("text: " + op + " on destroyed renderer")
	}
}

// Atlas returns the baked glyph atlas.
func (r *Renderer) Atlas() *Atlas { return r.atlas }

// Resize updates the projection for a new surface size.
func (r *Renderer) Resize(width, height int) error {
	r.mustBeAlive("Resize")
	proj := mgl32.Ortho(0, float32(width), float32(height), 0, -1, 1)
	if err := r.backend.WriteBuffer(r.uniforms, gpu.Bytes(proj[:])); err != nil {
		return fmt.Errorf("text: write projection: %w", err)
	}
	return nil
}

// Draw queues s laid out inside bounds. Nothing reaches the GPU until Flush.
func (r *Renderer) Draw(s string, bounds Rect, c gpu.Color) {
	r.mustBeAlive("Draw")
	aw, ah := float32(r.atlas.Width), float32(r.atlas.Height)
	r.atlas.Layout(s, bounds, func(g Glyph, x, y float32) {
		x0, y0 := x+g.BearingX, y+g.BearingY
		x1, y1 := x0+g.W, y0+g.H
		u0, v0 := g.X/aw, g.Y/ah
		u1, v1 := (g.X+g.W)/aw, (g.Y+g.H)/ah
		r.queue = append(r.queue,
			Vertex{Pos: mgl32.Vec2{x0, y0}, UV: mgl32.Vec2{u0, v0}, Color: c},
			Vertex{Pos: mgl32.Vec2{x1, y0}, UV: mgl32.Vec2{u1, v0}, Color: c},
			Vertex{Pos: mgl32.Vec2{x0, y1}, UV: mgl32.Vec2{u0, v1}, Color: c},
			Vertex{Pos: mgl32.Vec2{x1, y1}, UV: mgl32.Vec2{u1, v1}, Color: c},
		)
		r.glyphs++
	})
}

// Measure returns the unwrapped size of s in pixels.
func (r *Renderer) Measure(s string) (w, h float32) {
	return r.atlas.Measure(s)
}

// Pending returns the number of queued glyphs.
func (r *Renderer) Pending() int { return len(r.queue) / 4 }

// Flush submits queued glyphs, one draw per full vertex buffer.
func (r *Renderer) Flush() error {
	r.mustBeAlive("Flush")
	for off := 0; off < len(r.queue); {
		n := min((len(r.queue)-off)/4, r.capacity)
		if err := r.backend.WriteBuffer(r.vertices, gpu.Bytes(r.queue[off:off+n*4])); err != nil {
			return fmt.Errorf("text: upload glyphs: %w", err)
		}
		if err := r.backend.DrawIndexed(gpu.DrawCall{
			Program:    r.program,
			Vertices:   r.vertices,
			Indices:    r.indices,
			Uniforms:   r.uniforms,
			Texture:    r.texture,
			Sampler:    r.sampler,
			Blend:      r.blend,
			IndexCount: n * 6,
		}); err != nil {
			return fmt.Errorf("text: draw: %w", err)
		}
		r.batches++
		off += n * 4
	}
	r.queue = r.queue[:0]
	return nil
}

// Stats returns draws and glyphs since the last ResetStats.
func (r *Renderer) Stats() (batches, glyphs int) { return r.batches, r.glyphs }

func (r *Renderer) ResetStats() { r.batches, r.glyphs = 0, 0 }

// Destroy releases the renderer's GPU objects. The renderer must not be used
// afterwards.
func (r *Renderer) Destroy() error {
	if r.destroyed {
		return nil
	}
	r.destroyed = true
	r.queue = nil
	return r.owned.Release()
}
