// Package renderer batches textured, axis-aligned quads into as few GPU
// submissions as possible. A batch is closed when the texture changes, when
// the batch is full, or when the frame ends.
package renderer

import (
	"errors"
	"fmt"
	"log/slog"

	"grapple/internal/arena"
	"grapple/internal/gpu"
	"grapple/internal/log"
	"grapple/internal/text"
	"grapple/internal/texture"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultQuadsPerBatch = 1024
	// MaxQuadsPerBatch keeps every vertex addressable by a 16-bit index.
	MaxQuadsPerBatch = 16384

	verticesPerQuad = 4
	indicesPerQuad  = 6
	vertexSize      = 16
	projectionSize  = 64
	projectionSlot  = 0
)

var (
	ErrInvalidTexture  = errors.New("renderer: invalid texture")
	ErrAlreadyUploaded = errors.New("renderer: texture already uploaded")
)

// Vertex is one quad corner in render-target pixels.
type Vertex struct {
	Pos mgl32.Vec2
	UV  mgl32.Vec2
}

var vertexLayout = gpu.VertexLayout{
	Stride: vertexSize,
	Attributes: []gpu.VertexAttribute{
		{Name: "aPos", Location: 0, Components: 2, Offset: 0},
		{Name: "aTexCoord", Location: 1, Components: 2, Offset: 8},
	},
}

// Surface reports the current size of the presentation surface in pixels.
type Surface interface {
	Size() (width, height int)
}

type state uint8

const (
	stateIdle state = iota
	stateFrameBegun
	stateDestroyed
)

// Renderer owns every GPU object used to draw quads onto one window.
// It is not safe for concurrent use.
type Renderer struct {
	backend gpu.Backend
	owned   *gpu.Owned
	log     *log.Logger

	program  gpu.Handle
	vertices gpu.Handle
	indices  gpu.Handle
	uniforms gpu.Handle
	sampler  gpu.Handle
	blend    gpu.Handle

	projection    mgl32.Mat4
	width, height int

	staging       []Vertex
	quadsPerBatch int
	quadsInBatch  int
	batchCount    int
	totalQuads    int
	current       gpu.Handle

	textures     []*texture.Texture
	textureBytes int

	text  *text.Renderer
	state state
	last  Stats
}

// New creates the renderer for win. The staging vertex array is allocated
// from a. If any GPU object cannot be created, the ones created so far are
// released and the error is returned.
func New(b gpu.Backend, win Surface, a *arena.Arena, opts ...Option) (_ *Renderer, err error) {
	o := options{quadsPerBatch: DefaultQuadsPerBatch}
	for _, opt := range opts {
		opt(&o)
	}
	if o.quadsPerBatch < 1 || o.quadsPerBatch > MaxQuadsPerBatch {
		return nil, fmt.Errorf("renderer: quads per batch %d outside [1, %d]", o.quadsPerBatch, MaxQuadsPerBatch)
	}

	r := &Renderer{
		backend:       b,
		owned:         gpu.NewOwned(b),
		log:           o.logger,
		quadsPerBatch: o.quadsPerBatch,
	}
	defer func() {
		if err != nil {
			if r.text != nil {
				r.text.Destroy()
			}
			r.owned.Release()
		}
	}()

	r.width, r.height = win.Size()
	if r.width <= 0 || r.height <= 0 {
		return nil, fmt.Errorf("renderer: surface is %dx%d", r.width, r.height)
	}
	b.BindRenderTarget(r.width, r.height)

	if r.program, err = b.CreateProgram(gpu.ProgramDesc{
		Name:         "quad",
		Layout:       vertexLayout,
		UniformBlock: "Projection",
		Sampler:      "uTexture",
	}); err != nil {
		return nil, fmt.Errorf("renderer: create program: %w", err)
	}
	r.owned.Add(r.program)

	n := r.quadsPerBatch
	if r.vertices, err = b.CreateBuffer(gpu.BufferDesc{
		Kind: gpu.VertexBuffer, Usage: gpu.Dynamic, Size: n * verticesPerQuad * vertexSize,
	}, nil); err != nil {
		return nil, fmt.Errorf("renderer: create vertex buffer: %w", err)
	}
	r.owned.Add(r.vertices)

	indices := gpu.QuadIndices(n)
	if r.indices, err = b.CreateBuffer(gpu.BufferDesc{
		Kind: gpu.IndexBuffer, Usage: gpu.Immutable, Size: len(indices) * 2,
	}, gpu.Bytes(indices)); err != nil {
		return nil, fmt.Errorf("renderer: create index buffer: %w", err)
	}
	r.owned.Add(r.indices)

	if r.sampler, err = b.CreateSampler(gpu.SamplerDesc{Filter: gpu.FilterPoint, Address: gpu.AddressWrap}); err != nil {
		return nil, fmt.Errorf("renderer: create sampler: %w", err)
	}
	r.owned.Add(r.sampler)

	if r.blend, err = b.CreateBlendState(gpu.AlphaBlend); err != nil {
		return nil, fmt.Errorf("renderer: create blend state: %w", err)
	}
	r.owned.Add(r.blend)

	if r.uniforms, err = b.CreateBuffer(gpu.BufferDesc{
		Kind: gpu.UniformBuffer, Usage: gpu.Dynamic, Size: projectionSize,
	}, nil); err != nil {
		return nil, fmt.Errorf("renderer: create projection buffer: %w", err)
	}
	r.owned.Add(r.uniforms)

	if err = r.SetProjection(Ortho(r.width, r.height)); err != nil {
		return nil, err
	}

	if r.text, err = text.New(b, r.width, r.height, o.font, o.logger); err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	if r.staging, err = arena.MakeSlice[Vertex](a, n*verticesPerQuad); err != nil {
		return nil, fmt.Errorf("renderer: staging vertices: %w", err)
	}

	r.log.Info("renderer ready",
		slog.String("backend", b.Kind().String()),
		slog.Int("quads_per_batch", n),
		slog.Int("width", r.width),
		slog.Int("height", r.height))
	return r, nil
}

// Ortho maps top-left-origin pixel coordinates on a width x height surface
// to normalized device coordinates: (0,0) to (-1,+1) and (width,height) to
// (+1,-1).
func Ortho(width, height int) mgl32.Mat4 {
	return mgl32.Ortho(0, float32(width), float32(height), 0, -1, 1)
}

func (r *Renderer) mustNotBeDestroyed(op string) {
	if r.state == stateDestroyed {
		panic("renderer: " + op + " after Destroy")
	}
}

// Text returns the text renderer sharing this renderer's surface.
func (r *Renderer) Text() *text.Renderer {
	r.mustNotBeDestroyed("Text")
	return r.text
}

// Size returns the surface size the current projection was built for.
func (r *Renderer) Size() (width, height int) { return r.width, r.height }

// Projection returns the current projection matrix.
func (r *Renderer) Projection() mgl32.Mat4 { return r.projection }

// QuadsPerBatch returns the batch capacity.
func (r *Renderer) QuadsPerBatch() int { return r.quadsPerBatch }

// SetProjection stores m and uploads it to the projection buffer, then
// rebinds that buffer. Quads queued under the previous projection are
// flushed first.
func (r *Renderer) SetProjection(m mgl32.Mat4) error {
	r.mustNotBeDestroyed("SetProjection")
	if err := r.flush(); err != nil {
		return err
	}
	r.projection = m
	// mgl32 stores matrices column-major, which is the transpose of the
	// row-major math form and the layout the shader consumes.
	if err := r.backend.WriteBuffer(r.uniforms, gpu.Bytes(m[:])); err != nil {
		return fmt.Errorf("renderer: write projection: %w", err)
	}
	if err := r.backend.BindUniformBuffer(r.uniforms, projectionSlot); err != nil {
		return fmt.Errorf("renderer: bind projection: %w", err)
	}
	return nil
}

// UploadTexture creates the GPU texture for t and stores its handle in
// t.Handle. Pixel data is uploaded as is. Invalid textures are rejected
// before the device is touched.
func (r *Renderer) UploadTexture(t *texture.Texture) error {
	r.mustNotBeDestroyed("UploadTexture")
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTexture, err)
	}
	if t.Uploaded() {
		return ErrAlreadyUploaded
	}
	format, _ := t.Format()

	h, err := r.backend.CreateTexture(gpu.TextureDesc{
		Width:  t.Width,
		Height: t.Height,
		Format: format,
	}, t.Data[:t.Pitch()*t.Height])
	if err != nil {
		return fmt.Errorf("renderer: upload %dx%d texture: %w", t.Width, t.Height, err)
	}
	t.Handle = h
	r.textures = append(r.textures, t)
	// 3-channel sources are expanded to RGBA8 on the device
	bpp := 4
	if format == gpu.FormatR8 {
		bpp = 1
	}
	r.textureBytes += t.Width * t.Height * bpp

	r.log.Debug("uploaded texture",
		slog.String("handle", h.String()),
		slog.Int("width", t.Width),
		slog.Int("height", t.Height),
		slog.Int("channels", t.Channels),
		slog.Int("texture_bytes", r.textureBytes))
	return nil
}

// DrawTexture queues t as a quad with its top-left corner at pos and size
// dim, in pixels. The pending batch is submitted first if it uses another
// texture or is full. Drawing outside a frame or with a texture that was
// never uploaded panics.
func (r *Renderer) DrawTexture(t *texture.Texture, pos, dim mgl32.Vec2) error {
	r.mustNotBeDestroyed("DrawTexture")
	if r.state != stateFrameBegun {
		panic("renderer: DrawTexture outside BeginFrame/EndFrame")
	}
	if !t.Uploaded() {
		panic("renderer: DrawTexture with a texture that was never uploaded")
	}

	if r.quadsInBatch > 0 && r.current != t.Handle {
		if err := r.flush(); err != nil {
			return err
		}
	}
	if r.quadsInBatch == r.quadsPerBatch {
		if err := r.flush(); err != nil {
			return err
		}
	}

	x0, y0 := pos.X(), pos.Y()
	x1, y1 := x0+dim.X(), y0+dim.Y()
	// texture rows are stored bottom-up, so v is flipped
	v := r.staging[r.quadsInBatch*verticesPerQuad:][:verticesPerQuad]
	v[0] = Vertex{Pos: mgl32.Vec2{x0, y0}, UV: mgl32.Vec2{0, 1}}
	v[1] = Vertex{Pos: mgl32.Vec2{x1, y0}, UV: mgl32.Vec2{1, 1}}
	v[2] = Vertex{Pos: mgl32.Vec2{x0, y1}, UV: mgl32.Vec2{0, 0}}
	v[3] = Vertex{Pos: mgl32.Vec2{x1, y1}, UV: mgl32.Vec2{1, 0}}

	r.current = t.Handle
	r.quadsInBatch++
	r.totalQuads++
	return nil
}

// flush uploads the pending quads in one write and draws them with one
// indexed call. It does nothing when no quads are pending.
func (r *Renderer) flush() error {
	if r.quadsInBatch == 0 {
		return nil
	}
	n := r.quadsInBatch
	if err := r.backend.WriteBuffer(r.vertices, gpu.Bytes(r.staging[:n*verticesPerQuad])); err != nil {
		return fmt.Errorf("renderer: upload batch: %w", err)
	}
	if err := r.backend.DrawIndexed(gpu.DrawCall{
		Program:    r.program,
		Vertices:   r.vertices,
		Indices:    r.indices,
		Uniforms:   r.uniforms,
		Texture:    r.current,
		Sampler:    r.sampler,
		Blend:      r.blend,
		IndexCount: n * indicesPerQuad,
	}); err != nil {
		return fmt.Errorf("renderer: draw batch: %w", err)
	}
	r.batchCount++
	r.quadsInBatch = 0
	return nil
}

// Destroy releases uploaded textures, the text renderer and then the
// renderer's own GPU objects in reverse creation order. Any later call
// panics.
func (r *Renderer) Destroy() error {
	if r.state == stateDestroyed {
		return nil
	}
	var errs []error
	for i := len(r.textures) - 1; i >= 0; i-- {
		t := r.textures[i]
		if err := r.backend.Release(t.Handle); err != nil {
			errs = append(errs, err)
		}
		t.Handle = gpu.Handle{}
	}
	r.textures = nil
	if err := r.text.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := r.owned.Release(); err != nil {
		errs = append(errs, err)
	}
	r.state = stateDestroyed
	r.staging = nil

	err := errors.Join(errs...)
	if err != nil {
		r.log.Error("renderer teardown", slog.Any("error", err))
	} else {
		r.log.Info("renderer destroyed", slog.Int("texture_bytes", r.textureBytes))
	}
	return err
}
