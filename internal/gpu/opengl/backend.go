// Package opengl implements gpu.Backend on an OpenGL 4.1 core context.
// The context must be current on the calling thread for every method.
package opengl

import (
	"fmt"
	"log/slog"

	"grapple/internal/gpu"
	"grapple/internal/log"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Surface presents the default framebuffer.
type Surface interface {
	SwapBuffers()
}

type buffer struct {
	desc  gpu.BufferDesc
	usage uint32
}

type texture struct {
	desc  gpu.TextureDesc
	bytes int
}

type Backend struct {
	surface Surface
	log     *log.Logger

	programs map[uint32]*program
	buffers  map[uint32]buffer
	samplers map[uint32]struct{}
	textures map[uint32]texture
	// GL has no blend state objects; descriptors are kept here and applied
	// at draw time.
	blends    map[uint32]gpu.BlendDesc
	nextBlend uint32

	textureBytes int
}

// New loads the GL entry points for the current context.
func New(surface Surface, lg *log.Logger) (*Backend, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("opengl: init: %w", err)
	}
	lg.Info("OpenGL",
		slog.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		slog.String("vendor", gl.GoStr(gl.GetString(gl.VENDOR))),
		slog.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		slog.String("glsl", gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))))

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)

	return &Backend{
		surface:  surface,
		log:      lg,
		programs: make(map[uint32]*program),
		buffers:  make(map[uint32]buffer),
		samplers: make(map[uint32]struct{}),
		textures: make(map[uint32]texture),
		blends:   make(map[uint32]gpu.BlendDesc),
	}, nil
}

func (b *Backend) Kind() gpu.Kind { return gpu.KindOpenGL }

// TextureBytes is the device memory held by live textures.
func (b *Backend) TextureBytes() int { return b.textureBytes }

func (b *Backend) handle(c gpu.Class, id uint32) gpu.Handle {
	return gpu.NewHandle(gpu.KindOpenGL, c, id)
}

func (b *Backend) check(h gpu.Handle, c gpu.Class) error {
	if err := h.Check(gpu.KindOpenGL, c); err != nil {
		return err
	}
	var ok bool
	switch c {
	case gpu.ClassProgram:
		_, ok = b.programs[h.ID()]
	case gpu.ClassBuffer:
		_, ok = b.buffers[h.ID()]
	case gpu.ClassSampler:
		_, ok = b.samplers[h.ID()]
	case gpu.ClassBlend:
		_, ok = b.blends[h.ID()]
	case gpu.ClassTexture:
		_, ok = b.textures[h.ID()]
	}
	if !ok {
		return fmt.Errorf("%w: %s", gpu.ErrUnknownHandle, h)
	}
	return nil
}

// glError drains the GL error queue and reports the first error.
func glError(op string) error {
	var first uint32 = gl.NO_ERROR
	for e := gl.GetError(); e != gl.NO_ERROR; e = gl.GetError() {
		if first == gl.NO_ERROR {
			first = e
		}
	}
	if first != gl.NO_ERROR {
		return fmt.Errorf("opengl: %s: error 0x%04x", op, first)
	}
	return nil
}

func (b *Backend) CreateProgram(desc gpu.ProgramDesc) (gpu.Handle, error) {
	p, err := newProgram(desc, 0)
	if err != nil {
		return gpu.Handle{}, fmt.Errorf("opengl: %w", err)
	}
	if err := glError("create program"); err != nil {
		p.delete()
		return gpu.Handle{}, err
	}
	b.programs[p.id] = p
	return b.handle(gpu.ClassProgram, p.id), nil
}

func bufferUsage(u gpu.Usage) uint32 {
	if u == gpu.Dynamic {
		return gl.DYNAMIC_DRAW
	}
	return gl.STATIC_DRAW
}

func (b *Backend) CreateBuffer(desc gpu.BufferDesc, initial []byte) (gpu.Handle, error) {
	if desc.Size <= 0 || len(initial) > desc.Size {
		return gpu.Handle{}, fmt.Errorf("opengl: buffer size %d with %d initial bytes", desc.Size, len(initial))
	}
	var id uint32
	gl.GenBuffers(1, &id)
	usage := bufferUsage(desc.Usage)

	// buffer objects are untyped; COPY_WRITE_BUFFER avoids disturbing the
	// vertex array state while filling them
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, id)
	gl.BufferData(gl.COPY_WRITE_BUFFER, desc.Size, nil, usage)
	if len(initial) > 0 {
		gl.BufferSubData(gl.COPY_WRITE_BUFFER, 0, len(initial), gl.Ptr(initial))
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)

	if err := glError("create buffer"); err != nil {
		gl.DeleteBuffers(1, &id)
		return gpu.Handle{}, err
	}
	b.buffers[id] = buffer{desc: desc, usage: usage}
	return b.handle(gpu.ClassBuffer, id), nil
}

func (b *Backend) CreateSampler(desc gpu.SamplerDesc) (gpu.Handle, error) {
	var id uint32
	gl.GenSamplers(1, &id)
	filter := int32(gl.NEAREST)
	if desc.Filter == gpu.FilterLinear {
		filter = gl.LINEAR
	}
	wrap := int32(gl.REPEAT)
	if desc.Address == gpu.AddressClamp {
		wrap = gl.CLAMP_TO_EDGE
	}
	gl.SamplerParameteri(id, gl.TEXTURE_MIN_FILTER, filter)
	gl.SamplerParameteri(id, gl.TEXTURE_MAG_FILTER, filter)
	gl.SamplerParameteri(id, gl.TEXTURE_WRAP_S, wrap)
	gl.SamplerParameteri(id, gl.TEXTURE_WRAP_T, wrap)

	if err := glError("create sampler"); err != nil {
		gl.DeleteSamplers(1, &id)
		return gpu.Handle{}, err
	}
	b.samplers[id] = struct{}{}
	return b.handle(gpu.ClassSampler, id), nil
}

func (b *Backend) CreateBlendState(desc gpu.BlendDesc) (gpu.Handle, error) {
	b.nextBlend++
	b.blends[b.nextBlend] = desc
	return b.handle(gpu.ClassBlend, b.nextBlend), nil
}

func textureFormats(f gpu.Format) (internal int32, format uint32) {
	switch f {
	case gpu.FormatRGB8:
		return gl.RGBA8, gl.RGB
	case gpu.FormatR8:
		return gl.R8, gl.RED
	}
	return gl.RGBA8, gl.RGBA
}

func (b *Backend) CreateTexture(desc gpu.TextureDesc, pixels []byte) (gpu.Handle, error) {
	need := desc.Width * desc.Height * desc.Format.BytesPerPixel()
	if desc.Width <= 0 || desc.Height <= 0 || len(pixels) < need {
		return gpu.Handle{}, fmt.Errorf("opengl: %dx%d %s texture with %d bytes", desc.Width, desc.Height, desc.Format, len(pixels))
	}
	internal, format := textureFormats(desc.Format)

	var id uint32
	gl.GenTextures(1, &id)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, id)
	// rows are tightly packed
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(desc.Width), int32(desc.Height), 0, format, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_BASE_LEVEL, 0)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := glError("create texture"); err != nil {
		gl.DeleteTextures(1, &id)
		return gpu.Handle{}, err
	}

	bpp := 4
	if desc.Format == gpu.FormatR8 {
		bpp = 1
	}
	t := texture{desc: desc, bytes: desc.Width * desc.Height * bpp}
	b.textures[id] = t
	b.textureBytes += t.bytes
	return b.handle(gpu.ClassTexture, id), nil
}

// WriteBuffer orphans the buffer's storage before writing so the driver
// never waits for draws still reading the old contents.
func (b *Backend) WriteBuffer(h gpu.Handle, data []byte) error {
	if err := b.check(h, gpu.ClassBuffer); err != nil {
		return err
	}
	buf := b.buffers[h.ID()]
	if buf.desc.Usage != gpu.Dynamic {
		return fmt.Errorf("opengl: write to immutable buffer %s", h)
	}
	if len(data) > buf.desc.Size {
		return fmt.Errorf("opengl: write of %d bytes to %d byte buffer %s", len(data), buf.desc.Size, h)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, h.ID())
	gl.BufferData(gl.COPY_WRITE_BUFFER, buf.desc.Size, nil, buf.usage)
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, 0, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	return glError("write buffer")
}

func (b *Backend) BindUniformBuffer(h gpu.Handle, slot int) error {
	if err := b.check(h, gpu.ClassBuffer); err != nil {
		return err
	}
	gl.BindBufferBase(gl.UNIFORM_BUFFER, uint32(slot), h.ID())
	return nil
}

func (b *Backend) BindRenderTarget(width, height int) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (b *Backend) Clear(c gpu.Color) {
	gl.ClearColor(c.R, c.G, c.B, c.A)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func blendFactor(f gpu.BlendFactor) uint32 {
	switch f {
	case gpu.BlendOne:
		return gl.ONE
	case gpu.BlendSrcAlpha:
		return gl.SRC_ALPHA
	case gpu.BlendInvSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	}
	return gl.ZERO
}

func (b *Backend) DrawIndexed(call gpu.DrawCall) error {
	for _, c := range []struct {
		h     gpu.Handle
		class gpu.Class
	}{
		{call.Program, gpu.ClassProgram},
		{call.Vertices, gpu.ClassBuffer},
		{call.Indices, gpu.ClassBuffer},
		{call.Uniforms, gpu.ClassBuffer},
		{call.Texture, gpu.ClassTexture},
		{call.Sampler, gpu.ClassSampler},
		{call.Blend, gpu.ClassBlend},
	} {
		if err := b.check(c.h, c.class); err != nil {
			return err
		}
	}

	p := b.programs[call.Program.ID()]
	p.bind(call.Vertices.ID(), call.Indices.ID())
	gl.BindBufferBase(gl.UNIFORM_BUFFER, 0, call.Uniforms.ID())

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, call.Texture.ID())
	gl.BindSampler(0, call.Sampler.ID())

	bd := b.blends[call.Blend.ID()]
	gl.Enable(gl.BLEND)
	gl.BlendEquation(gl.FUNC_ADD)
	gl.BlendFuncSeparate(blendFactor(bd.SrcColor), blendFactor(bd.DstColor),
		blendFactor(bd.SrcAlpha), blendFactor(bd.DstAlpha))

	gl.DrawElementsWithOffset(gl.TRIANGLES, int32(call.IndexCount), gl.UNSIGNED_SHORT, 0)
	gl.BindVertexArray(0)
	return glError("draw")
}

func (b *Backend) Present() error {
	b.surface.SwapBuffers()
	return glError("present")
}

func (b *Backend) Release(h gpu.Handle) error {
	if err := b.check(h, h.Class()); err != nil {
		return err
	}
	id := h.ID()
	switch h.Class() {
	case gpu.ClassProgram:
		b.programs[id].delete()
		delete(b.programs, id)
	case gpu.ClassBuffer:
		gl.DeleteBuffers(1, &id)
		delete(b.buffers, id)
	case gpu.ClassSampler:
		gl.DeleteSamplers(1, &id)
		delete(b.samplers, id)
	case gpu.ClassBlend:
		delete(b.blends, id)
	case gpu.ClassTexture:
		b.textureBytes -= b.textures[id].bytes
		gl.DeleteTextures(1, &id)
		delete(b.textures, id)
	}
	return nil
}
