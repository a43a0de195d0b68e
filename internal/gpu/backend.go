package gpu

// VertexAttribute describes one float vector attribute of a vertex.
type VertexAttribute struct {
	Name       string
	Location   uint32
	Components int
	Offset     int
}

// VertexLayout is the input layout of a program.
type VertexLayout struct {
	Stride     int
	Attributes []VertexAttribute
}

// ProgramDesc names one of the backend's prebuilt vertex+pixel program pairs.
// Program sources ship with the backend, the renderer only picks them by name.
type ProgramDesc struct {
	Name         string
	Layout       VertexLayout
	UniformBlock string
	Sampler      string
}

type BufferKind uint8

const (
	VertexBuffer BufferKind = iota
	IndexBuffer
	UniformBuffer
)

type Usage uint8

const (
	// Immutable buffers are filled once at creation.
	Immutable Usage = iota
	// Dynamic buffers are rewritten with write-discard semantics.
	Dynamic
)

type BufferDesc struct {
	Kind  BufferKind
	Usage Usage
	Size  int
}

type Filter uint8

const (
	FilterPoint Filter = iota
	FilterLinear
)

type AddressMode uint8

const (
	AddressWrap AddressMode = iota
	AddressClamp
)

type SamplerDesc struct {
	Filter  Filter
	Address AddressMode
}

type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendInvSrcAlpha
)

// BlendDesc configures color and alpha blending. Equation is always add.
type BlendDesc struct {
	SrcColor, DstColor BlendFactor
	SrcAlpha, DstAlpha BlendFactor
}

// AlphaBlend is source-alpha over inverse-source-alpha on color and alpha.
var AlphaBlend = BlendDesc{
	SrcColor: BlendSrcAlpha, DstColor: BlendInvSrcAlpha,
	SrcAlpha: BlendSrcAlpha, DstAlpha: BlendInvSrcAlpha,
}

type Format uint8

const (
	FormatRGBA8 Format = iota
	FormatRGB8
	FormatR8
)

// BytesPerPixel of the source pixel data for f.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGB8:
		return 3
	case FormatR8:
		return 1
	}
	return 4
}

func (f Format) String() string {
	switch f {
	case FormatRGB8:
		return "rgb8"
	case FormatR8:
		return "r8"
	}
	return "rgba8"
}

// TextureDesc describes a single-mip 2D texture. Source rows are tightly
// packed, the row pitch is Width*Format.BytesPerPixel().
type TextureDesc struct {
	Width, Height int
	Format        Format
}

// DrawCall is one indexed triangle-list submission with 16-bit indices.
type DrawCall struct {
	Program    Handle
	Vertices   Handle
	Indices    Handle
	Uniforms   Handle
	Texture    Handle
	Sampler    Handle
	Blend      Handle
	IndexCount int
}

// Backend is a graphics device together with its immediate context and the
// presentation surface. All methods must be called from the thread that owns
// the device.
type Backend interface {
	Kind() Kind

	CreateProgram(desc ProgramDesc) (Handle, error)
	CreateBuffer(desc BufferDesc, initial []byte) (Handle, error)
	CreateSampler(desc SamplerDesc) (Handle, error)
	CreateBlendState(desc BlendDesc) (Handle, error)
	CreateTexture(desc TextureDesc, pixels []byte) (Handle, error)

	// WriteBuffer replaces the contents of a dynamic buffer, discarding
	// whatever the device still holds for it.
	WriteBuffer(buf Handle, data []byte) error
	BindUniformBuffer(buf Handle, slot int) error

	// BindRenderTarget makes the presentation surface the active output and
	// sets the viewport to width x height.
	BindRenderTarget(width, height int)
	Clear(c Color)
	DrawIndexed(call DrawCall) error
	// Present shows the surface, blocking on vertical sync if enabled.
	Present() error

	Release(h Handle) error
}
