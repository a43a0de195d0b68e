// Package gpu is the backend-neutral surface the renderers program against:
// typed resource handles, resource descriptors and the Backend interface a
// concrete graphics API implements.
package gpu

import (
	"errors"
	"fmt"
	"unsafe"
)

var (
	// ErrForeignHandle is returned when a handle is passed to a backend that
	// did not create it, or used as a resource of the wrong class.
	ErrForeignHandle = errors.New("gpu: foreign handle")
	// ErrUnknownHandle is returned for handles that were already released.
	ErrUnknownHandle = errors.New("gpu: unknown handle")
)

// Kind identifies the backend that issued a handle.
type Kind uint8

const (
	KindNone Kind = iota
	KindOpenGL
	KindHeadless
)

func (k Kind) String() string {
	switch k {
	case KindOpenGL:
		return "opengl"
	case KindHeadless:
		return "headless"
	}
	return "none"
}

// Class is the resource type behind a handle.
type Class uint8

const (
	ClassNone Class = iota
	ClassProgram
	ClassBuffer
	ClassSampler
	ClassBlend
	ClassTexture
)

var classNames = [...]string{"none", "program", "buffer", "sampler", "blend", "texture"}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", c)
}

// Handle is an opaque reference to a backend resource, tagged with the
// backend and resource class that produced it. The zero Handle is nil.
type Handle struct {
	kind  Kind
	class Class
	id    uint32
}

func NewHandle(k Kind, c Class, id uint32) Handle { return Handle{kind: k, class: c, id: id} }

func (h Handle) IsNil() bool  { return h.id == 0 }
func (h Handle) Kind() Kind   { return h.kind }
func (h Handle) Class() Class { return h.class }
func (h Handle) ID() uint32   { return h.id }

func (h Handle) String() string {
	if h.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%s:%s#%d", h.kind, h.class, h.id)
}

// Check reports ErrForeignHandle unless h is a non-nil handle of class c
// issued by a backend of kind k.
func (h Handle) Check(k Kind, c Class) error {
	if h.IsNil() || h.kind != k || h.class != c {
		return fmt.Errorf("%w: %s used as %s:%s", ErrForeignHandle, h, k, c)
	}
	return nil
}

// Color is a straight RGBA color with components in 0..1.
type Color struct {
	R, G, B, A float32
}

func RGBA(r, g, b, a float32) Color { return Color{r, g, b, a} }

var (
	Red   = Color{1, 0, 0, 1}
	Green = Color{0, 1, 0, 1}
	Blue  = Color{0, 0, 1, 1}
	Black = Color{0, 0, 0, 1}
	White = Color{1, 1, 1, 1}
)

// Bytes reinterprets a slice of plain values as bytes for upload.
func Bytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}

// QuadIndices returns the index list for n quads whose four vertices are
// stored top-left, top-right, bottom-left, bottom-right.
func QuadIndices(n int) []uint16 {
	idx := make([]uint16, 0, n*6)
	for q := 0; q < n; q++ {
		b := uint16(q * 4)
		idx = append(idx, b, b+1, b+2, b+2, b+1, b+3)
	}
	return idx
}
