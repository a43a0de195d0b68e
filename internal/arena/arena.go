// Package arena hands out pointer-free memory with a fixed byte budget on top
// of a go-arena monotonic arena. Allocations are never freed individually;
// Reset drops them all at once.
package arena

import (
	"errors"
	"fmt"
	"unsafe"

	goarena "github.com/wundergraph/go-arena"
)

// ErrExhausted is returned when an allocation does not fit in the budget.
var ErrExhausted = errors.New("arena: exhausted")

const align = 8

// Arena is a bump allocator limited to a fixed number of bytes. It is not
// safe for concurrent use.
type Arena struct {
	mem  goarena.Arena
	size int
	used int
	peak int
}

// New returns an arena that allocates at most size bytes.
func New(size int) *Arena {
	size = max(size, 0)
	return &Arena{
		mem:  goarena.NewMonotonicArena(goarena.WithMinBufferSize(max(size, align))),
		size: size,
	}
}

func (a *Arena) alloc(n, alignment int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("arena: negative allocation %d", n)
	}
	start := (a.used + align - 1) &^ (align - 1)
	if start+n > a.size {
		return nil, fmt.Errorf("%w: need %d bytes, %d of %d in use", ErrExhausted, n, a.used, a.size)
	}
	if n == 0 {
		a.used = start
		return []byte{}, nil
	}
	p := a.mem.Alloc(uintptr(n), uintptr(alignment))
	if p == nil {
		return nil, fmt.Errorf("arena: backing allocation of %d bytes failed", n)
	}
	b := unsafe.Slice((*byte)(p), n)
	// monotonic buffers are reused after Reset
	clear(b)
	a.used = start + n
	a.peak = max(a.peak, a.used)
	return b, nil
}

// Alloc returns n zeroed bytes from the arena.
func (a *Arena) Alloc(n int) ([]byte, error) { return a.alloc(n, align) }

// Reset releases every allocation. Slices handed out earlier must not be used
// afterwards.
func (a *Arena) Reset() {
	a.mem.Reset()
	a.used = 0
}

// Release returns the backing memory. The arena must not be used afterwards.
func (a *Arena) Release() {
	a.mem.Release()
	a.used, a.size = 0, 0
}

// Len reports the bytes currently in use.
func (a *Arena) Len() int { return a.used }

// Cap reports the byte budget.
func (a *Arena) Cap() int { return a.size }

// Peak reports the high-water mark since the arena was created.
func (a *Arena) Peak() int { return a.peak }

// MakeSlice allocates a zeroed []T of length n from a. T must not contain
// pointers: the garbage collector does not scan arena memory. A nil arena
// falls back to the Go heap.
func MakeSlice[T any](a *Arena, n int) ([]T, error) {
	if a == nil {
		return make([]T, n), nil
	}
	if n == 0 {
		return nil, nil
	}
	var zero T
	b, err := a.alloc(int(unsafe.Sizeof(zero))*n, int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}

// Bytes allocates n bytes from a, or from the Go heap when a is nil.
func Bytes(a *Arena, n int) ([]byte, error) {
	if a == nil {
		return make([]byte, n), nil
	}
	return a.Alloc(n)
}
