// Package gputest provides a headless gpu.Backend that records every call so
// tests can assert on device traffic without a GL context.
package gputest

import (
	"fmt"

	"grapple/internal/gpu"
)

const (
	OpCreateProgram     = "CreateProgram"
	OpCreateBuffer      = "CreateBuffer"
	OpCreateSampler     = "CreateSampler"
	OpCreateBlendState  = "CreateBlendState"
	OpCreateTexture     = "CreateTexture"
	OpWriteBuffer       = "WriteBuffer"
	OpBindUniformBuffer = "BindUniformBuffer"
	OpBindRenderTarget  = "BindRenderTarget"
	OpClear             = "Clear"
	OpDrawIndexed       = "DrawIndexed"
	OpPresent           = "Present"
	OpRelease           = "Release"
)

// Call is one recorded backend call.
type Call struct {
	Op     string
	Handle gpu.Handle
}

// Texture is a recorded texture upload.
type Texture struct {
	Desc   gpu.TextureDesc
	Pixels []byte
}

type resource struct {
	class  gpu.Class
	buffer gpu.BufferDesc
}

// Recorder implements gpu.Backend.
type Recorder struct {
	Calls    []Call
	Draws    []gpu.DrawCall
	Clears   []gpu.Color
	Targets  [][2]int
	Released []gpu.Handle
	Programs []gpu.ProgramDesc
	Textures map[gpu.Handle]Texture
	// Writes holds the last data written to each buffer, including the
	// initial contents given at creation.
	Writes map[gpu.Handle][]byte
	// Uniforms maps a binding slot to the buffer last bound there.
	Uniforms map[int]gpu.Handle

	next uint32
	live map[gpu.Handle]resource
	fail map[string]error
}

func New() *Recorder {
	return &Recorder{
		Textures: make(map[gpu.Handle]Texture),
		Writes:   make(map[gpu.Handle][]byte),
		Uniforms: make(map[int]gpu.Handle),
		live:     make(map[gpu.Handle]resource),
		fail:     make(map[string]error),
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (r *Recorder) FailOn(op string, err error) {
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

// Count returns how many times op was called.
func (r *Recorder) Count(op string) int {
	n := 0
	for _, c := range r.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Live returns the number of created but unreleased resources.
func (r *Recorder) Live() int { return len(r.live) }

// IsLive reports whether h was created and not yet released.
func (r *Recorder) IsLive(h gpu.Handle) bool {
	_, ok := r.live[h]
	return ok
}

// ResetCalls forgets recorded calls while keeping live resources.
func (r *Recorder) ResetCalls() {
	r.Calls = r.Calls[:0]
	r.Draws = r.Draws[:0]
	r.Clears = r.Clears[:0]
	r.Targets = r.Targets[:0]
}

func (r *Recorder) Kind() gpu.Kind { return gpu.KindHeadless }

func (r *Recorder) record(op string, h gpu.Handle) error {
	r.Calls = append(r.Calls, Call{Op: op, Handle: h})
	return r.fail[op]
}

func (r *Recorder) create(op string, res resource) (gpu.Handle, error) {
	if err := r.record(op, gpu.Handle{}); err != nil {
		return gpu.Handle{}, err
	}
	r.next++
	h := gpu.NewHandle(gpu.KindHeadless, res.class, r.next)
	r.live[h] = res
	r.Calls[len(r.Calls)-1].Handle = h
	return h, nil
}

func (r *Recorder) check(h gpu.Handle, c gpu.Class) error {
	if err := h.Check(gpu.KindHeadless, c); err != nil {
		return err
	}
	if _, ok := r.live[h]; !ok {
		return fmt.Errorf("%w: %s", gpu.ErrUnknownHandle, h)
	}
	return nil
}

func (r *Recorder) CreateProgram(desc gpu.ProgramDesc) (gpu.Handle, error) {
	h, err := r.create(OpCreateProgram, resource{class: gpu.ClassProgram})
	if err == nil {
		r.Programs = append(r.Programs, desc)
	}
	return h, err
}

func (r *Recorder) CreateBuffer(desc gpu.BufferDesc, initial []byte) (gpu.Handle, error) {
	if len(initial) > desc.Size {
		return gpu.Handle{}, fmt.Errorf("gputest: initial data %d exceeds buffer size %d", len(initial), desc.Size)
	}
	h, err := r.create(OpCreateBuffer, resource{class: gpu.ClassBuffer, buffer: desc})
	if err == nil && initial != nil {
		r.Writes[h] = append([]byte(nil), initial...)
	}
	return h, err
}

func (r *Recorder) CreateSampler(gpu.SamplerDesc) (gpu.Handle, error) {
	return r.create(OpCreateSampler, resource{class: gpu.ClassSampler})
}

func (r *Recorder) CreateBlendState(gpu.BlendDesc) (gpu.Handle, error) {
	return r.create(OpCreateBlendState, resource{class: gpu.ClassBlend})
}

func (r *Recorder) CreateTexture(desc gpu.TextureDesc, pixels []byte) (gpu.Handle, error) {
	h, err := r.create(OpCreateTexture, resource{class: gpu.ClassTexture})
	if err == nil {
		r.Textures[h] = Texture{Desc: desc, Pixels: append([]byte(nil), pixels...)}
	}
	return h, err
}

func (r *Recorder) WriteBuffer(buf gpu.Handle, data []byte) error {
	if err := r.record(OpWriteBuffer, buf); err != nil {
		return err
	}
	if err := r.check(buf, gpu.ClassBuffer); err != nil {
		return err
	}
	desc := r.live[buf].buffer
	if desc.Usage != gpu.Dynamic {
		return fmt.Errorf("gputest: write to immutable buffer %s", buf)
	}
	if len(data) > desc.Size {
		return fmt.Errorf("gputest: write of %d bytes exceeds buffer size %d", len(data), desc.Size)
	}
	r.Writes[buf] = append([]byte(nil), data...)
	return nil
}

func (r *Recorder) BindUniformBuffer(buf gpu.Handle, slot int) error {
	if err := r.record(OpBindUniformBuffer, buf); err != nil {
		return err
	}
	if err := r.check(buf, gpu.ClassBuffer); err != nil {
		return err
	}
	r.Uniforms[slot] = buf
	return nil
}

func (r *Recorder) BindRenderTarget(width, height int) {
	r.record(OpBindRenderTarget, gpu.Handle{})
	r.Targets = append(r.Targets, [2]int{width, height})
}

func (r *Recorder) Clear(c gpu.Color) {
	r.record(OpClear, gpu.Handle{})
	r.Clears = append(r.Clears, c)
}

func (r *Recorder) DrawIndexed(call gpu.DrawCall) error {
	if err := r.record(OpDrawIndexed, call.Texture); err != nil {
		return err
	}
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
		if err := r.check(c.h, c.class); err != nil {
			return err
		}
	}
	r.Draws = append(r.Draws, call)
	return nil
}

func (r *Recorder) Present() error {
	return r.record(OpPresent, gpu.Handle{})
}

func (r *Recorder) Release(h gpu.Handle) error {
	if err := r.record(OpRelease, h); err != nil {
		return err
	}
	if err := r.check(h, h.Class()); err != nil {
		return err
	}
	delete(r.live, h)
	delete(r.Textures, h)
	delete(r.Writes, h)
	r.Released = append(r.Released, h)
	return nil
}
