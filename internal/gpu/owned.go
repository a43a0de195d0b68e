package gpu

import "errors"

// Owned collects handles acquired from one backend and releases them in
// reverse acquisition order. Constructors use it so that an early return
// cannot leak what was created before the failure.
type Owned struct {
	backend Backend
	handles []Handle
}

func NewOwned(b Backend) *Owned {
	return &Owned{backend: b}
}

// Add takes ownership of h and returns it.
func (o *Owned) Add(h Handle) Handle {
	if !h.IsNil() {
		o.handles = append(o.handles, h)
	}
	return h
}

// Len reports how many handles are still owned.
func (o *Owned) Len() int { return len(o.handles) }

// Release frees every owned handle, last acquired first. It is safe to call
// more than once.
func (o *Owned) Release() error {
	var errs []error
	for i := len(o.handles) - 1; i >= 0; i-- {
		if err := o.backend.Release(o.handles[i]); err != nil {
			errs = append(errs, err)
		}
	}
	o.handles = o.handles[:0]
	return errors.Join(errs...)
}
