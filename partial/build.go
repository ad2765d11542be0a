package partial

import (
	"reflect"
	"unsafe"

	"github.com/formworklabs/formwork/errors"
	"github.com/formworklabs/formwork/shape"
)

// Value is a finished build result. It owns the constructed bytes until
// Close drops them; extracting through Interface copies, so a Value can be
// read and then closed.
type Value struct {
	data   unsafe.Pointer
	shape  *shape.Shape
	pin    reflect.Value
	pins   []reflect.Value
	closed bool
}

// Shape returns the built value's shape.
func (v *Value) Shape() *shape.Shape { return v.shape }

// Pointer returns the raw region holding the built value. Valid until
// Close.
func (v *Value) Pointer() unsafe.Pointer { return v.data }

// Interface copies the built value out as a Go value. Panics if the shape
// is not reflect-backed.
func (v *Value) Interface() any {
	if v.shape.Type == nil {
		panic("partial: Interface on a shape without a reflect type")
	}
	return reflect.NewAt(v.shape.Type, v.data).Elem().Interface()
}

// Close drops the built value and releases its region. Idempotent.
func (v *Value) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	if v.shape.Drop != nil {
		v.shape.Drop(v.data)
	}
	v.pin = reflect.Value{}
	v.pins = nil
	return nil
}

// Build finishes construction: every remaining non-root frame is ended
// (propagating any completion error), defaults are filled, the root is
// validated, and ownership of the finished bytes moves to the returned
// Value. The builder is consumed; a second Build fails.
func (p *Partial) Build() (*Value, error) {
	if err := p.check(errors.PhaseBuild); err != nil {
		return nil, err
	}
	if p.def != nil {
		return nil, p.fail(errors.Invariant(errors.PhaseBuild, "deferred session not finished"))
	}

	for p.current != p.root {
		if err := p.End(); err != nil {
			return nil, err
		}
	}

	root := p.cur()
	if err := root.fillDefaults(); err != nil {
		return nil, p.fail(errors.Wrap(errors.PhaseBuild, errors.KindNoDefault, err, "default construction failed"))
	}
	if !root.isComplete() {
		return nil, p.fail(errors.NotInitialized(errors.PhaseBuild, nil, root.shape.String(), root.missing()))
	}

	// Transfer the root region to the caller without dropping it.
	done := p.arena.release(p.root)
	p.root = nilFrame
	p.current = nilFrame
	p.state = stateConsumed
	p.tornDown = true

	v := &Value{
		data:  done.data,
		shape: done.shape,
		pin:   done.pin,
		pins:  p.pins,
	}
	p.pins = nil
	debugf("build complete shape=%s", v.shape)
	return v, nil
}

// Close abandons construction and releases every owned region, dropping
// only the sub-values the trackers marked initialized. Safe to call in any
// state, any number of times.
func (p *Partial) Close() error {
	if p.tornDown || p.state == stateClosed {
		p.state = stateClosed
		return nil
	}

	if p.def != nil {
		for path, id := range p.def.stored {
			f := p.arena.release(id)
			f.uninit()
			f.pin = reflect.Value{}
			delete(p.def.stored, path)
		}
		p.def = nil
	}

	p.teardownStack()
	p.pins = nil
	p.state = stateClosed
	p.tornDown = true
	return nil
}

// teardownStack walks from the current frame to the root, finalizing each
// frame once. Ownership transfer during splices cleared the source frames'
// flags, so no region can be freed twice.
func (p *Partial) teardownStack() {
	for id := p.current; id != nilFrame; {
		f := p.arena.release(id)
		f.uninit()
		f.pin = reflect.Value{}
		id = f.parent
	}
	p.current = nilFrame
	p.root = nilFrame
}
