package partial

import (
	"reflect"
	"unsafe"

	"github.com/formworklabs/formwork/errors"
)

// End pops the current frame into its parent. The frame must report full
// completion; the splice it performs depends on how the frame was begun:
// field and inner frames mark the parent's bookkeeping (their bytes are
// already in place), element and payload frames move their bytes through
// the parent shape's push, insert, wrap or init operation. The popped
// frame's region is released once its bytes have moved; it is never
// dropped again.
//
// The root frame cannot be popped. In deferred mode, frames opened through
// field paths are stored for later reconciliation instead of validated,
// and the session base stays pinned until the session finishes.
func (p *Partial) End() error {
	if err := p.check(errors.PhaseEnd); err != nil {
		return err
	}
	if p.current == p.root {
		return p.fail(errors.New(errors.PhaseEnd, errors.KindInvariant).
			Detail("cannot pop the root frame").
			Build())
	}

	f := p.cur()
	if p.def != nil {
		if f.defPath != "" {
			return p.deferredEnd()
		}
		// Splicing the session base into its parent would leave the side
		// table holding frames that alias a region the parent now owns.
		if p.current == p.def.base {
			return p.fail(errors.Invariant(errors.PhaseEnd, "cannot pop the deferred session base"))
		}
	}

	if err := f.fillDefaults(); err != nil {
		return p.fail(errors.Wrap(errors.PhaseEnd, errors.KindNoDefault, err, "default construction failed"))
	}
	if !f.isComplete() {
		return p.fail(errors.NotInitialized(errors.PhaseEnd, p.Path(), f.shape.String(), f.missing()))
	}

	parentID := f.parent
	child := p.arena.release(p.current)
	parent := p.arena.get(parentID)

	if err := p.splice(parent, &child); err != nil {
		// The child came off the stack already; finalize it here so the
		// teardown walk does not see it.
		child.uninit()
		child.pin = reflect.Value{}
		return p.fail(err)
	}

	// Bytes have moved; release the region without dropping.
	child.pin = reflect.Value{}
	p.current = parentID
	debugf("end %s", child.name)
	return nil
}

// splice moves a completed child into parent per the child's relation.
func (p *Partial) splice(parent *Frame, c *Frame) error {
	switch c.rel {
	case relField:
		fld := &parent.shape.Fields[c.slot]
		if c.shape != fld.Shape {
			if fld.Shape.ConvertFrom == nil {
				return errors.ShapeMismatch(errors.PhaseEnd, p.Path(), c.shape.String(), fld.Shape.String())
			}
			if err := fld.Shape.ConvertFrom(unsafe.Add(parent.data, fld.Offset), c.data, c.shape); err != nil {
				return errors.Conversion(errors.PhaseEnd, p.Path(), c.shape.String(), fld.Shape.String(), err)
			}
		}
		parent.ensureStruct()
		parent.markFieldComplete(c.slot)

	case relInner:
		parent.track = tracker{state: stateInit}

	case relVariantPayload:
		v := &parent.shape.Variants[c.slot]
		slot := unsafe.Add(parent.data, v.CaseOffset)
		if v.Payload.Type != nil {
			// Re-home the payload behind a typed pointer so the parent
			// value keeps it reachable on its own.
			pv := reflect.New(v.Payload.Type)
			pv.Elem().Set(reflect.NewAt(v.Payload.Type, c.data).Elem())
			*(*unsafe.Pointer)(slot) = pv.UnsafePointer()
		} else {
			*(*unsafe.Pointer)(slot) = c.data
			if c.pin.IsValid() {
				p.pins = append(p.pins, c.pin)
			}
		}
		parent.track.done = true

	case relListItem:
		if parent.track.state == stateSliceBuilder {
			parent.builderOps.Push(parent.track.builder, c.data)
		} else {
			parent.shape.List.Push(parent.data, c.data)
		}
		parent.track.pushing = false

	case relSetItem:
		parent.shape.Set.Insert(parent.data, c.data)
		parent.track.pushing = false

	case relMapKey:
		parent.track.pendingKey = c.data
		parent.track.pendingPin = c.pin
		parent.track.phase = mapKeyReady

	case relMapValue:
		parent.shape.Map.Insert(parent.data, parent.track.pendingKey, c.data)
		parent.track.pendingKey = nil
		parent.track.pendingPin = reflect.Value{}
		parent.track.phase = mapIdle

	case relPointee:
		if c.track.state == stateSliceBuilder {
			c.builderOps.Finish(c.track.builder, parent.data)
			c.track.builder = nil
		} else {
			parent.shape.Pointer.Wrap(parent.data, c.data)
		}
		parent.track = tracker{state: stateInit}

	case relSome:
		parent.shape.Option.InitSome(parent.data, c.data)
		parent.track = tracker{state: stateInit}

	case relOk:
		parent.shape.Result.InitOk(parent.data, c.data)
		parent.track = tracker{state: stateInit}

	case relErr:
		parent.shape.Result.InitErr(parent.data, c.data)
		parent.track = tracker{state: stateInit}

	default:
		return errors.Invariant(errors.PhaseEnd, "unspliceable frame relation")
	}
	return nil
}
