package partial

import (
	"unsafe"

	"github.com/formworklabs/formwork/errors"
	"github.com/formworklabs/formwork/plan"
	"github.com/formworklabs/formwork/shape"
)

// BeginPointee descends into the pointee of the current indirection frame.
// The pointee gets its own region; End wraps the completed bytes into the
// pointer value and releases the temporary. Unsized pointees go through
// the shape's staged slice builder instead of a flat region.
func (p *Partial) BeginPointee() error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Kind != shape.KindPointer || f.shape.Pointer == nil {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_pointee", f.shape.String(), "pointer"))
	}
	f.uninit()

	pointee := f.shape.Pointer.Pointee
	if pointee.Unsized {
		ops := f.shape.SliceBuilder
		if ops == nil {
			return p.fail(errors.Unsized(errors.PhaseSet, pointee.String()))
		}
		child := Frame{
			shape:      pointee,
			rel:        relPointee,
			name:       "*",
			builderOps: ops,
		}
		child.track = tracker{state: stateSliceBuilder, begun: true}
		child.track.builder = ops.New()
		p.push(child)
		return nil
	}

	data, pin, err := newRegion(pointee)
	if err != nil {
		return p.fail(err)
	}
	p.push(Frame{
		data:     data,
		shape:    pointee,
		pin:      pin,
		rel:      relPointee,
		name:     "*",
		owns:     true,
		planNode: p.childPlan(f, func(n plan.Node) plan.Node { return n.Pointee() }),
	})
	return nil
}

// BeginSome descends into the payload of the current option frame; End
// stores the completed payload and the option becomes present.
func (p *Partial) BeginSome() error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Kind != shape.KindOption || f.shape.Option == nil {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_some", f.shape.String(), "option"))
	}
	f.uninit()

	data, pin, err := newRegion(f.shape.Inner)
	if err != nil {
		return p.fail(err)
	}
	p.push(Frame{
		data:     data,
		shape:    f.shape.Inner,
		pin:      pin,
		rel:      relSome,
		name:     "[some]",
		owns:     true,
		planNode: p.childPlan(f, func(n plan.Node) plan.Node { return n.Inner() }),
	})
	return nil
}

// SetNone writes the absent state into the current option frame, dropping
// any prior payload.
func (p *Partial) SetNone() error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Kind != shape.KindOption || f.shape.Option == nil {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "set_none", f.shape.String(), "option"))
	}
	f.uninit()
	f.shape.Option.InitNone(f.data)
	f.track.state = stateInit
	return nil
}

// BeginOk descends into the ok payload of the current result frame. A unit
// ok side pushes an empty frame that completes immediately.
func (p *Partial) BeginOk() error {
	return p.beginResultSide(relOk)
}

// BeginErr is the err counterpart of BeginOk.
func (p *Partial) BeginErr() error {
	return p.beginResultSide(relErr)
}

func (p *Partial) beginResultSide(rel relation) error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Kind != shape.KindResult || f.shape.Result == nil {
		op := "begin_ok"
		if rel == relErr {
			op = "begin_err"
		}
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), op, f.shape.String(), "result"))
	}
	f.uninit()

	payload := f.shape.Ok
	name := "[ok]"
	sel := func(n plan.Node) plan.Node { return n.Ok() }
	if rel == relErr {
		payload = f.shape.Err
		name = "[err]"
		sel = func(n plan.Node) plan.Node { return n.Err() }
	}

	if payload == nil {
		child := Frame{
			data:  unsafe.Pointer(&zeroSized),
			shape: unitShape,
			rel:   rel,
			name:  name,
		}
		child.track.state = stateInit
		p.push(child)
		return nil
	}

	data, pin, err := newRegion(payload)
	if err != nil {
		return p.fail(err)
	}
	p.push(Frame{
		data:     data,
		shape:    payload,
		pin:      pin,
		rel:      rel,
		name:     name,
		owns:     true,
		planNode: p.childPlan(f, sel),
	})
	return nil
}

// BeginInner descends into a transparent wrapper's inner shape. Same
// region, no copy; End marks the wrapper complete.
func (p *Partial) BeginInner() error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Inner == nil || f.shape.Kind == shape.KindOption {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_inner", f.shape.String(), "transparent wrapper"))
	}
	f.uninit()
	p.push(Frame{
		data:     f.data,
		shape:    f.shape.Inner,
		rel:      relInner,
		name:     "[inner]",
		planNode: p.childPlan(f, func(n plan.Node) plan.Node { return n.Inner() }),
	})
	return nil
}

// unitShape backs the pushed frame for payload-less result sides.
var unitShape = &shape.Shape{Name: "unit", Kind: shape.KindStruct}
