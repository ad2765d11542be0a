package partial

import (
	"reflect"

	"github.com/formworklabs/formwork/errors"
	"github.com/formworklabs/formwork/plan"
	"github.com/formworklabs/formwork/shape"
)

// BeginList marks the current list frame begun, creating the backing store
// on first use. An immediately following End yields an empty list; a list
// frame that was never begun is incomplete.
func (p *Partial) BeginList() error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Kind != shape.KindList && f.shape.Kind != shape.KindBytes {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_list", f.shape.String(), "list"))
	}
	return p.beginCollection(f, stateList)
}

// BeginSet is the set counterpart of BeginList.
func (p *Partial) BeginSet() error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Kind != shape.KindSet {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_set", f.shape.String(), "set"))
	}
	return p.beginCollection(f, stateSet)
}

func (p *Partial) beginCollection(f *Frame, st trackState) error {
	if f.track.state == st {
		return nil
	}
	if f.track.state != stateUninit {
		f.uninit()
	}
	f.track = tracker{state: st, begun: true}

	switch st {
	case stateList:
		if f.shape.List != nil && f.shape.List.Init != nil {
			f.shape.List.Init(f.data, p.capHint)
		}
	case stateSet:
		if f.shape.Set != nil && f.shape.Set.Init != nil {
			f.shape.Set.Init(f.data, p.capHint)
		}
	case stateMap:
		if f.shape.Map != nil && f.shape.Map.Init != nil {
			f.shape.Map.Init(f.data, p.capHint)
		}
	}
	return nil
}

// BeginListItem stages a frame for the next element so it can be built
// incrementally; End pushes the completed bytes into the list. Implies
// BeginList. Also accepted on a builder-mediated pointee and on set
// frames.
func (p *Partial) BeginListItem() error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}

	f := p.cur()
	var elem *shape.Shape
	var rel relation

	switch {
	case f.track.state == stateSliceBuilder:
		if f.track.pushing {
			return p.fail(errors.Invariant(errors.PhaseSet, "element already open"))
		}
		elem, rel = f.shape.Elem, relListItem
	case f.shape.Kind == shape.KindList:
		if err := p.beginCollection(f, stateList); err != nil {
			return err
		}
		elem, rel = f.shape.Elem, relListItem
	case f.shape.Kind == shape.KindSet:
		if err := p.beginCollection(f, stateSet); err != nil {
			return err
		}
		elem, rel = f.shape.Elem, relSetItem
	default:
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_list_item", f.shape.String(), "list or set"))
	}

	data, pin, err := newRegion(elem)
	if err != nil {
		return p.fail(err)
	}
	f.track.pushing = true
	p.push(Frame{
		data:     data,
		shape:    elem,
		pin:      pin,
		rel:      rel,
		name:     "[]",
		owns:     true,
		planNode: p.childPlan(f, func(n plan.Node) plan.Node { return n.Elem() }),
	})
	return nil
}

// Push appends v to the current list or set frame in one call, without
// staging an element frame. Implies BeginList or BeginSet.
func (p *Partial) Push(v any) error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}

	f := p.cur()
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return p.fail(errors.New(errors.PhaseSet, errors.KindShapeMismatch).
			Path(p.Path()...).
			Detail("cannot push untyped nil").
			Build())
	}
	pv := reflect.New(rv.Type())
	pv.Elem().Set(rv)
	src := pv.UnsafePointer()
	srcShape := shape.Of(rv.Type())

	var elem *shape.Shape
	switch {
	case f.track.state == stateSliceBuilder:
		elem = f.shape.Elem
	case f.shape.Kind == shape.KindList:
		if err := p.beginCollection(f, stateList); err != nil {
			return err
		}
		elem = f.shape.Elem
	case f.shape.Kind == shape.KindSet:
		if err := p.beginCollection(f, stateSet); err != nil {
			return err
		}
		elem = f.shape.Elem
	default:
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "push", f.shape.String(), "list or set"))
	}
	if f.track.pushing {
		return p.fail(errors.Invariant(errors.PhaseSet, "element already open"))
	}
	if srcShape != elem {
		return p.fail(errors.ShapeMismatch(errors.PhaseSet, p.Path(), srcShape.String(), elem.String()))
	}

	switch {
	case f.track.state == stateSliceBuilder:
		f.builderOps.Push(f.track.builder, src)
	case f.track.state == stateList:
		f.shape.List.Push(f.data, src)
	default:
		f.shape.Set.Insert(f.data, src)
	}
	return nil
}
