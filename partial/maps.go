package partial

import (
	"reflect"

	"github.com/formworklabs/formwork/errors"
	"github.com/formworklabs/formwork/plan"
	"github.com/formworklabs/formwork/shape"
)

// BeginMap marks the current map frame begun, creating the backing store
// on first use. Insertion then runs a key/value sub-machine: BeginKey (or
// SetKey), End, BeginValue, End, repeating.
func (p *Partial) BeginMap() error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Kind != shape.KindMap {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_map", f.shape.String(), "map"))
	}
	return p.beginCollection(f, stateMap)
}

// BeginKey stages a frame for the next entry's key. Implies BeginMap.
func (p *Partial) BeginKey() error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Kind != shape.KindMap {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_key", f.shape.String(), "map"))
	}
	if err := p.beginCollection(f, stateMap); err != nil {
		return err
	}
	if f.track.phase != mapIdle {
		return p.fail(errors.Invariant(errors.PhaseSet, "map entry already in progress"))
	}

	data, pin, err := newRegion(f.shape.Key)
	if err != nil {
		return p.fail(err)
	}
	f.track.phase = mapKeyOpen
	p.push(Frame{
		data:     data,
		shape:    f.shape.Key,
		pin:      pin,
		rel:      relMapKey,
		name:     "[key]",
		owns:     true,
		planNode: p.childPlan(f, func(n plan.Node) plan.Node { return n.Key() }),
	})
	return nil
}

// SetKey stages v as the next entry's key in one call.
func (p *Partial) SetKey(v any) error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Kind != shape.KindMap {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "set_key", f.shape.String(), "map"))
	}
	if err := p.beginCollection(f, stateMap); err != nil {
		return err
	}
	if f.track.phase != mapIdle {
		return p.fail(errors.Invariant(errors.PhaseSet, "map entry already in progress"))
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() || shape.Of(rv.Type()) != f.shape.Key {
		got := "nil"
		if rv.IsValid() {
			got = shape.Of(rv.Type()).String()
		}
		return p.fail(errors.ShapeMismatch(errors.PhaseSet, p.Path(), got, f.shape.Key.String()))
	}

	pv := reflect.New(rv.Type())
	pv.Elem().Set(rv)
	f.track.pendingKey = pv.UnsafePointer()
	f.track.pendingPin = pv
	f.track.phase = mapKeyReady
	return nil
}

// BeginValue stages a frame for the value belonging to the staged key.
func (p *Partial) BeginValue() error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Kind != shape.KindMap {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_value", f.shape.String(), "map"))
	}
	if f.track.phase != mapKeyReady {
		return p.fail(errors.Invariant(errors.PhaseSet, "no key staged for value"))
	}

	data, pin, err := newRegion(f.shape.Elem)
	if err != nil {
		return p.fail(err)
	}
	f.track.phase = mapValueOpen
	p.push(Frame{
		data:     data,
		shape:    f.shape.Elem,
		pin:      pin,
		rel:      relMapValue,
		name:     "[value]",
		owns:     true,
		planNode: p.childPlan(f, func(n plan.Node) plan.Node { return n.Elem() }),
	})
	return nil
}
