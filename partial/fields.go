package partial

import (
	"unsafe"

	"github.com/formworklabs/formwork/errors"
	"github.com/formworklabs/formwork/plan"
)

// BeginField descends into the named field of the current struct or tuple
// frame. The child aliases the parent's region, so no allocation happens;
// if the field was already set, the old value is dropped first.
func (p *Partial) BeginField(name string) error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}

	if p.def != nil {
		return p.deferredBeginField(name)
	}

	f := p.cur()
	i := p.fieldIndex(f, name)
	if i < 0 {
		return p.fail(errors.UnknownField(errors.PhaseSet, p.Path(), name))
	}
	return p.beginNthField(i)
}

// BeginNthField is BeginField by positional index.
func (p *Partial) BeginNthField(i int) error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	if p.def != nil {
		f := p.cur()
		if i < 0 || i >= len(f.shape.Fields) {
			return p.fail(errors.OutOfBounds(errors.PhaseSet, p.Path(), i, len(f.shape.Fields)))
		}
		return p.deferredBeginField(f.shape.Fields[i].Name)
	}
	return p.beginNthField(i)
}

func (p *Partial) beginNthField(i int) error {
	f := p.cur()
	if !f.shape.Kind.IsProduct() {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_field", f.shape.String(), "struct or tuple"))
	}
	if i < 0 || i >= len(f.shape.Fields) {
		return p.fail(errors.OutOfBounds(errors.PhaseSet, p.Path(), i, len(f.shape.Fields)))
	}
	if !f.ensureStruct() {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_field", f.shape.String(), "struct or tuple"))
	}
	f.prepareFieldForOverwrite(i)

	fld := &f.shape.Fields[i]
	child := Frame{
		data:     unsafe.Add(f.data, fld.Offset),
		shape:    fld.Shape,
		rel:      relField,
		slot:     i,
		name:     fld.Name,
		planNode: p.childPlan(f, func(n plan.Node) plan.Node { return n.Field(i) }),
	}
	p.push(child)
	debugf("begin field %s (%s)", fld.Name, fld.Shape)
	return nil
}

// SetField assigns one field of the current frame in a single call, a
// shortcut for BeginField, Set, End.
func (p *Partial) SetField(name string, v any) error {
	if err := p.BeginField(name); err != nil {
		return err
	}
	if err := p.Set(v); err != nil {
		return err
	}
	return p.End()
}

// IsFieldSet reports whether field i of the current struct or tuple frame
// has been completed.
func (p *Partial) IsFieldSet(i int) (bool, error) {
	if err := p.check(errors.PhaseSet); err != nil {
		return false, err
	}
	f := p.cur()
	if !f.shape.Kind.IsProduct() {
		return false, errors.WrongKind(errors.PhaseSet, p.Path(), "is_field_set", f.shape.String(), "struct or tuple")
	}
	if i < 0 || i >= len(f.shape.Fields) {
		return false, errors.OutOfBounds(errors.PhaseSet, p.Path(), i, len(f.shape.Fields))
	}
	switch f.track.state {
	case stateInit:
		return true, nil
	case stateStruct:
		return f.track.bits.has(i), nil
	default:
		return false, nil
	}
}

// fieldIndex resolves a name or alias, through the plan's lookup table
// when one is attached.
func (p *Partial) fieldIndex(f *Frame, name string) int {
	if p.plan != nil && f.planNode >= 0 {
		return p.plan.NodeAt(f.planNode).FieldIndex(name)
	}
	return f.shape.FieldIndex(name)
}

func (p *Partial) variantIndex(f *Frame, name string) int {
	if p.plan != nil && f.planNode >= 0 {
		return p.plan.NodeAt(f.planNode).VariantIndex(name)
	}
	return f.shape.VariantIndex(name)
}

// childPlan maps a frame's plan node to the child node get selects, or -1
// when no plan is tracked.
func (p *Partial) childPlan(f *Frame, get func(plan.Node) plan.Node) int32 {
	if p.plan == nil || f.planNode < 0 {
		return -1
	}
	n := get(p.plan.NodeAt(f.planNode))
	if !n.Valid() {
		return -1
	}
	return n.Index()
}
