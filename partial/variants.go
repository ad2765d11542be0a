package partial

import (
	"unsafe"

	"github.com/formworklabs/formwork/errors"
	"github.com/formworklabs/formwork/plan"
	"github.com/formworklabs/formwork/shape"
)

// SelectVariant picks case i of the current enum or variant frame. A prior
// completed selection is dropped first. Enum and unit cases complete
// immediately; payload cases push a frame for the payload, which End
// splices back by writing the case pointer.
func (p *Partial) SelectVariant(i int) error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}

	f := p.cur()
	switch f.shape.Kind {
	case shape.KindEnum:
		if i < 0 || i >= len(f.shape.Variants) {
			return p.fail(errors.OutOfBounds(errors.PhaseSet, p.Path(), i, len(f.shape.Variants)))
		}
		writeDiscriminant(f.data, f.shape.Size, f.shape.Variants[i].Discriminant)
		f.track = tracker{state: stateInit}
		return nil

	case shape.KindVariant:
		if i < 0 || i >= len(f.shape.Variants) {
			return p.fail(errors.OutOfBounds(errors.PhaseSet, p.Path(), i, len(f.shape.Variants)))
		}
		f.uninit()

		v := &f.shape.Variants[i]
		f.track = tracker{state: stateVariant, variant: i}
		if v.Payload == nil {
			*(*unsafe.Pointer)(unsafe.Add(f.data, v.CaseOffset)) = shape.UnitPtr()
			f.track.done = true
			return nil
		}

		data, pin, err := newRegion(v.Payload)
		if err != nil {
			return p.fail(err)
		}
		child := Frame{
			data:     data,
			shape:    v.Payload,
			pin:      pin,
			rel:      relVariantPayload,
			slot:     i,
			name:     v.Name,
			owns:     true,
			planNode: p.childPlan(f, func(n plan.Node) plan.Node { return n.VariantPayload(i) }),
		}
		p.push(child)
		debugf("select variant %s (%s)", v.Name, v.Payload)
		return nil

	default:
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "select_variant", f.shape.String(), "enum or variant"))
	}
}

// SelectVariantNamed is SelectVariant by case name.
func (p *Partial) SelectVariantNamed(name string) error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	f := p.cur()
	i := p.variantIndex(f, name)
	if i < 0 {
		return p.fail(errors.UnknownVariant(errors.PhaseSet, p.Path(), name))
	}
	return p.SelectVariant(i)
}

// writeDiscriminant stores v as an integer of the enum's size.
func writeDiscriminant(ptr unsafe.Pointer, size uintptr, v int64) {
	switch size {
	case 1:
		*(*uint8)(ptr) = uint8(v)
	case 2:
		*(*uint16)(ptr) = uint16(v)
	case 4:
		*(*uint32)(ptr) = uint32(v)
	default:
		*(*uint64)(ptr) = uint64(v)
	}
}
