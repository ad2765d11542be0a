package partial

import (
	"reflect"
	"sort"
	"strings"
	"unsafe"

	"github.com/formworklabs/formwork/errors"
	"github.com/formworklabs/formwork/plan"
	"github.com/formworklabs/formwork/shape"
)

// pathSep joins field names into side-table keys. Providers reject names
// containing it, so keys cannot collide.
const pathSep = "\x1f"

// deferredSession is the side table for out-of-order field assignment.
// Frames popped inside the session are stored by path instead of being
// validated and spliced; re-entering a stored path restores the frame with
// its construction state intact.
type deferredSession struct {
	base   frameID
	stored map[string]frameID
}

// BeginDeferred starts a deferred session rooted at the current frame.
// Until FinishDeferred runs, ending a frame opened through a field path
// stores it instead of validating it, so sibling subtrees can interleave.
// res optionally supplies lookup tables for the shapes reached during the
// session. Sessions do not nest.
func (p *Partial) BeginDeferred(res *plan.Plan) error {
	if err := p.check(errors.PhaseDeferred); err != nil {
		return err
	}
	if p.def != nil {
		return p.fail(errors.Invariant(errors.PhaseDeferred, "deferred session already active"))
	}

	p.def = &deferredSession{
		base:   p.current,
		stored: make(map[string]frameID),
	}
	if res != nil {
		p.plan = res
		if f := p.cur(); f.planNode < 0 && res.Shape() == f.shape {
			f.planNode = 0
		}
	}
	debugf("begin deferred session")
	return nil
}

// deferredBeginField routes BeginField while a session is active. Paths
// are tracked only from the session base downward; frames reached some
// other way (an open collection element, say) behave normally.
func (p *Partial) deferredBeginField(name string) error {
	f := p.cur()
	if p.current != p.def.base && f.defPath == "" {
		i := p.fieldIndex(f, name)
		if i < 0 {
			return p.fail(errors.UnknownField(errors.PhaseSet, p.Path(), name))
		}
		return p.beginNthField(i)
	}

	i := p.fieldIndex(f, name)
	if i < 0 {
		return p.fail(errors.UnknownField(errors.PhaseSet, p.Path(), name))
	}
	if !f.shape.Kind.IsProduct() {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_field", f.shape.String(), "struct or tuple"))
	}

	// Key paths by the field's primary name so an alias and the name it
	// stands for land on the same stored frame.
	canonical := f.shape.Fields[i].Name
	key := canonical
	if f.defPath != "" {
		key = f.defPath + pathSep + canonical
	}

	// Re-entry: restore the stored frame, state intact.
	if id, ok := p.def.stored[key]; ok {
		delete(p.def.stored, key)
		st := p.arena.get(id)
		st.parent = p.current
		p.current = id
		debugf("restore deferred path %q", key)
		return nil
	}

	if !f.ensureStruct() {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "begin_field", f.shape.String(), "struct or tuple"))
	}
	f.prepareFieldForOverwrite(i)
	fld := &f.shape.Fields[i]

	// An option-typed field is entered through its payload so the path
	// stays one component; the option itself is completed with the stored
	// payload at reconciliation time.
	if fld.Shape.Kind == shape.KindOption && fld.Shape.Option != nil && fld.Shape.Inner != nil {
		data, pin, err := newRegion(fld.Shape.Inner)
		if err != nil {
			return p.fail(err)
		}
		p.push(Frame{
			data:      data,
			shape:     fld.Shape.Inner,
			pin:       pin,
			rel:       relField,
			slot:      i,
			name:      canonical,
			owns:      true,
			defPath:   key,
			viaOption: fld.Shape,
			planNode:  p.childPlan(f, func(n plan.Node) plan.Node { return n.Field(i).Inner() }),
		})
		return nil
	}

	p.push(Frame{
		data:     unsafe.Add(f.data, fld.Offset),
		shape:    fld.Shape,
		rel:      relField,
		slot:     i,
		name:     canonical,
		defPath:  key,
		planNode: p.childPlan(f, func(n plan.Node) plan.Node { return n.Field(i) }),
	})
	return nil
}

// deferredEnd stores the current path frame and pops one level. No
// validation happens here; FinishDeferred checks completion.
func (p *Partial) deferredEnd() error {
	f := p.cur()
	parent := f.parent
	p.def.stored[f.defPath] = p.current
	p.current = parent
	debugf("store deferred path %q", f.defPath)
	return nil
}

// FinishDeferred reconciles every stored frame, deepest paths first, so a
// child's completion marks its parent before the parent itself is checked.
// Defaults are filled before validation. On any failure every stored frame
// and every live frame is torn down exactly once and the builder is
// poisoned.
func (p *Partial) FinishDeferred() error {
	if err := p.check(errors.PhaseDeferred); err != nil {
		return err
	}
	if p.def == nil {
		return p.fail(errors.Invariant(errors.PhaseDeferred, "no deferred session active"))
	}
	if p.current != p.def.base {
		return p.failDeferred(errors.Invariant(errors.PhaseDeferred, "frames still open inside the deferred session"))
	}

	paths := make([]string, 0, len(p.def.stored))
	for path := range p.def.stored {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool {
		di, dj := strings.Count(paths[i], pathSep), strings.Count(paths[j], pathSep)
		if di != dj {
			return di > dj
		}
		return paths[i] < paths[j]
	})

	for _, path := range paths {
		id := p.def.stored[path]
		f := p.arena.get(id)

		if err := f.fillDefaults(); err != nil {
			return p.failDeferred(errors.Wrap(errors.PhaseDeferred, errors.KindNoDefault, err, "default construction failed"))
		}
		if !f.isComplete() {
			return p.failDeferred(errors.NotInitialized(errors.PhaseDeferred, strings.Split(path, pathSep), f.shape.String(), f.missing()))
		}

		parent := p.deferredParent(path)
		if f.viaOption != nil {
			fld := &parent.shape.Fields[f.slot]
			f.viaOption.Option.InitSome(unsafe.Add(parent.data, fld.Offset), f.data)
		}
		parent.ensureStruct()
		parent.markFieldComplete(f.slot)

		done := p.arena.release(id)
		done.pin = reflect.Value{}
		delete(p.def.stored, path)
	}

	base := p.arena.get(p.def.base)
	if err := base.fillDefaults(); err != nil {
		return p.failDeferred(errors.Wrap(errors.PhaseDeferred, errors.KindNoDefault, err, "default construction failed"))
	}
	if !base.isComplete() {
		return p.failDeferred(errors.NotInitialized(errors.PhaseDeferred, p.Path(), base.shape.String(), base.missing()))
	}

	p.def = nil
	debugf("deferred session reconciled")
	return nil
}

// deferredParent resolves the frame a stored path splices into: the stored
// frame one component up, or the session base for top-level paths.
func (p *Partial) deferredParent(path string) *Frame {
	if i := strings.LastIndex(path, pathSep); i >= 0 {
		if id, ok := p.def.stored[path[:i]]; ok {
			return p.arena.get(id)
		}
	}
	return p.arena.get(p.def.base)
}

// failDeferred tears everything down immediately. A half-reconciled side
// table cannot be walked again safely, so the usual lazy cleanup on Close
// is replaced by one eager pass and the builder is locked.
func (p *Partial) failDeferred(err error) error {
	for path, id := range p.def.stored {
		f := p.arena.release(id)
		f.uninit()
		f.pin = reflect.Value{}
		delete(p.def.stored, path)
	}
	p.teardownStack()
	p.def = nil
	p.tornDown = true
	p.state = statePoisoned
	return err
}
