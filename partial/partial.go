package partial

import (
	"reflect"
	"unsafe"

	"go.uber.org/zap"

	"github.com/formworklabs/formwork/errors"
	"github.com/formworklabs/formwork/plan"
	"github.com/formworklabs/formwork/shape"
)

type partialState uint8

const (
	stateActive partialState = iota
	statePoisoned
	stateConsumed
	stateClosed
)

// Partial incrementally constructs one value of a given shape. Operations
// push and pop frames; any failed operation poisons the builder so later
// calls fail fast, and Close releases everything that was initialized no
// matter where construction stopped.
//
// A Partial is not safe for concurrent use.
type Partial struct {
	arena   arena
	root    frameID
	current frameID

	state    partialState
	def      *deferredSession // nil outside deferred mode
	tornDown bool             // resources already released eagerly

	plan    *plan.Plan
	capHint int

	// pins holds backing allocations whose raw pointers were stored into
	// parent regions during a splice, keeping them reachable until the
	// built value takes over.
	pins []reflect.Value
}

// Option configures a Partial at construction time.
type Option func(*Partial)

// WithPlan attaches a precomputed plan; field and variant lookups then go
// through the plan's lookup tables instead of scanning the shape.
func WithPlan(pl *plan.Plan) Option {
	return func(p *Partial) { p.plan = pl }
}

// WithCapacityHint presizes collection backing stores when they are first
// begun.
func WithCapacityHint(n int) Option {
	return func(p *Partial) { p.capHint = n }
}

// New allocates the root frame for s and returns a builder positioned on
// it. Fails if s has no sized layout. Zero-size shapes get a dangling,
// aligned, non-deallocated region.
func New(s *shape.Shape, opts ...Option) (*Partial, error) {
	p := &Partial{}
	for _, opt := range opts {
		opt(p)
	}

	data, pin, err := newRegion(s)
	if err != nil {
		return nil, err
	}

	f := Frame{
		data:     data,
		shape:    s,
		pin:      pin,
		rel:      relRoot,
		name:     s.String(),
		owns:     true,
		planNode: -1,
	}
	if p.plan != nil && p.plan.Shape() == s {
		f.planNode = 0
	}

	p.root = p.arena.alloc(f)
	p.current = p.root

	debugf("alloc root shape=%s size=%d", s, s.Size)
	return p, nil
}

// Alloc is shorthand for New without options.
func Alloc(s *shape.Shape) (*Partial, error) {
	return New(s)
}

func unsizedErr(s *shape.Shape) error {
	return errors.Unsized(errors.PhaseAlloc, s.String())
}

// check gates every operation on the builder's state.
func (p *Partial) check(phase errors.Phase) error {
	switch p.state {
	case stateActive:
		return nil
	case statePoisoned:
		return errors.Poisoned(phase)
	default:
		return errors.Consumed(phase)
	}
}

// poison locks the builder after a failed operation. Resources stay in
// place until Close runs the teardown walk.
func (p *Partial) poison() {
	if p.state == stateActive {
		p.state = statePoisoned
	}
}

// fail poisons and returns err.
func (p *Partial) fail(err error) error {
	p.poison()
	Logger().Debug("operation failed", zap.Error(err))
	return err
}

func (p *Partial) cur() *Frame {
	return p.arena.get(p.current)
}

// IsPoisoned reports whether a prior failure locked the builder.
func (p *Partial) IsPoisoned() bool {
	return p.state == statePoisoned
}

// Shape returns the shape of the current frame.
func (p *Partial) Shape() *shape.Shape {
	return p.cur().shape
}

// FrameCount returns the number of live frames on the stack.
func (p *Partial) FrameCount() int {
	n := 0
	for id := p.current; id != nilFrame; {
		f := p.arena.get(id)
		n++
		id = f.parent
	}
	return n
}

// Path returns the path components from the root to the current frame.
func (p *Partial) Path() []string {
	var rev []string
	for id := p.current; id != p.root; {
		f := p.arena.get(id)
		rev = append(rev, f.name)
		id = f.parent
	}
	path := make([]string, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}

// push allocates a child frame and makes it current.
func (p *Partial) push(f Frame) {
	f.parent = p.current
	p.current = p.arena.alloc(f)
}

// Set writes v into the current frame, dropping any prior value. The value
// must match the frame's shape or be convertible to it.
func (p *Partial) Set(v any) error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return p.fail(errors.New(errors.PhaseSet, errors.KindShapeMismatch).
			Path(p.Path()...).
			Want(p.cur().shape.String()).
			Detail("cannot set untyped nil").
			Build())
	}

	// Copy to an addressable location so the region can be read from.
	pv := reflect.New(rv.Type())
	pv.Elem().Set(rv)
	return p.setValue(pv.UnsafePointer(), shape.Of(rv.Type()))
}

// SetValue writes the bytes at src, described by s, into the current
// frame. If s differs from the frame's shape, the frame shape's
// convert-from hook is used; without one the call fails with a shape
// mismatch.
func (p *Partial) SetValue(src unsafe.Pointer, s *shape.Shape) error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	return p.setValue(src, s)
}

// sessionBaseGuard rejects whole-frame writes to the deferred session
// base: the side table holds frames aliasing its region, and overwriting
// it would leave them pointing into replaced data.
func (p *Partial) sessionBaseGuard() error {
	if p.def != nil && p.current == p.def.base {
		return p.fail(errors.Invariant(errors.PhaseSet, "cannot overwrite the deferred session base"))
	}
	return nil
}

func (p *Partial) setValue(src unsafe.Pointer, s *shape.Shape) error {
	if err := p.sessionBaseGuard(); err != nil {
		return err
	}
	f := p.cur()

	if s != f.shape {
		if f.shape.ConvertFrom == nil {
			return p.fail(errors.ShapeMismatch(errors.PhaseSet, p.Path(), s.String(), f.shape.String()))
		}
		f.uninit()
		if err := f.shape.ConvertFrom(f.data, src, s); err != nil {
			return p.fail(errors.Conversion(errors.PhaseSet, p.Path(), s.String(), f.shape.String(), err))
		}
		f.track.state = stateInit
		return nil
	}

	f.uninit()
	if f.shape.CloneInto != nil {
		f.shape.CloneInto(f.data, src)
	} else {
		copyRegion(f.data, src, f.shape.Size)
	}
	f.track.state = stateInit
	return nil
}

// SetDefault default-constructs the current frame in place, dropping any
// prior value. Fails if the shape has no default.
func (p *Partial) SetDefault() error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	if err := p.sessionBaseGuard(); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Default == nil {
		return p.fail(errors.NoDefault(errors.PhaseSet, p.Path(), f.shape.String()))
	}
	f.uninit()
	if err := f.shape.Default(f.data); err != nil {
		return p.fail(errors.Wrap(errors.PhaseSet, errors.KindNoDefault, err, "default construction failed"))
	}
	f.track.state = stateInit
	return nil
}

// Parse fills the current scalar frame from its textual form via the
// shape's parse hook.
func (p *Partial) Parse(s string) error {
	if err := p.check(errors.PhaseSet); err != nil {
		return err
	}
	if err := p.sessionBaseGuard(); err != nil {
		return err
	}
	f := p.cur()
	if f.shape.Parse == nil {
		return p.fail(errors.WrongKind(errors.PhaseSet, p.Path(), "parse", f.shape.String(), "parseable scalar"))
	}
	f.uninit()
	if err := f.shape.Parse(s, f.data); err != nil {
		return p.fail(errors.ParseFailed(p.Path(), f.shape.String(), err))
	}
	f.track.state = stateInit
	return nil
}

func copyRegion(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}
