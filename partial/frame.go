package partial

import (
	"reflect"
	"unsafe"

	"github.com/formworklabs/formwork/shape"
)

// relation records how a frame's region relates to its parent and which
// splice End performs when the frame is popped.
type relation uint8

const (
	relRoot relation = iota
	relField          // aliases the parent region at a field offset
	relVariantPayload // owned region, case pointer written on splice
	relListItem       // owned region, pushed on splice
	relSetItem        // owned region, inserted on splice
	relMapKey         // owned region, staged as the pending key on splice
	relMapValue       // owned region, inserted with the pending key on splice
	relPointee        // owned region, wrapped into the parent on splice
	relSome           // owned region, stored as the option payload on splice
	relOk             // owned region, stored as the ok payload on splice
	relErr            // owned region, stored as the err payload on splice
	relInner          // aliases the parent region through a transparent wrapper
)

// trackState is the discriminant of a frame's tracker.
type trackState uint8

const (
	stateUninit trackState = iota
	stateInit              // fully written, treated as opaque
	stateStruct
	stateVariant
	stateList
	stateMap
	stateSet
	stateSliceBuilder
)

type mapPhase uint8

const (
	mapIdle mapPhase = iota
	mapKeyOpen
	mapKeyReady
	mapValueOpen
)

// tracker is the per-frame construction state. Fields are meaningful only
// for the states noted on them.
type tracker struct {
	state trackState

	bits    bitset // stateStruct: initialized fields
	variant int    // stateVariant: selected case, -1 before selection
	done    bool   // stateVariant: payload completed

	begun   bool     // list/map/set: backing store created
	pushing bool     // list/set/slice builder: element frame open
	phase   mapPhase // stateMap

	// stateMap: a key that has been staged but not yet inserted. The
	// region is owned by this tracker until the matching value arrives or
	// teardown runs.
	pendingKey unsafe.Pointer
	pendingPin reflect.Value

	builder unsafe.Pointer // stateSliceBuilder: staging object
}

// Frame is one in-progress sub-value: a raw region, its shape, a tracker,
// and the link to the frame it will be spliced into.
type Frame struct {
	data  unsafe.Pointer
	shape *shape.Shape

	// pin keeps the region's backing allocation reachable. Set only for
	// frames that own their region.
	pin reflect.Value

	parent frameID
	rel    relation
	slot   int    // relField: field index; relVariantPayload: variant index
	name   string // path component for errors and deferred keys
	owns   bool

	// defPath keys this frame in the deferred side table. Set only on
	// frames opened through a field path inside a deferred session.
	defPath string

	// viaOption is set on deferred payload frames that were entered
	// through an option-typed field. slot then indexes the parent's field
	// list and the option shape is needed at reconciliation.
	viaOption *shape.Shape

	planNode int32 // node in the active plan, -1 when untracked

	// builderOps is set on builder-mediated pointee frames; the staging
	// ops live on the owning pointer shape, not the unsized pointee.
	builderOps *shape.SliceBuilderOps

	track tracker
}

// zeroSized backs regions of zero-size shapes. Aligned well past any
// alignment a zero-size type can ask for.
var zeroSized [16]byte

// newRegion allocates a region for s. Reflect-backed shapes allocate
// through reflect.New so the collector scans their pointer slots; shapes
// without a reflect type get raw bytes and must not contain Go pointers.
func newRegion(s *shape.Shape) (unsafe.Pointer, reflect.Value, error) {
	if s.Unsized {
		return nil, reflect.Value{}, unsizedErr(s)
	}
	if s.Size == 0 {
		return unsafe.Pointer(&zeroSized), reflect.Value{}, nil
	}
	if s.Type != nil {
		v := reflect.New(s.Type)
		return v.UnsafePointer(), v, nil
	}

	align := s.Align
	if align == 0 {
		align = 1
	}
	buf := make([]byte, s.Size+align-1)
	p := unsafe.Pointer(unsafe.SliceData(buf))
	if off := uintptr(p) % align; off != 0 {
		p = unsafe.Add(p, align-off)
	}
	return p, reflect.ValueOf(buf), nil
}

// ensureStruct promotes the tracker for field access. A frame that was
// fully set as a whole keeps every bit marked so re-opening a field drops
// the old slot value first.
func (f *Frame) ensureStruct() bool {
	switch f.track.state {
	case stateStruct:
		return true
	case stateUninit:
		f.track = tracker{state: stateStruct, bits: newBitset(len(f.shape.Fields))}
		return true
	case stateInit:
		b := newBitset(len(f.shape.Fields))
		b.setAll(len(f.shape.Fields))
		f.track = tracker{state: stateStruct, bits: b}
		return true
	default:
		return false
	}
}

// prepareFieldForOverwrite drops a previously completed field value so the
// slot can be rebuilt. Re-entering the same field twice is idempotent.
func (f *Frame) prepareFieldForOverwrite(i int) {
	if !f.track.bits.has(i) {
		return
	}
	fld := &f.shape.Fields[i]
	if fld.Shape.Drop != nil {
		fld.Shape.Drop(unsafe.Add(f.data, fld.Offset))
	}
	f.track.bits.clear(i)
}

func (f *Frame) markFieldComplete(i int) {
	f.track.bits.set(i)
}

// isComplete reports whether the frame can be spliced into its parent.
func (f *Frame) isComplete() bool {
	switch f.track.state {
	case stateInit:
		return true
	case stateStruct:
		for i := range f.shape.Fields {
			if f.shape.Fields[i].Required && !f.track.bits.has(i) {
				return false
			}
		}
		return true
	case stateVariant:
		return f.track.variant >= 0 && f.track.done
	case stateList, stateSet:
		return f.track.begun && !f.track.pushing
	case stateMap:
		return f.track.begun && f.track.phase == mapIdle
	case stateSliceBuilder:
		return !f.track.pushing
	default:
		// An untouched frame is complete only if nothing is required of
		// it: a product with no required fields counts, a collection or
		// scalar does not.
		if f.shape.Kind.IsProduct() {
			for i := range f.shape.Fields {
				if f.shape.Fields[i].Required {
					return false
				}
			}
			return true
		}
		return false
	}
}

// missing names the first unfinished required part, for error reporting.
func (f *Frame) missing() string {
	switch f.track.state {
	case stateStruct:
		for i := range f.shape.Fields {
			if f.shape.Fields[i].Required && !f.track.bits.has(i) {
				return f.shape.Fields[i].Name
			}
		}
	case stateVariant:
		if f.track.variant < 0 {
			return "(variant selection)"
		}
		return f.shape.Variants[f.track.variant].Name
	case stateUninit:
		if f.shape.Kind.IsProduct() {
			for i := range f.shape.Fields {
				if f.shape.Fields[i].Required {
					return f.shape.Fields[i].Name
				}
			}
		}
	}
	return ""
}

// fillDefaults default-constructs every unset field that declares one.
func (f *Frame) fillDefaults() error {
	if f.track.state == stateUninit && f.shape.Kind.IsProduct() {
		f.ensureStruct()
	}
	if f.track.state != stateStruct {
		return nil
	}
	for i := range f.shape.Fields {
		fld := &f.shape.Fields[i]
		if !fld.HasDefault || f.track.bits.has(i) || fld.Shape.Default == nil {
			continue
		}
		if err := fld.Shape.Default(unsafe.Add(f.data, fld.Offset)); err != nil {
			return err
		}
		f.track.bits.set(i)
	}
	return nil
}

// uninit drops everything this frame initialized, per its tracker, and
// resets the tracker. The region itself is not freed here.
func (f *Frame) uninit() {
	switch f.track.state {
	case stateInit:
		if f.shape.Drop != nil {
			f.shape.Drop(f.data)
		}
	case stateStruct:
		for i := range f.shape.Fields {
			if !f.track.bits.has(i) {
				continue
			}
			fld := &f.shape.Fields[i]
			if fld.Shape.Drop != nil {
				fld.Shape.Drop(unsafe.Add(f.data, fld.Offset))
			}
		}
	case stateVariant:
		if f.track.variant >= 0 && f.track.done {
			v := &f.shape.Variants[f.track.variant]
			slot := unsafe.Add(f.data, v.CaseOffset)
			if v.Payload != nil {
				if p := *(*unsafe.Pointer)(slot); p != nil && v.Payload.Drop != nil {
					v.Payload.Drop(p)
				}
			}
			*(*unsafe.Pointer)(slot) = nil
		}
	case stateList, stateMap, stateSet:
		if f.track.begun && f.shape.Drop != nil {
			f.shape.Drop(f.data)
		}
		if f.track.pendingKey != nil {
			if f.shape.Key != nil && f.shape.Key.Drop != nil {
				f.shape.Key.Drop(f.track.pendingKey)
			}
			f.track.pendingKey = nil
			f.track.pendingPin = reflect.Value{}
		}
	case stateSliceBuilder:
		if f.track.builder != nil {
			if f.builderOps != nil && f.builderOps.Free != nil {
				f.builderOps.Free(f.track.builder)
			}
			f.track.builder = nil
		}
	}
	f.track = tracker{}
}

// bitset tracks per-field initialization.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) has(i int) bool {
	return b[i/64]&(1<<(i%64)) != 0
}

func (b bitset) set(i int) {
	b[i/64] |= 1 << (i % 64)
}

func (b bitset) clear(i int) {
	b[i/64] &^= 1 << (i % 64)
}

func (b bitset) setAll(n int) {
	for i := 0; i < n; i++ {
		b.set(i)
	}
}
