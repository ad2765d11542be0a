package shape

import (
	"reflect"
	"unsafe"
)

// Shape is the immutable descriptor of a constructible type: its kind, its
// memory layout, its sub-structure, and the operation table the builder
// drives it through. All function pointers are optional; a nil entry means
// the operation is unsupported for this shape.
type Shape struct {
	Name    string
	Kind    Kind
	Size    uintptr
	Align   uintptr
	Unsized bool

	// Type is set by the reflect provider. Shapes without it can still be
	// built, but their regions must not contain Go pointers.
	Type reflect.Type

	Fields   []Field
	Variants []Variant

	// Key and Elem describe map keys and list/map/set/slice elements.
	Key  *Shape
	Elem *Shape

	// Ok and Err describe result payloads (nil = unit side).
	Ok  *Shape
	Err *Shape

	// Inner is the payload of an option or the wrapped shape of a
	// transparent wrapper.
	Inner *Shape

	Default     func(ptr unsafe.Pointer) error
	Drop        func(ptr unsafe.Pointer)
	CloneInto   func(dst, src unsafe.Pointer)
	Parse       func(s string, dst unsafe.Pointer) error
	ConvertFrom func(dst unsafe.Pointer, src unsafe.Pointer, srcShape *Shape) error

	List         *ListOps
	Map          *MapOps
	Set          *SetOps
	Option       *OptionOps
	Result       *ResultOps
	Pointer      *PointerOps
	SliceBuilder *SliceBuilderOps
}

// Field describes one slot of a struct or tuple shape.
type Field struct {
	Name       string
	Alias      string
	Offset     uintptr
	Shape      *Shape
	Required   bool
	HasDefault bool
}

// Variant describes one case of an enum or variant shape. For variant
// shapes the region is a struct of one pointer per case; CaseOffset is the
// byte offset of this case's pointer slot. Payload is nil for unit cases.
type Variant struct {
	Name         string
	Discriminant int64
	CaseOffset   uintptr
	Payload      *Shape
}

type ListOps struct {
	Init func(ptr unsafe.Pointer, capHint int)
	Push func(list unsafe.Pointer, elem unsafe.Pointer)
	Len  func(list unsafe.Pointer) int
}

type MapOps struct {
	Init   func(ptr unsafe.Pointer, capHint int)
	Insert func(m unsafe.Pointer, key, val unsafe.Pointer)
	Len    func(m unsafe.Pointer) int
}

type SetOps struct {
	Init   func(ptr unsafe.Pointer, capHint int)
	Insert func(set unsafe.Pointer, elem unsafe.Pointer)
	Len    func(set unsafe.Pointer) int
}

type OptionOps struct {
	InitNone func(ptr unsafe.Pointer)
	InitSome func(ptr unsafe.Pointer, inner unsafe.Pointer)
}

type ResultOps struct {
	InitOk  func(ptr unsafe.Pointer, v unsafe.Pointer)
	InitErr func(ptr unsafe.Pointer, v unsafe.Pointer)
}

type PointerOps struct {
	Pointee *Shape
	Wrap    func(ptr unsafe.Pointer, pointee unsafe.Pointer)
}

// SliceBuilderOps builds an unsized element sequence through an opaque
// staging object, for pointer shapes whose pointee has no sized layout.
type SliceBuilderOps struct {
	New    func() unsafe.Pointer
	Push   func(builder unsafe.Pointer, elem unsafe.Pointer)
	Finish func(builder unsafe.Pointer, dst unsafe.Pointer)
	Free   func(builder unsafe.Pointer)
}

// unitSentinel backs UnitPtr. Unit variant cases and unit result sides
// store this pointer to record presence without a payload.
var unitSentinel byte

// UnitPtr returns the canonical non-nil pointer written for payload-less
// cases. Comparing against it distinguishes "selected, no payload" from
// "not selected".
func UnitPtr() unsafe.Pointer {
	return unsafe.Pointer(&unitSentinel)
}

// String returns the shape's name, falling back to its kind.
func (s *Shape) String() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Kind.String()
}

// FieldIndex resolves a field by name or alias. Returns -1 if absent.
func (s *Shape) FieldIndex(name string) int {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return i
		}
	}
	for i := range s.Fields {
		if s.Fields[i].Alias != "" && s.Fields[i].Alias == name {
			return i
		}
	}
	return -1
}

// VariantIndex resolves a variant by name. Returns -1 if absent.
func (s *Shape) VariantIndex(name string) int {
	for i := range s.Variants {
		if s.Variants[i].Name == name {
			return i
		}
	}
	return -1
}
