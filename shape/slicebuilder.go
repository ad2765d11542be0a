package shape

import (
	"reflect"
	"unsafe"
)

// PointerToSlice returns an indirection shape whose pointee is an unsized
// sequence of elem. The pointee has no sized layout, so the builder cannot
// allocate a region for it up front; construction goes through the staging
// object exposed by SliceBuilder instead, and Finish writes the final slice
// header into the indirection's own region.
//
// elem must be reflect-backed.
func PointerToSlice(elem *Shape) *Shape {
	sliceType := reflect.SliceOf(elem.Type)

	pointee := &Shape{
		Name:    "[]" + elem.String(),
		Kind:    KindSlice,
		Unsized: true,
		Elem:    elem,
	}

	s := &Shape{
		Name:  sliceType.String(),
		Kind:  KindPointer,
		Type:  sliceType,
		Size:  sliceType.Size(),
		Align: uintptr(sliceType.Align()),
	}
	baseOps(s, sliceType)
	s.Pointer = &PointerOps{Pointee: pointee}
	s.SliceBuilder = sliceBuilderFor(sliceType)
	return s
}

type stagedSlice struct {
	v reflect.Value
}

func sliceBuilderFor(t reflect.Type) *SliceBuilderOps {
	elem := t.Elem()
	return &SliceBuilderOps{
		New: func() unsafe.Pointer {
			return unsafe.Pointer(&stagedSlice{v: reflect.MakeSlice(t, 0, 0)})
		},
		Push: func(builder, e unsafe.Pointer) {
			b := (*stagedSlice)(builder)
			b.v = reflect.Append(b.v, reflect.NewAt(elem, e).Elem())
		},
		Finish: func(builder, dst unsafe.Pointer) {
			b := (*stagedSlice)(builder)
			reflect.NewAt(t, dst).Elem().Set(b.v)
			b.v = reflect.Value{}
		},
		Free: func(builder unsafe.Pointer) {
			(*stagedSlice)(builder).v = reflect.Value{}
		},
	}
}
