package shape

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"github.com/formworklabs/formwork/errors"
)

var cache sync.Map // reflect.Type -> *Shape

// For returns the shape describing T.
func For[T any]() *Shape {
	return Of(reflect.TypeOf((*T)(nil)).Elem())
}

// Of returns the shape describing t. Results are cached per type; recursive
// types are handled by emitting the in-progress node when a type references
// itself (directly or through a pointer).
//
// Pointer types map to option shapes, following the convention that an
// absent value is a nil pointer. A struct field can opt out with the
// `shape:",pointer"` tag, which maps the field to a plain indirection
// instead.
func Of(t reflect.Type) *Shape {
	if s, ok := cache.Load(t); ok {
		return s.(*Shape)
	}

	b := &reflectBuilder{inProgress: make(map[reflect.Type]*Shape)}
	s := b.build(t)

	// Publish every node built on this path. LoadOrStore keeps the first
	// published graph when two goroutines race on the same type.
	actual, _ := cache.LoadOrStore(t, s)
	for rt, rs := range b.inProgress {
		if rt != t {
			cache.LoadOrStore(rt, rs)
		}
	}
	return actual.(*Shape)
}

type reflectBuilder struct {
	inProgress map[reflect.Type]*Shape
}

func (b *reflectBuilder) build(t reflect.Type) *Shape {
	if s, ok := cache.Load(t); ok {
		return s.(*Shape)
	}
	if s, ok := b.inProgress[t]; ok {
		return s
	}

	s := &Shape{
		Name:  t.String(),
		Type:  t,
		Size:  t.Size(),
		Align: uintptr(t.Align()),
	}
	b.inProgress[t] = s
	b.fill(s, t)
	return s
}

func (b *reflectBuilder) fill(s *Shape, t reflect.Type) {
	baseOps(s, t)

	switch t.Kind() {
	case reflect.Bool:
		s.Kind = KindBool
	case reflect.Uint8:
		s.Kind = KindU8
	case reflect.Uint16:
		s.Kind = KindU16
	case reflect.Uint32:
		s.Kind = KindU32
	case reflect.Uint64:
		s.Kind = KindU64
	case reflect.Uint, reflect.Uintptr:
		s.Kind = KindU64
		if t.Size() == 4 {
			s.Kind = KindU32
		}
	case reflect.Int8:
		s.Kind = KindS8
	case reflect.Int16:
		s.Kind = KindS16
	case reflect.Int32:
		s.Kind = KindS32
	case reflect.Int64:
		s.Kind = KindS64
	case reflect.Int:
		s.Kind = KindS64
		if t.Size() == 4 {
			s.Kind = KindS32
		}
	case reflect.Float32:
		s.Kind = KindF32
	case reflect.Float64:
		s.Kind = KindF64
	case reflect.String:
		s.Kind = KindString
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			s.Kind = KindBytes
			break
		}
		s.Kind = KindList
		s.Elem = b.build(t.Elem())
		s.List = listOpsFor(t)
	case reflect.Array:
		s.Kind = KindTuple
		elem := b.build(t.Elem())
		s.Fields = make([]Field, t.Len())
		for i := range s.Fields {
			s.Fields[i] = Field{
				Name:     strconv.Itoa(i),
				Offset:   uintptr(i) * t.Elem().Size(),
				Shape:    elem,
				Required: true,
			}
		}
	case reflect.Map:
		if isSetElem(t.Elem()) {
			s.Kind = KindSet
			s.Elem = b.build(t.Key())
			s.Set = setOpsFor(t)
			break
		}
		s.Kind = KindMap
		s.Key = b.build(t.Key())
		s.Elem = b.build(t.Elem())
		s.Map = mapOpsFor(t)
	case reflect.Pointer:
		s.Kind = KindOption
		s.Inner = b.build(t.Elem())
		s.Option = optionOpsFor(t)
	case reflect.Struct:
		s.Kind = KindStruct
		s.Fields = b.structFields(t)
	default:
		// Interfaces, channels, funcs and the rest are opaque: settable
		// as whole values, never descended into.
		s.Kind = KindOpaque
	}

	if s.Kind.IsScalar() && s.Kind != KindOpaque {
		scalarParse(s, t)
		scalarConvert(s, t)
	}
}

func (b *reflectBuilder) structFields(t reflect.Type) []Field {
	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue // unexported
		}

		tag := parseTag(sf.Tag.Get("shape"))
		if tag.skip {
			continue
		}

		var fs *Shape
		if tag.pointer && sf.Type.Kind() == reflect.Pointer {
			fs = b.pointerShape(sf.Type)
		} else {
			fs = b.build(sf.Type)
		}

		name := sf.Name
		if tag.name != "" {
			name = tag.name
		}

		required := fs.Kind != KindOption && !tag.hasDefault
		if tag.required {
			required = true
		}

		fields = append(fields, Field{
			Name:       name,
			Alias:      tag.alias,
			Offset:     sf.Offset,
			Shape:      fs,
			Required:   required,
			HasDefault: tag.hasDefault,
		})
	}
	return fields
}

// pointerShape maps *T to a plain indirection instead of an option. These
// shapes are not cached: the cache slot for the pointer type belongs to the
// option mapping.
func (b *reflectBuilder) pointerShape(t reflect.Type) *Shape {
	s := &Shape{
		Name:  t.String(),
		Kind:  KindPointer,
		Type:  t,
		Size:  t.Size(),
		Align: uintptr(t.Align()),
	}
	baseOps(s, t)
	s.Pointer = &PointerOps{
		Pointee: b.build(t.Elem()),
		Wrap:    wrapFor(t),
	}
	return s
}

func isSetElem(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.NumField() == 0
}

type fieldTag struct {
	name       string
	alias      string
	skip       bool
	required   bool
	hasDefault bool
	pointer    bool
}

// parseTag reads `shape:"name,opt,..."`. Supported options: required,
// default, pointer, alias=x. A bare "-" skips the field.
func parseTag(tag string) fieldTag {
	if tag == "" {
		return fieldTag{}
	}
	if tag == "-" {
		return fieldTag{skip: true}
	}

	parts := strings.Split(tag, ",")
	ft := fieldTag{name: parts[0]}
	for _, opt := range parts[1:] {
		switch {
		case opt == "required":
			ft.required = true
		case opt == "default":
			ft.hasDefault = true
		case opt == "pointer":
			ft.pointer = true
		case strings.HasPrefix(opt, "alias="):
			ft.alias = strings.TrimPrefix(opt, "alias=")
		}
	}
	return ft
}

// baseOps installs the default-construct, drop and clone operations every
// reflect-backed shape supports. Drop zeroes the region through the typed
// view so the collector sees pointer slots cleared.
func baseOps(s *Shape, t reflect.Type) {
	s.Default = func(ptr unsafe.Pointer) error {
		reflect.NewAt(t, ptr).Elem().SetZero()
		return nil
	}
	s.Drop = func(ptr unsafe.Pointer) {
		reflect.NewAt(t, ptr).Elem().SetZero()
	}
	s.CloneInto = func(dst, src unsafe.Pointer) {
		reflect.NewAt(t, dst).Elem().Set(reflect.NewAt(t, src).Elem())
	}
}

func scalarParse(s *Shape, t reflect.Type) {
	kind := s.Kind
	s.Parse = func(str string, dst unsafe.Pointer) error {
		v := reflect.NewAt(t, dst).Elem()
		switch kind {
		case KindBool:
			b, err := strconv.ParseBool(str)
			if err != nil {
				return err
			}
			v.SetBool(b)
		case KindU8, KindU16, KindU32, KindU64:
			n, err := strconv.ParseUint(str, 10, t.Bits())
			if err != nil {
				return err
			}
			v.SetUint(n)
		case KindS8, KindS16, KindS32, KindS64:
			n, err := strconv.ParseInt(str, 10, t.Bits())
			if err != nil {
				return err
			}
			v.SetInt(n)
		case KindF32, KindF64:
			f, err := strconv.ParseFloat(str, t.Bits())
			if err != nil {
				return err
			}
			v.SetFloat(f)
		case KindString:
			v.SetString(str)
		case KindBytes:
			v.SetBytes([]byte(str))
		}
		return nil
	}
}

// scalarConvert installs the convert-from hook used when a completed child
// frame's shape differs from the slot the parent declared. Anything
// reflect-convertible goes through, which covers numeric widening and the
// string/bytes pair.
func scalarConvert(s *Shape, t reflect.Type) {
	name := s.Name
	s.ConvertFrom = func(dst, src unsafe.Pointer, srcShape *Shape) error {
		if srcShape.Type == nil {
			return errors.Conversion(errors.PhaseEnd, nil, srcShape.String(), name, nil)
		}
		sv := reflect.NewAt(srcShape.Type, src).Elem()
		if !sv.Type().ConvertibleTo(t) {
			return errors.Conversion(errors.PhaseEnd, nil, srcShape.String(), name, nil)
		}
		reflect.NewAt(t, dst).Elem().Set(sv.Convert(t))
		return nil
	}
}

func listOpsFor(t reflect.Type) *ListOps {
	elem := t.Elem()
	return &ListOps{
		Init: func(ptr unsafe.Pointer, capHint int) {
			reflect.NewAt(t, ptr).Elem().Set(reflect.MakeSlice(t, 0, capHint))
		},
		Push: func(list, e unsafe.Pointer) {
			lv := reflect.NewAt(t, list).Elem()
			lv.Set(reflect.Append(lv, reflect.NewAt(elem, e).Elem()))
		},
		Len: func(list unsafe.Pointer) int {
			return reflect.NewAt(t, list).Elem().Len()
		},
	}
}

func mapOpsFor(t reflect.Type) *MapOps {
	key, elem := t.Key(), t.Elem()
	return &MapOps{
		Init: func(ptr unsafe.Pointer, capHint int) {
			reflect.NewAt(t, ptr).Elem().Set(reflect.MakeMapWithSize(t, capHint))
		},
		Insert: func(m, k, v unsafe.Pointer) {
			mv := reflect.NewAt(t, m).Elem()
			mv.SetMapIndex(reflect.NewAt(key, k).Elem(), reflect.NewAt(elem, v).Elem())
		},
		Len: func(m unsafe.Pointer) int {
			return reflect.NewAt(t, m).Elem().Len()
		},
	}
}

func setOpsFor(t reflect.Type) *SetOps {
	key := t.Key()
	member := reflect.Zero(t.Elem())
	return &SetOps{
		Init: func(ptr unsafe.Pointer, capHint int) {
			reflect.NewAt(t, ptr).Elem().Set(reflect.MakeMapWithSize(t, capHint))
		},
		Insert: func(set, e unsafe.Pointer) {
			sv := reflect.NewAt(t, set).Elem()
			sv.SetMapIndex(reflect.NewAt(key, e).Elem(), member)
		},
		Len: func(set unsafe.Pointer) int {
			return reflect.NewAt(t, set).Elem().Len()
		},
	}
}

func optionOpsFor(t reflect.Type) *OptionOps {
	return &OptionOps{
		InitNone: func(ptr unsafe.Pointer) {
			reflect.NewAt(t, ptr).Elem().SetZero()
		},
		InitSome: wrapFor(t),
	}
}

// wrapFor copies completed pointee bytes into a fresh heap value and stores
// the typed pointer at ptr.
func wrapFor(t reflect.Type) func(ptr, pointee unsafe.Pointer) {
	elem := t.Elem()
	return func(ptr, pointee unsafe.Pointer) {
		pv := reflect.New(elem)
		pv.Elem().Set(reflect.NewAt(elem, pointee).Elem())
		reflect.NewAt(t, ptr).Elem().Set(pv)
	}
}
