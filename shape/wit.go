package shape

import (
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unsafe"

	"go.bytecodealliance.org/wit"

	"github.com/formworklabs/formwork/errors"
)

// FromWIT maps a WIT type to a shape backed by a synthesized Go
// representation: records and tuples become structs, lists slices, options
// pointers, enums uint32 discriminants, and variants and results structs of
// one pointer per case. Resource handles (own/borrow) and flags are not
// constructible and return an error.
func FromWIT(t wit.Type) (*Shape, error) {
	c := &witCompiler{shapes: make(map[*wit.TypeDef]*Shape)}
	return c.compile(t)
}

type witCompiler struct {
	shapes map[*wit.TypeDef]*Shape
}

func (c *witCompiler) compile(t wit.Type) (*Shape, error) {
	switch v := t.(type) {
	case wit.Bool:
		return Of(reflect.TypeOf(false)), nil
	case wit.U8:
		return Of(reflect.TypeOf(uint8(0))), nil
	case wit.S8:
		return Of(reflect.TypeOf(int8(0))), nil
	case wit.U16:
		return Of(reflect.TypeOf(uint16(0))), nil
	case wit.S16:
		return Of(reflect.TypeOf(int16(0))), nil
	case wit.U32:
		return Of(reflect.TypeOf(uint32(0))), nil
	case wit.S32:
		return Of(reflect.TypeOf(int32(0))), nil
	case wit.U64:
		return Of(reflect.TypeOf(uint64(0))), nil
	case wit.S64:
		return Of(reflect.TypeOf(int64(0))), nil
	case wit.F32:
		return Of(reflect.TypeOf(float32(0))), nil
	case wit.F64:
		return Of(reflect.TypeOf(float64(0))), nil
	case wit.Char:
		return Of(reflect.TypeOf(rune(0))), nil
	case wit.String:
		return Of(reflect.TypeOf("")), nil
	case *wit.TypeDef:
		return c.compileTypeDef(v)
	default:
		return nil, errors.New(errors.PhaseProvide, errors.KindUnsupported).
			Detail("unsupported WIT type: %T", t).
			Build()
	}
}

func (c *witCompiler) compileTypeDef(td *wit.TypeDef) (*Shape, error) {
	if s, ok := c.shapes[td]; ok {
		return s, nil
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		return c.compileRecord(td, kind)
	case *wit.Tuple:
		return c.compileTuple(td, kind)
	case *wit.List:
		return c.compileList(td, kind)
	case *wit.Enum:
		return c.compileEnum(td, kind)
	case *wit.Option:
		return c.compileOption(td, kind)
	case *wit.Result:
		return c.compileResult(td, kind)
	case *wit.Variant:
		return c.compileVariant(td, kind)
	case wit.Type:
		return c.compile(kind) // type alias
	default:
		return nil, errors.New(errors.PhaseProvide, errors.KindUnsupported).
			Detail("unsupported TypeDef kind: %T", kind).
			Build()
	}
}

func (c *witCompiler) compileRecord(td *wit.TypeDef, r *wit.Record) (*Shape, error) {
	subs := make([]*Shape, len(r.Fields))
	structFields := make([]reflect.StructField, len(r.Fields))
	for i, f := range r.Fields {
		fs, err := c.compile(f.Type)
		if err != nil {
			return nil, err
		}
		subs[i] = fs
		structFields[i] = reflect.StructField{
			Name: goName(f.Name),
			Type: fs.Type,
		}
	}

	goType := reflect.StructOf(structFields)
	s := newWitShape(td, KindStruct, goType)
	s.Fields = make([]Field, len(r.Fields))
	for i, f := range r.Fields {
		s.Fields[i] = Field{
			Name:     f.Name,
			Offset:   goType.Field(i).Offset,
			Shape:    subs[i],
			Required: subs[i].Kind != KindOption,
		}
	}

	c.shapes[td] = s
	return s, nil
}

func (c *witCompiler) compileTuple(td *wit.TypeDef, t *wit.Tuple) (*Shape, error) {
	subs := make([]*Shape, len(t.Types))
	structFields := make([]reflect.StructField, len(t.Types))
	for i, et := range t.Types {
		es, err := c.compile(et)
		if err != nil {
			return nil, err
		}
		subs[i] = es
		structFields[i] = reflect.StructField{
			Name: "F" + strconv.Itoa(i),
			Type: es.Type,
		}
	}

	goType := reflect.StructOf(structFields)
	s := newWitShape(td, KindTuple, goType)
	s.Fields = make([]Field, len(t.Types))
	for i := range t.Types {
		s.Fields[i] = Field{
			Name:     strconv.Itoa(i),
			Offset:   goType.Field(i).Offset,
			Shape:    subs[i],
			Required: true,
		}
	}

	c.shapes[td] = s
	return s, nil
}

func (c *witCompiler) compileList(td *wit.TypeDef, l *wit.List) (*Shape, error) {
	elem, err := c.compile(l.Type)
	if err != nil {
		return nil, err
	}

	goType := reflect.SliceOf(elem.Type)
	s := newWitShape(td, KindList, goType)
	s.Elem = elem
	s.List = listOpsFor(goType)

	c.shapes[td] = s
	return s, nil
}

func (c *witCompiler) compileEnum(td *wit.TypeDef, e *wit.Enum) (*Shape, error) {
	goType := reflect.TypeOf(uint32(0))
	s := newWitShape(td, KindEnum, goType)
	s.Variants = make([]Variant, len(e.Cases))
	for i, ec := range e.Cases {
		s.Variants[i] = Variant{Name: ec.Name, Discriminant: int64(i)}
	}

	c.shapes[td] = s
	return s, nil
}

func (c *witCompiler) compileOption(td *wit.TypeDef, o *wit.Option) (*Shape, error) {
	inner, err := c.compile(o.Type)
	if err != nil {
		return nil, err
	}

	goType := reflect.PointerTo(inner.Type)
	s := newWitShape(td, KindOption, goType)
	s.Inner = inner
	s.Option = optionOpsFor(goType)

	c.shapes[td] = s
	return s, nil
}

func (c *witCompiler) compileResult(td *wit.TypeDef, r *wit.Result) (*Shape, error) {
	var err error
	var okShape, errShape *Shape

	okGo := unitCaseType
	if r.OK != nil {
		if okShape, err = c.compile(r.OK); err != nil {
			return nil, err
		}
		okGo = reflect.PointerTo(okShape.Type)
	}

	errGo := unitCaseType
	if r.Err != nil {
		if errShape, err = c.compile(r.Err); err != nil {
			return nil, err
		}
		errGo = reflect.PointerTo(errShape.Type)
	}

	goType := reflect.StructOf([]reflect.StructField{
		{Name: "Ok", Type: okGo},
		{Name: "Err", Type: errGo},
	})
	s := newWitShape(td, KindResult, goType)
	s.Ok = okShape
	s.Err = errShape
	s.Result = resultOpsFor(goType, okShape, errShape)

	c.shapes[td] = s
	return s, nil
}

func (c *witCompiler) compileVariant(td *wit.TypeDef, v *wit.Variant) (*Shape, error) {
	subs := make([]*Shape, len(v.Cases))
	structFields := make([]reflect.StructField, len(v.Cases))
	for i, vc := range v.Cases {
		caseGo := unitCaseType
		if vc.Type != nil {
			cs, err := c.compile(vc.Type)
			if err != nil {
				return nil, err
			}
			subs[i] = cs
			caseGo = reflect.PointerTo(cs.Type)
		}
		structFields[i] = reflect.StructField{
			Name: goName(vc.Name),
			Type: caseGo,
		}
	}

	goType := reflect.StructOf(structFields)
	s := newWitShape(td, KindVariant, goType)
	s.Variants = make([]Variant, len(v.Cases))
	for i, vc := range v.Cases {
		s.Variants[i] = Variant{
			Name:         vc.Name,
			Discriminant: int64(i),
			CaseOffset:   goType.Field(i).Offset,
			Payload:      subs[i],
		}
	}

	c.shapes[td] = s
	return s, nil
}

// unitCaseType is the field type used for payload-less cases. All values of
// it are interchangeable; presence is recorded by a non-nil pointer.
var unitCaseType = reflect.TypeOf((*struct{})(nil))

func newWitShape(td *wit.TypeDef, kind Kind, goType reflect.Type) *Shape {
	s := &Shape{
		Name:  tdName(td),
		Kind:  kind,
		Type:  goType,
		Size:  goType.Size(),
		Align: uintptr(goType.Align()),
	}
	baseOps(s, goType)
	return s
}

func tdName(td *wit.TypeDef) string {
	if td.Name != nil {
		return *td.Name
	}
	return ""
}

// goName converts a kebab-case WIT name to an exported Go identifier.
func goName(witName string) string {
	var b strings.Builder
	upper := true
	for _, r := range witName {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resultOpsFor writes one side of an Ok/Err pointer pair, clearing the
// other. A nil side shape stores the unit marker instead of a payload.
func resultOpsFor(t reflect.Type, okShape, errShape *Shape) *ResultOps {
	return &ResultOps{
		InitOk:  resultSideFor(t, 0, okShape),
		InitErr: resultSideFor(t, 1, errShape),
	}
}

var unitMarker = new(struct{})

func resultSideFor(t reflect.Type, field int, payload *Shape) func(ptr, v unsafe.Pointer) {
	var elem reflect.Type
	if payload != nil {
		elem = t.Field(field).Type.Elem()
	}
	return func(ptr, v unsafe.Pointer) {
		sv := reflect.NewAt(t, ptr).Elem()
		sv.SetZero()
		if payload == nil {
			sv.Field(field).Set(reflect.ValueOf(unitMarker))
			return
		}
		pv := reflect.New(elem)
		pv.Elem().Set(reflect.NewAt(elem, v).Elem())
		sv.Field(field).Set(pv)
	}
}
