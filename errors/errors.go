package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the builder's lifecycle the error occurred
type Phase string

const (
	PhaseAlloc    Phase = "alloc"    // root allocation
	PhaseSet      Phase = "set"      // value assignment
	PhaseEnd      Phase = "end"      // frame pop / splice
	PhaseBuild    Phase = "build"    // final extraction
	PhaseDeferred Phase = "deferred" // out-of-order reconciliation
	PhasePlan     Phase = "plan"     // type plan construction
	PhaseProvide  Phase = "provide"  // shape provider
	PhaseTeardown Phase = "teardown" // cleanup on abandonment
)

// Kind categorizes the error
type Kind string

const (
	KindShapeMismatch  Kind = "shape_mismatch"
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindWrongKind      Kind = "wrong_kind"
	KindNoDefault      Kind = "no_default"
	KindAllocation     Kind = "allocation"
	KindUnsized        Kind = "unsized"
	KindNotInitialized Kind = "not_initialized"
	KindInvariant      Kind = "invariant"
	KindPoisoned       Kind = "poisoned"
	KindConversion     Kind = "conversion"
	KindUnknownField   Kind = "unknown_field"
	KindUnknownVariant Kind = "unknown_variant"
	KindConsumed       Kind = "consumed"
	KindUnsupported    Kind = "unsupported"
	KindParse          Kind = "parse"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Shape  string
	Want   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Shape != "" || e.Want != "" {
		b.WriteString(": ")
		if e.Shape != "" && e.Want != "" {
			b.WriteString("shape ")
			b.WriteString(e.Shape)
			b.WriteString(", want ")
			b.WriteString(e.Want)
		} else if e.Shape != "" {
			b.WriteString("shape ")
			b.WriteString(e.Shape)
		} else {
			b.WriteString("want ")
			b.WriteString(e.Want)
		}
	}

	if e.Detail != "" {
		if e.Shape != "" || e.Want != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Shape sets the offending shape's name
func (b *Builder) Shape(s string) *Builder {
	b.err.Shape = s
	return b
}

// Want sets the expected shape or kind name
func (b *Builder) Want(w string) *Builder {
	b.err.Want = w
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ShapeMismatch creates a shape mismatch error
func ShapeMismatch(phase Phase, path []string, got, want string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindShapeMismatch,
		Path:  path,
		Shape: got,
		Want:  want,
	}
}

// WrongKind creates an error for an operation invalid on the frame's kind
func WrongKind(phase Phase, path []string, op, got, want string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindWrongKind,
		Path:   path,
		Shape:  got,
		Want:   want,
		Detail: op,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// UnknownField creates an unknown field error
func UnknownField(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownField,
		Path:   path,
		Detail: fmt.Sprintf("unknown field %q", fieldName),
	}
}

// UnknownVariant creates an unknown variant error
func UnknownVariant(phase Phase, path []string, variantName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownVariant,
		Path:   path,
		Detail: fmt.Sprintf("unknown variant %q", variantName),
	}
}

// NoDefault creates an error for a shape with no default constructor
func NoDefault(phase Phase, path []string, shape string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindNoDefault,
		Path:  path,
		Shape: shape,
	}
}

// Unsized creates an error for allocating an unsized shape
func Unsized(phase Phase, shape string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsized,
		Shape:  shape,
		Detail: "shape has no sized layout",
	}
}

// NotInitialized creates an error for ending or building an incomplete frame
func NotInitialized(phase Phase, path []string, shape, missing string) *Error {
	e := &Error{
		Phase: phase,
		Kind:  KindNotInitialized,
		Path:  path,
		Shape: shape,
	}
	if missing != "" {
		e.Detail = fmt.Sprintf("required field %q not initialized", missing)
	}
	return e
}

// Invariant creates an invariant violation error
func Invariant(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvariant,
		Detail: detail,
	}
}

// Poisoned creates an error for operating on a poisoned builder
func Poisoned(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPoisoned,
		Detail: "builder poisoned by a prior failure",
	}
}

// Consumed creates an error for reusing a built builder
func Consumed(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConsumed,
		Detail: "value already built",
	}
}

// Conversion creates an error for a failed convert-from hook
func Conversion(phase Phase, path []string, from, to string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindConversion,
		Path:  path,
		Shape: from,
		Want:  to,
		Cause: cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uintptr) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// ParseFailed creates a scalar parse error
func ParseFailed(path []string, shape string, cause error) *Error {
	return &Error{
		Phase: PhaseSet,
		Kind:  KindParse,
		Path:  path,
		Shape: shape,
		Cause: cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
