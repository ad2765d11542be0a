package partial

import (
	"github.com/formworklabs/formwork/shape"
)

// Typed wraps a Partial whose root shape was derived from T, giving Build
// back its static type.
type Typed[T any] struct {
	p *Partial
}

// AllocT allocates a builder for T's shape.
func AllocT[T any](opts ...Option) (*Typed[T], error) {
	p, err := New(shape.For[T](), opts...)
	if err != nil {
		return nil, err
	}
	return &Typed[T]{p: p}, nil
}

// Partial exposes the untyped operation surface.
func (t *Typed[T]) Partial() *Partial { return t.p }

// Build finishes construction and returns the value by its static type.
func (t *Typed[T]) Build() (T, error) {
	var zero T
	v, err := t.p.Build()
	if err != nil {
		return zero, err
	}
	out := v.Interface().(T)
	v.Close()
	return out, nil
}

// Close abandons construction.
func (t *Typed[T]) Close() error { return t.p.Close() }
