package formwork

import (
	"github.com/formworklabs/formwork/partial"
	"github.com/formworklabs/formwork/plan"
	"github.com/formworklabs/formwork/shape"
)

// Shape describes a constructible type.
type Shape = shape.Shape

// Kind classifies a shape's construction behavior.
type Kind = shape.Kind

// Partial incrementally constructs one value of a shape.
type Partial = partial.Partial

// Value is a finished build result.
type Value = partial.Value

// Plan is a precomputed mirror of a shape's structure.
type Plan = plan.Plan

// Of returns the shape describing t's dynamic type.
var Of = shape.Of

// FromWIT maps a WIT type to a shape.
var FromWIT = shape.FromWIT

// New allocates a builder for s.
var New = partial.New

// NewPlan builds a plan for s.
var NewPlan = plan.New

// For returns the shape describing T.
func For[T any]() *Shape {
	return shape.For[T]()
}

// Build allocates a typed builder for T.
func Build[T any](opts ...partial.Option) (*partial.Typed[T], error) {
	return partial.AllocT[T](opts...)
}
