// Package formwork provides a generic, type-erased incremental value
// builder: given a shape describing a target type, a driver constructs a
// value of that type piece by piece without knowing the concrete type at
// compile time, and without ever exposing an inconsistent or leaking
// intermediate state.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	formwork/        Root package re-exporting the main entry points
//	├── shape/       Shape descriptors and the reflect and WIT providers
//	├── partial/     The builder: arena, frames, trackers, deferred mode
//	├── plan/        Precomputed lookup plans with cycle back-references
//	├── errors/      Structured error types for debugging
//	└── cmd/formwork Op-script runner with an interactive stepper
//
// # Quick Start
//
// Build a struct field by field:
//
//	p, err := partial.New(shape.For[Point]())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	p.BeginField("X")
//	p.Set(int64(3))
//	p.End()
//	p.SetField("Y", int64(4))
//
//	v, err := p.Build()
//	fmt.Println(v.Interface()) // {3 4}
//
// Or with the typed wrapper:
//
//	b, _ := partial.AllocT[Point]()
//	b.Partial().SetField("X", int64(3))
//	b.Partial().SetField("Y", int64(4))
//	pt, _ := b.Build()
//
// # Supported Shapes
//
//   - Primitives: bool, u8-u64, s8-s64, f32, f64, string, bytes
//   - Products: struct, tuple
//   - Sums: enum (fieldless), variant (payload-carrying), result
//   - Containers: list, map, set, option, pointer
//
// Drivers that consume textual or binary encodings sit on top of this
// surface; the builder itself defines no wire format.
package formwork
