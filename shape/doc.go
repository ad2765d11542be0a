// Package shape describes constructible types to the builder: a kind tag, a
// sized layout, fields and variants, and a table of construction operations
// (default, drop, clone, parse, convert, and per-container init/push/insert
// hooks).
//
// Two providers produce shapes. Of derives one from a reflect.Type, caching
// per type and handling self-referential types. FromWIT maps a WIT type
// through a synthesized Go representation and is the bridge for drivers that
// work from component-model interfaces. Descriptors can also be written by
// hand; StructLayout computes field offsets for those.
package shape
