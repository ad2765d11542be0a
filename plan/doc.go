// Package plan precomputes a lookup-friendly mirror of a shape's recursive
// structure. Builders attach a plan to resolve field and variant names
// through per-node tables instead of scanning the shape on every descent,
// and self-referential shapes are handled with back-reference nodes rather
// than unbounded recursion.
package plan
