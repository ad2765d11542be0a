// Package errors provides structured error types for incremental value
// construction. Every error carries the lifecycle phase in which it
// occurred, a machine-readable kind, and where available the shape name,
// the expected shape or kind, and the field path from the root frame.
package errors
