// Package partial incrementally constructs values of arbitrary shapes
// without exposing an inconsistent or leaking intermediate state.
//
// A Partial owns an arena of frames, one per in-progress sub-value. Begin
// operations descend into fields, elements, payloads and pointees; Set
// writes bytes; End pops the current frame and splices its bytes into the
// parent. Every region is owned by exactly one frame at a time and
// ownership transfers exactly once, at the splice, so abandoning a builder
// at any point releases exactly the sub-values that were initialized.
//
// BeginDeferred switches to out-of-order assembly: frames popped inside
// the session are stored under their field path and restored on re-entry,
// and FinishDeferred reconciles them deepest-first. Any error poisons the
// builder; Close is always safe and always complete.
package partial
