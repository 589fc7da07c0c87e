// Package reactive implements computed notebook cells: dependency
// version tracking, background recomputation jobs, and the per-cell
// state machine that drives them.
//
// A computed cell owns a slot of type State[T] and advances once per
// render pass. When the version vector of its dependencies differs from
// the one used for the previous computation, the cell snapshots its
// dependencies' values and hands them to a worker goroutine; until that
// worker finishes, the previous value stays readable as the cell's
// "stale" payload. At most one worker is in flight per cell, and nothing
// on the render goroutine ever blocks on one.
//
// Dependents and renderers only ever see the latest ready (possibly
// stale) value through Handle; the computing and undefined phases read
// as "no value yet".
package reactive
