// Package gorbie provides the public API for the GORBIE notebook cell
// engine: a slot store for cell state, typed handles, and reactive cells
// whose values recompute on background workers while the render loop
// keeps showing the last known good value.
//
// This is the recommended import for most notebooks:
//
//	import "github.com/triblespace/gorbie"
//
// Usage:
//
//	nb := gorbie.NewNotebook(gorbie.WithRepaint(win.RequestRepaint))
//
//	a := gorbie.Stateful(nb, "a", func() int { return 5 }, renderSlider)
//	b := gorbie.Reactive(nb, "b",
//	    func(vals gorbie.Values) (int, error) {
//	        return gorbie.At[int](vals, 0) * 2, nil
//	    },
//	    renderNumber,
//	    gorbie.Watch(a),
//	)
//
//	for running {
//	    nb.RenderPass()
//	}
//	_ = b // b is itself a dependency source for further cells
package gorbie

import (
	"github.com/triblespace/gorbie/pkg/notebook"
	"github.com/triblespace/gorbie/pkg/reactive"
	"github.com/triblespace/gorbie/pkg/state"
)

// =============================================================================
// Session (notebook.Notebook exposed as gorbie.Notebook)
// =============================================================================

// Notebook is one notebook session: the slot store, the cell list, and
// the per-pass render walk.
type Notebook = notebook.Notebook

// Option configures a Notebook.
type Option = notebook.Option

// NewNotebook creates an empty session with its own slot store.
func NewNotebook(opts ...Option) *Notebook {
	return notebook.New(opts...)
}

// WithLogger sets the session logger.
var WithLogger = notebook.WithLogger

// WithRepaint sets the host repaint callback.
var WithRepaint = notebook.WithRepaint

// WithObserver sets the worker lifecycle observer (metrics hook).
var WithObserver = notebook.WithObserver

// WithStore backs the session with a host-owned slot store.
var WithStore = notebook.WithStore

// WithTracer enables OpenTelemetry spans around cell computations.
var WithTracer = notebook.WithTracer

// =============================================================================
// Cell construction
// =============================================================================

// Stateless registers a render-only cell with no state.
func Stateless(nb *Notebook, render func()) {
	notebook.Stateless(nb, render)
}

// Stateful registers a cell with a stored value and returns its handle.
// The render callback gets exclusive, synchronous access to the value
// once per pass.
func Stateful[T any](nb *Notebook, key string, init func() T, render func(*T)) Handle[T] {
	return notebook.Stateful(nb, key, init, render)
}

// Reactive registers a computed cell: a pure function of its dependency
// values, recomputed on a background worker when any dependency's
// version changes. The returned handle exposes the latest ready value
// and can serve as a dependency for further cells.
func Reactive[T any](nb *Notebook, key string, compute func(Values) (T, error), render func(View[T]), deps ...Source) ComputedHandle[T] {
	return notebook.Reactive(nb, key, compute, render, deps...)
}

// View is the render-facing snapshot of a reactive cell for one pass.
type View[T any] = notebook.View[T]

// =============================================================================
// State store
// =============================================================================

// Store is the session-scoped slot store.
type Store = state.Store

// Handle is a copyable, typed capability for one slot.
type Handle[T any] = state.Handle[T]

// GetOrCreate materializes a slot on first access and returns a typed
// handle to it; later calls with the same key return the same slot.
func GetOrCreate[T any](s *Store, key string, init func() T) Handle[T] {
	return state.GetOrCreate(s, key, init)
}

// Lookup returns a handle without creating the slot.
func Lookup[T any](s *Store, key string) Handle[T] {
	return state.Lookup[T](s, key)
}

// =============================================================================
// Dependencies
// =============================================================================

// Source is one dependency of a computed cell.
type Source = reactive.Source

// Values is the owned snapshot of dependency values handed to a compute
// function.
type Values = reactive.Values

// Version is an equality-comparable dependency version marker.
type Version = reactive.Version

// VersionVector is an ordered tuple of dependency versions.
type VersionVector = reactive.VersionVector

// ComputedHandle is the dependent-facing view of a reactive cell.
type ComputedHandle[T any] = reactive.Handle[T]

// ComputeError is the failure payload of a computed cell.
type ComputeError = reactive.ComputeError

// At returns the i-th dependency value as T.
func At[T any](vals Values, i int) T {
	return reactive.At[T](vals, i)
}

// Watch adapts a plain slot handle into a dependency source.
func Watch[T any](h Handle[T]) Source {
	return reactive.Watch(h)
}
