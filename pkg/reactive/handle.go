package reactive

import "github.com/triblespace/gorbie/pkg/state"

// Handle is the dependent-facing view of a computed cell. It exposes
// only "the latest ready value, if any": the payload of a Ready or
// Stale state. Undefined and Computing read as no value yet, and a
// Failed cell withholds its old value from dependents.
//
// Handle implements Source, so a computed cell can depend on another
// computed cell directly; its version is the cell's generation, which
// means dependents recompute only when the visible value actually
// changed, not every time a computation ran.
type Handle[T any] struct {
	slot state.Handle[State[T]]
}

// NewHandle wraps a computed cell's state slot.
func NewHandle[T any](slot state.Handle[State[T]]) Handle[T] {
	return Handle[T]{slot: slot}
}

// Key returns the underlying slot key.
func (h Handle[T]) Key() string { return h.slot.Key() }

// Current returns the latest ready (possibly stale) value.
func (h Handle[T]) Current() (T, bool) {
	st, ok := h.slot.Snapshot()
	if !ok {
		var zero T
		return zero, false
	}
	v, _, ok := st.Current()
	return v, ok
}

// Generation returns the generation of the latest ready value.
func (h Handle[T]) Generation() (uint64, bool) {
	st, ok := h.slot.Snapshot()
	if !ok {
		return 0, false
	}
	_, gen, ok := st.Current()
	return gen, ok
}

// Err returns the cell's failure, or nil while it is healthy.
func (h Handle[T]) Err() error {
	st, ok := h.slot.Snapshot()
	if !ok {
		return nil
	}
	return st.Err()
}

// State returns a snapshot of the full cell state.
func (h Handle[T]) State() (State[T], bool) {
	return h.slot.Snapshot()
}

// TryVersion implements Source.
func (h Handle[T]) TryVersion() (Version, bool) {
	lease, ok := h.slot.TryRead()
	if !ok {
		return 0, false
	}
	st := lease.Value()
	lease.Release()

	_, gen, ok := st.Current()
	if !ok {
		return 0, false
	}
	return Version(gen), true
}

// Snapshot implements Source.
func (h Handle[T]) Snapshot() (any, bool) {
	st, ok := h.slot.Snapshot()
	if !ok {
		return nil, false
	}
	v, _, ok := st.Current()
	if !ok {
		return nil, false
	}
	return v, true
}
