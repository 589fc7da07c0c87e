package reactive

// Phase identifies the variant of a computed cell's state.
type Phase int

const (
	// PhaseUndefined means the cell has never produced a value and no
	// computation is running, typically because a dependency has no
	// value yet.
	PhaseUndefined Phase = iota

	// PhaseComputing means the first computation is in flight; there
	// is no previous value to show.
	PhaseComputing

	// PhaseReady means the cell holds a current value.
	PhaseReady

	// PhaseStale means a recomputation is in flight while the previous
	// value remains readable.
	PhaseStale

	// PhaseFailed means the last computation failed. The last good
	// value, if any, is retained for display next to the error but is
	// not offered to dependents.
	PhaseFailed
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseUndefined:
		return "undefined"
	case PhaseComputing:
		return "computing"
	case PhaseReady:
		return "ready"
	case PhaseStale:
		return "stale"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the tagged state of one computed cell, stored in the cell's
// slot. The zero State is PhaseUndefined. All variants are explicit:
// which fields are meaningful is determined by the phase, never by nil
// checks on the fields themselves.
//
// Invariant: while a recomputation is in flight (PhaseStale), the
// previous value stays readable through Current until a new value
// supersedes it.
type State[T any] struct {
	phase    Phase
	value    T
	gen      uint64
	hasValue bool
	job      *Job[T]
	err      error
}

// Undefined returns the initial state of a computed cell.
func Undefined[T any]() State[T] {
	return State[T]{phase: PhaseUndefined}
}

// Phase returns the state's variant tag.
func (s State[T]) Phase() Phase { return s.phase }

// Current returns the latest ready value and its generation. It reports
// false for PhaseUndefined, PhaseComputing and PhaseFailed: dependents
// see "no value yet" until a computation succeeds, and a failed cell
// does not silently keep feeding its old value downstream.
func (s State[T]) Current() (T, uint64, bool) {
	if s.phase != PhaseReady && s.phase != PhaseStale {
		var zero T
		return zero, 0, false
	}
	return s.value, s.gen, true
}

// LastGood returns the most recent successfully computed value even in
// PhaseFailed, for renderers that show the error next to the old value.
func (s State[T]) LastGood() (T, uint64, bool) {
	if !s.hasValue {
		var zero T
		return zero, 0, false
	}
	return s.value, s.gen, true
}

// Err returns the failure of a PhaseFailed state, or nil.
func (s State[T]) Err() error { return s.err }

// Generation returns the generation counter of the current value. It is
// zero until the first computation completes and advances only when a
// recomputation produces an observably different value.
func (s State[T]) Generation() uint64 { return s.gen }

// InFlight reports whether a worker is currently running for this cell.
func (s State[T]) InFlight() bool {
	return s.phase == PhaseComputing || s.phase == PhaseStale
}
