package reactive

import (
	"fmt"

	"github.com/triblespace/gorbie/pkg/state"
)

// Version is a lightweight, equality-comparable marker for one
// dependency's current value. Plain slots use their change revision;
// computed cells use their generation. Two equal versions mean the
// dependency's visible value has not changed.
type Version uint64

// VersionVector is an ordered tuple of per-dependency versions.
type VersionVector []Version

// Equal reports whether two vectors are element-wise identical.
func (v VersionVector) Equal(o VersionVector) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}
	return true
}

// Source is one dependency of a computed cell.
type Source interface {
	// TryVersion returns the dependency's current version without
	// blocking. It returns false while the dependency has no
	// resolvable value (slot not yet created, computation not yet
	// finished) or its lock is contended.
	TryVersion() (Version, bool)

	// Snapshot returns an owned copy of the dependency's current
	// value. It may block on the dependency's lock but holds no lock
	// on return. Returns false if the dependency has no value.
	Snapshot() (any, bool)
}

// Deps is an ordered set of dependency sources.
type Deps struct {
	sources []Source
}

// NewDeps builds a dependency set. The order of sources fixes the order
// of both version vectors and snapshot values.
func NewDeps(sources ...Source) Deps {
	return Deps{sources: sources}
}

// Len returns the number of dependencies.
func (d Deps) Len() int { return len(d.sources) }

// TryVersions captures the current version vector without blocking.
// Capture is all-or-nothing: if any one source has no version yet, the
// whole vector is unavailable and false is returned.
func (d Deps) TryVersions() (VersionVector, bool) {
	vv := make(VersionVector, len(d.sources))
	for i, src := range d.sources {
		v, ok := src.TryVersion()
		if !ok {
			return nil, false
		}
		vv[i] = v
	}
	return vv, true
}

// SnapshotValues copies every dependency's current value into an owned
// aggregate. Sources are locked one at a time and no lock is held on
// return, so the result is safe to move to a worker goroutine. Returns
// false if any source has no value.
func (d Deps) SnapshotValues() (Values, bool) {
	vals := make(Values, len(d.sources))
	for i, src := range d.sources {
		v, ok := src.Snapshot()
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

// Values is an owned aggregate of dependency values, ordered like the
// Deps that produced it.
type Values []any

// At returns the i-th dependency value as T. A wrong index or type is a
// programming error and panics.
func At[T any](vals Values, i int) T {
	v, ok := vals[i].(T)
	if !ok {
		panic(fmt.Sprintf("reactive: dependency %d holds %T, requested as %T", i, vals[i], v))
	}
	return v
}

// Watch adapts a plain slot handle into a dependency source. The slot's
// revision counter serves as its version: writing an equal value leaves
// it in place, so dependents only recompute when the value changed (or
// when the slot type defeats change detection; see state.WriteLease).
func Watch[T any](h state.Handle[T]) Source {
	return slotSource[T]{h: h}
}

type slotSource[T any] struct {
	h state.Handle[T]
}

func (s slotSource[T]) TryVersion() (Version, bool) {
	rev, ok := s.h.TryRevision()
	if !ok {
		return 0, false
	}
	return Version(rev), true
}

func (s slotSource[T]) Snapshot() (any, bool) {
	v, ok := s.h.Snapshot()
	if !ok {
		return nil, false
	}
	return v, true
}
