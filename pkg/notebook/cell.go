package notebook

import (
	"github.com/triblespace/gorbie/pkg/reactive"
	"github.com/triblespace/gorbie/pkg/state"
)

// cell is one notebook unit in the render walk.
type cell interface {
	// step performs the cell's per-pass action and reports whether the
	// cell's visible output changed.
	step(nb *Notebook) bool

	// info describes the cell for the debug surface.
	info() CellInfo
}

// Stateless registers a render-only cell. The callback runs once per
// pass; it holds no state and can never go stale.
func Stateless(nb *Notebook, render func()) {
	nb.add(&statelessCell{render: render})
}

type statelessCell struct {
	render func()
}

func (c *statelessCell) step(*Notebook) bool {
	c.render()
	return false
}

func (c *statelessCell) info() CellInfo {
	return CellInfo{Kind: "stateless"}
}

// Stateful registers a cell with a stored value and returns its handle
// for downstream dependents. Each pass, the render callback receives an
// exclusive pointer to the value and may mutate it synchronously; no
// background work is involved, so the value is definitionally current.
//
// The callback must not write-acquire the same handle it was invoked
// for: the exclusive lease is already held, and re-acquiring would
// self-deadlock.
func Stateful[T any](nb *Notebook, key string, init func() T, render func(*T)) state.Handle[T] {
	h := state.GetOrCreate(nb.store, key, init)
	nb.add(&statefulCell[T]{h: h, render: render})
	return h
}

type statefulCell[T any] struct {
	h      state.Handle[T]
	render func(*T)
}

func (c *statefulCell[T]) step(nb *Notebook) bool {
	lease, ok := c.h.Write()
	if !ok {
		return false
	}
	c.render(lease.Ptr())
	lease.Release()
	return false
}

func (c *statefulCell[T]) info() CellInfo {
	return CellInfo{Key: c.h.Key(), Kind: "stateful"}
}

// View is the render-facing snapshot of a reactive cell for one pass.
// Renderers use it to draw a loading indicator before the first value,
// the last good value (optionally marked) while a recomputation is in
// flight, and an explicit error when the computation failed.
type View[T any] struct {
	// Value is the latest successfully computed value; only meaningful
	// when HasValue is set. It remains available in the failed state so
	// the error can be shown next to the old value, but it must then be
	// presented as an error, never as a current result.
	Value    T
	HasValue bool

	// Computing is set while the first computation runs (no value yet).
	// Stale is set while a recomputation runs behind an existing value.
	Computing bool
	Stale     bool

	// Err is the failure of the last computation, or nil.
	Err error

	// Generation counts observable value changes.
	Generation uint64
}

// Reactive registers a computed cell. Its value is recomputed on a
// background worker whenever the version vector of deps differs from
// the one used for the previous computation; the render callback always
// gets the latest ready value without ever waiting for a worker.
//
// The compute function receives an owned snapshot of the dependency
// values and must not touch the slot store.
//
// The returned handle is itself a reactive.Source, so other computed
// cells can depend on this one.
func Reactive[T any](nb *Notebook, key string, compute func(reactive.Values) (T, error), render func(View[T]), deps ...reactive.Source) reactive.Handle[T] {
	slot := state.GetOrCreate(nb.store, key, reactive.Undefined[T])

	opts := []reactive.Option{reactive.WithLogger(nb.logger)}
	if nb.observer != nil {
		opts = append(opts, reactive.WithObserver(nb.observer))
	}
	if nb.tracer != nil {
		opts = append(opts, reactive.WithTracer(nb.tracer))
	}

	machine := reactive.NewComputed(slot, reactive.NewDeps(deps...), compute, opts...)
	nb.add(&reactiveCell[T]{machine: machine, render: render})
	return machine.Handle()
}

type reactiveCell[T any] struct {
	machine *reactive.Computed[T]
	render  func(View[T])
}

func (c *reactiveCell[T]) step(nb *Notebook) bool {
	repaint := c.machine.Advance()

	st, ok := c.machine.Handle().State()
	if !ok {
		return repaint
	}

	if repaint {
		ev := Event{Cell: c.machine.Key(), Kind: EventValue, Generation: st.Generation()}
		if err := st.Err(); err != nil {
			ev.Kind = EventFailure
			ev.Error = err.Error()
		}
		nb.publish(ev)
	}

	c.render(viewOf(st))
	return repaint
}

func (c *reactiveCell[T]) info() CellInfo {
	info := CellInfo{Key: c.machine.Key(), Kind: "reactive"}
	st, ok := c.machine.Handle().State()
	if !ok {
		return info
	}
	info.Phase = st.Phase().String()
	info.Generation = st.Generation()
	if err := st.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

// viewOf projects a cell state onto its render snapshot.
func viewOf[T any](st reactive.State[T]) View[T] {
	v := View[T]{
		Err:        st.Err(),
		Generation: st.Generation(),
	}
	if val, gen, ok := st.LastGood(); ok {
		v.Value = val
		v.HasValue = true
		v.Generation = gen
	}
	switch st.Phase() {
	case reactive.PhaseUndefined, reactive.PhaseComputing:
		v.Computing = true
	case reactive.PhaseStale:
		v.Stale = true
	}
	return v
}
