package reactive

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/triblespace/gorbie/pkg/state"
)

// countingObserver records worker lifecycle calls for assertions.
type countingObserver struct {
	mu       sync.Mutex
	started  int
	finished int
	failed   int
	gens     []uint64
	repaints int
}

func (o *countingObserver) JobStarted(string) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *countingObserver) JobFinished(_ string, _ time.Duration, err error) {
	o.mu.Lock()
	o.finished++
	if err != nil {
		o.failed++
	}
	o.mu.Unlock()
}

func (o *countingObserver) GenerationAdvanced(_ string, gen uint64) {
	o.mu.Lock()
	o.gens = append(o.gens, gen)
	o.mu.Unlock()
}

func (o *countingObserver) RepaintRequested() {
	o.mu.Lock()
	o.repaints++
	o.mu.Unlock()
}

func (o *countingObserver) startedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.started
}

// setValue writes a plain slot through its handle.
func setValue[T any](t *testing.T, h state.Handle[T], v T) {
	t.Helper()
	lease, ok := h.Write()
	if !ok {
		t.Fatal("Write failed")
	}
	lease.Set(v)
	lease.Release()
}

// advanceUntil drives the machine one step per iteration until cond
// holds on the cell state, failing the test after timeout.
func advanceUntil[T any](t *testing.T, c *Computed[T], cond func(State[T]) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.Advance()
		st, ok := c.Handle().State()
		if ok && cond(st) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("state %v: condition not reached", st.Phase())
		}
		time.Sleep(time.Millisecond)
	}
}

// newDoubler wires the canonical test cell: b = a * 2.
func newDoubler(t *testing.T, obs Observer) (state.Handle[int], *Computed[int]) {
	t.Helper()
	store := state.NewStore()
	a := state.GetOrCreate(store, "a", func() int { return 5 })
	slot := state.GetOrCreate(store, "b", Undefined[int])

	var opts []Option
	if obs != nil {
		opts = append(opts, WithObserver(obs))
	}
	c := NewComputed(slot, NewDeps(Watch(a)), func(vals Values) (int, error) {
		return At[int](vals, 0) * 2, nil
	}, opts...)
	return a, c
}

func TestFirstComputation(t *testing.T) {
	_, c := newDoubler(t, nil)

	// Before any pass the cell is undefined with no value
	st, ok := c.Handle().State()
	if !ok || st.Phase() != PhaseUndefined {
		t.Fatalf("expected undefined initial state, got %v", st.Phase())
	}
	if _, ok := c.Handle().Current(); ok {
		t.Error("undefined cell must expose no value")
	}

	// First step spawns; completion yields Ready(10, gen 0)
	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseReady })

	v, gen, ok := mustState(t, c).Current()
	if !ok || v != 10 || gen != 0 {
		t.Errorf("expected Ready(10, 0), got (%d, %d, ok=%v)", v, gen, ok)
	}
}

func TestDependencyChangeGoesStale(t *testing.T) {
	a, c := newDoubler(t, nil)
	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseReady })

	setValue(t, a, 7)

	// Next step must schedule a recomputation while keeping the old value
	c.Advance()
	st := mustState(t, c)
	if st.Phase() != PhaseStale {
		t.Fatalf("expected stale after dependency change, got %v", st.Phase())
	}
	if v, gen, ok := st.Current(); !ok || v != 10 || gen != 0 {
		t.Errorf("stale cell must keep previous value (10, 0), got (%d, %d, ok=%v)", v, gen, ok)
	}

	advanceUntil(t, c, func(st State[int]) bool {
		v, gen, ok := st.Current()
		return st.Phase() == PhaseReady && ok && v == 14 && gen == 1
	})
}

func TestSameValueWriteDoesNotRecompute(t *testing.T) {
	obs := &countingObserver{}
	a, c := newDoubler(t, obs)
	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseReady })
	setValue(t, a, 7)
	advanceUntil(t, c, func(st State[int]) bool {
		_, gen, ok := st.Current()
		return st.Phase() == PhaseReady && ok && gen == 1
	})
	started := obs.startedCount()

	// Writing the same value again must spawn nothing and keep gen 1
	setValue(t, a, 7)
	for i := 0; i < 10; i++ {
		c.Advance()
	}

	st := mustState(t, c)
	if st.Phase() != PhaseReady {
		t.Errorf("expected cell to stay ready, got %v", st.Phase())
	}
	if v, gen, _ := st.Current(); v != 14 || gen != 1 {
		t.Errorf("expected (14, 1) unchanged, got (%d, %d)", v, gen)
	}
	if obs.startedCount() != started {
		t.Errorf("same-value write spawned %d extra workers", obs.startedCount()-started)
	}
}

func TestEqualResultKeepsGeneration(t *testing.T) {
	store := state.NewStore()
	a := state.GetOrCreate(store, "a", func() int { return 5 })
	slot := state.GetOrCreate(store, "parity", Undefined[int])

	// Result only depends on the input's parity, so many changes
	// recompute but do not change the visible output.
	c := NewComputed(slot, NewDeps(Watch(a)), func(vals Values) (int, error) {
		return At[int](vals, 0) % 2, nil
	})
	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseReady })

	setValue(t, a, 7) // still odd
	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseReady && !st.InFlight() })

	if v, gen, _ := mustState(t, c).Current(); v != 1 || gen != 0 {
		t.Errorf("equal result must keep generation: got (%d, %d)", v, gen)
	}

	setValue(t, a, 8) // now even
	advanceUntil(t, c, func(st State[int]) bool {
		_, gen, ok := st.Current()
		return ok && gen == 1
	})
}

func TestStaleValueReadableDuringRecompute(t *testing.T) {
	store := state.NewStore()
	a := state.GetOrCreate(store, "a", func() int { return 5 })
	slot := state.GetOrCreate(store, "b", Undefined[int])

	gate := make(chan struct{})
	first := true
	c := NewComputed(slot, NewDeps(Watch(a)), func(vals Values) (int, error) {
		if !first {
			<-gate // hold the recomputation open
		}
		first = false
		return At[int](vals, 0) * 2, nil
	})

	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseReady })
	setValue(t, a, 7)
	c.Advance()

	// The previous value must stay readable for the entire in-flight
	// recomputation.
	for i := 0; i < 20; i++ {
		c.Advance()
		st := mustState(t, c)
		if st.Phase() != PhaseStale {
			t.Fatalf("expected stale while gated, got %v", st.Phase())
		}
		if v, gen, ok := st.Current(); !ok || v != 10 || gen != 0 {
			t.Fatalf("stale value gap: got (%d, %d, ok=%v)", v, gen, ok)
		}
	}

	close(gate)
	advanceUntil(t, c, func(st State[int]) bool {
		v, _, ok := st.Current()
		return ok && v == 14
	})
}

func TestAtMostOneWorkerInFlight(t *testing.T) {
	store := state.NewStore()
	a := state.GetOrCreate(store, "a", func() int { return 5 })
	slot := state.GetOrCreate(store, "b", Undefined[int])
	obs := &countingObserver{}

	gate := make(chan struct{})
	c := NewComputed(slot, NewDeps(Watch(a)), func(vals Values) (int, error) {
		<-gate
		return At[int](vals, 0) * 2, nil
	}, WithObserver(obs))

	c.Advance() // spawns the first worker, which blocks on the gate

	// Dependency churn while the worker runs must not spawn another
	setValue(t, a, 6)
	setValue(t, a, 7)
	for i := 0; i < 10; i++ {
		c.Advance()
	}
	if got := obs.startedCount(); got != 1 {
		t.Fatalf("expected exactly 1 in-flight worker, observed %d spawns", got)
	}

	close(gate)
	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseReady })

	// The superseding change is picked up only after the first job done
	advanceUntil(t, c, func(st State[int]) bool {
		v, _, ok := st.Current()
		return ok && v == 14
	})
	if got := obs.startedCount(); got != 2 {
		t.Errorf("expected 2 total spawns, observed %d", got)
	}
}

func TestNoSpawnWhileDependencyUnavailable(t *testing.T) {
	store := state.NewStore()
	missing := state.Lookup[int](store, "never")
	slot := state.GetOrCreate(store, "b", Undefined[int])
	obs := &countingObserver{}

	c := NewComputed(slot, NewDeps(Watch(missing)), func(vals Values) (int, error) {
		return At[int](vals, 0), nil
	}, WithObserver(obs))

	for i := 0; i < 10; i++ {
		c.Advance()
	}

	if obs.startedCount() != 0 {
		t.Errorf("worker spawned with unavailable dependency: %d", obs.startedCount())
	}
	if st := mustState(t, c); st.Phase() != PhaseUndefined {
		t.Errorf("expected undefined, got %v", st.Phase())
	}
}

func TestTwoIndependentDependents(t *testing.T) {
	store := state.NewStore()
	a := state.GetOrCreate(store, "a", func() int { return 5 })

	obsC := &countingObserver{}
	obsD := &countingObserver{}
	slotC := state.GetOrCreate(store, "c", Undefined[int])
	slotD := state.GetOrCreate(store, "d", Undefined[int])

	double := func(vals Values) (int, error) { return At[int](vals, 0) * 2, nil }
	triple := func(vals Values) (int, error) { return At[int](vals, 0) * 3, nil }

	cc := NewComputed(slotC, NewDeps(Watch(a)), double, WithObserver(obsC))
	cd := NewComputed(slotD, NewDeps(Watch(a)), triple, WithObserver(obsD))

	settle := func(wantC, wantD int) {
		advanceUntil(t, cc, func(st State[int]) bool {
			v, _, ok := st.Current()
			return ok && v == wantC && !st.InFlight()
		})
		advanceUntil(t, cd, func(st State[int]) bool {
			v, _, ok := st.Current()
			return ok && v == wantD && !st.InFlight()
		})
	}
	settle(10, 15)

	startedC := obsC.startedCount()
	startedD := obsD.startedCount()

	// One change to a results in exactly one spawn per dependent
	setValue(t, a, 6)
	settle(12, 18)

	if got := obsC.startedCount() - startedC; got != 1 {
		t.Errorf("dependent c spawned %d workers for one change", got)
	}
	if got := obsD.startedCount() - startedD; got != 1 {
		t.Errorf("dependent d spawned %d workers for one change", got)
	}
}

func TestComputeErrorEntersFailed(t *testing.T) {
	store := state.NewStore()
	a := state.GetOrCreate(store, "a", func() int { return 5 })
	slot := state.GetOrCreate(store, "b", Undefined[int])

	boom := errors.New("boom")
	c := NewComputed(slot, NewDeps(Watch(a)), func(Values) (int, error) {
		return 0, boom
	})

	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseFailed })

	st := mustState(t, c)
	if _, ok := c.Handle().Current(); ok {
		t.Error("failed cell must not feed dependents a value")
	}

	var ce *ComputeError
	if !errors.As(st.Err(), &ce) {
		t.Fatalf("expected *ComputeError, got %T", st.Err())
	}
	if !errors.Is(st.Err(), boom) {
		t.Error("ComputeError must wrap the compute function's error")
	}
	if ce.Panicked {
		t.Error("plain error must not be marked as a panic")
	}
}

func TestWorkerPanicRecovered(t *testing.T) {
	store := state.NewStore()
	a := state.GetOrCreate(store, "a", func() int { return 5 })
	slot := state.GetOrCreate(store, "b", Undefined[int])

	c := NewComputed(slot, NewDeps(Watch(a)), func(Values) (int, error) {
		panic("cell misbehaved")
	})

	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseFailed })

	var ce *ComputeError
	if !errors.As(mustState(t, c).Err(), &ce) {
		t.Fatal("expected *ComputeError after worker panic")
	}
	if !ce.Panicked {
		t.Error("expected the panic flag to be set")
	}
	if len(ce.Stack) == 0 {
		t.Error("expected a captured stack")
	}
}

func TestFailedCellRecomputesOnChange(t *testing.T) {
	store := state.NewStore()
	a := state.GetOrCreate(store, "a", func() int { return 0 })
	slot := state.GetOrCreate(store, "b", Undefined[int])

	c := NewComputed(slot, NewDeps(Watch(a)), func(vals Values) (int, error) {
		v := At[int](vals, 0)
		if v == 0 {
			return 0, errors.New("zero input")
		}
		return 100 / v, nil
	})

	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseFailed })

	// A dependency change lets the cell recover
	setValue(t, a, 4)
	advanceUntil(t, c, func(st State[int]) bool {
		v, _, ok := st.Current()
		return st.Phase() == PhaseReady && ok && v == 25
	})
	if err := mustState(t, c).Err(); err != nil {
		t.Errorf("recovered cell still reports error: %v", err)
	}
}

func TestFailedCellKeepsLastGood(t *testing.T) {
	store := state.NewStore()
	a := state.GetOrCreate(store, "a", func() int { return 4 })
	slot := state.GetOrCreate(store, "b", Undefined[int])

	c := NewComputed(slot, NewDeps(Watch(a)), func(vals Values) (int, error) {
		v := At[int](vals, 0)
		if v == 0 {
			return 0, errors.New("zero input")
		}
		return 100 / v, nil
	})

	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseReady })
	setValue(t, a, 0)
	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseFailed })

	st := mustState(t, c)
	if v, gen, ok := st.LastGood(); !ok || v != 25 || gen != 0 {
		t.Errorf("expected last good (25, 0) retained for display, got (%d, %d, ok=%v)", v, gen, ok)
	}
	if _, _, ok := st.Current(); ok {
		t.Error("failed cell must not expose the old value as current")
	}
}

func TestComputedAsDependency(t *testing.T) {
	store := state.NewStore()
	a := state.GetOrCreate(store, "a", func() int { return 5 })
	slotB := state.GetOrCreate(store, "b", Undefined[int])
	slotC := state.GetOrCreate(store, "c", Undefined[int])

	b := NewComputed(slotB, NewDeps(Watch(a)), func(vals Values) (int, error) {
		return At[int](vals, 0) * 2, nil
	})
	c := NewComputed(slotC, NewDeps(b.Handle()), func(vals Values) (int, error) {
		return At[int](vals, 0) + 1, nil
	})

	// While b has no value, c must stay undefined
	c.Advance()
	if st := mustState(t, c); st.Phase() != PhaseUndefined {
		t.Fatalf("expected undefined downstream cell, got %v", st.Phase())
	}

	// Drive both like a render pass would; propagation may lag a pass
	deadline := time.Now().Add(2 * time.Second)
	for {
		b.Advance()
		c.Advance()
		if v, ok := c.Handle().Current(); ok && v == 11 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("chained value never arrived")
		}
		time.Sleep(time.Millisecond)
	}

	setValue(t, a, 7)
	deadline = time.Now().Add(2 * time.Second)
	for {
		b.Advance()
		c.Advance()
		if v, ok := c.Handle().Current(); ok && v == 15 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("chained update never propagated")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCustomEquals(t *testing.T) {
	store := state.NewStore()
	a := state.GetOrCreate(store, "a", func() int { return 5 })
	slot := state.GetOrCreate(store, "b", Undefined[int])

	// Treat all even results as equal to each other
	c := NewComputed(slot, NewDeps(Watch(a)), func(vals Values) (int, error) {
		return At[int](vals, 0), nil
	}).WithEquals(func(x, y int) bool { return x%2 == y%2 })

	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseReady })

	setValue(t, a, 7) // same parity: generation must not advance
	advanceUntil(t, c, func(st State[int]) bool { return st.Phase() == PhaseReady && !st.InFlight() })
	if _, gen, _ := mustState(t, c).Current(); gen != 0 {
		t.Errorf("custom-equal result advanced generation to %d", gen)
	}
}

// mustState reads the cell state or fails the test.
func mustState[T any](t *testing.T, c *Computed[T]) State[T] {
	t.Helper()
	st, ok := c.Handle().State()
	if !ok {
		t.Fatal("cell state slot missing")
	}
	return st
}
