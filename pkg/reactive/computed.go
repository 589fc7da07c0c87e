package reactive

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/triblespace/gorbie/pkg/state"
)

// Computed drives one reactive cell: a slot of type State[T], a pure
// compute function over snapshot dependency values, and the staleness
// state machine. Advance is called once per render pass by the owning
// notebook and must only ever be called from the render goroutine.
type Computed[T any] struct {
	key     string
	slot    state.Handle[State[T]]
	deps    Deps
	compute func(Values) (T, error)

	// lastVersions is the vector used to schedule the most recent
	// computation. Render-goroutine only.
	lastVersions VersionVector

	equal    func(T, T) bool
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// Option configures a Computed cell.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// WithLogger sets the logger for state-transition debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithObserver sets the worker lifecycle observer (metrics hook).
func WithObserver(o Observer) Option {
	return func(c *config) { c.observer = o }
}

// WithTracer enables an OpenTelemetry span around each worker run.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) { c.tracer = t }
}

// NewComputed binds a compute function and its dependencies to the
// cell's state slot. The slot must have been created with Undefined as
// its initial value.
func NewComputed[T any](slot state.Handle[State[T]], deps Deps, compute func(Values) (T, error), opts ...Option) *Computed[T] {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Computed[T]{
		key:      slot.Key(),
		slot:     slot,
		deps:     deps,
		compute:  compute,
		logger:   cfg.logger,
		observer: cfg.observer,
		tracer:   cfg.tracer,
	}
}

// WithEquals configures a custom equality function for deciding whether
// a recomputed value supersedes the cached one. The default uses == for
// common comparable types and reflect.DeepEqual otherwise.
func (c *Computed[T]) WithEquals(fn func(T, T) bool) *Computed[T] {
	c.equal = fn
	return c
}

// Key returns the cell's slot key.
func (c *Computed[T]) Key() string { return c.key }

// Handle returns the dependent-facing view of this cell.
func (c *Computed[T]) Handle() Handle[T] {
	return Handle[T]{slot: c.slot}
}

// Advance runs one state-machine step and reports whether the
// externally visible value changed (a repaint is wanted). It never
// blocks beyond per-slot lock acquisition and never waits for a worker.
func (c *Computed[T]) Advance() bool {
	lease, ok := c.slot.Write()
	if !ok {
		return false
	}
	before := *lease.Ptr()
	after, repaint := c.step(before)
	lease.Set(after)
	lease.Release()

	if repaint && after.phase == PhaseReady {
		if c.observer != nil {
			c.observer.GenerationAdvanced(c.key, after.gen)
		}
		c.logger.Debug("cell value advanced", "cell", c.key, "generation", after.gen)
	}
	return repaint
}

// step computes the successor state for one pass. Spawning happens here;
// completion handling converts worker failures into PhaseFailed rather
// than letting them escape.
func (c *Computed[T]) step(st State[T]) (State[T], bool) {
	switch st.phase {
	case PhaseUndefined:
		vv, ok := c.deps.TryVersions()
		if !ok {
			return st, false
		}
		job, ok := c.spawn()
		if !ok {
			return st, false
		}
		c.lastVersions = vv
		return State[T]{phase: PhaseComputing, job: job}, false

	case PhaseComputing:
		if !st.job.Done() {
			return st, false
		}
		result, err := st.job.Result()
		if err != nil {
			c.logger.Error("cell compute failed", "cell", c.key, "error", err)
			return State[T]{phase: PhaseFailed, err: err}, true
		}
		return State[T]{phase: PhaseReady, value: result, gen: 0, hasValue: true}, true

	case PhaseReady:
		vv, ok := c.deps.TryVersions()
		if !ok || vv.Equal(c.lastVersions) {
			return st, false
		}
		job, ok := c.spawn()
		if !ok {
			return st, false
		}
		c.lastVersions = vv
		st.phase = PhaseStale
		st.job = job
		return st, false

	case PhaseStale:
		if !st.job.Done() {
			return st, false
		}
		result, err := st.job.Result()
		if err != nil {
			c.logger.Error("cell compute failed", "cell", c.key, "error", err)
			return State[T]{phase: PhaseFailed, value: st.value, gen: st.gen, hasValue: st.hasValue, err: err}, true
		}
		if c.equals(result, st.value) {
			// Same value: keep the old payload and generation so
			// dependents see no change.
			st.phase = PhaseReady
			st.job = nil
			return st, false
		}
		return State[T]{phase: PhaseReady, value: result, gen: st.gen + 1, hasValue: true}, true

	case PhaseFailed:
		vv, ok := c.deps.TryVersions()
		if !ok || vv.Equal(c.lastVersions) {
			return st, false
		}
		job, ok := c.spawn()
		if !ok {
			return st, false
		}
		c.lastVersions = vv
		if st.hasValue {
			return State[T]{phase: PhaseStale, value: st.value, gen: st.gen, hasValue: true, job: job}, false
		}
		return State[T]{phase: PhaseComputing, job: job}, false

	default:
		return st, false
	}
}

// spawn snapshots the dependency values and starts one worker
// goroutine. Returns false without spawning if any dependency value
// turned out to be unavailable.
func (c *Computed[T]) spawn() (*Job[T], bool) {
	vals, ok := c.deps.SnapshotValues()
	if !ok {
		return nil, false
	}

	job := &Job[T]{done: make(chan struct{})}
	if c.observer != nil {
		c.observer.JobStarted(c.key)
	}

	go func() {
		defer close(job.done)

		var span trace.Span
		if c.tracer != nil {
			_, span = c.tracer.Start(context.Background(), "gorbie.compute",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attribute.String("cell.key", c.key)),
			)
		}

		start := time.Now()
		result, err := runCompute(c.key, c.compute, vals)
		elapsed := time.Since(start)

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End()
		}
		if c.observer != nil {
			c.observer.JobFinished(c.key, elapsed, err)
		}

		job.result = result
		job.err = err
	}()

	return job, true
}

// equals checks two results with the configured equality function.
func (c *Computed[T]) equals(a, b T) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return state.DefaultEquals(a, b)
}
