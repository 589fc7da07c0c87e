package notebook

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/triblespace/gorbie/pkg/reactive"
	"github.com/triblespace/gorbie/pkg/state"
)

// Notebook is one notebook session: the slot store, the ordered cell
// list, and the repaint plumbing towards the hosting render loop.
//
// Cells are registered during setup; RenderPass is then called from a
// single render goroutine. Inspect and Subscribe are safe to call from
// other goroutines (the debug server does).
type Notebook struct {
	store *state.Store

	logger         *slog.Logger
	observer       reactive.Observer
	tracer         trace.Tracer
	requestRepaint func()

	mu    sync.RWMutex
	cells []cell
	subs  []chan Event

	pass atomic.Uint64
}

// Option configures a Notebook.
type Option func(*Notebook)

// WithLogger sets the session logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(nb *Notebook) { nb.logger = l }
}

// WithRepaint sets the callback invoked (at most once per pass) when a
// cell's visible value changed and the host should schedule a frame.
func WithRepaint(fn func()) Option {
	return func(nb *Notebook) { nb.requestRepaint = fn }
}

// WithObserver sets the worker lifecycle observer, typically
// *metrics.Engine.
func WithObserver(o reactive.Observer) Option {
	return func(nb *Notebook) { nb.observer = o }
}

// WithStore backs the session with a host-owned slot store instead of a
// fresh one, so cell state can outlive an individual notebook value for
// as long as the hosting session keeps the store alive.
func WithStore(s *state.Store) Option {
	return func(nb *Notebook) { nb.store = s }
}

// WithTracer enables OpenTelemetry spans around cell computations.
func WithTracer(t trace.Tracer) Option {
	return func(nb *Notebook) { nb.tracer = t }
}

// New creates an empty notebook session with its own slot store.
func New(opts ...Option) *Notebook {
	nb := &Notebook{
		store:  state.NewStore(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Store returns the session's slot store.
func (nb *Notebook) Store() *state.Store { return nb.store }

// Pass returns the number of completed render passes.
func (nb *Notebook) Pass() uint64 { return nb.pass.Load() }

// add appends a cell to the walk order.
func (nb *Notebook) add(c cell) {
	nb.mu.Lock()
	nb.cells = append(nb.cells, c)
	nb.mu.Unlock()
}

// RenderPass walks all cells once, in registration order. Must be
// called from the single render goroutine. It never blocks on a worker;
// the only waiting it can do is per-slot lock acquisition.
func (nb *Notebook) RenderPass() {
	nb.mu.RLock()
	cells := nb.cells
	nb.mu.RUnlock()

	repaint := false
	for _, c := range cells {
		if c.step(nb) {
			repaint = true
		}
	}
	pass := nb.pass.Add(1)

	if repaint {
		nb.logger.Debug("repaint requested", "pass", pass)
		if nb.observer != nil {
			nb.observer.RepaintRequested()
		}
		if nb.requestRepaint != nil {
			nb.requestRepaint()
		}
	}
}

// CellInfo is a point-in-time description of one cell, for the debug
// surface.
type CellInfo struct {
	Key        string `json:"key,omitempty"`
	Kind       string `json:"kind"`
	Phase      string `json:"phase,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Inspect snapshots every cell's current state, in walk order. Safe to
// call from any goroutine; each cell is read under its own lock, so the
// result may be torn across cells.
func (nb *Notebook) Inspect() []CellInfo {
	nb.mu.RLock()
	cells := nb.cells
	nb.mu.RUnlock()

	infos := make([]CellInfo, 0, len(cells))
	for _, c := range cells {
		infos = append(infos, c.info())
	}
	return infos
}

// EventKind classifies notebook events.
type EventKind string

const (
	// EventValue means a cell's visible value changed.
	EventValue EventKind = "value"

	// EventFailure means a cell's computation failed.
	EventFailure EventKind = "failure"
)

// Event describes one observable cell transition.
type Event struct {
	Cell       string    `json:"cell"`
	Kind       EventKind `json:"kind"`
	Generation uint64    `json:"generation"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// Subscribe registers an event channel and returns it with a cancel
// function. Events are delivered best-effort: a subscriber that falls
// behind loses events rather than stalling the render pass.
func (nb *Notebook) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	nb.mu.Lock()
	nb.subs = append(nb.subs, ch)
	nb.mu.Unlock()

	cancel := func() {
		nb.mu.Lock()
		defer nb.mu.Unlock()
		for i, sub := range nb.subs {
			if sub == ch {
				nb.subs[i] = nb.subs[len(nb.subs)-1]
				nb.subs = nb.subs[:len(nb.subs)-1]
				return
			}
		}
	}
	return ch, cancel
}

// publish fans an event out to all subscribers without blocking. The
// list is cloned under the lock because cancel compacts nb.subs in
// place from other goroutines.
func (nb *Notebook) publish(ev Event) {
	ev.Time = time.Now()

	nb.mu.RLock()
	subs := slices.Clone(nb.subs)
	nb.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub <- ev:
		default:
			// Subscriber is full; drop rather than stall the pass.
		}
	}
}
