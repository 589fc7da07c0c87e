// Package nbtest provides helpers for testing notebook cells without a
// real render loop: it drives passes manually and waits for background
// computations by polling, never by touching engine internals.
package nbtest

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/triblespace/gorbie/pkg/notebook"
)

// Harness wraps a notebook session and plays the part of the hosting
// render loop.
type Harness struct {
	// NB is the session under test. Register cells on it directly.
	NB *notebook.Notebook

	repaints atomic.Int64
}

// New creates a harness with a fresh notebook session. The harness
// installs its own repaint callback so tests can assert on repaint
// requests; other options are passed through.
//
// Example:
//
//	h := nbtest.New()
//	a := notebook.Stateful(h.NB, "a", func() int { return 5 }, func(*int) {})
func New(opts ...notebook.Option) *Harness {
	h := &Harness{}
	opts = append(opts, notebook.WithRepaint(func() {
		h.repaints.Add(1)
	}))
	h.NB = notebook.New(opts...)
	return h
}

// Step runs n render passes back to back.
func (h *Harness) Step(n int) {
	for i := 0; i < n; i++ {
		h.NB.RenderPass()
	}
}

// Repaints returns the number of repaint requests observed so far.
func (h *Harness) Repaints() int {
	return int(h.repaints.Load())
}

// StepUntil runs passes until cond holds, failing the test on timeout.
// A short sleep between passes yields to worker goroutines.
func (h *Harness) StepUntil(t testing.TB, cond func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		h.NB.RenderPass()
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached after %v", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}
