package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEngineObserverCallbacks(t *testing.T) {
	reg := prometheus.NewRegistry()
	eng := NewEngine(WithRegistry(reg))

	eng.JobStarted("b")
	if got := testutil.ToFloat64(eng.workersInFlight); got != 1 {
		t.Errorf("expected 1 worker in flight, got %v", got)
	}

	eng.JobFinished("b", 5*time.Millisecond, nil)
	if got := testutil.ToFloat64(eng.workersInFlight); got != 0 {
		t.Errorf("expected 0 workers in flight, got %v", got)
	}
	if got := testutil.ToFloat64(eng.computationsTotal.WithLabelValues("b", "ok")); got != 1 {
		t.Errorf("expected 1 ok computation, got %v", got)
	}

	eng.JobStarted("b")
	eng.JobFinished("b", time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(eng.computationsTotal.WithLabelValues("b", "error")); got != 1 {
		t.Errorf("expected 1 failed computation, got %v", got)
	}

	eng.GenerationAdvanced("b", 3)
	if got := testutil.ToFloat64(eng.generation.WithLabelValues("b")); got != 3 {
		t.Errorf("expected generation gauge 3, got %v", got)
	}

	eng.RepaintRequested()
	eng.RepaintRequested()
	if got := testutil.ToFloat64(eng.repaintsTotal); got != 2 {
		t.Errorf("expected 2 repaint requests, got %v", got)
	}
}

func TestEngineRegistersUnderNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	eng := NewEngine(WithRegistry(reg), WithNamespace("custom"))
	eng.JobStarted("b")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "custom_cell_workers_in_flight" {
			found = true
		}
	}
	if !found {
		t.Error("expected custom_cell_workers_in_flight to be registered")
	}
}
