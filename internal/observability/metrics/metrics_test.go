package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPanelMetricsRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPanelMetrics(reg)

	m.ObserveProviderCall("openai", "ok", 0.42)
	m.ObserveProviderCall("openai", "error", 1.2)
	m.ObserveStep("discussing", "ok")
	m.ObserveCompleted()

	if got := testutil.ToFloat64(m.providerRequests.WithLabelValues("openai", "ok")); got != 1 {
		t.Fatalf("expected 1 ok provider call, got %v", got)
	}
	if got := testutil.ToFloat64(m.providerRequests.WithLabelValues("openai", "error")); got != 1 {
		t.Fatalf("expected 1 failed provider call, got %v", got)
	}
	if got := testutil.ToFloat64(m.stepsTotal.WithLabelValues("discussing", "ok")); got != 1 {
		t.Fatalf("expected 1 step, got %v", got)
	}
	if got := testutil.ToFloat64(m.completedTotal); got != 1 {
		t.Fatalf("expected 1 completion, got %v", got)
	}
}

func TestNilReceiverSafe(t *testing.T) {
	var m *PanelMetrics
	m.ObserveProviderCall("openai", "ok", 0)
	m.ObserveStep("voting", "error")
	m.ObserveCompleted()
}
