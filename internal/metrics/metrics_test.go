package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveClassification("llm", "HEALTHCARE", false)
	m.ObserveTranslation("google", true)
	m.ObserveSweep(1, 1, 0, 0.1)
	m.ObserveNotification("slack", false)
	if m.Handler() == nil {
		t.Fatal("expected default handler for nil metrics")
	}
}

func TestObserveClassificationCountsFallbacks(t *testing.T) {
	m := New()
	m.ObserveClassification("keyword", "UTILITIES", true)
	m.ObserveClassification("llm", "UTILITIES", false)

	if got := testutil.ToFloat64(m.LLMFallbacks); got != 1 {
		t.Fatalf("expected 1 fallback, got %f", got)
	}
	if got := testutil.ToFloat64(m.Classifications.WithLabelValues("keyword", "UTILITIES")); got != 1 {
		t.Fatalf("expected 1 keyword classification, got %f", got)
	}
}

func TestObserveSweep(t *testing.T) {
	m := New()
	m.ObserveSweep(3, 2, 1, 0.5)
	if got := testutil.ToFloat64(m.SweepEscalated); got != 2 {
		t.Fatalf("expected 2 escalated, got %f", got)
	}
	if got := testutil.ToFloat64(m.SweepFailed); got != 1 {
		t.Fatalf("expected 1 failed, got %f", got)
	}
}
