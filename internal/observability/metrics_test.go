package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveTask("t", "succeeded", time.Second)
	m.IncGradebookWrite("created")
	m.IncAggregateConflict("op")
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

func TestWritePrometheusIncludesObservedSeries(t *testing.T) {
	m := New(time.Second)
	m.ObserveTask("gradebook.update_user_gradebook", "succeeded", 20*time.Millisecond)
	m.IncGradebookWrite("updated")
	m.IncGradebookWrite("updated")
	m.IncAggregateConflict("gradebook.apply_grade")
	m.ObserveActivity("task_run", "gradebook.update_user_gradebook", "failed", time.Millisecond)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`gb_task_runs_total{task="gradebook.update_user_gradebook",status="succeeded"} 1.000000`,
		`gb_gradebook_writes_total{outcome="updated"} 2.000000`,
		`gb_aggregate_conflicts_total{operation="gradebook.apply_grade"} 1.000000`,
		`gb_worker_activity_error_total 1.000000`,
		`gb_task_duration_seconds_bucket{task="gradebook.update_user_gradebook",status="succeeded",le="0.05"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestLabelDefaults(t *testing.T) {
	m := New(0)
	m.IncEventDispatch("", "")
	var buf bytes.Buffer
	_ = m.eventDispatches.WritePrometheus(&buf)
	if !strings.Contains(buf.String(), `event="unknown",status="unknown"`) {
		t.Fatalf("expected unknown labels, got %s", buf.String())
	}
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders(" a=1, b = two ,bad, =x")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "two" {
		t.Fatalf("ParseHeaders: %v", h)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
