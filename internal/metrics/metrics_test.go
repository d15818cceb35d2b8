package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pricewatch/internal/eventbus"
)

func TestObserve(t *testing.T) {
	m := New()
	now := time.Unix(1723800000, 0)
	m.Observe(eventbus.Event{Type: eventbus.TypeRunFinished, Time: now, Data: eventbus.RunEvent{Mode: "run", Risers: 3, Fallers: 1, Duration: 2 * time.Second}})
	m.Observe(eventbus.Event{Type: eventbus.TypeRunFinished, Time: now, Data: eventbus.RunEvent{Mode: "run", Error: "boom"}})
	m.Observe(eventbus.Event{Type: eventbus.TypeChunkAttempt, Data: eventbus.PublishEvent{Thread: "risers", Outcome: "retry"}})
	m.Observe(eventbus.Event{Type: eventbus.TypeChunkAttempt, Data: eventbus.PublishEvent{Thread: "risers", Outcome: "success"}})
	m.Observe(eventbus.Event{Type: eventbus.TypeThreadDone, Data: eventbus.PublishEvent{Thread: "risers", State: "succeeded"}})
	m.Observe(eventbus.Event{Type: eventbus.TypeRunStarted, Data: eventbus.RunEvent{Mode: "run"}})

	if v := testutil.ToFloat64(m.Runs.WithLabelValues("run", "ok")); v != 1 {
		t.Fatalf("runs ok = %v", v)
	}
	if v := testutil.ToFloat64(m.Runs.WithLabelValues("run", "error")); v != 1 {
		t.Fatalf("runs error = %v", v)
	}
	if v := testutil.ToFloat64(m.Changes.WithLabelValues("risers")); v != 3 {
		t.Fatalf("risers gauge = %v", v)
	}
	if v := testutil.ToFloat64(m.LastSuccess); v != float64(now.Unix()) {
		t.Fatalf("last success = %v", v)
	}
	if v := testutil.ToFloat64(m.Attempts.WithLabelValues("risers", "retry")); v != 1 {
		t.Fatalf("retry attempts = %v", v)
	}
	if v := testutil.ToFloat64(m.ThreadResults.WithLabelValues("risers", "succeeded")); v != 1 {
		t.Fatalf("thread results = %v", v)
	}
}

func TestHandlerExposes(t *testing.T) {
	m := New()
	m.Runs.WithLabelValues("serve", "ok").Inc()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `pricewatch_runs_total{mode="serve",result="ok"} 1`) {
		t.Fatalf("exposition missing counter:\n%s", body)
	}
}
