package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "pricewatch/pkg/logx"
)

func TestRouter(t *testing.T) {
	var report any
	h := Router(Routes{
		Last: func() (any, bool) { return report, report != nil },
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		}),
	}, logx.Nop())

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("/healthz = %d", rec.Code)
	}
	if rec := get("/last"); rec.Code != http.StatusNotFound {
		t.Fatalf("/last before run = %d", rec.Code)
	}

	report = map[string]any{"date": "16-08-2025", "has_changes": true}
	rec := get("/last")
	if rec.Code != http.StatusOK {
		t.Fatalf("/last = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["date"] != "16-08-2025" || got["has_changes"] != true {
		t.Fatalf("/last body = %v", got)
	}

	if rec := get("/metrics"); rec.Body.String() != "metrics" {
		t.Fatalf("/metrics = %q", rec.Body.String())
	}
	if rec := get("/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("/nope = %d", rec.Code)
	}
	if rec := get("/debug/pprof/"); rec.Code != http.StatusNotFound {
		t.Fatalf("pprof must be off by default: %d", rec.Code)
	}
}

func TestRouterPprof(t *testing.T) {
	h := Router(Routes{Pprof: true}, logx.Nop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/debug/pprof/ = %d", rec.Code)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := New("127.0.0.1:0", Router(Routes{}, logx.Nop()), logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
