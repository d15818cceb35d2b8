package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"pricewatch/internal/model"
	logx "pricewatch/pkg/logx"
)

const sample = `{
  "events": [{"id": 1, "is_current": false}, {"id": 2, "is_current": true}, {"id": 3, "is_current": false}],
  "teams": [{"id": 1, "short_name": "ARS"}, {"id": 12, "short_name": "LIV"}],
  "elements": [
    {"id": 7, "web_name": "Saka", "now_cost": 100, "team": 1, "selected_by_percent": "35.4"},
    {"id": 328, "web_name": "M.Salah", "now_cost": 145, "team": 12, "selected_by_percent": "61.0"},
    {"id": 900, "web_name": "Unknown", "now_cost": 40, "team": 99, "selected_by_percent": "0.0"}
  ]
}`

func fastConfig(url string) Config {
	return Config{URL: url, Timeout: 2 * time.Second, RetryMax: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDecode(t *testing.T) {
	b, err := Decode([]byte(sample))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []model.Observation{
		{ID: 7, Name: "Saka", Price: 100, Group: "ARS", Popularity: 354},
		{ID: 328, Name: "M.Salah", Price: 145, Group: "LIV", Popularity: 610},
		{ID: 900, Name: "Unknown", Price: 40, Group: "", Popularity: 0},
	}
	if !reflect.DeepEqual(b.Observations, want) {
		t.Fatalf("observations = %+v", b.Observations)
	}
	if b.Gameweek != 2 {
		t.Fatalf("gameweek = %d", b.Gameweek)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte(`{"elements":[]}`)); !errors.Is(err, ErrNoElements) {
		t.Fatalf("empty err = %v", err)
	}
	if _, err := Decode([]byte(`<html>`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	b, err := New(fastConfig(srv.URL), logx.Nop()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n.Load() != 3 || len(b.Observations) != 3 || b.FetchedAt.IsZero() {
		t.Fatalf("attempts = %d, bootstrap = %+v", n.Load(), b)
	}
}

func TestFetchNoRetryOnClientError(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := New(fastConfig(srv.URL), logx.Nop()).Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if n.Load() != 1 {
		t.Fatalf("attempts = %d, want 1", n.Load())
	}
}

func TestFetchGivesUp(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := New(fastConfig(srv.URL), logx.Nop()).Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if n.Load() != 3 {
		t.Fatalf("attempts = %d, want 3", n.Load())
	}
}

func TestFetchRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := fastConfig(srv.URL)
	cfg.BaseDelay = time.Second
	cfg.RetryMax = 10
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := New(cfg, logx.Nop()).Fetch(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}
