package scheduler

import (
	"context"
	"testing"
	"time"

	logx "pricewatch/pkg/logx"
)

func TestParseSpecVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		raw    string
		kind   SpecKind
		source string
		cron   string
		every  time.Duration
	}{
		{name: "cron", raw: "30 2 * * *", kind: SpecCron, source: "cron", cron: "30 2 * * *"},
		{name: "descriptor", raw: "@daily", kind: SpecCron, source: "cron", cron: "@daily"},
		{name: "prefixed cron", raw: "cron:0 6 * * 1-5", kind: SpecCron, source: "cron", cron: "0 6 * * 1-5"},
		{name: "clock", raw: "06:30", kind: SpecCron, source: "clock", cron: "30 6 * * *"},
		{name: "prefixed clock", raw: "at:2:05", kind: SpecCron, source: "clock", cron: "5 2 * * *"},
		{name: "duration", raw: "24h", kind: SpecInterval, source: "duration", cron: "@every 24h0m0s", every: 24 * time.Hour},
		{name: "prefixed interval", raw: "every:90m", kind: SpecInterval, source: "duration", cron: "@every 1h30m0s", every: 90 * time.Minute},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSpec(tt.raw)
			if err != nil {
				t.Fatalf("ParseSpec(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind || got.Source != tt.source || got.Cron != tt.cron || got.Every != tt.every {
				t.Fatalf("ParseSpec(%q) = %+v", tt.raw, got)
			}
		})
	}
}

func TestParseSpecInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "25:00", "12:75", "61 * * * *", "every:10s", "cron:"} {
		if _, err := ParseSpec(raw); err == nil {
			t.Fatalf("ParseSpec(%q): expected error", raw)
		}
	}
}

func TestSchedulerNextInLocation(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s, err := New("06:30", loc, func(context.Context) {}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Next().IsZero() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	next := s.Next().In(loc)
	if next.Hour() != 6 || next.Minute() != 30 {
		t.Fatalf("next = %s", next)
	}
	cancel()
	<-done
}
