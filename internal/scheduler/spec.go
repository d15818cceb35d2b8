package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// Spec is a normalized trigger: a cron expression, or a fixed interval
// expressed as "@every <d>" so both kinds run on the same cron engine.
//
// Accepted forms:
//   - cron: "30 2 * * *", "@daily", "cron:0 6 * * 1-5"
//   - daily clock time: "06:30", "at:06:30"  (every day at that local time)
//   - interval: "24h", "every:90m"
type Spec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "clock" | "duration"
}

var reClock = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec validates raw and returns its normalized form.
func ParseSpec(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}
	low := strings.ToLower(s)

	switch {
	case strings.HasPrefix(low, "cron:"):
		return cronSpec(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "at:"):
		return clockSpec(strings.TrimSpace(s[len("at:"):]))
	case strings.HasPrefix(low, "every:"):
		return intervalSpec(strings.TrimSpace(s[len("every:"):]))
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return cronSpec(s)
	case reClock.MatchString(s):
		return clockSpec(s)
	}
	if _, err := time.ParseDuration(s); err == nil {
		return intervalSpec(s)
	}
	return Spec{}, fmt.Errorf("invalid schedule %q (use cron like '30 2 * * *', a clock time like '06:30', or a duration like '24h')", raw)
}

func cronSpec(expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, fmt.Errorf("cron expression required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Spec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
}

func clockSpec(v string) (Spec, error) {
	m := reClock.FindStringSubmatch(v)
	if m == nil {
		return Spec{}, fmt.Errorf("invalid clock time %q (want HH:MM)", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh > 23 || mm > 59 {
		return Spec{}, fmt.Errorf("invalid clock time %q", v)
	}
	return Spec{Kind: SpecCron, Cron: fmt.Sprintf("%d %d * * *", mm, hh), Source: "clock"}, nil
}

func intervalSpec(v string) (Spec, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid interval %q: %w", v, err)
	}
	if d < time.Minute {
		return Spec{}, fmt.Errorf("interval %s too short (minimum 1m)", d)
	}
	return Spec{Kind: SpecInterval, Cron: "@every " + d.String(), Every: d, Source: "duration"}, nil
}
