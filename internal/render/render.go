// Package render turns a changeset into the document, the bounded chat
// message and the threaded chunk sequences.
//
// All budgets are measured in runes.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pricewatch/internal/model"
)

var (
	// ErrBulletTooLong is returned under OversizeReject when one bullet cannot fit a chunk.
	ErrBulletTooLong = errors.New("bullet exceeds chunk budget")
	// ErrHeaderTooLong means the chunk budget cannot hold even a header.
	ErrHeaderTooLong = errors.New("chunk header exceeds chunk budget")
)

// OversizePolicy decides what happens to a bullet longer than a chunk allows.
type OversizePolicy int

const (
	// OversizeTruncate emits the bullet alone in its own chunk, cut with an ellipsis.
	OversizeTruncate OversizePolicy = iota
	// OversizeReject fails rendering with ErrBulletTooLong.
	OversizeReject
)

// ParseOversize maps a config value to a policy. Empty means truncate.
func ParseOversize(s string) (OversizePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "truncate":
		return OversizeTruncate, nil
	case "reject":
		return OversizeReject, nil
	default:
		return 0, fmt.Errorf("unknown oversize policy %q", s)
	}
}

type Config struct {
	Title         string
	Currency      string
	MessageBudget int
	ChunkBudget   int
	Oversize      OversizePolicy
}

const (
	DefaultMessageBudget = 3900
	DefaultChunkBudget   = 255
)

type Renderer struct {
	cfg Config
}

func New(cfg Config) *Renderer {
	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = "FPL Price Changes"
	}
	if cfg.Currency == "" {
		cfg.Currency = "£"
	}
	if cfg.MessageBudget <= 0 {
		cfg.MessageBudget = DefaultMessageBudget
	}
	if cfg.ChunkBudget <= 0 {
		cfg.ChunkBudget = DefaultChunkBudget
	}
	return &Renderer{cfg: cfg}
}

func (r *Renderer) Config() Config { return r.cfg }

// money formats tenths as "£7.5m".
func (r *Renderer) money(tenths int) string {
	return r.cfg.Currency + decimal.New(int64(tenths), -1).StringFixed(1) + "m"
}

// signed formats a delta in tenths as "+0.1m" / "-0.2m".
func signed(tenths int) string {
	s := decimal.New(int64(tenths), -1).StringFixed(1) + "m"
	if tenths > 0 {
		return "+" + s
	}
	return s
}

// headline is the shared title context: "<title> — <date> (Risers: n, Fallers: m)".
func (r *Renderer) headline(cs model.Changeset) string {
	var b strings.Builder
	b.WriteString(r.cfg.Title)
	if cs.Date != "" {
		b.WriteString(" — ")
		b.WriteString(cs.Date)
	}
	fmt.Fprintf(&b, " (Risers: %d, Fallers: %d)", len(cs.Risers), len(cs.Fallers))
	return b.String()
}

func groupIcon(g model.Group) string {
	if g == model.Fallers {
		return "📉"
	}
	return "📈"
}

// scope renders the optional "(ARS)" suffix.
func scope(label string) string {
	if strings.TrimSpace(label) == "" {
		return ""
	}
	return " (" + label + ")"
}

var groups = [...]model.Group{model.Risers, model.Fallers}
