// Package feed fetches the FPL bootstrap document and maps it to observations.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pricewatch/internal/model"
	logx "pricewatch/pkg/logx"
)

const DefaultURL = "https://fantasy.premierleague.com/api/bootstrap-static/"

// ErrNoElements means the document decoded but carried no players.
var ErrNoElements = errors.New("feed has no elements")

type Config struct {
	URL       string
	Timeout   time.Duration // per attempt
	RetryMax  int           // extra attempts after the first
	BaseDelay time.Duration // doubled per retry, capped at MaxDelay
	MaxDelay  time.Duration
	UserAgent string
}

// Bootstrap is one decoded fetch.
type Bootstrap struct {
	Observations []model.Observation
	// Gameweek is the current event id, 0 before the season starts.
	Gameweek  int
	FetchedAt time.Time
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 40 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "pricewatch/1"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: &http.Client{}, log: log.With(logx.String("comp", "feed"))}
}

// Fetch downloads and maps the bootstrap document.
func (c *Client) Fetch(ctx context.Context) (Bootstrap, error) {
	body, err := c.get(ctx)
	if err != nil {
		return Bootstrap{}, fmt.Errorf("fetch bootstrap: %w", err)
	}
	b, err := Decode(body)
	if err != nil {
		return Bootstrap{}, err
	}
	b.FetchedAt = time.Now().UTC()
	c.log.Info("feed fetched", logx.Int("elements", len(b.Observations)), logx.Int("gameweek", b.Gameweek))
	return b, nil
}

// get retries transport errors, 429 and 5xx with exponential backoff.
func (c *Client) get(ctx context.Context) ([]byte, error) {
	attempts := 1 + c.cfg.RetryMax
	delay := c.cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, retry, err := c.once(ctx)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		c.log.Warn("feed attempt failed; retrying",
			logx.Int("attempt", attempt), logx.Int("max", attempts), logx.Duration("in", delay), logx.Err(err))
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		delay *= 2
		if delay > c.cfg.MaxDelay {
			delay = c.cfg.MaxDelay
		}
	}
	return nil, fmt.Errorf("all %d attempts failed, last error: %w", attempts, lastErr)
}

func (c *Client) once(ctx context.Context) (body []byte, retry bool, err error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(actx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("HTTP %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
}

type document struct {
	Elements []struct {
		ID                int             `json:"id"`
		WebName           string          `json:"web_name"`
		NowCost           int             `json:"now_cost"`
		Team              int             `json:"team"`
		SelectedByPercent decimal.Decimal `json:"selected_by_percent"`
	} `json:"elements"`
	Teams []struct {
		ID        int    `json:"id"`
		ShortName string `json:"short_name"`
	} `json:"teams"`
	Events []struct {
		ID        int  `json:"id"`
		IsCurrent bool `json:"is_current"`
	} `json:"events"`
}

// Decode maps a bootstrap body. Teams missing from the document leave the
// group label empty. Popularity is the selected-by percentage in tenths.
func Decode(body []byte) (Bootstrap, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Bootstrap{}, fmt.Errorf("decode bootstrap: %w", err)
	}
	if len(doc.Elements) == 0 {
		return Bootstrap{}, ErrNoElements
	}

	teams := make(map[int]string, len(doc.Teams))
	for _, t := range doc.Teams {
		teams[t.ID] = t.ShortName
	}

	out := Bootstrap{Observations: make([]model.Observation, 0, len(doc.Elements))}
	for _, e := range doc.Elements {
		out.Observations = append(out.Observations, model.Observation{
			ID:         e.ID,
			Name:       e.WebName,
			Price:      e.NowCost,
			Group:      teams[e.Team],
			Popularity: int(e.SelectedByPercent.Shift(1).IntPart()),
		})
	}
	for _, ev := range doc.Events {
		if ev.IsCurrent {
			out.Gameweek = ev.ID
			break
		}
	}
	return out, nil
}
