// Package x posts statuses to the X API v2 with OAuth 1.0a user context.
package x

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"pricewatch/internal/publish"
	logx "pricewatch/pkg/logx"
)

// DefaultEndpoint is the create-post URL.
const DefaultEndpoint = "https://api.twitter.com/2/tweets"

// Bodies larger than this are truncated; API answers are small.
const maxBody = 1 << 20

// Credentials are the four user-context OAuth 1.0a secrets.
type Credentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// Missing lists the names of empty credentials.
func (c Credentials) Missing() []string {
	var out []string
	for _, kv := range []struct{ name, v string }{
		{"X_API_KEY", c.APIKey},
		{"X_API_KEY_SECRET", c.APISecret},
		{"X_ACCESS_TOKEN", c.AccessToken},
		{"X_ACCESS_TOKEN_SECRET", c.AccessSecret},
	} {
		if strings.TrimSpace(kv.v) == "" {
			out = append(out, kv.name)
		}
	}
	return out
}

type Config struct {
	Endpoint    string
	Credentials Credentials
	// Base is the transport under the signer; nil means http.DefaultTransport.
	Base http.RoundTripper
}

// Client implements publish.Endpoint.
type Client struct {
	url  string
	http *http.Client
	log  logx.Logger
}

var _ publish.Endpoint = (*Client)(nil)

func New(cfg Config, log logx.Logger) (*Client, error) {
	if missing := cfg.Credentials.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("missing X credentials: %s", strings.Join(missing, ", "))
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	url := strings.TrimSpace(cfg.Endpoint)
	if url == "" {
		url = DefaultEndpoint
	}

	ctx := context.Background()
	if cfg.Base != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, &http.Client{Transport: cfg.Base})
	}
	oc := oauth1.NewConfig(cfg.Credentials.APIKey, cfg.Credentials.APISecret)
	hc := oc.Client(ctx, oauth1.NewToken(cfg.Credentials.AccessToken, cfg.Credentials.AccessSecret))

	return &Client{url: url, http: hc, log: log.With(logx.String("comp", "x"))}, nil
}

type postRequest struct {
	Text  string     `json:"text"`
	Reply *replySpec `json:"reply,omitempty"`
}

type replySpec struct {
	InReplyTo string `json:"in_reply_to_tweet_id"`
}

// Post creates one status, as a reply when replyTo is set. Deadlines come from ctx.
func (c *Client) Post(ctx context.Context, text, replyTo string) (publish.Response, error) {
	payload := postRequest{Text: text}
	if replyTo != "" {
		payload.Reply = &replySpec{InReplyTo: replyTo}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return publish.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return publish.Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return publish.Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil && !errors.Is(err, io.EOF) {
		return publish.Response{}, fmt.Errorf("read response: %w", err)
	}
	c.log.Debug("post",
		logx.Int("status", resp.StatusCode),
		logx.Int("len", len([]rune(text))),
		logx.Bool("reply", replyTo != ""),
		logx.Duration("took", time.Since(start)))

	return publish.Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
