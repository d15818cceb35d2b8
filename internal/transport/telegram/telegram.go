// Package telegram delivers the bounded change message and forwarded log
// lines to one Telegram chat.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "pricewatch/pkg/logx"
	"pricewatch/pkg/tgui"
)

// TextLimit is Telegram's message size in runes.
const TextLimit = 4096

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	Timeout  time.Duration
	// APIURL overrides the Bot API base URL (tests, local bot API servers).
	APIURL string
}

// Client sends to a fixed chat. It never polls for updates.
type Client struct {
	cfg Config
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: cfg.Timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, bot: b, log: log.With(logx.String("comp", "telegram"))}, nil
}

// SendMessage posts pre-rendered HTML with link previews disabled and
// returns the message id.
func (c *Client) SendMessage(ctx context.Context, html tgui.H) (int, error) {
	return c.send(ctx, tgui.TruncRunes(html.String(), TextLimit), tele.ModeHTML)
}

// SendLog implements logx.Sender. Lines are sent as plain text.
func (c *Client) SendLog(ctx context.Context, text string) error {
	_, err := c.send(ctx, tgui.TruncRunes(text, TextLimit), "")
	return err
}

func (c *Client) send(ctx context.Context, text string, mode tele.ParseMode) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	opt := &tele.SendOptions{
		ParseMode:             mode,
		DisableWebPagePreview: true,
		ThreadID:              c.cfg.ThreadID,
	}
	msg, err := c.bot.Send(tele.ChatID(c.cfg.ChatID), text, opt)
	if err != nil {
		return 0, err
	}
	c.log.Debug("message sent", logx.Int("id", msg.ID), logx.Int("len", tgui.Len(text)))
	return msg.ID, nil
}
