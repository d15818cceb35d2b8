package config

// Config is the on-disk configuration (JSON or YAML).
//
// Secrets (API keys, bot token) never live here; see Secrets.
type Config struct {
	Feed      FeedConfig      `json:"feed"`
	Storage   StorageConfig   `json:"storage"`
	Diff      DiffConfig      `json:"diff"`
	Render    RenderConfig    `json:"render"`
	Output    OutputConfig    `json:"output"`
	Publish   PublishConfig   `json:"publish"`
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Status    StatusConfig    `json:"status,omitempty"`
}

// FeedConfig controls the upstream bootstrap fetch.
type FeedConfig struct {
	URL string `json:"url"`
	// Timeout is a Go duration string applied per HTTP attempt.
	Timeout  string `json:"timeout"`
	RetryMax int    `json:"retry_max"`
}

// StorageConfig selects the snapshot backend.
//
// Example:
//
//	storage: { driver: "file", path: "./data/snapshots" }
//
// Driver values: "file" (default), "sqlite", "redis", "memory".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only

	RedisAddr   string `json:"redis_addr,omitempty"`
	RedisDB     int    `json:"redis_db,omitempty"`
	RedisPrefix string `json:"redis_prefix,omitempty"`
}

// DiffConfig selects how changes are ranked inside each group.
// Rank is "delta" (absolute move, default) or "popularity".
type DiffConfig struct {
	Rank string `json:"rank"`
}

type RenderConfig struct {
	Title    string `json:"title"`
	Currency string `json:"currency"`
	// Timezone is used for the human date label (titles, process output).
	Timezone      string `json:"timezone"`
	MessageBudget int    `json:"message_budget"`
	ChunkBudget   int    `json:"chunk_budget"`
	// Oversize is "truncate" (default) or "reject".
	Oversize string `json:"oversize"`
}

// OutputConfig names the artifacts written by a run.
type OutputConfig struct {
	Dir         string `json:"dir"`
	Document    string `json:"document"`
	Message     string `json:"message"`
	ChunkPrefix string `json:"chunk_prefix"`
}

// PublishConfig controls threaded delivery to the social endpoint.
//
// Backoff is an ordered list of Go duration strings; the last value is reused
// for any further attempt.
type PublishConfig struct {
	Enabled        bool           `json:"enabled"`
	Endpoint       string         `json:"endpoint"`
	Backoff        []string       `json:"backoff"`
	MaxAttempts    int            `json:"max_attempts"`
	AttemptTimeout string         `json:"attempt_timeout"`
	RatePerSec     float64        `json:"rate_per_sec"`
	Threads        []ThreadConfig `json:"threads"`
}

// ThreadConfig declares one thread in publish order.
type ThreadConfig struct {
	Group    string `json:"group"`
	SoftFail bool   `json:"soft_fail"`
}

type TelegramConfig struct {
	Enabled bool `json:"enabled"`
	// Timeout is a Go duration string for the bot API client.
	Timeout string `json:"timeout"`
	// ThreadID targets a forum topic; 0 posts to the main chat.
	ThreadID int `json:"thread_id,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls the serve-mode trigger.
// Spec accepts cron ("30 2 * * *", "@daily"), a daily clock time ("06:30")
// or an interval ("24h").
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Spec     string `json:"spec"`
	Timezone string `json:"timezone,omitempty"`
}

// StatusConfig controls the serve-mode HTTP status server.
type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9090"
	// Pprof mounts /debug/pprof on the status server.
	Pprof bool `json:"pprof,omitempty"`
}

// Defaults returns the configuration used when no file is present.
// It reproduces the original daily job: file snapshots, delta ranking,
// fallers posted first, risers soft-fail.
func Defaults() *Config {
	return &Config{
		Feed: FeedConfig{
			URL:      "https://fantasy.premierleague.com/api/bootstrap-static/",
			Timeout:  "40s",
			RetryMax: 2,
		},
		Storage: StorageConfig{Driver: "file", Path: "./data/snapshots"},
		Diff:    DiffConfig{Rank: "delta"},
		Render: RenderConfig{
			Title:         "FPL Price Changes",
			Currency:      "£",
			Timezone:      "Europe/London",
			MessageBudget: 3900,
			ChunkBudget:   255,
			Oversize:      "truncate",
		},
		Output: OutputConfig{
			Dir:         ".",
			Document:    "changes.md",
			Message:     "tg_message.txt",
			ChunkPrefix: "x_status",
		},
		Publish: PublishConfig{
			Endpoint:       "https://api.twitter.com/2/tweets",
			Backoff:        []string{"5s", "15s", "30s", "60s"},
			MaxAttempts:    5,
			AttemptTimeout: "20s",
			RatePerSec:     1,
			Threads: []ThreadConfig{
				{Group: "fallers", SoftFail: false},
				{Group: "risers", SoftFail: true},
			},
		},
		Telegram: TelegramConfig{Timeout: "10s"},
		Logging:  LoggingConfig{Level: "info", Console: true, Chat: LoggingChat{MinLevel: "warn", RatePerSec: 1}},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Spec:     "30 2 * * *",
			Timezone: "Europe/London",
		},
		Status: StatusConfig{Addr: "127.0.0.1:9090"},
	}
}
