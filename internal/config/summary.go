package config

import (
	"reflect"
	"sort"
	"strings"

	logx "pricewatch/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and safe structured
// fields for logging a reload.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	fields := make([]logx.Field, 0, 8)

	if !reflect.DeepEqual(oldCfg.Feed, newCfg.Feed) {
		changed = append(changed, "feed")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		fields = append(fields,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
		)
	}
	if oldCfg.Diff != newCfg.Diff {
		changed = append(changed, "diff")
		fields = append(fields, logx.String("diff.rank", newCfg.Diff.Rank))
	}
	if oldCfg.Render != newCfg.Render {
		changed = append(changed, "render")
		fields = append(fields,
			logx.Int("render.message_budget", newCfg.Render.MessageBudget),
			logx.Int("render.chunk_budget", newCfg.Render.ChunkBudget),
		)
	}
	if oldCfg.Output != newCfg.Output {
		changed = append(changed, "output")
	}
	if !reflect.DeepEqual(oldCfg.Publish, newCfg.Publish) {
		changed = append(changed, "publish")
		fields = append(fields,
			logx.Bool("publish.enabled", newCfg.Publish.Enabled),
			logx.Int("publish.max_attempts", newCfg.Publish.MaxAttempts),
			logx.Int("publish.threads", len(newCfg.Publish.Threads)),
		)
	}
	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		fields = append(fields, logx.Bool("telegram.enabled", newCfg.Telegram.Enabled))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields, logx.String("logging.level", newCfg.Logging.Level))
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		fields = append(fields,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.spec", strings.TrimSpace(newCfg.Scheduler.Spec)),
		)
	}
	if oldCfg.Status != newCfg.Status {
		changed = append(changed, "status")
	}

	sort.Strings(changed)
	return changed, fields
}
