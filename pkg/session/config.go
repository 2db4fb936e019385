package session

import (
	"time"

	"github.com/rhuss/mcpchat/pkg/config"
)

// Config holds the settings the session manager needs.
type Config struct {
	// Model is the model name sent with every request.
	Model string

	// Prompt is shown when reading a query.
	Prompt string

	// CompactionThreshold is the history length above which the history
	// is summarized. Zero or negative means use the default of 20.
	CompactionThreshold int

	// SummaryPrompt precedes the rendered history in compaction requests.
	SummaryPrompt string

	// ToolTimeout bounds a single tool call. Zero means no timeout.
	ToolTimeout time.Duration

	// ModelTimeout bounds a single model request. Zero means no timeout.
	ModelTimeout time.Duration

	// MaxParallelTools limits concurrent tool calls. Zero means unbounded.
	MaxParallelTools int

	// MaxToolRounds is the number of tool rounds per query. Zero or
	// negative means use the default of 1.
	MaxToolRounds int

	// AllowedTools restricts the tools advertised to the model.
	// Empty means all tools.
	AllowedTools []string
}

// ConfigFrom extracts the session manager settings from cfg.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		Model:               cfg.Model.Name,
		Prompt:              cfg.Console.Prompt,
		CompactionThreshold: cfg.Session.CompactionThreshold,
		SummaryPrompt:       cfg.Session.SummaryPrompt,
		ToolTimeout:         cfg.Session.ToolTimeout,
		ModelTimeout:        cfg.Session.ModelTimeout,
		MaxParallelTools:    cfg.Session.MaxParallelTools,
		MaxToolRounds:       cfg.Session.MaxToolRounds,
		AllowedTools:        cfg.Session.AllowedTools,
	}
}

func (c Config) threshold() int {
	if c.CompactionThreshold <= 0 {
		return 20
	}
	return c.CompactionThreshold
}

func (c Config) maxRounds() int {
	if c.MaxToolRounds <= 0 {
		return 1
	}
	return c.MaxToolRounds
}

func (c Config) summaryPrompt() string {
	if c.SummaryPrompt == "" {
		return config.DefaultSummaryPrompt
	}
	return c.SummaryPrompt
}
