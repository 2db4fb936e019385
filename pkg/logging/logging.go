// Package logging configures process-wide structured logging for mcpchat.
//
// Log lines are written with log/slog to an append-only file and,
// optionally, to the console. Two orthogonal controls exist on top:
//   - Categories (WHAT to debug): logging.debug or MCPCHAT_DEBUG
//   - Levels (HOW MUCH detail): logging.level or MCPCHAT_LOG_LEVEL
//
// Usage:
//
//	logging.Log("providers", "request", "model", model)
//	if logging.Enabled("tools") { /* expensive formatting */ }
//
// Categories: providers, tools, session, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rhuss/mcpchat/pkg/config"
)

// Setup installs the default slog logger according to cfg. Lines go to the
// configured log file (opened for append, parent directory created) and to
// console when cfg.Console is set. The returned function closes the file.
func Setup(cfg config.LoggingConfig, console io.Writer) (func() error, error) {
	categories = parseCategories(cfg.Debug)

	var writers []io.Writer
	closeFn := func() error { return nil }

	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating log directory %s: %w", dir, err)
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		writers = append(writers, f)
		closeFn = f.Close
	}
	if cfg.Console && console != nil {
		writers = append(writers, console)
	}

	slog.SetDefault(New(io.MultiWriter(writers...), cfg.Level))
	return closeFn, nil
}

// New returns a text logger writing to w at the given level name.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			// Render the custom trace level by name instead of "DEBUG-4".
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}))
}
