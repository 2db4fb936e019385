// Command mcpchat is an interactive chat client that lets a chat model call
// the tools of an MCP server, asking the user for consent before each new
// tool.
//
// Configuration is read from a YAML file, .env and environment variables
// (see pkg/config). Flags override the loaded values:
//
//	--config     path to the YAML config file
//	--model      chat model name
//	--server     tool server URL (command line for --transport stdio)
//	--transport  streamable-http, sse or stdio
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/rhuss/mcpchat/pkg/config"
	"github.com/rhuss/mcpchat/pkg/console"
	"github.com/rhuss/mcpchat/pkg/logging"
	"github.com/rhuss/mcpchat/pkg/observability"
	"github.com/rhuss/mcpchat/pkg/provider"
	"github.com/rhuss/mcpchat/pkg/provider/openai"
	"github.com/rhuss/mcpchat/pkg/provider/openaicompat"
	"github.com/rhuss/mcpchat/pkg/session"
	"github.com/rhuss/mcpchat/pkg/tools"
	"github.com/rhuss/mcpchat/pkg/tools/mcp"
	"github.com/rhuss/mcpchat/pkg/transcript"
	"github.com/rhuss/mcpchat/pkg/transcript/memory"
	"github.com/rhuss/mcpchat/pkg/transcript/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mcpchat failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to the YAML config file")
		model      = flag.String("model", "", "chat model name (overrides config)")
		server     = flag.String("server", "", "tool server URL, or command line for stdio (overrides config)")
		transport  = flag.String("transport", "", "tool server transport: streamable-http, sse or stdio (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if applyFlags(cfg, *model, *server, *transport) {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	closeLog, err := logging.Setup(cfg.Logging, os.Stderr)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prov, err := newProvider(cfg.Model, cfg.Session.ModelTimeout)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	store, err := newTranscriptStore(ctx, cfg.Transcript)
	if err != nil {
		return fmt.Errorf("creating transcript store: %w", err)
	}
	defer store.Close()

	if cfg.Observability.Metrics.Enabled {
		metrics, err := observability.Start(cfg.Observability.Metrics)
		if err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(shutdownCtx)
		}()
	}

	con, err := console.New(cfg.Console, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer con.Close()

	serverCfg := mcp.FromConfig(cfg.MCP, cfg.Session)
	slog.Info("starting mcpchat",
		"provider", prov.Name(),
		"model", cfg.Model.Name,
		"server", serverCfg.Name,
		"transport", serverCfg.Transport,
		"transcript", cfg.Transcript.Type,
	)

	return session.Run(ctx, *cfg, session.Deps{
		Provider: prov,
		Connect: func(ctx context.Context) (tools.ToolExecutor, error) {
			return mcp.Connect(ctx, serverCfg)
		},
		Console: con,
		Store:   store,
	})
}

// applyFlags copies non-empty flag values into cfg and reports whether
// anything changed.
func applyFlags(cfg *config.Config, model, server, transport string) bool {
	changed := false
	if model != "" {
		cfg.Model.Name = model
		changed = true
	}
	if transport != "" {
		cfg.MCP.Transport = transport
		changed = true
	}
	if server = strings.TrimSpace(server); server != "" {
		if cfg.MCP.Transport == "stdio" {
			fields := strings.Fields(server)
			cfg.MCP.Command = fields[0]
			cfg.MCP.Args = fields[1:]
		} else {
			cfg.MCP.URL = server
		}
		changed = true
	}
	return changed
}

// newProvider creates the chat model provider selected by cfg.Provider,
// instrumented with metrics.
func newProvider(cfg config.ModelConfig, timeout time.Duration) (provider.Provider, error) {
	var (
		p   provider.Provider
		err error
	)
	switch cfg.Provider {
	case "openai":
		p, err = openai.New(openai.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: timeout,
			Aliases: cfg.Aliases,
		})
	default:
		p, err = openaicompat.New(openaicompat.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: timeout,
			Aliases: cfg.Aliases,
		})
	}
	if err != nil {
		return nil, err
	}
	return observability.InstrumentProvider(p), nil
}

// newTranscriptStore creates the archive selected by cfg.Type.
func newTranscriptStore(ctx context.Context, cfg config.TranscriptConfig) (transcript.Store, error) {
	switch cfg.Type {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("transcript archive enabled", "type", "postgres")
		return store, nil
	case "memory":
		slog.Info("transcript archive enabled", "type", "memory", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	default:
		slog.Info("transcript archive disabled")
		return transcript.Discard{}, nil
	}
}
