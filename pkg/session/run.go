package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/mcpchat/pkg/api"
	"github.com/rhuss/mcpchat/pkg/config"
	"github.com/rhuss/mcpchat/pkg/console"
	"github.com/rhuss/mcpchat/pkg/provider"
	"github.com/rhuss/mcpchat/pkg/tools"
	"github.com/rhuss/mcpchat/pkg/transcript"
)

// Deps holds the collaborators of a chat session.
type Deps struct {
	Provider provider.Provider

	// Connect opens the tool server connection.
	Connect func(ctx context.Context) (tools.ToolExecutor, error)

	Console console.Console

	// Store archives replaced history. Nil discards it.
	Store transcript.Store
}

// Run connects to the tool server, runs one interactive session until the
// user exits and closes the connection on every exit path. Connection
// failures are returned as api.Error of kind connection_setup.
func Run(ctx context.Context, cfg config.Config, deps Deps) error {
	exec, err := deps.Connect(ctx)
	if err != nil {
		return api.NewConnectionSetupError(fmt.Sprintf("connecting to tool server %q", cfg.MCP.Name), err)
	}
	defer func() {
		if err := exec.Close(); err != nil {
			slog.Warn("failed to close tool server connection", "server", cfg.MCP.Name, "error", err)
		}
	}()

	mgr := NewManager(ConfigFrom(cfg), deps.Provider, exec, deps.Console, deps.Store)
	if err := mgr.LoadTools(ctx); err != nil {
		return api.NewConnectionSetupError(fmt.Sprintf("listing tools of server %q", cfg.MCP.Name), err)
	}

	sess := mgr.NewSession()
	defer mgr.CloseSession(ctx, sess)

	slog.Info("chat session started",
		"session", sess.ID,
		"provider", deps.Provider.Name(),
		"model", cfg.Model.Name,
		"server", cfg.MCP.Name,
	)
	return mgr.Loop(ctx, sess)
}
