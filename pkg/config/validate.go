package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// model.provider must be a known value.
	switch c.Model.Provider {
	case "openaicompat", "openai":
		// valid
	default:
		errs = append(errs, fmt.Errorf("model.provider must be \"openaicompat\" or \"openai\", got %q", c.Model.Provider))
	}
	if c.Model.Name == "" {
		errs = append(errs, fmt.Errorf("model.name is required"))
	}
	if c.Model.BaseURL == "" {
		errs = append(errs, fmt.Errorf("model.base_url is required"))
	}

	// mcp.transport decides which of url/command is required.
	switch c.MCP.Transport {
	case "streamable-http", "sse":
		if c.MCP.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.url is required for transport %q", c.MCP.Transport))
		}
	case "stdio":
		if c.MCP.Command == "" {
			errs = append(errs, fmt.Errorf("mcp.command is required for transport \"stdio\""))
		}
	default:
		errs = append(errs, fmt.Errorf("mcp.transport must be \"streamable-http\", \"sse\", or \"stdio\", got %q", c.MCP.Transport))
	}

	switch c.MCP.Auth.Type {
	case "":
		// no auth
	case "oauth_client_credentials":
		if c.MCP.Auth.TokenURL == "" {
			errs = append(errs, fmt.Errorf("mcp.auth.token_url is required for oauth_client_credentials"))
		}
		if c.MCP.Auth.ClientID == "" && c.MCP.Auth.ClientIDFile == "" {
			errs = append(errs, fmt.Errorf("mcp.auth.client_id or mcp.auth.client_id_file is required for oauth_client_credentials"))
		}
	case "jwt":
		if c.MCP.Auth.SigningKey == "" && c.MCP.Auth.SigningKeyFile == "" {
			errs = append(errs, fmt.Errorf("mcp.auth.signing_key or mcp.auth.signing_key_file is required for jwt"))
		}
		if c.MCP.Auth.TokenTTL <= 0 {
			errs = append(errs, fmt.Errorf("mcp.auth.token_ttl must be > 0, got %s", c.MCP.Auth.TokenTTL))
		}
	default:
		errs = append(errs, fmt.Errorf("mcp.auth.type must be empty, \"oauth_client_credentials\", or \"jwt\", got %q", c.MCP.Auth.Type))
	}
	if c.MCP.Transport == "stdio" && c.MCP.Auth.Type != "" {
		errs = append(errs, fmt.Errorf("mcp.auth is not supported for transport \"stdio\""))
	}

	// session limits.
	if c.Session.CompactionThreshold <= 0 {
		errs = append(errs, fmt.Errorf("session.compaction_threshold must be > 0, got %d", c.Session.CompactionThreshold))
	}
	if c.Session.ToolTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.tool_timeout must be > 0, got %s", c.Session.ToolTimeout))
	}
	if c.Session.ModelTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.model_timeout must be > 0, got %s", c.Session.ModelTimeout))
	}
	if c.Session.MaxParallelTools < 0 {
		errs = append(errs, fmt.Errorf("session.max_parallel_tools must be >= 0, got %d", c.Session.MaxParallelTools))
	}
	if c.Session.MaxToolRounds < 1 {
		errs = append(errs, fmt.Errorf("session.max_tool_rounds must be >= 1, got %d", c.Session.MaxToolRounds))
	}
	if c.Session.SummaryPrompt == "" {
		errs = append(errs, fmt.Errorf("session.summary_prompt must not be empty"))
	}

	// transcript.type must be a known value.
	switch c.Transcript.Type {
	case "none", "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("transcript.type must be \"none\", \"memory\", or \"postgres\", got %q", c.Transcript.Type))
	}

	// If transcript.type is "postgres", DSN or DSNFile must be set.
	if c.Transcript.Type == "postgres" {
		if c.Transcript.Postgres.DSN == "" && c.Transcript.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("transcript.postgres.dsn or transcript.postgres.dsn_file is required when transcript.type is \"postgres\""))
		}
	}

	if c.Logging.File == "" && !c.Logging.Console {
		errs = append(errs, fmt.Errorf("logging needs a file or console output"))
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("observability.metrics.addr is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}
