// Package config provides unified configuration for the mcpchat client.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. .env file in the working directory
//  4. Environment variable overrides (LLM_*, MCP_*, MCPCHAT_*)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
//
// The resulting Config is built once at startup and passed by value to the
// constructors that need it.
package config

import "time"

// Config holds all configuration for the mcpchat client.
type Config struct {
	Model         ModelConfig         `yaml:"model"`
	MCP           MCPServerConfig     `yaml:"mcp"`
	Session       SessionConfig       `yaml:"session"`
	Console       ConsoleConfig       `yaml:"console"`
	Transcript    TranscriptConfig    `yaml:"transcript"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ModelConfig holds chat model backend settings.
type ModelConfig struct {
	Provider   string            `yaml:"provider"`     // "openaicompat" or "openai", default: "openaicompat"
	Name       string            `yaml:"name"`         // default: "gpt-3.5-turbo"
	APIKey     string            `yaml:"api_key"`      // optional
	APIKeyFile string            `yaml:"api_key_file"` // _file variant for api_key
	BaseURL    string            `yaml:"base_url"`     // default: "https://api.openai.com/v1"
	Aliases    map[string]string `yaml:"aliases"`      // requested name -> backend name
}

// MCPServerConfig describes the tool server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name"`      // default: "default"
	Transport string            `yaml:"transport"` // "streamable-http", "sse" or "stdio"
	URL       string            `yaml:"url"`       // for HTTP transports, default: "http://localhost:8000/mcp"
	Command   string            `yaml:"command"`   // for stdio
	Args      []string          `yaml:"args"`      // for stdio
	Env       map[string]string `yaml:"env"`       // extra environment for stdio
	Headers   map[string]string `yaml:"headers"`
	Auth      MCPAuthConfig     `yaml:"auth"`
}

// MCPAuthConfig holds authentication settings for HTTP tool servers.
type MCPAuthConfig struct {
	Type string `yaml:"type"` // "", "oauth_client_credentials" or "jwt"

	// oauth_client_credentials
	TokenURL         string   `yaml:"token_url"`
	ClientID         string   `yaml:"client_id"`
	ClientIDFile     string   `yaml:"client_id_file"`
	ClientSecret     string   `yaml:"client_secret"`
	ClientSecretFile string   `yaml:"client_secret_file"`
	Scopes           []string `yaml:"scopes"`

	// jwt
	SigningKey     string        `yaml:"signing_key"`
	SigningKeyFile string        `yaml:"signing_key_file"`
	Issuer         string        `yaml:"issuer"`
	Subject        string        `yaml:"subject"`
	Audience       string        `yaml:"audience"`
	TokenTTL       time.Duration `yaml:"token_ttl"` // default: 5m
}

// SessionConfig holds conversation behaviour settings.
type SessionConfig struct {
	CompactionThreshold int           `yaml:"compaction_threshold"` // default: 20
	SummaryPrompt       string        `yaml:"summary_prompt"`
	ToolTimeout         time.Duration `yaml:"tool_timeout"`       // default: 60s
	ModelTimeout        time.Duration `yaml:"model_timeout"`      // default: 120s
	MaxParallelTools    int           `yaml:"max_parallel_tools"` // 0 = unbounded
	MaxToolRounds       int           `yaml:"max_tool_rounds"`    // default: 1
	AllowedTools        []string      `yaml:"allowed_tools"`      // empty = all
	ValidateArguments   bool          `yaml:"validate_arguments"` // default: true
}

// ConsoleConfig holds interactive terminal settings.
type ConsoleConfig struct {
	Prompt      string `yaml:"prompt"`       // default: "You: "
	HistoryFile string `yaml:"history_file"` // default: "~/.mcpchat_history", empty disables
}

// TranscriptConfig holds settings for archiving replaced history.
type TranscriptConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // sessions kept by the memory store, default: 100
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 4
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	File    string `yaml:"file"`    // default: "logs/clients.log"
	Level   string `yaml:"level"`   // default: "INFO"
	Console bool   `yaml:"console"` // also log to stderr, default: true
	Debug   string `yaml:"debug"`   // comma-separated debug categories
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Addr    string `yaml:"addr"`    // default: "127.0.0.1:9464"
	Path    string `yaml:"path"`    // default: "/metrics"
}

// DefaultSummaryPrompt is the instruction sent ahead of the rendered
// history when compacting.
const DefaultSummaryPrompt = "Summarize the following conversation between the user and the assistant, " +
	"including any important context or information that may be relevant for future interactions under 100 words:"

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Model: ModelConfig{
			Provider: "openaicompat",
			Name:     "gpt-3.5-turbo",
			BaseURL:  "https://api.openai.com/v1",
		},
		MCP: MCPServerConfig{
			Name:      "default",
			Transport: "streamable-http",
			URL:       "http://localhost:8000/mcp",
			Auth: MCPAuthConfig{
				TokenTTL: 5 * time.Minute,
			},
		},
		Session: SessionConfig{
			CompactionThreshold: 20,
			SummaryPrompt:       DefaultSummaryPrompt,
			ToolTimeout:         60 * time.Second,
			ModelTimeout:        120 * time.Second,
			MaxToolRounds:       1,
			ValidateArguments:   true,
		},
		Console: ConsoleConfig{
			Prompt:      "You: ",
			HistoryFile: "~/.mcpchat_history",
		},
		Transcript: TranscriptConfig{
			Type:    "memory",
			MaxSize: 100,
			Postgres: PostgresConfig{
				MaxConns:       4,
				MigrateOnStart: true,
			},
		},
		Logging: LoggingConfig{
			File:    "logs/clients.log",
			Level:   "INFO",
			Console: true,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Addr: "127.0.0.1:9464",
				Path: "/metrics",
			},
		},
	}
}
