package mcp

import (
	"time"

	"github.com/rhuss/mcpchat/pkg/config"
)

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name is the logical name for this server, used in logs and errors.
	Name string

	// Transport is "streamable-http" (default), "sse" or "stdio".
	Transport string

	// URL is the MCP endpoint for HTTP transports.
	URL string

	// Command, Args and Env start the server process for stdio.
	Command string
	Args    []string
	Env     map[string]string

	// Headers contains additional HTTP headers to send with requests.
	Headers map[string]string

	// Auth configures a dynamic bearer token for HTTP transports.
	Auth AuthConfig

	// ValidateArguments checks call arguments against the tool's input
	// schema before contacting the server.
	ValidateArguments bool
}

// AuthConfig selects and configures an AuthProvider.
type AuthConfig struct {
	// Type is "", "oauth_client_credentials" or "jwt".
	Type string

	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	SigningKey string
	Issuer     string
	Subject    string
	Audience   string
	TokenTTL   time.Duration
}

// FromConfig builds a ServerConfig from the application configuration.
// Secret file references must already be resolved.
func FromConfig(mcfg config.MCPServerConfig, scfg config.SessionConfig) ServerConfig {
	return ServerConfig{
		Name:      mcfg.Name,
		Transport: mcfg.Transport,
		URL:       mcfg.URL,
		Command:   mcfg.Command,
		Args:      mcfg.Args,
		Env:       mcfg.Env,
		Headers:   mcfg.Headers,
		Auth: AuthConfig{
			Type:         mcfg.Auth.Type,
			TokenURL:     mcfg.Auth.TokenURL,
			ClientID:     mcfg.Auth.ClientID,
			ClientSecret: mcfg.Auth.ClientSecret,
			Scopes:       mcfg.Auth.Scopes,
			SigningKey:   mcfg.Auth.SigningKey,
			Issuer:       mcfg.Auth.Issuer,
			Subject:      mcfg.Auth.Subject,
			Audience:     mcfg.Auth.Audience,
			TokenTTL:     mcfg.Auth.TokenTTL,
		},
		ValidateArguments: scfg.ValidateArguments,
	}
}
