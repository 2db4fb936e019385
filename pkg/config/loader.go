package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, MCPCHAT_CONFIG env, ./config.yaml, /etc/mcpchat/config.yaml)
//  3. Environment variables, falling back to values from ./.env
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	dotenv, err := readDotEnv(".env")
	if err != nil {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	return load(configPath, envLookup(dotenv))
}

// lookupFunc resolves an environment variable by name.
type lookupFunc func(key string) string

// envLookup returns a lookup that prefers the process environment and
// falls back to the given .env values. The process environment is never
// modified.
func envLookup(dotenv map[string]string) lookupFunc {
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}
}

func load(configPath string, getenv lookupFunc) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath, getenv)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg, getenv)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// readDotEnv parses a .env file without exporting its values.
// A missing file yields an empty map.
func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return values, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. MCPCHAT_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/mcpchat/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string, getenv lookupFunc) string {
	if configPath != "" {
		return configPath
	}

	if envPath := getenv("MCPCHAT_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/mcpchat/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
// Values that fail to parse are ignored and the previous value is kept.
func applyEnvOverrides(cfg *Config, getenv lookupFunc) {
	// Chat model settings, named as in the .env files the client ships with.
	if v := getenv("LLM_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := getenv("LLM_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := getenv("LLM_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := getenv("LLM_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}

	// Tool server.
	if v := getenv("MCP_SERVER_URL"); v != "" {
		cfg.MCP.URL = v
	}
	if v := getenv("MCP_TRANSPORT"); v != "" {
		cfg.MCP.Transport = v
	}
	if fields := strings.Fields(getenv("MCP_SERVER_COMMAND")); len(fields) > 0 {
		cfg.MCP.Command = fields[0]
		cfg.MCP.Args = fields[1:]
	}

	// MCP_SERVER_HEADERS: JSON object of static request headers.
	if v := getenv("MCP_SERVER_HEADERS"); v != "" {
		headers, err := parseHeadersJSON(v)
		if err == nil && len(headers) > 0 {
			cfg.MCP.Headers = headers
		}
	}

	// Session behaviour.
	if v := getenv("MCPCHAT_COMPACTION_THRESHOLD"); v != "" {
		if n, err := cast.ToIntE(v); err == nil {
			cfg.Session.CompactionThreshold = n
		}
	}
	if v := getenv("MCPCHAT_TOOL_TIMEOUT"); v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			cfg.Session.ToolTimeout = d
		}
	}
	if v := getenv("MCPCHAT_MODEL_TIMEOUT"); v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			cfg.Session.ModelTimeout = d
		}
	}
	if v := getenv("MCPCHAT_MAX_PARALLEL_TOOLS"); v != "" {
		if n, err := cast.ToIntE(v); err == nil {
			cfg.Session.MaxParallelTools = n
		}
	}
	if v := getenv("MCPCHAT_VALIDATE_ARGUMENTS"); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			cfg.Session.ValidateArguments = b
		}
	}

	// Transcript archive.
	if v := getenv("MCPCHAT_TRANSCRIPT"); v != "" {
		cfg.Transcript.Type = v
	}
	if v := getenv("MCPCHAT_TRANSCRIPT_DSN"); v != "" {
		cfg.Transcript.Postgres.DSN = v
	}

	// Logging.
	if v := getenv("MCPCHAT_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := getenv("MCPCHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := getenv("MCPCHAT_LOG_CONSOLE"); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			cfg.Logging.Console = b
		}
	}
	if v := getenv("MCPCHAT_DEBUG"); v != "" {
		cfg.Logging.Debug = v
	}

	// Metrics.
	if v := getenv("MCPCHAT_METRICS_ADDR"); v != "" {
		cfg.Observability.Metrics.Addr = v
		cfg.Observability.Metrics.Enabled = true
	}
}

// parseHeadersJSON parses a JSON object of header name to value.
func parseHeadersJSON(jsonStr string) (map[string]string, error) {
	var headers map[string]string
	if err := json.Unmarshal([]byte(jsonStr), &headers); err != nil {
		return nil, fmt.Errorf("parsing MCP headers JSON: %w", err)
	}
	return headers, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		path  string
		file  string
		value *string
	}{
		{"model.api_key_file", cfg.Model.APIKeyFile, &cfg.Model.APIKey},
		{"transcript.postgres.dsn_file", cfg.Transcript.Postgres.DSNFile, &cfg.Transcript.Postgres.DSN},
		{"mcp.auth.client_id_file", cfg.MCP.Auth.ClientIDFile, &cfg.MCP.Auth.ClientID},
		{"mcp.auth.client_secret_file", cfg.MCP.Auth.ClientSecretFile, &cfg.MCP.Auth.ClientSecret},
		{"mcp.auth.signing_key_file", cfg.MCP.Auth.SigningKeyFile, &cfg.MCP.Auth.SigningKey},
	}

	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.path, err)
		}
		*ref.value = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
