package openaicompat

import "time"

// Config holds configuration for the OpenAI-compatible provider.
type Config struct {
	// BaseURL is the API root including the version segment
	// (e.g., "https://api.openai.com/v1", "http://localhost:4000/v1").
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration

	// Aliases maps requested model names to backend model identifiers.
	// For example: {"fast": "gpt-4o-mini"}. Unknown names pass through.
	Aliases map[string]string
}
