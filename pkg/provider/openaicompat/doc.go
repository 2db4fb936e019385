// Package openaicompat implements provider.Provider for any
// OpenAI-compatible Chat Completions backend (OpenAI, vLLM, LiteLLM,
// Ollama). It handles request serialization, response parsing, and error
// mapping over plain HTTP.
package openaicompat
