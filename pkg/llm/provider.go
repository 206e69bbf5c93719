// Package llm provides a unified interface for LLM providers and the
// single-call gateway used by the hedge factor pipelines.
package llm

import (
	"context"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role
	Content string
}

// Request represents a completion request to the LLM.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response represents the result of an LLM execution.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string // Actual model used (may differ from requested for auto-routing)
	Duration     time.Duration
}

// Provider is the core interface that all LLM backends must implement.
// Implementations are stateless per request and safe for concurrent use.
type Provider interface {
	// Execute sends a completion request and returns the response.
	Execute(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider identifier (e.g., "bedrock", "anthropic").
	Name() string

	// Model returns the configured model name.
	Model() string
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	APIKey  string
	BaseURL string // For custom endpoints, OpenRouter or Ollama
	Model   string
	Region  string // AWS region for Bedrock

	// Static AWS credentials for Bedrock. The default credential chain is
	// used when empty.
	AccessKeyID     string
	SecretAccessKey string

	// MaxRetries is passed to SDKs that retry on their own. Pipelines do not
	// retry model calls, so the default is 0.
	MaxRetries int
	Timeout    time.Duration
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		MaxRetries: 0,
		Timeout:    120 * time.Second,
	}
}

// defaultMaxTokens is used when a request does not set MaxTokens.
const defaultMaxTokens = 4096

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
