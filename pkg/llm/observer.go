package llm

import (
	"context"
	"log/slog"
	"time"
)

// LLMObserver receives notifications about LLM calls for observability.
//
// The observer is called after every gateway call, whether successful or
// failed. Implementations should return quickly.
type LLMObserver interface {
	OnLLMCall(ctx context.Context, event LLMCallEvent)
}

// LLMCallEvent contains all information about an LLM call.
type LLMCallEvent struct {
	// Provider name (e.g., "bedrock", "anthropic")
	Provider string

	// Model used for the call (may differ from requested for auto-routing)
	Model string

	Request LLMCallRequest

	// Response details (nil if the call failed)
	Response *LLMCallResponse

	// Error if the call failed (nil on success)
	Error error

	Duration time.Duration
}

// LLMCallRequest contains details about the request sent to the LLM.
type LLMCallRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64

	// PromptSize is the user prompt length in bytes.
	PromptSize int
}

// LLMCallResponse contains the response from the LLM.
type LLMCallResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int

	// Finish reason ("stop", "length", "end_turn", etc.)
	FinishReason string
}

// ObserverFunc is a convenience type for using a function as an LLMObserver.
type ObserverFunc func(ctx context.Context, event LLMCallEvent)

// OnLLMCall implements LLMObserver.
func (f ObserverFunc) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	f(ctx, event)
}

// MultiObserver combines multiple observers into one.
type MultiObserver struct {
	observers []LLMObserver
}

// NewMultiObserver creates an observer that dispatches to multiple observers.
func NewMultiObserver(observers ...LLMObserver) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// OnLLMCall dispatches the event to all registered observers.
func (m *MultiObserver) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	for _, obs := range m.observers {
		obs.OnLLMCall(ctx, event)
	}
}

// Add adds an observer to the multi-observer.
func (m *MultiObserver) Add(obs LLMObserver) {
	m.observers = append(m.observers, obs)
}

// LogObserver logs each call at debug level, or warn level on failure.
type LogObserver struct {
	Logger *slog.Logger
}

// NewLogObserver creates a LogObserver writing to l.
func NewLogObserver(l *slog.Logger) *LogObserver {
	return &LogObserver{Logger: l}
}

// OnLLMCall implements LLMObserver.
func (o *LogObserver) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	attrs := []any{
		"provider", event.Provider,
		"model", event.Model,
		"duration", event.Duration.Round(time.Millisecond),
		"prompt_bytes", event.Request.PromptSize,
	}
	if event.Error != nil {
		o.Logger.WarnContext(ctx, "llm call failed", append(attrs, "error", event.Error)...)
		return
	}
	if event.Response != nil {
		attrs = append(attrs,
			"input_tokens", event.Response.InputTokens,
			"output_tokens", event.Response.OutputTokens,
			"finish_reason", event.Response.FinishReason,
		)
	}
	o.Logger.DebugContext(ctx, "llm call", attrs...)
}
