package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GenerateOptions are the sampling settings for a single gateway call.
type GenerateOptions struct {
	Temperature     float64
	MaxOutputTokens int
}

// ErrNoProvider is returned when a Gateway is built without a provider.
var ErrNoProvider = errors.New("llm: no provider configured")

// Gateway sends one prompt to one provider and returns the text reply.
// It performs no retries and keeps no conversation state between calls.
type Gateway struct {
	provider     Provider
	systemPrompt string
	observer     LLMObserver
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithSystemPrompt sets a system message sent before every prompt.
func WithSystemPrompt(s string) GatewayOption {
	return func(g *Gateway) { g.systemPrompt = s }
}

// WithObserver sets the observer notified after every call.
func WithObserver(o LLMObserver) GatewayOption {
	return func(g *Gateway) { g.observer = o }
}

// NewGateway wraps provider in a Gateway.
func NewGateway(provider Provider, opts ...GatewayOption) (*Gateway, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	g := &Gateway{provider: provider}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate sends prompt as a single user message and returns the raw reply.
func (g *Gateway) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var messages []Message
	if g.systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: g.systemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})

	req := Request{
		Messages:    messages,
		MaxTokens:   opts.MaxOutputTokens,
		Temperature: opts.Temperature,
	}

	start := time.Now()
	resp, err := g.provider.Execute(ctx, req)
	elapsed := time.Since(start)

	g.notify(ctx, req, len(prompt), resp, err, elapsed)

	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("%s: empty response", g.provider.Name())
	}
	return resp.Content, nil
}

func (g *Gateway) notify(ctx context.Context, req Request, promptSize int, resp *Response, err error, elapsed time.Duration) {
	if g.observer == nil {
		return
	}
	event := LLMCallEvent{
		Provider: g.provider.Name(),
		Model:    g.provider.Model(),
		Request: LLMCallRequest{
			Messages:    req.Messages,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			PromptSize:  promptSize,
		},
		Error:    err,
		Duration: elapsed,
	}
	if resp != nil {
		if resp.Model != "" {
			event.Model = resp.Model
		}
		event.Response = &LLMCallResponse{
			Content:      resp.Content,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			FinishReason: resp.FinishReason,
		}
	}
	g.observer.OnLLMCall(ctx, event)
}

// Name returns the underlying provider name.
func (g *Gateway) Name() string {
	return g.provider.Name()
}

// Model returns the underlying provider model.
func (g *Gateway) Model() string {
	return g.provider.Model()
}
