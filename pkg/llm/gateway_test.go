package llm

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	resp    *Response
	err     error
	lastReq Request
	calls   int
}

func (f *fakeProvider) Execute(_ context.Context, req Request) (*Response, error) {
	f.calls++
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func TestNewGateway_NilProvider(t *testing.T) {
	if _, err := NewGateway(nil); !errors.Is(err, ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
}

func TestGateway_Generate(t *testing.T) {
	p := &fakeProvider{resp: &Response{Content: `{"ok":true}`}}
	g, err := NewGateway(p)
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}

	got, err := g.Generate(context.Background(), "hello", GenerateOptions{Temperature: 0.7, MaxOutputTokens: 512})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("Generate() = %q", got)
	}

	if len(p.lastReq.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(p.lastReq.Messages))
	}
	if p.lastReq.Messages[0].Role != RoleUser || p.lastReq.Messages[0].Content != "hello" {
		t.Errorf("unexpected message %+v", p.lastReq.Messages[0])
	}
	if p.lastReq.MaxTokens != 512 || p.lastReq.Temperature != 0.7 {
		t.Errorf("options not forwarded: %+v", p.lastReq)
	}
}

func TestGateway_SystemPrompt(t *testing.T) {
	p := &fakeProvider{resp: &Response{Content: "x"}}
	g, _ := NewGateway(p, WithSystemPrompt("be terse"))

	if _, err := g.Generate(context.Background(), "hi", GenerateOptions{}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(p.lastReq.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(p.lastReq.Messages))
	}
	if p.lastReq.Messages[0].Role != RoleSystem || p.lastReq.Messages[0].Content != "be terse" {
		t.Errorf("unexpected system message %+v", p.lastReq.Messages[0])
	}
}

func TestGateway_ErrorIsNotRetried(t *testing.T) {
	boom := errors.New("connection refused")
	p := &fakeProvider{err: boom}
	g, _ := NewGateway(p)

	_, err := g.Generate(context.Background(), "hi", GenerateOptions{})
	if !errors.Is(err, boom) {
		t.Errorf("expected provider error, got %v", err)
	}
	if p.calls != 1 {
		t.Errorf("expected exactly one call, got %d", p.calls)
	}
}

func TestGateway_NilResponse(t *testing.T) {
	g, _ := NewGateway(&fakeProvider{})
	if _, err := g.Generate(context.Background(), "hi", GenerateOptions{}); err == nil {
		t.Error("expected error for nil response")
	}
}

func TestGateway_Observer(t *testing.T) {
	var events []LLMCallEvent
	obs := ObserverFunc(func(_ context.Context, e LLMCallEvent) {
		events = append(events, e)
	})

	p := &fakeProvider{resp: &Response{
		Content:      "reply",
		FinishReason: "stop",
		Model:        "routed-model",
		Usage:        Usage{InputTokens: 10, OutputTokens: 3},
	}}
	g, _ := NewGateway(p, WithObserver(NewMultiObserver(obs)))

	if _, err := g.Generate(context.Background(), "prompt", GenerateOptions{MaxOutputTokens: 64}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Provider != "fake" || e.Model != "routed-model" {
		t.Errorf("unexpected provider/model %q/%q", e.Provider, e.Model)
	}
	if e.Request.PromptSize != len("prompt") || e.Request.MaxTokens != 64 {
		t.Errorf("unexpected request %+v", e.Request)
	}
	if e.Response == nil || e.Response.InputTokens != 10 || e.Response.OutputTokens != 3 {
		t.Errorf("unexpected response %+v", e.Response)
	}

	p.err = errors.New("boom")
	p.resp = nil
	_, _ = g.Generate(context.Background(), "prompt", GenerateOptions{})
	if len(events) != 2 || events[1].Error == nil || events[1].Response != nil {
		t.Errorf("expected failure event, got %+v", events)
	}
}

func TestGateway_NameModel(t *testing.T) {
	g, _ := NewGateway(&fakeProvider{})
	if g.Name() != "fake" || g.Model() != "fake-model" {
		t.Errorf("Name/Model = %q/%q", g.Name(), g.Model())
	}
}
