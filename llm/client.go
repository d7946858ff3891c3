package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/MBemera/Radsim-sub001/errors"
	"github.com/MBemera/Radsim-sub001/session"
	"github.com/MBemera/Radsim-sub001/tools"
)

// Usage is the token cost of one API call, fed to the budget guard.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Client is the interface for interacting with a Large Language Model.
type Client interface {
	Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, Usage, error)
}

// Factory builds a client for one (provider, model) pair.
type Factory func(ctx context.Context, model string) (Client, error)

// Registry lazily constructs and caches clients per (provider, model) pair
// so the router can retry across arbitrary chain entries.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	clients   map[string]Client
}

// NewRegistry creates a registry with every built-in provider registered.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		clients:   make(map[string]Client),
	}
	r.RegisterProvider("anthropic", func(ctx context.Context, model string) (Client, error) {
		return NewAnthropicClient(ctx, model)
	})
	r.RegisterProvider("openai", func(ctx context.Context, model string) (Client, error) {
		return NewOpenAIClient(ctx, model)
	})
	r.RegisterProvider("gemini", func(ctx context.Context, model string) (Client, error) {
		return NewGeminiClient(ctx, model)
	})
	r.RegisterProvider("bedrock", func(ctx context.Context, model string) (Client, error) {
		return NewBedrockClient(ctx, model)
	})
	r.RegisterProvider("mock", func(ctx context.Context, model string) (Client, error) {
		return &MockClient{}, nil
	})
	return r
}

// RegisterProvider adds or replaces a provider factory.
func (r *Registry) RegisterProvider(provider string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = factory
}

// Client returns the cached client for a pair, constructing it on first use.
func (r *Registry) Client(ctx context.Context, provider, model string) (Client, error) {
	key := provider + "/" + model

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[key]; ok {
		return c, nil
	}
	factory, ok := r.factories[provider]
	if !ok {
		return nil, errors.NewKind(errors.KindProvider, "unknown provider '%s'", provider)
	}
	c, err := factory(ctx, model)
	if err != nil {
		return nil, errors.WithKind(errors.KindProvider, err)
	}
	r.clients[key] = c
	return c, nil
}

// MockClient is a canned-response client for tests and offline runs. Queued
// responses are returned in order; when the queue is empty it parrots the
// last user message.
type MockClient struct {
	Responses []*session.Message
	Calls     int
	Err       error
}

func (m *MockClient) Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, Usage, error) {
	m.Calls++
	if m.Err != nil {
		return nil, Usage{}, m.Err
	}
	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, Usage{InputTokens: 10, OutputTokens: 5}, nil
	}

	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return &session.Message{
		Role:    "assistant",
		Content: fmt.Sprintf("I am a mock LLM. You said: '%s'.", last),
	}, Usage{InputTokens: 10, OutputTokens: 5}, nil
}
