// Package anyllm provides an llm.Provider backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, and others behind one API.
//
// Usage:
//
//	p, err := anyllm.New("gemini", "gemini-2.0-flash")
//	p, err := anyllm.NewGemini("gemini-2.0-flash", anyllmlib.WithAPIKey("..."))
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/voxhall/voxhall/pkg/provider/llm"
)

const defaultSystemPrompt = "You are a helpful voice assistant in a group call. " +
	"Reply briefly and conversationally; your answers are spoken aloud."

// Provider implements llm.Provider by wrapping github.com/mozilla-ai/any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a new Provider backed by the named LLM backend.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama".
// model is the specific model to use (e.g., "gemini-2.0-flash").
//
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). Without an API key option, the backend falls back to
// its environment variable (GEMINI_API_KEY, OPENAI_API_KEY, and so on).
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

// NewGemini creates a Provider backed by Google Gemini.
// Without options, it reads the GEMINI_API_KEY or GOOGLE_API_KEY environment variable.
func NewGemini(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("gemini", model, opts...)
}

// NewOpenAI creates a Provider backed by OpenAI.
// Without options, it reads the OPENAI_API_KEY environment variable.
func NewOpenAI(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("openai", model, opts...)
}

// createBackend creates the underlying any-llm-go provider for the given name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama", providerName)
	}
}

// Chat implements llm.Provider. Each input chunk is one user turn; the reply
// is streamed token by token and appended to the session history.
func (p *Provider) Chat(ctx context.Context, in <-chan string) (<-chan string, error) {
	out := make(chan string, 32)
	go func() {
		defer close(out)

		history := []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: defaultSystemPrompt},
		}
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-in:
				if !ok {
					return
				}
				history = append(history, anyllmlib.Message{
					Role:    anyllmlib.RoleUser,
					Content: text,
				})
				reply, ok := p.streamTurn(ctx, history, out)
				if !ok {
					return
				}
				history = append(history, anyllmlib.Message{
					Role:    anyllmlib.RoleAssistant,
					Content: reply,
				})
			}
		}
	}()
	return out, nil
}

// streamTurn streams one completion into out and returns the accumulated
// reply. The second return is false when the backend or the context ended the
// session.
func (p *Provider) streamTurn(ctx context.Context, history []anyllmlib.Message, out chan<- string) (string, bool) {
	chunks, errs := p.backend.CompletionStream(ctx, anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: history,
	})

	var reply strings.Builder
	for chunk := range chunks {
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		reply.WriteString(token)
		select {
		case out <- token:
		case <-ctx.Done():
			return reply.String(), false
		}
	}
	if err := <-errs; err != nil {
		return reply.String(), false
	}
	return reply.String(), true
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
