// Package openai provides an LLM provider backed by the OpenAI chat
// completions API. Each Chat session keeps its own conversation history; every
// input chunk becomes one user turn and streams one assistant reply.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/voxhall/voxhall/pkg/provider/llm"
)

const defaultSystemPrompt = "You are a helpful voice assistant in a group call. " +
	"Reply briefly and conversationally; your answers are spoken aloud."

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	systemPrompt string
	timeout      time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithSystemPrompt replaces the default assistant persona.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) {
		c.systemPrompt = prompt
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements llm.Provider using the OpenAI API.
type Provider struct {
	client       oai.Client
	model        string
	systemPrompt string
}

// New constructs a new OpenAI LLM Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{systemPrompt: defaultSystemPrompt}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:       oai.NewClient(reqOpts...),
		model:        model,
		systemPrompt: cfg.systemPrompt,
	}, nil
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, in <-chan string) (<-chan string, error) {
	out := make(chan string, 32)
	go func() {
		defer close(out)

		history := []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(p.systemPrompt),
		}
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-in:
				if !ok {
					return
				}
				history = append(history, oai.UserMessage(text))
				reply, ok := p.streamTurn(ctx, history, out)
				if !ok {
					return
				}
				history = append(history, oai.AssistantMessage(reply))
			}
		}
	}()
	return out, nil
}

// streamTurn streams one completion into out and returns the accumulated
// assistant reply. The second return is false when the stream or the context
// ended the session.
func (p *Provider) streamTurn(ctx context.Context, history []oai.ChatCompletionMessageParamUnion, out chan<- string) (string, bool) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: history,
	})
	defer stream.Close()

	var reply strings.Builder
	for stream.Next() {
		chunk := stream.Current()
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
	if err := stream.Err(); err != nil {
		return reply.String(), false
	}
	return reply.String(), true
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
