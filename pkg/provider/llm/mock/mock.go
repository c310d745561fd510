// Package mock provides a deterministic llm.Provider for tests and for the
// built-in mock conversation agent. Each input chunk produces the reply
// "I heard you say {text}. That is interesting.", streamed word by word the
// way a real completion API would.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/voxhall/voxhall/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// ChatCalls counts Chat invocations.
	ChatCalls int

	// Prompts records every input chunk received across sessions, in order.
	Prompts []string
}

// New creates a mock LLM provider.
func New() *Provider { return &Provider{} }

// Chat implements llm.Provider. One reply per input chunk, token per word.
func (p *Provider) Chat(ctx context.Context, in <-chan string) (<-chan string, error) {
	p.mu.Lock()
	p.ChatCalls++
	p.mu.Unlock()

	out := make(chan string, 32)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-in:
				if !ok {
					return
				}
				p.mu.Lock()
				p.Prompts = append(p.Prompts, text)
				p.mu.Unlock()

				reply := "I heard you say " + text + ". That is interesting."
				words := strings.Fields(reply)
				for i, w := range words {
					token := w
					if i < len(words)-1 {
						token += " "
					}
					select {
					case out <- token:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// PromptCount returns the number of recorded prompts. Thread-safe.
func (p *Provider) PromptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Prompts)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ChatCalls = 0
	p.Prompts = nil
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
