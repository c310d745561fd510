// Package mock provides a deterministic tts.Provider for tests and for the
// built-in mock conversation agent. Every sentence of input text yields five
// frames of silence, so downstream behaviour can be asserted byte for byte.
package mock

import (
	"context"
	"sync"

	"github.com/voxhall/voxhall/pkg/audio"
	"github.com/voxhall/voxhall/pkg/provider/tts"
)

// framesPerChunk is how many silence frames each synthesised sentence yields.
const framesPerChunk = 5

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// SynthesizeCalls counts Synthesize invocations.
	SynthesizeCalls int

	// Texts records every sentence synthesised across sessions, in order.
	Texts []string
}

// New creates a mock TTS provider.
func New() *Provider { return &Provider{} }

// Synthesize implements tts.Provider. Input is buffered to sentence
// boundaries; each sentence produces five 320-byte silence frames.
func (p *Provider) Synthesize(ctx context.Context, in <-chan string) (<-chan audio.Frame, error) {
	p.mu.Lock()
	p.SynthesizeCalls++
	p.mu.Unlock()

	out := make(chan audio.Frame, 64)
	go func() {
		defer close(out)
		framer := tts.NewFramer()
		for sentence := range tts.Sentences(ctx, in) {
			p.mu.Lock()
			p.Texts = append(p.Texts, sentence)
			p.mu.Unlock()

			silence := make([]byte, framesPerChunk*audio.SynthFrameBytes)
			for _, f := range framer.Frames(silence) {
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// TextCount returns the number of synthesised sentences. Thread-safe.
func (p *Provider) TextCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Texts)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = 0
	p.Texts = nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
