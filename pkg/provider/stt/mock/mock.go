// Package mock provides a deterministic stt.Provider for tests and for the
// built-in mock conversation agent. It recognises nothing: it emits the fixed
// segment "Hello world" every time 16 KiB of audio has accumulated, which
// gives downstream stages predictable input without any network dependency.
package mock

import (
	"context"
	"sync"

	"github.com/voxhall/voxhall/pkg/audio"
	"github.com/voxhall/voxhall/pkg/provider/stt"
)

// triggerBytes is the amount of accumulated audio that produces one segment.
const triggerBytes = 16_000

// segment is the fixed recognition result.
const segment = "Hello world"

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// TranscribeCalls counts Transcribe invocations.
	TranscribeCalls int
}

// New creates a mock STT provider.
func New() *Provider { return &Provider{} }

// Transcribe implements stt.Provider. It emits "Hello world" once per 16 KiB
// of input audio and closes the output when in closes.
func (p *Provider) Transcribe(ctx context.Context, in <-chan audio.Frame) (<-chan string, error) {
	p.mu.Lock()
	p.TranscribeCalls++
	p.mu.Unlock()

	out := make(chan string, 16)
	go func() {
		defer close(out)
		var accumulated int
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-in:
				if !ok {
					return
				}
				accumulated += len(f.Data)
				for accumulated >= triggerBytes {
					accumulated -= triggerBytes
					select {
					case out <- segment:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// Reset clears the call counter. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = 0
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
