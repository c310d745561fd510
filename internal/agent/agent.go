// Package agent implements the synthetic participants that live inside rooms:
// the [Agent] processing contract, the built-in echo and conversational
// agents, the [Registry] that builds them by name, and the [Runner] that
// adapts an agent onto a room's envelope queues.
package agent

import (
	"context"
	"fmt"

	"github.com/voxhall/voxhall/pkg/audio"
	"github.com/voxhall/voxhall/pkg/provider/llm"
	"github.com/voxhall/voxhall/pkg/provider/stt"
	"github.com/voxhall/voxhall/pkg/provider/tts"
)

// Agent transforms an inbound audio stream into an outbound one. The returned
// channel is closed when the inbound stream closes and the agent has flushed
// everything it is going to emit, or when ctx is cancelled. An agent may emit
// nothing at all; it must never block the inbound stream indefinitely.
type Agent interface {
	ProcessAudioStream(ctx context.Context, in <-chan audio.Frame) (<-chan audio.Frame, error)
}

// ─── Echo ─────────────────────────────────────────────────────────────────────

// Echo returns every inbound frame unchanged. It exists as the zero-dependency
// smoke test of the full ingest → room → agent → fan-out loop.
type Echo struct{}

// NewEcho creates an echo agent.
func NewEcho() *Echo { return &Echo{} }

// ProcessAudioStream copies frames from in to the returned channel.
func (e *Echo) ProcessAudioStream(ctx context.Context, in <-chan audio.Frame) (<-chan audio.Frame, error) {
	out := make(chan audio.Frame, 32)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-in:
				if !ok {
					return
				}
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

// ─── Conversational ───────────────────────────────────────────────────────────

// Conversational chains the three streaming stages of a spoken dialogue:
// transcription, inference, and synthesis. Each stage runs concurrently and
// closes its output when its input closes, so the whole pipeline drains
// end-to-end when the room stops feeding it.
type Conversational struct {
	stt stt.Provider
	llm llm.Provider
	tts tts.Provider
}

// NewConversational wires the given providers into a pipeline agent.
func NewConversational(s stt.Provider, l llm.Provider, t tts.Provider) *Conversational {
	return &Conversational{stt: s, llm: l, tts: t}
}

// ProcessAudioStream starts all three stages and returns the synthesis output.
func (c *Conversational) ProcessAudioStream(ctx context.Context, in <-chan audio.Frame) (<-chan audio.Frame, error) {
	text, err := c.stt.Transcribe(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("agent: start transcription: %w", err)
	}
	replies, err := c.llm.Chat(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("agent: start chat: %w", err)
	}
	out, err := c.tts.Synthesize(ctx, replies)
	if err != nil {
		return nil, fmt.Errorf("agent: start synthesis: %w", err)
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ Agent = (*Echo)(nil)
	_ Agent = (*Conversational)(nil)
)
