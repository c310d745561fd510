// Package stt defines the Provider interface for Speech-to-Text pipeline stages.
//
// An STT provider transforms a lazy stream of audio frames into a lazy stream
// of text segments. Segments need not map one-to-one onto input frames; a
// provider may accumulate several seconds of audio before emitting, and may
// emit partial segments. Consumers treat every emitted string as a new
// utterance chunk.
//
// Implementations must be safe for concurrent use; each Transcribe call opens
// an independent session.
package stt

import (
	"context"

	"github.com/voxhall/voxhall/pkg/audio"
)

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe consumes audio frames from in and returns a read-only channel
	// that emits recognised text segments. The returned channel is closed by
	// the implementation when in closes (end-of-input triggers end-of-output)
	// or when ctx is cancelled; implementations must not swallow cancellation.
	//
	// Returns a non-nil error only when the session cannot be started (e.g.
	// invalid credentials or an unreachable service). Callers must drain the
	// channel to avoid leaking the provider's internal goroutines.
	Transcribe(ctx context.Context, in <-chan audio.Frame) (<-chan string, error)
}
