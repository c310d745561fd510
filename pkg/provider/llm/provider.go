// Package llm defines the Provider interface for the language-model pipeline
// stage.
//
// An LLM provider transforms a lazy stream of utterance chunks into a lazy
// stream of response tokens. How input chunks are grouped into conversation
// turns is implementation-defined (the mock is one-in / one-out; API-backed
// providers may batch); the stage owns its conversation history for the
// lifetime of one Chat session.
//
// Implementations must be safe for concurrent use; each Chat call opens an
// independent session with its own history.
package llm

import "context"

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Chat consumes utterance chunks from in and returns a read-only channel
	// that emits response tokens. The returned channel is closed by the
	// implementation when in closes or when ctx is cancelled; implementations
	// must not swallow cancellation.
	//
	// Returns a non-nil error only when the session cannot be started.
	// Callers must drain the channel to avoid goroutine leaks.
	Chat(ctx context.Context, in <-chan string) (<-chan string, error)
}
