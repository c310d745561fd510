// Package tts defines the Provider interface for Text-to-Speech pipeline
// stages, plus the sentence buffering and PCM framing helpers shared by
// implementations.
//
// A TTS provider transforms a lazy stream of text fragments into a lazy
// stream of audio frames. Implementations buffer fragments until a sentence
// boundary (or end of input) before synthesising, then chunk the resulting
// PCM into fixed-size frames so downstream playback paces naturally.
//
// Implementations must be safe for concurrent use; each Synthesize call opens
// an independent session.
package tts

import (
	"context"
	"time"

	"github.com/voxhall/voxhall/pkg/audio"
)

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize consumes text fragments from in and returns a read-only
	// channel that emits synthesised audio frames: raw little-endian int16
	// PCM at 16 kHz mono, chunked into [audio.SynthFrameBytes] slices. The
	// returned channel is closed by the implementation when in closes or when
	// ctx is cancelled; implementations must not swallow cancellation.
	//
	// Returns a non-nil error only when the session cannot be started.
	// Callers must drain the channel to avoid goroutine leaks.
	Synthesize(ctx context.Context, in <-chan string) (<-chan audio.Frame, error)
}

// Sentences accumulates text fragments from in into sentence-sized chunks and
// emits each chunk as soon as its boundary is seen, for lower synthesis
// latency. A boundary is a newline, or '.', '!', '?' followed by whitespace or
// sitting at the end of the accumulated buffer. Whatever remains when in
// closes is flushed as a final fragment.
//
// The returned channel is closed when in closes or ctx is cancelled.
func Sentences(ctx context.Context, in <-chan string) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		var buf []byte
		for {
			select {
			case <-ctx.Done():
				return
			case fragment, ok := <-in:
				if !ok {
					if len(buf) > 0 {
						select {
						case out <- string(buf):
						case <-ctx.Done():
						}
					}
					return
				}
				buf = append(buf, fragment...)

				for {
					idx := sentenceBoundary(buf)
					if idx < 0 {
						break
					}
					sentence := string(buf[:idx+1])
					rest := buf[idx+1:]
					for len(rest) > 0 && isSpace(rest[0]) {
						rest = rest[1:]
					}
					buf = append(buf[:0], rest...)
					select {
					case out <- sentence:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}

// sentenceBoundary returns the index of the first sentence-ending byte in s:
// a newline, or '.', '!', '?' followed by whitespace or the end of s.
// Returns -1 when no boundary exists.
func sentenceBoundary(s []byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			return i
		case '.', '!', '?':
			if i == len(s)-1 || isSpace(s[i+1]) {
				return i
			}
		}
	}
	return -1
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Framer chunks synthesised PCM into [audio.SynthFrameBytes] frames with
// monotonic timestamps. One Framer per session; not safe for concurrent use.
type Framer struct {
	nextMs uint64
}

// NewFramer creates a framer whose first frame is stamped with the current
// wall clock.
func NewFramer() *Framer {
	return &Framer{nextMs: uint64(time.Now().UnixMilli())}
}

// Frames splits pcm into frames. A trailing remainder shorter than the frame
// size is emitted as a short final frame rather than padded.
func (fr *Framer) Frames(pcm []byte) []audio.Frame {
	var frames []audio.Frame
	for len(pcm) > 0 {
		n := min(len(pcm), audio.SynthFrameBytes)
		frames = append(frames, audio.Frame{
			Data:        pcm[:n:n],
			TimestampMs: fr.nextMs,
			DurationMs:  audio.DefaultFrameDurationMs,
		})
		fr.nextMs += audio.DefaultFrameDurationMs
		pcm = pcm[n:]
	}
	return frames
}
