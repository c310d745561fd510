package mock

import (
	"context"
	"testing"
	"time"

	"github.com/voxhall/voxhall/pkg/audio"
)

func drain(t *testing.T, out <-chan audio.Frame, timeout time.Duration) []audio.Frame {
	t.Helper()
	var got []audio.Frame
	deadline := time.After(timeout)
	for {
		select {
		case f, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, f)
		case <-deadline:
			t.Fatalf("frame stream not closed after %s", timeout)
		}
	}
}

func TestSynthesize_FiveFramesPerSentence(t *testing.T) {
	t.Parallel()
	p := New()

	in := make(chan string, 4)
	out, err := p.Synthesize(context.Background(), in)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	in <- "First sentence. Second sentence."
	close(in)

	frames := drain(t, out, time.Second)
	if len(frames) != 2*framesPerChunk {
		t.Fatalf("frames = %d, want %d", len(frames), 2*framesPerChunk)
	}
	for i, f := range frames {
		if len(f.Data) != audio.SynthFrameBytes {
			t.Errorf("frame %d size = %d, want %d", i, len(f.Data), audio.SynthFrameBytes)
		}
		for _, b := range f.Data {
			if b != 0 {
				t.Fatalf("frame %d is not silence", i)
			}
		}
	}
	if got := p.TextCount(); got != 2 {
		t.Errorf("TextCount() = %d, want 2", got)
	}
}

func TestSynthesize_TimestampsIncrease(t *testing.T) {
	t.Parallel()
	p := New()

	in := make(chan string, 1)
	out, err := p.Synthesize(context.Background(), in)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	in <- "One sentence here."
	close(in)

	frames := drain(t, out, time.Second)
	for i := 1; i < len(frames); i++ {
		if frames[i].TimestampMs <= frames[i-1].TimestampMs {
			t.Fatalf("timestamp %d (%d) not after %d (%d)",
				i, frames[i].TimestampMs, i-1, frames[i-1].TimestampMs)
		}
	}
}

func TestSynthesize_NoSentenceNoFrames(t *testing.T) {
	t.Parallel()
	p := New()

	in := make(chan string)
	out, err := p.Synthesize(context.Background(), in)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	close(in)

	if frames := drain(t, out, time.Second); len(frames) != 0 {
		t.Errorf("frames = %d, want 0 for empty input", len(frames))
	}
}
