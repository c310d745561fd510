package agent

import (
	"context"
	"testing"
	"time"

	"github.com/voxhall/voxhall/pkg/audio"
	llmmock "github.com/voxhall/voxhall/pkg/provider/llm/mock"
	sttmock "github.com/voxhall/voxhall/pkg/provider/stt/mock"
	ttsmock "github.com/voxhall/voxhall/pkg/provider/tts/mock"
)

// collect drains out until it closes or the deadline passes.
func collect(t *testing.T, out <-chan audio.Frame, timeout time.Duration) []audio.Frame {
	t.Helper()
	var frames []audio.Frame
	deadline := time.After(timeout)
	for {
		select {
		case f, ok := <-out:
			if !ok {
				return frames
			}
			frames = append(frames, f)
		case <-deadline:
			t.Fatalf("pipeline output not closed after %s (got %d frames)", timeout, len(frames))
		}
	}
}

func TestEcho_PassesFramesThroughInOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	in := make(chan audio.Frame, 4)
	out, err := NewEcho().ProcessAudioStream(ctx, in)
	if err != nil {
		t.Fatalf("ProcessAudioStream: %v", err)
	}

	want := []audio.Frame{
		{Data: []byte{1, 1}, TimestampMs: 0, DurationMs: 20},
		{Data: []byte{2, 2}, TimestampMs: 20, DurationMs: 20},
		{Data: []byte{3, 3}, TimestampMs: 40, DurationMs: 20},
	}
	for _, f := range want {
		in <- f
	}
	close(in)

	got := collect(t, out, time.Second)
	if len(got) != len(want) {
		t.Fatalf("echoed %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].TimestampMs != want[i].TimestampMs || got[i].Data[0] != want[i].Data[0] {
			t.Errorf("frame %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEcho_StopsOnContextCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	in := make(chan audio.Frame)
	out, err := NewEcho().ProcessAudioStream(ctx, in)
	if err != nil {
		t.Fatalf("ProcessAudioStream: %v", err)
	}
	cancel()

	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("received a frame after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("output not closed after cancellation")
	}
}

func TestConversational_MockPipelineEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sttP, llmP, ttsP := sttmock.New(), llmmock.New(), ttsmock.New()
	ag := NewConversational(sttP, llmP, ttsP)

	in := make(chan audio.Frame, 64)
	out, err := ag.ProcessAudioStream(ctx, in)
	if err != nil {
		t.Fatalf("ProcessAudioStream: %v", err)
	}

	// 50 frames of 320 bytes cross the mock transcriber's 16 kB trigger
	// exactly once.
	for i := 0; i < 50; i++ {
		in <- audio.Frame{
			Data:        make([]byte, audio.SynthFrameBytes),
			TimestampMs: uint64(i * audio.DefaultFrameDurationMs),
			DurationMs:  audio.DefaultFrameDurationMs,
		}
	}
	close(in)

	frames := collect(t, out, 2*time.Second)

	// "I heard you say Hello world. That is interesting." splits into two
	// sentences, five silence frames each.
	if len(frames) != 10 {
		t.Fatalf("synthesized %d frames, want 10", len(frames))
	}
	for i, f := range frames {
		if len(f.Data) != audio.SynthFrameBytes {
			t.Errorf("frame %d size = %d, want %d", i, len(f.Data), audio.SynthFrameBytes)
		}
		if i > 0 && f.TimestampMs <= frames[i-1].TimestampMs {
			t.Errorf("frame %d timestamp %d not increasing", i, f.TimestampMs)
		}
	}

	if got := llmP.Prompts; len(got) != 1 || got[0] != "Hello world" {
		t.Errorf("llm prompts = %v, want [Hello world]", got)
	}
	if got := ttsP.Texts; len(got) != 2 {
		t.Errorf("tts received %d sentences, want 2: %v", len(got), got)
	}
}

func TestConversational_NoOutputBelowTranscriptionThreshold(t *testing.T) {
	t.Parallel()
	ag := NewConversational(sttmock.New(), llmmock.New(), ttsmock.New())

	in := make(chan audio.Frame, 4)
	out, err := ag.ProcessAudioStream(context.Background(), in)
	if err != nil {
		t.Fatalf("ProcessAudioStream: %v", err)
	}

	in <- audio.Frame{Data: make([]byte, audio.SynthFrameBytes)}
	close(in)

	if frames := collect(t, out, time.Second); len(frames) != 0 {
		t.Errorf("got %d frames from sub-threshold audio, want 0", len(frames))
	}
}
