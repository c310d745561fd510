package audio

import "testing"

func frameAt(ts uint64) Frame {
	return Frame{Data: []byte{byte(ts)}, TimestampMs: ts, DurationMs: DefaultFrameDurationMs}
}

func TestJitterBufferOrdersByTimestamp(t *testing.T) {
	t.Parallel()

	b := NewJitterBuffer(100, 20)
	for _, ts := range []uint64{60, 20, 40, 80} {
		b.Push(frameAt(ts))
	}

	want := []uint64{20, 40, 60, 80}
	for _, w := range want {
		f, ok := b.Pop()
		if !ok {
			t.Fatalf("Pop() empty, want frame with ts=%d", w)
		}
		if f.TimestampMs != w {
			t.Fatalf("Pop() ts = %d, want %d", f.TimestampMs, w)
		}
	}
	if _, ok := b.Pop(); ok {
		t.Fatal("Pop() on drained buffer returned a frame")
	}
}

func TestJitterBufferDropsStaleFrames(t *testing.T) {
	t.Parallel()

	b := NewJitterBuffer(100, 20)
	b.Push(frameAt(100))
	if _, ok := b.Pop(); !ok {
		t.Fatal("Pop() empty")
	}

	// Older than the last popped timestamp: must be discarded.
	b.Push(frameAt(40))
	if b.Len() != 0 {
		t.Fatalf("Len() = %d after stale push, want 0", b.Len())
	}
	if b.Dropped != 1 {
		t.Fatalf("Dropped = %d, want 1", b.Dropped)
	}
}

func TestJitterBufferEvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	// 40ms buffer at 20ms frames: depth = 4.
	b := NewJitterBuffer(40, 20)
	for ts := uint64(20); ts <= 100; ts += 20 {
		b.Push(frameAt(ts))
	}

	if b.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", b.Len())
	}
	if b.Dropped != 1 {
		t.Fatalf("Dropped = %d, want 1", b.Dropped)
	}
	f, _ := b.Pop()
	if f.TimestampMs != 40 {
		t.Fatalf("oldest surviving ts = %d, want 40 (20 evicted)", f.TimestampMs)
	}
}

func TestJitterBufferDefaults(t *testing.T) {
	t.Parallel()

	b := NewJitterBuffer(0, 0)
	b.Push(frameAt(1))
	if f, ok := b.Pop(); !ok || f.TimestampMs != 1 {
		t.Fatalf("Pop() = %+v, %v; want frame ts=1", f, ok)
	}
}

func TestPCMByteConversionRoundTrip(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	got := BytesToInt16s(Int16sToBytes(samples))
	if len(got) != len(samples) {
		t.Fatalf("round trip length = %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}
