package audio

import "sort"

// JitterBuffer reorders frames by capture timestamp with a bounded depth.
// It is a library for order-sensitive consumers (pipeline inputs); the
// broadcast path does not use it, fan-out is timestamp-agnostic.
//
// Not safe for concurrent use; callers own the synchronisation.
type JitterBuffer struct {
	frames    []Frame
	maxDepth  int
	lastPopMs uint64
	popped    bool

	// Dropped counts frames discarded because they arrived after a newer
	// frame was already popped, or because the buffer overflowed.
	Dropped uint64
}

// NewJitterBuffer creates a buffer sized for bufferMs of audio at frameMs per
// frame. The depth is bufferMs/frameMs doubled, so a late burst does not
// immediately evict in-order frames. Non-positive arguments fall back to the
// package defaults.
func NewJitterBuffer(bufferMs, frameMs int) *JitterBuffer {
	if frameMs <= 0 {
		frameMs = DefaultFrameDurationMs
	}
	if bufferMs <= 0 {
		bufferMs = 5 * frameMs
	}
	depth := bufferMs / frameMs * 2
	if depth < 1 {
		depth = 1
	}
	return &JitterBuffer{maxDepth: depth}
}

// Push inserts a frame in timestamp order. Frames older than the last popped
// timestamp are dropped. When the depth bound is exceeded the oldest buffered
// frame is evicted.
func (b *JitterBuffer) Push(f Frame) {
	if b.popped && f.TimestampMs < b.lastPopMs {
		b.Dropped++
		return
	}
	i := sort.Search(len(b.frames), func(i int) bool {
		return b.frames[i].TimestampMs > f.TimestampMs
	})
	b.frames = append(b.frames, Frame{})
	copy(b.frames[i+1:], b.frames[i:])
	b.frames[i] = f

	if len(b.frames) > b.maxDepth {
		b.frames = b.frames[1:]
		b.Dropped++
	}
}

// Pop removes and returns the lowest-timestamp frame. The second return is
// false when the buffer is empty.
func (b *JitterBuffer) Pop() (Frame, bool) {
	if len(b.frames) == 0 {
		return Frame{}, false
	}
	f := b.frames[0]
	b.frames = b.frames[1:]
	b.lastPopMs = f.TimestampMs
	b.popped = true
	return f, true
}

// Len returns the number of buffered frames.
func (b *JitterBuffer) Len() int { return len(b.frames) }
