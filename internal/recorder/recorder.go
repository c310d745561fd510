// Package recorder persists the raw audio of every broadcast stream to disk.
//
// Each (room, sender) pair gets its own file under the recordings directory,
// named <room>_<sender>.pcm, holding the concatenated signed 16-bit
// little-endian mono samples exactly as they crossed the wire. Files open
// lazily on the first frame and close when the sender leaves the room.
//
// Writes are asynchronous: [Recorder.LogAudio] hands the frame to a bounded
// per-stream writer goroutine and returns immediately, dropping the frame
// when the writer's queue is full. Disk latency never backs up into the
// broadcast path.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// DefaultDir is the recordings directory relative to the working directory.
const DefaultDir = "recordings"

// streamQueueDepth is the per-stream write queue capacity. At 20 ms frames
// this absorbs several seconds of disk stall before frames drop.
const streamQueueDepth = 256

// stream is one per-(room,sender) writer: a bounded queue drained by a
// dedicated goroutine that owns the file.
type stream struct {
	ch   chan []byte
	done chan struct{}
	err  error // first open/write/close error; read only after done
}

// Recorder appends broadcast audio to per-stream files. Safe for concurrent
// use; the lock covers only the stream table, never disk I/O.
type Recorder struct {
	dir string

	mu      sync.Mutex
	streams map[string]*stream
	dropped atomic.Uint64
}

// New creates a recorder writing under dir, creating the directory if needed.
// An empty dir falls back to [DefaultDir].
func New(dir string) (*Recorder, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: create directory %q: %w", dir, err)
	}
	return &Recorder{
		dir:     dir,
		streams: make(map[string]*stream),
	}, nil
}

// LogAudio queues pcm for the stream writer of (roomID, senderID), starting
// the writer on first use. It never blocks: when the stream's queue is full
// the frame is dropped and counted. Empty frames are ignored.
func (r *Recorder) LogAudio(roomID, senderID string, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	key := streamKey(roomID, senderID)

	r.mu.Lock()
	s, ok := r.streams[key]
	if !ok {
		s = r.openStream(key)
		r.streams[key] = s
	}
	// The non-blocking send happens under the lock so CloseSession cannot
	// close the queue out from under it.
	select {
	case s.ch <- pcm:
	default:
		r.dropped.Add(1)
	}
	r.mu.Unlock()
	return nil
}

// Dropped returns how many frames were discarded because a stream's write
// queue was full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// CloseSession flushes and closes the stream for (roomID, senderID),
// returning the writer's first error. Closing a stream that never wrote, or
// closing twice, is a no-op.
func (r *Recorder) CloseSession(roomID, senderID string) error {
	key := streamKey(roomID, senderID)

	r.mu.Lock()
	s, ok := r.streams[key]
	delete(r.streams, key)
	if ok {
		close(s.ch)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	<-s.done
	return s.err
}

// Close flushes and closes every open stream. Called once at shutdown.
func (r *Recorder) Close() error {
	r.mu.Lock()
	streams := r.streams
	r.streams = make(map[string]*stream)
	for _, s := range streams {
		close(s.ch)
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range streams {
		<-s.done
		if s.err != nil {
			errs = append(errs, s.err)
		}
	}
	if n := r.dropped.Load(); n > 0 {
		slog.Warn("recorder dropped frames on full write queues", "dropped", n)
	}
	return errors.Join(errs...)
}

// openStream starts the writer goroutine for key. The goroutine opens the
// file itself, so the caller never waits on the filesystem.
func (r *Recorder) openStream(key string) *stream {
	s := &stream{
		ch:   make(chan []byte, streamQueueDepth),
		done: make(chan struct{}),
	}
	path := filepath.Join(r.dir, key+".pcm")
	go s.run(path, key)
	return s
}

// run drains the stream queue into the file until the queue closes. On an
// open failure the queue is still drained so senders never stall.
func (s *stream) run(path, key string) {
	defer close(s.done)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.err = fmt.Errorf("recorder: open %q: %w", path, err)
		for range s.ch {
		}
		return
	}
	for pcm := range s.ch {
		if _, werr := f.Write(pcm); werr != nil && s.err == nil {
			s.err = fmt.Errorf("recorder: write %q: %w", key, werr)
		}
	}
	if cerr := f.Close(); cerr != nil && s.err == nil {
		s.err = fmt.Errorf("recorder: close %q: %w", key, cerr)
	}
}

// streamKey builds the file stem for a stream, with both ids sanitised so a
// hostile room or participant id cannot escape the recordings directory.
func streamKey(roomID, senderID string) string {
	return sanitize(roomID) + "_" + sanitize(senderID)
}

// sanitize replaces path separators and other filesystem-hostile characters
// with dashes.
func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, s)
}
