package recorder

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLogAudio_AppendsAcrossWrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.LogAudio("lobby", "p1", []byte{1, 2}); err != nil {
		t.Fatalf("LogAudio: %v", err)
	}
	if err := r.LogAudio("lobby", "p1", []byte{3, 4}); err != nil {
		t.Fatalf("LogAudio: %v", err)
	}
	if err := r.CloseSession("lobby", "p1"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "lobby_p1.pcm"))
	if err != nil {
		t.Fatalf("read recording: %v", err)
	}
	want := []byte{1, 2, 3, 4}
	if string(got) != string(want) {
		t.Errorf("recording = %v, want %v", got, want)
	}
}

func TestLogAudio_SeparateFilePerStream(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r.LogAudio("lobby", "p1", []byte{1})
	r.LogAudio("lobby", "p2", []byte{2})
	r.LogAudio("other", "p1", []byte{3})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, name := range []string{"lobby_p1.pcm", "lobby_p2.pcm", "other_p1.pcm"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing recording %s: %v", name, err)
		}
	}
}

func TestLogAudio_EmptyFrameIgnored(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.LogAudio("lobby", "p1", nil); err != nil {
		t.Fatalf("LogAudio(nil) = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "lobby_p1.pcm")); !os.IsNotExist(err) {
		t.Error("empty frame created a recording file")
	}
}

func TestCloseSession_Idempotent(t *testing.T) {
	t.Parallel()
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Never-written stream.
	if err := r.CloseSession("lobby", "ghost"); err != nil {
		t.Errorf("CloseSession on unwritten stream = %v", err)
	}

	r.LogAudio("lobby", "p1", []byte{1})
	if err := r.CloseSession("lobby", "p1"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if err := r.CloseSession("lobby", "p1"); err != nil {
		t.Errorf("second CloseSession = %v", err)
	}
}

func TestLogAudio_ReopensAfterClose(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	r.LogAudio("lobby", "p1", []byte{1})
	r.CloseSession("lobby", "p1")
	r.LogAudio("lobby", "p1", []byte{2})
	r.CloseSession("lobby", "p1")

	got, err := os.ReadFile(filepath.Join(dir, "lobby_p1.pcm"))
	if err != nil {
		t.Fatalf("read recording: %v", err)
	}
	if string(got) != string([]byte{1, 2}) {
		t.Errorf("recording = %v, want [1 2]", got)
	}
}

func TestSanitize_HostileIDs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.LogAudio("../evil", "p/1", []byte{1}); err != nil {
		t.Fatalf("LogAudio: %v", err)
	}
	if err := r.CloseSession("../evil", "p/1"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want exactly 1 inside the recordings dir", len(entries))
	}
	if got := entries[0].Name(); got != "..-evil_p-1.pcm" {
		t.Errorf("sanitised name = %q, want %q", got, "..-evil_p-1.pcm")
	}
}

func TestCloseSession_FlushesQueuedWrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// A burst smaller than the queue depth: every frame must reach the file
	// before CloseSession returns.
	const frames = 100
	for i := 0; i < frames; i++ {
		if err := r.LogAudio("burst", "p1", []byte{1, 2, 3, 4}); err != nil {
			t.Fatalf("LogAudio %d: %v", i, err)
		}
	}
	if err := r.CloseSession("burst", "p1"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if got := r.Dropped(); got != 0 {
		t.Fatalf("Dropped() = %d, want 0 below the queue depth", got)
	}

	got, err := os.ReadFile(filepath.Join(dir, "burst_p1.pcm"))
	if err != nil {
		t.Fatalf("read recording: %v", err)
	}
	if len(got) != frames*4 {
		t.Errorf("recording size = %d, want %d", len(got), frames*4)
	}
}

func TestClose_ClosesAllStreams(t *testing.T) {
	t.Parallel()
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r.LogAudio("a", "p1", []byte{1})
	r.LogAudio("b", "p2", []byte{2})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Streams reopen transparently after a full close.
	if err := r.LogAudio("a", "p1", []byte{3}); err != nil {
		t.Errorf("LogAudio after Close = %v", err)
	}
	r.Close()
}
