package mock

import (
	"context"
	"strings"
	"testing"
	"time"
)

func drain(t *testing.T, out <-chan string, timeout time.Duration) []string {
	t.Helper()
	var got []string
	deadline := time.After(timeout)
	for {
		select {
		case s, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, s)
		case <-deadline:
			t.Fatalf("reply stream not closed after %s", timeout)
		}
	}
}

func TestChat_ReplyStreamedWordByWord(t *testing.T) {
	t.Parallel()
	p := New()

	in := make(chan string, 1)
	out, err := p.Chat(context.Background(), in)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	in <- "Hello world"
	close(in)

	tokens := drain(t, out, time.Second)
	want := "I heard you say Hello world. That is interesting."
	if got := strings.Join(tokens, ""); got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
	if len(tokens) != len(strings.Fields(want)) {
		t.Errorf("token count = %d, want one per word (%d)", len(tokens), len(strings.Fields(want)))
	}
	for i, tok := range tokens[:len(tokens)-1] {
		if !strings.HasSuffix(tok, " ") {
			t.Errorf("token %d = %q, want trailing space", i, tok)
		}
	}
	if last := tokens[len(tokens)-1]; strings.HasSuffix(last, " ") {
		t.Errorf("final token = %q, want no trailing space", last)
	}
}

func TestChat_OneReplyPerPrompt(t *testing.T) {
	t.Parallel()
	p := New()

	in := make(chan string, 2)
	out, err := p.Chat(context.Background(), in)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	in <- "first"
	in <- "second"
	close(in)
	drain(t, out, time.Second)

	if got := p.PromptCount(); got != 2 {
		t.Errorf("PromptCount() = %d, want 2", got)
	}
	if p.Prompts[0] != "first" || p.Prompts[1] != "second" {
		t.Errorf("Prompts = %v", p.Prompts)
	}
}

func TestReset_ClearsRecordedCalls(t *testing.T) {
	t.Parallel()
	p := New()

	in := make(chan string, 1)
	out, _ := p.Chat(context.Background(), in)
	in <- "x"
	close(in)
	drain(t, out, time.Second)

	p.Reset()
	if p.PromptCount() != 0 || p.ChatCalls != 0 {
		t.Errorf("Reset left state: calls=%d prompts=%d", p.ChatCalls, p.PromptCount())
	}
}
