package agent

import (
	"context"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/voxhall/voxhall/pkg/audio"
	"github.com/voxhall/voxhall/pkg/provider/llm"
	"github.com/voxhall/voxhall/pkg/provider/llm/anyllm"
	llmmock "github.com/voxhall/voxhall/pkg/provider/llm/mock"
	"github.com/voxhall/voxhall/pkg/provider/llm/openai"
	"github.com/voxhall/voxhall/pkg/provider/stt"
	"github.com/voxhall/voxhall/pkg/provider/stt/deepgram"
	sttmock "github.com/voxhall/voxhall/pkg/provider/stt/mock"
	"github.com/voxhall/voxhall/pkg/provider/tts"
	"github.com/voxhall/voxhall/pkg/provider/tts/elevenlabs"
	ttsmock "github.com/voxhall/voxhall/pkg/provider/tts/mock"
)

// Default models for the cloud agent's stages.
const (
	defaultGeminiModel = "gemini-2.0-flash"
	defaultOpenAIModel = "gpt-4o-mini"
)

// Credentials holds the provider API keys the cloud agent's stages need.
// Stages whose key is absent are replaced with silent pass-through stages so a
// partially configured deployment still runs.
type Credentials struct {
	OpenAIAPIKey     string
	DeepgramAPIKey   string
	ElevenLabsAPIKey string
	GeminiAPIKey     string
}

// Registry builds agents by name. Registered names:
//
//   - "echo"               — frame passthrough
//   - "mock", "mock-conversation" — conversational pipeline on mock stages
//   - "cloud"              — Deepgram STT, Gemini or OpenAI LLM, ElevenLabs TTS
//   - "default"            — alias resolved through the configured default
//     provider: "mock" → mock-conversation, "google" → cloud, "echo" → echo
//
// Unknown names fall back to echo with a warning; agent attachment should
// degrade, not fail, when a client asks for something this build does not ship.
type Registry struct {
	defaultProvider string
	creds           Credentials
}

// NewRegistry creates a registry. defaultProvider is the "default" alias
// target ("mock", "google", or "echo"); anything else resolves to echo.
func NewRegistry(defaultProvider string, creds Credentials) *Registry {
	return &Registry{defaultProvider: defaultProvider, creds: creds}
}

// Build constructs the named agent.
func (r *Registry) Build(name string) (Agent, error) {
	switch name {
	case "default":
		return r.Build(r.resolveDefault())
	case "echo":
		return NewEcho(), nil
	case "mock", "mock-conversation":
		return NewConversational(sttmock.New(), llmmock.New(), ttsmock.New()), nil
	case "cloud":
		return r.buildCloud()
	default:
		slog.Warn("unknown agent name, falling back to echo", "agent", name)
		return NewEcho(), nil
	}
}

// resolveDefault maps the configured default provider to a registered name.
func (r *Registry) resolveDefault() string {
	switch r.defaultProvider {
	case "mock":
		return "mock-conversation"
	case "google":
		return "cloud"
	case "echo", "":
		return "echo"
	default:
		slog.Warn("unknown default agent provider, falling back to echo",
			"provider", r.defaultProvider)
		return "echo"
	}
}

// buildCloud assembles the cloud conversational pipeline. Stages without
// credentials become silent stages that drain their input and emit nothing.
func (r *Registry) buildCloud() (Agent, error) {
	var s stt.Provider
	if r.creds.DeepgramAPIKey != "" {
		p, err := deepgram.New(r.creds.DeepgramAPIKey)
		if err != nil {
			return nil, fmt.Errorf("agent: deepgram stage: %w", err)
		}
		s = p
	} else {
		slog.Warn("cloud agent has no Deepgram credentials, transcription disabled")
		s = silentSTT{}
	}

	var l llm.Provider
	switch {
	case r.creds.GeminiAPIKey != "":
		p, err := anyllm.NewGemini(defaultGeminiModel, anyllmlib.WithAPIKey(r.creds.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("agent: gemini stage: %w", err)
		}
		l = p
	case r.creds.OpenAIAPIKey != "":
		p, err := openai.New(r.creds.OpenAIAPIKey, defaultOpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("agent: openai stage: %w", err)
		}
		l = p
	default:
		slog.Warn("cloud agent has no LLM credentials, inference disabled")
		l = silentLLM{}
	}

	var t tts.Provider
	if r.creds.ElevenLabsAPIKey != "" {
		p, err := elevenlabs.New(r.creds.ElevenLabsAPIKey)
		if err != nil {
			return nil, fmt.Errorf("agent: elevenlabs stage: %w", err)
		}
		t = p
	} else {
		slog.Warn("cloud agent has no ElevenLabs credentials, synthesis disabled")
		t = silentTTS{}
	}

	return NewConversational(s, l, t), nil
}

// ─── silent stages ────────────────────────────────────────────────────────────

// The silent stages keep an uncredentialed pipeline flowing: they drain their
// input so upstream never blocks, and emit nothing.

type silentSTT struct{}

func (silentSTT) Transcribe(_ context.Context, in <-chan audio.Frame) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		for range in {
		}
	}()
	return out, nil
}

type silentLLM struct{}

func (silentLLM) Chat(_ context.Context, in <-chan string) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		for range in {
		}
	}()
	return out, nil
}

type silentTTS struct{}

func (silentTTS) Synthesize(_ context.Context, in <-chan string) (<-chan audio.Frame, error) {
	out := make(chan audio.Frame)
	go func() {
		defer close(out)
		for range in {
		}
	}()
	return out, nil
}

var (
	_ stt.Provider = silentSTT{}
	_ llm.Provider = silentLLM{}
	_ tts.Provider = silentTTS{}
)
