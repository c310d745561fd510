package elevenlabs

import "testing"

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Error("empty API key accepted")
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	p, err := New("xi-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("model = %q, want %q", p.model, defaultModel)
	}
	if p.voiceID != defaultVoiceID {
		t.Errorf("voice = %q, want %q", p.voiceID, defaultVoiceID)
	}
}

func TestNew_Options(t *testing.T) {
	t.Parallel()
	p, err := New("xi-key", WithModel("eleven_turbo_v2"), WithVoice("voice-42"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != "eleven_turbo_v2" {
		t.Errorf("model = %q", p.model)
	}
	if p.voiceID != "voice-42" {
		t.Errorf("voice = %q", p.voiceID)
	}
}
