package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.App.Name != "voxhall" {
		t.Errorf("app.name = %q, want voxhall", cfg.App.Name)
	}
	if cfg.App.Env != EnvDevelopment {
		t.Errorf("app.env = %q, want development", cfg.App.Env)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.FrameDurationMs != 20 {
		t.Errorf("audio = %+v, want 16000 Hz / 20 ms", cfg.Audio)
	}
	if cfg.Agents.DefaultProvider != "mock" {
		t.Errorf("agents.default_provider = %q, want mock", cfg.Agents.DefaultProvider)
	}
	if cfg.Agents.QueueDepth != 128 {
		t.Errorf("agents.queue_depth = %d, want 128", cfg.Agents.QueueDepth)
	}
	if cfg.Agents.WatchdogTimeout != 30*time.Second {
		t.Errorf("agents.watchdog_timeout = %s, want 30s", cfg.Agents.WatchdogTimeout)
	}
	if cfg.Recorder.Dir != "recordings" {
		t.Errorf("recorder.dir = %q, want recordings", cfg.Recorder.Dir)
	}
}

func TestLoadFromReader_OverridesDefaults(t *testing.T) {
	yaml := `
app:
  name: testhall
  env: production
  debug: true
server:
  host: 127.0.0.1
  port: 9000
agents:
  default_provider: google
  queue_depth: 64
  watchdog_timeout: 5s
providers:
  deepgram_api_key: dg-secret
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.App.Name != "testhall" || cfg.App.Env != EnvProduction || !cfg.App.Debug {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Agents.DefaultProvider != "google" || cfg.Agents.QueueDepth != 64 {
		t.Errorf("agents = %+v", cfg.Agents)
	}
	if cfg.Agents.WatchdogTimeout != 5*time.Second {
		t.Errorf("watchdog_timeout = %s, want 5s", cfg.Agents.WatchdogTimeout)
	}
	if cfg.Providers.DeepgramAPIKey != "dg-secret" {
		t.Errorf("deepgram key = %q", cfg.Providers.DeepgramAPIKey)
	}
	// Untouched sections keep their defaults.
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("audio.sample_rate = %d, want default 16000", cfg.Audio.SampleRate)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("serverr:\n  port: 1\n"))
	if err == nil {
		t.Fatal("unknown top-level field accepted")
	}
}

func TestLoadFromReader_ValidationErrorsAreJoined(t *testing.T) {
	yaml := `
app:
  env: staging
server:
  port: 99999
audio:
  sample_rate: -1
`
	_, err := LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	for _, want := range []string{"app.env", "server.port", "audio.sample_rate"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if cfg.App.Name != "voxhall" {
		t.Errorf("app.name = %q, want voxhall", cfg.App.Name)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxhall.yaml")
	writeFile(t, path, "server:\n  port: 9000\n")

	t.Setenv("PORT", "9100")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DEBUG", "true")
	t.Setenv("DEFAULT_AGENT_PROVIDER", "echo")
	t.Setenv("AGENT_WATCHDOG_TIMEOUT", "90s")
	t.Setenv("GEMINI_API_KEY", "gm-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("server.port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.App.Env != EnvTest || !cfg.App.Debug {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Agents.DefaultProvider != "echo" {
		t.Errorf("agents.default_provider = %q, want echo", cfg.Agents.DefaultProvider)
	}
	if cfg.Agents.WatchdogTimeout != 90*time.Second {
		t.Errorf("watchdog_timeout = %s, want 90s", cfg.Agents.WatchdogTimeout)
	}
	if cfg.Providers.GeminiAPIKey != "gm-secret" {
		t.Errorf("gemini key = %q", cfg.Providers.GeminiAPIKey)
	}
}

func TestLoad_MalformedEnvValuesIgnored(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("DEBUG", "maybe")
	t.Setenv("AGENT_WATCHDOG_TIMEOUT", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.App.Debug {
		t.Error("app.debug set from unparseable value")
	}
	if cfg.Agents.WatchdogTimeout != 30*time.Second {
		t.Errorf("watchdog_timeout = %s, want default 30s", cfg.Agents.WatchdogTimeout)
	}
}

func TestValidate_EnvironmentValues(t *testing.T) {
	for _, env := range []Environment{EnvDevelopment, EnvProduction, EnvTest} {
		if !env.IsValid() {
			t.Errorf("%q should be valid", env)
		}
	}
	if Environment("staging").IsValid() {
		t.Error("staging should be invalid")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
