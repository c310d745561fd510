package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// validAgentProviders lists the recognised "default" agent alias targets.
// Unknown values degrade to echo at attach time; [Validate] warns early.
var validAgentProviders = []string{"mock", "google", "echo"}

// Load builds the configuration: defaults, then the YAML file at path, then
// environment variables. A missing file is not an error; an unreadable or
// invalid one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Info("config file not found, using defaults and environment", "path", path)
		case err != nil:
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		default:
			defer f.Close()
			if err := decode(f, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %q: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults and
// validates the result. The environment is not consulted; useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode strictly decodes YAML from r into cfg. Unknown fields are errors so
// typos surface at startup instead of silently using defaults.
func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overlays recognised environment variables onto cfg. Unset
// variables leave the current value in place.
func applyEnv(cfg *Config) {
	setString(&cfg.App.Name, "APP_NAME")
	if v, ok := os.LookupEnv("APP_ENV"); ok {
		cfg.App.Env = Environment(v)
	}
	setBool(&cfg.App.Debug, "DEBUG")
	setString(&cfg.App.LogFile, "LOG_FILE")

	setString(&cfg.Server.Host, "HOST")
	setInt(&cfg.Server.Port, "PORT")

	setInt(&cfg.Audio.SampleRate, "SAMPLE_RATE")
	setInt(&cfg.Audio.FrameDurationMs, "FRAME_DURATION_MS")

	setString(&cfg.Agents.DefaultProvider, "DEFAULT_AGENT_PROVIDER")
	setInt(&cfg.Agents.QueueDepth, "AGENT_QUEUE_DEPTH")
	setDuration(&cfg.Agents.WatchdogTimeout, "AGENT_WATCHDOG_TIMEOUT")

	setString(&cfg.Providers.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.Providers.DeepgramAPIKey, "DEEPGRAM_API_KEY")
	setString(&cfg.Providers.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	setString(&cfg.Providers.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.Providers.GoogleCredentialsJSON, "GOOGLE_APPLICATION_CREDENTIALS_JSON")
	setString(&cfg.Providers.GoogleProjectID, "GOOGLE_PROJECT_ID")

	setString(&cfg.Recorder.Dir, "RECORDINGS_DIR")
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}
	if cfg.App.Env != "" && !cfg.App.Env.IsValid() {
		errs = append(errs, fmt.Errorf("app.env %q is invalid; valid values: development, production, test", cfg.App.Env))
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range [1, 65535]", cfg.Server.Port))
	}

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameDurationMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_duration_ms %d must be positive", cfg.Audio.FrameDurationMs))
	}

	if cfg.Agents.QueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("agents.queue_depth %d must be positive", cfg.Agents.QueueDepth))
	}
	if cfg.Agents.WatchdogTimeout < 0 {
		errs = append(errs, fmt.Errorf("agents.watchdog_timeout %s must not be negative", cfg.Agents.WatchdogTimeout))
	}
	if cfg.Agents.DefaultProvider != "" && !slices.Contains(validAgentProviders, cfg.Agents.DefaultProvider) {
		slog.Warn("unknown agents.default_provider, the default agent will fall back to echo",
			"provider", cfg.Agents.DefaultProvider)
	}

	return errors.Join(errs...)
}

// ─── env helpers ──────────────────────────────────────────────────────────────

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring non-boolean environment variable", "key", key, "value", v)
		return
	}
	*dst = b
}

func setInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-integer environment variable", "key", key, "value", v)
		return
	}
	*dst = n
}

func setDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("ignoring unparseable duration environment variable", "key", key, "value", v)
		return
	}
	*dst = d
}
