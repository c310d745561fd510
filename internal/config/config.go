// Package config provides the configuration schema and loader for the
// Voxhall room server.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. A missing config file is not an error, so a
// pure-environment deployment (container, CI) works without any file at all.
package config

import "time"

// Environment names the deployment environment of a Voxhall instance.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// IsValid reports whether e is a recognised environment.
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvProduction, EnvTest:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxhall.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Agents    AgentsConfig    `yaml:"agents"`
	Providers ProvidersConfig `yaml:"providers"`
	Recorder  RecorderConfig  `yaml:"recorder"`
}

// AppConfig holds application identity and logging settings.
type AppConfig struct {
	// Name is the application name reported by /health and telemetry.
	Name string `yaml:"name"`

	// Env is the deployment environment: development, production, or test.
	Env Environment `yaml:"env"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`

	// LogFile, when set, mirrors log output to the given file in addition to
	// stderr.
	LogFile string `yaml:"log_file"`
}

// ServerConfig holds the listen address of the HTTP/WebSocket server.
type ServerConfig struct {
	// Host is the interface to bind (e.g., "0.0.0.0").
	Host string `yaml:"host"`

	// Port is the TCP port to listen on.
	Port int `yaml:"port"`
}

// AudioConfig holds the PCM format rooms exchange.
type AudioConfig struct {
	// SampleRate is the sample rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// FrameDurationMs is the nominal duration of one audio frame.
	FrameDurationMs int `yaml:"frame_duration_ms"`
}

// AgentsConfig holds embedded-agent settings.
type AgentsConfig struct {
	// DefaultProvider selects what the "default" agent alias resolves to:
	// "mock", "google", or "echo".
	DefaultProvider string `yaml:"default_provider"`

	// QueueDepth is the bounded input queue size per agent.
	QueueDepth int `yaml:"queue_depth"`

	// WatchdogTimeout is how long an agent loop may go without traffic before
	// it is torn down. Zero disables the watchdog.
	WatchdogTimeout time.Duration `yaml:"watchdog_timeout"`
}

// ProvidersConfig holds the API credentials of the cloud agent's stages.
// Every field may stay empty; uncredentialed stages degrade to silence.
type ProvidersConfig struct {
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	DeepgramAPIKey   string `yaml:"deepgram_api_key"`
	ElevenLabsAPIKey string `yaml:"elevenlabs_api_key"`
	GeminiAPIKey     string `yaml:"gemini_api_key"`

	// GoogleCredentialsJSON is the inline service-account JSON for Google
	// Cloud providers.
	GoogleCredentialsJSON string `yaml:"google_credentials_json"`

	// GoogleProjectID is the Google Cloud project.
	GoogleProjectID string `yaml:"google_project_id"`
}

// RecorderConfig holds audio recording settings.
type RecorderConfig struct {
	// Dir is the directory recordings are written under. Empty disables
	// recording.
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name: "voxhall",
			Env:  EnvDevelopment,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Audio: AudioConfig{
			SampleRate:      16000,
			FrameDurationMs: 20,
		},
		Agents: AgentsConfig{
			DefaultProvider: "mock",
			QueueDepth:      128,
			WatchdogTimeout: 30 * time.Second,
		},
		Recorder: RecorderConfig{
			Dir: "recordings",
		},
	}
}
