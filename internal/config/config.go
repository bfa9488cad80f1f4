// Package config provides the configuration schema, loader, and provider
// registry for the cueline rehearsal server.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	// LogFormatAuto writes text to a terminal and JSON otherwise.
	LogFormatAuto LogFormat = "auto"
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	switch f {
	case LogFormatAuto, LogFormatText, LogFormatJSON:
		return true
	}
	return false
}

// Duration is a time.Duration that decodes from strings such as "90s" or
// from a bare number of seconds, which is how the environment knobs are
// written.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String formats d like time.Duration.
func (d Duration) String() string { return time.Duration(d).String() }

// Config is the root configuration structure.
// It is typically loaded with [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Script  ScriptConfig  `yaml:"script" toml:"script"`
	Audio   AudioConfig   `yaml:"audio" toml:"audio"`
	Match   MatchConfig   `yaml:"match" toml:"match"`
	STT     STTConfig     `yaml:"stt" toml:"stt"`
	Observe ObserveConfig `yaml:"observe" toml:"observe"`
}

// ServerConfig holds network, logging and static-file settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`

	LogLevel  LogLevel  `yaml:"log_level" toml:"log_level"`
	LogFormat LogFormat `yaml:"log_format" toml:"log_format"`

	// LogFile, when set, additionally writes logs to a rotating file.
	LogFile string `yaml:"log_file" toml:"log_file"`

	// StaticDir is served at "/" when set. It normally holds index.html.
	StaticDir string `yaml:"static_dir" toml:"static_dir"`

	// MediaDir is served at "/media/" when set.
	MediaDir string `yaml:"media_dir" toml:"media_dir"`

	// TLS configures HTTPS. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls" toml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file" toml:"cert_file"`
	KeyFile  string `yaml:"key_file" toml:"key_file"`
}

// ScriptConfig locates the script file and tunes scene chunking.
type ScriptConfig struct {
	Path string `yaml:"path" toml:"path"`

	// ChunkSize is the number of lines per synthetic scene when the file has
	// no usable scene markers.
	ChunkSize int `yaml:"chunk_size" toml:"chunk_size"`
}

// AudioConfig locates the reference recording served at /audio.
type AudioConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// MatchConfig tunes the similarity matcher.
type MatchConfig struct {
	// Scorer is "token_set" (default) or "ratio".
	Scorer string `yaml:"scorer" toml:"scorer"`

	// WindowRadius is the radius of the candidate window built around a
	// "near" hint by /match, /stt-proxy and the match command. Zero turns the
	// hint off for the HTTP API.
	WindowRadius int `yaml:"window_radius" toml:"window_radius"`
}

// STTConfig selects the primary speech-to-text backend and its fallbacks.
type STTConfig struct {
	ProviderEntry `yaml:",inline" toml:",inline"`

	// Timeout bounds one HTTP transcription request.
	Timeout Duration `yaml:"timeout" toml:"timeout"`

	// ConnectTimeout bounds the WebSocket opening handshake.
	ConnectTimeout Duration `yaml:"connect_timeout" toml:"connect_timeout"`

	// MaxMessageBytes is the WebSocket per-message read limit.
	MaxMessageBytes int64 `yaml:"max_message_bytes" toml:"max_message_bytes"`

	// MaxUploadBytes caps the body accepted by /stt-proxy.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" toml:"max_upload_bytes"`

	// WSURL is the Whisper WebSocket endpoint bridged at /ws. When empty and
	// the primary provider is "whisper-ws", its BaseURL is used.
	WSURL string `yaml:"ws_url" toml:"ws_url"`

	// Fallbacks are tried in order when the primary fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks" toml:"fallbacks"`

	// Breaker tunes the circuit breaker placed in front of each backend.
	Breaker BreakerConfig `yaml:"breaker" toml:"breaker"`
}

// BreakerConfig mirrors resilience.CircuitBreakerConfig.
type BreakerConfig struct {
	MaxFailures  int      `yaml:"max_failures" toml:"max_failures"`
	ResetTimeout Duration `yaml:"reset_timeout" toml:"reset_timeout"`
	HalfOpenMax  int      `yaml:"half_open_max" toml:"half_open_max"`
}

// ProviderEntry is the configuration block shared by all STT backends.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider ("whisper", "whisper-ws", "openai").
	Name string `yaml:"name" toml:"name"`

	// BaseURL is the endpoint: an http(s) URL for "whisper", a ws(s) URL
	// for "whisper-ws", an API base for "openai".
	BaseURL string `yaml:"base_url" toml:"base_url"`

	APIKey string `yaml:"api_key" toml:"api_key"`

	// Model selects a specific model within the provider (e.g., "whisper-1").
	Model string `yaml:"model" toml:"model"`

	// Language is the default ISO-639-1 hint sent with every request.
	Language string `yaml:"language" toml:"language"`
}

// ObserveConfig holds metrics and tracing settings.
type ObserveConfig struct {
	// MetricsPath is where the Prometheus handler is mounted. "-" disables it.
	MetricsPath string `yaml:"metrics_path" toml:"metrics_path"`

	ServiceName string `yaml:"service_name" toml:"service_name"`
}
