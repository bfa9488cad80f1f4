package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8000"
	DefaultScriptPath      = "media/scripts.txt"
	DefaultAudioPath       = "media/sample.wav"
	DefaultChunkSize       = 5
	DefaultScorer          = "token_set"
	DefaultSTTTimeout      = Duration(90 * time.Second)
	DefaultConnectTimeout  = Duration(15 * time.Second)
	DefaultMaxMessageBytes = 50_000_000
	DefaultMaxUploadBytes  = 50_000_000
	DefaultMetricsPath     = "/metrics"
	DefaultServiceName     = "cueline"
)

// STT provider names understood by the server.
const (
	ProviderWhisper   = "whisper"
	ProviderWhisperWS = "whisper-ws"
	ProviderOpenAI    = "openai"
)

// ValidProviderNames lists known STT provider names.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = []string{ProviderWhisper, ProviderWhisperWS, ProviderOpenAI}

// Format is the encoding of a config file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFor picks the decoder from the file extension. Anything other than
// .toml is treated as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// LoadOption tunes [Load] and [LoadFromReader].
type LoadOption func(*loadOptions)

type loadOptions struct {
	format       Format
	allowMissing bool
	lookupEnv    func(string) (string, bool)
}

// WithFormat selects the decoder used by [LoadFromReader]. [Load] derives it
// from the file extension.
func WithFormat(f Format) LoadOption {
	return func(o *loadOptions) { o.format = f }
}

// AllowMissing makes [Load] fall back to defaults plus environment when the
// file does not exist.
func AllowMissing() LoadOption {
	return func(o *loadOptions) { o.allowMissing = true }
}

// WithEnv replaces os.LookupEnv as the source of environment overrides.
// Pass a function that always reports false to disable them.
func WithEnv(lookup func(string) (string, bool)) LoadOption {
	return func(o *loadOptions) { o.lookupEnv = lookup }
}

func newLoadOptions(opts []LoadOption) loadOptions {
	o := loadOptions{lookupEnv: os.LookupEnv}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Load reads the configuration file at path and returns a validated [Config].
// Environment overrides and defaults are applied before validation.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := newLoadOptions(opts)
	o.format = FormatFor(path)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && o.allowMissing:
		slog.Debug("config file not found, using defaults and environment", "path", path)
		data = nil
	case err != nil:
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}

	cfg, err := load(data, o)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a config from r, applies environment overrides and
// defaults, and validates the result. YAML is assumed unless [WithFormat]
// says otherwise.
func LoadFromReader(r io.Reader, opts ...LoadOption) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return load(data, newLoadOptions(opts))
}

func load(data []byte, o loadOptions) (*Config, error) {
	cfg := &Config{}
	if err := decode(data, o.format, cfg); err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, o.lookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, format Format, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return fmt.Errorf("config: decode toml: %w\n%s", err, strict.String())
			}
			return fmt.Errorf("config: decode toml: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	return nil
}

// ApplyEnv overlays the deployment environment variables onto cfg. Values
// that fail to parse are reported together.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var errs []error
	parseInt := func(key string, dst *int64) {
		v, ok := get(key)
		if !ok {
			return
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("env %s=%q: not an integer", key, v))
			return
		}
		*dst = n
	}
	parseDur := func(key string, dst *Duration) {
		v, ok := get(key)
		if !ok {
			return
		}
		d, err := ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("env %s: %w", key, err))
			return
		}
		*dst = Duration(d)
	}

	if v, ok := get("PORT"); ok {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			errs = append(errs, fmt.Errorf("env PORT=%q: not a port number", v))
		} else {
			cfg.Server.ListenAddr = ":" + v
		}
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(v))
	}
	if v, ok := get("SCRIPT_PATH"); ok {
		cfg.Script.Path = v
	}
	if v, ok := get("AUDIO_FILE"); ok {
		cfg.Audio.Path = v
	}
	if v, ok := get("WHISPER_HTTP_URL"); ok {
		switch cfg.STT.Name {
		case "", ProviderWhisper:
			cfg.STT.Name = ProviderWhisper
			cfg.STT.BaseURL = v
		default:
			slog.Warn("WHISPER_HTTP_URL ignored; primary stt provider is not whisper", "provider", cfg.STT.Name)
		}
	}
	if v, ok := get("WHISPER_WS_URL"); ok {
		cfg.STT.WSURL = v
		if cfg.STT.Name == "" {
			cfg.STT.Name = ProviderWhisperWS
			cfg.STT.BaseURL = v
		}
	}
	parseDur("WHISPER_HTTP_TIMEOUT", &cfg.STT.Timeout)
	parseDur("WS_CONNECT_TIMEOUT", &cfg.STT.ConnectTimeout)
	parseInt("WS_MAX_MSG_SIZE", &cfg.STT.MaxMessageBytes)
	parseInt("MAX_UPLOAD_BYTES", &cfg.STT.MaxUploadBytes)

	return errors.Join(errs...)
}

// ApplyDefaults fills zero-valued fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = LogFormatAuto
	}
	if cfg.Script.Path == "" {
		cfg.Script.Path = DefaultScriptPath
	}
	if cfg.Script.ChunkSize == 0 {
		cfg.Script.ChunkSize = DefaultChunkSize
	}
	if cfg.Audio.Path == "" {
		cfg.Audio.Path = DefaultAudioPath
	}
	if cfg.Match.Scorer == "" {
		cfg.Match.Scorer = DefaultScorer
	}
	if cfg.STT.Timeout == 0 {
		cfg.STT.Timeout = DefaultSTTTimeout
	}
	if cfg.STT.ConnectTimeout == 0 {
		cfg.STT.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.STT.MaxMessageBytes == 0 {
		cfg.STT.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.STT.MaxUploadBytes == 0 {
		cfg.STT.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.STT.WSURL == "" && cfg.STT.Name == ProviderWhisperWS {
		cfg.STT.WSURL = cfg.STT.BaseURL
	}
	if cfg.Observe.MetricsPath == "" {
		cfg.Observe.MetricsPath = DefaultMetricsPath
	}
	if cfg.Observe.ServiceName == "" {
		cfg.Observe.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: auto, text, json", cfg.Server.LogFormat))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Script / match
	if cfg.Script.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("script.chunk_size %d must not be negative", cfg.Script.ChunkSize))
	}
	switch strings.ToLower(cfg.Match.Scorer) {
	case "", "token_set", "ratio":
	default:
		errs = append(errs, fmt.Errorf("match.scorer %q is invalid; valid values: token_set, ratio", cfg.Match.Scorer))
	}
	if cfg.Match.WindowRadius < 0 {
		errs = append(errs, fmt.Errorf("match.window_radius %d must not be negative", cfg.Match.WindowRadius))
	}

	// STT
	if cfg.STT.Timeout < 0 {
		errs = append(errs, fmt.Errorf("stt.timeout %s must not be negative", cfg.STT.Timeout))
	}
	if cfg.STT.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("stt.connect_timeout %s must not be negative", cfg.STT.ConnectTimeout))
	}
	if cfg.STT.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("stt.max_upload_bytes %d must not be negative", cfg.STT.MaxUploadBytes))
	}
	if cfg.STT.Name == "" {
		if len(cfg.STT.Fallbacks) > 0 {
			errs = append(errs, errors.New("stt.fallbacks requires a primary stt.name"))
		} else {
			slog.Warn("no stt provider configured; /stt-proxy will answer 503")
		}
	} else {
		errs = append(errs, validateEntry("stt", cfg.STT.ProviderEntry)...)
	}
	for i, fb := range cfg.STT.Fallbacks {
		prefix := fmt.Sprintf("stt.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		errs = append(errs, validateEntry(prefix, fb)...)
	}

	// Observe
	if p := cfg.Observe.MetricsPath; p != "" && p != "-" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("observe.metrics_path %q must start with /", p))
	}

	return errors.Join(errs...)
}

// validateEntry checks the fields a provider needs before its factory runs.
func validateEntry(prefix string, e ProviderEntry) []error {
	validateProviderName(prefix, e.Name)
	var errs []error
	switch e.Name {
	case ProviderWhisper, ProviderWhisperWS:
		if e.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required for provider %q", prefix, e.Name))
		}
	case ProviderOpenAI:
		if e.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required for provider %q", prefix, e.Name))
		}
	}
	return errs
}

// validateProviderName logs a warning if name is not one of
// [ValidProviderNames].
func validateProviderName(prefix, name string) {
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown stt provider name, may be a typo or a custom registration",
		"field", prefix+".name",
		"name", name,
		"known", ValidProviderNames,
	)
}
