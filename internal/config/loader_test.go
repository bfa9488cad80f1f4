package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/cueline/internal/config"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestApplyEnv_DeploymentKnobs(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	err := config.ApplyEnv(cfg, envMap(map[string]string{
		"PORT":                 "8001",
		"LOG_LEVEL":            "DEBUG",
		"SCRIPT_PATH":          "/srv/script.txt",
		"AUDIO_FILE":           "/srv/take1.wav",
		"WHISPER_HTTP_URL":     "http://whisper:5001/stt",
		"WHISPER_WS_URL":       "ws://whisper:5001/ws",
		"WHISPER_HTTP_TIMEOUT": "120",
		"WS_CONNECT_TIMEOUT":   "7.5",
		"WS_MAX_MSG_SIZE":      "1000",
		"MAX_UPLOAD_BYTES":     "2000",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Server.ListenAddr != ":8001" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q, want lower-cased debug", cfg.Server.LogLevel)
	}
	if cfg.Script.Path != "/srv/script.txt" || cfg.Audio.Path != "/srv/take1.wav" {
		t.Errorf("paths = %q / %q", cfg.Script.Path, cfg.Audio.Path)
	}
	if cfg.STT.Name != config.ProviderWhisper || cfg.STT.BaseURL != "http://whisper:5001/stt" {
		t.Errorf("primary = %+v, want whisper from WHISPER_HTTP_URL", cfg.STT.ProviderEntry)
	}
	if cfg.STT.WSURL != "ws://whisper:5001/ws" {
		t.Errorf("ws_url = %q", cfg.STT.WSURL)
	}
	if cfg.STT.Timeout.Std() != 120*time.Second {
		t.Errorf("timeout = %s", cfg.STT.Timeout)
	}
	if cfg.STT.ConnectTimeout.Std() != 7500*time.Millisecond {
		t.Errorf("connect_timeout = %s", cfg.STT.ConnectTimeout)
	}
	if cfg.STT.MaxMessageBytes != 1000 || cfg.STT.MaxUploadBytes != 2000 {
		t.Errorf("limits = %d / %d", cfg.STT.MaxMessageBytes, cfg.STT.MaxUploadBytes)
	}
}

func TestApplyEnv_WSOnlyBecomesPrimary(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	if err := config.ApplyEnv(cfg, envMap(map[string]string{"WHISPER_WS_URL": "ws://w/ws"})); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.STT.Name != config.ProviderWhisperWS || cfg.STT.BaseURL != "ws://w/ws" {
		t.Errorf("primary = %+v, want whisper-ws", cfg.STT.ProviderEntry)
	}
}

func TestApplyEnv_HTTPURLDoesNotReplaceOtherProvider(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{STT: config.STTConfig{ProviderEntry: config.ProviderEntry{Name: "openai", APIKey: "k"}}}
	if err := config.ApplyEnv(cfg, envMap(map[string]string{"WHISPER_HTTP_URL": "http://w/stt"})); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.STT.Name != "openai" || cfg.STT.BaseURL != "" {
		t.Errorf("primary = %+v, want openai untouched", cfg.STT.ProviderEntry)
	}
}

func TestApplyEnv_EnvBeatsFile(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader("server:\n  listen_addr: \":9000\"\n"),
		config.WithEnv(envMap(map[string]string{"PORT": "9100"})))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9100" {
		t.Errorf("listen_addr = %q, want :9100", cfg.Server.ListenAddr)
	}
}

func TestApplyEnv_BadValuesJoined(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	err := config.ApplyEnv(cfg, envMap(map[string]string{
		"PORT":               "eighty",
		"MAX_UPLOAD_BYTES":   "lots",
		"WS_CONNECT_TIMEOUT": "whenever",
	}))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"PORT", "MAX_UPLOAD_BYTES", "WS_CONNECT_TIMEOUT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestApplyEnv_BlankValuesIgnored(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Script: config.ScriptConfig{Path: "keep.txt"}}
	if err := config.ApplyEnv(cfg, envMap(map[string]string{"SCRIPT_PATH": "  "})); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Script.Path != "keep.txt" {
		t.Errorf("script path = %q, want keep.txt", cfg.Script.Path)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name:    "invalid log level",
			yaml:    "server:\n  log_level: verbose\n",
			wantErr: []string{"server.log_level"},
		},
		{
			name:    "invalid log format",
			yaml:    "server:\n  log_format: xml\n",
			wantErr: []string{"server.log_format"},
		},
		{
			name:    "tls needs both files",
			yaml:    "server:\n  tls:\n    cert_file: a.pem\n",
			wantErr: []string{"server.tls"},
		},
		{
			name:    "invalid scorer",
			yaml:    "match:\n  scorer: cosine\n",
			wantErr: []string{"match.scorer"},
		},
		{
			name:    "negative window",
			yaml:    "match:\n  window_radius: -1\n",
			wantErr: []string{"match.window_radius"},
		},
		{
			name:    "whisper needs base_url",
			yaml:    "stt:\n  name: whisper\n",
			wantErr: []string{"stt.base_url"},
		},
		{
			name:    "openai needs api_key",
			yaml:    "stt:\n  name: openai\n",
			wantErr: []string{"stt.api_key"},
		},
		{
			name:    "fallbacks need primary",
			yaml:    "stt:\n  fallbacks:\n    - name: openai\n      api_key: k\n",
			wantErr: []string{"primary stt.name"},
		},
		{
			name:    "fallback needs name",
			yaml:    "stt:\n  name: whisper\n  base_url: http://w\n  fallbacks:\n    - base_url: http://x\n",
			wantErr: []string{"stt.fallbacks[0].name"},
		},
		{
			name:    "metrics path must be absolute",
			yaml:    "observe:\n  metrics_path: metrics\n",
			wantErr: []string{"observe.metrics_path"},
		},
		{
			name:    "multiple errors joined",
			yaml:    "server:\n  log_level: loud\nmatch:\n  scorer: nope\n",
			wantErr: []string{"server.log_level", "match.scorer"},
		},
		{
			name: "metrics disabled is valid",
			yaml: "observe:\n  metrics_path: \"-\"\n",
		},
		{
			name: "unknown provider name only warns",
			yaml: "stt:\n  name: custom-recogniser\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml), config.WithEnv(noEnv))
			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error should mention %q, got: %v", want, err)
				}
			}
		})
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace should be invalid")
	}
}
