package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/cueline/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":8000", LogLevel: config.LogInfo},
		Script: config.ScriptConfig{Path: "media/scripts.txt", ChunkSize: 5},
		STT: config.STTConfig{
			ProviderEntry: config.ProviderEntry{Name: "whisper", BaseURL: "http://w/stt"},
			Fallbacks:     []config.ProviderEntry{{Name: "openai", APIKey: "k"}},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(baseConfig(), baseConfig())
	if d.Changed() {
		t.Errorf("expected no changes, got %+v", d)
	}
}

func TestDiff_LogLevelOnly(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("expected log level change to debug, got %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level alone should not need a restart, got %v", d.RestartRequired)
	}
}

func TestDiff_RestartSections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":9000" }, []string{"server"}},
		{"tls added", func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "c", KeyFile: "k"} }, []string{"server"}},
		{"script path", func(c *config.Config) { c.Script.Path = "other.txt" }, []string{"script"}},
		{"audio", func(c *config.Config) { c.Audio.Path = "b.wav" }, []string{"audio"}},
		{"scorer", func(c *config.Config) { c.Match.Scorer = "ratio" }, []string{"match"}},
		{"stt url", func(c *config.Config) { c.STT.BaseURL = "http://other/stt" }, []string{"stt"}},
		{"stt fallback", func(c *config.Config) { c.STT.Fallbacks[0].APIKey = "k2" }, []string{"stt"}},
		{"observe", func(c *config.Config) { c.Observe.MetricsPath = "/m" }, []string{"observe"}},
		{
			"several",
			func(c *config.Config) { c.Script.ChunkSize = 9; c.STT.Timeout = 1 },
			[]string{"script", "stt"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old, new := baseConfig(), baseConfig()
			tc.mutate(new)
			d := config.Diff(old, new)
			if !slices.Equal(d.RestartRequired, tc.want) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tc.want)
			}
			if d.LogLevelChanged {
				t.Error("LogLevelChanged should be false")
			}
		})
	}
}
