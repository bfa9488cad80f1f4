package main

import (
	"log/slog"

	"github.com/MrWong99/cueline/internal/config"
	"github.com/MrWong99/cueline/pkg/provider/stt"
	"github.com/MrWong99/cueline/pkg/provider/stt/openai"
	"github.com/MrWong99/cueline/pkg/provider/stt/whisper"
	"github.com/MrWong99/cueline/pkg/provider/stt/whisperws"
)

// registerBuiltinProviders wires the STT factories that ship with cueline
// into reg. Entries carry endpoint and credentials; the shared timeouts and
// limits come from sc.
func registerBuiltinProviders(reg *config.Registry, sc config.STTConfig) {
	reg.RegisterSTT(config.ProviderWhisper, func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []whisper.Option{whisper.WithTimeout(sc.Timeout.Std())}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT(config.ProviderWhisperWS, func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []whisperws.Option{
			whisperws.WithConnectTimeout(sc.ConnectTimeout.Std()),
			whisperws.WithResponseTimeout(sc.Timeout.Std()),
			whisperws.WithReadLimit(sc.MaxMessageBytes),
		}
		if entry.Language != "" {
			opts = append(opts, whisperws.WithLanguage(entry.Language))
		}
		if entry.APIKey != "" {
			opts = append(opts, whisperws.WithAPIKey(entry.APIKey))
		}
		return whisperws.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT(config.ProviderOpenAI, func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []openai.Option{openai.WithTimeout(sc.Timeout.Std())}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if entry.Language != "" {
			opts = append(opts, openai.WithLanguage(entry.Language))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, name := range reg.STTNames() {
		slog.Debug("registered provider", "kind", "stt", "name", name)
	}
}
