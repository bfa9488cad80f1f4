package resilience

import (
	"context"

	"github.com/MrWong99/cueline/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with failover across several
// recognisers. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends audio to the first backend whose breaker admits the call
// and moves down the chain on failure.
func (f *STTFallback) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (stt.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.Transcript, error) {
		if err := ctx.Err(); err != nil {
			return stt.Transcript{}, stt.Classify(err)
		}
		return p.Transcribe(ctx, audio, opts)
	})
}

// States returns the breaker state of every backend, primary first.
func (f *STTFallback) States() []EntryState { return f.group.States() }

// Available reports whether any backend would currently accept a request.
func (f *STTFallback) Available() bool { return f.group.Available() }
