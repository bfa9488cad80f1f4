// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A provider wraps a remote transcription service (a Whisper HTTP server, a
// Whisper WebSocket endpoint, or the OpenAI audio API) behind a single batch
// call: one complete WAV upload in, one flat text transcript out. Each
// backend normalises its own response shape with [ExtractText] so callers
// never see provider-specific JSON.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

var (
	// ErrTimeout is wrapped by providers when the backend did not answer
	// within the configured deadline.
	ErrTimeout = errors.New("stt: backend timed out")

	// ErrUnavailable is wrapped by providers when the backend could not be
	// reached or rejected the request.
	ErrUnavailable = errors.New("stt: backend unavailable")
)

// Options carries per-request hints. Zero values defer to provider defaults.
type Options struct {
	// Language is a BCP-47 language hint (e.g. "ko", "en"). Empty lets the
	// backend auto-detect.
	Language string

	// Filename is the upload file name sent to multipart backends.
	// Default: "chunk.wav".
	Filename string

	// ContentType is the MIME type of the audio. Default: "audio/wav".
	ContentType string
}

// Defaults used when [Options] leaves a field empty.
const (
	DefaultFilename    = "chunk.wav"
	DefaultContentType = "audio/wav"
)

// WithDefaults returns o with empty fields filled in.
func (o Options) WithDefaults() Options {
	if o.Filename == "" {
		o.Filename = DefaultFilename
	}
	if o.ContentType == "" {
		o.ContentType = DefaultContentType
	}
	return o
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe sends one complete audio payload (normally a WAV file) to
	// the backend and returns the recognised text.
	//
	// Returned errors wrap [ErrTimeout] when the deadline passed and
	// [ErrUnavailable] when the backend could not be reached or failed.
	Transcribe(ctx context.Context, audio []byte, opts Options) (Transcript, error)
}

// Classify wraps err with [ErrTimeout] or [ErrUnavailable] depending on
// whether it stems from a deadline. Errors that already carry one of the
// sentinels are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) {
		return err
	}
	var te interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &te) && te.Timeout()) {
		return errors.Join(ErrTimeout, err)
	}
	return errors.Join(ErrUnavailable, err)
}
