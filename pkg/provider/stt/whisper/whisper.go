// Package whisper provides an STT provider for Whisper servers that accept a
// multipart WAV upload over HTTP.
//
// The provider POSTs the audio as form field "file" (filename "chunk.wav",
// content type "audio/wav") together with optional "language" and "model"
// fields, and normalises the reply with [stt.ExtractText]. Servers that
// report their own inference time in an "elapsed_s" field get it surfaced as
// [stt.Transcript.ServerElapsed].
//
// Usage:
//
//	p, err := whisper.New("http://gpu-host:5001/stt",
//	    whisper.WithLanguage("ko"),
//	    whisper.WithTimeout(90*time.Second),
//	)
//	tr, err := p.Transcribe(ctx, wavBytes, stt.Options{})
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/MrWong99/cueline/pkg/provider/stt"
)

const (
	// DefaultPath is appended to a server URL that has no path of its own.
	DefaultPath = "/stt"

	defaultTimeout = 90 * time.Second

	// maxReplyBytes bounds how much of a reply body is read. Transcripts are
	// small; anything larger is a misbehaving server.
	maxReplyBytes = 8 << 20
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the server (e.g.
// "large-v3"). When empty the server uses whichever model it was started
// with; this is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default language hint sent with every request. A
// per-request [stt.Options.Language] overrides it.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout bounds a whole request, upload and inference included.
// Defaults to 90 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its Timeout is used as is.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements stt.Provider against a Whisper HTTP endpoint.
type Provider struct {
	endpoint   string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider posting to serverURL. A URL without a path gets
// [DefaultPath] appended.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("whisper: parse server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("whisper: server URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultPath
	}

	p := &Provider{
		endpoint:   u.String(),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Endpoint returns the URL requests are posted to.
func (p *Provider) Endpoint() string { return p.endpoint }

// Transcribe uploads audio and returns the recognised text.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (stt.Transcript, error) {
	opts = opts.WithDefaults()
	lang := opts.Language
	if lang == "" {
		lang = p.language
	}

	body, contentType, err := p.encodeForm(audio, opts, lang)
	if err != nil {
		return stt.Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, stt.Classify(fmt.Errorf("whisper: http request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	elapsed := time.Since(start)
	if err != nil {
		return stt.Transcript{}, stt.Classify(fmt.Errorf("whisper: read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return stt.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d: %w", resp.StatusCode, stt.ErrUnavailable)
	}

	return stt.ParseReply(data, elapsed), nil
}

func (p *Provider) encodeForm(audio []byte, opts stt.Options, lang string) (io.Reader, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	// CreateFormFile hard-codes application/octet-stream; Whisper servers
	// sniff the part type, so set it explicitly.
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, opts.Filename))
	h.Set("Content-Type", opts.ContentType)
	fw, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return nil, "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return nil, "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}
