// Package whisperws provides an STT provider for Whisper servers that take a
// WAV file over a WebSocket.
//
// Each [Provider.Transcribe] call opens a socket, sends the audio as one
// binary message, waits for a single reply and closes. The reply is either
// plain text or JSON carrying "text" or "segments"; [stt.ExtractText]
// flattens it.
//
// [Provider.Bridge] relays an already-accepted browser socket to the same
// endpoint so a page can talk to the recogniser through this server.
package whisperws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/cueline/pkg/provider/stt"
)

const (
	defaultConnectTimeout  = 15 * time.Second
	defaultResponseTimeout = 120 * time.Second
	defaultReadLimit       = 50_000_000
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithConnectTimeout bounds the WebSocket opening handshake. Default 15 s.
func WithConnectTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.connectTimeout = d
		}
	}
}

// WithResponseTimeout bounds the wait for the transcription reply after the
// audio has been sent. Default 120 s.
func WithResponseTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.responseTimeout = d
		}
	}
}

// WithReadLimit sets the largest message accepted from the server, and from
// the browser when bridging. Default 50 MB. A negative value disables the
// limit.
func WithReadLimit(n int64) Option {
	return func(p *Provider) {
		if n != 0 {
			p.readLimit = n
		}
	}
}

// WithLanguage adds a "language" query parameter to the socket URL.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithAPIKey sends "Authorization: Bearer <key>" on the handshake.
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
	}
}

// Provider implements stt.Provider over a Whisper WebSocket endpoint.
type Provider struct {
	url             string
	language        string
	apiKey          string
	connectTimeout  time.Duration
	responseTimeout time.Duration
	readLimit       int64
}

// New creates a Provider for the ws:// or wss:// endpoint wsURL.
func New(wsURL string, opts ...Option) (*Provider, error) {
	if wsURL == "" {
		return nil, errors.New("whisperws: URL must not be empty")
	}
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("whisperws: parse URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("whisperws: URL scheme must be ws or wss, got %q", u.Scheme)
	}

	p := &Provider{
		url:             wsURL,
		connectTimeout:  defaultConnectTimeout,
		responseTimeout: defaultResponseTimeout,
		readLimit:       defaultReadLimit,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// URL returns the endpoint the provider dials.
func (p *Provider) URL() string { return p.url }

// ReadLimit returns the per-message read limit applied to sockets.
func (p *Provider) ReadLimit() int64 { return p.readLimit }

// Transcribe sends audio as one binary message and returns the reply.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (stt.Transcript, error) {
	start := time.Now()

	conn, err := p.dial(ctx, opts.Language)
	if err != nil {
		return stt.Transcript{}, err
	}
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageBinary, audio); err != nil {
		return stt.Transcript{}, stt.Classify(fmt.Errorf("whisperws: send audio: %w", err))
	}

	rctx, cancel := context.WithTimeout(ctx, p.responseTimeout)
	defer cancel()
	_, data, err := conn.Read(rctx)
	if err != nil {
		if rctx.Err() != nil && ctx.Err() == nil {
			return stt.Transcript{}, fmt.Errorf("whisperws: no reply within %s: %w", p.responseTimeout, stt.ErrTimeout)
		}
		return stt.Transcript{}, stt.Classify(fmt.Errorf("whisperws: read reply: %w", err))
	}
	elapsed := time.Since(start)

	_ = conn.Close(websocket.StatusNormalClosure, "done")

	return stt.ParseReply(data, elapsed), nil
}

// Bridge relays messages between client and the upstream endpoint in both
// directions until either side closes or ctx ends. The caller owns client;
// Bridge closes it with the status the upstream closed with.
func (p *Provider) Bridge(ctx context.Context, client *websocket.Conn) error {
	upstream, err := p.dial(ctx, "")
	if err != nil {
		_ = client.Close(websocket.StatusTryAgainLater, "upstream unavailable")
		return err
	}
	defer upstream.CloseNow()

	client.SetReadLimit(p.readLimit)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pipe(gctx, upstream, client) })
	g.Go(func() error { return pipe(gctx, client, upstream) })
	err = g.Wait()

	status := websocket.CloseStatus(err)
	if status == -1 {
		status = websocket.StatusGoingAway
	}
	_ = client.Close(status, "")
	_ = upstream.Close(status, "")

	if isNormalClose(err) || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("whisperws: bridge: %w", err)
}

// pipe copies messages from src to dst until either fails.
func pipe(ctx context.Context, dst, src *websocket.Conn) error {
	for {
		typ, data, err := src.Read(ctx)
		if err != nil {
			return err
		}
		if err := dst.Write(ctx, typ, data); err != nil {
			return err
		}
	}
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return true
	}
	return false
}

func (p *Provider) dial(ctx context.Context, lang string) (*websocket.Conn, error) {
	target, err := p.buildURL(lang)
	if err != nil {
		return nil, fmt.Errorf("whisperws: build URL: %w", err)
	}

	headers := http.Header{}
	if p.apiKey != "" {
		headers.Set("Authorization", "Bearer "+p.apiKey)
	}

	dctx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, target, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, stt.Classify(fmt.Errorf("whisperws: dial: %w", err))
	}
	conn.SetReadLimit(p.readLimit)
	return conn, nil
}

func (p *Provider) buildURL(lang string) (string, error) {
	if lang == "" {
		lang = p.language
	}
	if lang == "" {
		return p.url, nil
	}
	u, err := url.Parse(p.url)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("language", lang)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
