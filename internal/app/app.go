// Package app wires the cueline subsystems into a running server.
//
// The App struct owns the full lifecycle: New loads the script and builds
// the matcher, the speech-to-text chain and the HTTP surface, Run serves
// until the context ends, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithScript, WithSTT,
// WithMetrics). When an option is not provided, New builds the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/cueline/internal/align"
	"github.com/MrWong99/cueline/internal/api"
	"github.com/MrWong99/cueline/internal/config"
	"github.com/MrWong99/cueline/internal/health"
	"github.com/MrWong99/cueline/internal/observe"
	"github.com/MrWong99/cueline/internal/resilience"
	"github.com/MrWong99/cueline/internal/script"
	"github.com/MrWong99/cueline/pkg/provider/stt"
	"github.com/MrWong99/cueline/pkg/provider/stt/whisperws"
)

const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	reg     *config.Registry
	version string

	// Subsystems, initialised in New.
	model   *script.Model
	matcher *align.Matcher
	metrics *observe.Metrics
	promH   http.Handler
	stt     stt.Provider
	chain   *resilience.STTFallback
	bridge  api.Bridger
	api     *api.Server
	srv     *http.Server

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithScript uses m instead of loading cfg.Script.Path.
func WithScript(m *script.Model) Option {
	return func(a *App) { a.model = m }
}

// WithSTT uses p as the recogniser instead of building the failover chain
// from the registry.
func WithSTT(p stt.Provider) Option {
	return func(a *App) { a.stt = p }
}

// WithMetrics uses m and skips OpenTelemetry SDK setup. No Prometheus
// endpoint is mounted.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithVersion sets the service version reported in telemetry.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// New creates an App by wiring all subsystems together. reg resolves the
// STT provider names in cfg; it may be nil when WithSTT is used or no
// recogniser is configured.
//
// New performs all initialisation synchronously. A script that cannot be
// loaded is fatal.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, reg: reg}
	for _, o := range opts {
		o(a)
	}

	// 1. Script.
	if err := a.initScript(); err != nil {
		return nil, fmt.Errorf("app: init script: %w", err)
	}

	// 2. Telemetry.
	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	// 3. Matcher.
	a.initMatcher()

	// 4. Speech-to-text chain and WebSocket bridge.
	if err := a.initSTT(); err != nil {
		return nil, fmt.Errorf("app: init stt: %w", err)
	}
	if err := a.initBridge(); err != nil {
		return nil, fmt.Errorf("app: init ws bridge: %w", err)
	}

	// 5. HTTP surface.
	a.initAPI()

	return a, nil
}

func (a *App) initScript() error {
	if a.model != nil {
		return nil
	}
	m, err := script.LoadFile(a.cfg.Script.Path, script.WithChunkSize(a.cfg.Script.ChunkSize))
	if err != nil {
		return err
	}
	a.model = m
	slog.Info("script loaded", "path", a.cfg.Script.Path, "lines", m.Len(), "scenes", m.SceneCount())
	return nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    a.cfg.Observe.ServiceName,
		ServiceVersion: a.version,
	})
	if err != nil {
		return err
	}
	a.metrics = tel.Metrics
	a.promH = tel.Handler
	a.closers = append(a.closers, tel.Shutdown)
	return nil
}

func (a *App) initMatcher() {
	scorer, ok := align.SelectScorer(a.cfg.Match.Scorer)
	if !ok {
		slog.Warn("unknown scorer, using character ratio", "scorer", a.cfg.Match.Scorer)
	}
	a.matcher = align.NewMatcher(a.model, scorer, align.WithMetrics(a.metrics))
}

// initSTT builds the primary recogniser and its fallbacks, each behind its
// own circuit breaker. Nothing configured leaves /stt-proxy answering 503.
func (a *App) initSTT() error {
	if a.stt != nil {
		return nil
	}
	sc := a.cfg.STT
	if sc.Name == "" {
		slog.Info("no speech recogniser configured, /stt-proxy disabled")
		return nil
	}
	if a.reg == nil {
		return errors.New("no provider registry")
	}

	primary, err := a.reg.CreateSTT(sc.ProviderEntry)
	if err != nil {
		return err
	}
	fc := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  sc.Breaker.MaxFailures,
			ResetTimeout: sc.Breaker.ResetTimeout.Std(),
			HalfOpenMax:  sc.Breaker.HalfOpenMax,
		},
	}
	chain := resilience.NewSTTFallback(primary, sc.Name, fc)
	slog.Info("provider created", "kind", "stt", "name", sc.Name, "role", "primary")

	for i, fb := range sc.Fallbacks {
		p, err := a.reg.CreateSTT(fb)
		if err != nil {
			return fmt.Errorf("fallback %d: %w", i, err)
		}
		// Names label breakers and metrics; keep them distinct when the
		// same backend kind appears twice.
		chain.AddFallback(fmt.Sprintf("%s#%d", fb.Name, i+1), p)
		slog.Info("provider created", "kind", "stt", "name", fb.Name, "role", "fallback")
	}

	a.chain = chain
	a.stt = chain
	return nil
}

func (a *App) initBridge() error {
	sc := a.cfg.STT
	if sc.WSURL == "" {
		return nil
	}
	opts := []whisperws.Option{
		whisperws.WithConnectTimeout(sc.ConnectTimeout.Std()),
		whisperws.WithReadLimit(sc.MaxMessageBytes),
	}
	if sc.Name == config.ProviderWhisperWS && sc.APIKey != "" {
		opts = append(opts, whisperws.WithAPIKey(sc.APIKey))
	}
	p, err := whisperws.New(sc.WSURL, opts...)
	if err != nil {
		return err
	}
	a.bridge = p
	return nil
}

func (a *App) initAPI() {
	sc := a.cfg.STT
	opts := []api.Option{
		api.WithMetrics(a.metrics),
		api.WithAudioFile(a.cfg.Audio.Path),
		api.WithStaticDir(a.cfg.Server.StaticDir),
		api.WithMediaDir(a.cfg.Server.MediaDir),
		api.WithMaxUploadBytes(sc.MaxUploadBytes),
		api.WithWindowRadius(a.cfg.Match.WindowRadius),
		api.WithLanguage(sc.Language),
	}

	var breakers health.BreakerStates
	if a.chain != nil {
		breakers = a.chain
	}
	opts = append(opts, api.WithHealth(health.New(
		health.ScriptChecker(a.model),
		health.STTChecker(breakers),
	)))

	if a.stt != nil {
		opts = append(opts, api.WithSTT(a.stt, sc.Name, sttURL(sc)))
	}
	if a.bridge != nil {
		opts = append(opts, api.WithBridge(a.bridge))
	}
	if a.promH != nil && a.cfg.Observe.MetricsPath != "-" {
		opts = append(opts, api.WithMetricsHandler(a.cfg.Observe.MetricsPath, a.promH))
	}

	a.api = api.New(a.matcher, opts...)
	a.srv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.api,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// sttURL is what /health reports as the recogniser endpoint.
func sttURL(sc config.STTConfig) string {
	if sc.BaseURL != "" {
		return sc.BaseURL
	}
	return sc.WSURL
}

// Handler returns the HTTP handler of the running app.
func (a *App) Handler() http.Handler { return a.api }

// Model returns the loaded script.
func (a *App) Model() *script.Model { return a.model }

// Matcher returns the matcher built over the script.
func (a *App) Matcher() *align.Matcher { return a.matcher }

// Run listens on the configured address and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is cancelled. It does not shut the
// server down; call Shutdown for that.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			slog.Info("listening", "addr", ln.Addr().String(), "tls", true)
			err = a.srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			slog.Info("listening", "addr", ln.Addr().String())
			err = a.srv.Serve(ln)
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Shutdown stops accepting requests, waits for in-flight ones and then runs
// the closers. It respects the context deadline: if ctx expires before all
// closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.srv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
