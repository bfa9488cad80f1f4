// Package api serves the rehearsal HTTP surface: the parsed script, line
// matching, the speech-to-text proxy, the WebSocket bridge to a streaming
// recogniser and the reference audio track.
//
// Every JSON response carries an "ok" field. Failures answer
// {"ok":false,"error":"..."} with a 4xx or 5xx status.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/MrWong99/cueline/internal/align"
	"github.com/MrWong99/cueline/internal/health"
	"github.com/MrWong99/cueline/internal/observe"
	"github.com/MrWong99/cueline/internal/script"
	"github.com/MrWong99/cueline/pkg/provider/stt"
)

// DefaultMaxUploadBytes caps /stt-proxy bodies when no limit is configured.
const DefaultMaxUploadBytes = 50_000_000

// Bridger relays an accepted browser socket to a streaming recogniser.
// *whisperws.Provider satisfies it.
type Bridger interface {
	Bridge(ctx context.Context, client *websocket.Conn) error
}

// Option configures a [Server].
type Option func(*Server)

// WithSTT enables /stt-proxy. name and url are reported by /health.
func WithSTT(p stt.Provider, name, url string) Option {
	return func(s *Server) {
		s.stt = p
		s.sttName = name
		s.sttURL = url
	}
}

// WithLanguage sets the language hint passed to the recogniser.
func WithLanguage(lang string) Option {
	return func(s *Server) { s.language = lang }
}

// WithBridge enables /ws.
func WithBridge(b Bridger) Option {
	return func(s *Server) { s.bridge = b }
}

// WithMetrics sets the instruments used by the middleware and the proxy.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithMetricsHandler mounts h (usually a Prometheus handler) at path.
func WithMetricsHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metricsHandler = h
	}
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithAudioFile sets the file streamed by /audio.
func WithAudioFile(path string) Option {
	return func(s *Server) { s.audioPath = path }
}

// WithStaticDir serves dir at /.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithMediaDir serves dir at /media/.
func WithMediaDir(dir string) Option {
	return func(s *Server) { s.mediaDir = dir }
}

// WithMaxUploadBytes limits /stt-proxy bodies. Values <= 0 keep the default.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithWindowRadius sets the candidate window built from a "near" hint.
func WithWindowRadius(r int) Option {
	return func(s *Server) { s.windowRadius = r }
}

// Server holds the immutable state shared by all handlers. It is safe for
// concurrent use.
type Server struct {
	model   *script.Model
	matcher *align.Matcher
	metrics *observe.Metrics

	stt      stt.Provider
	sttName  string
	sttURL   string
	language string
	bridge   Bridger

	health         *health.Handler
	metricsPath    string
	metricsHandler http.Handler

	audioPath    string
	staticDir    string
	mediaDir     string
	maxUpload    int64
	windowRadius int

	handler http.Handler
}

// New builds a Server for the given matcher. The script is taken from the
// matcher so both always agree.
func New(matcher *align.Matcher, opts ...Option) *Server {
	s := &Server{
		model:     matcher.Model(),
		matcher:   matcher,
		metrics:   observe.DefaultMetrics(),
		maxUpload: DefaultMaxUploadBytes,
	}
	for _, o := range opts {
		o(s)
	}
	s.handler = observe.Middleware(s.metrics)(s.routes())
	return s
}

// Handler returns the root handler with tracing and request logging applied.
func (s *Server) Handler() http.Handler { return s.handler }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /script", s.handleScript)
	mux.HandleFunc("POST /match", s.handleMatch)
	mux.HandleFunc("POST /similar", s.handleMatch)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /stt-proxy", s.handleSTTProxy)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /audio", s.handleAudio)

	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsHandler != nil && s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, s.metricsHandler)
	}
	if s.mediaDir != "" {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(s.mediaDir))))
	}
	if s.staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.staticDir)))
	}
	return mux
}

type healthResponse struct {
	OK          bool   `json:"ok"`
	STTProvider string `json:"stt_provider"`
	STTURL      string `json:"stt_url"`
	ScriptLines int    `json:"script_lines"`
	SceneCount  int    `json:"scene_count"`
	Scorer      string `json:"scorer"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:          true,
		STTProvider: s.sttName,
		STTURL:      s.sttURL,
		ScriptLines: s.model.Len(),
		SceneCount:  s.model.SceneCount(),
		Scorer:      s.matcher.Scorer().Name(),
	})
}

type errorResponse struct {
	OK      bool     `json:"ok"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, details ...string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}
