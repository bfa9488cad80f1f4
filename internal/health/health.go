// Package health serves the liveness and readiness probes of the rehearsal
// server.
//
// /healthz answers 200 while the process can serve HTTP. /readyz runs every
// registered [Checker] and answers 503 when any fails:
//
//	{
//	  "status": "fail",
//	  "checks": {
//	    "script": {"status": "ok", "detail": {"lines": 42, "scenes": 5}},
//	    "stt":    {"status": "fail", "error": "all recognisers unavailable (...)",
//	               "detail": {"breakers": [{"name": "whisper", "state": "open"}]}}
//	  }
//	}
//
// Detail is reported whether or not the check passed, so an operator can see
// what the server is working with.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check.
type Checker struct {
	// Name keys the check in the /readyz body.
	Name string

	// Check returns nil when the dependency is usable. It must respect ctx.
	Check func(ctx context.Context) error

	// Detail, when set, describes what the check looked at. It is called
	// after Check and must be JSON-encodable.
	Detail func() any
}

// CheckResult is the outcome of one [Checker].
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Detail any    `json:"detail,omitempty"`
}

// Report is the /readyz and /healthz body.
type Report struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// OK reports whether every check passed.
func (r Report) OK() bool { return r.Status == "ok" }

// Handler serves the probes. The checker list is fixed at construction.
type Handler struct {
	checkers []Checker
}

// New creates a Handler evaluating checkers in order on each /readyz.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Evaluate runs every checker, each with its own [checkTimeout] deadline.
func (h *Handler) Evaluate(ctx context.Context) Report {
	rep := Report{Status: "ok", Checks: make(map[string]CheckResult, len(h.checkers))}
	for _, c := range h.checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()

		res := CheckResult{Status: "ok"}
		if err != nil {
			res.Status = "fail"
			res.Error = err.Error()
			rep.Status = "fail"
		}
		if c.Detail != nil {
			res.Detail = c.Detail()
		}
		rep.Checks[c.Name] = res
	}
	return rep
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Report{Status: "ok"})
}

// Readyz answers 200 when every check passes and 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Evaluate(r.Context())
	status := http.StatusOK
	if !rep.OK() {
		status = http.StatusServiceUnavailable
		for name, c := range rep.Checks {
			if c.Status != "ok" {
				slog.Debug("readiness check failed", "check", name, "err", c.Error)
			}
		}
	}
	writeJSON(w, status, rep)
}

// Register mounts GET /healthz and GET /readyz on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("health: encode response", "err", err)
	}
}
