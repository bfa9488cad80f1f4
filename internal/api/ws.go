package api

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/cueline/internal/observe"
)

// handleWS upgrades the browser connection and relays it to the streaming
// recogniser until either side hangs up.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeError(w, http.StatusNotFound, "websocket bridge not configured")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The UI may be served from a dev server on another port.
		InsecureSkipVerify: true,
	})
	if err != nil {
		// Accept has already answered the request.
		observe.Logger(r.Context()).Debug("ws bridge: upgrade failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	session := uuid.NewString()
	log := observe.Logger(ctx).With("session", session)
	done := s.metrics.BridgeOpened(ctx)
	defer done()

	log.Info("ws bridge: opened", "remote", r.RemoteAddr)
	if err := s.bridge.Bridge(ctx, conn); err != nil {
		log.Warn("ws bridge: closed with error", "err", err)
		return
	}
	log.Info("ws bridge: closed")
}
