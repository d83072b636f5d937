package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/broadcast"
	"github.com/mcdev12/quizlive/go/internal/live"
)

// Feed is the coordinator surface the gateway needs: attach a party to a
// session's event stream.
type Feed interface {
	Subscribe(ctx context.Context, sessionID, partyID uuid.UUID) (*broadcast.Subscriber, error)
}

// WebSocketHandler handles WebSocket upgrade requests for live sessions.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	feed              Feed
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager, feed Feed) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		feed:              feed,
	}
}

// HandleSessionConnection subscribes a party to a session and upgrades the
// request to a WebSocket. The first frame on the socket is always a full
// state snapshot.
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	sessionIDStr := r.URL.Query().Get("session_id")
	if sessionIDStr == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		http.Error(w, "invalid session_id format", http.StatusBadRequest)
		return
	}

	// party_id is the host's user ID or a participant ID handed out by join.
	// In production this would come from a JWT or session cookie.
	partyIDStr := r.URL.Query().Get("party_id")
	partyID, err := uuid.Parse(partyIDStr)
	if err != nil {
		http.Error(w, "invalid party_id format", http.StatusBadRequest)
		return
	}

	sub, err := h.feed.Subscribe(r.Context(), sessionID, partyID)
	if err != nil {
		switch {
		case errors.Is(err, live.ErrUnknownSession):
			http.Error(w, "session not found", http.StatusNotFound)
		case errors.Is(err, live.ErrSessionNotJoinable):
			http.Error(w, "session not joinable", http.StatusForbidden)
		default:
			log.Error().
				Err(err).
				Str("session_id", sessionID.String()).
				Str("party_id", partyID.String()).
				Msg("failed to subscribe to session feed")
			http.Error(w, "failed to subscribe", http.StatusInternalServerError)
		}
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, sessionID, sub); err != nil {
		// Upgrade writes its own error response; just release the feed.
		sub.Close()
	}
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, sessions := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"total_connections":%d,"active_sessions":%d}`, total, sessions)
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/session", h.HandleSessionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
