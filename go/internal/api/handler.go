package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/live"
	"github.com/mcdev12/quizlive/go/internal/models"
)

// Handler exposes the session command surface over HTTP+JSON. Every
// endpoint is a thin parse-call-encode wrapper; all rules live in the
// coordinator.
type Handler struct {
	coordinator *live.Coordinator
}

// NewHandler creates the API handler.
func NewHandler(coordinator *live.Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

// RegisterRoutes registers all session routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions", h.CreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("POST /v1/sessions/{id}/start", h.StartSession)
	mux.HandleFunc("POST /v1/sessions/{id}/next", h.NextItem)
	mux.HandleFunc("POST /v1/sessions/{id}/end", h.EndSession)
	mux.HandleFunc("POST /v1/sessions/{id}/join", h.JoinSession)
	mux.HandleFunc("POST /v1/sessions/{id}/answers", h.SubmitAnswer)
	mux.HandleFunc("POST /v1/join", h.JoinByCode)
}

type createSessionRequest struct {
	HostID      uuid.UUID          `json:"host_id"`
	ContentType models.ContentType `json:"content_type"`
	Order       []models.ItemRef   `json:"order"`
}

type sessionResponse struct {
	Session  models.Session `json:"session"`
	JoinCode string         `json:"join_code,omitempty"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.coordinator.Create(r.Context(), live.CreateRequest{
		HostID:      req.HostID,
		ContentType: req.ContentType,
		Order:       req.Order,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		Session:  session,
		JoinCode: live.FormatJoinCode(session.JoinCode),
	})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	partyID, err := uuid.Parse(r.URL.Query().Get("party_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid party_id")
		return
	}

	snap, err := h.coordinator.Snapshot(r.Context(), sessionID, partyID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type hostCommandRequest struct {
	HostID uuid.UUID `json:"host_id"`
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req hostCommandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.coordinator.Start(r.Context(), sessionID, req.HostID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

type nextItemRequest struct {
	HostID     uuid.UUID `json:"host_id"`
	FromCursor int       `json:"from_cursor"`
}

func (h *Handler) NextItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req nextItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.coordinator.Next(r.Context(), sessionID, req.HostID, req.FromCursor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req hostCommandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.coordinator.End(r.Context(), sessionID, req.HostID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

type joinRequest struct {
	JoinCode   string             `json:"join_code,omitempty"`
	ExternalID string             `json:"external_id,omitempty"`
	Guest      *live.GuestProfile `json:"guest,omitempty"`
	ResumeID   uuid.UUID          `json:"resume_id,omitempty"`
}

type joinResponse struct {
	Participant models.Participant `json:"participant"`
	Session     models.Session     `json:"session"`
	Resumed     bool               `json:"resumed,omitempty"`
}

func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.coordinator.Join(r.Context(), sessionID, live.JoinRequest{
		ExternalID: req.ExternalID,
		Guest:      req.Guest,
		ResumeID:   req.ResumeID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{Participant: res.Participant, Session: res.Session})
}

// JoinByCode joins via the human-entered code instead of a session ID.
func (h *Handler) JoinByCode(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.coordinator.JoinByCode(r.Context(), live.NormalizeJoinCode(req.JoinCode), live.JoinRequest{
		ExternalID: req.ExternalID,
		Guest:      req.Guest,
		ResumeID:   req.ResumeID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{Participant: res.Participant, Session: res.Session})
}

type submitAnswerRequest struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	ItemID        uuid.UUID `json:"item_id"`
	OptionID      uuid.UUID `json:"option_id,omitempty"`
	FreeText      string    `json:"free_text,omitempty"`
	TimeTakenMs   int64     `json:"time_taken_ms"`
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req submitAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.coordinator.Submit(r.Context(), live.SubmitRequest{
		SessionID:     sessionID,
		ParticipantID: req.ParticipantID,
		ItemID:        req.ItemID,
		OptionID:      req.OptionID,
		FreeText:      req.FreeText,
		TimeTakenMs:   req.TimeTakenMs,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps coordinator sentinels onto HTTP statuses. Conflicts
// of timing (duplicate advance, closed window) come back as 409 so clients
// can tell them apart from bad input.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, live.ErrUnknownSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, live.ErrInvalidOrder),
		errors.Is(err, live.ErrInvalidGuestProfile),
		errors.Is(err, live.ErrUnknownOption):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, live.ErrNotHost):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, live.ErrSessionNotJoinable):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, live.ErrAlreadyStarted),
		errors.Is(err, live.ErrNotActive),
		errors.Is(err, live.ErrNoParticipants),
		errors.Is(err, live.ErrDuplicateTransition),
		errors.Is(err, live.ErrCollectionClosed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("unhandled session error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
