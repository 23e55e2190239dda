package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/lectern-ai/lectern/internal/log"
	"github.com/lectern-ai/lectern/internal/session"
)

// sessionHandler exposes session lifecycle mutations. Reading happens
// implicitly through /api/v1/query, which threads history into the prompt.
type sessionHandler struct {
	store  SessionStore
	logger log.Logger
}

// clearResponse is the success body of POST /api/v1/sessions/{id}/clear.
type clearResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// clear handles POST /api/v1/sessions/{id}/clear. The session itself
// survives with an empty history, so the client keeps its session ID.
func (h *sessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := h.store.Clear(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			WriteError(w, http.StatusNotFound, "session_not_found", "session does not exist", h.logger)
			return
		}
		h.logger.Error("clearing session", "error", err, "session", id)
		WriteError(w, http.StatusInternalServerError, "clear_failed", "clearing the session failed", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, clearResponse{
		Message:   "Session cleared successfully",
		SessionID: id.String(),
	}, h.logger)
}

// delete handles DELETE /api/v1/sessions/{id}. Returns 204 on success.
func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			WriteError(w, http.StatusNotFound, "session_not_found", "session does not exist", h.logger)
			return
		}
		h.logger.Error("deleting session", "error", err, "session", id)
		WriteError(w, http.StatusInternalServerError, "delete_failed", "deleting the session failed", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// sessionID parses the {id} path segment, writing a 400 on failure.
func (h *sessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_session", "session ID must be a UUID", h.logger)
		return uuid.Nil, false
	}
	return id, true
}
