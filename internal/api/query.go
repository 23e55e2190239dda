package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lectern-ai/lectern/internal/assistant"
	"github.com/lectern-ai/lectern/internal/log"
	"github.com/lectern-ai/lectern/internal/pipeline"
)

// maxQueryBody bounds the request body for query requests. Queries are a few
// sentences, so 64 KiB is generous without letting clients stream megabytes.
const maxQueryBody = 64 * 1024

// queryHandler answers course questions through the assistant.
type queryHandler struct {
	assistant Answerer
	logger    log.Logger
}

// queryRequest is the body of POST /api/v1/query.
type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// queryResponse is the success body of POST /api/v1/query.
type queryResponse struct {
	Answer    string            `json:"answer"`
	Sources   []pipeline.Source `json:"sources"`
	SessionID string            `json:"session_id"`
}

// answer handles POST /api/v1/query.
//
// An empty session_id starts a new session; the created ID is returned so
// the client can thread follow-up questions. A session_id that is not a
// UUID is a 400. Pipeline-level failures do not surface here: the assistant
// folds them into the answer text, so this endpoint only fails on transport
// or storage errors.
func (h *queryHandler) answer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBody)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", h.logger)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		WriteError(w, http.StatusBadRequest, "query_required", "query must not be empty", h.logger)
		return
	}

	ans, err := h.assistant.Answer(r.Context(), req.Query, req.SessionID)
	if err != nil {
		if errors.Is(err, assistant.ErrInvalidSession) {
			WriteError(w, http.StatusBadRequest, "invalid_session", "session_id is not a valid session ID", h.logger)
			return
		}
		h.logger.Error("answering query", "error", err)
		WriteError(w, http.StatusInternalServerError, "query_failed", "processing the query failed", h.logger)
		return
	}

	sources := ans.Sources
	if sources == nil {
		sources = []pipeline.Source{}
	}

	WriteJSON(w, http.StatusOK, queryResponse{
		Answer:    ans.Text,
		Sources:   sources,
		SessionID: ans.SessionID.String(),
	}, h.logger)
}
