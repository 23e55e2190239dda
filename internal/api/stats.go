package api

import (
	"net/http"

	"github.com/lectern-ai/lectern/internal/log"
)

// statsHandler serves read-only catalog and pipeline statistics.
type statsHandler struct {
	assistant Answerer
	logger    log.Logger
}

// getCourses handles GET /api/v1/courses.
func (h *statsHandler) getCourses(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.assistant.Analytics(r.Context())
	if err != nil {
		h.logger.Error("loading course analytics", "error", err)
		WriteError(w, http.StatusInternalServerError, "analytics_failed", "loading course analytics failed", h.logger)
		return
	}

	// An empty catalog serializes as [] rather than null.
	if analytics.CourseTitles == nil {
		analytics.CourseTitles = []string{}
	}

	WriteJSON(w, http.StatusOK, analytics, h.logger)
}

// getStats handles GET /api/v1/stats.
func (h *statsHandler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.assistant.Stats(r.Context())
	if err != nil {
		h.logger.Error("loading stats", "error", err)
		WriteError(w, http.StatusInternalServerError, "stats_failed", "loading stats failed", h.logger)
		return
	}

	if stats.Courses.CourseTitles == nil {
		stats.Courses.CourseTitles = []string{}
	}

	WriteJSON(w, http.StatusOK, stats, h.logger)
}
