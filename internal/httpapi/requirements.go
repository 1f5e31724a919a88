package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ent0n29/sourcebot/internal/requirements"
)

func (s *Server) handleListRequirements(w http.ResponseWriter, r *http.Request) {
	if s.requirements == nil {
		respondError(w, http.StatusNotImplemented, "requirements_disabled", "requirements store not configured")
		return
	}

	q := r.URL.Query()
	limit := 100
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	sessionID := strings.TrimSpace(q.Get("sessionId"))

	records, err := s.requirements.List(r.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error("list requirements failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list requirements")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"requirements": records,
	})
}

func (s *Server) handleGetRequirements(w http.ResponseWriter, r *http.Request) {
	if s.requirements == nil {
		respondError(w, http.StatusNotImplemented, "requirements_disabled", "requirements store not configured")
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	record, err := s.requirements.Get(r.Context(), id)
	if errors.Is(err, requirements.ErrNotFound) {
		respondError(w, http.StatusNotFound, "requirements_not_found", err.Error())
		return
	}
	if err != nil {
		s.logger.Error("get requirements failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load requirements")
		return
	}
	respondJSON(w, http.StatusOK, record)
}
