package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"top3hunter/internal/llm"
	"top3hunter/internal/pipeline"
	"top3hunter/internal/search"
)

type searchRequest struct {
	Keyword string `json:"keyword"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// handleSearch runs the full keyword-to-recommendations pipeline.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "request body must be JSON with a keyword field", "INVALID_REQUEST")
		return
	}

	resp, err := s.pipeline.Run(r.Context(), req.Keyword)
	if err != nil {
		var valErr *pipeline.ValidationError
		if errors.As(err, &valErr) {
			s.respondError(w, http.StatusBadRequest, valErr.Message, valErr.Code())
			return
		}

		var searchErr *search.ProviderError
		var llmErr *llm.ProviderError
		if errors.As(err, &searchErr) || errors.As(err, &llmErr) {
			s.log.Error("upstream provider failure", "error", err.Error(), "keyword", req.Keyword)
			s.respondError(w, http.StatusBadGateway, err.Error(), "EXTERNAL_API_ERROR")
			return
		}

		s.log.Error("search pipeline failed", "error", err.Error(), "keyword", req.Keyword)
		s.respondError(w, http.StatusInternalServerError, "internal server error, please retry later", "INTERNAL_SERVER_ERROR")
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleHealth reports liveness plus dependency reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": "ok",
		"cache":    "ok",
	}
	status := "healthy"
	code := http.StatusOK

	if err := s.store.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if err := s.cache.Ping(ctx); err != nil {
		checks["cache"] = err.Error()
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.respondJSON(w, code, map[string]any{
		"status":  status,
		"app":     s.cfg.App.Name,
		"checks":  checks,
		"checked": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("failed to encode response", "error", err.Error())
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message, code string) {
	s.respondJSON(w, status, errorResponse{
		Status:  "error",
		Message: message,
		Code:    code,
	})
}
