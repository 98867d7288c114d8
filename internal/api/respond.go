package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/FairForge/scoutline/internal/logging"
	"github.com/FairForge/scoutline/internal/ratelimit"
)

type errorResponse struct {
	Error      string `json:"error"`
	RequestID  string `json:"request_id,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context(), s.logger).Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, errorResponse{
		Error:     msg,
		RequestID: logging.RequestID(r.Context()),
	})
}

func (s *Server) rejectRateLimited(w http.ResponseWriter, r *http.Request, info ratelimit.RateLimitInfo) {
	s.metrics.RecordRateLimited()
	s.writeJSON(w, r, http.StatusTooManyRequests, errorResponse{
		Error:      "rate limit exceeded",
		RequestID:  logging.RequestID(r.Context()),
		RetryAfter: info.RetryAfter,
	})
}
