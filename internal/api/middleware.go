package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/scoutline/internal/logging"
	"github.com/FairForge/scoutline/internal/ratelimit"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware propagates a caller supplied UUID or mints a new one.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// loggingMiddleware logs and records every request once the route is known.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)
		s.metrics.RecordRequest(r.Method, route, status, duration)

		s.logger.Info("request",
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", duration),
			zap.String("remote", r.RemoteAddr))
	})
}

// clientKey limits authenticated callers per subject and anonymous ones per IP.
func clientKey(r *http.Request) string {
	if sub := logging.Subject(r.Context()); sub != "" {
		return "sub:" + sub
	}
	return "ip:" + ratelimit.RemoteKey(r)
}

func requestCost(r *http.Request) int {
	if r.Method == http.MethodPost {
		return ratelimit.CostAnalyze
	}
	return ratelimit.CostRead
}
