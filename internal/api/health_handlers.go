package api

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// handleHealth reports liveness plus the state of each registered dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	deps := make(map[string]string, len(s.checks))

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	s.writeJSON(w, r, code, map[string]interface{}{
		"status":       status,
		"version":      version,
		"uptime":       time.Since(s.startTime).Seconds(),
		"dependencies": deps,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{
		"version": version,
		"go":      runtime.Version(),
	})
}
