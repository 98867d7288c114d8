package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/FairForge/scoutline/internal/analysis"
	"github.com/FairForge/scoutline/internal/logging"
	"github.com/FairForge/scoutline/internal/performance"
	"github.com/FairForge/scoutline/internal/sampler"
)

// Uploads beyond this are spooled to disk by mime/multipart.
const multipartMemory = 32 << 20

// handleCreateAnalysis handles POST /api/v1/analyses
func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, s.logger)

	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit))
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "missing file part")
		return
	}

	var lastModified time.Time
	if v := r.FormValue("last_modified"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms < 0 {
			s.writeError(w, r, http.StatusBadRequest, "last_modified must be milliseconds since the epoch")
			return
		}
		lastModified = time.UnixMilli(ms)
	}

	var count int
	if v := r.FormValue("samples"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > analysis.MaxSampleCount {
			s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("samples must be between 1 and %d", analysis.MaxSampleCount))
			return
		}
		count = n
	}

	f := sampler.NewMultipartFile(files[0], lastModified)
	if !isVideo(f.Info()) {
		s.writeError(w, r, http.StatusUnsupportedMediaType, "file is not a video")
		return
	}

	res, err := s.analyzer.Analyze(ctx, f, analysis.Options{
		SampleCount: count,
		Owner:       logging.Subject(ctx),
	})
	if err != nil && res == nil {
		if errors.Is(err, context.Canceled) {
			log.Info("client went away during analysis", zap.String("file", f.Info().Name))
			return
		}
		log.Error("analysis failed", zap.String("file", f.Info().Name), zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, "analysis failed")
		return
	}
	if err != nil {
		log.Warn("analysis not persisted", zap.String("fingerprint", res.Fingerprint), zap.Error(err))
		w.Header().Set("X-Scoutline-Persisted", "false")
	}

	w.Header().Set("Location", "/api/v1/analyses/"+url.PathEscape(res.Fingerprint))
	s.writeJSON(w, r, http.StatusCreated, res)
}

// handleGetAnalysis handles GET /api/v1/analyses/{fingerprint}. Fingerprints
// contain the MIME type's slash, so the route is a wildcard.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	fp := pathFingerprint(r)
	if fp == "" {
		s.writeError(w, r, http.StatusBadRequest, "fingerprint required")
		return
	}

	res, err := s.analyzer.Lookup(r.Context(), fp)
	if err != nil {
		s.lookupError(w, r, fp, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

// handleListAnalyses handles GET /api/v1/analyses
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.writeError(w, r, http.StatusNotImplemented, "analysis index not configured")
		return
	}

	owner := logging.Subject(r.Context())
	if owner == "" {
		owner = r.URL.Query().Get("owner")
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.index.ListByOwner(r.Context(), owner, limit)
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Error("failed to list analyses", zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"owner":    owner,
		"analyses": records,
	})
}

type comparisonResponse struct {
	A          string                 `json:"a"`
	B          string                 `json:"b"`
	Comparison performance.Comparison `json:"comparison"`
}

// handleCompare handles GET /api/v1/compare?a=&b=
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		s.writeError(w, r, http.StatusBadRequest, "query parameters a and b are required")
		return
	}

	ra, err := s.analyzer.Lookup(r.Context(), a)
	if err != nil {
		s.lookupError(w, r, a, err)
		return
	}
	rb, err := s.analyzer.Lookup(r.Context(), b)
	if err != nil {
		s.lookupError(w, r, b, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, comparisonResponse{
		A:          a,
		B:          b,
		Comparison: performance.Compare(ra.Scores, rb.Scores),
	})
}

func (s *Server) lookupError(w http.ResponseWriter, r *http.Request, fp string, err error) {
	if errors.Is(err, analysis.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, "analysis not found")
		return
	}
	logging.FromContext(r.Context(), s.logger).Error("lookup failed", zap.String("fingerprint", fp), zap.Error(err))
	s.writeError(w, r, http.StatusInternalServerError, "lookup failed")
}

func pathFingerprint(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if fp, err := url.PathUnescape(raw); err == nil {
		return fp
	}
	return raw
}

func isVideo(info sampler.FileInfo) bool {
	return strings.HasPrefix(info.MIMEType, "video/") || sampler.IsVideo(info.Name)
}
