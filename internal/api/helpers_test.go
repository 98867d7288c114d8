package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/scoutline/internal/analysis"
	"github.com/FairForge/scoutline/internal/cache"
	"github.com/FairForge/scoutline/internal/config"
	"github.com/FairForge/scoutline/internal/database"
	"github.com/FairForge/scoutline/internal/metrics"
	"github.com/FairForge/scoutline/internal/ratelimit"
)

const (
	clipFingerprint = "clip.mp4-2048-video/mp4-1700000000000-3joqo0"
	clipSeed        = int64(214465536)
)

type fakeIndex struct {
	mu         sync.Mutex
	analyses   []database.AnalysisRecord
	valuations []database.ValuationRecord
}

func (f *fakeIndex) RecordAnalysis(ctx context.Context, rec *database.AnalysisRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses = append(f.analyses, *rec)
	return nil
}

func (f *fakeIndex) ListByOwner(ctx context.Context, owner string, limit int) ([]database.AnalysisRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []database.AnalysisRecord{}
	for _, r := range f.analyses {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeIndex) RecordValuation(ctx context.Context, rec *database.ValuationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valuations = append(f.valuations, *rec)
	return nil
}

type testOptions struct {
	secret   string
	limiter  *ratelimit.ClientLimiter
	index    *fakeIndex
	checks   map[string]HealthCheck
	maxBytes int64
}

type testServer struct {
	*Server
	metrics *metrics.Collector
}

func newTestServer(t *testing.T, opts testOptions) *testServer {
	t.Helper()

	cfg := config.Default()
	if opts.maxBytes > 0 {
		cfg.Server.MaxUploadBytes = opts.maxBytes
	}
	m := metrics.NewCollector()

	acfg := analysis.Config{
		Cache:   cache.NewLRU[*analysis.Result](32, time.Minute),
		Metrics: m,
		Logger:  zap.NewNop(),
	}
	deps := Deps{
		Metrics:  m,
		Limiter:  opts.limiter,
		Verifier: NewTokenVerifier(opts.secret, "scoutline-test"),
		Checks:   opts.checks,
	}
	if opts.index != nil {
		acfg.Index = opts.index
		deps.Index = opts.index
	}
	deps.Analyzer = analysis.New(acfg)

	s, err := NewServer(cfg, zap.NewNop(), deps)
	require.NoError(t, err)
	return &testServer{Server: s, metrics: m}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func clipBytes() []byte {
	data := make([]byte, 2048)
	for i := range data {
		data[i] = byte((i + 1) % 256)
	}
	return data
}

// uploadRequest builds a multipart upload with the given file part and form
// fields. An empty filename omits the file part.
func uploadRequest(t *testing.T, filename, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func clipUpload(t *testing.T) *http.Request {
	t.Helper()
	return uploadRequest(t, "clip.mp4", "video/mp4", clipBytes(), map[string]string{
		"last_modified": "1700000000000",
	})
}
