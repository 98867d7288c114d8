package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/scoutline/internal/analysis"
	"github.com/FairForge/scoutline/internal/motion"
	"github.com/FairForge/scoutline/internal/performance"
)

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) analysis.Result {
	t.Helper()
	var res analysis.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	return res
}

func TestCreateAnalysis(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	w := ts.do(clipUpload(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "/api/v1/analyses/"+url.PathEscape(clipFingerprint), w.Header().Get("Location"))

	res := decodeResult(t, w)
	assert.Equal(t, clipFingerprint, res.Fingerprint)
	assert.Equal(t, clipSeed, res.Seed)
	require.Len(t, res.Samples, motion.DefaultSampleCount)
	want := motion.Generate(clipSeed, motion.DefaultSampleCount)
	for i := range want {
		assert.InDelta(t, want[i].BoundingBox.X, res.Samples[i].BoundingBox.X, 1e-9)
		assert.InDelta(t, want[i].Speed, res.Samples[i].Speed, 1e-9)
	}
	assert.False(t, res.Degraded)
	assert.NotEmpty(t, res.ID)
}

func TestCreateAnalysis_SampleCount(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	req := uploadRequest(t, "clip.mp4", "video/mp4", clipBytes(), map[string]string{"samples": "30"})
	w := ts.do(req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, decodeResult(t, w).Samples, 30)
}

func TestCreateAnalysis_ZeroByteFile(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	w := ts.do(uploadRequest(t, "empty.mp4", "video/mp4", nil, nil))
	require.Equal(t, http.StatusCreated, w.Code)
	res := decodeResult(t, w)
	assert.Equal(t, "empty.mp4-0-video/mp4-0-0", res.Fingerprint)
	assert.Equal(t, int64(0), res.Seed)
}

func TestCreateAnalysis_MIMEFromExtension(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	w := ts.do(uploadRequest(t, "match.mov", "", []byte("moov"), nil))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, strings.HasPrefix(decodeResult(t, w).Fingerprint, "match.mov-4-video/quicktime-0-"))
}

func TestCreateAnalysis_BadRequests(t *testing.T) {
	ts := newTestServer(t, testOptions{maxBytes: 4096})

	tests := []struct {
		name string
		req  func() *http.Request
		code int
	}{
		{
			name: "not multipart",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader(`{}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			code: http.StatusBadRequest,
		},
		{
			name: "missing file part",
			req:  func() *http.Request { return uploadRequest(t, "", "", nil, map[string]string{"samples": "3"}) },
			code: http.StatusBadRequest,
		},
		{
			name: "bad last_modified",
			req: func() *http.Request {
				return uploadRequest(t, "clip.mp4", "video/mp4", clipBytes(), map[string]string{"last_modified": "yesterday"})
			},
			code: http.StatusBadRequest,
		},
		{
			name: "samples out of range",
			req: func() *http.Request {
				return uploadRequest(t, "clip.mp4", "video/mp4", clipBytes(), map[string]string{"samples": "0"})
			},
			code: http.StatusBadRequest,
		},
		{
			name: "not a video",
			req:  func() *http.Request { return uploadRequest(t, "notes.txt", "text/plain", []byte("hi"), nil) },
			code: http.StatusUnsupportedMediaType,
		},
		{
			name: "too large",
			req: func() *http.Request {
				return uploadRequest(t, "big.mp4", "video/mp4", make([]byte, 8192), nil)
			},
			code: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(tt.req())
			assert.Equal(t, tt.code, w.Code, w.Body.String())

			var body errorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestGetAnalysis(t *testing.T) {
	ts := newTestServer(t, testOptions{})
	created := decodeResult(t, ts.do(clipUpload(t)))

	t.Run("raw path", func(t *testing.T) {
		w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+clipFingerprint, nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, created.ID, decodeResult(t, w).ID)
	})

	t.Run("escaped path", func(t *testing.T) {
		w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+url.PathEscape(clipFingerprint), nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, created.ID, decodeResult(t, w).ID)
	})

	t.Run("unknown", func(t *testing.T) {
		w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses/nope.mp4-1-video/mp4-0-1", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListAnalyses(t *testing.T) {
	t.Run("without index", func(t *testing.T) {
		ts := newTestServer(t, testOptions{})
		w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil))
		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})

	t.Run("with index", func(t *testing.T) {
		idx := &fakeIndex{}
		ts := newTestServer(t, testOptions{index: idx})
		require.Equal(t, http.StatusCreated, ts.do(clipUpload(t)).Code)

		w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses?owner=", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Analyses []struct {
				Fingerprint string
				Seed        int64
			} `json:"analyses"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.Len(t, body.Analyses, 1)
		assert.Equal(t, clipFingerprint, body.Analyses[0].Fingerprint)
		assert.Equal(t, clipSeed, body.Analyses[0].Seed)
	})

	t.Run("bad limit", func(t *testing.T) {
		ts := newTestServer(t, testOptions{index: &fakeIndex{}})
		w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses?limit=-2", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCompare(t *testing.T) {
	ts := newTestServer(t, testOptions{})
	a := decodeResult(t, ts.do(clipUpload(t)))
	b := decodeResult(t, ts.do(uploadRequest(t, "other.mp4", "video/mp4", []byte("another clip entirely"), nil)))

	q := url.Values{"a": {a.Fingerprint}, "b": {b.Fingerprint}}
	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/compare?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body comparisonResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, performance.Compare(a.Scores, b.Scores), body.Comparison)

	t.Run("missing parameter", func(t *testing.T) {
		w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/compare?a=x", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown fingerprint", func(t *testing.T) {
		q := url.Values{"a": {a.Fingerprint}, "b": {"missing"}}
		w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/compare?"+q.Encode(), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
