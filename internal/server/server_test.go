package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signbridge/internal/session"
	"github.com/ayusman/signbridge/internal/stability"
)

// fakeRecognizer is a scripted Recognizer.
type fakeRecognizer struct {
	mu        sync.Mutex
	running   bool
	threshold float64
	starts    int
	stops     int
}

func (f *fakeRecognizer) Start() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return "", session.ErrAlreadyRunning
	}
	f.running = true
	f.starts++
	return "run-1", nil
}

func (f *fakeRecognizer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.stops++
}

func (f *fakeRecognizer) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := session.StatusIdle
	if f.running {
		status = session.StatusRunning
	}
	return session.Snapshot{Status: status, RunID: "run-1", Threshold: f.threshold}
}

func (f *fakeRecognizer) Stats() session.Stats {
	return session.Stats{RunID: "run-1", Frames: 42}
}

func (f *fakeRecognizer) SetThreshold(t float64) error {
	if t < 0 || t > 1 {
		return stability.ErrInvalidConfig
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = t
	return nil
}

func request(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		rec := request(t, s, http.MethodGet, "/api/health", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "ok", response["status"])
		assert.Contains(t, response, "uptime")
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			rec := request(t, s, method, "/api/health", "")
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "method %s", method)
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	rec := request(t, s, http.MethodGet, "/api/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Session routes are absent without a recognizer.
	rec = request(t, s, http.MethodGet, "/api/state", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>Hello, World!</body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644))
	cssContent := "body { color: red; }"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644))

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		rec := request(t, s, http.MethodGet, "/", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, testContent, rec.Body.String())
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		rec := request(t, s, http.MethodGet, "/style.css", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, cssContent, rec.Body.String())
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		rec := request(t, s, http.MethodGet, "/nonexistent.html", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_NoStaticDir(t *testing.T) {
	s := New(Config{})

	rec := request(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SessionEndpoints(t *testing.T) {
	rec := &fakeRecognizer{threshold: 0.8}
	s := New(Config{Recognizer: rec})

	res := request(t, s, http.MethodPost, "/api/session/start", "")
	require.Equal(t, http.StatusOK, res.Code)
	var started map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&started))
	assert.Equal(t, "run-1", started["run_id"])

	res = request(t, s, http.MethodPost, "/api/session/start", "")
	assert.Equal(t, http.StatusConflict, res.Code)

	res = request(t, s, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, res.Code)
	var snap session.Snapshot
	require.NoError(t, json.NewDecoder(res.Body).Decode(&snap))
	assert.Equal(t, session.StatusRunning, snap.Status)

	res = request(t, s, http.MethodPost, "/api/session/stop", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.NoError(t, json.NewDecoder(res.Body).Decode(&snap))
	assert.Equal(t, session.StatusIdle, snap.Status)
	assert.Equal(t, 1, rec.stops)
}

func TestServer_Threshold(t *testing.T) {
	rec := &fakeRecognizer{threshold: 0.8}
	s := New(Config{Recognizer: rec})

	res := request(t, s, http.MethodPut, "/api/session/threshold", `{"threshold": 0.6}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 0.6, rec.Snapshot().Threshold)

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{`},
		{"missing threshold", `{}`},
		{"out of range", `{"threshold": 1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := request(t, s, http.MethodPut, "/api/session/threshold", tt.body)
			assert.Equal(t, http.StatusBadRequest, res.Code)
		})
	}
	assert.Equal(t, 0.6, rec.Snapshot().Threshold)
}

func TestServer_Stats(t *testing.T) {
	s := New(Config{Recognizer: &fakeRecognizer{}})

	res := request(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Run session.Stats `json:"run"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, uint64(42), body.Run.Frames)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "signbridge_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := New(Config{Gatherer: reg})

	res := request(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "signbridge_test_total 1")
}

func TestNew(t *testing.T) {
	t.Run("creates server with config", func(t *testing.T) {
		cfg := Config{StaticDir: "/some/path"}
		s := New(cfg)
		require.NotNil(t, s)
		assert.Equal(t, cfg.StaticDir, s.config.StaticDir)
	})

	t.Run("server implements http.Handler", func(t *testing.T) {
		s := New(Config{})
		var _ http.Handler = s
	})
}
