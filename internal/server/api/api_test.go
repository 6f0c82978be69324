package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signbridge/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newRouter(s *store.Store) http.Handler {
	r := chi.NewRouter()
	NewLabelHandler(s).Routes(r)
	NewHistoryHandler(s).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLabelHandler_Workflow(t *testing.T) {
	s := newTestStore(t)
	h := newRouter(s)

	rec := do(t, h, http.MethodGet, "/api/labels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"labels":[]}`, rec.Body.String())

	for _, name := range []string{"B", "A"} {
		rec = do(t, h, http.MethodPost, "/api/labels", `{"name":"`+name+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/labels", `{"name":"A"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/labels/B", `{"name":"C"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/labels", "")
	var listed struct {
		Labels []store.Label `json:"labels"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	require.Len(t, listed.Labels, 2)
	assert.Equal(t, "A", listed.Labels[0].Name)
	assert.Equal(t, "C", listed.Labels[1].Name)

	rec = do(t, h, http.MethodDelete, "/api/labels/A", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/labels/A", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLabelHandler_BadRequests(t *testing.T) {
	h := newRouter(newTestStore(t))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "invalid json", method: http.MethodPost, path: "/api/labels", body: `{`, want: http.StatusBadRequest},
		{name: "missing name", method: http.MethodPost, path: "/api/labels", body: `{"name":" "}`, want: http.StatusBadRequest},
		{name: "rename unknown", method: http.MethodPut, path: "/api/labels/Z", body: `{"name":"Y"}`, want: http.StatusNotFound},
		{name: "rename without name", method: http.MethodPut, path: "/api/labels/Z", body: `{}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestHistoryHandler(t *testing.T) {
	s := newTestStore(t)
	h := newRouter(s)

	require.NoError(t, s.Runs().Create("run-1", time.Now().Add(-time.Minute)))
	require.NoError(t, s.Runs().Create("run-2", time.Now()))
	require.NoError(t, s.Transitions().Record(&store.Transition{RunID: "run-1", Label: "A", Confidence: 0.9}))

	rec := do(t, h, http.MethodGet, "/api/runs?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs struct {
		Runs []store.Run `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, "run-2", runs.Runs[0].ID)

	rec = do(t, h, http.MethodGet, "/api/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/runs/run-1/transitions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var transitions struct {
		RunID       string             `json:"run_id"`
		Transitions []store.Transition `json:"transitions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&transitions))
	require.Len(t, transitions.Transitions, 1)
	assert.Equal(t, "A", transitions.Transitions[0].Label)

	rec = do(t, h, http.MethodGet, "/api/runs/missing/transitions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	stats, err := NewHistoryHandler(s).LabelStats()
	require.NoError(t, err)
	assert.Equal(t, []store.LabelStat{{Label: "A", Count: 1, Percent: 100}}, stats)
}
