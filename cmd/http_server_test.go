package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubeload/tubeload/internal/download"
	"github.com/tubeload/tubeload/internal/session"
)

type stubStarter struct{}

type stubHandle struct{}

func (stubHandle) Cancel() {}

func (stubStarter) Start(ctx context.Context, req session.StartRequest) session.Handle {
	return stubHandle{}
}

func newTestHandler(t *testing.T) (*APIHandler, *download.Manager) {
	t.Helper()
	m := download.New(download.Options{Limit: 1, Starter: stubStarter{}})
	t.Cleanup(m.Shutdown)
	return NewAPIHandler(m, nil, 1760, t.TempDir()), m
}

func TestAPIHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPIDownloadAndList(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/download",
		strings.NewReader(`{"url":"http://example.com/a.mp4"}`))
	rec := httptest.NewRecorder()
	h.Download(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp["status"])
	assert.NotEmpty(t, resp["id"])

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/list", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var items []download.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, resp["id"], items[0].ID)
}

func TestAPIDownloadRejectsBadRequests(t *testing.T) {
	h, _ := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing url", `{}`},
		{"path traversal", `{"url":"http://example.com/a.mp4","path":"../../etc"}`},
		{"filename with separator", `{"url":"http://example.com/a.mp4","filename":"a/b.mp4"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Download(rec, httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(tc.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAPIDemoRestriction(t *testing.T) {
	m := download.New(download.Options{
		Limit:   1,
		Starter: stubStarter{},
		Policy:  download.Policy{Enabled: true, MaxDownloads: 1},
	})
	t.Cleanup(m.Shutdown)
	h := NewAPIHandler(m, nil, 1760, t.TempDir())

	body := `{"url":"http://example.com/a.mp4"}`
	rec := httptest.NewRecorder()
	h.Download(rec, httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Download(rec, httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPIActionsOnUnknownID(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.action("cancelled", h.manager.Cancel)(rec,
		httptest.NewRequest(http.MethodPost, "/cancel?id=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.action("cancelled", h.manager.Cancel)(rec,
		httptest.NewRequest(http.MethodPost, "/cancel", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIReorderValidation(t *testing.T) {
	h, m := newTestHandler(t)

	// One running item, one queued.
	a, err := m.Enqueue(download.Request{URL: "http://example.com/a.mp4", Dir: t.TempDir()})
	require.NoError(t, err)
	_, err = m.Enqueue(download.Request{URL: "http://example.com/b.mp4", Dir: t.TempDir()})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Reorder(rec, httptest.NewRequest(http.MethodPost, "/reorder?id="+a.ID+"&pos=1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "running items cannot be reordered")

	rec = httptest.NewRecorder()
	h.Reorder(rec, httptest.NewRequest(http.MethodPost, "/reorder?id="+a.ID+"&pos=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Reorder(rec, httptest.NewRequest(http.MethodPost, "/reorder?id=nope&pos=0", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
