package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapedeck/mixtape/internal/builder"
)

type fakeBuilds struct {
	enqueueID  string
	enqueueErr error
	statuses   map[string]builder.Status
	outputs    map[string]string
	lastReq    builder.Request
}

func (f *fakeBuilds) Enqueue(req builder.Request) (string, error) {
	f.lastReq = req
	return f.enqueueID, f.enqueueErr
}

func (f *fakeBuilds) Status(id string) (builder.Status, bool) {
	st, ok := f.statuses[id]
	return st, ok
}

func (f *fakeBuilds) OutputPath(id string) (string, bool) {
	p, ok := f.outputs[id]
	return p, ok
}

func (f *fakeBuilds) QueueSize() int { return len(f.statuses) }

type fakePreview struct {
	enqueued []string
	full     bool
	skipped  bool
}

func (f *fakePreview) Status() (string, string, time.Duration, time.Duration) {
	return "t1", "Side A", 30 * time.Second, 2 * time.Minute
}
func (f *fakePreview) ListenerCount() int { return 2 }
func (f *fakePreview) Enqueue(id, path, title string) bool {
	if f.full {
		return false
	}
	f.enqueued = append(f.enqueued, id)
	return true
}
func (f *fakePreview) Skip() { f.skipped = true }

func newTestRouter(b BuildService, p PreviewService) http.Handler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRouter(Options{Builds: b, Preview: p, Log: log})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreateMixtape(t *testing.T) {
	fb := &fakeBuilds{enqueueID: "abc123"}
	h := newTestRouter(fb, nil)

	req := builder.Request{
		Songs:   []builder.Song{{URL: "https://youtube.com/watch?v=x", Start: 5, End: 35}},
		Overlap: 2.5,
	}
	w := doJSON(t, h, "POST", "/api/mixtapes", req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "abc123", resp["id"])
	assert.Equal(t, 2.5, fb.lastReq.Overlap)
	assert.Len(t, fb.lastReq.Songs, 1)
}

func TestCreateMixtapeBadBody(t *testing.T) {
	h := newTestRouter(&fakeBuilds{}, nil)

	req := httptest.NewRequest("POST", "/api/mixtapes", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateMixtapeRejected(t *testing.T) {
	fb := &fakeBuilds{enqueueErr: assert.AnError}
	h := newTestRouter(fb, nil)

	w := doJSON(t, h, "POST", "/api/mixtapes", builder.Request{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestStatus(t *testing.T) {
	fb := &fakeBuilds{statuses: map[string]builder.Status{
		"b1": {ID: "b1", Stage: builder.StageMixing},
	}}
	h := newTestRouter(fb, nil)

	w := doJSON(t, h, "GET", "/api/mixtapes/b1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var st builder.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, builder.StageMixing, st.Stage)
}

func TestStatusUnknown(t *testing.T) {
	h := newTestRouter(&fakeBuilds{statuses: map[string]builder.Status{}}, nil)

	w := doJSON(t, h, "GET", "/api/mixtapes/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadNotFinished(t *testing.T) {
	fb := &fakeBuilds{
		statuses: map[string]builder.Status{"b1": {ID: "b1", Stage: builder.StageMixing}},
		outputs:  map[string]string{},
	}
	h := newTestRouter(fb, nil)

	w := doJSON(t, h, "GET", "/api/mixtapes/b1/download", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDownloadServesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "final_mixtape.mp3")
	require.NoError(t, os.WriteFile(path, []byte("mp3data"), 0o644))

	fb := &fakeBuilds{
		statuses: map[string]builder.Status{"b1": {ID: "b1", Stage: builder.StageDone, Title: "Side A"}},
		outputs:  map[string]string{"b1": path},
	}
	h := newTestRouter(fb, nil)

	w := doJSON(t, h, "GET", "/api/mixtapes/b1/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mp3data", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Side A.mp3")
}

func TestPreviewStatus(t *testing.T) {
	h := newTestRouter(&fakeBuilds{}, &fakePreview{})

	w := doJSON(t, h, "GET", "/api/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Side A", resp["title"])
	assert.Equal(t, float64(2), resp["listeners"])
}

func TestPreviewEnqueue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "final_mixtape.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	fb := &fakeBuilds{
		statuses: map[string]builder.Status{"b1": {ID: "b1", Stage: builder.StageDone, Title: "Side A"}},
		outputs:  map[string]string{"b1": path},
	}
	fp := &fakePreview{}
	h := newTestRouter(fb, fp)

	w := doJSON(t, h, "POST", "/api/preview/b1", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"b1"}, fp.enqueued)
}

func TestPreviewEnqueueFull(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "final_mixtape.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	fb := &fakeBuilds{
		statuses: map[string]builder.Status{"b1": {ID: "b1", Stage: builder.StageDone}},
		outputs:  map[string]string{"b1": path},
	}
	h := newTestRouter(fb, &fakePreview{full: true})

	w := doJSON(t, h, "POST", "/api/preview/b1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPreviewSkip(t *testing.T) {
	fp := &fakePreview{}
	h := newTestRouter(&fakeBuilds{}, fp)

	w := doJSON(t, h, "POST", "/api/preview/skip", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, fp.skipped)
}

func TestPreviewRoutesAbsentWhenDisabled(t *testing.T) {
	h := newTestRouter(&fakeBuilds{}, nil)

	w := doJSON(t, h, "GET", "/api/preview", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
