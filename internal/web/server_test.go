package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/courseboard/internal/catalog"
	"github.com/conorfennell/courseboard/internal/domain"
	"github.com/conorfennell/courseboard/internal/importer"
	"github.com/conorfennell/courseboard/internal/storage"
)

type testServer struct {
	*Server
	db *storage.DB
}

func newTestServer(t *testing.T, sources ...string) testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "courses.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctrl := catalog.NewController(db, catalog.KeepDraftOnFailure, logger)
	imp := importer.New(db, t.TempDir(), logger)
	return testServer{Server: NewServer(db, ctrl, imp, sources, logger), db: db}
}

func (ts testServer) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func (ts testServer) postForm(t *testing.T, target string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, target, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func (ts testServer) courses(t *testing.T) []domain.Course {
	t.Helper()
	courses, err := ts.db.ListAll(context.Background())
	require.NoError(t, err)
	return courses
}

func TestIndexRendersPage(t *testing.T) {
	ts := newTestServer(t)
	require.True(t, ts.db.Add(context.Background(), domain.Course{Name: "Algorithms", Description: "CS201"}))

	rec := ts.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, "Algorithms")
	assert.Contains(t, body, "Add course")
}

func TestFormLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/", nil, "")

	rec := ts.postForm(t, "/courses", url.Values{"name": {"Algorithms"}, "description": {"CS201"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="course-1"`)
	assert.Equal(t, []domain.Course{{ID: 1, Name: "Algorithms", Description: "CS201"}}, ts.courses(t))

	rec = ts.do(t, http.MethodPost, "/courses/1/edit", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Update course")
	assert.Contains(t, rec.Body.String(), `value="Algorithms"`)

	rec = ts.postForm(t, "/courses", url.Values{"name": {"Algorithms II"}, "description": {"CS201"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Add course")
	assert.Equal(t, []domain.Course{{ID: 1, Name: "Algorithms II", Description: "CS201"}}, ts.courses(t))

	rec = ts.do(t, http.MethodDelete, "/courses/1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No courses yet.")
	assert.Empty(t, ts.courses(t))
}

func TestSubmitWithoutNameIsIgnored(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postForm(t, "/courses", url.Values{"name": {""}, "description": {"orphan"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ts.courses(t))
	assert.Contains(t, rec.Body.String(), `value="orphan"`)
}

func TestCancelLeavesEditMode(t *testing.T) {
	ts := newTestServer(t)
	ts.postForm(t, "/courses", url.Values{"name": {"A"}})
	ts.do(t, http.MethodPost, "/courses/1/edit", nil, "")

	rec := ts.do(t, http.MethodPost, "/cancel", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Add course")
	assert.NotContains(t, rec.Body.String(), "Cancel")
}

func TestEditUnknownCourse(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/courses/9/edit", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/courses/abc/edit", nil, "").Code)
}

func TestAPI(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/courses", strings.NewReader(`{"name":"Algorithms","description":"CS201"}`), "application/json")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/courses", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var courses []domain.Course
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &courses))
	assert.Equal(t, []domain.Course{{ID: 1, Name: "Algorithms", Description: "CS201"}}, courses)

	rec = ts.do(t, http.MethodPut, "/api/courses/1", strings.NewReader(`{"name":"Algorithms II","description":"CS201"}`), "application/json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Algorithms II", ts.courses(t)[0].Name)

	rec = ts.do(t, http.MethodPut, "/api/courses/2", strings.NewReader(`{"name":"ghost"}`), "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"ok":false}`, rec.Body.String())

	rec = ts.do(t, http.MethodDelete, "/api/courses/1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/courses/1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/courses", nil, "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAPIGetCourse(t *testing.T) {
	ts := newTestServer(t)
	require.True(t, ts.db.Add(context.Background(), domain.Course{Name: "Algorithms", Description: "CS201"}))

	rec := ts.do(t, http.MethodGet, "/api/courses/1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"name":"Algorithms","description":"CS201"}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/courses/2", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/courses/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/courses", strings.NewReader(`{"description":"no name"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/courses", strings.NewReader(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/courses/x", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, ts.courses(t))
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "courses.md"), []byte("N: Networks\nD: CS330\n"), 0o644))
	ts := newTestServer(t, dir)

	rec := ts.do(t, http.MethodPost, "/import", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Imported 1 new course(s)")
	assert.Contains(t, rec.Body.String(), "Networks")
}

func TestImportWithoutSources(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/import", nil, "").Code)
}

func TestHealthAndStatic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/static/style.css", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, ts.db.Close())
	rec = ts.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
