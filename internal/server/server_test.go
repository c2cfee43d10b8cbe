package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"treescope/pkg/logbuf"
	"treescope/pkg/scan"
	"treescope/pkg/storage"
)

func newTestServer(t *testing.T, secret string) *Server {
	t.Helper()
	engine := scan.New(storage.New(t.TempDir()), nil)
	return New(engine, logbuf.New(100), secret)
}

func doRequest(t *testing.T, s *Server, method, path, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")
	w := doRequest(t, s, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, "ok", gjson.Get(body, "status").String())
	assert.Equal(t, "treescope", gjson.Get(body, "server").String())
	assert.Equal(t, int64(0), gjson.Get(body, "active_scans").Int())
}

func TestSecretGate(t *testing.T) {
	s := newTestServer(t, "hunter2")
	chunk := `{"target_id": 1, "scope": "tree", "data": []}`

	w := doRequest(t, s, http.MethodPost, "/scan/data", "", chunk)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, s, http.MethodPost, "/scan/data", "wrong", chunk)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, s, http.MethodPost, "/scan/data", "hunter2", chunk)
	assert.Equal(t, http.StatusOK, w.Code)

	// Reads stay open.
	w = doRequest(t, s, http.MethodGet, "/scan/status", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecretGateDisabledWhenUnset(t *testing.T) {
	s := newTestServer(t, "")
	w := doRequest(t, s, http.MethodPost, "/scan/data", "", `{"target_id": 1, "scope": "tree", "data": []}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScanFlow(t *testing.T) {
	s := newTestServer(t, "")

	chunk := `{"target_id": 7, "scope": "tree", "data": [
		{"name": "Workspace", "class_name": "Workspace", "path": "game.Workspace"},
		{"name": "Players", "class_name": "Players", "path": "game.Players"}
	]}`
	w := doRequest(t, s, http.MethodPost, "/scan/data", "", chunk)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tree", gjson.Get(w.Body.String(), "scope").String())

	w = doRequest(t, s, http.MethodGet, "/scan/status", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	scans := gjson.Get(w.Body.String(), "scans")
	require.Equal(t, int64(1), scans.Get("#").Int())
	assert.Equal(t, "scanning", scans.Get("0.status").String())
	assert.Equal(t, "receiving tree", scans.Get("0.progress").String())

	w = doRequest(t, s, http.MethodPost, "/scan/complete", "", `{"target_id": 7, "name": "Test Place", "scopes": ["tree"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	manifest := gjson.Get(w.Body.String(), "manifest")
	assert.Equal(t, "Test Place", manifest.Get("name").String())
	assert.NotEmpty(t, manifest.Get("tree_hash").String())

	// Finalize clears the session.
	w = doRequest(t, s, http.MethodGet, "/scan/status", "", "")
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "scans.#").Int())

	w = doRequest(t, s, http.MethodGet, "/games", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "games.#").Int())

	w = doRequest(t, s, http.MethodGet, "/games/7", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), gjson.Get(w.Body.String(), "manifest.target_id").Int())

	w = doRequest(t, s, http.MethodGet, "/games/7/tree?class=Players", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := gjson.Get(w.Body.String(), "data")
	require.Equal(t, int64(1), data.Get("#").Int())
	assert.Equal(t, "Players", data.Get("0.name").String())

	w = doRequest(t, s, http.MethodDelete, "/games/7", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodGet, "/games/7", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScanDataRejectsUnknownScope(t *testing.T) {
	s := newTestServer(t, "")
	w := doRequest(t, s, http.MethodPost, "/scan/data", "", `{"target_id": 1, "scope": "textures", "data": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "ok").Bool())
}

func TestScanDataRejectsInvalidBody(t *testing.T) {
	s := newTestServer(t, "")
	w := doRequest(t, s, http.MethodPost, "/scan/data", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanCancel(t *testing.T) {
	s := newTestServer(t, "")

	w := doRequest(t, s, http.MethodPost, "/scan/cancel", "", `{"target_id": 9}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, s, http.MethodPost, "/scan/cancel", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	doRequest(t, s, http.MethodPost, "/scan/data", "", `{"target_id": 9, "scope": "tree", "data": []}`)
	w = doRequest(t, s, http.MethodPost, "/scan/cancel", "", `{"target_id": 9}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodGet, "/scan/status", "", "")
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "scans.#").Int())
}

func TestGetGameScopeBadMaxDepth(t *testing.T) {
	s := newTestServer(t, "")
	w := doRequest(t, s, http.MethodGet, "/games/1/tree?max_depth=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, s, http.MethodGet, "/games/1/tree?max_depth=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetGameScopeMissing(t *testing.T) {
	s := newTestServer(t, "")
	w := doRequest(t, s, http.MethodGet, "/games/1/tree", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBadTargetID(t *testing.T) {
	s := newTestServer(t, "")
	w := doRequest(t, s, http.MethodGet, "/games/notanumber", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteMissingGame(t *testing.T) {
	s := newTestServer(t, "")
	w := doRequest(t, s, http.MethodDelete, "/games/404", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGameHistoryWithoutLedger(t *testing.T) {
	s := newTestServer(t, "")
	w := doRequest(t, s, http.MethodGet, "/games/1/history", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "runs").IsArray())
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "runs.#").Int())
}

func TestLogsEndpoints(t *testing.T) {
	s := newTestServer(t, "")

	w := doRequest(t, s, http.MethodPost, "/logs", "", `{"level": "error", "message": "boom", "source": "agent"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "id").String())

	doRequest(t, s, http.MethodPost, "/logs", "", `{"message": "quiet one"}`)

	w = doRequest(t, s, http.MethodGet, "/logs?level=error", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "total").Int())
	assert.Equal(t, "boom", gjson.Get(body, "logs.0.message").String())

	w = doRequest(t, s, http.MethodPost, "/logs", "", `{"message": "   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, s, http.MethodDelete, "/logs", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "cleared").Int())

	w = doRequest(t, s, http.MethodGet, "/logs", "", "")
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "total").Int())
}
