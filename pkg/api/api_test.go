package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Natifishman/MessageU/pkg/config"
	"github.com/Natifishman/MessageU/pkg/engine"
	"github.com/Natifishman/MessageU/pkg/metrics"
)

// newTestServer builds a gateway over an unregistered client whose
// server.info points at a dead endpoint. Handlers that need no relay
// round-trip are fully testable this way.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.info"), []byte("127.0.0.1:9\n"), 0600))

	settings := config.Settings{
		ServerInfoPath: filepath.Join(dir, "server.info"),
		ClientInfoPath: filepath.Join(dir, "my.info"),
		HistoryPath:    filepath.Join(dir, "messageu.db"),
		DialTimeout:    config.Duration(200 * time.Millisecond),
	}

	reg := prometheus.NewRegistry()
	client := engine.New(settings, metrics.New(reg))
	t.Cleanup(client.Close)
	require.NoError(t, client.Prepare())

	return NewServer(client, &Config{Port: 0, Gatherer: reg})
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, false, resp["registered"])
}

func TestRegisterRejectsBadBody(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/register", `{"nope": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterRejectsBadName(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/register", `{"name": "bob-1"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestSendMessageUnknownType(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/messages", `{"to": "bob", "type": "telepathy"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessageUnregistered(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/messages", `{"to": "bob", "type": "text", "data": "hi"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHistoryUnknownPeer(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/history/nobody", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/history/bob?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	// Drive one failing operation so a counter exists
	doRequest(s, http.MethodPost, "/api/v1/register", `{"name": "bob-1"}`)

	w := doRequest(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "messageu_requests_total")
	assert.Contains(t, w.Body.String(), "messageu_failures_total")
}
