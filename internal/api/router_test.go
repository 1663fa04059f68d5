package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackamole/internal/utils"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "male.glb.enc"), []byte("ciphertext"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "male.glb"), []byte("plaintext"), 0o600))
	srv := httptest.NewServer(NewRouter(dir, prometheus.NewRegistry(), utils.Discard()))
	t.Cleanup(srv.Close)
	return srv, dir
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK\n", body)
}

func TestServeModel(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/models/male.glb.enc")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ciphertext", body)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
}

func TestServeModel_RefusesPlaintextAndMissing(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/models/male.glb", "/models/female.glb.enc", "/models/..%2fsecret.enc"} {
		resp, body := get(t, srv.URL+path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		var e utils.CustomError
		if resp.Header.Get("Content-Type") == "application/json" {
			require.NoError(t, json.Unmarshal([]byte(body), &e))
			assert.Equal(t, http.StatusNotFound, e.Code)
		}
	}
}

func TestMetricsCountsRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	get(t, srv.URL+"/health")
	get(t, srv.URL+"/models/male.glb.enc")

	resp, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(body, `trackamole_http_requests_total{code="200",route="/health"} 1`), body)
	assert.Contains(t, body, `route="/models/{file}"`)
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/users/create")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, `"code":404`)
}
