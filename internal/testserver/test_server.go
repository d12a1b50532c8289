// Package testserver spins up the full HTTP stack against an in-memory
// session manager for end-to-end tests.
package testserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okabe/seriescrub/internal/domain/session"
	"github.com/okabe/seriescrub/internal/httpapi"
)

type TestServer struct {
	Server *httptest.Server
	Token  string
}

// New starts a server. An empty token disables authentication.
func New(t *testing.T, token string) *TestServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := httpapi.NewRouter(session.NewManager(logger), logger, httpapi.Options{
		APIToken: token,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{Server: server, Token: token}
}

// Do sends a request with the bearer token attached.
func (ts *TestServer) Do(t *testing.T, method, path, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.Server.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if ts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.Token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a JSON body and decodes the JSON response into out when out
// is non-nil.
func (ts *TestServer) PostJSON(t *testing.T, path string, payload, out any) int {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	resp := ts.Do(t, http.MethodPost, path, "application/json", body)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// GetJSON fetches a path and decodes the JSON response.
func (ts *TestServer) GetJSON(t *testing.T, path string, out any) int {
	t.Helper()
	resp := ts.Do(t, http.MethodGet, path, "", nil)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// Upload sends file content as a multipart upload to the session's data
// endpoint.
func (ts *TestServer) Upload(t *testing.T, sessionID, filename string, content []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return ts.Do(t, http.MethodPost, "/sessions/"+sessionID+"/data", mw.FormDataContentType(), &body)
}
