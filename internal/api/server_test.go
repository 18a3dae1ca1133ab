package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/pyflowchart/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	server, err := NewServer(&config.Config{Port: 8080, CacheSize: 8, LogLevel: "info"})
	require.NoError(t, err)
	return server
}

func do(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(t)

	rr := do(t, server, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("healthCheck returned status %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %s, want ok", resp["status"])
	}
}

func TestReadyCheck(t *testing.T) {
	server := newTestServer(t)

	rr := do(t, server, "GET", "/ready", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("readyCheck returned status %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp["status"] != "ready" {
		t.Errorf("status = %s, want ready", resp["status"])
	}
}

func TestNewServer_InvalidCacheSize(t *testing.T) {
	_, err := NewServer(&config.Config{CacheSize: 0})
	assert.Error(t, err)
}

func TestCorsMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("sets CORS headers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("answers preflight", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/test", nil)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestCreateFlowchart(t *testing.T) {
	server := newTestServer(t)

	rr := do(t, server, "POST", "/api/v1/flowcharts", CreateFlowchartRequest{
		Code: "def foo(a, b):\n    return a + b\n",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp FlowchartResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.ID)
	assert.Equal(t, "flowchart", resp.Format)
	assert.Equal(t, 2, resp.Nodes)
	assert.Equal(t, "st0=>start: start\ne1=>end: end\n\nst0->e1\n", resp.Flowchart)

	// stored result can be fetched again
	rr = do(t, server, "GET", "/api/v1/flowcharts/"+resp.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var fetched FlowchartResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fetched))
	assert.Equal(t, resp.Flowchart, fetched.Flowchart)

	rr = do(t, server, "GET", "/api/v1/flowcharts/"+resp.ID.String()+"/html", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rr.Body.String(), "flowchart.parse")
}

func TestCreateFlowchart_FieldAndFormat(t *testing.T) {
	server := newTestServer(t)
	off := false

	rr := do(t, server, "POST", "/api/v1/flowcharts", CreateFlowchartRequest{
		Code:     "def foo(a, b):\n    if a:\n        b()\n    return a\n",
		Field:    "foo",
		Simplify: &off,
		Format:   "mermaid",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp FlowchartResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "mermaid", resp.Format)
	assert.True(t, strings.HasPrefix(resp.Flowchart, "flowchart TD\n"))
	assert.Contains(t, resp.Flowchart, `cond2{"if a"}`)

	// the HTML view always draws the flowchart.js text
	rr = do(t, server, "GET", "/api/v1/flowcharts/"+resp.ID.String()+"/html", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "cond2=&gt;condition: if a")
}

func TestCreateFlowchart_Errors(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"invalid body", "not an object", http.StatusBadRequest},
		{"missing code", CreateFlowchartRequest{}, http.StatusBadRequest},
		{"unknown format", CreateFlowchartRequest{Code: "x = 1\n", Format: "dot"}, http.StatusBadRequest},
		{"syntax error", CreateFlowchartRequest{Code: "def (:\n"}, http.StatusBadRequest},
		{"selection error", CreateFlowchartRequest{Code: "x = 1\n", Field: "missing"}, http.StatusUnprocessableEntity},
		{"scope error", CreateFlowchartRequest{Code: "break\n"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, server, "POST", "/api/v1/flowcharts", tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestGetFlowchart_NotFound(t *testing.T) {
	server := newTestServer(t)

	rr := do(t, server, "GET", "/api/v1/flowcharts/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, server, "GET", "/api/v1/flowcharts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestResultCache_Evicts(t *testing.T) {
	server, err := NewServer(&config.Config{CacheSize: 1})
	require.NoError(t, err)

	var ids []string
	for _, code := range []string{"x = 1\n", "y = 2\n"} {
		rr := do(t, server, "POST", "/api/v1/flowcharts", CreateFlowchartRequest{Code: code})
		require.Equal(t, http.StatusCreated, rr.Code)

		var resp FlowchartResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		ids = append(ids, resp.ID.String())
	}

	assert.Equal(t, http.StatusNotFound, do(t, server, "GET", "/api/v1/flowcharts/"+ids[0], nil).Code)
	assert.Equal(t, http.StatusOK, do(t, server, "GET", "/api/v1/flowcharts/"+ids[1], nil).Code)
}

func TestResultToResponse_Nil(t *testing.T) {
	if resultToResponse(nil) != nil {
		t.Error("expected nil response for nil result")
	}
}
