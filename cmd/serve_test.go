package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dataforseo-mcp/internal/tools"
)

type stubTool struct {
	name   string
	result string
	err    error
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }

func (s *stubTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	return s.result, s.err
}

func stubRegistry(t *testing.T, handlers ...tools.Handler) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	for _, h := range handlers {
		require.NoError(t, reg.Register(h))
	}
	return reg
}

func TestServeMux_HealthEndpoint(t *testing.T) {
	mux := newRouter(stubRegistry(t), "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	err := json.Unmarshal(rr.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "ok", body["status"])
}

func TestServeMux_MetricsEndpoint(t *testing.T) {
	mux := newRouter(stubRegistry(t), "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServeMux_ToolsListing(t *testing.T) {
	mux := newRouter(stubRegistry(t,
		&stubTool{name: "b_tool"},
		&stubTool{name: "a_tool"},
	), "")

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Tools, 2)
	// Registry listing is sorted by name.
	assert.Equal(t, "a_tool", body.Tools[0].Name)
	assert.Equal(t, "b_tool", body.Tools[1].Name)
}

func TestServeMux_ToolCall(t *testing.T) {
	mux := newRouter(stubRegistry(t,
		&stubTool{name: "echo", result: `{"ok":true}`},
	), "")

	payload := []byte(`{"tool":"echo","arguments":{"x":1}}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Tool   string          `json:"tool"`
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "echo", resp.Tool)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
}

func TestServeMux_ToolCall_CSVResultWrappedAsString(t *testing.T) {
	mux := newRouter(stubRegistry(t,
		&stubTool{name: "export", result: "keyword,volume\nseo,100\n"},
	), "")

	payload := []byte(`{"tool":"export"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Result string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Result, "seo,100")
}

func TestServeMux_ToolCall_UnknownTool(t *testing.T) {
	mux := newRouter(stubRegistry(t), "")

	payload := []byte(`{"tool":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown tool")
}

func TestServeMux_ToolCall_MissingTool(t *testing.T) {
	mux := newRouter(stubRegistry(t), "")

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "tool is required")
}

func TestServeMux_ToolCall_InvalidJSON(t *testing.T) {
	mux := newRouter(stubRegistry(t), "")

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestServeMux_ToolCall_HandlerError(t *testing.T) {
	mux := newRouter(stubRegistry(t,
		&stubTool{name: "broken", err: eris.New("upstream down")},
	), "")

	payload := []byte(`{"tool":"broken"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "upstream down")
}

func TestServeMux_Auth_ValidKey(t *testing.T) {
	mux := newRouter(stubRegistry(t,
		&stubTool{name: "echo", result: `{}`},
	), "test-secret-123")

	payload := []byte(`{"tool":"echo"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer test-secret-123")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServeMux_Auth_InvalidKey(t *testing.T) {
	mux := newRouter(stubRegistry(t), "test-secret-123")

	payload := []byte(`{"tool":"echo"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer wrong-key")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "unauthorized")
}

func TestServeMux_Auth_MissingHeader(t *testing.T) {
	mux := newRouter(stubRegistry(t), "test-secret-123")

	payload := []byte(`{"tool":"echo"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestServeMux_Auth_HealthAndMetricsOpen(t *testing.T) {
	// Health and metrics stay reachable without the secret.
	mux := newRouter(stubRegistry(t), "test-secret-123")

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestEnsureJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(ensureJSON(`{"a":1}`)))

	wrapped := ensureJSON("plain text,with,commas")
	var s string
	require.NoError(t, json.Unmarshal(wrapped, &s))
	assert.Equal(t, "plain text,with,commas", s)
}
