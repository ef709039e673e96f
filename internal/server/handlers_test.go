package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgate/config"
	"modelgate/internal/adapters"
	"modelgate/internal/core"
	"modelgate/internal/history"
)

// stubAdapter is a countable adapter standing in for every provider.
type stubAdapter struct {
	mu      sync.Mutex
	calls   int
	lastReq *core.ChatRequest

	resp      *core.NormalizedResponse
	err       error
	chunks    []core.StreamChunk
	streamErr error
}

func (s *stubAdapter) GenerateCompletion(_ context.Context, req *core.ChatRequest) (*core.NormalizedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubAdapter) GenerateStreamingCompletion(_ context.Context, req *core.ChatRequest) (<-chan core.StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	ch := make(chan core.StreamChunk, len(s.chunks))
	for _, chunk := range s.chunks {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func (s *stubAdapter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestServer(t *testing.T, adapter *stubAdapter, providers map[string]config.ProviderConfig) *Server {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Port:           "0",
			BodySizeLimit:  1 << 20,
			RequestTimeout: time.Minute,
		},
		Defaults: config.Defaults{
			Temperature: 0.7,
			MaxTokens:   1000,
			TopP:        1,
		},
		Providers: providers,
		History:   config.HistoryConfig{Dir: t.TempDir()},
	}

	builder := func(string, adapters.Options) core.Adapter { return adapter }
	factory := adapters.NewFactory(adapters.Options{},
		adapters.Registration{Type: "openai", New: builder},
		adapters.Registration{Type: "anthropic", New: builder},
		adapters.Registration{Type: "groq", New: builder},
		adapters.Registration{Type: "google", New: builder},
	)

	hist, err := history.NewStore(cfg.History.Dir)
	require.NoError(t, err)

	return New(Deps{Config: cfg, Factory: factory, History: hist})
}

func doJSON(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, nil)

	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["environment"])
	assert.NotEmpty(t, body["version"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestListProviders(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test"},
	})

	rec := doJSON(t, srv, http.MethodGet, "/api/models/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	providers, ok := body["providers"].(map[string]interface{})
	require.True(t, ok)
	require.Len(t, providers, 4)

	openai := providers["openai"].(map[string]interface{})
	assert.Equal(t, true, openai["available"])
	assert.NotEmpty(t, openai["models"])

	anthropic := providers["anthropic"].(map[string]interface{})
	assert.Equal(t, false, anthropic["available"])
	assert.NotEmpty(t, anthropic["models"])
}

func TestListProviders_Idempotent(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test"},
	})

	first := doJSON(t, srv, http.MethodGet, "/api/models/providers", "")
	second := doJSON(t, srv, http.MethodGet, "/api/models/providers", "")

	assert.Equal(t, decodeBody(t, first)["providers"], decodeBody(t, second)["providers"])
}

func TestProviderModels(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test"},
	})

	rec := doJSON(t, srv, http.MethodGet, "/api/models/openai", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "openai", body["provider"])
	assert.Equal(t, true, body["available"])
	assert.Contains(t, body["models"], "gpt-4o")
}

func TestProviderModels_Unknown(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/models/cohere", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "configuration_error", body["error"])
	assert.Equal(t, "cohere", body["provider"])
}

func TestProviderModels_Unavailable(t *testing.T) {
	srv := newTestServer(t, &stubAdapter{}, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/models/anthropic", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["available"])
	assert.NotEmpty(t, body["models"])
}

func TestChat_Success(t *testing.T) {
	adapter := &stubAdapter{
		resp: &core.NormalizedResponse{
			Content: "Hello there!",
			Usage:   &core.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			Metadata: core.Metadata{
				Model:        "gpt-4o",
				FinishReason: "stop",
			},
		},
	}
	srv := newTestServer(t, adapter, map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test"},
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/models/chat",
		`{"prompt": "Say hello", "model": "gpt-4o", "provider": "openai"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "openai", body["provider"])
	assert.Equal(t, "gpt-4o", body["model"])
	assert.NotNil(t, body["duration"])
	assert.NotEmpty(t, body["timestamp"])

	resp := body["response"].(map[string]interface{})
	assert.Equal(t, "Hello there!", resp["content"])

	assert.Equal(t, 1, adapter.callCount())
	assert.Equal(t, 0.7, adapter.lastReq.Parameters.Temperature)
	assert.Equal(t, 1000, adapter.lastReq.Parameters.MaxTokens)
}

func TestChat_ValidationFailureSkipsAdapter(t *testing.T) {
	adapter := &stubAdapter{}
	srv := newTestServer(t, adapter, map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test"},
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/models/chat",
		`{"prompt": "", "model": "gpt-4o", "provider": "openai", "parameters": {"temperature": 5}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "validation_error", body["error"])
	details := body["details"].([]interface{})
	assert.Len(t, details, 2)

	assert.Zero(t, adapter.callCount())
}

func TestChat_IncompatibleModel(t *testing.T) {
	adapter := &stubAdapter{}
	srv := newTestServer(t, adapter, map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test"},
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/models/chat",
		`{"prompt": "hi", "model": "claude-3-opus-20240229", "provider": "openai"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "validation_error", body["error"])
	assert.Zero(t, adapter.callCount())
}

func TestChat_UnavailableProvider(t *testing.T) {
	adapter := &stubAdapter{}
	srv := newTestServer(t, adapter, map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test"},
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/models/chat",
		`{"prompt": "hi", "model": "claude-3-opus-20240229", "provider": "anthropic"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "configuration_error", body["error"])
	assert.Equal(t, "anthropic", body["provider"])
	assert.Zero(t, adapter.callCount())
}

func TestChat_UpstreamStatusMirrored(t *testing.T) {
	adapter := &stubAdapter{
		err: core.NewUpstreamError("openai", http.StatusTooManyRequests, "Rate limit reached", nil),
	}
	srv := newTestServer(t, adapter, map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test"},
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/models/chat",
		`{"prompt": "hi", "model": "gpt-4o", "provider": "openai"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "upstream_error", body["error"])
	assert.Equal(t, "Rate limit reached", body["message"])
	assert.Equal(t, "openai", body["provider"])
}

func TestChat_NetworkFailureIs502(t *testing.T) {
	adapter := &stubAdapter{
		err: core.NewUpstreamError("openai", http.StatusBadGateway, "failed to reach openai", nil),
	}
	srv := newTestServer(t, adapter, map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test"},
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/models/chat",
		`{"prompt": "hi", "model": "gpt-4o", "provider": "openai"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_error", decodeBody(t, rec)["error"])
}

func TestChat_MalformedBody(t *testing.T) {
	adapter := &stubAdapter{}
	srv := newTestServer(t, adapter, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/models/chat", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeBody(t, rec)["error"])
	assert.Zero(t, adapter.callCount())
}
