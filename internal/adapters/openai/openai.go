// Package openai provides the OpenAI chat-completions adapter.
package openai

import (
	"context"
	"net/http"

	"modelgate/internal/adapters"
	"modelgate/internal/adapters/openaicompat"
	"modelgate/internal/core"
	"modelgate/internal/pkg/llmclient"
)

// Registration provides factory registration for the OpenAI adapter.
var Registration = adapters.Registration{
	Type: "openai",
	New:  New,
}

const defaultBaseURL = "https://api.openai.com/v1"

// Adapter implements core.Adapter for OpenAI.
type Adapter struct {
	client *llmclient.Client
	apiKey string
}

// New creates a new OpenAI adapter.
func New(apiKey string, opts adapters.Options) core.Adapter {
	a := &Adapter{apiKey: apiKey}
	cfg := llmclient.DefaultConfig("openai", defaultBaseURL)
	cfg.Hooks = opts.Hooks
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	a.client = llmclient.New(cfg, a.setHeaders)
	return a
}

// NewWithHTTPClient creates an OpenAI adapter with a custom HTTP client.
// If httpClient is nil, http.DefaultClient is used.
func NewWithHTTPClient(apiKey string, httpClient *http.Client, hooks llmclient.Hooks) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	a := &Adapter{apiKey: apiKey}
	cfg := llmclient.DefaultConfig("openai", defaultBaseURL)
	cfg.Hooks = hooks
	a.client = llmclient.NewWithHTTPClient(httpClient, cfg, a.setHeaders)
	return a
}

// SetBaseURL allows configuring a custom base URL for the adapter.
func (a *Adapter) SetBaseURL(url string) {
	a.client.SetBaseURL(url)
}

// setHeaders sets the required headers for OpenAI API requests
func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	// Forward request ID if present in context using OpenAI's
	// X-Client-Request-Id header. OpenAI requires ASCII-only characters
	// and max 512 bytes, otherwise returns 400.
	if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
		req.Header.Set("X-Client-Request-Id", requestID)
	}
}

// isValidClientRequestID checks if the request ID is valid for OpenAI's
// X-Client-Request-Id header: ASCII characters only, max 512 characters.
func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}

// GenerateCompletion sends a blocking chat completion request to OpenAI.
func (a *Adapter) GenerateCompletion(ctx context.Context, req *core.ChatRequest) (*core.NormalizedResponse, error) {
	var resp openaicompat.ChatResponse
	err := a.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     openaicompat.BuildRequest(req, false),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Normalize(req.Model), nil
}

// GenerateStreamingCompletion opens an SSE stream and relays it as
// canonical chunks. Pre-stream upstream failures are returned directly.
func (a *Adapter) GenerateStreamingCompletion(ctx context.Context, req *core.ChatRequest) (<-chan core.StreamChunk, error) {
	body, err := a.client.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     openaicompat.BuildRequest(req, true),
	})
	if err != nil {
		return nil, err
	}
	return openaicompat.Stream(ctx, "openai", body), nil
}
