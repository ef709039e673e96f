// Package groq provides the Groq adapter. Groq exposes an
// OpenAI-compatible chat-completions API, so the wire mapping is shared
// with the OpenAI adapter.
package groq

import (
	"context"
	"net/http"

	"modelgate/internal/adapters"
	"modelgate/internal/adapters/openaicompat"
	"modelgate/internal/core"
	"modelgate/internal/pkg/llmclient"
)

// Registration provides factory registration for the Groq adapter.
var Registration = adapters.Registration{
	Type: "groq",
	New:  New,
}

const defaultBaseURL = "https://api.groq.com/openai/v1"

// Adapter implements core.Adapter for Groq.
type Adapter struct {
	client *llmclient.Client
	apiKey string
}

// New creates a new Groq adapter.
func New(apiKey string, opts adapters.Options) core.Adapter {
	a := &Adapter{apiKey: apiKey}
	cfg := llmclient.DefaultConfig("groq", defaultBaseURL)
	cfg.Hooks = opts.Hooks
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	a.client = llmclient.New(cfg, a.setHeaders)
	return a
}

// NewWithHTTPClient creates a Groq adapter with a custom HTTP client.
// If httpClient is nil, http.DefaultClient is used.
func NewWithHTTPClient(apiKey string, httpClient *http.Client, hooks llmclient.Hooks) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	a := &Adapter{apiKey: apiKey}
	cfg := llmclient.DefaultConfig("groq", defaultBaseURL)
	cfg.Hooks = hooks
	a.client = llmclient.NewWithHTTPClient(httpClient, cfg, a.setHeaders)
	return a
}

// SetBaseURL allows configuring a custom base URL for the adapter.
func (a *Adapter) SetBaseURL(url string) {
	a.client.SetBaseURL(url)
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
}

// GenerateCompletion sends a blocking chat completion request to Groq.
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
	return openaicompat.Stream(ctx, "groq", body), nil
}
