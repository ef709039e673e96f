// Package google provides the Google Generative AI adapter, speaking the
// native generateContent API.
package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"modelgate/internal/adapters"
	"modelgate/internal/core"
	"modelgate/internal/pkg/llmclient"
)

// Registration provides factory registration for the Google adapter.
var Registration = adapters.Registration{
	Type: "google",
	New:  New,
}

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Adapter implements core.Adapter for Google Generative AI.
type Adapter struct {
	client *llmclient.Client
	apiKey string
}

// New creates a new Google adapter.
func New(apiKey string, opts adapters.Options) core.Adapter {
	a := &Adapter{apiKey: apiKey}
	cfg := llmclient.DefaultConfig("google", defaultBaseURL)
	cfg.Hooks = opts.Hooks
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	a.client = llmclient.New(cfg, nil)
	return a
}

// NewWithHTTPClient creates a Google adapter with a custom HTTP client.
// If httpClient is nil, http.DefaultClient is used.
func NewWithHTTPClient(apiKey string, httpClient *http.Client, hooks llmclient.Hooks) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	a := &Adapter{apiKey: apiKey}
	cfg := llmclient.DefaultConfig("google", defaultBaseURL)
	cfg.Hooks = hooks
	a.client = llmclient.NewWithHTTPClient(httpClient, cfg, nil)
	return a
}

// SetBaseURL allows configuring a custom base URL for the adapter.
func (a *Adapter) SetBaseURL(url string) {
	a.client.SetBaseURL(url)
}

// generateRequest is the JSON body sent to models/{model}:generateContent.
// The API has no frequency or presence penalty knobs; those parameters
// are dropped.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64  `json:"temperature"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
	TopP            float64  `json:"topP"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

func buildRequest(req *core.ChatRequest) *generateRequest {
	return &generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: req.Prompt}},
		}},
		GenerationConfig: generationConfig{
			Temperature:     req.Parameters.Temperature,
			MaxOutputTokens: req.Parameters.MaxTokens,
			TopP:            req.Parameters.TopP,
			StopSequences:   req.Parameters.Stop,
		},
	}
}

// generateResponse is the success body of generateContent.
type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// normalizeFinishReason maps the API's uppercase reasons onto the
// OpenAI-style vocabulary the gateway reports.
func normalizeFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	default:
		return strings.ToLower(reason)
	}
}

func (r *generateResponse) normalize(fallbackModel string) *core.NormalizedResponse {
	resp := &core.NormalizedResponse{
		Metadata: core.Metadata{Model: r.ModelVersion},
	}
	if resp.Metadata.Model == "" {
		resp.Metadata.Model = fallbackModel
	}
	if len(r.Candidates) > 0 {
		var sb strings.Builder
		for _, p := range r.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		resp.Content = sb.String()
		resp.Metadata.FinishReason = normalizeFinishReason(r.Candidates[0].FinishReason)
	}
	if r.UsageMetadata != nil {
		resp.Usage = &core.Usage{
			PromptTokens:     r.UsageMetadata.PromptTokenCount,
			CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      r.UsageMetadata.TotalTokenCount,
		}
	}
	return resp
}

// GenerateCompletion sends a blocking generateContent request. The API
// authenticates with a key query parameter rather than a header.
func (a *Adapter) GenerateCompletion(ctx context.Context, req *core.ChatRequest) (*core.NormalizedResponse, error) {
	var resp generateResponse
	err := a.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: fmt.Sprintf("/models/%s:generateContent", req.Model),
		Body:     buildRequest(req),
		Query:    url.Values{"key": {a.apiKey}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.normalize(req.Model), nil
}

// GenerateStreamingCompletion serves a streaming request with one blocking
// completion relayed as a single content chunk followed by done. The
// streaming endpoint frames its output as chunked JSON arrays rather than
// SSE, so it is not wired here; at the interface the degraded stream is
// indistinguishable from a short native one.
func (a *Adapter) GenerateStreamingCompletion(ctx context.Context, req *core.ChatRequest) (<-chan core.StreamChunk, error) {
	resp, err := a.GenerateCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan core.StreamChunk, 2)
	ch <- core.ContentChunk(resp.Content)
	ch <- core.DoneChunk()
	close(ch)
	return ch, nil
}
