// Package anthropic provides the Anthropic messages API adapter.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"modelgate/internal/adapters"
	"modelgate/internal/core"
	"modelgate/internal/pkg/llmclient"
)

// Registration provides factory registration for the Anthropic adapter.
var Registration = adapters.Registration{
	Type: "anthropic",
	New:  New,
}

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"
)

// Adapter implements core.Adapter for Anthropic.
type Adapter struct {
	client *llmclient.Client
	apiKey string
}

// New creates a new Anthropic adapter.
func New(apiKey string, opts adapters.Options) core.Adapter {
	a := &Adapter{apiKey: apiKey}
	cfg := llmclient.DefaultConfig("anthropic", defaultBaseURL)
	cfg.Hooks = opts.Hooks
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	a.client = llmclient.New(cfg, a.setHeaders)
	return a
}

// NewWithHTTPClient creates an Anthropic adapter with a custom HTTP client.
// If httpClient is nil, http.DefaultClient is used.
func NewWithHTTPClient(apiKey string, httpClient *http.Client, hooks llmclient.Hooks) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	a := &Adapter{apiKey: apiKey}
	cfg := llmclient.DefaultConfig("anthropic", defaultBaseURL)
	cfg.Hooks = hooks
	a.client = llmclient.NewWithHTTPClient(httpClient, cfg, a.setHeaders)
	return a
}

// SetBaseURL allows configuring a custom base URL for the adapter.
func (a *Adapter) SetBaseURL(url string) {
	a.client.SetBaseURL(url)
}

// setHeaders sets the required headers for Anthropic API requests.
// Anthropic uses x-api-key rather than a bearer token.
func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
}

// messagesRequest is the JSON body sent to /messages. The messages API has
// no frequency or presence penalty knobs; those parameters are dropped.
type messagesRequest struct {
	Model         string    `json:"model"`
	Messages      []message `json:"messages"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   float64   `json:"temperature"`
	TopP          float64   `json:"top_p"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildRequest(req *core.ChatRequest, stream bool) *messagesRequest {
	return &messagesRequest{
		Model:         req.Model,
		Messages:      []message{{Role: "user", Content: req.Prompt}},
		MaxTokens:     req.Parameters.MaxTokens,
		Temperature:   req.Parameters.Temperature,
		TopP:          req.Parameters.TopP,
		StopSequences: req.Parameters.Stop,
		Stream:        stream,
	}
}

// messagesResponse is the success body of /messages.
type messagesResponse struct {
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      *usage         `json:"usage,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// normalizeStopReason maps Anthropic stop reasons onto the OpenAI-style
// vocabulary the gateway reports.
func normalizeStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return reason
	}
}

func (r *messagesResponse) normalize(fallbackModel string) *core.NormalizedResponse {
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	resp := &core.NormalizedResponse{
		Content: sb.String(),
		Metadata: core.Metadata{
			Model:        r.Model,
			FinishReason: normalizeStopReason(r.StopReason),
		},
	}
	if resp.Metadata.Model == "" {
		resp.Metadata.Model = fallbackModel
	}
	if r.Usage != nil {
		resp.Usage = &core.Usage{
			PromptTokens:     r.Usage.InputTokens,
			CompletionTokens: r.Usage.OutputTokens,
			TotalTokens:      r.Usage.InputTokens + r.Usage.OutputTokens,
		}
	}
	return resp
}

// GenerateCompletion sends a blocking messages request to Anthropic.
func (a *Adapter) GenerateCompletion(ctx context.Context, req *core.ChatRequest) (*core.NormalizedResponse, error) {
	var resp messagesResponse
	err := a.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/messages",
		Body:     buildRequest(req, false),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.normalize(req.Model), nil
}

// streamFrame is one SSE data payload of a streaming messages call. The
// event type is carried inside the payload, so the scanner's event lines
// can be ignored.
type streamFrame struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateStreamingCompletion opens an SSE stream and relays it as
// canonical chunks. Pre-stream upstream failures are returned directly.
func (a *Adapter) GenerateStreamingCompletion(ctx context.Context, req *core.ChatRequest) (<-chan core.StreamChunk, error) {
	body, err := a.client.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/messages",
		Body:     buildRequest(req, true),
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan core.StreamChunk)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := llmclient.NewSSEScanner(body)
		for {
			payload, ok := scanner.Next()
			if !ok {
				break
			}

			var frame streamFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				slog.Debug("skipping malformed stream frame",
					"provider", "anthropic", "error", err)
				continue
			}

			switch frame.Type {
			case "content_block_delta":
				if frame.Delta.Text != "" {
					if !send(ctx, ch, core.ContentChunk(frame.Delta.Text)) {
						return
					}
				}
			case "message_stop":
				send(ctx, ch, core.DoneChunk())
				return
			case "error":
				send(ctx, ch, core.ErrorChunk(frame.Error.Message))
				return
			}
			// message_start, content_block_start, message_delta, and ping
			// frames carry no client-visible content.
		}

		if err := scanner.Err(); err != nil {
			send(ctx, ch, core.ErrorChunk(
				fmt.Sprintf("stream from anthropic interrupted: %v", err)))
			return
		}
		send(ctx, ch, core.DoneChunk())
	}()
	return ch, nil
}

func send(ctx context.Context, ch chan<- core.StreamChunk, chunk core.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
