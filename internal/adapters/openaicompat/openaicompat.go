// Package openaicompat maps the canonical request/response model onto the
// OpenAI chat-completions wire format. Groq speaks the same dialect, so
// both adapters share this mapping.
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"modelgate/internal/core"
	"modelgate/internal/pkg/llmclient"
)

// ChatRequest is the JSON body sent to /chat/completions.
type ChatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens"`
	TopP             float64   `json:"top_p"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
	PresencePenalty  float64   `json:"presence_penalty"`
	Stop             []string  `json:"stop,omitempty"`
	Stream           bool      `json:"stream,omitempty"`
}

// Message is one chat turn on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequest converts a validated gateway request into the wire body.
// The single prompt becomes one user message.
func BuildRequest(req *core.ChatRequest, stream bool) *ChatRequest {
	return &ChatRequest{
		Model:            req.Model,
		Messages:         []Message{{Role: "user", Content: req.Prompt}},
		Temperature:      req.Parameters.Temperature,
		MaxTokens:        req.Parameters.MaxTokens,
		TopP:             req.Parameters.TopP,
		FrequencyPenalty: req.Parameters.FrequencyPenalty,
		PresencePenalty:  req.Parameters.PresencePenalty,
		Stop:             req.Parameters.Stop,
		Stream:           stream,
	}
}

// ChatResponse is the success body of /chat/completions.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion alternative; the gateway only reads the first.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage mirrors the upstream token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Normalize converts the wire response into the canonical shape.
// fallbackModel fills metadata when the upstream omits its model echo.
func (r *ChatResponse) Normalize(fallbackModel string) *core.NormalizedResponse {
	resp := &core.NormalizedResponse{
		Metadata: core.Metadata{Model: r.Model},
	}
	if resp.Metadata.Model == "" {
		resp.Metadata.Model = fallbackModel
	}
	if len(r.Choices) > 0 {
		resp.Content = r.Choices[0].Message.Content
		resp.Metadata.FinishReason = r.Choices[0].FinishReason
	}
	if r.Usage != nil {
		resp.Usage = &core.Usage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		}
	}
	return resp
}

// StreamFrame is one SSE data payload of a streaming completion.
type StreamFrame struct {
	Choices []StreamChoice `json:"choices"`
}

// StreamChoice carries the incremental delta for one alternative.
type StreamChoice struct {
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental message fragment.
type Delta struct {
	Content string `json:"content"`
}

// Stream pumps an OpenAI-style SSE body into canonical stream chunks.
// Frames arrive in upstream order; a frame that fails to parse is skipped
// and logged at debug, never surfaced to the client. The channel yields
// content chunks, then exactly one done chunk (or one error chunk on a
// mid-stream read failure), then closes. The body is always closed.
func Stream(ctx context.Context, provider string, body io.ReadCloser) <-chan core.StreamChunk {
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
			if string(payload) == llmclient.DoneSentinel {
				send(ctx, ch, core.DoneChunk())
				return
			}

			var frame StreamFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				slog.Debug("skipping malformed stream frame",
					"provider", provider, "error", err)
				continue
			}
			if len(frame.Choices) == 0 {
				continue
			}
			if text := frame.Choices[0].Delta.Content; text != "" {
				if !send(ctx, ch, core.ContentChunk(text)) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			send(ctx, ch, core.ErrorChunk(
				fmt.Sprintf("stream from %s interrupted: %v", provider, err)))
			return
		}
		// Upstream closed without a [DONE] sentinel; the stream is still
		// complete from the client's point of view.
		send(ctx, ch, core.DoneChunk())
	}()
	return ch
}

func send(ctx context.Context, ch chan<- core.StreamChunk, chunk core.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
