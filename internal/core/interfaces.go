// Package core defines the shared types, error taxonomy, and adapter
// interface for the LLM gateway.
package core

import "context"

// Adapter translates normalized chat requests into one provider's wire
// format and normalizes the results back. Implementations are stateless
// aside from held configuration and safe for concurrent use.
type Adapter interface {
	// GenerateCompletion makes one blocking upstream call and maps the
	// upstream success body into a NormalizedResponse. Upstream failures
	// are returned as *Error with the upstream kind.
	GenerateCompletion(ctx context.Context, req *ChatRequest) (*NormalizedResponse, error)

	// GenerateStreamingCompletion opens a streamed upstream call and
	// returns an ordered channel of canonical chunks. Errors that occur
	// before any chunk is produced are returned synchronously; the channel
	// ends with exactly one done chunk (or an error chunk) and is then
	// closed. Providers without a native incremental API degrade to a
	// single content chunk followed by done.
	GenerateStreamingCompletion(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)
}
