// Package auditlog records one entry per completion request in a
// configurable database backend. Writes are buffered and flushed in
// batches so the request path never blocks on the database.
package auditlog

import (
	"context"
	"time"
)

// LogStore defines the interface for audit log storage backends.
// Implementations must be safe for concurrent use.
type LogStore interface {
	// WriteBatch writes multiple log entries to storage.
	// This is called by the Logger when flushing buffered entries.
	WriteBatch(ctx context.Context, entries []*LogEntry) error

	// Flush forces any pending writes to complete.
	// Called during graceful shutdown.
	Flush(ctx context.Context) error

	// Close releases resources and flushes pending writes.
	Close() error
}

// LogEntry is one audited completion request. Fields commonly filtered
// on (provider, model, status, timestamp) are stored as columns.
type LogEntry struct {
	// ID is a unique identifier for this entry (UUID)
	ID string `json:"id" bson:"_id"`

	// Timestamp is when the request started
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	// DurationNs is the adapter call duration in nanoseconds
	DurationNs int64 `json:"duration_ns" bson:"duration_ns"`

	Provider   string `json:"provider" bson:"provider"`
	Model      string `json:"model" bson:"model"`
	StatusCode int    `json:"status_code" bson:"status_code"`

	RequestID string `json:"request_id,omitempty" bson:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty" bson:"client_ip,omitempty"`
	Path      string `json:"path,omitempty" bson:"path,omitempty"`
	Stream    bool   `json:"stream,omitempty" bson:"stream,omitempty"`

	PromptTokens     int `json:"prompt_tokens,omitempty" bson:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty" bson:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty" bson:"total_tokens,omitempty"`

	// ErrorKind is the gateway error classification, empty on success
	ErrorKind string `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
}

// Config holds audit logging configuration
type Config struct {
	// Enabled controls whether audit logging is active
	Enabled bool

	// BufferSize is the number of log entries to buffer before dropping
	BufferSize int

	// FlushInterval is how often to flush buffered logs
	FlushInterval time.Duration

	// RetentionDays is how long to keep logs (0 = forever)
	RetentionDays int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		RetentionDays: 30,
	}
}
