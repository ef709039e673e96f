package core

// ChatRequest is a fully validated chat completion request with all
// parameter defaults applied. It is immutable once produced by the
// validator; adapters only read from it.
type ChatRequest struct {
	Prompt     string     `json:"prompt"`
	Model      string     `json:"model"`
	Provider   string     `json:"provider"`
	Parameters Parameters `json:"parameters"`
}

// Parameters holds the generation parameters after defaults are applied.
// Adapters map these onto provider wire formats 1:1 where the upstream
// supports the field and omit the rest.
type Parameters struct {
	Temperature      float64  `json:"temperature"`
	MaxTokens        int      `json:"max_tokens"`
	TopP             float64  `json:"top_p"`
	FrequencyPenalty float64  `json:"frequency_penalty"`
	PresencePenalty  float64  `json:"presence_penalty"`
	Stop             []string `json:"stop,omitempty"`
	Stream           bool     `json:"stream"`
}

// NormalizedResponse is the canonical completion shape every adapter
// produces regardless of upstream format differences.
type NormalizedResponse struct {
	Content  string   `json:"content"`
	Usage    *Usage   `json:"usage,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Metadata carries response metadata common to all providers.
type Metadata struct {
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason"`
}

// StreamChunk type markers
const (
	ChunkTypeContent = "content"
	ChunkTypeDone    = "done"
)

// StreamChunk is the canonical unit emitted during streaming, independent
// of how the upstream protocol frames its own deltas. Exactly one of the
// three shapes is populated: a content chunk, a done chunk, or an error.
type StreamChunk struct {
	Type    string `json:"type,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ContentChunk builds a chunk carrying incremental text.
func ContentChunk(text string) StreamChunk {
	return StreamChunk{Type: ChunkTypeContent, Content: text}
}

// DoneChunk builds the terminal chunk of a healthy stream.
func DoneChunk() StreamChunk {
	return StreamChunk{Type: ChunkTypeDone}
}

// ErrorChunk builds the in-band error chunk emitted when a stream fails
// after headers are committed.
func ErrorChunk(message string) StreamChunk {
	return StreamChunk{Error: message}
}
