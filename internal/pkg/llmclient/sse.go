package llmclient

import (
	"bufio"
	"bytes"
	"io"
)

// DoneSentinel is the payload OpenAI-style streams send as their final
// data event.
const DoneSentinel = "[DONE]"

var dataPrefix = []byte("data:")

// SSEScanner reads server-sent-event data payloads one frame at a time.
// Event-type lines, comments, and blank separators are skipped; only the
// payload after "data:" is surfaced. The scanner never allocates beyond
// one frame, so chunks are forwarded in upstream arrival order.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner wraps an upstream SSE body.
func NewSSEScanner(r io.Reader) *SSEScanner {
	sc := bufio.NewScanner(r)
	// Some providers send large single-frame payloads; grow past the
	// bufio default.
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEScanner{scanner: sc}
}

// Next returns the next data payload. ok is false at end of stream or on
// a read error (see Err).
func (s *SSEScanner) Next() (data []byte, ok bool) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 || !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
		if len(payload) == 0 {
			continue
		}
		// Copy out: the scanner reuses its buffer on the next Scan.
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, true
	}
	return nil, false
}

// Err returns the first non-EOF error encountered while reading.
func (s *SSEScanner) Err() error {
	return s.scanner.Err()
}
