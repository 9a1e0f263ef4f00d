package providers

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is one parsed Server-Sent Events frame.
type SSEEvent struct {
	// Type is the value of the "event:" field, if any
	Type string

	// Data is the joined value of the frame's "data:" lines
	Data string
}

// SSEScanner reads Server-Sent Events frames from a vendor stream.
// Comment lines (heartbeats starting with ':') and unknown fields are
// silently dropped, per the SSE wire format.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner creates a scanner over an SSE response body.
func NewSSEScanner(r io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(r)
	// Vendor chunks can exceed the default 64KB token limit on long
	// completions with large deltas.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEScanner{scanner: scanner}
}

// Next reads the next complete event from the stream.
// Returns io.EOF when the stream is exhausted.
func (s *SSEScanner) Next() (*SSEEvent, error) {
	var eventType string
	var dataLines []string

	for s.scanner.Scan() {
		line := s.scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if eventType != "" || len(dataLines) > 0 {
				return &SSEEvent{
					Type: eventType,
					Data: strings.Join(dataLines, "\n"),
				}, nil
			}
			continue
		}

		// Heartbeat/comment line
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// Ignore other SSE fields (id, retry)
	}

	if err := s.scanner.Err(); err != nil {
		return nil, err
	}

	// Stream ended mid-event; surface whatever was buffered.
	if eventType != "" || len(dataLines) > 0 {
		return &SSEEvent{
			Type: eventType,
			Data: strings.Join(dataLines, "\n"),
		}, nil
	}

	return nil, io.EOF
}
