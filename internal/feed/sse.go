package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// SSEStream subscribes to a server-sent-events endpoint. Comment frames
// (": ping") are surfaced as heartbeats so the idle watchdog sees them.
type SSEStream struct {
	name   string
	url    string
	client *http.Client
}

// NewSSEStream creates an SSE transport for the given endpoint.
// A nil client selects http.DefaultClient.
func NewSSEStream(name, url string, client *http.Client) *SSEStream {
	if client == nil {
		client = http.DefaultClient
	}
	return &SSEStream{name: name, url: url, client: client}
}

// Name implements Stream.
func (s *SSEStream) Name() string { return s.name }

// Connect implements Stream. The response body stays bound to ctx, so
// cancelling ctx unblocks any in-flight Receive.
func (s *SSEStream) Connect(ctx context.Context) (Conn, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("sse request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sse connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("sse connect: unexpected status %d", resp.StatusCode)
	}

	return &sseConn{
		stream: s.name,
		body:   resp.Body,
		r:      bufio.NewReader(resp.Body),
	}, nil
}

type sseConn struct {
	stream string
	body   io.ReadCloser
	r      *bufio.Reader

	closeOnce sync.Once
	closeErr  error
}

// Receive reads the next SSE frame. A comment-only frame is returned as a
// heartbeat (empty Data); a data frame carries the event name and the
// joined data lines.
func (c *sseConn) Receive(ctx context.Context) (RawEvent, error) {
	var event string
	var data []string

	for {
		if err := ctx.Err(); err != nil {
			return RawEvent{}, err
		}

		line, err := c.r.ReadString('\n')
		if err != nil {
			return RawEvent{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			// Frame boundary: dispatch if anything accumulated.
			if len(data) > 0 {
				return RawEvent{
					Stream: c.stream,
					Event:  event,
					Data:   []byte(strings.Join(data, "\n")),
				}, nil
			}
			event = ""

		case strings.HasPrefix(line, ":"):
			// Keep-alive comment. Mid-frame comments are ignored; a lone
			// comment is traffic worth reporting to the watchdog.
			if len(data) == 0 {
				return RawEvent{Stream: c.stream}, nil
			}

		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))

		default:
			// id:, retry: and unknown fields are irrelevant here.
		}
	}
}

// Close closes the response body, unblocking any pending Receive.
func (c *sseConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.body.Close()
	})
	return c.closeErr
}
