package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSStream subscribes to a NATS subject. The client library's own
// reconnect machinery is disabled so that backoff, retry budget and
// status reporting stay in the Manager, identical to the SSE path.
type NATSStream struct {
	name    string
	url     string
	subject string
}

// NewNATSStream creates a NATS transport for the given server URL and
// subject.
func NewNATSStream(name, url, subject string) *NATSStream {
	return &NATSStream{name: name, url: url, subject: subject}
}

// Name implements Stream.
func (s *NATSStream) Name() string { return s.name }

// Connect implements Stream.
func (s *NATSStream) Connect(ctx context.Context) (Conn, error) {
	nc, err := nats.Connect(s.url,
		nats.Name("pool_monitor/"+s.name),
		nats.Timeout(10*time.Second),
		nats.NoReconnect(),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	sub, err := nc.SubscribeSync(s.subject)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats subscribe %s: %w", s.subject, err)
	}

	return &natsConn{stream: s.name, nc: nc, sub: sub}, nil
}

type natsConn struct {
	stream string
	nc     *nats.Conn
	sub    *nats.Subscription
}

// Receive blocks for the next message on the subject.
func (c *natsConn) Receive(ctx context.Context) (RawEvent, error) {
	msg, err := c.sub.NextMsgWithContext(ctx)
	if err != nil {
		return RawEvent{}, err
	}
	return RawEvent{Stream: c.stream, Event: msg.Subject, Data: msg.Data}, nil
}

// Close unsubscribes and closes the connection, unblocking Receive.
func (c *natsConn) Close() error {
	err := c.sub.Unsubscribe()
	c.nc.Close()
	return err
}
