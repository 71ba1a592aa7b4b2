package feed

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

// fakeStream scripts a sequence of connection outcomes.
type fakeStream struct {
	name string

	mu       sync.Mutex
	attempts int
	script   []func(attempt int) (Conn, error)
}

func (s *fakeStream) Name() string { return s.name }

func (s *fakeStream) Connect(ctx context.Context) (Conn, error) {
	s.mu.Lock()
	attempt := s.attempts
	s.attempts++
	s.mu.Unlock()

	if attempt < len(s.script) {
		return s.script[attempt](attempt)
	}
	return nil, errors.New("no more scripted connections")
}

func (s *fakeStream) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// fakeConn serves queued events then blocks until closed.
type fakeConn struct {
	events chan RawEvent
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(events ...RawEvent) *fakeConn {
	c := &fakeConn{
		events: make(chan RawEvent, len(events)),
		closed: make(chan struct{}),
	}
	for _, ev := range events {
		c.events <- ev
	}
	return c
}

func (c *fakeConn) Receive(ctx context.Context) (RawEvent, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.closed:
		return RawEvent{}, io.ErrClosedPipe
	case <-ctx.Done():
		return RawEvent{}, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// instantPolicy reconnects without delay to keep tests fast.
type instantPolicy struct{}

func (instantPolicy) Delay(int) time.Duration { return time.Millisecond }

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestManagerForwardsEvents(t *testing.T) {
	conn := newFakeConn(
		RawEvent{Stream: "s", Data: []byte("one")},
		RawEvent{Stream: "s", Data: []byte("two")},
	)
	stream := &fakeStream{
		name: "s",
		script: []func(int) (Conn, error){
			func(int) (Conn, error) { return conn, nil },
		},
	}

	got := make(chan RawEvent, 2)
	m := NewManager(ManagerConfig{
		Stream:  stream,
		Backoff: instantPolicy{},
		OnEvent: func(ev RawEvent) { got <- ev },
		Logger:  quietLogger(),
	})

	m.Start(context.Background())
	defer m.Stop()

	for _, want := range []string{"one", "two"} {
		select {
		case ev := <-got:
			if string(ev.Data) != want {
				t.Errorf("got %q, want %q", ev.Data, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestManagerSkipsHeartbeats(t *testing.T) {
	conn := newFakeConn(
		RawEvent{Stream: "s"}, // heartbeat
		RawEvent{Stream: "s", Data: []byte("data")},
	)
	stream := &fakeStream{
		name: "s",
		script: []func(int) (Conn, error){
			func(int) (Conn, error) { return conn, nil },
		},
	}

	got := make(chan RawEvent, 2)
	m := NewManager(ManagerConfig{
		Stream:  stream,
		Backoff: instantPolicy{},
		OnEvent: func(ev RawEvent) { got <- ev },
		Logger:  quietLogger(),
	})

	m.Start(context.Background())
	defer m.Stop()

	select {
	case ev := <-got:
		if string(ev.Data) != "data" {
			t.Errorf("first forwarded event = %q, want data frame", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestManagerReconnectsAndResetsRetries(t *testing.T) {
	stream := &fakeStream{
		name: "s",
		script: []func(int) (Conn, error){
			func(int) (Conn, error) { return nil, errors.New("refused") },
			func(int) (Conn, error) { return newFakeConn(RawEvent{Stream: "s", Data: []byte("ok")}), nil },
		},
	}

	got := make(chan RawEvent, 1)
	var mu sync.Mutex
	var transitions []Status
	m := NewManager(ManagerConfig{
		Stream:  stream,
		Backoff: instantPolicy{},
		OnEvent: func(ev RawEvent) { got <- ev },
		OnStatus: func(sc StatusChange) {
			mu.Lock()
			transitions = append(transitions, sc.To)
			mu.Unlock()
		},
		Logger: quietLogger(),
	})

	m.Start(context.Background())
	defer m.Stop()

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event after reconnect")
	}

	mu.Lock()
	defer mu.Unlock()
	var sawReconnecting, sawConnected bool
	for _, st := range transitions {
		if st == StatusReconnecting {
			sawReconnecting = true
		}
		if st == StatusConnected {
			sawConnected = true
		}
	}
	if !sawReconnecting || !sawConnected {
		t.Errorf("transitions = %v, want reconnecting then connected", transitions)
	}
}

func TestManagerGivesUpAfterRetryBudget(t *testing.T) {
	stream := &fakeStream{name: "s"} // every connect fails

	done := make(chan struct{})
	m := NewManager(ManagerConfig{
		Stream:     stream,
		Backoff:    instantPolicy{},
		MaxRetries: 3,
		OnStatus: func(sc StatusChange) {
			if sc.To == StatusDisconnected && errors.Is(sc.Err, ErrStreamUnavailable) {
				close(done)
			}
		},
		Logger: quietLogger(),
	})

	m.Start(context.Background())
	defer m.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manager never gave up")
	}

	if !errors.Is(m.Err(), ErrStreamUnavailable) {
		t.Errorf("Err() = %v, want ErrStreamUnavailable", m.Err())
	}
	// Initial attempt plus the retry budget.
	if got, want := stream.attemptCount(), 4; got != want {
		t.Errorf("connect attempts = %d, want %d", got, want)
	}
}

func TestManagerIdleWatchdogForcesReconnect(t *testing.T) {
	silent := newFakeConn() // never delivers anything
	reconnected := make(chan struct{})
	stream := &fakeStream{
		name: "s",
		script: []func(int) (Conn, error){
			func(int) (Conn, error) { return silent, nil },
			func(int) (Conn, error) {
				close(reconnected)
				return newFakeConn(), nil
			},
		},
	}

	m := NewManager(ManagerConfig{
		Stream:      stream,
		Backoff:     instantPolicy{},
		IdleTimeout: 30 * time.Millisecond,
		Logger:      quietLogger(),
	})

	m.Start(context.Background())
	defer m.Stop()

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog never forced a reconnect")
	}
}

func TestManagerStopTransitionsToStopped(t *testing.T) {
	stream := &fakeStream{
		name: "s",
		script: []func(int) (Conn, error){
			func(int) (Conn, error) { return newFakeConn(), nil },
		},
	}

	m := NewManager(ManagerConfig{
		Stream:  stream,
		Backoff: instantPolicy{},
		Logger:  quietLogger(),
	})

	ctx := context.Background()
	m.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	m.Stop()

	if got := m.Status(); got != StatusStopped {
		t.Errorf("Status() = %v, want stopped", got)
	}
}
