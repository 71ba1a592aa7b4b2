package feed

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultIdleTimeout is the heartbeat window: with no traffic (data or
// ping) for this long the connection is force-closed and reconnected.
const DefaultIdleTimeout = 30 * time.Second

// DefaultMaxRetries is the reconnect budget before the manager gives up
// and surfaces ErrStreamUnavailable.
const DefaultMaxRetries = 5

// ManagerConfig configures a connection manager.
type ManagerConfig struct {
	Stream      Stream
	Backoff     Policy        // nil selects DefaultPolicy.
	MaxRetries  int           // <=0 selects DefaultMaxRetries.
	IdleTimeout time.Duration // <=0 selects DefaultIdleTimeout.

	// OnEvent receives every non-heartbeat frame, in arrival order.
	OnEvent func(RawEvent)

	// OnStatus observes every state transition. Must not block.
	OnStatus func(StatusChange)

	Logger *log.Logger
}

// Manager owns exactly one logical subscription to a stream and keeps it
// alive: connect, receive, force-close on idle, reconnect with backoff,
// give up once the retry budget is spent.
type Manager struct {
	stream      Stream
	backoff     Policy
	maxRetries  int
	idleTimeout time.Duration
	onEvent     func(RawEvent)
	onStatus    func(StatusChange)
	logger      *log.Logger

	mu      sync.Mutex
	status  Status
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager creates a manager. Start must be called to begin connecting.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		stream:      cfg.Stream,
		backoff:     cfg.Backoff,
		maxRetries:  cfg.MaxRetries,
		idleTimeout: cfg.IdleTimeout,
		onEvent:     cfg.OnEvent,
		onStatus:    cfg.OnStatus,
		logger:      cfg.Logger,
		status:      StatusDisconnected,
	}
	if m.backoff == nil {
		m.backoff = DefaultPolicy()
	}
	if m.maxRetries <= 0 {
		m.maxRetries = DefaultMaxRetries
	}
	if m.idleTimeout <= 0 {
		m.idleTimeout = DefaultIdleTimeout
	}
	if m.logger == nil {
		m.logger = log.Default()
	}
	return m
}

// Start launches the connect/receive loop. Calling Start on a running
// manager is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.run(runCtx)
}

// Stop cancels any pending reconnect or heartbeat timer and waits for the
// loop to finish. In-flight downstream work is not discarded.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Status returns the manager's current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Err returns the terminal error, if the manager has given up.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	retry := 0
	for {
		m.setStatus(StatusConnecting, nil)

		conn, err := m.stream.Connect(ctx)
		if err == nil {
			retry = 0
			m.setStatus(StatusConnected, nil)
			err = m.receive(ctx, conn)
			_ = conn.Close()
		}

		if ctx.Err() != nil {
			m.setStatus(StatusStopped, nil)
			return
		}

		if retry >= m.maxRetries {
			m.logger.Printf("feed %s: giving up after %d attempts: %v", m.stream.Name(), retry, err)
			m.mu.Lock()
			m.lastErr = ErrStreamUnavailable
			m.mu.Unlock()
			m.setStatus(StatusDisconnected, ErrStreamUnavailable)
			return
		}

		m.setStatus(StatusReconnecting, err)
		delay := m.backoff.Delay(retry)
		retry++
		m.logger.Printf("feed %s: reconnecting in %s (attempt %d): %v", m.stream.Name(), delay, retry, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			m.setStatus(StatusStopped, nil)
			return
		}
	}
}

// receive pumps frames from the connection until it fails. The watchdog
// force-closes a connection that stays silent past the idle window, which
// pushes the blocked Receive into the normal reconnect path.
func (m *Manager) receive(ctx context.Context, conn Conn) error {
	watchdog := time.AfterFunc(m.idleTimeout, func() {
		m.logger.Printf("feed %s: no traffic for %s, forcing reconnect", m.stream.Name(), m.idleTimeout)
		_ = conn.Close()
	})
	defer watchdog.Stop()

	for {
		ev, err := conn.Receive(ctx)
		if err != nil {
			return err
		}
		watchdog.Reset(m.idleTimeout)
		if len(ev.Data) == 0 {
			continue // heartbeat
		}
		if m.onEvent != nil {
			m.onEvent(ev)
		}
	}
}

func (m *Manager) setStatus(to Status, cause error) {
	m.mu.Lock()
	from := m.status
	m.status = to
	onStatus := m.onStatus
	m.mu.Unlock()

	if from == to {
		return
	}
	if onStatus != nil {
		onStatus(StatusChange{
			Stream: m.stream.Name(),
			From:   from,
			To:     to,
			Err:    cause,
			At:     time.Now(),
		})
	}
}
