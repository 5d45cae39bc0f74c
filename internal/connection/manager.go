package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Replayer supplies the subscribe frames re-sent after every handshake.
type Replayer interface {
	ReplayFrames() ([][]byte, error)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTransportFactory overrides how transports are created.
func WithTransportFactory(f TransportFactory) ManagerOption {
	return func(m *Manager) {
		m.newTransport = f
	}
}

// WithEventHandler sets the lifecycle event callback. It is invoked from the
// Manager's goroutines and must not block.
func WithEventHandler(fn func(Event)) ManagerOption {
	return func(m *Manager) {
		m.onEvent = fn
	}
}

// ManagerStats contains runtime statistics.
type ManagerStats struct {
	State        State
	Session      uint64
	Reconnects   int64
	FramesSent   int64
	SendErrors   int64
	LastActivity time.Time
}

// Manager owns the single physical connection: connect, heartbeat,
// reconnect with backoff and subscription replay, teardown.
type Manager struct {
	cfg          ManagerConfig
	logger       *slog.Logger
	replayer     Replayer
	newTransport TransportFactory
	onEvent      func(Event)
	backoff      Backoff
	limiter      *rate.Limiter

	messages chan RawMessage

	// Lifetime; canceled by Disconnect.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	// mu guards the fields below and is held while frames are written, so a
	// replay and a Submit never interleave.
	mu          sync.Mutex
	transport   Transport
	session     uint64
	stopSession context.CancelFunc
	stats       ManagerStats

	state atomic.Int32
}

// NewManager creates a Connection Manager. It does not connect.
func NewManager(cfg ManagerConfig, replayer Replayer, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultManagerConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = defaults.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait <= 0 {
		cfg.ReconnectMaxWait = defaults.ReconnectMaxWait
	}
	if cfg.MessageBufferSize <= 0 {
		cfg.MessageBufferSize = defaults.MessageBufferSize
	}

	limit := rate.Inf
	if cfg.SendRate > 0 {
		limit = rate.Limit(cfg.SendRate)
	}
	burst := cfg.SendBurst
	if burst < 1 {
		burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:          cfg,
		logger:       logger.With("component", "connection"),
		replayer:     replayer,
		newTransport: NewClient,
		backoff:      NewBackoff(cfg.ReconnectBaseWait, cfg.ReconnectMaxWait, cfg.ReconnectJitter),
		limiter:      rate.NewLimiter(limit, burst),
		messages:     make(chan RawMessage, cfg.MessageBufferSize),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect opens the transport and replays active subscriptions. It is a no-op
// while connected, connecting or reconnecting. A failed initial connect is
// returned to the caller; with AutoReconnect the reconnect loop keeps trying in
// the background, otherwise the Manager stays disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.State() {
	case StateConnected, StateConnecting, StateReconnecting:
		m.mu.Unlock()
		return nil
	case StateClosed:
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	m.setState(StateConnecting)
	m.mu.Unlock()

	t, err := m.dial(ctx)

	m.mu.Lock()
	if m.State() == StateClosed {
		m.mu.Unlock()
		if t != nil {
			t.Close()
		}
		return ErrAlreadyClosed
	}
	if err != nil {
		auto := m.cfg.AutoReconnect
		if auto {
			m.setState(StateReconnecting)
			m.wg.Add(1)
		} else {
			m.setState(StateDisconnected)
		}
		m.mu.Unlock()
		m.logger.Warn("connect failed", "url", m.cfg.URL, "error", err, "auto_reconnect", auto)
		if auto {
			go m.reconnectLoop()
		}
		return err
	}
	session, replayErr := m.install(t)
	m.mu.Unlock()

	m.afterInstall(session, replayErr)
	return nil
}

// Disconnect closes the connection for good. It stops the heartbeat and any
// pending reconnect, closes the transport once and raises no further events.
// It is idempotent and safe to call from any goroutine.
func (m *Manager) Disconnect(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Cancel first so a replay blocked on the limiter releases mu.
	m.cancel()

	m.mu.Lock()
	m.setState(StateClosed)
	t := m.transport
	m.transport = nil
	stop := m.stopSession
	m.stopSession = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if t != nil {
		if err := t.Close(); err != nil {
			m.logger.Debug("transport close", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("connection manager stopped")
	case <-ctx.Done():
		m.logger.Warn("connection manager stop timed out")
	}
	return nil
}

// Submit runs build and, if connected, sends the frame it returns. build runs
// under the same lock as reconnect replay, so a subscription registered by
// build is sent exactly once: either here or by the next replay. A nil frame
// is not sent. Send failures are reported as events, not returned.
func (m *Manager) Submit(build func() ([]byte, error)) error {
	m.mu.Lock()
	data, err := build()
	if err != nil || data == nil {
		m.mu.Unlock()
		return err
	}
	if m.State() != StateConnected || m.transport == nil {
		m.mu.Unlock()
		return nil
	}
	t, session := m.transport, m.session
	sendErr := m.sendLocked(t, data)
	m.mu.Unlock()

	if sendErr != nil {
		m.connectionLost(session, &Error{Op: "send", Err: sendErr})
	}
	return nil
}

// IsConnected reports whether a handshake succeeded and the link is live.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Messages returns inbound frames in transport order.
func (m *Manager) Messages() <-chan RawMessage {
	return m.messages
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.State = m.State()
	s.Session = m.session
	if m.transport != nil {
		s.LastActivity = m.transport.LastActivity()
	}
	return s
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// dial creates and connects a transport, bounded by HandshakeTimeout and
// aborted by Disconnect.
func (m *Manager) dial(ctx context.Context) (Transport, error) {
	dctx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	t := m.newTransport(m.cfg.clientConfig(), m.logger)
	if err := t.Connect(dctx); err != nil {
		t.Close()
		if errors.Is(dctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: handshake exceeded %s: %v", ErrTimeout, m.cfg.HandshakeTimeout, err)
		}
		return nil, &Error{Op: "dial", Err: fmt.Errorf("%w: %v", ErrHandshake, err)}
	}
	return t, nil
}

// install makes t the live transport, replays subscriptions and starts the
// session supervisor. Must be called with mu held.
func (m *Manager) install(t Transport) (uint64, error) {
	m.session++
	m.transport = t
	m.setState(StateConnected)

	sessCtx, stop := context.WithCancel(m.ctx)
	m.stopSession = stop

	replayErr := m.replayLocked(t)

	m.wg.Add(1)
	go m.supervise(sessCtx, t, m.session)

	return m.session, replayErr
}

func (m *Manager) afterInstall(session uint64, replayErr error) {
	m.logger.Info("connected", "url", m.cfg.URL, "session", session)
	m.emit(Event{Type: EventConnected, Session: session})

	if replayErr != nil {
		m.logger.Warn("subscription replay failed", "session", session, "error", replayErr)
		m.connectionLost(session, &Error{Op: "send", Err: replayErr})
	}
}

// replayLocked re-sends every active subscription. Must be called with mu held.
func (m *Manager) replayLocked(t Transport) error {
	if m.replayer == nil {
		return nil
	}
	frames, err := m.replayer.ReplayFrames()
	if err != nil {
		m.logger.Error("build replay frames", "error", err)
		m.emit(Event{Type: EventError, Err: err})
		return nil
	}
	for _, data := range frames {
		if err := m.sendLocked(t, data); err != nil {
			return err
		}
	}
	if len(frames) > 0 {
		m.logger.Debug("subscriptions replayed", "count", len(frames))
	}
	return nil
}

// sendLocked writes one frame through the outbound limiter. Must be called with mu held.
func (m *Manager) sendLocked(t Transport, data []byte) error {
	if err := m.limiter.Wait(m.ctx); err != nil {
		return err
	}
	if err := t.Send(data); err != nil {
		m.stats.SendErrors++
		return err
	}
	m.stats.FramesSent++
	return nil
}

// supervise forwards frames, runs the heartbeat and watches for transport
// failure for one session.
func (m *Manager) supervise(ctx context.Context, t Transport, session uint64) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-t.Messages():
			if !ok {
				m.connectionLost(session, &Error{Op: "read", Err: ErrNotConnected})
				return
			}
			raw := RawMessage{Data: msg.Data, Session: session, ReceivedAt: msg.ReceivedAt}
			select {
			case m.messages <- raw:
			case <-ctx.Done():
				return
			}

		case err := <-t.Errors():
			m.connectionLost(session, &Error{Op: "read", Err: err})
			return

		case <-ticker.C:
			idle := time.Since(t.LastActivity())
			if idle > 2*m.cfg.HeartbeatInterval {
				m.logger.Warn("no heartbeat response, connection stale",
					"idle", idle,
					"interval", m.cfg.HeartbeatInterval,
				)
				m.connectionLost(session, ErrStaleConnection)
				return
			}
			m.mu.Lock()
			current := m.session == session && m.transport == t
			m.mu.Unlock()
			if !current {
				return
			}
			if err := t.Ping(); err != nil {
				m.connectionLost(session, &Error{Op: "ping", Err: err})
				return
			}
		}
	}
}

// connectionLost tears down the given session and either starts the reconnect
// loop or settles in Disconnected. Stale sessions are ignored.
func (m *Manager) connectionLost(session uint64, cause error) {
	m.mu.Lock()
	if m.session != session || m.State() != StateConnected {
		m.mu.Unlock()
		return
	}
	t := m.transport
	m.transport = nil
	stop := m.stopSession
	m.stopSession = nil
	auto := m.cfg.AutoReconnect
	if auto {
		m.setState(StateReconnecting)
		m.wg.Add(1)
	} else {
		m.setState(StateDisconnected)
	}
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if t != nil {
		t.Close()
	}

	m.logger.Warn("connection lost",
		"session", session,
		"error", cause,
		"auto_reconnect", auto,
	)
	m.emit(Event{Type: EventError, Err: cause})
	m.emit(Event{Type: EventDisconnected, Err: cause})

	if auto {
		go m.reconnectLoop()
	}
}

// reconnectLoop retries with bounded exponential backoff until a handshake
// succeeds, attempts run out or Disconnect is called.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for attempt := 1; ; attempt++ {
		if m.cfg.MaxReconnectAttempts > 0 && attempt > m.cfg.MaxReconnectAttempts {
			m.mu.Lock()
			if m.State() == StateReconnecting {
				m.setState(StateDisconnected)
			}
			m.mu.Unlock()
			m.logger.Error("giving up reconnecting", "attempts", attempt-1)
			m.emit(Event{Type: EventError, Err: ErrRetriesExhausted})
			return
		}

		wait := m.backoff.Delay(attempt)

		m.mu.Lock()
		if m.State() != StateReconnecting {
			m.mu.Unlock()
			return
		}
		m.stats.Reconnects++
		m.mu.Unlock()

		m.logger.Info("reconnecting", "attempt", attempt, "wait", wait)
		m.emit(Event{Type: EventReconnecting, Attempt: attempt, Delay: wait})

		timer := time.NewTimer(wait)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		t, err := m.dial(m.ctx)
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			m.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
			m.emit(Event{Type: EventError, Err: err})
			continue
		}

		m.mu.Lock()
		if m.State() != StateReconnecting {
			m.mu.Unlock()
			t.Close()
			return
		}
		session, replayErr := m.install(t)
		m.mu.Unlock()

		m.afterInstall(session, replayErr)
		return
	}
}

func (m *Manager) emit(ev Event) {
	if m.onEvent == nil || m.closed.Load() {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	m.onEvent(ev)
}
