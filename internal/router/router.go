package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/polymarket-realtime/internal/connection"
	"github.com/rickgao/polymarket-realtime/internal/frame"
	"github.com/rickgao/polymarket-realtime/internal/subscription"
)

// Router decodes inbound frames and delivers them to subscription callbacks.
type Router interface {
	// Start begins routing messages from the input channel.
	Start(ctx context.Context) error

	// Stop ends routing. It does not wait for running callbacks, so it is safe
	// to call from inside one.
	Stop(ctx context.Context) error

	// Release discards the queue of an unsubscribed handle.
	Release(h subscription.Handle)

	// Diagnostics reports malformed frames and server errors that belong to
	// no subscription. Sends never block; reports are dropped when full.
	Diagnostics() <-chan error

	// Stats returns current router statistics.
	Stats() RouterStats
}

// router is the internal implementation.
type router struct {
	cfg      RouterConfig
	logger   *slog.Logger
	registry *subscription.Registry

	// Input from Connection Manager
	input <-chan connection.RawMessage

	diagnostics chan error

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	mailboxes map[subscription.Handle]*mailbox
	stopped   bool

	// Stats (atomic operations for thread safety)
	received           atomic.Int64
	routed             atomic.Int64
	parseErrors        atomic.Int64
	controlFrames      atomic.Int64
	unmatched          atomic.Int64
	callbackErrors     atomic.Int64
	dropped            atomic.Int64
	diagnosticsDropped atomic.Int64
}

// NewRouter creates a new Event Dispatcher reading from input and resolving
// subscribers through registry.
func NewRouter(cfg RouterConfig, input <-chan connection.RawMessage, registry *subscription.Registry, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultRouterConfig()
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = defaults.MailboxSize
	}
	if cfg.MailboxLimit == 0 {
		cfg.MailboxLimit = defaults.MailboxLimit
	}
	if cfg.DiagnosticsBufferSize <= 0 {
		cfg.DiagnosticsBufferSize = defaults.DiagnosticsBufferSize
	}

	return &router{
		cfg:         cfg,
		logger:      logger.With("component", "router"),
		registry:    registry,
		input:       input,
		diagnostics: make(chan error, cfg.DiagnosticsBufferSize),
		mailboxes:   make(map[subscription.Handle]*mailbox),
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("event router started",
		"mailbox_size", r.cfg.MailboxSize,
		"mailbox_limit", r.cfg.MailboxLimit,
	)

	return nil
}

// Stop shuts down the route loop and closes every mailbox.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping event router")

	if r.cancel != nil {
		r.cancel()
	}

	// Wait for the route loop only; workers may be the caller.
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event router stopped")
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out")
	}

	r.mu.Lock()
	r.stopped = true
	for h, mb := range r.mailboxes {
		mb.buf.Close()
		delete(r.mailboxes, h)
	}
	r.mu.Unlock()

	return nil
}

// Release closes the mailbox of h. Queued events are discarded by the worker
// because the subscription is no longer active.
func (r *router) Release(h subscription.Handle) {
	r.mu.Lock()
	mb, ok := r.mailboxes[h]
	delete(r.mailboxes, h)
	r.mu.Unlock()

	if ok {
		mb.buf.Close()
	}
}

// Diagnostics returns the process-wide diagnostic channel.
func (r *router) Diagnostics() <-chan error {
	return r.diagnostics
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.Lock()
	boxes := len(r.mailboxes)
	queued := 0
	for _, mb := range r.mailboxes {
		queued += mb.buf.Len()
	}
	r.mu.Unlock()

	return RouterStats{
		MessagesReceived:   r.received.Load(),
		MessagesRouted:     r.routed.Load(),
		ParseErrors:        r.parseErrors.Load(),
		ControlFrames:      r.controlFrames.Load(),
		Unmatched:          r.unmatched.Load(),
		CallbackErrors:     r.callbackErrors.Load(),
		Dropped:            r.dropped.Load(),
		DiagnosticsDropped: r.diagnosticsDropped.Load(),
		Mailboxes:          boxes,
		Queued:             queued,
	}
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// route decodes a single frame and dispatches every message it carries.
func (r *router) route(raw connection.RawMessage) {
	r.received.Add(1)

	msgs, err := frame.Decode(raw.Data)
	if err != nil {
		// Array frames may still carry decodable elements.
		r.parseErrors.Add(1)
		r.logger.Warn("dropping undecodable frame", "session", raw.Session, "error", err)
		r.report(err)
	}

	for _, msg := range msgs {
		r.dispatch(msg)
	}
}

func (r *router) dispatch(msg frame.Message) {
	switch msg.Kind {
	case frame.KindControl:
		r.controlFrames.Add(1)
		return
	case frame.KindError:
		if msg.ChannelKey == "" {
			se := newServerError(msg.ServerErr)
			r.logger.Warn("server error", "error", se)
			r.report(se)
			return
		}
	}

	subs := r.registry.Lookup(msg.ChannelKey)
	delivered := false
	for _, sub := range subs {
		if !wants(sub, msg) {
			continue
		}
		r.enqueue(sub, msg)
		delivered = true
	}

	if !delivered {
		r.unmatched.Add(1)
		r.logger.Debug("no subscriber for message", "kind", msg.Kind, "key", msg.ChannelKey)
		if msg.Kind == frame.KindError {
			r.report(newServerError(msg.ServerErr))
		}
	}
}

// wants reports whether sub has a callback for msg and, for user events,
// whether the event's market passes the subscription's market filter.
func wants(sub *subscription.Subscription, msg frame.Message) bool {
	cb := sub.Callbacks()
	switch msg.Kind {
	case frame.KindMarket:
		return sub.Kind() == subscription.KindMarket && cb.OnMarket != nil
	case frame.KindOrder:
		return sub.Kind() == subscription.KindUser && cb.OnOrder != nil &&
			msg.Order != nil && sub.MatchesMarket(msg.Order.Market)
	case frame.KindTrade:
		return sub.Kind() == subscription.KindUser && cb.OnTrade != nil &&
			msg.Trade != nil && sub.MatchesMarket(msg.Trade.Market)
	case frame.KindError:
		return true
	}
	return false
}

func (r *router) enqueue(sub *subscription.Subscription, msg frame.Message) {
	r.mu.Lock()
	if r.stopped || !sub.Active() {
		r.mu.Unlock()
		r.dropped.Add(1)
		return
	}
	mb, ok := r.mailboxes[sub.Handle()]
	if !ok {
		mb = &mailbox{
			sub: sub,
			buf: NewBoundedBuffer[frame.Message](r.cfg.MailboxSize, r.cfg.MailboxLimit),
		}
		r.mailboxes[sub.Handle()] = mb
		go r.worker(mb)
	}
	r.mu.Unlock()

	if !mb.buf.Send(msg) {
		r.dropped.Add(1)
		r.logger.Warn("subscription queue full, dropping event",
			"handle", sub.Handle(),
			"kind", msg.Kind,
			"queued", mb.buf.Len(),
		)
		return
	}
	r.routed.Add(1)
}

// worker delivers one subscription's events sequentially, in receipt order.
func (r *router) worker(mb *mailbox) {
	for {
		msg, ok := mb.buf.Receive()
		if !ok {
			return
		}
		if !mb.sub.Active() {
			r.dropped.Add(1)
			continue
		}
		r.deliver(mb.sub, msg)
	}
}

func (r *router) deliver(sub *subscription.Subscription, msg frame.Message) {
	if msg.Kind == frame.KindError {
		se := newServerError(msg.ServerErr)
		if se.IsAuth() {
			r.logger.Warn("user channel subscription rejected",
				"handle", sub.Handle(),
				"credentials", sub.Redacted(),
				"message", se.Message,
			)
		}
		r.notify(sub, se)
		return
	}

	if err := invoke(sub.Callbacks(), msg); err != nil {
		r.callbackErrors.Add(1)
		r.notify(sub, &CallbackError{Handle: sub.Handle(), Kind: msg.Kind, Err: err})
	}
}

// invoke runs the callback for msg, converting a panic into an error.
func invoke(cb subscription.Callbacks, msg frame.Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, p)
		}
	}()

	switch msg.Kind {
	case frame.KindMarket:
		return cb.OnMarket(*msg.Market)
	case frame.KindOrder:
		return cb.OnOrder(*msg.Order)
	case frame.KindTrade:
		return cb.OnTrade(*msg.Trade)
	}
	return nil
}

// notify hands err to the subscription's OnError, or logs it when there is none.
func (r *router) notify(sub *subscription.Subscription, err error) {
	onError := sub.Callbacks().OnError
	if onError == nil {
		r.logger.Warn("subscription error", "handle", sub.Handle(), "error", err)
		return
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("OnError callback panicked", "handle", sub.Handle(), "panic", p)
		}
	}()
	onError(err)
}

// report publishes to the diagnostics channel without blocking.
func (r *router) report(err error) {
	select {
	case r.diagnostics <- err:
	default:
		r.diagnosticsDropped.Add(1)
	}
}
