package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/polymarket-realtime/internal/auth"
	"github.com/rickgao/polymarket-realtime/internal/connection"
	"github.com/rickgao/polymarket-realtime/internal/frame"
	"github.com/rickgao/polymarket-realtime/internal/router"
	"github.com/rickgao/polymarket-realtime/internal/subscription"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	transport connection.TransportFactory
}

// WithTransportFactory replaces the websocket transport, mainly for tests.
func WithTransportFactory(f connection.TransportFactory) Option {
	return func(o *options) {
		o.transport = f
	}
}

// Client multiplexes market and user subscriptions over one connection.
// Each Client owns its own registry, connection and dispatcher.
type Client struct {
	logger   *slog.Logger
	registry *subscription.Registry
	manager  *connection.Manager
	router   router.Router
	events   *emitter

	closed    atomic.Bool
	closeOnce sync.Once
}

// New builds a Client. It does not connect.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg.AutoReconnect == nil {
		return nil, ErrAutoReconnectUnset
	}
	if logger == nil {
		logger = slog.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		logger:   logger.With("component", "realtime"),
		registry: subscription.NewRegistry(logger.With("component", "registry")),
	}
	c.events = newEmitter(c.logger)

	mopts := []connection.ManagerOption{connection.WithEventHandler(c.events.emit)}
	if o.transport != nil {
		mopts = append(mopts, connection.WithTransportFactory(o.transport))
	}
	c.manager = connection.NewManager(cfg.managerConfig(), c.registry, logger, mopts...)

	c.router = router.NewRouter(cfg.Router, c.manager.Messages(), c.registry, logger)
	if err := c.router.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("start router: %w", err)
	}

	return c, nil
}

// Connect opens the connection and replays any subscriptions recorded while
// disconnected. It is a no-op when already connected or connecting.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.manager.Connect(ctx)
}

// IsConnected reports whether the connection is live.
func (c *Client) IsConnected() bool {
	return c.manager.IsConnected()
}

// State returns the connection state.
func (c *Client) State() connection.State {
	return c.manager.State()
}

// SubscribeMarket streams market data for tokenIDs. When disconnected the
// subscription is recorded and sent on the next handshake.
func (c *Client) SubscribeMarket(tokenIDs []string, cb subscription.Callbacks) (*Subscription, error) {
	return c.subscribe(subscription.KindMarket, subscription.Filter{TokenIDs: tokenIDs}, cb)
}

// SubscribeUserEvents streams the caller's order and trade events, optionally
// restricted to markets (condition ids). creds are attached only to this
// subscription's frames and are zeroed on unsubscribe.
func (c *Client) SubscribeUserEvents(creds auth.Credentials, cb subscription.Callbacks, markets ...string) (*Subscription, error) {
	return c.subscribe(subscription.KindUser, subscription.Filter{Credentials: &creds, Markets: markets}, cb)
}

func (c *Client) subscribe(kind subscription.Kind, f subscription.Filter, cb subscription.Callbacks) (*Subscription, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	var sub *subscription.Subscription
	err := c.manager.Submit(func() ([]byte, error) {
		// Disconnect may have purged the registry since the check above.
		if c.closed.Load() {
			return nil, ErrClosed
		}
		h, err := c.registry.Add(kind, f, cb)
		if err != nil {
			return nil, err
		}
		sub, _ = c.registry.Get(h)
		return sub.SubscribeFrame()
	})
	if err != nil {
		if sub != nil {
			c.registry.Remove(sub.Handle())
		}
		return nil, fmt.Errorf("subscribe %s: %w", kind, err)
	}

	c.logger.Info("subscribed",
		"handle", sub.Handle(),
		"kind", kind,
		"tokens", len(sub.TokenIDs()),
		"connected", c.manager.IsConnected(),
	)
	return &Subscription{client: c, sub: sub}, nil
}

// unsubscribe removes sub and, when its channel keys are no longer shared,
// tells the server. Removal happens under the send lock so a concurrent replay
// never resurrects it.
func (c *Client) unsubscribe(sub *subscription.Subscription) {
	h := sub.Handle()
	err := c.manager.Submit(func() ([]byte, error) {
		removed, orphaned := c.registry.Remove(h)
		if removed == nil || len(orphaned) == 0 {
			return nil, nil
		}
		switch removed.Kind() {
		case subscription.KindMarket:
			return frame.EncodeUnsubscribe(frame.ChannelMarket, frame.Filter{AssetIDs: orphaned})
		case subscription.KindUser:
			return frame.EncodeUnsubscribe(frame.ChannelUser, frame.Filter{Markets: removed.Markets()})
		}
		return nil, nil
	})
	c.router.Release(h)

	if err != nil {
		c.logger.Warn("unsubscribe frame not sent", "handle", h, "error", err)
		return
	}
	c.logger.Info("unsubscribed", "handle", h)
}

// Disconnect closes the connection, drops every subscription and stops event
// delivery. No state events are raised. It is idempotent and safe to call from
// callbacks and listeners.
func (c *Client) Disconnect(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.events.close()

		if err := c.manager.Disconnect(ctx); err != nil {
			c.logger.Warn("connection disconnect", "error", err)
		}
		purged := c.registry.Purge()
		if err := c.router.Stop(ctx); err != nil {
			c.logger.Warn("router stop", "error", err)
		}

		c.logger.Info("realtime client closed", "subscriptions_dropped", len(purged))
	})
	return nil
}

// On registers a persistent listener for typ.
func (c *Client) On(typ connection.EventType, fn Listener) ListenerID {
	return c.events.on(typ, fn, false)
}

// Once registers a listener removed after its first call.
func (c *Client) Once(typ connection.EventType, fn Listener) ListenerID {
	return c.events.on(typ, fn, true)
}

// Off removes a listener. It reports whether one was registered.
func (c *Client) Off(id ListenerID) bool {
	return c.events.off(id)
}

// Wait blocks until the next event of typ. An expired ctx yields an error
// wrapping connection.ErrTimeout; the connection itself is unaffected.
func (c *Client) Wait(ctx context.Context, typ connection.EventType) (connection.Event, error) {
	ch := make(chan connection.Event, 1)
	id := c.Once(typ, func(ev connection.Event) { ch <- ev })

	select {
	case ev := <-ch:
		return ev, nil
	case <-ctx.Done():
		c.Off(id)
		return connection.Event{}, fmt.Errorf("%w: waiting for %s: %v", connection.ErrTimeout, typ, ctx.Err())
	}
}

// Diagnostics reports malformed frames and unscoped server errors.
func (c *Client) Diagnostics() <-chan error {
	return c.router.Diagnostics()
}

// Stats returns current statistics.
func (c *Client) Stats() Stats {
	ms := c.manager.Stats()
	return Stats{
		State:         ms.State,
		Session:       ms.Session,
		Reconnects:    ms.Reconnects,
		FramesSent:    ms.FramesSent,
		SendErrors:    ms.SendErrors,
		LastActivity:  ms.LastActivity,
		Subscriptions: c.registry.Len(),
		Router:        c.router.Stats(),
	}
}

// Subscriptions lists active subscriptions with credentials redacted.
func (c *Client) Subscriptions() []SubscriptionInfo {
	subs := c.registry.ListActive()
	out := make([]SubscriptionInfo, 0, len(subs))
	for _, s := range subs {
		info := SubscriptionInfo{
			Handle:    s.Handle(),
			Kind:      s.Kind().String(),
			TokenIDs:  s.TokenIDs(),
			Markets:   s.Markets(),
			CreatedAt: s.CreatedAt(),
		}
		if s.Kind() == subscription.KindUser {
			info.Credentials = s.Redacted()
		}
		out = append(out, info)
	}
	return out
}

// Subscription is the caller's handle on one registered interest.
type Subscription struct {
	client *Client
	sub    *subscription.Subscription
	once   sync.Once
}

// Handle returns the subscription's opaque id.
func (s *Subscription) Handle() subscription.Handle { return s.sub.Handle() }

// Kind returns the channel kind.
func (s *Subscription) Kind() subscription.Kind { return s.sub.Kind() }

// Active reports whether the subscription is still registered.
func (s *Subscription) Active() bool { return s.sub.Active() }

// Unsubscribe stops delivery immediately and sends an unsubscribe frame when
// connected. Repeated calls are no-ops. A callback already running when it is
// called runs to completion.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.unsubscribe(s.sub)
	})
}
