package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/polymarket-realtime/internal/frame"
)

// Registry tracks active subscriptions keyed by handle and by channel key.
// All methods are safe for concurrent use and never block on I/O.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	subs  map[Handle]*Subscription
	byKey map[string][]*Subscription // Registration order
	seq   uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		subs:   make(map[Handle]*Subscription),
		byKey:  make(map[string][]*Subscription),
	}
}

// Add validates and stores a new active subscription.
func (r *Registry) Add(kind Kind, f Filter, cb Callbacks) (Handle, error) {
	if cb.empty() {
		return "", ErrNoCallbacks
	}

	sub := &Subscription{
		handle:    Handle(uuid.NewString()),
		kind:      kind,
		callbacks: cb,
		createdAt: time.Now(),
	}

	switch kind {
	case KindMarket:
		tokens, err := normalizeIDs(f.TokenIDs)
		if err != nil {
			return "", err
		}
		if f.Credentials != nil {
			return "", fmt.Errorf("%w: market subscriptions take no credentials", frame.ErrInvalidFilter)
		}
		sub.tokenIDs = tokens
	case KindUser:
		if f.Credentials == nil {
			return "", fmt.Errorf("%w: user subscriptions require credentials", frame.ErrInvalidFilter)
		}
		if err := f.Credentials.Validate(); err != nil {
			return "", fmt.Errorf("invalid credentials: %w", err)
		}
		sub.creds = *f.Credentials
		sub.markets = append([]string(nil), f.Markets...)
	default:
		return "", ErrUnknownKind
	}

	sub.active.Store(true)

	r.mu.Lock()
	r.seq++
	sub.seq = r.seq
	r.subs[sub.handle] = sub
	for _, key := range sub.ChannelKeys() {
		r.byKey[key] = append(r.byKey[key], sub)
	}
	r.mu.Unlock()

	r.logger.Debug("subscription added",
		"handle", sub.handle,
		"kind", kind,
		"keys", len(sub.ChannelKeys()),
	)

	return sub.handle, nil
}

// Remove deactivates a subscription, drops it from lookup tables and zeroes its
// credentials. It returns the removed subscription and the channel keys no other
// subscription still references. Removing an unknown handle is a no-op.
func (r *Registry) Remove(h Handle) (*Subscription, []string) {
	r.mu.Lock()
	sub, ok := r.subs[h]
	if !ok {
		r.mu.Unlock()
		return nil, nil
	}
	delete(r.subs, h)

	var orphaned []string
	for _, key := range sub.ChannelKeys() {
		remaining := removeSub(r.byKey[key], sub)
		if len(remaining) == 0 {
			delete(r.byKey, key)
			orphaned = append(orphaned, key)
		} else {
			r.byKey[key] = remaining
		}
	}
	r.mu.Unlock()

	sub.deactivate()

	r.logger.Debug("subscription removed",
		"handle", h,
		"orphaned_keys", len(orphaned),
	)

	return sub, orphaned
}

// Get returns the active subscription for a handle.
func (r *Registry) Get(h Handle) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[h]
	return sub, ok
}

// Lookup returns the active subscriptions indexed under key, in registration order.
// The returned slice is a copy.
func (r *Registry) Lookup(key string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.byKey[key]
	if len(subs) == 0 {
		return nil
	}
	return append([]*Subscription(nil), subs...)
}

// ListActive returns a snapshot of all active subscriptions in registration order.
func (r *Registry) ListActive() []*Subscription {
	r.mu.RLock()
	out := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Purge removes every subscription and zeroes all credentials.
func (r *Registry) Purge() []*Subscription {
	r.mu.Lock()
	out := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	r.subs = make(map[Handle]*Subscription)
	r.byKey = make(map[string][]*Subscription)
	r.mu.Unlock()

	for _, sub := range out {
		sub.deactivate()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })

	if len(out) > 0 {
		r.logger.Debug("subscriptions purged", "count", len(out))
	}
	return out
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// ReplayFrames encodes a subscribe frame for every active subscription, in
// registration order. Subscriptions removed concurrently are skipped.
func (r *Registry) ReplayFrames() ([][]byte, error) {
	subs := r.ListActive()
	frames := make([][]byte, 0, len(subs))
	for _, sub := range subs {
		data, err := sub.SubscribeFrame()
		if errors.Is(err, ErrInactive) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("encode subscription %s: %w", sub.handle, err)
		}
		frames = append(frames, data)
	}
	return frames, nil
}

func removeSub(subs []*Subscription, target *Subscription) []*Subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// normalizeIDs trims, drops duplicates and rejects blanks, keeping first-seen order.
func normalizeIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyFilter
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("%w: blank token id", frame.ErrInvalidFilter)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
