package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/polymarket-realtime/internal/model"
)

// DefaultTimeout bounds a single Redis round trip made from a callback.
const DefaultTimeout = 2 * time.Second

// RedisClient is the subset of *redis.Client the publisher uses.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Options configures a Publisher.
type Options struct {
	Prefix  string        // Channel prefix. Default: "polymarket"
	Timeout time.Duration // Per call. Default: DefaultTimeout
	LastTTL time.Duration // Expiry of the <prefix>:last:<token> keys, 0 = no key
}

// Stats counts publisher activity.
type Stats struct {
	Published int64
	Errors    int64
}

// Publisher fans decoded events out over Redis pub/sub:
//
//	<prefix>:orders            order events
//	<prefix>:trades            trade events
//	<prefix>:market:<token id> market events
//
// Its methods match the subscription callback signatures.
type Publisher struct {
	client RedisClient
	opts   Options
	logger *slog.Logger

	published atomic.Int64
	errors    atomic.Int64
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// New creates a Publisher over client.
func New(client RedisClient, opts Options, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Prefix == "" {
		opts.Prefix = "polymarket"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Publisher{
		client: client,
		opts:   opts,
		logger: logger.With("component", "publisher"),
	}
}

// OrdersChannel returns the order events channel name.
func (p *Publisher) OrdersChannel() string { return p.opts.Prefix + ":orders" }

// TradesChannel returns the trade events channel name.
func (p *Publisher) TradesChannel() string { return p.opts.Prefix + ":trades" }

// MarketChannel returns the channel name for one token.
func (p *Publisher) MarketChannel(tokenID string) string {
	return p.opts.Prefix + ":market:" + tokenID
}

// PublishOrder publishes an order event.
func (p *Publisher) PublishOrder(ev model.OrderEvent) error {
	return p.publish(p.OrdersChannel(), ev)
}

// PublishTrade publishes a trade event.
func (p *Publisher) PublishTrade(ev model.TradeEvent) error {
	return p.publish(p.TradesChannel(), ev)
}

// PublishMarket publishes a market event and, when LastTTL is set, stores it
// as the token's latest event.
func (p *Publisher) PublishMarket(ev model.MarketEvent) error {
	if err := p.publish(p.MarketChannel(ev.AssetID), ev); err != nil {
		return err
	}
	if p.opts.LastTTL <= 0 {
		return nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()
	key := p.opts.Prefix + ":last:" + ev.AssetID
	if err := p.client.Set(ctx, key, data, p.opts.LastTTL).Err(); err != nil {
		p.errors.Add(1)
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Stats returns current counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Errors:    p.errors.Load(),
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

func (p *Publisher) publish(channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", channel, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()

	receivers, err := p.client.Publish(ctx, channel, data).Result()
	if err != nil {
		p.errors.Add(1)
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	p.published.Add(1)
	p.logger.Debug("published", "channel", channel, "receivers", receivers)
	return nil
}
