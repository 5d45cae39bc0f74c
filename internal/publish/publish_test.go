package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-realtime/internal/model"
)

type published struct {
	channel string
	payload []byte
}

type fakeRedis struct {
	mu     sync.Mutex
	pubs   []published
	sets   map[string]time.Duration
	err    error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{sets: make(map[string]time.Duration)}
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.pubs = append(f.pubs, published{channel: channel, payload: message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.sets[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_Channels(t *testing.T) {
	p := New(newFakeRedis(), Options{}, nil)
	if p.OrdersChannel() != "polymarket:orders" {
		t.Errorf("OrdersChannel() = %q", p.OrdersChannel())
	}
	if p.TradesChannel() != "polymarket:trades" {
		t.Errorf("TradesChannel() = %q", p.TradesChannel())
	}
	if p.MarketChannel("111") != "polymarket:market:111" {
		t.Errorf("MarketChannel() = %q", p.MarketChannel("111"))
	}

	p = New(newFakeRedis(), Options{Prefix: "desk"}, nil)
	if p.OrdersChannel() != "desk:orders" {
		t.Errorf("OrdersChannel() with prefix = %q", p.OrdersChannel())
	}
}

func TestPublisher_PublishOrder(t *testing.T) {
	rc := newFakeRedis()
	p := New(rc, Options{}, nil)

	ev := model.OrderEvent{
		OrderID:     "0x1",
		EventType:   model.OrderPlacement,
		Side:        model.SideBuy,
		Price:       decimal.RequireFromString("0.57"),
		MatchedSize: decimal.Zero,
	}
	if err := p.PublishOrder(ev); err != nil {
		t.Fatalf("PublishOrder() error = %v", err)
	}

	if len(rc.pubs) != 1 || rc.pubs[0].channel != "polymarket:orders" {
		t.Fatalf("pubs = %+v", rc.pubs)
	}
	var got model.OrderEvent
	if err := json.Unmarshal(rc.pubs[0].payload, &got); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if got.OrderID != "0x1" || !got.Price.Equal(ev.Price) {
		t.Errorf("payload = %+v", got)
	}
	if s := p.Stats(); s.Published != 1 || s.Errors != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestPublisher_PublishMarketStoresLast(t *testing.T) {
	rc := newFakeRedis()
	p := New(rc, Options{LastTTL: time.Minute}, nil)

	ev := model.MarketEvent{Type: model.MarketLastTradePrice, AssetID: "111", Price: decimal.RequireFromString("0.5")}
	if err := p.PublishMarket(ev); err != nil {
		t.Fatalf("PublishMarket() error = %v", err)
	}
	if rc.pubs[0].channel != "polymarket:market:111" {
		t.Errorf("channel = %q", rc.pubs[0].channel)
	}
	if ttl, ok := rc.sets["polymarket:last:111"]; !ok || ttl != time.Minute {
		t.Errorf("sets = %v", rc.sets)
	}
}

func TestPublisher_Errors(t *testing.T) {
	rc := newFakeRedis()
	rc.err = errors.New("connection refused")
	p := New(rc, Options{}, nil)

	err := p.PublishTrade(model.TradeEvent{TradeID: "t1"})
	if err == nil || !errors.Is(err, rc.err) {
		t.Errorf("PublishTrade() error = %v, want wrapped %v", err, rc.err)
	}
	if s := p.Stats(); s.Errors != 1 || s.Published != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestPublisher_Close(t *testing.T) {
	rc := newFakeRedis()
	if err := New(rc, Options{}, nil).Close(); err != nil || !rc.closed {
		t.Errorf("Close() = %v, closed = %v", err, rc.closed)
	}
}
