package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/polymarket-realtime/internal/gateway"
)

// mockDirectory serves markets from a map and tracks request concurrency.
type mockDirectory struct {
	mu      sync.Mutex
	markets map[string]gateway.Market
	delay   time.Duration

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (d *mockDirectory) GetMarket(ctx context.Context, id string) (*gateway.Market, error) {
	d.calls.Add(1)
	current := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)

	// Track max concurrent requests.
	for {
		old := d.maxInFlight.Load()
		if current <= old || d.maxInFlight.CompareAndSwap(old, current) {
			break
		}
	}

	if d.delay > 0 {
		time.Sleep(d.delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.markets[id]
	if !ok {
		return nil, gateway.ErrMarketNotFound
	}
	return &m, nil
}

func (d *mockDirectory) set(id string, m gateway.Market) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markets[id] = m
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []MarketChange
}

func (r *changeRecorder) HandleMarketChange(c MarketChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

func (r *changeRecorder) list() []MarketChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MarketChange(nil), r.changes...)
}

func openMarket(id string) gateway.Market {
	return gateway.Market{
		ConditionID: id,
		Active:      true,
		Tokens:      []gateway.Token{{TokenID: id + "-yes", Outcome: "Yes"}, {TokenID: id + "-no", Outcome: "No"}},
	}
}

func newTestPoller(d *mockDirectory, h ChangeHandler, concurrency int) *Poller {
	p := New(Config{Interval: time.Hour, Concurrency: concurrency, Timeout: 5 * time.Second}, d, h, nil)
	p.ctx = context.Background()
	return p
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Interval != 5*time.Minute || cfg.Concurrency != 4 || cfg.Timeout != 10*time.Second {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}

	p := New(Config{}, &mockDirectory{}, nil, nil)
	if p.cfg != cfg {
		t.Errorf("zero config not defaulted: %+v", p.cfg)
	}
}

func TestPoller_ReportsTransitionsOnce(t *testing.T) {
	d := &mockDirectory{markets: map[string]gateway.Market{"0xa": openMarket("0xa")}}
	rec := &changeRecorder{}
	p := newTestPoller(d, rec, 4)
	p.Watch("0xa")

	p.pollAll()
	if got := rec.list(); len(got) != 0 {
		t.Fatalf("open market reported changes: %+v", got)
	}

	closed := openMarket("0xa")
	closed.Active = false
	closed.Closed = true
	d.set("0xa", closed)
	p.pollAll()
	p.pollAll()

	got := rec.list()
	if len(got) != 1 || got[0].Kind != ChangeClosed || got[0].Market.ConditionID != "0xa" {
		t.Fatalf("changes after close = %+v", got)
	}

	closed.Tokens[1].Winner = true
	d.set("0xa", closed)
	p.pollAll()
	p.pollAll()

	got = rec.list()
	if len(got) != 2 || got[1].Kind != ChangeResolved || got[1].Winner.Outcome != "No" {
		t.Fatalf("changes after resolution = %+v", got)
	}
}

func TestPoller_ClosedAndResolvedTogether(t *testing.T) {
	m := openMarket("0xb")
	m.Closed = true
	m.Tokens[0].Winner = true
	d := &mockDirectory{markets: map[string]gateway.Market{"0xb": m}}
	rec := &changeRecorder{}
	p := newTestPoller(d, rec, 1)
	p.Watch("0xb")

	p.pollAll()

	got := rec.list()
	if len(got) != 2 || got[0].Kind != ChangeClosed || got[1].Kind != ChangeResolved {
		t.Errorf("changes = %+v", got)
	}
}

func TestPoller_UnwatchAndErrors(t *testing.T) {
	d := &mockDirectory{markets: map[string]gateway.Market{"0xa": openMarket("0xa")}}
	var handled atomic.Int32
	p := newTestPoller(d, ChangeHandlerFunc(func(MarketChange) error {
		handled.Add(1)
		return errors.New("handler failed")
	}), 2)

	p.Watch("0xa", "0xmissing", "0xa")
	if p.Watching() != 2 {
		t.Fatalf("Watching() = %d, want 2", p.Watching())
	}

	// Missing markets are logged and skipped.
	p.pollAll()
	if d.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", d.calls.Load())
	}

	p.Unwatch("0xmissing")
	p.pollAll()
	if d.calls.Load() != 3 {
		t.Errorf("calls after Unwatch = %d, want 3", d.calls.Load())
	}
	if handled.Load() != 0 {
		t.Errorf("handler called %d times for open markets", handled.Load())
	}
}

func TestPoller_StartStop(t *testing.T) {
	d := &mockDirectory{markets: map[string]gateway.Market{"0xa": openMarket("0xa")}}
	p := New(Config{Interval: 50 * time.Millisecond, Concurrency: 2, Timeout: time.Second}, d, nil, nil)
	p.Watch("0xa")

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Immediate poll plus at least one tick.
	deadline := time.After(2 * time.Second)
	for d.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want >= 2", d.calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestPoller_Concurrency(t *testing.T) {
	d := &mockDirectory{markets: map[string]gateway.Market{}, delay: 30 * time.Millisecond}
	p := newTestPoller(d, nil, 5)

	// Create 20 markets.
	for i := 0; i < 20; i++ {
		id := "0x" + string(rune('a'+i))
		d.markets[id] = openMarket(id)
		p.Watch(id)
	}

	p.pollAll()

	if got := d.calls.Load(); got != 20 {
		t.Errorf("calls = %d, want 20", got)
	}
	if got := d.maxInFlight.Load(); got > 5 {
		t.Errorf("maxInFlight = %d, want <= 5", got)
	}
}
