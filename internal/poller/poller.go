package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/polymarket-realtime/internal/gateway"
)

// ChangeKind is the market transition a poll observed.
type ChangeKind string

const (
	ChangeClosed   ChangeKind = "closed"   // Trading stopped
	ChangeResolved ChangeKind = "resolved" // A winning token is known
)

// MarketChange reports a watched market's transition.
type MarketChange struct {
	Kind   ChangeKind
	Market gateway.Market
	Winner gateway.Token // ChangeResolved only
	At     time.Time
}

// ChangeHandler receives market transitions.
type ChangeHandler interface {
	HandleMarketChange(change MarketChange) error
}

// ChangeHandlerFunc is a function adapter for ChangeHandler.
type ChangeHandlerFunc func(MarketChange) error

func (f ChangeHandlerFunc) HandleMarketChange(c MarketChange) error {
	return f(c)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 5m)
	Concurrency int           // Max concurrent requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// watched is the last observed state of one market.
type watched struct {
	closed   bool
	resolved bool
}

// Poller periodically re-reads watched markets through a MarketDirectory and
// reports when they close or resolve. Each transition is reported once.
type Poller struct {
	cfg       Config
	directory gateway.MarketDirectory
	handler   ChangeHandler
	logger    *slog.Logger

	mu      sync.Mutex
	markets map[string]*watched // By condition id or slug

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, directory gateway.MarketDirectory, handler ChangeHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:       cfg,
		directory: directory,
		handler:   handler,
		logger:    logger.With("component", "poller"),
		markets:   make(map[string]*watched),
	}
}

// Watch adds markets to the poll set. Known markets are left as they are.
func (p *Poller) Watch(markets ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range markets {
		if _, ok := p.markets[m]; !ok {
			p.markets[m] = &watched{}
		}
	}
}

// Unwatch removes a market from the poll set.
func (p *Poller) Unwatch(market string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.markets, market)
}

// Watching returns the number of watched markets.
func (p *Poller) Watching() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.markets)
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("market poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
		"markets", p.Watching(),
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("market poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll fetches every watched market concurrently.
func (p *Poller) pollAll() {
	start := time.Now()

	p.mu.Lock()
	ids := make([]string, 0, len(p.markets))
	for id := range p.markets {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	if len(ids) == 0 {
		p.logger.Debug("no markets to poll")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, errors atomic.Int64

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			if err := p.pollMarket(id); err != nil {
				p.logger.Warn("failed to poll market",
					"market", id,
					"error", err,
				)
				errors.Add(1)
				return
			}

			fetched.Add(1)
		}(id)
	}

	wg.Wait()

	p.logger.Debug("poll cycle complete",
		"markets", len(ids),
		"fetched", fetched.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

// pollMarket fetches one market and reports new transitions.
func (p *Poller) pollMarket(id string) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	m, err := p.directory.GetMarket(ctx, id)
	if err != nil {
		return err
	}

	winner, resolved := m.Winner()
	closed := m.Closed || !m.Active

	p.mu.Lock()
	w, ok := p.markets[id]
	if !ok {
		// Unwatched while in flight
		p.mu.Unlock()
		return nil
	}
	var changes []MarketChange
	now := time.Now()
	if closed && !w.closed {
		w.closed = true
		changes = append(changes, MarketChange{Kind: ChangeClosed, Market: *m, At: now})
	}
	if resolved && !w.resolved {
		w.resolved = true
		changes = append(changes, MarketChange{Kind: ChangeResolved, Market: *m, Winner: winner, At: now})
	}
	p.mu.Unlock()

	if p.handler == nil {
		return nil
	}
	for _, c := range changes {
		if err := p.handler.HandleMarketChange(c); err != nil {
			return err
		}
	}
	return nil
}
