package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/polymarket-realtime/internal/model"
	"github.com/rickgao/polymarket-realtime/internal/router"
)

// eventNamespace seeds the deterministic order event ids, so an event
// delivered twice maps onto the same row.
var eventNamespace = uuid.MustParse("6f1c7c1e-5b8a-4a53-9a52-3f0e9d1b7c44")

// EventWriter journals user channel events to Postgres. HandleOrder and
// HandleTrade match the subscription callback signatures and never block.
type EventWriter struct {
	cfg    WriterConfig
	logger *slog.Logger
	db     DB
	now    func() time.Time

	// Pending events, filled by callbacks
	orders *router.GrowableBuffer[orderRow]
	trades *router.GrowableBuffer[tradeRow]
	kick   chan struct{}

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metricsMu sync.Mutex
	metrics   WriterMetrics
}

// NewEventWriter creates a new EventWriter.
func NewEventWriter(cfg WriterConfig, db DB, logger *slog.Logger) *EventWriter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWriterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	initial := cfg.BatchSize
	if cfg.BufferSize > 0 && cfg.BufferSize < initial {
		initial = cfg.BufferSize
	}
	return &EventWriter{
		cfg:    cfg,
		logger: logger.With("component", "journal"),
		db:     db,
		now:    time.Now,
		orders: router.NewBoundedBuffer[orderRow](initial, cfg.BufferSize),
		trades: router.NewBoundedBuffer[tradeRow](initial, cfg.BufferSize),
		kick:   make(chan struct{}, 1),
	}
}

// Start begins the flush loop.
func (w *EventWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("event journal started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop stops accepting events, waits for the flush loop and writes what is
// still pending using ctx.
func (w *EventWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping event journal")

	w.orders.Close()
	w.trades.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("event journal stop timed out")
		return ctx.Err()
	}

	// Final flush
	for w.flush(ctx) {
	}

	w.logger.Info("event journal stopped", "stats", w.Stats())
	return nil
}

// HandleOrder queues an order event.
func (w *EventWriter) HandleOrder(ev model.OrderEvent) error {
	return w.queued(w.orders.Send(w.orderRow(ev)), w.orders.Len())
}

// HandleTrade queues a trade event.
func (w *EventWriter) HandleTrade(ev model.TradeEvent) error {
	return w.queued(w.trades.Send(w.tradeRow(ev)), w.trades.Len())
}

func (w *EventWriter) queued(ok bool, pending int) error {
	if !ok {
		w.metricsMu.Lock()
		w.metrics.Dropped++
		w.metricsMu.Unlock()
		return ErrBufferFull
	}
	if pending >= w.cfg.BatchSize {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Stats returns current metrics.
func (w *EventWriter) Stats() WriterMetrics {
	w.metricsMu.Lock()
	defer w.metricsMu.Unlock()
	return w.metrics
}

// flushLoop flushes on the interval or when a batch fills up.
func (w *EventWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		case <-w.kick:
		}
		for w.flush(w.ctx) {
		}
	}
}

// flush writes at most one batch per table. It reports whether a full batch
// was written and more may be pending.
func (w *EventWriter) flush(ctx context.Context) bool {
	orders := w.orders.DrainTo(w.cfg.BatchSize)
	trades := w.trades.DrainTo(w.cfg.BatchSize)
	if len(orders) == 0 && len(trades) == 0 {
		return false
	}

	start := time.Now()
	batch := &pgx.Batch{}
	for _, r := range orders {
		batch.Queue(insertOrder,
			r.EventID, r.OrderID, r.EventType, r.Side, r.Price, r.MatchedSize, r.OriginalSize,
			r.AssetID, r.Market, r.Outcome, nullTime(r.ExchangeTs), r.ReceivedAt)
	}
	for _, r := range trades {
		batch.Queue(insertTrade,
			r.TradeID, r.Status, r.Side, r.Price, r.Size, r.Outcome, r.TransactionHash,
			r.AssetID, r.Market, nullTime(r.ExchangeTs), r.ReceivedAt)
	}

	conflicts, err := w.sendBatch(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed",
			"error", err,
			"orders", len(orders),
			"trades", len(trades),
		)
		w.metricsMu.Lock()
		w.metrics.Errors++
		w.metricsMu.Unlock()
		return false
	}

	total := len(orders) + len(trades)
	w.metricsMu.Lock()
	w.metrics.Inserts += int64(total - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.metricsMu.Unlock()

	w.logger.Debug("flushed events",
		"orders", len(orders),
		"trades", len(trades),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return len(orders) == w.cfg.BatchSize || len(trades) == w.cfg.BatchSize
}

const insertOrder = `
	INSERT INTO order_events (event_id, order_id, event_type, side, price, matched_size, original_size,
		asset_id, market, outcome, exchange_ts, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (event_id) DO NOTHING`

const insertTrade = `
	INSERT INTO trade_events (trade_id, status, side, price, size, outcome, transaction_hash,
		asset_id, market, exchange_ts, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (trade_id, status) DO NOTHING`

// sendBatch runs batch with ON CONFLICT DO NOTHING and counts skipped rows.
func (w *EventWriter) sendBatch(ctx context.Context, batch *pgx.Batch) (conflicts int, err error) {
	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	return conflicts, nil
}

func (w *EventWriter) orderRow(ev model.OrderEvent) orderRow {
	key := ev.OrderID + "|" + string(ev.EventType) + "|" + ev.MatchedSize.String() + "|" +
		ev.OriginalSize.String() + "|" + ev.Timestamp.UTC().Format(time.RFC3339Nano)
	return orderRow{
		EventID:      uuid.NewSHA1(eventNamespace, []byte(key)).String(),
		OrderID:      ev.OrderID,
		EventType:    string(ev.EventType),
		Side:         string(ev.Side),
		Price:        ev.Price,
		MatchedSize:  ev.MatchedSize,
		OriginalSize: ev.OriginalSize,
		AssetID:      ev.AssetID,
		Market:       ev.Market,
		Outcome:      ev.Outcome,
		ExchangeTs:   ev.Timestamp,
		ReceivedAt:   w.now().UTC(),
	}
}

func (w *EventWriter) tradeRow(ev model.TradeEvent) tradeRow {
	return tradeRow{
		TradeID:         ev.TradeID,
		Status:          ev.Status,
		Side:            string(ev.Side),
		Price:           ev.Price,
		Size:            ev.Size,
		Outcome:         ev.Outcome,
		TransactionHash: ev.TransactionHash,
		AssetID:         ev.AssetID,
		Market:          ev.Market,
		ExchangeTs:      ev.Timestamp,
		ReceivedAt:      w.now().UTC(),
	}
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
