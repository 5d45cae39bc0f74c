package main

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/rickgao/polymarket-realtime/internal/gateway"
	"github.com/rickgao/polymarket-realtime/internal/model"
	"github.com/rickgao/polymarket-realtime/internal/publish"
	"github.com/rickgao/polymarket-realtime/internal/subscription"
	"github.com/rickgao/polymarket-realtime/internal/writer"
)

// sinks fans each event out to the optional journal and publisher.
type sinks struct {
	logger    *slog.Logger
	journal   *writer.EventWriter
	publisher *publish.Publisher

	orders  atomic.Int64
	trades  atomic.Int64
	market  atomic.Int64
	errored atomic.Int64
}

func (s *sinks) userCallbacks() subscription.Callbacks {
	return subscription.Callbacks{
		OnOrder: s.onOrder,
		OnTrade: s.onTrade,
		OnError: s.onError,
	}
}

func (s *sinks) marketCallbacks() subscription.Callbacks {
	return subscription.Callbacks{
		OnMarket: s.onMarket,
		OnError:  s.onError,
	}
}

func (s *sinks) onOrder(ev model.OrderEvent) error {
	s.orders.Add(1)
	s.logger.Info("order",
		"order_id", ev.OrderID,
		"type", ev.EventType,
		"side", ev.Side,
		"price", ev.Price,
		"matched", ev.MatchedSize,
		"original", ev.OriginalSize,
	)

	var errs []error
	if s.journal != nil {
		errs = append(errs, s.journal.HandleOrder(ev))
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.PublishOrder(ev))
	}
	return errors.Join(errs...)
}

func (s *sinks) onTrade(ev model.TradeEvent) error {
	s.trades.Add(1)
	s.logger.Info("trade",
		"trade_id", ev.TradeID,
		"status", ev.Status,
		"side", ev.Side,
		"price", ev.Price,
		"size", ev.Size,
		"outcome", ev.Outcome,
	)

	var errs []error
	if s.journal != nil {
		errs = append(errs, s.journal.HandleTrade(ev))
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.PublishTrade(ev))
	}
	return errors.Join(errs...)
}

func (s *sinks) onMarket(ev model.MarketEvent) error {
	s.market.Add(1)
	s.logger.Debug("market",
		"type", ev.Type,
		"asset_id", ev.AssetID,
		"price", ev.Price,
		"best_bid", ev.BestBid,
		"best_ask", ev.BestAsk,
	)
	if s.publisher != nil {
		return s.publisher.PublishMarket(ev)
	}
	return nil
}

func (s *sinks) onError(err error) {
	s.errored.Add(1)
	s.logger.Error("subscription error", "error", err)
}

// sinkStats is the /health view of the sinks.
type sinkStats struct {
	Orders    int64                 `json:"orders"`
	Trades    int64                 `json:"trades"`
	Market    int64                 `json:"market"`
	Errors    int64                 `json:"errors"`
	Journal   *writer.WriterMetrics `json:"journal,omitempty"`
	Publisher *publish.Stats        `json:"publisher,omitempty"`
}

func (s *sinks) stats() sinkStats {
	out := sinkStats{
		Orders: s.orders.Load(),
		Trades: s.trades.Load(),
		Market: s.market.Load(),
		Errors: s.errored.Load(),
	}
	if s.journal != nil {
		m := s.journal.Stats()
		out.Journal = &m
	}
	if s.publisher != nil {
		p := s.publisher.Stats()
		out.Publisher = &p
	}
	return out
}

// logOpenOrders logs the current open orders and returns how many there were.
// Failures are logged, not returned: the snapshot is informational.
func logOpenOrders(ctx context.Context, orders gateway.OrderReader, logger *slog.Logger) int {
	open, err := orders.GetOpenOrders(ctx)
	if err != nil {
		logger.Warn("open order snapshot failed", "error", err)
		return 0
	}
	logger.Info("open orders", "count", len(open))
	for _, o := range open {
		logger.Debug("open order",
			"id", o.ID,
			"asset_id", o.AssetID,
			"side", o.Side,
			"price", o.Price,
			"remaining", o.Remaining(),
		)
	}
	return len(open)
}
