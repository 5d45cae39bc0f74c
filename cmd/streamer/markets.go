package main

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/polymarket-realtime/internal/gateway"
	"github.com/rickgao/polymarket-realtime/internal/poller"
	"github.com/rickgao/polymarket-realtime/internal/realtime"
	"github.com/rickgao/polymarket-realtime/internal/subscription"
)

// subscribeFunc opens a market subscription.
type subscribeFunc func(tokenIDs []string, cb subscription.Callbacks) (unsubscriber, error)

// clientSubscriber adapts a realtime client to subscribeFunc.
func clientSubscriber(c *realtime.Client) subscribeFunc {
	return func(tokenIDs []string, cb subscription.Callbacks) (unsubscriber, error) {
		sub, err := c.SubscribeMarket(tokenIDs, cb)
		if err != nil {
			return nil, err
		}
		return sub, nil
	}
}

// unsubscriber is satisfied by *realtime.Subscription.
type unsubscriber interface {
	Unsubscribe()
}

// marketInfo is the /health view of one configured market.
type marketInfo struct {
	ConditionID string   `json:"condition_id"`
	Question    string   `json:"question,omitempty"`
	TokenIDs    []string `json:"token_ids"`
	Closed      bool     `json:"closed"`
	Winner      string   `json:"winner,omitempty"`
}

type marketEntry struct {
	info marketInfo
	sub  unsubscriber
}

// marketSubscriptions keeps one subscription per configured market and drops
// it when the poller reports the market closed.
type marketSubscriptions struct {
	subscribe subscribeFunc
	cb        subscription.Callbacks
	logger    *slog.Logger

	mu      sync.Mutex
	markets map[string]*marketEntry // By configured id
}

func newMarketSubscriptions(subscribe subscribeFunc, cb subscription.Callbacks, logger *slog.Logger) *marketSubscriptions {
	return &marketSubscriptions{
		subscribe: subscribe,
		cb:        cb,
		logger:    logger,
		markets:   make(map[string]*marketEntry),
	}
}

// add subscribes to m's tokens under id.
func (s *marketSubscriptions) add(id string, m *gateway.Market) error {
	info := marketInfo{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		TokenIDs:    m.TokenIDs(),
		Closed:      m.Closed,
	}
	entry := &marketEntry{info: info}

	if !m.Closed && len(info.TokenIDs) > 0 {
		sub, err := s.subscribe(info.TokenIDs, s.cb)
		if err != nil {
			return fmt.Errorf("subscribe market %s: %w", id, err)
		}
		entry.sub = sub
	} else {
		s.logger.Warn("market not tradable, not subscribing",
			"market", id,
			"closed", m.Closed,
			"tokens", len(info.TokenIDs),
		)
	}

	s.mu.Lock()
	s.markets[id] = entry
	s.mu.Unlock()

	s.logger.Info("market resolved",
		"market", id,
		"condition_id", m.ConditionID,
		"question", m.Question,
		"tokens", len(info.TokenIDs),
	)
	return nil
}

// HandleMarketChange implements poller.ChangeHandler.
func (s *marketSubscriptions) HandleMarketChange(c poller.MarketChange) error {
	s.mu.Lock()
	entry, ok := s.markets[c.Market.ConditionID]
	if !ok {
		for _, e := range s.markets {
			if e.info.ConditionID == c.Market.ConditionID {
				entry, ok = e, true
				break
			}
		}
	}
	if !ok {
		s.mu.Unlock()
		return nil
	}

	var sub unsubscriber
	switch c.Kind {
	case poller.ChangeClosed:
		entry.info.Closed = true
		sub, entry.sub = entry.sub, nil
	case poller.ChangeResolved:
		entry.info.Winner = c.Winner.Outcome
	}
	s.mu.Unlock()

	switch c.Kind {
	case poller.ChangeClosed:
		s.logger.Info("market closed", "condition_id", c.Market.ConditionID, "question", c.Market.Question)
	case poller.ChangeResolved:
		s.logger.Info("market resolved with winner",
			"condition_id", c.Market.ConditionID,
			"outcome", c.Winner.Outcome,
			"token_id", c.Winner.TokenID,
		)
	}

	if sub != nil {
		sub.Unsubscribe()
	}
	return nil
}

// list returns the configured markets.
func (s *marketSubscriptions) list() []marketInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]marketInfo, 0, len(s.markets))
	for _, e := range s.markets {
		out = append(out, e.info)
	}
	return out
}
