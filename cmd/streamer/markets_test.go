package main

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/rickgao/polymarket-realtime/internal/gateway"
	"github.com/rickgao/polymarket-realtime/internal/poller"
	"github.com/rickgao/polymarket-realtime/internal/subscription"
)

type fakeSub struct {
	tokens []string
	calls  int
}

func (f *fakeSub) Unsubscribe() { f.calls++ }

type fakeSubscriber struct {
	subs []*fakeSub
	err  error
}

func (f *fakeSubscriber) subscribe(tokenIDs []string, cb subscription.Callbacks) (unsubscriber, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSub{tokens: tokenIDs}
	f.subs = append(f.subs, s)
	return s, nil
}

func testMarket(id string, closed bool) *gateway.Market {
	return &gateway.Market{
		ConditionID: id,
		Question:    "Will it rain?",
		Active:      !closed,
		Closed:      closed,
		Tokens:      []gateway.Token{{TokenID: "111", Outcome: "Yes"}, {TokenID: "222", Outcome: "No"}},
	}
}

func TestMarketSubscriptions_CloseUnsubscribes(t *testing.T) {
	fs := &fakeSubscriber{}
	ms := newMarketSubscriptions(fs.subscribe, subscription.Callbacks{}, slog.Default())

	// Configured by slug, reported by condition id.
	if err := ms.add("will-it-rain", testMarket("0xa", false)); err != nil {
		t.Fatalf("add() error = %v", err)
	}
	if len(fs.subs) != 1 || strings.Join(fs.subs[0].tokens, ",") != "111,222" {
		t.Fatalf("subs = %+v", fs.subs)
	}

	closed := testMarket("0xa", true)
	ms.HandleMarketChange(poller.MarketChange{Kind: poller.ChangeClosed, Market: *closed})
	ms.HandleMarketChange(poller.MarketChange{Kind: poller.ChangeClosed, Market: *closed})
	if fs.subs[0].calls != 1 {
		t.Errorf("Unsubscribe calls = %d, want 1", fs.subs[0].calls)
	}

	ms.HandleMarketChange(poller.MarketChange{Kind: poller.ChangeResolved, Market: *closed, Winner: closed.Tokens[1]})
	list := ms.list()
	if len(list) != 1 || !list[0].Closed || list[0].Winner != "No" {
		t.Errorf("list() = %+v", list)
	}
}

func TestMarketSubscriptions_ClosedMarketNotSubscribed(t *testing.T) {
	fs := &fakeSubscriber{}
	ms := newMarketSubscriptions(fs.subscribe, subscription.Callbacks{}, slog.Default())

	if err := ms.add("0xb", testMarket("0xb", true)); err != nil {
		t.Fatalf("add() error = %v", err)
	}
	if len(fs.subs) != 0 {
		t.Errorf("closed market subscribed: %+v", fs.subs)
	}
	// Unknown markets are ignored.
	if err := ms.HandleMarketChange(poller.MarketChange{Kind: poller.ChangeClosed, Market: gateway.Market{ConditionID: "0xz"}}); err != nil {
		t.Errorf("HandleMarketChange() error = %v", err)
	}
}

func TestMarketSubscriptions_SubscribeError(t *testing.T) {
	fs := &fakeSubscriber{err: errors.New("realtime: client is closed")}
	ms := newMarketSubscriptions(fs.subscribe, subscription.Callbacks{}, slog.Default())

	err := ms.add("0xa", testMarket("0xa", false))
	if err == nil || !strings.Contains(err.Error(), "subscribe market 0xa") {
		t.Errorf("add() error = %v", err)
	}
	if len(ms.list()) != 0 {
		t.Error("failed market recorded")
	}
}
