package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-realtime/internal/auth"
	"github.com/rickgao/polymarket-realtime/internal/config"
	"github.com/rickgao/polymarket-realtime/internal/connection"
	"github.com/rickgao/polymarket-realtime/internal/gateway"
	"github.com/rickgao/polymarket-realtime/internal/model"
	"github.com/rickgao/polymarket-realtime/internal/realtime"
)

type fakeStatus struct {
	stats realtime.Stats
	subs  []realtime.SubscriptionInfo
}

func (f fakeStatus) Stats() realtime.Stats                       { return f.stats }
func (f fakeStatus) Subscriptions() []realtime.SubscriptionInfo { return f.subs }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		state      connection.State
		wantStatus string
		wantCode   int
	}{
		{connection.StateConnected, "healthy", http.StatusOK},
		{connection.StateReconnecting, "degraded", http.StatusOK},
		{connection.StateDisconnected, "unhealthy", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			src := fakeStatus{stats: realtime.Stats{State: tt.state, Subscriptions: 2}}
			h := createHealthHandler(src, &sinks{logger: slog.Default()}, nil)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body struct {
				Status     string                     `json:"status"`
				Components map[string]json.RawMessage `json:"components"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if !strings.Contains(string(body.Components["realtime"]), `"subscriptions":2`) {
				t.Errorf("realtime component = %s", body.Components["realtime"])
			}
		})
	}
}

func TestDebugSubscriptions(t *testing.T) {
	src := fakeStatus{subs: []realtime.SubscriptionInfo{
		{Kind: "user", Credentials: "k1-012***"},
	}}
	h := createHealthHandler(src, &sinks{logger: slog.Default()}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/subscriptions", nil))

	if !strings.Contains(rec.Body.String(), `"count":1`) || !strings.Contains(rec.Body.String(), "k1-012***") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSinks_CountsWithoutOutputs(t *testing.T) {
	s := &sinks{logger: slog.Default()}
	cb := s.userCallbacks()

	if err := cb.OnOrder(model.OrderEvent{OrderID: "0x1"}); err != nil {
		t.Errorf("OnOrder() error = %v", err)
	}
	if err := cb.OnTrade(model.TradeEvent{TradeID: "t1"}); err != nil {
		t.Errorf("OnTrade() error = %v", err)
	}
	cb.OnError(errors.New("boom"))
	if err := s.marketCallbacks().OnMarket(model.MarketEvent{AssetID: "111"}); err != nil {
		t.Errorf("OnMarket() error = %v", err)
	}

	st := s.stats()
	if st.Orders != 1 || st.Trades != 1 || st.Market != 1 || st.Errors != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.Journal != nil || st.Publisher != nil {
		t.Error("stats reported disabled sinks")
	}
}

func TestNewLogger(t *testing.T) {
	logger, closer := newLogger(config.LogConfig{Level: "debug", Format: "json"})
	defer closer.Close()
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
}

type fakeOrderReader struct {
	orders []gateway.OpenOrder
	err    error
}

func (f fakeOrderReader) GetOpenOrders(context.Context) ([]gateway.OpenOrder, error) {
	return f.orders, f.err
}

func (f fakeOrderReader) GetTrades(context.Context) ([]gateway.Trade, error) { return nil, nil }

func (f fakeOrderReader) GetCredentials(context.Context) (*auth.Credentials, error) {
	return nil, nil
}

func TestLogOpenOrders(t *testing.T) {
	tests := []struct {
		name   string
		reader fakeOrderReader
		want   int
	}{
		{
			name: "orders",
			reader: fakeOrderReader{orders: []gateway.OpenOrder{
				{ID: "o1", OriginalSize: decimal.NewFromInt(10), SizeMatched: decimal.NewFromInt(4)},
				{ID: "o2", OriginalSize: decimal.NewFromInt(5)},
			}},
			want: 2,
		},
		{name: "empty", reader: fakeOrderReader{}, want: 0},
		{name: "error", reader: fakeOrderReader{err: errors.New("unauthorized")}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := logOpenOrders(context.Background(), tt.reader, slog.Default()); got != tt.want {
				t.Errorf("logOpenOrders() = %d, want %d", got, tt.want)
			}
		})
	}
}
