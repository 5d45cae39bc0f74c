package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSide_Valid(t *testing.T) {
	tests := []struct {
		side Side
		want bool
	}{
		{SideBuy, true},
		{SideSell, true},
		{"buy", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.side.Valid(); got != tt.want {
			t.Errorf("Side(%q).Valid() = %v, want %v", tt.side, got, tt.want)
		}
	}
}

func TestOrderEventType_Valid(t *testing.T) {
	for _, et := range []OrderEventType{OrderPlacement, OrderUpdate, OrderCancellation} {
		if !et.Valid() {
			t.Errorf("%q should be valid", et)
		}
	}
	if OrderEventType("FILL").Valid() {
		t.Error("FILL should not be valid")
	}
}

func TestOrderEvent_Remaining(t *testing.T) {
	tests := []struct {
		name     string
		original string
		matched  string
		want     string
	}{
		{"unfilled", "100", "0", "100"},
		{"partial", "100", "37.5", "62.5"},
		{"filled", "10", "10", "0"},
		{"overfilled clamps to zero", "10", "12", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := OrderEvent{
				OriginalSize: decimal.RequireFromString(tt.original),
				MatchedSize:  decimal.RequireFromString(tt.matched),
			}
			want := decimal.RequireFromString(tt.want)
			if got := e.Remaining(); !got.Equal(want) {
				t.Errorf("Remaining() = %s, want %s", got, want)
			}
		})
	}
}

func TestTradeEvent_Notional(t *testing.T) {
	e := TradeEvent{
		Price: decimal.RequireFromString("0.52"),
		Size:  decimal.RequireFromString("150"),
	}
	want := decimal.RequireFromString("78")
	if got := e.Notional(); !got.Equal(want) {
		t.Errorf("Notional() = %s, want %s", got, want)
	}
}
