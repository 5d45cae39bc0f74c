package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMarket_TokenIDs(t *testing.T) {
	m := &Market{Tokens: []Token{
		{TokenID: "111", Outcome: "Yes"},
		{TokenID: "", Outcome: "Broken"},
		{TokenID: "222", Outcome: "No", Winner: true},
	}}

	ids := m.TokenIDs()
	if len(ids) != 2 || ids[0] != "111" || ids[1] != "222" {
		t.Errorf("TokenIDs() = %v, want [111 222]", ids)
	}

	w, ok := m.Winner()
	if !ok || w.Outcome != "No" {
		t.Errorf("Winner() = %+v, %v", w, ok)
	}

	if _, ok := (&Market{}).Winner(); ok {
		t.Error("unresolved market reported a winner")
	}
}

func TestOpenOrder_Remaining(t *testing.T) {
	tests := []struct {
		original, matched, want string
	}{
		{"10", "4", "6"},
		{"10", "10", "0"},
		{"5", "7", "0"},
	}
	for _, tt := range tests {
		o := OpenOrder{
			OriginalSize: decimal.RequireFromString(tt.original),
			SizeMatched:  decimal.RequireFromString(tt.matched),
		}
		if got := o.Remaining(); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Remaining(%s-%s) = %s, want %s", tt.original, tt.matched, got, tt.want)
		}
	}
}
