package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderEventType is the lifecycle step an order event describes.
type OrderEventType string

const (
	OrderPlacement    OrderEventType = "PLACEMENT"
	OrderUpdate       OrderEventType = "UPDATE"
	OrderCancellation OrderEventType = "CANCELLATION"
)

// Valid reports whether t is a known order event type.
func (t OrderEventType) Valid() bool {
	switch t {
	case OrderPlacement, OrderUpdate, OrderCancellation:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// User Channel
// -----------------------------------------------------------------------------

// OrderEvent is a normalized order lifecycle event from the user channel.
type OrderEvent struct {
	OrderID      string          `json:"order_id"`
	EventType    OrderEventType  `json:"event_type"`
	Side         Side            `json:"side"`
	Price        decimal.Decimal `json:"price"`
	MatchedSize  decimal.Decimal `json:"matched_size"`
	OriginalSize decimal.Decimal `json:"original_size"`
	AssetID      string          `json:"asset_id,omitempty"`
	Market       string          `json:"market,omitempty"` // Condition ID
	Outcome      string          `json:"outcome,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Remaining returns the unmatched size of the order.
func (e OrderEvent) Remaining() decimal.Decimal {
	r := e.OriginalSize.Sub(e.MatchedSize)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// TradeEvent is a normalized trade event from the user channel.
type TradeEvent struct {
	TradeID         string          `json:"trade_id"`
	Status          string          `json:"status"` // MATCHED, MINED, CONFIRMED, RETRYING, FAILED
	Side            Side            `json:"side"`
	Price           decimal.Decimal `json:"price"`
	Size            decimal.Decimal `json:"size"`
	Outcome         string          `json:"outcome"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
	AssetID         string          `json:"asset_id,omitempty"`
	Market          string          `json:"market,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Notional returns price * size.
func (e TradeEvent) Notional() decimal.Decimal {
	return e.Price.Mul(e.Size)
}

// -----------------------------------------------------------------------------
// Market Channel
// -----------------------------------------------------------------------------

// MarketEventType identifies the kind of market data update.
type MarketEventType string

const (
	MarketBook           MarketEventType = "book"
	MarketPriceChange    MarketEventType = "price_change"
	MarketLastTradePrice MarketEventType = "last_trade_price"
	MarketTickSizeChange MarketEventType = "tick_size_change"
)

// PriceLevel is one aggregated level of an order book.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// MarketEvent is a market data update for a single token.
// Only the fields relevant to Type are populated.
type MarketEvent struct {
	Type      MarketEventType `json:"type"`
	AssetID   string          `json:"asset_id"`
	Market    string          `json:"market,omitempty"`
	Timestamp time.Time       `json:"timestamp"`

	// book
	Bids []PriceLevel `json:"bids,omitempty"`
	Asks []PriceLevel `json:"asks,omitempty"`
	Hash string       `json:"hash,omitempty"`

	// price_change, last_trade_price
	Side    Side            `json:"side,omitempty"`
	Price   decimal.Decimal `json:"price"`
	Size    decimal.Decimal `json:"size"`
	BestBid decimal.Decimal `json:"best_bid"`
	BestAsk decimal.Decimal `json:"best_ask"`

	// tick_size_change
	OldTickSize decimal.Decimal `json:"old_tick_size"`
	NewTickSize decimal.Decimal `json:"new_tick_size"`

	// Raw is the originating JSON object.
	Raw json.RawMessage `json:"-"`
}
