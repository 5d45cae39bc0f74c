// Package gateway declares the external collaborators around the realtime
// client: trading, market lookup and on-chain operations. The realtime core
// never calls them; binaries wire concrete implementations.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-realtime/internal/auth"
	"github.com/rickgao/polymarket-realtime/internal/model"
)

var ErrMarketNotFound = errors.New("market not found")

// OrderReader is the read-only half of TradingGateway.
type OrderReader interface {
	GetOpenOrders(ctx context.Context) ([]OpenOrder, error)
	GetTrades(ctx context.Context) ([]Trade, error)

	// GetCredentials returns the API credential triple, or nil when the
	// gateway has none.
	GetCredentials(ctx context.Context) (*auth.Credentials, error)
}

// TradingGateway places and inspects orders on the CLOB.
type TradingGateway interface {
	OrderReader
	CreateLimitOrder(ctx context.Context, params LimitOrderParams) (OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (OrderResult, error)
}

// MarketDirectory resolves market metadata. GetMarket returns
// ErrMarketNotFound when nothing matches.
type MarketDirectory interface {
	GetMarket(ctx context.Context, slugOrConditionID string) (*Market, error)
}

// ChainGateway reads balances and redeems resolved positions on-chain.
type ChainGateway interface {
	CollateralBalance(ctx context.Context) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, tokenID string) (decimal.Decimal, error)
	Redeem(ctx context.Context, conditionID string, tokenIDs []string) (txHash string, err error)
}

// LimitOrderParams describes a GTC/GTD limit order.
type LimitOrderParams struct {
	TokenID    string
	Side       model.Side
	Price      decimal.Decimal
	Size       decimal.Decimal
	Expiration time.Time // Zero = good till cancelled
	PostOnly   bool
}

// OrderResult is the outcome of a create or cancel call.
type OrderResult struct {
	Success  bool
	OrderID  string
	ErrorMsg string
}

// Token is one outcome of a market.
type Token struct {
	TokenID string          `json:"token_id"`
	Outcome string          `json:"outcome"`
	Price   decimal.Decimal `json:"price"`
	Winner  bool            `json:"winner"`
}

// Market is the subset of market metadata the client needs.
type Market struct {
	ConditionID string  `json:"condition_id"`
	Question    string  `json:"question"`
	Slug        string  `json:"slug,omitempty"`
	Active      bool    `json:"active"`
	Closed      bool    `json:"closed"`
	Tokens      []Token `json:"tokens"`
}

// TokenIDs returns the market's token ids in outcome order.
func (m *Market) TokenIDs() []string {
	ids := make([]string, 0, len(m.Tokens))
	for _, t := range m.Tokens {
		if t.TokenID != "" {
			ids = append(ids, t.TokenID)
		}
	}
	return ids
}

// Winner returns the winning token of a resolved market.
func (m *Market) Winner() (Token, bool) {
	for _, t := range m.Tokens {
		if t.Winner {
			return t, true
		}
	}
	return Token{}, false
}

// OpenOrder is a resting order owned by the authenticated user.
type OpenOrder struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Market       string          `json:"market"`
	AssetID      string          `json:"asset_id"`
	Outcome      string          `json:"outcome"`
	Side         model.Side      `json:"side"`
	Price        decimal.Decimal `json:"price"`
	OriginalSize decimal.Decimal `json:"original_size"`
	SizeMatched  decimal.Decimal `json:"size_matched"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Remaining returns the unfilled size.
func (o OpenOrder) Remaining() decimal.Decimal {
	r := o.OriginalSize.Sub(o.SizeMatched)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Trade is a historical fill of the authenticated user.
type Trade struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	Market          string          `json:"market"`
	AssetID         string          `json:"asset_id"`
	Outcome         string          `json:"outcome"`
	Side            model.Side      `json:"side"`
	Price           decimal.Decimal `json:"price"`
	Size            decimal.Decimal `json:"size"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
	MatchTime       time.Time       `json:"match_time"`
}
