package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-realtime/internal/gateway"
	"github.com/rickgao/polymarket-realtime/internal/model"
)

// endCursor marks the last page of a paginated /data response.
const endCursor = "LTE="

// clobMarket is the GET /markets/{condition_id} response.
type clobMarket struct {
	ConditionID string      `json:"condition_id"`
	Question    string      `json:"question"`
	MarketSlug  string      `json:"market_slug"`
	Active      bool        `json:"active"`
	Closed      bool        `json:"closed"`
	Tokens      []clobToken `json:"tokens"`
}

type clobToken struct {
	TokenID string          `json:"token_id"`
	Outcome string          `json:"outcome"`
	Price   decimal.Decimal `json:"price"`
	Winner  bool            `json:"winner"`
}

// gammaMarket is one element of GET /markets?slug= on the Gamma API.
// Token ids, outcomes and prices arrive as JSON-encoded strings.
type gammaMarket struct {
	ConditionID   string `json:"conditionId"`
	Question      string `json:"question"`
	Slug          string `json:"slug"`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
	ClobTokenIDs  string `json:"clobTokenIds"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
}

// page is the envelope of the paginated /data endpoints.
type page[T any] struct {
	Data       []T    `json:"data"`
	NextCursor string `json:"next_cursor"`
}

type orderWire struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Market       string          `json:"market"`
	AssetID      string          `json:"asset_id"`
	Outcome      string          `json:"outcome"`
	Side         string          `json:"side"`
	Price        decimal.Decimal `json:"price"`
	OriginalSize decimal.Decimal `json:"original_size"`
	SizeMatched  decimal.Decimal `json:"size_matched"`
	CreatedAt    unixSeconds     `json:"created_at"`
}

type tradeWire struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	Market          string          `json:"market"`
	AssetID         string          `json:"asset_id"`
	Outcome         string          `json:"outcome"`
	Side            string          `json:"side"`
	Price           decimal.Decimal `json:"price"`
	Size            decimal.Decimal `json:"size"`
	TransactionHash string          `json:"transaction_hash"`
	MatchTime       unixSeconds     `json:"match_time"`
}

// unixSeconds accepts a unix timestamp as a JSON number or string.
type unixSeconds struct {
	time.Time
}

func (u *unixSeconds) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	u.Time = time.Unix(v, 0).UTC()
	return nil
}

func (m clobMarket) toGateway() *gateway.Market {
	out := &gateway.Market{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Slug:        m.MarketSlug,
		Active:      m.Active,
		Closed:      m.Closed,
		Tokens:      make([]gateway.Token, 0, len(m.Tokens)),
	}
	for _, t := range m.Tokens {
		out.Tokens = append(out.Tokens, gateway.Token{
			TokenID: t.TokenID,
			Outcome: t.Outcome,
			Price:   t.Price,
			Winner:  t.Winner,
		})
	}
	return out
}

func (m gammaMarket) toGateway() (*gateway.Market, error) {
	var ids, outcomes, prices []string
	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{m.ClobTokenIDs, &ids},
		{m.Outcomes, &outcomes},
		{m.OutcomePrices, &prices},
	} {
		if f.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, err
		}
	}

	out := &gateway.Market{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Slug:        m.Slug,
		Active:      m.Active,
		Closed:      m.Closed,
		Tokens:      make([]gateway.Token, 0, len(ids)),
	}
	for i, id := range ids {
		tok := gateway.Token{TokenID: id}
		if i < len(outcomes) {
			tok.Outcome = outcomes[i]
		}
		if i < len(prices) {
			tok.Price, _ = decimal.NewFromString(prices[i])
		}
		out.Tokens = append(out.Tokens, tok)
	}
	return out, nil
}

func (o orderWire) toGateway() gateway.OpenOrder {
	return gateway.OpenOrder{
		ID:           o.ID,
		Status:       o.Status,
		Market:       o.Market,
		AssetID:      o.AssetID,
		Outcome:      o.Outcome,
		Side:         model.Side(strings.ToUpper(o.Side)),
		Price:        o.Price,
		OriginalSize: o.OriginalSize,
		SizeMatched:  o.SizeMatched,
		CreatedAt:    o.CreatedAt.Time,
	}
}

func (t tradeWire) toGateway() gateway.Trade {
	return gateway.Trade{
		ID:              t.ID,
		Status:          strings.ToUpper(t.Status),
		Market:          t.Market,
		AssetID:         t.AssetID,
		Outcome:         t.Outcome,
		Side:            model.Side(strings.ToUpper(t.Side)),
		Price:           t.Price,
		Size:            t.Size,
		TransactionHash: t.TransactionHash,
		MatchTime:       t.MatchTime.Time,
	}
}
