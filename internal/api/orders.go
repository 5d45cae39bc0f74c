package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/polymarket-realtime/internal/auth"
	"github.com/rickgao/polymarket-realtime/internal/gateway"
)

// maxPages bounds cursor pagination against a server that never ends it.
const maxPages = 100

// OrdersFilter narrows GetOpenOrders and GetTrades.
type OrdersFilter struct {
	Market  string // Condition id
	AssetID string
}

func (f OrdersFilter) query() url.Values {
	q := url.Values{}
	if f.Market != "" {
		q.Set("market", f.Market)
	}
	if f.AssetID != "" {
		q.Set("asset_id", f.AssetID)
	}
	return q
}

// GetOpenOrders returns the user's resting orders across all pages.
func (c *Client) GetOpenOrders(ctx context.Context) ([]gateway.OpenOrder, error) {
	return c.GetOpenOrdersFiltered(ctx, OrdersFilter{})
}

// GetOpenOrdersFiltered returns the user's resting orders matching f.
func (c *Client) GetOpenOrdersFiltered(ctx context.Context, f OrdersFilter) ([]gateway.OpenOrder, error) {
	wire, err := paginate[orderWire](ctx, c, "/data/orders", f.query())
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}
	out := make([]gateway.OpenOrder, 0, len(wire))
	for _, o := range wire {
		out = append(out, o.toGateway())
	}
	return out, nil
}

// GetTrades returns the user's trade history across all pages.
func (c *Client) GetTrades(ctx context.Context) ([]gateway.Trade, error) {
	wire, err := paginate[tradeWire](ctx, c, "/data/trades", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}
	out := make([]gateway.Trade, 0, len(wire))
	for _, t := range wire {
		out = append(out, t.toGateway())
	}
	return out, nil
}

// GetCredentials returns a copy of the configured credentials, or nil.
func (c *Client) GetCredentials(ctx context.Context) (*auth.Credentials, error) {
	if c.creds == nil {
		return nil, nil
	}
	creds := *c.creds
	return &creds, nil
}

// paginate follows next_cursor until the end marker.
func paginate[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var all []T
	cursor := ""

	for i := 0; i < maxPages; i++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		if cursor != "" {
			q.Set("next_cursor", cursor)
		}

		var resp page[T]
		if err := c.get(ctx, request{path: path, query: q, signed: true}, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)

		if resp.NextCursor == "" || resp.NextCursor == endCursor || resp.NextCursor == cursor {
			return all, nil
		}
		cursor = resp.NextCursor
	}

	c.logger.Warn("pagination limit reached", "path", path, "pages", maxPages)
	return all, nil
}
