package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rickgao/polymarket-realtime/internal/gateway"
)

// GetMarket resolves a condition id (0x-prefixed) on the CLOB, or a slug on
// the Gamma catalog. It returns gateway.ErrMarketNotFound when nothing matches.
func (c *Client) GetMarket(ctx context.Context, slugOrConditionID string) (*gateway.Market, error) {
	id := strings.TrimSpace(slugOrConditionID)
	if id == "" {
		return nil, fmt.Errorf("get market: %w", gateway.ErrMarketNotFound)
	}
	if strings.HasPrefix(id, "0x") {
		return c.getMarketByConditionID(ctx, id)
	}
	return c.getMarketBySlug(ctx, id)
}

func (c *Client) getMarketByConditionID(ctx context.Context, conditionID string) (*gateway.Market, error) {
	var resp clobMarket
	err := c.get(ctx, request{path: "/markets/" + url.PathEscape(conditionID)}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("get market %s: %w", conditionID, gateway.ErrMarketNotFound)
		}
		return nil, fmt.Errorf("get market %s: %w", conditionID, err)
	}
	if resp.ConditionID == "" {
		return nil, fmt.Errorf("get market %s: %w", conditionID, gateway.ErrMarketNotFound)
	}
	return resp.toGateway(), nil
}

func (c *Client) getMarketBySlug(ctx context.Context, slug string) (*gateway.Market, error) {
	var resp []gammaMarket
	query := url.Values{"slug": {slug}}
	if err := c.get(ctx, request{base: c.gammaURL, path: "/markets", query: query}, &resp); err != nil {
		return nil, fmt.Errorf("get market %s: %w", slug, err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("get market %s: %w", slug, gateway.ErrMarketNotFound)
	}

	m, err := resp[0].toGateway()
	if err != nil {
		return nil, fmt.Errorf("decode market %s: %w", slug, err)
	}
	return m, nil
}

// ResolveTokenIDs maps condition ids or slugs to their token ids, in order.
func (c *Client) ResolveTokenIDs(ctx context.Context, markets []string) ([]string, error) {
	var out []string
	for _, m := range markets {
		market, err := c.GetMarket(ctx, m)
		if err != nil {
			return nil, err
		}
		ids := market.TokenIDs()
		c.logger.Debug("resolved market",
			"market", m,
			"condition_id", market.ConditionID,
			"tokens", len(ids),
		)
		out = append(out, ids...)
	}
	return out, nil
}
