package subscription

import (
	"errors"
	"fmt"

	"github.com/rickgao/polymarket-realtime/internal/auth"
	"github.com/rickgao/polymarket-realtime/internal/model"
)

// Errors
var (
	ErrNoCallbacks = errors.New("at least one callback is required")
	ErrEmptyFilter = errors.New("at least one token id is required")
	ErrInactive    = errors.New("subscription is no longer active")
	ErrUnknownKind = errors.New("unknown subscription kind")
)

// Kind is the channel a subscription listens on.
type Kind int

const (
	KindMarket Kind = iota + 1
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindMarket:
		return "market"
	case KindUser:
		return "user"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Handle identifies one registered subscription.
type Handle string

// Callbacks are invoked sequentially per subscription, in receipt order.
// A returned error (or a panic) is routed to OnError.
type Callbacks struct {
	OnOrder  func(model.OrderEvent) error
	OnTrade  func(model.TradeEvent) error
	OnMarket func(model.MarketEvent) error
	OnError  func(error)
}

func (c Callbacks) empty() bool {
	return c.OnOrder == nil && c.OnTrade == nil && c.OnMarket == nil && c.OnError == nil
}

// Filter selects what a subscription receives.
type Filter struct {
	TokenIDs    []string          // Market: token ids to stream
	Markets     []string          // User: optional condition ids
	Credentials *auth.Credentials // User: required
}
