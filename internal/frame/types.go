package frame

import (
	"errors"
	"fmt"

	"github.com/rickgao/polymarket-realtime/internal/model"
)

// Errors
var (
	ErrMalformed     = errors.New("malformed frame")
	ErrUnknownEvent  = errors.New("unknown event type")
	ErrMissingField  = errors.New("missing required field")
	ErrEmptyFilter   = errors.New("subscription filter is empty")
	ErrInvalidFilter = errors.New("invalid subscription filter")
)

// UserChannelKey is the lookup key for every event on the authenticated channel.
const UserChannelKey = "user"

// Channel is a websocket channel on the CLOB endpoint.
type Channel string

const (
	ChannelMarket Channel = "market"
	ChannelUser   Channel = "user"
)

// Operation is the action carried by an outbound subscription frame.
type Operation string

const (
	OpSubscribe   Operation = "subscribe"
	OpUnsubscribe Operation = "unsubscribe"
)

// AuthPayload carries the credential triple on user-channel subscribe frames.
type AuthPayload struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// SubscriptionRequest is the outbound subscribe/unsubscribe frame.
type SubscriptionRequest struct {
	Type        Channel      `json:"type"`
	Operation   Operation    `json:"operation"`
	AssetsIDs   []string     `json:"assets_ids,omitempty"`
	Markets     []string     `json:"markets,omitempty"`
	InitialDump *bool        `json:"initial_dump,omitempty"`
	Auth        *AuthPayload `json:"auth,omitempty"`
}

// Kind classifies a decoded inbound message.
type Kind int

const (
	KindControl Kind = iota
	KindMarket
	KindOrder
	KindTrade
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindControl:
		return "control"
	case KindMarket:
		return "market"
	case KindOrder:
		return "order"
	case KindTrade:
		return "trade"
	case KindError:
		return "error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message is one decoded inbound event. A single frame may yield several.
// Exactly one of Market, Order, Trade, ServerErr is set for non-control kinds.
type Message struct {
	Kind Kind

	// ChannelKey is the token id for market data and UserChannelKey for
	// order/trade events. Empty for control frames and unscoped errors.
	ChannelKey string

	Control   string
	Market    *model.MarketEvent
	Order     *model.OrderEvent
	Trade     *model.TradeEvent
	ServerErr *ErrorFrame
}

// ErrorFrame is an error reported by the server.
type ErrorFrame struct {
	Channel Channel
	AssetID string
	Message string
}

// ProtocolError reports a frame that could not be decoded.
type ProtocolError struct {
	Data []byte // Offending frame, truncated
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v (frame %q)", e.Err, e.Data)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

const maxErrorData = 256

func protocolError(data []byte, err error) *ProtocolError {
	if len(data) > maxErrorData {
		data = data[:maxErrorData]
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return &ProtocolError{Data: cp, Err: err}
}
