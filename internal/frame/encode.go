package frame

import (
	"encoding/json"
	"fmt"

	"github.com/rickgao/polymarket-realtime/internal/auth"
)

// Filter selects what a subscription frame covers.
type Filter struct {
	AssetIDs []string // Token ids (market channel)
	Markets  []string // Condition ids (optional on the user channel)
}

// EncodeSubscribe builds a subscribe frame. Credentials are required on the user
// channel and rejected on the market channel.
func EncodeSubscribe(ch Channel, f Filter, creds *auth.Credentials) ([]byte, error) {
	req := SubscriptionRequest{
		Type:      ch,
		Operation: OpSubscribe,
		AssetsIDs: f.AssetIDs,
		Markets:   f.Markets,
	}

	switch ch {
	case ChannelMarket:
		if len(f.AssetIDs) == 0 {
			return nil, ErrEmptyFilter
		}
		if creds != nil {
			return nil, fmt.Errorf("%w: credentials on market channel", ErrInvalidFilter)
		}
		dump := true
		req.InitialDump = &dump
	case ChannelUser:
		if creds == nil {
			return nil, fmt.Errorf("%w: user channel requires credentials", ErrInvalidFilter)
		}
		if err := creds.Validate(); err != nil {
			return nil, err
		}
		req.Auth = &AuthPayload{
			APIKey:     creds.Key,
			Secret:     creds.Secret,
			Passphrase: creds.Passphrase,
		}
	default:
		return nil, fmt.Errorf("%w: channel %q", ErrInvalidFilter, ch)
	}

	return json.Marshal(req)
}

// EncodeUnsubscribe builds an unsubscribe frame. It never carries credentials.
func EncodeUnsubscribe(ch Channel, f Filter) ([]byte, error) {
	switch ch {
	case ChannelMarket:
		if len(f.AssetIDs) == 0 {
			return nil, ErrEmptyFilter
		}
	case ChannelUser:
	default:
		return nil, fmt.Errorf("%w: channel %q", ErrInvalidFilter, ch)
	}

	return json.Marshal(SubscriptionRequest{
		Type:      ch,
		Operation: OpUnsubscribe,
		AssetsIDs: f.AssetIDs,
		Markets:   f.Markets,
	})
}

// Ping is the text heartbeat the server answers with Pong.
var (
	Ping = []byte("PING")
	Pong = []byte("PONG")
)
