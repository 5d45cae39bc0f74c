package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/polymarket-realtime/internal/model"
)

// envelope extracts the discriminator. Both snake and camel case keys are accepted.
type envelope struct {
	EventType      string `json:"event_type"`
	EventTypeCamel string `json:"eventType"`
}

func (e envelope) kind() string {
	if e.EventType != "" {
		return e.EventType
	}
	return e.EventTypeCamel
}

type orderWire struct {
	ID           string   `json:"id"`
	OrderID      string   `json:"orderId"`
	Type         string   `json:"type"`
	Side         string   `json:"side"`
	Price        numeric  `json:"price"`
	OriginalSize numeric  `json:"original_size"`
	SizeMatched  numeric  `json:"size_matched"`
	AssetID      string   `json:"asset_id"`
	Market       string   `json:"market"`
	Outcome      string   `json:"outcome"`
	Timestamp    unixTime `json:"timestamp"`
}

type tradeWire struct {
	ID              string   `json:"id"`
	TradeID         string   `json:"tradeId"`
	Status          string   `json:"status"`
	Side            string   `json:"side"`
	Price           numeric  `json:"price"`
	Size            numeric  `json:"size"`
	Outcome         string   `json:"outcome"`
	TransactionHash string   `json:"transaction_hash"`
	AssetID         string   `json:"asset_id"`
	Market          string   `json:"market"`
	MatchTime       unixTime `json:"match_time"`
	Timestamp       unixTime `json:"timestamp"`
}

type levelWire struct {
	Price numeric `json:"price"`
	Size  numeric `json:"size"`
}

type changeWire struct {
	AssetID string  `json:"asset_id"`
	Price   numeric `json:"price"`
	Size    numeric `json:"size"`
	Side    string  `json:"side"`
	Hash    string  `json:"hash"`
	BestBid numeric `json:"best_bid"`
	BestAsk numeric `json:"best_ask"`
}

// marketWire covers book, price_change, last_trade_price and tick_size_change.
type marketWire struct {
	AssetID   string   `json:"asset_id"`
	Market    string   `json:"market"`
	Timestamp unixTime `json:"timestamp"`
	Hash      string   `json:"hash"`

	Bids  []levelWire `json:"bids"`
	Asks  []levelWire `json:"asks"`
	Buys  []levelWire `json:"buys"`
	Sells []levelWire `json:"sells"`

	PriceChanges []changeWire `json:"price_changes"`
	Changes      []changeWire `json:"changes"`

	Side        string  `json:"side"`
	Price       numeric `json:"price"`
	Size        numeric `json:"size"`
	OldTickSize numeric `json:"old_tick_size"`
	NewTickSize numeric `json:"new_tick_size"`
}

type errorWire struct {
	Channel string `json:"channel"`
	AssetID string `json:"asset_id"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Decode parses one transport frame into zero or more messages.
// A frame holding a JSON array yields one message per decodable element; the
// elements that fail are reported together in the returned error.
func Decode(data []byte) ([]Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, protocolError(data, ErrMalformed)
	}

	if bytes.EqualFold(trimmed, Pong) || bytes.EqualFold(trimmed, Ping) {
		return []Message{{Kind: KindControl, Control: strings.ToUpper(string(trimmed))}}, nil
	}

	switch trimmed[0] {
	case '{':
		return decodeObject(trimmed)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, protocolError(data, fmt.Errorf("%w: %v", ErrMalformed, err))
		}
		var msgs []Message
		var errs []error
		for _, item := range items {
			m, err := decodeObject(item)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			msgs = append(msgs, m...)
		}
		return msgs, errors.Join(errs...)
	}

	return nil, protocolError(data, ErrMalformed)
}

func decodeObject(obj []byte) ([]Message, error) {
	var env envelope
	if err := json.Unmarshal(obj, &env); err != nil {
		return nil, protocolError(obj, fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	et := env.kind()
	var (
		msgs []Message
		err  error
	)
	switch {
	case et == "order":
		msgs, err = decodeOrder(obj, "")
	case model.OrderEventType(strings.ToUpper(et)).Valid():
		msgs, err = decodeOrder(obj, model.OrderEventType(strings.ToUpper(et)))
	case et == "trade":
		msgs, err = decodeTrade(obj)
	case et == string(model.MarketBook),
		et == string(model.MarketPriceChange),
		et == string(model.MarketLastTradePrice),
		et == string(model.MarketTickSizeChange):
		msgs, err = decodeMarket(obj, model.MarketEventType(et))
	case et == "error":
		msgs, err = decodeError(obj)
	case et == "":
		err = fmt.Errorf("%w: event_type", ErrMissingField)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, et)
	}

	if err != nil {
		return nil, protocolError(obj, err)
	}
	return msgs, nil
}

func decodeOrder(obj []byte, et model.OrderEventType) ([]Message, error) {
	var w orderWire
	if err := json.Unmarshal(obj, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	id := w.ID
	if id == "" {
		id = w.OrderID
	}
	if id == "" {
		return nil, fmt.Errorf("%w: order id", ErrMissingField)
	}
	if et == "" {
		et = model.OrderEventType(strings.ToUpper(w.Type))
	}
	if !et.Valid() {
		return nil, fmt.Errorf("%w: order type %q", ErrUnknownEvent, w.Type)
	}

	ev := &model.OrderEvent{
		OrderID:      id,
		EventType:    et,
		Side:         model.Side(strings.ToUpper(w.Side)),
		Price:        w.Price.Decimal,
		MatchedSize:  w.SizeMatched.Decimal,
		OriginalSize: w.OriginalSize.Decimal,
		AssetID:      w.AssetID,
		Market:       w.Market,
		Outcome:      w.Outcome,
		Timestamp:    w.Timestamp.Time,
	}
	return []Message{{Kind: KindOrder, ChannelKey: UserChannelKey, Order: ev}}, nil
}

func decodeTrade(obj []byte) ([]Message, error) {
	var w tradeWire
	if err := json.Unmarshal(obj, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	id := w.ID
	if id == "" {
		id = w.TradeID
	}
	if id == "" {
		return nil, fmt.Errorf("%w: trade id", ErrMissingField)
	}

	ts := w.MatchTime.Time
	if ts.IsZero() {
		ts = w.Timestamp.Time
	}

	ev := &model.TradeEvent{
		TradeID:         id,
		Status:          strings.ToUpper(w.Status),
		Side:            model.Side(strings.ToUpper(w.Side)),
		Price:           w.Price.Decimal,
		Size:            w.Size.Decimal,
		Outcome:         w.Outcome,
		TransactionHash: w.TransactionHash,
		AssetID:         w.AssetID,
		Market:          w.Market,
		Timestamp:       ts,
	}
	return []Message{{Kind: KindTrade, ChannelKey: UserChannelKey, Trade: ev}}, nil
}

func decodeMarket(obj []byte, et model.MarketEventType) ([]Message, error) {
	var w marketWire
	if err := json.Unmarshal(obj, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	raw := json.RawMessage(append([]byte(nil), obj...))

	if et == model.MarketPriceChange {
		changes := w.PriceChanges
		if len(changes) == 0 {
			changes = w.Changes
		}
		if len(changes) == 0 {
			return nil, fmt.Errorf("%w: price_changes", ErrMissingField)
		}

		// One event per token, in frame order.
		msgs := make([]Message, 0, len(changes))
		for _, c := range changes {
			asset := c.AssetID
			if asset == "" {
				asset = w.AssetID
			}
			if asset == "" {
				return nil, fmt.Errorf("%w: asset_id", ErrMissingField)
			}
			ev := &model.MarketEvent{
				Type:      et,
				AssetID:   asset,
				Market:    w.Market,
				Timestamp: w.Timestamp.Time,
				Hash:      c.Hash,
				Side:      model.Side(strings.ToUpper(c.Side)),
				Price:     c.Price.Decimal,
				Size:      c.Size.Decimal,
				BestBid:   c.BestBid.Decimal,
				BestAsk:   c.BestAsk.Decimal,
				Raw:       raw,
			}
			msgs = append(msgs, Message{Kind: KindMarket, ChannelKey: asset, Market: ev})
		}
		return msgs, nil
	}

	if w.AssetID == "" {
		return nil, fmt.Errorf("%w: asset_id", ErrMissingField)
	}

	ev := &model.MarketEvent{
		Type:      et,
		AssetID:   w.AssetID,
		Market:    w.Market,
		Timestamp: w.Timestamp.Time,
		Raw:       raw,
	}

	switch et {
	case model.MarketBook:
		bids, asks := w.Bids, w.Asks
		if bids == nil {
			bids = w.Buys
		}
		if asks == nil {
			asks = w.Sells
		}
		ev.Bids = levels(bids)
		ev.Asks = levels(asks)
		ev.Hash = w.Hash
	case model.MarketLastTradePrice:
		ev.Side = model.Side(strings.ToUpper(w.Side))
		ev.Price = w.Price.Decimal
		ev.Size = w.Size.Decimal
	case model.MarketTickSizeChange:
		ev.OldTickSize = w.OldTickSize.Decimal
		ev.NewTickSize = w.NewTickSize.Decimal
	}

	return []Message{{Kind: KindMarket, ChannelKey: w.AssetID, Market: ev}}, nil
}

func levels(in []levelWire) []model.PriceLevel {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.PriceLevel, len(in))
	for i, l := range in {
		out[i] = model.PriceLevel{Price: l.Price.Decimal, Size: l.Size.Decimal}
	}
	return out
}

func decodeError(obj []byte) ([]Message, error) {
	var w errorWire
	if err := json.Unmarshal(obj, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	text := w.Message
	if text == "" {
		text = w.Error
	}

	ef := &ErrorFrame{
		Channel: Channel(strings.ToLower(w.Channel)),
		AssetID: w.AssetID,
		Message: text,
	}

	key := w.AssetID
	if ef.Channel == ChannelUser {
		key = UserChannelKey
	}
	return []Message{{Kind: KindError, ChannelKey: key, ServerErr: ef}}, nil
}
