// Package frame encodes subscription frames and decodes inbound frames for the
// Polymarket CLOB websocket.
//
// Outbound frames:
//   - {"type":"market","operation":"subscribe","assets_ids":[...],"initial_dump":true}
//   - {"type":"user","operation":"subscribe","markets":[...],"auth":{"apiKey","secret","passphrase"}}
//   - unsubscribe frames share the shape and never carry auth
//
// Inbound frames are a JSON object or array of objects keyed by event_type:
// book, price_change, last_trade_price, tick_size_change, order, trade, error.
// The text frames PING and PONG are heartbeat control frames.
//
// The codec is stateless and safe for concurrent use.
package frame
