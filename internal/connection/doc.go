// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns exactly one websocket transport at a time
//   - Sends a text PING every heartbeat interval and drops the link after 2x without activity
//   - Reconnects with bounded exponential backoff and jitter when AutoReconnect is set
//   - Replays every active subscription after each successful handshake
//   - Throttles outbound frames with a token bucket
//   - Forwards inbound frames, in order, to the Event Dispatcher
//
// State machine: Disconnected -> Connecting -> Connected <-> Reconnecting, and
// Closed (terminal) via Disconnect.
package connection
