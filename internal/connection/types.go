package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no heartbeat response)")
	ErrTimeout          = errors.New("operation timeout")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrHandshake        = errors.New("handshake failed")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
)

// Error is a transport-level failure.
type Error struct {
	Op  string // "dial", "read", "send", "ping"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a frame handed from the Manager to the dispatcher.
type RawMessage struct {
	Data       []byte
	Session    uint64 // Increments on every successful handshake
	ReceivedAt time.Time
}

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// EventType names a connection lifecycle event.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventReconnecting EventType = "reconnecting"
	EventError        EventType = "error"
)

// Event is emitted on state changes and transport errors.
type Event struct {
	Type    EventType
	Err     error         // error, disconnected
	Attempt int           // reconnecting
	Delay   time.Duration // reconnecting
	Session uint64        // connected
	At      time.Time
}

// ClientConfig configures a websocket transport.
type ClientConfig struct {
	URL              string        // e.g. wss://ws-subscriptions-clob.polymarket.com/ws/market
	UserAgent        string        // Sent on the handshake
	HandshakeTimeout time.Duration // Dialer handshake timeout
	WriteTimeout     time.Duration // Write deadline for sends
	ReadLimit        int64         // Max inbound frame size (0 = gorilla default)
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        4 << 20, // book snapshots for many tokens arrive as one frame
		BufferSize:       1024,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL                  string
	UserAgent            string
	AutoReconnect        bool
	HeartbeatInterval    time.Duration // Ping period; the link is lost after 2x without activity
	HandshakeTimeout     time.Duration // Bound on Connect and each reconnect dial
	WriteTimeout         time.Duration
	ReadLimit            int64
	ReconnectBaseWait    time.Duration
	ReconnectMaxWait     time.Duration
	ReconnectJitter      float64 // Fraction of the delay randomized, 0-1
	MaxReconnectAttempts int     // 0 = retry until Disconnect
	MessageBufferSize    int
	SendRate             float64 // Outbound frames per second (0 = unlimited)
	SendBurst            int
}

// DefaultManagerConfig returns sensible defaults. AutoReconnect is left false;
// callers must choose it explicitly.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		HeartbeatInterval: 10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
		ReadLimit:         4 << 20,
		ReconnectBaseWait: 500 * time.Millisecond,
		ReconnectMaxWait:  30 * time.Second,
		ReconnectJitter:   0.5,
		MessageBufferSize: 4096,
		SendRate:          20,
		SendBurst:         10,
	}
}

func (c ManagerConfig) clientConfig() ClientConfig {
	cc := DefaultClientConfig()
	cc.URL = c.URL
	cc.UserAgent = c.UserAgent
	if c.HandshakeTimeout > 0 {
		cc.HandshakeTimeout = c.HandshakeTimeout
	}
	if c.WriteTimeout > 0 {
		cc.WriteTimeout = c.WriteTimeout
	}
	if c.ReadLimit > 0 {
		cc.ReadLimit = c.ReadLimit
	}
	return cc
}
