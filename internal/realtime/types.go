package realtime

import (
	"errors"
	"time"

	"github.com/rickgao/polymarket-realtime/internal/connection"
	"github.com/rickgao/polymarket-realtime/internal/router"
	"github.com/rickgao/polymarket-realtime/internal/subscription"
)

// DefaultURL is the CLOB websocket endpoint.
const DefaultURL = "wss://ws-subscriptions-clob.polymarket.com/ws/"

// Errors
var (
	ErrAutoReconnectUnset = errors.New("realtime: AutoReconnect must be set explicitly")
	ErrClosed             = errors.New("realtime: client is closed")
)

// Config configures a Client. Zero durations take the connection defaults.
// AutoReconnect has no default and must be set.
type Config struct {
	URL           string
	UserAgent     string
	AutoReconnect *bool

	HeartbeatInterval    time.Duration
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectJitter      float64
	MaxReconnectAttempts int

	// Outbound frames per second; 0 keeps the connection default.
	SendRate  float64
	SendBurst int

	Router router.RouterConfig
}

// Bool returns a pointer to v, for Config.AutoReconnect.
func Bool(v bool) *bool {
	return &v
}

// managerConfig maps c onto the Connection Manager's configuration.
func (c Config) managerConfig() connection.ManagerConfig {
	mc := connection.DefaultManagerConfig()
	mc.URL = c.URL
	if mc.URL == "" {
		mc.URL = DefaultURL
	}
	mc.UserAgent = c.UserAgent
	mc.AutoReconnect = *c.AutoReconnect

	if c.HeartbeatInterval > 0 {
		mc.HeartbeatInterval = c.HeartbeatInterval
	}
	if c.HandshakeTimeout > 0 {
		mc.HandshakeTimeout = c.HandshakeTimeout
	}
	if c.WriteTimeout > 0 {
		mc.WriteTimeout = c.WriteTimeout
	}
	if c.ReconnectBaseDelay > 0 {
		mc.ReconnectBaseWait = c.ReconnectBaseDelay
	}
	if c.ReconnectMaxDelay > 0 {
		mc.ReconnectMaxWait = c.ReconnectMaxDelay
	}
	if c.ReconnectJitter > 0 {
		mc.ReconnectJitter = c.ReconnectJitter
	}
	if c.MaxReconnectAttempts > 0 {
		mc.MaxReconnectAttempts = c.MaxReconnectAttempts
	}
	if c.SendRate > 0 {
		mc.SendRate = c.SendRate
	}
	if c.SendBurst > 0 {
		mc.SendBurst = c.SendBurst
	}
	return mc
}

// Stats is a point-in-time view of the client.
type Stats struct {
	State         connection.State
	Session       uint64
	Reconnects    int64
	FramesSent    int64
	SendErrors    int64
	LastActivity  time.Time
	Subscriptions int
	Router        router.RouterStats
}

// SubscriptionInfo describes an active subscription without its secrets.
type SubscriptionInfo struct {
	Handle      subscription.Handle `json:"handle"`
	Kind        string              `json:"kind"`
	TokenIDs    []string            `json:"token_ids,omitempty"`
	Markets     []string            `json:"markets,omitempty"`
	Credentials string              `json:"credentials,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}
