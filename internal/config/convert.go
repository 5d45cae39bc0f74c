package config

import (
	"log/slog"
	"strings"

	"github.com/rickgao/polymarket-realtime/internal/auth"
	"github.com/rickgao/polymarket-realtime/internal/realtime"
	"github.com/rickgao/polymarket-realtime/internal/router"
)

// Credentials returns the credential triple.
func (c CredentialsConfig) Credentials() auth.Credentials {
	return auth.Credentials{
		Key:        c.APIKey,
		Secret:     c.Secret,
		Passphrase: c.Passphrase,
	}
}

// ClientConfig converts the realtime section into a realtime.Config.
// It must only be called on a validated config.
func (c RealtimeConfig) ClientConfig(userAgent string) realtime.Config {
	auto := *c.AutoReconnect
	rc := router.DefaultRouterConfig()
	if c.MailboxLimit > 0 {
		rc.MailboxLimit = c.MailboxLimit
	}
	return realtime.Config{
		URL:                  c.URL,
		UserAgent:            userAgent,
		AutoReconnect:        &auto,
		HeartbeatInterval:    c.HeartbeatInterval,
		HandshakeTimeout:     c.HandshakeTimeout,
		ReconnectBaseDelay:   c.ReconnectBaseDelay,
		ReconnectMaxDelay:    c.ReconnectMaxDelay,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		SendRate:             c.SendRate,
		Router:               rc,
	}
}

// SlogLevel maps log.level onto a slog.Level. Unknown values yield info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
