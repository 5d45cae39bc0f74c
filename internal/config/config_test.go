package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/polymarket-realtime/internal/auth"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-streamer
realtime:
  url: wss://example.test/ws/
  auto_reconnect: false
  heartbeat_interval: 5s
subscriptions:
  markets:
    - 0xabc
    - will-it-rain
  token_ids: ["111", "222"]
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-streamer" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-streamer")
	}
	if cfg.Realtime.URL != "wss://example.test/ws/" {
		t.Errorf("Realtime.URL = %q", cfg.Realtime.URL)
	}
	if cfg.Realtime.AutoReconnect == nil || *cfg.Realtime.AutoReconnect {
		t.Errorf("Realtime.AutoReconnect = %v, want explicit false", cfg.Realtime.AutoReconnect)
	}
	if cfg.Realtime.HeartbeatInterval != 5*time.Second {
		t.Errorf("Realtime.HeartbeatInterval = %v, want 5s", cfg.Realtime.HeartbeatInterval)
	}
	if len(cfg.Subscriptions.Markets) != 2 || cfg.Subscriptions.TokenIDs[1] != "222" {
		t.Errorf("Subscriptions = %+v", cfg.Subscriptions)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Errorf("Load error = %v, want read config file error", err)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_POLY_KEY", "key-123456")
	t.Setenv("TEST_POLY_SECRET", "c2VjcmV0")
	t.Setenv("TEST_POLY_PASSPHRASE", "phrase")

	yaml := `
realtime:
  auto_reconnect: true
credentials:
  api_key: ${TEST_POLY_KEY}
  secret: ${TEST_POLY_SECRET}
  passphrase: ${TEST_POLY_PASSPHRASE}
subscriptions:
  user: true
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	creds := cfg.Credentials.Credentials()
	if creds.Key != "key-123456" || creds.Secret != "c2VjcmV0" || creds.Passphrase != "phrase" {
		t.Errorf("Credentials = %s", creds)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
realtime:
  auto_reconnect: true
subscriptions:
  token_ids: ["111"]
database:
  postgres:
    host: localhost
    name: test_db
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Realtime.URL != DefaultWSURL {
		t.Errorf("Realtime.URL = %q, want default %q", cfg.Realtime.URL, DefaultWSURL)
	}
	if cfg.Realtime.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("Realtime.HeartbeatInterval = %v, want default %v", cfg.Realtime.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want default %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Database.Postgres.ApplicationName != DefaultApplicationName {
		t.Errorf("Database.Postgres.ApplicationName = %q", cfg.Database.Postgres.ApplicationName)
	}
	if cfg.MarketPoll.Interval != DefaultPollInterval || cfg.MarketPoll.Concurrency != DefaultPollConcurrency {
		t.Errorf("MarketPoll = %+v, want defaults", cfg.MarketPoll)
	}
	if cfg.Writer.BatchSize != DefaultBatchSize {
		t.Errorf("Writer.BatchSize = %d, want default %d", cfg.Writer.BatchSize, DefaultBatchSize)
	}
	if cfg.Redis.Prefix != DefaultRedisPrefix {
		t.Errorf("Redis.Prefix = %q, want default %q", cfg.Redis.Prefix, DefaultRedisPrefix)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want default %d", cfg.Health.Port, DefaultHealthPort)
	}
}

func TestLoadAndValidate_AutoReconnectRequired(t *testing.T) {
	path := writeTempFile(t, `
subscriptions:
  token_ids: ["111"]
`)

	_, err := LoadAndValidate(path)
	if err == nil || !strings.Contains(err.Error(), "realtime.auto_reconnect is required") {
		t.Errorf("LoadAndValidate error = %v", err)
	}
}

func validConfig() StreamerConfig {
	auto := true
	cfg := StreamerConfig{
		Realtime:      RealtimeConfig{AutoReconnect: &auto},
		Subscriptions: SubscriptionsConfig{TokenIDs: []string{"111"}},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *StreamerConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *StreamerConfig) {},
			wantErr: "",
		},
		{
			name:    "bad log level",
			mutate:  func(c *StreamerConfig) { c.Log.Level = "verbose" },
			wantErr: `log.level must be one of debug, info, warn, error, got "verbose"`,
		},
		{
			name:    "bad log format",
			mutate:  func(c *StreamerConfig) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
		{
			name:    "missing auto_reconnect",
			mutate:  func(c *StreamerConfig) { c.Realtime.AutoReconnect = nil },
			wantErr: "realtime.auto_reconnect is required",
		},
		{
			name:    "http url",
			mutate:  func(c *StreamerConfig) { c.Realtime.URL = "https://example.test" },
			wantErr: `realtime.url must be a ws:// or wss:// URL, got "https://example.test"`,
		},
		{
			name: "base delay exceeds max",
			mutate: func(c *StreamerConfig) {
				c.Realtime.ReconnectBaseDelay = time.Minute
				c.Realtime.ReconnectMaxDelay = time.Second
			},
			wantErr: "realtime.reconnect_base_delay (1m0s) cannot exceed reconnect_max_delay (1s)",
		},
		{
			name:    "nothing to subscribe",
			mutate:  func(c *StreamerConfig) { c.Subscriptions = SubscriptionsConfig{} },
			wantErr: "subscriptions: at least one of markets, token_ids or user is required",
		},
		{
			name:    "user without credentials",
			mutate:  func(c *StreamerConfig) { c.Subscriptions.User = true },
			wantErr: "subscriptions.user requires credentials",
		},
		{
			name: "partial credentials",
			mutate: func(c *StreamerConfig) {
				c.Credentials = CredentialsConfig{APIKey: "key", Passphrase: "pass"}
			},
			wantErr: "credentials: api secret is required",
		},
		{
			name:    "market poll without markets",
			mutate:  func(c *StreamerConfig) { c.MarketPoll.Enabled = true },
			wantErr: "market_poll requires subscriptions.markets",
		},
		{
			name: "market poll with markets",
			mutate: func(c *StreamerConfig) {
				c.MarketPoll.Enabled = true
				c.Subscriptions.Markets = []string{"0xabc"}
			},
			wantErr: "",
		},
		{
			name: "missing postgres host",
			mutate: func(c *StreamerConfig) {
				c.Database.Enabled = true
			},
			wantErr: "database.postgres.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *StreamerConfig) {
				c.Database.Enabled = true
				c.Database.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "buffer below batch",
			mutate: func(c *StreamerConfig) {
				c.Database.Enabled = true
				c.Database.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5}
				c.Writer.BufferSize = 10
			},
			wantErr: "writer.buffer_size (10) cannot be below batch_size (500)",
		},
		{
			name:    "disabled database is not validated",
			mutate:  func(c *StreamerConfig) { c.Database.Postgres = DBConfig{} },
			wantErr: "",
		},
		{
			name:    "health port out of range",
			mutate:  func(c *StreamerConfig) { c.Health.Port = 70000 },
			wantErr: "health.port must be between 0 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestValidate_PartialCredentialsWrapsSentinel(t *testing.T) {
	cfg := validConfig()
	cfg.Credentials = CredentialsConfig{APIKey: "key", Secret: "c2VjcmV0"}
	if err := cfg.Validate(); !errors.Is(err, auth.ErrMissingPassphrase) {
		t.Errorf("Validate() error = %v, want ErrMissingPassphrase", err)
	}
}

func TestRealtimeConfig_ClientConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Realtime.MaxReconnectAttempts = 7
	cfg.Realtime.MailboxLimit = 50

	rc := cfg.Realtime.ClientConfig("agent/1")
	if rc.URL != DefaultWSURL || rc.UserAgent != "agent/1" {
		t.Errorf("URL/UserAgent = %q/%q", rc.URL, rc.UserAgent)
	}
	if rc.AutoReconnect == nil || !*rc.AutoReconnect {
		t.Error("AutoReconnect not carried over")
	}
	if rc.AutoReconnect == cfg.Realtime.AutoReconnect {
		t.Error("AutoReconnect pointer shared with config")
	}
	if rc.MaxReconnectAttempts != 7 || rc.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("client config = %+v", rc)
	}
	if rc.Router.MailboxLimit != 50 || rc.Router.MailboxSize == 0 {
		t.Errorf("Router = %+v", rc.Router)
	}
}

func TestLogConfig_SlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (LogConfig{Level: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
