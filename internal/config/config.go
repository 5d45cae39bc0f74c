package config

import "time"

// StreamerConfig is the root configuration for a streamer instance.
type StreamerConfig struct {
	Instance      InstanceConfig      `yaml:"instance"`
	Log           LogConfig           `yaml:"log"`
	Realtime      RealtimeConfig      `yaml:"realtime"`
	API           APIConfig           `yaml:"api"`
	Credentials   CredentialsConfig   `yaml:"credentials"`
	Subscriptions SubscriptionsConfig `yaml:"subscriptions"`
	MarketPoll    MarketPollConfig    `yaml:"market_poll"`
	Database      DatabaseConfig      `yaml:"database"`
	Writer        WriterConfig        `yaml:"writer"`
	Redis         RedisConfig         `yaml:"redis"`
	Health        HealthConfig        `yaml:"health"`
}

// InstanceConfig identifies this streamer.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// LogConfig selects the slog handler and an optional rotating file.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // Empty = stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// RealtimeConfig holds websocket connection settings.
type RealtimeConfig struct {
	URL string `yaml:"url"`

	// AutoReconnect has no default; the file must say true or false.
	AutoReconnect *bool `yaml:"auto_reconnect"`

	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"` // 0 = unlimited
	SendRate             float64       `yaml:"send_rate"`
	MailboxLimit         int           `yaml:"mailbox_limit"`
}

// APIConfig holds CLOB REST settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	GammaURL   string        `yaml:"gamma_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// CredentialsConfig is the L2 API credential triple plus the funder address.
// Values usually come from ${VAR} placeholders.
type CredentialsConfig struct {
	APIKey     string `yaml:"api_key"`
	Secret     string `yaml:"secret"`
	Passphrase string `yaml:"passphrase"`
	Address    string `yaml:"address"`
}

// Configured reports whether any credential field is set.
func (c CredentialsConfig) Configured() bool {
	return c.APIKey != "" || c.Secret != "" || c.Passphrase != ""
}

// SubscriptionsConfig lists what the streamer subscribes to at startup.
type SubscriptionsConfig struct {
	Markets  []string `yaml:"markets"`   // Condition ids or slugs, resolved to token ids
	TokenIDs []string `yaml:"token_ids"` // Subscribed as-is
	User     bool     `yaml:"user"`      // Requires credentials
}

// MarketPollConfig holds the market status poller settings.
type MarketPollConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the optional event journal database.
type DatabaseConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Name            string `yaml:"name"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`
	ApplicationName string `yaml:"application_name"`
	MaxConns        int    `yaml:"max_conns"`
	MinConns        int    `yaml:"min_conns"`
}

// WriterConfig holds journal batch settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// RedisConfig holds the optional pub/sub publisher.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// HealthConfig holds the health server settings. Port 0 disables it.
type HealthConfig struct {
	Port int `yaml:"port"`
}
