package config

import "time"

// Config holds dashboard engine configuration values.
type Config struct {
	// ServerURL is the base URL of the mediaplayer backend, without a
	// trailing slash.
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`
	// ReconnectDelay is the fixed pause between stream reconnection
	// attempts. There is no backoff growth.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	// DedupWindow is how long an event's ack identifier stays in the
	// duplicate-delivery window. Must comfortably exceed the server's
	// redelivery horizon.
	DedupWindow time.Duration `mapstructure:"dedup_window" yaml:"dedup_window"`
	// RenameNonceTTL bounds how long a locally issued rename suppresses
	// its own echoed confirmation.
	RenameNonceTTL time.Duration `mapstructure:"rename_nonce_ttl" yaml:"rename_nonce_ttl"`
	// LogRetention caps the activity log length. Zero keeps everything.
	LogRetention int    `mapstructure:"log_retention" yaml:"log_retention"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`

	// Addr is only used by the simulator server.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:      "http://localhost:7777",
		ReconnectDelay: 1500 * time.Millisecond,
		DedupWindow:    5 * time.Minute,
		RenameNonceTTL: time.Minute,
		LogRetention:   1000,
		LogLevel:       "info",
		Addr:           ":7777",
	}
}
