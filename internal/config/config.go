package config

import "time"

// Config is the root configuration.
type Config struct {
	Debug              bool     `yaml:"debug"`
	EnableWebSocket    bool     `yaml:"enable_websocket"`
	WebSocketAutoStart bool     `yaml:"websocket_auto_start"`
	LockfilePaths      []string `yaml:"lockfile_paths"`

	Session  SessionConfig  `yaml:"session"`
	Lockfile LockfileConfig `yaml:"lockfile"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	History  HistoryConfig  `yaml:"history"`
}

// SessionConfig holds the WebSocket session tunables.
type SessionConfig struct {
	Host              string        `yaml:"host"`
	Username          string        `yaml:"username"`
	FirstEventTimeout time.Duration `yaml:"first_event_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	SilenceTimeout    time.Duration `yaml:"silence_timeout"`
	WatchdogInterval  time.Duration `yaml:"watchdog_interval"`
	BackoffMin        time.Duration `yaml:"backoff_min"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	ProbeWait         time.Duration `yaml:"probe_wait"`
	ProbePoll         time.Duration `yaml:"probe_poll_interval"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	RestTimeout       time.Duration `yaml:"rest_timeout"`
}

// LockfileConfig controls how the lockfile is watched.
type LockfileConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig holds the health/metrics server settings. Port 0 disables it.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// HistoryConfig controls the optional loop-state history store.
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Database      DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}
