package config

import (
	"runtime"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultHost              = "127.0.0.1"
	DefaultUsername          = "riot"
	DefaultFirstEventTimeout = 5 * time.Second
	DefaultPingInterval      = 10 * time.Second
	DefaultSilenceTimeout    = 15 * time.Second
	DefaultWatchdogInterval  = 1 * time.Second
	DefaultBackoffMin        = 500 * time.Millisecond
	DefaultBackoffMax        = 5 * time.Second
	DefaultProbeWait         = 2000 * time.Millisecond
	DefaultProbePoll         = 50 * time.Millisecond
	DefaultWriteTimeout      = 5 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultRestTimeout       = 10 * time.Second
	DefaultLockfilePoll      = 2 * time.Second
	DefaultLogDir            = "logs"
	DefaultLogMaxSizeMB      = 50
	DefaultLogMaxBackups     = 5
	DefaultLogMaxAgeDays     = 14
	DefaultMetricsPath       = "/metrics"
	DefaultHistoryBatchSize  = 100
	DefaultHistoryFlush      = 5 * time.Second
	DefaultHistoryBuffer     = 1024
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
)

// Default returns the configuration written for a fresh install.
func Default() Config {
	cfg := Config{
		Debug:           true,
		EnableWebSocket: true,
		LockfilePaths:   DefaultLockfilePaths(runtime.GOOS),
	}
	cfg.applyDefaults()
	return cfg
}

// DefaultLockfilePaths returns the lockfile candidates for an OS.
func DefaultLockfilePaths(goos string) []string {
	if goos == "windows" {
		return []string{
			`%LOCALAPPDATA%\Riot Games\Riot Client\Config\lockfile`,
			`%APPDATA%\Riot Client\Config\lockfile`,
			`C:\Riot Games\Riot Client\Config\lockfile`,
		}
	}
	return []string{
		"/var/lib/riot/lockfile",
		"./lockfile",
	}
}

func (c *Config) applyDefaults() {
	if len(c.LockfilePaths) == 0 {
		c.LockfilePaths = DefaultLockfilePaths(runtime.GOOS)
	}

	// Session defaults
	s := &c.Session
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Username == "" {
		s.Username = DefaultUsername
	}
	if s.FirstEventTimeout == 0 {
		s.FirstEventTimeout = DefaultFirstEventTimeout
	}
	if s.PingInterval == 0 {
		s.PingInterval = DefaultPingInterval
	}
	if s.SilenceTimeout == 0 {
		s.SilenceTimeout = DefaultSilenceTimeout
	}
	if s.WatchdogInterval == 0 {
		s.WatchdogInterval = DefaultWatchdogInterval
	}
	if s.BackoffMin == 0 {
		s.BackoffMin = DefaultBackoffMin
	}
	if s.BackoffMax == 0 {
		s.BackoffMax = DefaultBackoffMax
	}
	if s.ProbeWait == 0 {
		s.ProbeWait = DefaultProbeWait
	}
	if s.ProbePoll == 0 {
		s.ProbePoll = DefaultProbePoll
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.HandshakeTimeout == 0 {
		s.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if s.RestTimeout == 0 {
		s.RestTimeout = DefaultRestTimeout
	}

	if c.Lockfile.PollInterval == 0 {
		c.Lockfile.PollInterval = DefaultLockfilePoll
	}

	// Log defaults
	if c.Log.Dir == "" {
		c.Log.Dir = DefaultLogDir
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = DefaultLogMaxAgeDays
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// History defaults
	if c.History.BatchSize == 0 {
		c.History.BatchSize = DefaultHistoryBatchSize
	}
	if c.History.FlushInterval == 0 {
		c.History.FlushInterval = DefaultHistoryFlush
	}
	if c.History.BufferSize == 0 {
		c.History.BufferSize = DefaultHistoryBuffer
	}
	applyDBDefaults(&c.History.Database)
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
