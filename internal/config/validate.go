package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if len(c.LockfilePaths) == 0 {
		return errors.New("lockfile_paths must not be empty")
	}

	s := c.Session
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"session.first_event_timeout", s.FirstEventTimeout},
		{"session.ping_interval", s.PingInterval},
		{"session.silence_timeout", s.SilenceTimeout},
		{"session.watchdog_interval", s.WatchdogInterval},
		{"session.backoff_min", s.BackoffMin},
		{"session.backoff_max", s.BackoffMax},
		{"session.probe_wait", s.ProbeWait},
		{"session.probe_poll_interval", s.ProbePoll},
		{"session.write_timeout", s.WriteTimeout},
		{"session.handshake_timeout", s.HandshakeTimeout},
		{"session.rest_timeout", s.RestTimeout},
		{"lockfile.poll_interval", c.Lockfile.PollInterval},
	} {
		if d.v <= 0 {
			return fmt.Errorf("%s must be > 0, got %v", d.name, d.v)
		}
	}
	if s.BackoffMin > s.BackoffMax {
		return fmt.Errorf("session.backoff_min (%v) cannot exceed session.backoff_max (%v)", s.BackoffMin, s.BackoffMax)
	}
	if s.Host == "" {
		return errors.New("session.host is required")
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535, got %d", c.Metrics.Port)
	}

	if c.History.Enabled {
		if c.History.BatchSize < 1 {
			return errors.New("history.batch_size must be >= 1")
		}
		if c.History.BufferSize < 1 {
			return errors.New("history.buffer_size must be >= 1")
		}
		if err := c.History.Database.validate("history.database"); err != nil {
			return err
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
