package connection

import (
	"errors"
	"io"
	"time"

	"github.com/rickgao/lcuwatch/internal/config"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyRunning    = errors.New("session already running")
	ErrFirstEventTimeout = errors.New("no event within first event timeout")
	ErrConnectionEnded   = errors.New("connection ended")
	ErrSilence           = errors.New("silence persists after probe")
	ErrStopped           = errors.New("stop requested")
)

// DefaultOrigin is sent as the Origin header on the WebSocket upgrade.
const DefaultOrigin = "https://127.0.0.1"

// Config configures a Supervisor.
type Config struct {
	Host     string // Loopback host to dial (default 127.0.0.1)
	Username string // Basic auth user
	Origin   string // Origin header for the upgrade

	FirstEventTimeout time.Duration // Max wait for the first event after subscribing
	PingInterval      time.Duration // Pinger period
	SilenceTimeout    time.Duration // Silence that triggers a probe
	WatchdogInterval  time.Duration // Watchdog period

	BackoffMin    time.Duration // First reconnect delay
	BackoffMax    time.Duration // Reconnect delay cap
	BackoffJitter time.Duration // Uniform jitter added to each delay
	BackoffFloor  time.Duration // Lower bound of a delay after jitter

	ProbeWait time.Duration // Probe window
	ProbePoll time.Duration // Receive counter polling interval while probing

	WriteTimeout     time.Duration // Write deadline for frames
	HandshakeTimeout time.Duration // WebSocket upgrade timeout
	RestTimeout      time.Duration // REST resync timeout
	MaxMessageSize   int64         // Inbound frame size limit

	// Debug echoes every inbound frame to Echo.
	Debug bool
	Echo  io.Writer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "127.0.0.1",
		Username:          "riot",
		Origin:            DefaultOrigin,
		FirstEventTimeout: 5 * time.Second,
		PingInterval:      10 * time.Second,
		SilenceTimeout:    15 * time.Second,
		WatchdogInterval:  1 * time.Second,
		BackoffMin:        500 * time.Millisecond,
		BackoffMax:        5 * time.Second,
		BackoffJitter:     300 * time.Millisecond,
		BackoffFloor:      100 * time.Millisecond,
		ProbeWait:         2000 * time.Millisecond,
		ProbePoll:         50 * time.Millisecond,
		WriteTimeout:      5 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		RestTimeout:       10 * time.Second,
		MaxMessageSize:    64 << 20,
	}
}

// ConfigFrom builds a Config from the session settings of the config file.
// Tunables the file does not carry keep their defaults.
func ConfigFrom(s config.SessionConfig, debug bool, echo io.Writer) Config {
	cfg := DefaultConfig()
	cfg.Host = s.Host
	cfg.Username = s.Username
	cfg.FirstEventTimeout = s.FirstEventTimeout
	cfg.PingInterval = s.PingInterval
	cfg.SilenceTimeout = s.SilenceTimeout
	cfg.WatchdogInterval = s.WatchdogInterval
	cfg.BackoffMin = s.BackoffMin
	cfg.BackoffMax = s.BackoffMax
	cfg.ProbeWait = s.ProbeWait
	cfg.ProbePoll = s.ProbePoll
	cfg.WriteTimeout = s.WriteTimeout
	cfg.HandshakeTimeout = s.HandshakeTimeout
	cfg.RestTimeout = s.RestTimeout
	cfg.Debug = debug
	cfg.Echo = echo
	return cfg
}

// Phase is a step of one connection cycle. Phases advance strictly in
// declaration order within a cycle.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseResolving          Phase = "resolving"
	PhaseConnecting         Phase = "connecting"
	PhaseTLSHandshake       Phase = "tls_handshake"
	PhaseWSHandshake        Phase = "ws_handshake"
	PhaseSubscribed         Phase = "subscribed"
	PhaseAwaitingFirstEvent Phase = "awaiting_first_event"
	PhaseResyncing          Phase = "resyncing"
	PhaseStreaming          Phase = "streaming"
	PhaseEnded              Phase = "ended"
)

// LoopStateChange describes an update of the session loop state.
type LoopStateChange struct {
	From    string
	To      string
	Source  string // "rest" or "event"
	CycleID string
	Port    int
	At      time.Time
}

// Loop state sources.
const (
	SourceREST  = "rest"
	SourceEvent = "event"
)
