package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/lcuwatch/internal/api"
	"github.com/rickgao/lcuwatch/internal/auth"
	"github.com/rickgao/lcuwatch/internal/model"
)

// Supervisor keeps one event session alive against a local client API and
// tracks its session loop state.
type Supervisor struct {
	cfg      Config
	logger   *slog.Logger
	observer Observer
	backoff  *Backoff

	// Lifecycle, guarded by mu.
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Open connection of the current cycle, guarded by connMu.
	connMu sync.Mutex
	conn   *wsConn

	stopRequested atomic.Bool
	connected     atomic.Bool // first event seen on the current connection

	stateMu   sync.RWMutex
	loopState string
	phase     Phase
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithObserver registers an observer for lifecycle notifications.
func WithObserver(o Observer) Option {
	return func(s *Supervisor) {
		s.observer = o
	}
}

// WithRand replaces the jitter source. rand must return values in [0, 1).
func WithRand(rand func() float64) Option {
	return func(s *Supervisor) {
		s.backoff = NewBackoff(s.cfg.BackoffMin, s.cfg.BackoffMax, s.cfg.BackoffJitter, s.cfg.BackoffFloor, rand)
	}
}

// NewSupervisor creates an idle Supervisor.
func NewSupervisor(cfg Config, logger *slog.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Supervisor{
		cfg:       cfg,
		logger:    logger,
		observer:  NopObserver{},
		backoff:   NewBackoff(cfg.BackoffMin, cfg.BackoffMax, cfg.BackoffJitter, cfg.BackoffFloor, nil),
		loopState: model.UnknownLoopState,
		phase:     PhaseIdle,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start begins supervising the API published by cred. It returns false if a
// session is already running.
func (s *Supervisor) Start(cred model.Credential) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("session already running", "port", cred.Port)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.stopRequested.Store(false)
	s.connected.Store(false)
	s.backoff.Reset()

	s.stateMu.Lock()
	s.loopState = model.UnknownLoopState
	s.stateMu.Unlock()

	s.logger.Info("starting session", "port", cred.Port, "pid", cred.PID)

	go s.run(ctx, cred, s.done)
	return true
}

// Stop requests shutdown, closes the open connection and waits for every
// session goroutine to finish. It is idempotent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.stopRequested.Store(true)
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	s.logger.Info("stopping session")

	cancel()
	s.closeConn()
	<-done

	s.logger.Info("session stopped")
}

// Running reports whether a session is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IsConnected reports whether the current connection has delivered its
// first event and no stop has been requested.
func (s *Supervisor) IsConnected() bool {
	return s.connected.Load() && !s.stopRequested.Load()
}

// LoopState returns the last observed session loop state, or
// model.UnknownLoopState.
func (s *Supervisor) LoopState() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.loopState
}

// Phase returns the phase of the current cycle.
func (s *Supervisor) Phase() Phase {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.phase
}

// Backoff returns the current reconnect backoff without jitter.
func (s *Supervisor) Backoff() time.Duration {
	return s.backoff.Current()
}

// run is the supervision loop. It only returns once stop is requested.
func (s *Supervisor) run(ctx context.Context, cred model.Credential, done chan struct{}) {
	defer close(done)
	defer func() {
		s.connected.Store(false)
		s.setPhase(PhaseIdle)
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		if s.stopRequested.Load() {
			return
		}

		err := s.connectAndStream(ctx, cred)
		wasConnected := s.connected.Swap(false)
		s.closeConn()

		if s.stopRequested.Load() {
			if wasConnected {
				s.observer.OnDisconnected(ErrStopped)
			}
			return
		}

		s.logger.Error("session cycle failed", "error", err)
		s.observer.OnDisconnected(err)

		delay := s.backoff.Next()
		s.logger.Info("reconnecting", "delay", delay)
		s.observer.OnBackoff(delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		s.backoff.Advance()
	}
}

// connectAndStream runs one connection cycle. It always returns a non-nil
// error describing why the cycle ended.
func (s *Supervisor) connectAndStream(ctx context.Context, cred model.Credential) error {
	cycleID := uuid.NewString()
	logger := s.logger.With("cycle_id", cycleID, "port", cred.Port)
	addr := cred.Address(s.cfg.Host)
	authHeader := auth.BasicAuthHeader(s.cfg.Username, cred.Password)

	logger.Info("connecting", "url", "wss://"+addr)

	conn, err := dial(ctx, dialParams{
		addr:       addr,
		authHeader: authHeader,
		origin:     s.cfg.Origin,
		handshake:  s.cfg.HandshakeTimeout,
		readLimit:  s.cfg.MaxMessageSize,
		write:      s.cfg.WriteTimeout,
		onPhase:    s.setPhase,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := s.setConn(conn); err != nil {
		return err
	}

	c := &cycle{
		id:     cycleID,
		port:   cred.Port,
		s:      s,
		conn:   conn,
		logger: logger,
	}
	c.live.Reset()

	if err := conn.WriteText(model.SubscribeFrame()); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.setPhase(PhaseSubscribed)
	logger.Info("subscribed", "topic", model.EventTopic)

	s.setPhase(PhaseAwaitingFirstEvent)
	uri, err := c.awaitFirstEvent()
	if err != nil {
		return err
	}

	s.connected.Store(true)
	s.backoff.Reset()
	s.observer.OnConnected()
	logger.Info("connected: first event received", "uri", uri)

	s.setPhase(PhaseResyncing)
	c.resync(ctx, "https://"+addr, authHeader)

	if s.stopRequested.Load() {
		return ErrStopped
	}

	s.setPhase(PhaseStreaming)
	err = c.stream(ctx)
	s.setPhase(PhaseEnded)
	logger.Info("connection ended", "error", err)

	return fmt.Errorf("%w: %w", ErrConnectionEnded, err)
}

// setConn publishes conn so Stop can close it. If a stop raced the dial the
// connection is closed at once.
func (s *Supervisor) setConn(conn *wsConn) error {
	s.connMu.Lock()
	s.conn = conn
	stopped := s.stopRequested.Load()
	s.connMu.Unlock()

	if stopped {
		conn.Close()
		return ErrStopped
	}
	return nil
}

func (s *Supervisor) closeConn() {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (s *Supervisor) setPhase(p Phase) {
	s.stateMu.Lock()
	from := s.phase
	s.phase = p
	s.stateMu.Unlock()

	if from != p {
		s.logger.Debug("phase", "from", from, "to", p)
	}
}

// setLoopState records a parsed loop state and notifies observers on change.
func (s *Supervisor) setLoopState(c *cycle, state, source string) {
	s.stateMu.Lock()
	from := s.loopState
	s.loopState = state
	s.stateMu.Unlock()

	if from == state {
		return
	}

	c.logger.Info("update sessionLoopState", "from", from, "to", state, "source", source)
	s.observer.OnLoopState(LoopStateChange{
		From:    from,
		To:      state,
		Source:  source,
		CycleID: c.id,
		Port:    c.port,
		At:      time.Now(),
	})
}

// resync fetches the presences resource once and applies its loop state.
// Failures are logged and the cycle continues.
func (c *cycle) resync(ctx context.Context, baseURL, authHeader string) {
	client := api.NewClient(baseURL, authHeader,
		api.WithTimeout(c.s.cfg.RestTimeout),
		api.WithLogger(c.logger),
	)

	body, err := client.GetPresences(ctx)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn("resync failed", "status", apiErr.StatusCode, "error", err)
		} else {
			c.logger.Warn("resync failed", "error", err)
		}
		return
	}

	results, err := model.DecodePresences(body)
	if err != nil {
		c.logger.Warn("resync: malformed presences", "error", err)
		return
	}

	if state, ok := model.LastLoopState(results); ok {
		c.logger.Info("resynced sessionLoopState", "state", state)
		c.s.setLoopState(c, state, SourceREST)
	}
}
