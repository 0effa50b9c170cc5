package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/lcuwatch/internal/model"
)

// cycle is the state owned by one connection attempt.
type cycle struct {
	id     string
	port   int
	s      *Supervisor
	conn   *wsConn
	live   Liveness
	logger *slog.Logger
}

// awaitFirstEvent reads until an OnJsonApiEvent envelope arrives or
// FirstEventTimeout passes. Every other frame is logged and skipped. It
// returns the event URI.
func (c *cycle) awaitFirstEvent() (string, error) {
	c.conn.SetReadDeadline(time.Now().Add(c.s.cfg.FirstEventTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		data, err := c.conn.ReadFrame()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return "", ErrFirstEventTimeout
			}
			return "", fmt.Errorf("await first event: %w", err)
		}

		c.record(data)

		ev, err := model.ParseEvent(data)
		if err != nil {
			c.logger.Debug("skipping frame before first event", "error", err)
			continue
		}
		return ev.URI, nil
	}
}

// stream runs the receiver, pinger and watchdog until one of them exits.
// Whichever loop exits first tears the socket down so the others follow.
func (c *cycle) stream(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.receive() })
	g.Go(func() error { return c.ping(gctx) })
	g.Go(func() error { return c.watch(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		if !c.s.stopRequested.Load() {
			c.conn.Close()
		}
		return nil
	})

	return g.Wait()
}

// receive reads frames until the socket fails.
func (c *cycle) receive() error {
	for {
		data, err := c.conn.ReadFrame()
		if err != nil {
			if c.s.stopRequested.Load() {
				return ErrStopped
			}
			return fmt.Errorf("read: %w", err)
		}

		c.record(data)
		c.handleFrame(data)
	}
}

// record counts an inbound frame and forwards it to the log and, in debug
// mode, to Echo.
func (c *cycle) record(data []byte) {
	c.live.MarkReceived()
	c.s.observer.OnMessage()
	c.logger.Info("message", "raw", string(data))
	if c.s.cfg.Debug && c.s.cfg.Echo != nil {
		fmt.Fprintln(c.s.cfg.Echo, string(data))
	}
}

// handleFrame applies presence updates carried by an event frame. Anything
// else is ignored.
func (c *cycle) handleFrame(data []byte) {
	ev, err := model.ParseEvent(data)
	if err != nil || ev.URI != model.PresencesURI {
		return
	}

	results, err := model.DecodePresences(ev.Data)
	if err != nil {
		c.logger.Debug("presence event without presences", "error", err)
		return
	}

	for _, r := range results {
		switch {
		case r.Raw == nil:
			c.logger.Debug("presence.private: not base64", "error", r.Err)
			continue
		case r.Err != nil:
			c.logger.Info("presence.private.decoded_raw", "raw", string(r.Raw))
			continue
		}

		msg, key, value := presenceLog(r)
		c.logger.Info(msg, key, value)

		if r.HasLoopState {
			c.s.setLoopState(c, r.LoopState, SourceEvent)
		}
	}
}

// presenceLog picks the log line for a decoded private blob: the indented
// JSON, or the raw bytes when it cannot be re-encoded.
func presenceLog(r model.PrivateResult) (msg, key, value string) {
	pretty, err := json.MarshalIndent(r.Decoded, "", "  ")
	if err != nil {
		return "presence.private.decoded_raw", "raw", string(r.Raw)
	}
	return "presence.private.decoded", "json", string(pretty)
}

// ping sends a ping every PingInterval while the link is not silent.
func (c *cycle) ping(ctx context.Context) error {
	ticker := time.NewTicker(c.s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if c.s.stopRequested.Load() {
			return ErrStopped
		}
		if c.checkSilence(ctx, "pinger") {
			return ErrSilence
		}

		if err := c.conn.WritePing(); err != nil {
			c.logger.Warn("ping failed", "error", err)
			return fmt.Errorf("ping: %w", err)
		}
	}
}

// watch checks for silence every WatchdogInterval. It never writes except
// through a probe.
func (c *cycle) watch(ctx context.Context) error {
	ticker := time.NewTicker(c.s.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if c.s.stopRequested.Load() {
			return ErrStopped
		}
		if c.checkSilence(ctx, "watchdog") {
			return ErrSilence
		}
	}
}

// checkSilence probes the link once it has been silent for SilenceTimeout.
// It reports true when the probe saw no traffic; the caller then exits and
// stream closes the socket.
func (c *cycle) checkSilence(ctx context.Context, who string) bool {
	silence := c.live.Silence()
	if silence <= c.s.cfg.SilenceTimeout {
		return false
	}

	c.logger.Warn("silence detected, probing", "by", who, "silence", silence)

	observed, active := c.live.Probe(ctx, c.s.cfg.ProbeWait, c.s.cfg.ProbePoll, func() error {
		if err := c.conn.WriteText(model.SubscribeFrame()); err != nil {
			c.logger.Warn("probe: resubscribe failed", "error", err)
			return err
		}
		c.logger.Info("probe: resubscribed")
		return nil
	})
	if active {
		c.s.observer.OnProbe(observed)
	}

	if observed {
		c.logger.Info("probe: event received", "by", who)
		return false
	}
	if ctx.Err() != nil || c.s.stopRequested.Load() {
		return false
	}

	c.logger.Warn("silence persists after probe, closing to reconnect", "by", who)
	return true
}
