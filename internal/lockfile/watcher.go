package lockfile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rickgao/lcuwatch/internal/model"
)

// settleDelay lets a lockfile write finish before it is re-read.
const settleDelay = 50 * time.Millisecond

// Change is emitted when the observed credential changes. Present is false
// once a previously found lockfile disappears.
type Change struct {
	Credential model.Credential
	Present    bool
}

// Watcher re-reads the lockfile candidates on a timer and on filesystem
// events in their directories.
type Watcher struct {
	candidates []string
	interval   time.Duration
	logger     *slog.Logger

	changes chan Change

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	fsw    *fsnotify.Watcher

	// Last observation, owned by run.
	present bool
	last    model.Credential
}

// NewWatcher creates a Watcher over candidates polled every interval.
func NewWatcher(candidates []string, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	clean := make([]string, len(candidates))
	for i, c := range candidates {
		clean[i] = filepath.Clean(c)
	}
	return &Watcher{
		candidates: clean,
		interval:   interval,
		logger:     logger,
		changes:    make(chan Change, 4),
	}
}

// Changes returns the change channel. It is closed after Stop.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Start checks the candidates once and begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("filesystem notifications unavailable, polling only", "error", err)
	} else {
		w.fsw = fsw
		w.watchDirs()
	}

	w.wg.Add(1)
	go w.run()

	w.logger.Info("lockfile watcher started",
		"candidates", len(w.candidates),
		"interval", w.interval,
	)

	return nil
}

// Stop shuts the watcher down and closes the change channel.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if w.fsw != nil {
		w.fsw.Close()
	}
	close(w.changes)
	w.logger.Info("lockfile watcher stopped")
	return nil
}

func (w *Watcher) watchDirs() {
	seen := make(map[string]struct{})
	for _, c := range w.candidates {
		dir := filepath.Dir(c)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}

		if _, err := os.Stat(dir); err != nil {
			w.logger.Debug("lockfile directory missing", "dir", dir)
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Debug("watch lockfile directory failed", "dir", dir, "error", err)
		}
	}
}

func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.fsw != nil {
		events, errs = w.fsw.Events, w.fsw.Errors
	}

	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	w.check()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.check()
		case <-settle.C:
			w.check()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if w.isCandidate(ev.Name) {
				w.logger.Debug("lockfile event", "path", ev.Name, "op", ev.Op.String())
				settle.Reset(settleDelay)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("filesystem watch error", "error", err)
		}
	}
}

func (w *Watcher) isCandidate(name string) bool {
	name = filepath.Clean(name)
	for _, c := range w.candidates {
		if c == name {
			return true
		}
	}
	return false
}

// check re-reads the candidates and emits a Change if the observation
// differs from the previous one.
func (w *Watcher) check() {
	cred, err := Read(w.candidates)
	if err != nil {
		if w.present {
			w.present = false
			w.last = model.Credential{}
			w.logger.Info("lockfile disappeared")
			w.emit(Change{Present: false})
		}
		return
	}

	if w.present && cred == w.last {
		return
	}

	w.present, w.last = true, cred
	w.logger.Info("lockfile found",
		"path", cred.Path,
		"name", cred.Name,
		"pid", cred.PID,
		"port", cred.Port,
		"protocol", cred.Protocol,
	)
	w.emit(Change{Credential: cred, Present: true})
}

func (w *Watcher) emit(c Change) {
	select {
	case w.changes <- c:
	case <-w.ctx.Done():
	}
}
