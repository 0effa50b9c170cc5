package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/lcuwatch/internal/connection"
)

// HistoryWriter records loop state transitions in PostgreSQL.
type HistoryWriter struct {
	connection.NopObserver

	cfg       WriterConfig
	logger    *slog.Logger
	sessionID string

	input chan connection.LoopStateChange

	// Database
	db DB

	// Batching
	batch   []historyRow
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewHistoryWriter creates a HistoryWriter. Each writer gets a fresh session
// ID that groups the rows it writes.
func NewHistoryWriter(cfg WriterConfig, db DB, logger *slog.Logger) *HistoryWriter {
	if logger == nil {
		logger = slog.Default()
	}
	sessionID := uuid.NewString()
	return &HistoryWriter{
		cfg:       cfg,
		logger:    logger.With("history_session", sessionID),
		sessionID: sessionID,
		input:     make(chan connection.LoopStateChange, cfg.BufferSize),
		db:        db,
		batch:     make([]historyRow, 0, cfg.BatchSize),
	}
}

// SessionID returns the ID stamped on every row.
func (w *HistoryWriter) SessionID() string {
	return w.sessionID
}

// EnsureSchema creates the history table if it does not exist.
func (w *HistoryWriter) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create loop_state_history: %w", err)
	}
	return nil
}

// OnLoopState queues a transition. It never blocks; transitions are dropped
// when the queue is full.
func (w *HistoryWriter) OnLoopState(c connection.LoopStateChange) {
	select {
	case w.input <- c:
	default:
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
		w.logger.Warn("history queue full, dropping transition", "from", c.From, "to", c.To)
	}
}

// Start begins consuming transitions and writing to the database.
func (w *HistoryWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("history writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts the writer down and flushes queued transitions using ctx.
func (w *HistoryWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping history writer")

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
		w.logger.Warn("history writer stop timed out")
		return ctx.Err()
	}

	// Drain what is still queued.
drain:
	for {
		select {
		case c := <-w.input:
			w.add(c)
		default:
			break drain
		}
	}

	w.flush(ctx)
	w.logger.Info("history writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *HistoryWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *HistoryWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case c := <-w.input:
			if w.add(c) {
				w.flush(w.ctx)
			}
		}
	}
}

func (w *HistoryWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// add appends a transition to the batch and reports whether it is full.
func (w *HistoryWriter) add(c connection.LoopStateChange) bool {
	row := w.transform(c)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

func (w *HistoryWriter) transform(c connection.LoopStateChange) historyRow {
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}
	return historyRow{
		SessionID:  w.sessionID,
		CycleID:    c.CycleID,
		Port:       c.Port,
		FromState:  c.From,
		ToState:    c.To,
		Source:     c.Source,
		ObservedAt: at.UTC(),
	}
}

// flush writes the current batch. Failed rows are counted and discarded.
func (w *HistoryWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]historyRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed loop state history",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

func (w *HistoryWriter) batchInsert(ctx context.Context, rows []historyRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		var cycleID any
		if r.CycleID != "" {
			cycleID = r.CycleID
		}
		batch.Queue(insertSQL, r.SessionID, cycleID, r.Port, r.FromState, r.ToState, r.Source, r.ObservedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
