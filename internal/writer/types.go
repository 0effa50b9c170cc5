package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the writer uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batching configuration.
type WriterConfig struct {
	BatchSize     int           // Rows per insert batch
	FlushInterval time.Duration // Max time a row waits in the batch
	BufferSize    int           // Queued transitions before new ones are dropped
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		BufferSize:    1024,
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
	Dropped int64
}

// historyRow is one loop_state_history row.
type historyRow struct {
	SessionID  string
	CycleID    string
	Port       int
	FromState  string
	ToState    string
	Source     string
	ObservedAt time.Time
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS loop_state_history (
	id          BIGSERIAL PRIMARY KEY,
	session_id  UUID        NOT NULL,
	cycle_id    UUID,
	port        INTEGER     NOT NULL,
	from_state  TEXT        NOT NULL,
	to_state    TEXT        NOT NULL,
	source      TEXT        NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL
)`

const insertSQL = `
	INSERT INTO loop_state_history (session_id, cycle_id, port, from_state, to_state, source, observed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`
