package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/lcuwatch/internal/connection"
)

// fakeDB records executed statements and batches.
type fakeDB struct {
	mu      sync.Mutex
	execs   []string
	batches [][]*pgx.QueuedQuery
	execErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b.QueuedQueries)
	return &fakeResults{err: f.execErr}
}

func (f *fakeDB) rows() []*pgx.QueuedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*pgx.QueuedQuery
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type fakeResults struct {
	err error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}
func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row { return nil }
func (r *fakeResults) Close() error { return nil }

func change(from, to string) connection.LoopStateChange {
	return connection.LoopStateChange{
		From:    from,
		To:      to,
		Source:  connection.SourceEvent,
		CycleID: "5f0c2a38-3b9e-4a53-9df1-3f8d7f7f2c11",
		Port:    51234,
		At:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("JST", 9*3600)),
	}
}

func TestHistoryWriter_Transform(t *testing.T) {
	w := NewHistoryWriter(DefaultWriterConfig(), &fakeDB{}, nil)

	row := w.transform(change("MENUS", "MATCHMAKING"))

	assert.Equal(t, w.SessionID(), row.SessionID)
	assert.Equal(t, "MENUS", row.FromState)
	assert.Equal(t, "MATCHMAKING", row.ToState)
	assert.Equal(t, connection.SourceEvent, row.Source)
	assert.Equal(t, 51234, row.Port)
	assert.Equal(t, time.UTC, row.ObservedAt.Location())
	assert.Equal(t, time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC), row.ObservedAt)
}

func TestHistoryWriter_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	w := NewHistoryWriter(DefaultWriterConfig(), db, nil)

	require.NoError(t, w.EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS loop_state_history")
}

func TestHistoryWriter_FlushOnBatchSize(t *testing.T) {
	db := &fakeDB{}
	cfg := WriterConfig{BatchSize: 2, FlushInterval: time.Hour, BufferSize: 10}
	w := NewHistoryWriter(cfg, db, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	w.OnLoopState(change("UNKNOWN", "MENUS"))
	w.OnLoopState(change("MENUS", "MATCHMAKING"))

	assert.Eventually(t, func() bool { return len(db.rows()) == 2 }, time.Second, 5*time.Millisecond)

	rows := db.rows()
	assert.Equal(t, w.SessionID(), rows[0].Arguments[0])
	assert.Equal(t, "MATCHMAKING", rows[1].Arguments[4])
	assert.Equal(t, int64(2), w.Stats().Inserts)
	assert.Equal(t, int64(1), w.Stats().Flushes)
}

func TestHistoryWriter_FlushOnInterval(t *testing.T) {
	db := &fakeDB{}
	cfg := WriterConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond, BufferSize: 10}
	w := NewHistoryWriter(cfg, db, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	w.OnLoopState(change("MENUS", "INGAME"))

	assert.Eventually(t, func() bool { return len(db.rows()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHistoryWriter_StopFlushesQueued(t *testing.T) {
	db := &fakeDB{}
	cfg := WriterConfig{BatchSize: 100, FlushInterval: time.Hour, BufferSize: 10}
	w := NewHistoryWriter(cfg, db, nil)

	// Not started: transitions stay queued until Stop drains them.
	w.OnLoopState(change("UNKNOWN", "MENUS"))
	w.OnLoopState(change("MENUS", "INGAME"))

	require.NoError(t, w.Stop(context.Background()))
	assert.Len(t, db.rows(), 2)
}

func TestHistoryWriter_DropsWhenFull(t *testing.T) {
	db := &fakeDB{}
	cfg := WriterConfig{BatchSize: 100, FlushInterval: time.Hour, BufferSize: 1}
	w := NewHistoryWriter(cfg, db, nil)

	w.OnLoopState(change("UNKNOWN", "MENUS"))
	w.OnLoopState(change("MENUS", "INGAME"))
	w.OnLoopState(change("INGAME", "MENUS"))

	assert.Equal(t, int64(2), w.Stats().Dropped)
}

func TestHistoryWriter_InsertError(t *testing.T) {
	db := &fakeDB{execErr: errors.New("connection refused")}
	cfg := WriterConfig{BatchSize: 1, FlushInterval: time.Hour, BufferSize: 10}
	w := NewHistoryWriter(cfg, db, nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	w.OnLoopState(change("UNKNOWN", "MENUS"))

	assert.Eventually(t, func() bool { return w.Stats().Errors == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), w.Stats().Inserts)
}
