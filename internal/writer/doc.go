// Package writer persists session loop state transitions.
//
// HistoryWriter is a connection.Observer: transitions are queued without
// blocking the Supervisor and written to the loop_state_history table in
// batches. The table is append-only.
package writer
