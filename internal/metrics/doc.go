// Package metrics exposes Supervisor activity as Prometheus metrics.
//
// Metrics:
//   - lcuwatch_connected: 1 while the session has seen its first event
//   - lcuwatch_messages_received_total
//   - lcuwatch_reconnects_total and lcuwatch_backoff_seconds
//   - lcuwatch_probes_total{result}
//   - lcuwatch_cycle_failures_total{reason}
//   - lcuwatch_loop_state{state}: 1 for the current session loop state
package metrics
