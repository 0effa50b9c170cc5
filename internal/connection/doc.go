// Package connection implements the session Supervisor.
//
// The Supervisor:
//   - Maintains one authenticated WSS connection to the local client API
//   - Subscribes to OnJsonApiEvent and waits for the first event
//   - Resyncs the session loop state over REST once per connection
//   - Runs a receiver, a pinger and a silence watchdog per connection
//   - Probes a silent link with a resubscribe before tearing it down
//   - Reconnects with jittered exponential backoff until stopped
package connection
