// Package api provides the REST client for the local client API.
//
// The API listens on https://127.0.0.1:<port> with a self-signed certificate and
// HTTP Basic authentication. Each call uses a short-lived connection; the client
// is only used to bootstrap state once per WebSocket connection.
//
// Endpoints:
//   - GET /chat/v4/presences
package api
