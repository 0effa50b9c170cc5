// Package model defines the data exchanged with the local client API.
//
// Conventions:
//   - Inbound frames are JSON arrays: [opcode, topic, payload].
//   - Presence private data is a base64-wrapped JSON object.
//   - Credentials are immutable once read from the lockfile.
package model
