package model

import (
	"encoding/json"
	"strconv"
)

// Wire protocol constants.
const (
	OpSubscribe  = 5
	EventTopic   = "OnJsonApiEvent"
	PresencesURI = "/chat/v4/presences"

	// UnknownLoopState is reported until a presence carrying a loop state is seen.
	UnknownLoopState = "UNKNOWN"
)

// Credential identifies one running local client API, as published in its lockfile.
type Credential struct {
	Name     string // Process name (e.g., "Riot Client")
	PID      int    // Process ID
	Port     int    // Loopback HTTPS/WSS port
	Password string // Basic auth password
	Protocol string // Advertised scheme, normally "https"
	Path     string // Lockfile the credential was read from
}

// Address returns host:port for the credential on the given host.
func (c Credential) Address(host string) string {
	return host + ":" + strconv.Itoa(c.Port)
}

// Event is the payload of an OnJsonApiEvent frame.
type Event struct {
	URI       string          `json:"uri"`
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// PresenceList is the body shared by the presences REST resource and its events.
type PresenceList struct {
	Presences []Presence `json:"presences"`
}

// Presence is one entry of a PresenceList. Private is kept raw because it is
// only meaningful when it is a JSON string.
type Presence struct {
	PUUID   string          `json:"puuid"`
	Product string          `json:"product"`
	State   string          `json:"state"`
	Private json.RawMessage `json:"private"`
}

// SubscribeFrame returns the text frame that subscribes to EventTopic.
func SubscribeFrame() []byte {
	b, _ := json.Marshal([]any{OpSubscribe, EventTopic})
	return b
}
