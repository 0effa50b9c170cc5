package model

import (
	"encoding/json"
	"errors"

	"github.com/rickgao/lcuwatch/internal/auth"
)

// ErrNotEvent is returned by ParseEvent for frames that are not OnJsonApiEvent envelopes.
var ErrNotEvent = errors.New("not an OnJsonApiEvent frame")

// PrivateResult is the outcome of decoding one presences[].private string.
type PrivateResult struct {
	Raw          []byte         // base64-decoded bytes (nil if base64 failed)
	Decoded      map[string]any // nil unless Raw is a JSON object
	LoopState    string
	HasLoopState bool
	Err          error // base64 or JSON failure
}

// ParseEvent parses a frame as [opcode, "OnJsonApiEvent", {uri, data}].
func ParseEvent(frame []byte) (Event, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(frame, &arr); err != nil {
		return Event{}, err
	}
	if len(arr) < 3 {
		return Event{}, ErrNotEvent
	}

	var topic string
	if err := json.Unmarshal(arr[1], &topic); err != nil || topic != EventTopic {
		return Event{}, ErrNotEvent
	}

	var ev Event
	if err := json.Unmarshal(arr[2], &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// DecodePresences walks every presences[].private string in body, which may be
// the REST response or an event's data object. Entries whose private field is
// absent or not a string are skipped. A malformed body returns an error;
// malformed entries are reported per result.
func DecodePresences(body []byte) ([]PrivateResult, error) {
	var list PresenceList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, err
	}

	var results []PrivateResult
	for _, p := range list.Presences {
		var encoded string
		if len(p.Private) == 0 || p.Private[0] != '"' || json.Unmarshal(p.Private, &encoded) != nil {
			continue
		}
		results = append(results, DecodePrivate(encoded))
	}
	return results, nil
}

// DecodePrivate base64-decodes and JSON-parses one private presence blob.
func DecodePrivate(encoded string) PrivateResult {
	raw, err := auth.Decode(encoded)
	if err != nil {
		return PrivateResult{Err: err}
	}

	res := PrivateResult{Raw: raw}
	if err := json.Unmarshal(raw, &res.Decoded); err != nil {
		res.Decoded = nil
		res.Err = err
		return res
	}

	if s, ok := res.Decoded["sessionLoopState"].(string); ok {
		res.LoopState = s
		res.HasLoopState = true
	}
	return res
}

// LastLoopState returns the loop state of the last result that carries one.
func LastLoopState(results []PrivateResult) (string, bool) {
	state, found := "", false
	for _, r := range results {
		if r.HasLoopState {
			state, found = r.LoopState, true
		}
	}
	return state, found
}
