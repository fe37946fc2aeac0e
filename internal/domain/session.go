package domain

import (
	"encoding/json"
	"strconv"
)

const (
	attrPendingDeleteTimestamp = "pendingDeleteTimestamp"
	attrPendingDeleteText      = "pendingDeleteText"
)

// SessionState is the per-session state round-tripped through the voice
// platform's session attribute bag. The zero value is Idle. A pending delete
// carries both the candidate's timestamp and its text, or neither.
type SessionState struct {
	PendingDeleteTimestamp int64
	PendingDeleteText      string
}

// HasPendingDelete reports whether a delete candidate awaits confirmation.
func (s SessionState) HasPendingDelete() bool {
	return s.PendingDeleteTimestamp != 0 && s.PendingDeleteText != ""
}

// WithPendingDelete returns the state with a delete candidate recorded.
func (s SessionState) WithPendingDelete(timestamp int64, text string) SessionState {
	s.PendingDeleteTimestamp = timestamp
	s.PendingDeleteText = text
	return s
}

// ClearPendingDelete returns the state back at Idle. Called unconditionally on
// confirm and cancel alike.
func (s SessionState) ClearPendingDelete() SessionState {
	s.PendingDeleteTimestamp = 0
	s.PendingDeleteText = ""
	return s
}

// SessionStateFromAttributes decodes the platform attribute bag. A bag that
// carries only one of the two pending fields is treated as Idle rather than
// half-pending.
func SessionStateFromAttributes(attrs map[string]any) SessionState {
	if len(attrs) == 0 {
		return SessionState{}
	}
	ts, tsOK := attrInt64(attrs, attrPendingDeleteTimestamp)
	text, textOK := attrs[attrPendingDeleteText].(string)
	if !tsOK || !textOK || ts == 0 || text == "" {
		return SessionState{}
	}
	return SessionState{PendingDeleteTimestamp: ts, PendingDeleteText: text}
}

// ToAttributes encodes the state for the response envelope. Idle encodes to an
// empty (non-nil) bag so a previous pending delete is dropped by the platform.
func (s SessionState) ToAttributes() map[string]any {
	attrs := map[string]any{}
	if s.HasPendingDelete() {
		attrs[attrPendingDeleteTimestamp] = s.PendingDeleteTimestamp
		attrs[attrPendingDeleteText] = s.PendingDeleteText
	}
	return attrs
}

// attrInt64 tolerates the numeric shapes a decoded JSON bag can hold.
func attrInt64(attrs map[string]any, key string) (int64, bool) {
	switch v := attrs[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
