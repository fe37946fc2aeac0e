// Package alexa declares the subset of the Alexa custom-skill request and
// response envelopes this skill consumes.
package alexa

import "strings"

// Request types delivered by the platform.
const (
	RequestTypeLaunch       = "LaunchRequest"
	RequestTypeIntent       = "IntentRequest"
	RequestTypeSessionEnded = "SessionEndedRequest"
)

// Intent names recognized by the skill's interaction model, plus the built-in
// Amazon intents routed by the dispatcher.
const (
	IntentLogActivity   = "LogActivityIntent"
	IntentQueryActivity = "QueryActivityIntent"
	IntentDeleteTask    = "DeleteTaskIntent"
	IntentClearAllTasks = "ClearAllTasksIntent"
	IntentYes           = "AMAZON.YesIntent"
	IntentNo            = "AMAZON.NoIntent"
	IntentHelp          = "AMAZON.HelpIntent"
	IntentCancel        = "AMAZON.CancelIntent"
	IntentStop          = "AMAZON.StopIntent"
)

// RequestEnvelope is the top-level request payload.
type RequestEnvelope struct {
	Version string  `json:"version"`
	Session Session `json:"session"`
	Context Context `json:"context"`
	Request Request `json:"request"`
}

// Session carries the per-interaction attribute bag and the user identity.
type Session struct {
	New        bool           `json:"new"`
	SessionID  string         `json:"sessionId"`
	Attributes map[string]any `json:"attributes"`
	User       User           `json:"user"`
}

type User struct {
	UserID string `json:"userId"`
}

type Context struct {
	System System `json:"System"`
}

// System holds the device metadata used for auxiliary settings lookups.
type System struct {
	Device         Device `json:"device"`
	APIEndpoint    string `json:"apiEndpoint"`
	APIAccessToken string `json:"apiAccessToken"`
	User           User   `json:"user"`
}

type Device struct {
	DeviceID string `json:"deviceId"`
}

type Request struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Locale    string `json:"locale"`
	Intent    Intent `json:"intent"`
	Reason    string `json:"reason,omitempty"`
}

type Intent struct {
	Name  string          `json:"name"`
	Slots map[string]Slot `json:"slots"`
}

type Slot struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RequestType returns the envelope's request type.
func (e RequestEnvelope) RequestType() string {
	return e.Request.Type
}

// IntentName returns the intent name, or "" for non-intent requests.
func (e RequestEnvelope) IntentName() string {
	if e.Request.Type != RequestTypeIntent {
		return ""
	}
	return e.Request.Intent.Name
}

// SlotValue returns the trimmed value of a named slot, or "" when the slot is
// absent or unfilled.
func (e RequestEnvelope) SlotValue(name string) string {
	slot, ok := e.Request.Intent.Slots[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(slot.Value)
}

// UserID returns the stable end-user identifier, preferring the session copy.
func (e RequestEnvelope) UserID() string {
	if e.Session.User.UserID != "" {
		return e.Session.User.UserID
	}
	return e.Context.System.User.UserID
}
