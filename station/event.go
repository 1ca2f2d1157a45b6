package station

import (
	"time"

	"gocheckin/authz"
	"gocheckin/indicator"
)

// EventKind says what happened in a cycle.
type EventKind int

const (
	// EventPollFailed is a link error while polling. "No card" is not reported.
	EventPollFailed EventKind = iota
	EventCardDetected
	// EventCredentialsUnavailable abandons the cycle without feedback.
	EventCredentialsUnavailable
	// EventFeedback means a known outcome was signalled.
	EventFeedback
	// EventUnhandled is a transport failure, server error or unknown code.
	// Nothing is signalled.
	EventUnhandled
)

var eventNames = [...]string{
	EventPollFailed:             "poll_failed",
	EventCardDetected:           "card_detected",
	EventCredentialsUnavailable: "credentials_unavailable",
	EventFeedback:               "feedback",
	EventUnhandled:              "unhandled",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event is reported to Deps.OnEvent. Fields not relevant to Kind are zero.
type Event struct {
	Kind    EventKind
	Time    time.Time
	Cycle   string
	Card    uint32
	Result  authz.Result
	Pattern indicator.Pattern
	Err     error
}
