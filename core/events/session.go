package events

import "time"

const (
	// KindSessionStateChanged identifies a session lifecycle transition.
	KindSessionStateChanged Kind = "session.state_changed"
	// KindSessionGoAway identifies an advance notice that the endpoint will disconnect.
	KindSessionGoAway Kind = "session.go_away"
	// KindSessionEnded identifies the end of a session, for any reason.
	KindSessionEnded Kind = "session.ended"
)

// SessionStateChanged carries a lifecycle transition. Err is set when the
// new state is failed.
type SessionStateChanged struct {
	Base
	SessionID string
	From      string
	To        string
	Err       error
}

// NewSessionStateChanged creates a session state changed event.
func NewSessionStateChanged(sessionID, from, to string, err error) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged), SessionID: sessionID, From: from, To: to, Err: err}
}

// SessionGoAway carries the time the endpoint says is left before it closes.
type SessionGoAway struct {
	Base
	SessionID string
	TimeLeft  time.Duration
}

// NewSessionGoAway creates a session go away event.
func NewSessionGoAway(sessionID string, timeLeft time.Duration) SessionGoAway {
	return SessionGoAway{Base: NewBase(KindSessionGoAway), SessionID: sessionID, TimeLeft: timeLeft}
}

// SessionEnded marks the end of a session. Err is nil for a local close.
type SessionEnded struct {
	Base
	SessionID string
	Err       error
}

// NewSessionEnded creates a session ended event.
func NewSessionEnded(sessionID string, err error) SessionEnded {
	return SessionEnded{Base: NewBase(KindSessionEnded), SessionID: sessionID, Err: err}
}
