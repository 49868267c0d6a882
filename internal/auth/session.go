// Package auth owns the client's session: who the current user is, how that
// is established at startup, and the login, register and logout operations.
package auth

import "github.com/felixgeelhaar/truematch/internal/platform"

// Status is the session state.
type Status int

const (
	// StatusLoading means startup has not finished establishing the session.
	StatusLoading Status = iota
	// StatusAuthenticated means a user is logged in.
	StatusAuthenticated
	// StatusAnonymous means nobody is logged in.
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Session is an immutable snapshot of the session state. User is set only
// when Status is StatusAuthenticated.
type Session struct {
	Status Status
	User   platform.User
}

// Loading returns the initial session.
func Loading() Session {
	return Session{Status: StatusLoading}
}

// Authenticated returns a session for user.
func Authenticated(user platform.User) Session {
	if user == nil {
		user = platform.User{}
	}
	return Session{Status: StatusAuthenticated, User: user}
}

// Anonymous returns a logged-out session.
func Anonymous() Session {
	return Session{Status: StatusAnonymous}
}

// IsAuthenticated reports whether a user is logged in.
func (s Session) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}
