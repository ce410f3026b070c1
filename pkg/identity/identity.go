// Package identity adapts an external authentication service into a
// session source: sign-in, sign-out, ID token issue/refresh, and
// session-change notifications.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotSignedIn        = errors.New("identity: not signed in")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrProvider           = errors.New("identity: provider request failed")
)

// User is the identity-provider view of the signed-in account.
type User struct {
	UID         string
	Email       string
	DisplayName string
}

// EventKind classifies a session change.
type EventKind int

const (
	// EventInitial is delivered once to every new subscriber with the
	// session state at subscription time (User may be nil).
	EventInitial EventKind = iota
	EventSignedIn
	EventSignedOut
	EventTokenRefreshed
)

func (k EventKind) String() string {
	switch k {
	case EventInitial:
		return "initial"
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventTokenRefreshed:
		return "token_refreshed"
	default:
		return "unknown"
	}
}

// Event is a session-change notification. User is nil when signed out.
type Event struct {
	Kind EventKind
	User *User
	At   time.Time
}

// Provider is the identity provider as seen by the rest of the client.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context) error
	// Token returns a valid ID token, refreshing it when close to expiry.
	Token(ctx context.Context) (string, error)
	CurrentUser() *User
	// Subscribe registers fn for session changes and returns a function that
	// removes the registration. fn receives an EventInitial right away.
	Subscribe(fn func(Event)) (unsubscribe func())
}
