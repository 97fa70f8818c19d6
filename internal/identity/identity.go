// Package identity models who is voting: an anonymous browser known only by
// its visitor cookie, or a logged-in user who may also carry that cookie.
package identity

import (
	"github.com/google/uuid"
)

type Kind int

const (
	KindAnonymous Kind = iota
	KindAuthenticated
)

func (k Kind) String() string {
	if k == KindAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Identity is either Anonymous(visitorID) or Authenticated(userID, visitorID?).
// The zero value is an anonymous identity without a visitor id and is never
// accepted by the vote engine.
type Identity struct {
	kind      Kind
	userID    string
	visitorID string
}

func Anonymous(visitorID string) Identity {
	return Identity{kind: KindAnonymous, visitorID: visitorID}
}

// Authenticated builds a user identity; visitorID may be empty for API
// clients that do not keep cookies.
func Authenticated(userID, visitorID string) Identity {
	return Identity{kind: KindAuthenticated, userID: userID, visitorID: visitorID}
}

func (i Identity) Kind() Kind {
	return i.kind
}

func (i Identity) IsAuthenticated() bool {
	return i.kind == KindAuthenticated
}

func (i Identity) UserID() (string, bool) {
	if i.kind != KindAuthenticated {
		return "", false
	}
	return i.userID, true
}

func (i Identity) VisitorID() string {
	return i.visitorID
}

// Valid reports whether the identity carries at least one usable key.
func (i Identity) Valid() bool {
	if i.kind == KindAuthenticated {
		return i.userID != ""
	}
	return i.visitorID != ""
}

// Resolution is what the resolver hands to request handlers.
type Resolution struct {
	Identity     Identity
	Role         string
	IsNewVisitor bool
}

// NewVisitorID mints an opaque visitor token.
func NewVisitorID() string {
	return uuid.NewString()
}

// ValidVisitorID rejects cookie values we did not mint.
func ValidVisitorID(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
