package core

import "time"

// Session is the persisted record behind an opaque session token
type Session struct {
	Token     string    // Opaque token, used as the store key
	Subject   string    // Identity the token was issued for
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session stops being valid
}

// Expired reports whether the session is no longer valid at now
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TTL returns the lifetime the session was issued with
func (s Session) TTL() time.Duration {
	return s.ExpiresAt.Sub(s.IssuedAt)
}

// EventKind identifies a session lifecycle event
type EventKind string

const (
	EventIssued  EventKind = "session.issued"
	EventRevoked EventKind = "session.revoked"
)

// SessionEvent is published whenever a session is issued or removed
type SessionEvent struct {
	Kind      EventKind `json:"kind"`
	Subject   string    `json:"subject,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	At        time.Time `json:"at"`
}
