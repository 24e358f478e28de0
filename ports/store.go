package ports

import (
	"context"
	"time"

	"github.com/layer-3/tollgate/core"
)

// SessionStore persists sessions keyed by their token.
// Implementations must be safe for concurrent use and wrap I/O failures in core.ErrStoreUnavailable.
type SessionStore interface {
	// Create stores a new session, returning core.ErrTokenExists if the token is taken
	Create(ctx context.Context, session core.Session) error

	// Get returns the session for a token, or core.ErrTokenNotFound
	Get(ctx context.Context, token string) (core.Session, error)

	// Delete removes a session and returns it, or core.ErrTokenNotFound if it was absent
	Delete(ctx context.Context, token string) (core.Session, error)

	// ListExpired returns a snapshot of the tokens whose sessions expire at or before now
	ListExpired(ctx context.Context, now time.Time) ([]string, error)

	// Close releases the underlying storage
	Close() error
}
