package ports

import (
	"context"
	"time"

	"github.com/aretw0/guidance/pkg/domain"
)

// SessionStore defines the interface for holding live sessions.
// Implementations must return copies: callers never share memory with the store.
// The store does not serialize per-session access; the session.Manager does.
type SessionStore interface {
	// Create stores a new session.
	// Returns domain.ErrSessionExists if the ID is already taken.
	Create(ctx context.Context, s *domain.Session) error

	// Load retrieves the session for a given ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, id string) (*domain.Session, error)

	// Save overwrites an existing session.
	// Returns domain.ErrSessionNotFound if the session does not exist: a
	// session deleted or expired underneath a caller is never recreated.
	Save(ctx context.Context, s *domain.Session) error

	// Delete removes the session entirely.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Delete(ctx context.Context, id string) error

	// List enumerates the IDs of all stored sessions, in no particular order.
	List(ctx context.Context) ([]string, error)

	// Expire deletes every session whose last update is before idleSince
	// and returns the IDs removed.
	Expire(ctx context.Context, idleSince time.Time) ([]string, error)
}
