package ports

import (
	"context"

	"github.com/aretw0/guidance/pkg/domain"
)

// Archiver persists the final record of a session that reached a terminal state.
// It is the only durable collaborator the engine talks to.
type Archiver interface {
	// Archive stores the session and returns the archive record ID.
	Archive(ctx context.Context, s *domain.Session) (string, error)
}
