package ports

import (
	"context"

	"callnet/internal/core/domain"
)

// SessionRepository is the persistence contract for live call sessions.
// Create must atomically enforce the one-active-call-per-user invariant:
// it fails with domain.ErrAlreadyInCall when either party already has a
// non-ended session.
type SessionRepository interface {
	Create(ctx context.Context, sess *domain.CallSession) error
	GetByID(ctx context.Context, id domain.CallID) (*domain.CallSession, error)
	Update(ctx context.Context, sess *domain.CallSession) error
	FindActiveByUser(ctx context.Context, user domain.UserID) ([]*domain.CallSession, error)
	Delete(ctx context.Context, id domain.CallID) error
}
