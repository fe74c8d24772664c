package memory

import (
	"context"
	"sync"

	"callnet/internal/core/domain"
	"callnet/internal/core/ports"
)

// MemorySessionRepository keeps live sessions in process memory. The
// activeBy index enforces the one-active-call-per-user rule inside the
// repository lock, so concurrent Creates cannot both win.
type MemorySessionRepository struct {
	sessions map[domain.CallID]*domain.CallSession
	activeBy map[domain.UserID]domain.CallID
	mu       sync.RWMutex
}

func NewMemorySessionRepository() ports.SessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[domain.CallID]*domain.CallSession),
		activeBy: make(map[domain.UserID]domain.CallID),
	}
}

func (r *MemorySessionRepository) Create(ctx context.Context, sess *domain.CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; exists {
		return domain.ErrInvalidArgument
	}
	if _, busy := r.activeBy[sess.Caller]; busy {
		return domain.ErrAlreadyInCall
	}
	if _, busy := r.activeBy[sess.Callee]; busy {
		return domain.ErrAlreadyInCall
	}

	r.sessions[sess.ID] = sess.Clone()
	r.activeBy[sess.Caller] = sess.ID
	r.activeBy[sess.Callee] = sess.ID
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id domain.CallID) (*domain.CallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrCallNotFound
	}
	return sess.Clone(), nil
}

func (r *MemorySessionRepository) Update(ctx context.Context, sess *domain.CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; !exists {
		return domain.ErrCallNotFound
	}

	r.sessions[sess.ID] = sess.Clone()
	if !sess.Active() {
		r.releaseLocked(sess)
	}
	return nil
}

func (r *MemorySessionRepository) FindActiveByUser(ctx context.Context, user domain.UserID) ([]*domain.CallSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.activeBy[user]
	if !ok {
		return nil, nil
	}
	sess, exists := r.sessions[id]
	if !exists || !sess.Active() {
		return nil, nil
	}
	return []*domain.CallSession{sess.Clone()}, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id domain.CallID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return domain.ErrCallNotFound
	}

	r.releaseLocked(sess)
	delete(r.sessions, id)
	return nil
}

// releaseLocked drops a session's claim on both parties. A claim is only
// dropped if it still points at this call: a party may already be in a new
// call by the time an ended session is evicted.
func (r *MemorySessionRepository) releaseLocked(sess *domain.CallSession) {
	for _, u := range []domain.UserID{sess.Caller, sess.Callee} {
		if r.activeBy[u] == sess.ID {
			delete(r.activeBy, u)
		}
	}
}
