package memory

import (
	"context"
	"testing"
	"time"

	"callnet/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func newSession(id domain.CallID, caller, callee domain.UserID) *domain.CallSession {
	return &domain.CallSession{
		ID:        id,
		Caller:    caller,
		Callee:    callee,
		Type:      domain.CallTypeVideo,
		Status:    domain.StatusRinging,
		StartTime: time.Now(),
		EndReason: domain.ReasonNone,
	}
}

func TestMemorySessionRepository_CreateAndGet(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	sess := newSession("call-1", "alice", "bob")
	assert.NoError(t, repo.Create(ctx, sess))

	got, err := repo.GetByID(ctx, "call-1")
	assert.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.Caller, got.Caller)

	// Stored copy is isolated from the caller's value.
	got.Status = domain.StatusAnswered
	again, err := repo.GetByID(ctx, "call-1")
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusRinging, again.Status)
}

func TestMemorySessionRepository_GetUnknown(t *testing.T) {
	repo := NewMemorySessionRepository()

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrCallNotFound)
}

func TestMemorySessionRepository_DuplicateID(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	assert.NoError(t, repo.Create(ctx, newSession("call-1", "alice", "bob")))
	err := repo.Create(ctx, newSession("call-1", "carol", "dave"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestMemorySessionRepository_OneActiveCallPerUser(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	assert.NoError(t, repo.Create(ctx, newSession("call-1", "alice", "bob")))

	// Caller busy.
	err := repo.Create(ctx, newSession("call-2", "alice", "carol"))
	assert.ErrorIs(t, err, domain.ErrAlreadyInCall)

	// Callee busy, on either side.
	err = repo.Create(ctx, newSession("call-3", "carol", "bob"))
	assert.ErrorIs(t, err, domain.ErrAlreadyInCall)
	err = repo.Create(ctx, newSession("call-4", "bob", "carol"))
	assert.ErrorIs(t, err, domain.ErrAlreadyInCall)

	// Unrelated users proceed.
	assert.NoError(t, repo.Create(ctx, newSession("call-5", "carol", "dave")))
}

func TestMemorySessionRepository_UpdateToEndedReleasesClaims(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	sess := newSession("call-1", "alice", "bob")
	assert.NoError(t, repo.Create(ctx, sess))

	ended := sess.Clone()
	ended.Status = domain.StatusEnded
	ended.EndReason = domain.ReasonHangup
	ended.EndTime = time.Now()
	assert.NoError(t, repo.Update(ctx, ended))

	// Ended record is retained for status queries...
	got, err := repo.GetByID(ctx, "call-1")
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, got.Status)

	// ...but both parties are free for new calls.
	assert.NoError(t, repo.Create(ctx, newSession("call-2", "bob", "alice")))
}

func TestMemorySessionRepository_UpdateUnknown(t *testing.T) {
	repo := NewMemorySessionRepository()

	err := repo.Update(context.Background(), newSession("ghost", "alice", "bob"))
	assert.ErrorIs(t, err, domain.ErrCallNotFound)
}

func TestMemorySessionRepository_FindActiveByUser(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	sess := newSession("call-1", "alice", "bob")
	assert.NoError(t, repo.Create(ctx, sess))

	for _, user := range []domain.UserID{"alice", "bob"} {
		calls, err := repo.FindActiveByUser(ctx, user)
		assert.NoError(t, err)
		assert.Len(t, calls, 1, "user %s", user)
		assert.Equal(t, domain.CallID("call-1"), calls[0].ID)
	}

	calls, err := repo.FindActiveByUser(ctx, "carol")
	assert.NoError(t, err)
	assert.Empty(t, calls)
}

func TestMemorySessionRepository_DeleteReleasesOnlyOwnClaims(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	sess := newSession("call-1", "alice", "bob")
	assert.NoError(t, repo.Create(ctx, sess))

	ended := sess.Clone()
	ended.Status = domain.StatusEnded
	assert.NoError(t, repo.Update(ctx, ended))

	// Alice moves on to a new call before call-1 is evicted.
	assert.NoError(t, repo.Create(ctx, newSession("call-2", "alice", "carol")))

	assert.NoError(t, repo.Delete(ctx, "call-1"))

	// The late eviction of call-1 must not unclaim alice's new call.
	calls, err := repo.FindActiveByUser(ctx, "alice")
	assert.NoError(t, err)
	assert.Len(t, calls, 1)
	assert.Equal(t, domain.CallID("call-2"), calls[0].ID)
}

func TestMemorySessionRepository_DeleteUnknown(t *testing.T) {
	repo := NewMemorySessionRepository()

	err := repo.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrCallNotFound)
}
