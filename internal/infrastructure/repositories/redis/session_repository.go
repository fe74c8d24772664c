package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"callnet/internal/core/domain"
	"callnet/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisSessionRepository shares the live call table across signaling nodes.
// Per-user activity claims are plain keys written with SETNX, which gives
// the same atomic one-active-call-per-user guarantee the memory index does.
type RedisSessionRepository struct {
	client *redis.Client
}

// sessionRecord is the stored shape; the domain type carries no wire tags.
type sessionRecord struct {
	ID         domain.CallID                        `json:"id"`
	Caller     domain.UserID                        `json:"caller"`
	Callee     domain.UserID                        `json:"callee"`
	Type       domain.CallType                      `json:"type"`
	Status     domain.CallStatus                    `json:"status"`
	StartTime  time.Time                            `json:"start_time"`
	AnswerTime time.Time                            `json:"answer_time,omitempty"`
	EndTime    time.Time                            `json:"end_time,omitempty"`
	EndReason  domain.EndReason                     `json:"end_reason,omitempty"`
	Quality    map[domain.UserID]domain.QualityTier `json:"quality,omitempty"`
}

func NewRedisSessionRepository(client *redis.Client) ports.SessionRepository {
	return &RedisSessionRepository{client: client}
}

func (r *RedisSessionRepository) callKey(id domain.CallID) string {
	return "callnet:call:" + string(id)
}

func (r *RedisSessionRepository) activeKey(user domain.UserID) string {
	return "callnet:user:" + string(user) + ":active"
}

func (r *RedisSessionRepository) Create(ctx context.Context, sess *domain.CallSession) error {
	data, err := json.Marshal(toRecord(sess))
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Claim both parties before the session becomes visible. A lost claim
	// on the callee rolls the caller's back.
	ok, err := r.client.SetNX(ctx, r.activeKey(sess.Caller), string(sess.ID), 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim caller activity: %w", err)
	}
	if !ok {
		return domain.ErrAlreadyInCall
	}

	ok, err = r.client.SetNX(ctx, r.activeKey(sess.Callee), string(sess.ID), 0).Result()
	if err != nil {
		r.client.Del(ctx, r.activeKey(sess.Caller))
		return fmt.Errorf("failed to claim callee activity: %w", err)
	}
	if !ok {
		r.client.Del(ctx, r.activeKey(sess.Caller))
		return domain.ErrAlreadyInCall
	}

	if err := r.client.Set(ctx, r.callKey(sess.ID), data, 0).Err(); err != nil {
		r.client.Del(ctx, r.activeKey(sess.Caller), r.activeKey(sess.Callee))
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id domain.CallID) (*domain.CallSession, error) {
	data, err := r.client.Get(ctx, r.callKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrCallNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return fromRecord(&rec), nil
}

func (r *RedisSessionRepository) Update(ctx context.Context, sess *domain.CallSession) error {
	exists, err := r.client.Exists(ctx, r.callKey(sess.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return domain.ErrCallNotFound
	}

	data, err := json.Marshal(toRecord(sess))
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.callKey(sess.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if !sess.Active() {
		r.release(ctx, sess)
	}
	return nil
}

func (r *RedisSessionRepository) FindActiveByUser(ctx context.Context, user domain.UserID) ([]*domain.CallSession, error) {
	id, err := r.client.Get(ctx, r.activeKey(user)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active claim: %w", err)
	}

	sess, err := r.GetByID(ctx, domain.CallID(id))
	if err == domain.ErrCallNotFound {
		// Stale claim; drop it.
		r.client.Del(ctx, r.activeKey(user))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, nil
	}
	return []*domain.CallSession{sess}, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id domain.CallID) error {
	sess, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	r.release(ctx, sess)
	if err := r.client.Del(ctx, r.callKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// releaseScript drops a party's activity claim only while it still points
// at this call; the party may already be in a newer call.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *RedisSessionRepository) release(ctx context.Context, sess *domain.CallSession) {
	for _, u := range []domain.UserID{sess.Caller, sess.Callee} {
		releaseScript.Run(ctx, r.client, []string{r.activeKey(u)}, string(sess.ID))
	}
}

func toRecord(sess *domain.CallSession) *sessionRecord {
	return &sessionRecord{
		ID:         sess.ID,
		Caller:     sess.Caller,
		Callee:     sess.Callee,
		Type:       sess.Type,
		Status:     sess.Status,
		StartTime:  sess.StartTime,
		AnswerTime: sess.AnswerTime,
		EndTime:    sess.EndTime,
		EndReason:  sess.EndReason,
		Quality:    sess.Quality,
	}
}

func fromRecord(rec *sessionRecord) *domain.CallSession {
	return &domain.CallSession{
		ID:         rec.ID,
		Caller:     rec.Caller,
		Callee:     rec.Callee,
		Type:       rec.Type,
		Status:     rec.Status,
		StartTime:  rec.StartTime,
		AnswerTime: rec.AnswerTime,
		EndTime:    rec.EndTime,
		EndReason:  rec.EndReason,
		Quality:    rec.Quality,
	}
}
