package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"callnet/internal/core/domain"
	"callnet/internal/core/ports"
	"callnet/pkg/circuitbreaker"
	"callnet/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LifecycleEvent is the envelope published on the event channel for
// downstream consumers (billing, call history, push notification relays).
type LifecycleEvent struct {
	Event     string            `json:"event"`
	CallID    domain.CallID     `json:"call_id"`
	Caller    domain.UserID     `json:"caller"`
	Callee    domain.UserID     `json:"callee"`
	Type      domain.CallType   `json:"type"`
	Status    domain.CallStatus `json:"status"`
	Reason    domain.EndReason  `json:"reason,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// RedisPublisher emits lifecycle events over Redis Pub/Sub. Publishing is
// fire-and-forget from the caller's view: failures are retried briefly,
// then surfaced as an error the caller may log but never acts on.
type RedisPublisher struct {
	client   *redis.Client
	channel  string
	retryCfg retry.Config
	breaker  *circuitbreaker.CircuitBreaker
	logger   *zap.SugaredLogger
}

func NewRedisPublisher(client *redis.Client, channel string, logger *zap.SugaredLogger) *RedisPublisher {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 2
	cfg.InitialDelay = 50 * time.Millisecond
	cfg.MaxDelay = 500 * time.Millisecond

	// The breaker keeps a flapping Redis from stalling call teardown: while
	// open, publishes fail fast instead of burning the retry budget.
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("event publisher circuit state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &RedisPublisher{
		client:   client,
		channel:  channel,
		retryCfg: cfg,
		breaker:  breaker,
		logger:   logger,
	}
}

var _ ports.EventPublisher = (*RedisPublisher)(nil)

func (p *RedisPublisher) Publish(ctx context.Context, event string, sess *domain.CallSession) error {
	payload, err := json.Marshal(LifecycleEvent{
		Event:     event,
		CallID:    sess.ID,
		Caller:    sess.Caller,
		Callee:    sess.Callee,
		Type:      sess.Type,
		Status:    sess.Status,
		Reason:    sess.EndReason,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	err = p.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, p.retryCfg, func() error {
			return p.client.Publish(ctx, p.channel, payload).Err()
		})
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s for call %s: %w", event, sess.ID, err)
	}

	p.logger.Debugw("lifecycle event published",
		"event", event,
		"call_id", sess.ID,
		"channel", p.channel,
	)
	return nil
}
