package services

import (
	"context"
	"sync"
	"time"

	"callnet/internal/core/domain"
	"callnet/internal/core/ports"
	"callnet/pkg/utils"

	"go.uber.org/zap"
)

// callService owns call-session lifecycle. Every mutation goes through the
// state machine behind a per-call lock, so concurrent events on the same
// call are serialized while distinct calls proceed in parallel. The
// repository is updated before notifications are handed back, so observers
// never see a notification for a state that was later overwritten.
type callService struct {
	repo   ports.SessionRepository
	logger *zap.SugaredLogger

	mu    sync.Mutex
	locks map[domain.CallID]*sync.Mutex

	now func() time.Time
}

func NewCallService(repo ports.SessionRepository, logger *zap.SugaredLogger) ports.CallService {
	return &callService{
		repo:   repo,
		logger: logger,
		locks:  make(map[domain.CallID]*sync.Mutex),
		now:    time.Now,
	}
}

func (s *callService) lockFor(id domain.CallID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *callService) dropLock(id domain.CallID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, id)
}

// Initiate allocates a new ringing session. The repository enforces the
// one-active-call-per-user invariant atomically, so concurrent initiates by
// or to the same user resolve to a single winner.
func (s *callService) Initiate(ctx context.Context, caller, callee domain.UserID, callType domain.CallType) (*domain.CallSession, []domain.Notification, error) {
	if !callType.Valid() {
		return nil, nil, domain.ErrInvalidArgument
	}
	if caller == "" || callee == "" || caller == callee {
		return nil, nil, domain.ErrInvalidArgument
	}

	sess := &domain.CallSession{
		ID:        domain.CallID(utils.GenerateCallID()),
		Caller:    caller,
		Callee:    callee,
		Type:      callType,
		Status:    domain.StatusRinging,
		StartTime: s.now(),
		EndReason: domain.ReasonNone,
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, nil, err
	}

	s.logger.Infow("call initiated",
		"call_id", sess.ID,
		"caller", caller,
		"callee", callee,
		"type", callType,
	)

	notifs := []domain.Notification{
		{
			Recipient: callee,
			Event:     domain.EventIncomingCall,
			Payload: domain.IncomingCallPayload{
				CallID: sess.ID,
				From:   caller,
				Type:   callType,
			},
		},
	}
	return sess.Clone(), notifs, nil
}

func (s *callService) Get(ctx context.Context, id domain.CallID) (*domain.CallSession, error) {
	return s.repo.GetByID(ctx, id)
}

// Transition applies one signaling event under the call's lock: the atomic
// gate that makes concurrent answer/reject resolve to exactly one winner.
func (s *callService) Transition(ctx context.Context, id domain.CallID, event domain.TransitionEvent, actor domain.UserID) (*domain.CallSession, []domain.Notification, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	next, notifs, err := ApplyTransition(sess, event, actor, s.now())
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.Update(ctx, next); err != nil {
		return nil, nil, err
	}

	s.logger.Infow("call transitioned",
		"call_id", id,
		"event", event,
		"actor", actor,
		"status", next.Status,
		"reason", next.EndReason,
	)
	return next, notifs, nil
}

func (s *callService) ListActive(ctx context.Context, user domain.UserID) ([]*domain.CallSession, error) {
	return s.repo.FindActiveByUser(ctx, user)
}

// Evict removes a terminal session from the live table. Active sessions are
// never evicted.
func (s *callService) Evict(ctx context.Context, id domain.CallID) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sess.Active() {
		return domain.ErrInvalidTransition
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.dropLock(id)

	s.logger.Debugw("call evicted", "call_id", id)
	return nil
}
