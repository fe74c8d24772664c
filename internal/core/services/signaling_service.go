package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"callnet/internal/core/domain"
	"callnet/internal/core/ports"
	"callnet/pkg/config"

	"go.uber.org/zap"
)

// signalingService is the façade between transport adapters and the call
// core. It routes inbound events through the call service's transition
// gate, dispatches notifications after commit, and owns the per-call timer
// choreography (ringing timeout, reconnect grace, eviction). It performs no
// call-state logic of its own.
type signalingService struct {
	calls      ports.CallService
	quality    *QualityService
	bitrate    *BitrateService
	timers     *TimerService
	registry   ports.SocketRegistry
	dispatcher ports.Dispatcher
	events     ports.EventPublisher
	metrics    ports.CallMetrics
	logger     *zap.SugaredLogger

	ringingTimeout time.Duration
	reconnectGrace time.Duration
	evictAfter     time.Duration
}

func NewSignalingService(
	calls ports.CallService,
	quality *QualityService,
	bitrate *BitrateService,
	timers *TimerService,
	registry ports.SocketRegistry,
	dispatcher ports.Dispatcher,
	events ports.EventPublisher,
	metrics ports.CallMetrics,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) ports.SignalingService {
	s := &signalingService{
		calls:          calls,
		quality:        quality,
		bitrate:        bitrate,
		timers:         timers,
		registry:       registry,
		dispatcher:     dispatcher,
		events:         events,
		metrics:        metrics,
		logger:         logger,
		ringingTimeout: cfg.Call.RingingTimeout,
		reconnectGrace: cfg.Call.ReconnectGrace,
		evictAfter:     cfg.Call.EvictAfter,
	}

	// Tier changes feed the bitrate controller; directives go to both legs.
	quality.OnTierChange(s.onTierChange)

	return s
}

func (s *signalingService) Initiate(ctx context.Context, caller, callee domain.UserID, callType domain.CallType) (*domain.CallSession, error) {
	sess, notifs, err := s.calls.Initiate(ctx, caller, callee, callType)
	if err != nil {
		return nil, err
	}

	s.metrics.CallInitiated(callType)
	s.publish(ctx, domain.LifecycleInitiated, sess)

	// Ringing timer is armed before the callee is notified so a dead
	// dispatcher cannot leave the call ringing forever.
	s.timers.Schedule(sess.ID, TimerRinging, s.ringingTimeout, func() {
		s.fireTimeout(sess.ID)
	})

	s.dispatch(notifs)

	if len(s.registry.Resolve(callee)) == 0 {
		s.logger.Infow("callee offline at initiation, call left ringing",
			"call_id", sess.ID,
			"callee", callee,
		)
	}
	return sess, nil
}

func (s *signalingService) Answer(ctx context.Context, id domain.CallID, actor domain.UserID) error {
	sess, notifs, err := s.calls.Transition(ctx, id, domain.EventAnswer, actor)
	s.metrics.TransitionApplied(domain.EventAnswer, err == nil)
	if err != nil {
		return err
	}

	s.timers.Cancel(id, TimerRinging)
	s.publish(ctx, domain.LifecycleAnswered, sess)
	s.dispatch(notifs)
	return nil
}

func (s *signalingService) Reject(ctx context.Context, id domain.CallID, actor domain.UserID) error {
	sess, notifs, err := s.calls.Transition(ctx, id, domain.EventReject, actor)
	s.metrics.TransitionApplied(domain.EventReject, err == nil)
	if err != nil {
		return err
	}

	s.finish(ctx, sess, notifs)
	return nil
}

func (s *signalingService) End(ctx context.Context, id domain.CallID, actor domain.UserID) error {
	sess, notifs, err := s.calls.Transition(ctx, id, domain.EventEnd, actor)
	s.metrics.TransitionApplied(domain.EventEnd, err == nil)
	if err != nil {
		return err
	}

	s.finish(ctx, sess, notifs)
	return nil
}

// RelaySignal forwards an opaque offer/answer/ICE payload to the other
// party. The core never inspects the blob.
func (s *signalingService) RelaySignal(ctx context.Context, id domain.CallID, from domain.UserID, payload json.RawMessage) error {
	sess, err := s.calls.Get(ctx, id)
	if err != nil {
		return err
	}
	if !sess.IsParty(from) {
		return domain.ErrForbidden
	}
	if !sess.Active() {
		return domain.ErrInvalidTransition
	}

	n := domain.Notification{
		Recipient: sess.OtherParty(from),
		Event:     domain.EventSignalRelay,
		Payload: domain.SignalRelayPayload{
			CallID: id,
			From:   from,
			Signal: payload,
		},
	}
	if err := s.dispatcher.Dispatch(n); err != nil {
		s.metrics.DeliveryFailed()
		return domain.ErrDeliveryFailed
	}
	return nil
}

func (s *signalingService) ReportQuality(ctx context.Context, sample domain.QualitySample) error {
	sess, err := s.calls.Get(ctx, sample.CallID)
	if err != nil {
		return err
	}
	if !sess.IsParty(sample.Reporter) {
		return domain.ErrForbidden
	}
	if !sess.Active() {
		return domain.ErrInvalidTransition
	}

	// A sample is also a liveness signal: it clears any pending
	// reconnect-grace window for the reporting leg.
	s.timers.Cancel(sample.CallID, graceKind(sample.Reporter))

	s.quality.Report(sample)
	return nil
}

// ReportRTCP accepts a raw RTCP compound packet in place of a computed
// sample. Malformed packets map to the invalid-argument error family.
func (s *signalingService) ReportRTCP(ctx context.Context, id domain.CallID, reporter domain.UserID, raw []byte) error {
	sample, err := s.quality.ParseRTCP(id, reporter, raw)
	if err != nil {
		s.logger.Debugw("rtcp parse failed", "call_id", id, "reporter", reporter, "error", err)
		return domain.ErrInvalidArgument
	}
	return s.ReportQuality(ctx, sample)
}

func (s *signalingService) GetStatus(ctx context.Context, id domain.CallID, actor domain.UserID) (domain.CallSummary, error) {
	sess, err := s.calls.Get(ctx, id)
	if err != nil {
		return domain.CallSummary{}, err
	}
	if !sess.IsParty(actor) {
		return domain.CallSummary{}, domain.ErrForbidden
	}
	return sess.Summary(time.Now()), nil
}

func (s *signalingService) ListActiveCalls(ctx context.Context, user domain.UserID) ([]domain.CallSummary, error) {
	sessions, err := s.calls.ListActive(ctx, user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summaries := make([]domain.CallSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, sess.Summary(now))
	}
	return summaries, nil
}

// SocketClosed arms a reconnect-grace window for every answered call the
// user is part of. Disconnecting does not itself end a call: transient
// drops recover by reconnecting or by a quality sample arriving in time.
func (s *signalingService) SocketClosed(user domain.UserID) {
	if len(s.registry.Resolve(user)) > 0 {
		// Another device still holds a live socket.
		return
	}

	sessions, err := s.calls.ListActive(context.Background(), user)
	if err != nil {
		s.logger.Warnw("failed to list calls on disconnect", "user", user, "error", err)
		return
	}

	for _, sess := range sessions {
		if sess.Status != domain.StatusAnswered {
			continue
		}
		id := sess.ID
		s.timers.Schedule(id, graceKind(user), s.reconnectGrace, func() {
			s.fireConnectionLost(id)
		})
		s.logger.Infow("reconnect grace armed",
			"call_id", id,
			"user", user,
			"grace", s.reconnectGrace,
		)
	}
}

// SocketOpened cancels pending grace windows for a reconnecting user.
func (s *signalingService) SocketOpened(user domain.UserID) {
	sessions, err := s.calls.ListActive(context.Background(), user)
	if err != nil {
		return
	}
	for _, sess := range sessions {
		s.timers.Cancel(sess.ID, graceKind(user))
	}
}

// fireTimeout is the ringing-timer callback. A race with a just-committed
// manual transition loses at the gate and is silently discarded.
func (s *signalingService) fireTimeout(id domain.CallID) {
	ctx := context.Background()
	sess, notifs, err := s.calls.Transition(ctx, id, domain.EventTimeout, domain.SystemActor)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) && !errors.Is(err, domain.ErrCallNotFound) {
			s.logger.Warnw("timeout transition failed", "call_id", id, "error", err)
		}
		return
	}

	s.metrics.TransitionApplied(domain.EventTimeout, true)
	s.finish(ctx, sess, notifs)
}

// fireConnectionLost is the reconnect-grace callback.
func (s *signalingService) fireConnectionLost(id domain.CallID) {
	ctx := context.Background()
	sess, notifs, err := s.calls.Transition(ctx, id, domain.EventConnectionLost, domain.SystemActor)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) && !errors.Is(err, domain.ErrCallNotFound) {
			s.logger.Warnw("connection-lost transition failed", "call_id", id, "error", err)
		}
		return
	}

	s.metrics.TransitionApplied(domain.EventConnectionLost, true)
	s.finish(ctx, sess, notifs)
}

// finish runs the shared termination path: cancel timers, notify, publish,
// and schedule eviction from the live table.
func (s *signalingService) finish(ctx context.Context, sess *domain.CallSession, notifs []domain.Notification) {
	s.timers.CancelAll(sess.ID)
	s.metrics.CallEnded(sess.EndReason, sess.Duration(time.Now()))
	s.publish(ctx, domain.LifecycleEnded, sess)
	s.dispatch(notifs)

	id := sess.ID
	if s.evictAfter <= 0 {
		s.evict(id)
		return
	}
	s.timers.Schedule(id, TimerEviction, s.evictAfter, func() {
		s.evict(id)
	})
}

func (s *signalingService) evict(id domain.CallID) {
	if err := s.calls.Evict(context.Background(), id); err != nil && !errors.Is(err, domain.ErrCallNotFound) {
		s.logger.Warnw("eviction failed", "call_id", id, "error", err)
	}
	s.quality.Forget(id)
	s.bitrate.Forget(id)
}

func (s *signalingService) onTierChange(callID domain.CallID, reporter domain.UserID, tier domain.QualityTier) {
	sess, err := s.calls.Get(context.Background(), callID)
	if err != nil || !sess.Active() {
		return
	}

	s.metrics.TierChanged(tier)

	directives := s.bitrate.DirectivesFor(callID, sess.Type, tier)
	for _, d := range directives {
		s.metrics.DirectiveSent(d.MediaType)
		for _, party := range []domain.UserID{sess.Caller, sess.Callee} {
			n := domain.Notification{
				Recipient: party,
				Event:     domain.EventBitrateDirective,
				Payload:   d,
			}
			if err := s.dispatcher.Dispatch(n); err != nil {
				s.metrics.DeliveryFailed()
				s.logger.Debugw("bitrate directive undeliverable",
					"call_id", callID,
					"recipient", party,
				)
			}
		}
	}
}

// dispatch delivers post-commit notifications. A failure to reach a third
// party is recorded but never rolls back the committed transition.
func (s *signalingService) dispatch(notifs []domain.Notification) {
	for _, n := range notifs {
		if err := s.dispatcher.Dispatch(n); err != nil {
			s.metrics.DeliveryFailed()
			s.logger.Warnw("notification undeliverable",
				"recipient", n.Recipient,
				"event", n.Event,
			)
		}
	}
}

func (s *signalingService) publish(ctx context.Context, event string, sess *domain.CallSession) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event, sess); err != nil {
		s.logger.Warnw("lifecycle event publish failed",
			"event", event,
			"call_id", sess.ID,
			"error", err,
		)
	}
}

func graceKind(user domain.UserID) TimerKind {
	return TimerKind("reconnect-grace:" + string(user))
}
