package ports

import (
	"context"
	"encoding/json"

	"callnet/internal/core/domain"
)

// CallService is the session-store façade: it owns session lifecycle and
// routes every mutation through the state machine's atomic transition gate.
type CallService interface {
	Initiate(ctx context.Context, caller, callee domain.UserID, callType domain.CallType) (*domain.CallSession, []domain.Notification, error)
	Get(ctx context.Context, id domain.CallID) (*domain.CallSession, error)
	Transition(ctx context.Context, id domain.CallID, event domain.TransitionEvent, actor domain.UserID) (*domain.CallSession, []domain.Notification, error)
	ListActive(ctx context.Context, user domain.UserID) ([]*domain.CallSession, error)
	Evict(ctx context.Context, id domain.CallID) error
}

// SignalingService is the inbound façade dispatching client events to the
// call service and outbound notifications to the socket registry.
type SignalingService interface {
	Initiate(ctx context.Context, caller, callee domain.UserID, callType domain.CallType) (*domain.CallSession, error)
	Answer(ctx context.Context, id domain.CallID, actor domain.UserID) error
	Reject(ctx context.Context, id domain.CallID, actor domain.UserID) error
	End(ctx context.Context, id domain.CallID, actor domain.UserID) error
	RelaySignal(ctx context.Context, id domain.CallID, from domain.UserID, payload json.RawMessage) error
	ReportQuality(ctx context.Context, sample domain.QualitySample) error
	ReportRTCP(ctx context.Context, id domain.CallID, reporter domain.UserID, raw []byte) error
	GetStatus(ctx context.Context, id domain.CallID, actor domain.UserID) (domain.CallSummary, error)
	ListActiveCalls(ctx context.Context, user domain.UserID) ([]domain.CallSummary, error)
	SocketClosed(user domain.UserID)
	SocketOpened(user domain.UserID)
}

// QualityMonitor classifies per-leg network health from the newest sample.
type QualityMonitor interface {
	Report(sample domain.QualitySample) (tier domain.QualityTier, changed bool)
	ReportRTCP(callID domain.CallID, reporter domain.UserID, raw []byte) (domain.QualityTier, bool, error)
	Tier(callID domain.CallID, reporter domain.UserID) (domain.QualityTier, bool)
	Forget(callID domain.CallID)
}

// BitrateController derives encoder bounds from a quality tier.
type BitrateController interface {
	ComputeDirective(callID domain.CallID, media domain.MediaType, tier domain.QualityTier) domain.BitrateDirective
	DirectivesFor(callID domain.CallID, callType domain.CallType, tier domain.QualityTier) []domain.BitrateDirective
}

// EventPublisher emits call-lifecycle events for external persistence layers.
type EventPublisher interface {
	Publish(ctx context.Context, event string, sess *domain.CallSession) error
}
