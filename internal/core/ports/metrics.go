package ports

import (
	"time"

	"callnet/internal/core/domain"
)

// CallMetrics is the narrow instrumentation surface the core reports into.
// The prometheus-backed implementation lives in infrastructure/monitoring.
type CallMetrics interface {
	CallInitiated(callType domain.CallType)
	CallEnded(reason domain.EndReason, duration time.Duration)
	TransitionApplied(event domain.TransitionEvent, ok bool)
	TierChanged(tier domain.QualityTier)
	DirectiveSent(media domain.MediaType)
	DeliveryFailed()
}
