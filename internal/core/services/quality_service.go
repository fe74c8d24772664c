package services

import (
	"fmt"
	"sync"
	"time"

	"callnet/internal/core/domain"
	"callnet/pkg/config"

	"github.com/pion/rtcp"
	"go.uber.org/zap"
)

type legKey struct {
	call     domain.CallID
	reporter domain.UserID
}

type tierThreshold struct {
	tier    domain.QualityTier
	maxRTT  time.Duration
	maxLoss float64
}

// TierChangeFunc is invoked when a leg's quality tier changes.
type TierChangeFunc func(callID domain.CallID, reporter domain.UserID, tier domain.QualityTier)

// QualityService classifies per-leg network health from the newest sample.
// The tier is a pure function of the latest input; no history is kept beyond
// one sample per leg.
type QualityService struct {
	thresholds []tierThreshold

	mu     sync.RWMutex
	latest map[legKey]domain.QualitySample
	tiers  map[legKey]domain.QualityTier

	onChange TierChangeFunc
	logger   *zap.SugaredLogger
}

func NewQualityService(cfg *config.Config, logger *zap.SugaredLogger) *QualityService {
	return &QualityService{
		thresholds: []tierThreshold{
			{domain.TierExcellent, cfg.Quality.Excellent.MaxRTT, cfg.Quality.Excellent.MaxLoss},
			{domain.TierGood, cfg.Quality.Good.MaxRTT, cfg.Quality.Good.MaxLoss},
			{domain.TierFair, cfg.Quality.Fair.MaxRTT, cfg.Quality.Fair.MaxLoss},
			{domain.TierPoor, cfg.Quality.Poor.MaxRTT, cfg.Quality.Poor.MaxLoss},
		},
		latest: make(map[legKey]domain.QualitySample),
		tiers:  make(map[legKey]domain.QualityTier),
		logger: logger,
	}
}

// OnTierChange registers the callback fired on every tier change. Must be
// set during wiring, before samples flow.
func (q *QualityService) OnTierChange(fn TierChangeFunc) {
	q.onChange = fn
}

// Classify maps a sample to its tier: RTT and loss are evaluated
// independently and the worse of the two wins.
func (q *QualityService) Classify(sample domain.QualitySample) domain.QualityTier {
	rtt := time.Duration(sample.RoundTripTimeMs) * time.Millisecond

	rttTier := domain.TierCritical
	for _, th := range q.thresholds {
		if rtt <= th.maxRTT {
			rttTier = th.tier
			break
		}
	}

	lossTier := domain.TierCritical
	for _, th := range q.thresholds {
		if sample.PacketLossRatio <= th.maxLoss {
			lossTier = th.tier
			break
		}
	}

	return domain.WorstOf(rttTier, lossTier)
}

// Report records the newest sample for the reporting leg and returns the
// resulting tier. A tier change fires the registered callback.
func (q *QualityService) Report(sample domain.QualitySample) (domain.QualityTier, bool) {
	tier := q.Classify(sample)
	key := legKey{call: sample.CallID, reporter: sample.Reporter}

	q.mu.Lock()
	prev, had := q.tiers[key]
	q.latest[key] = sample
	q.tiers[key] = tier
	q.mu.Unlock()

	changed := !had || prev != tier
	if changed {
		q.logger.Infow("quality tier changed",
			"call_id", sample.CallID,
			"reporter", sample.Reporter,
			"from", prev,
			"to", tier,
			"rtt_ms", sample.RoundTripTimeMs,
			"loss", sample.PacketLossRatio,
		)
		if q.onChange != nil {
			q.onChange(sample.CallID, sample.Reporter, tier)
		}
	}
	return tier, changed
}

// ParseRTCP converts a raw RTCP compound packet into a quality sample by
// extracting fraction-lost and delay figures from its reception reports.
// Clients that surface raw stats instead of computed samples use this path.
func (q *QualityService) ParseRTCP(callID domain.CallID, reporter domain.UserID, raw []byte) (domain.QualitySample, error) {
	packets, err := rtcp.Unmarshal(raw)
	if err != nil {
		return domain.QualitySample{}, fmt.Errorf("failed to parse rtcp packet: %w", err)
	}

	var reports []rtcp.ReceptionReport
	for _, p := range packets {
		switch rr := p.(type) {
		case *rtcp.ReceiverReport:
			reports = append(reports, rr.Reports...)
		case *rtcp.SenderReport:
			reports = append(reports, rr.Reports...)
		}
	}
	if len(reports) == 0 {
		return domain.QualitySample{}, fmt.Errorf("rtcp packet carries no reception reports")
	}

	// Worst report wins, matching the worse-of-two tier rule.
	var worstLoss float64
	var worstDelay uint32
	for _, r := range reports {
		loss := float64(r.FractionLost) / 256.0
		if loss > worstLoss {
			worstLoss = loss
		}
		if r.Delay > worstDelay {
			worstDelay = r.Delay
		}
	}

	return domain.QualitySample{
		CallID:   callID,
		Reporter: reporter,
		// DLSR is expressed in 1/65536 seconds.
		RoundTripTimeMs: int64(worstDelay) * 1000 / 65536,
		PacketLossRatio: worstLoss,
		Timestamp:       time.Now(),
	}, nil
}

// ReportRTCP parses a raw RTCP packet and feeds the result through Report.
func (q *QualityService) ReportRTCP(callID domain.CallID, reporter domain.UserID, raw []byte) (domain.QualityTier, bool, error) {
	sample, err := q.ParseRTCP(callID, reporter, raw)
	if err != nil {
		return "", false, err
	}
	tier, changed := q.Report(sample)
	return tier, changed, nil
}

// Tier returns the current tier for a leg, if any sample was seen.
func (q *QualityService) Tier(callID domain.CallID, reporter domain.UserID) (domain.QualityTier, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	tier, ok := q.tiers[legKey{call: callID, reporter: reporter}]
	return tier, ok
}

// LastSample returns the newest sample for a leg.
func (q *QualityService) LastSample(callID domain.CallID, reporter domain.UserID) (domain.QualitySample, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	s, ok := q.latest[legKey{call: callID, reporter: reporter}]
	return s, ok
}

// Forget drops all state for an ended call.
func (q *QualityService) Forget(callID domain.CallID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for key := range q.tiers {
		if key.call == callID {
			delete(q.tiers, key)
			delete(q.latest, key)
		}
	}
}
