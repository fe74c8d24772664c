package services

import (
	"sync"

	"callnet/internal/core/domain"
	"callnet/pkg/config"

	"go.uber.org/zap"
)

// tierScale maps a quality tier to the fraction of the baseline bitrate a
// client should target. Monotonically non-increasing as the tier worsens.
var tierScale = map[domain.QualityTier]float64{
	domain.TierExcellent: 1.0,
	domain.TierGood:      0.80,
	domain.TierFair:      0.55,
	domain.TierPoor:      0.30,
	domain.TierCritical:  0.0, // clamped up to the floor
}

// BitrateService computes target encoder bounds per media type from the
// current quality tier. Directives are derived values: recomputed on every
// tier change, never persisted.
type BitrateService struct {
	video config.BitrateBounds
	audio config.BitrateBounds

	// Last directive per (call, media) so unchanged targets are not re-sent.
	mu   sync.Mutex
	last map[domain.CallID]map[domain.MediaType]int

	logger *zap.SugaredLogger
}

func NewBitrateService(cfg *config.Config, logger *zap.SugaredLogger) *BitrateService {
	return &BitrateService{
		video:  cfg.Bitrate.Video,
		audio:  cfg.Bitrate.Audio,
		last:   make(map[domain.CallID]map[domain.MediaType]int),
		logger: logger,
	}
}

// ComputeDirective maps a tier to bounded encoder targets for one media
// type. The target scales down from the configured baseline as the tier
// worsens and is clamped to the fixed floor/ceiling.
func (b *BitrateService) ComputeDirective(callID domain.CallID, media domain.MediaType, tier domain.QualityTier) domain.BitrateDirective {
	bounds := b.video
	if media == domain.MediaAudio {
		bounds = b.audio
	}

	target := int(float64(bounds.BaselineBps) * tierScale[tier])
	if target < bounds.MinBps {
		target = bounds.MinBps
	}
	if target > bounds.MaxBps {
		target = bounds.MaxBps
	}

	return domain.BitrateDirective{
		CallID:    callID,
		MediaType: media,
		MinBps:    bounds.MinBps,
		MaxBps:    bounds.MaxBps,
		TargetBps: target,
	}
}

// DirectivesFor returns the directives a tier change produces for the call:
// audio always, video only for video calls. Unchanged targets are filtered
// out to avoid a signaling storm on repeated identical samples.
func (b *BitrateService) DirectivesFor(callID domain.CallID, callType domain.CallType, tier domain.QualityTier) []domain.BitrateDirective {
	media := []domain.MediaType{domain.MediaAudio}
	if callType == domain.CallTypeVideo {
		media = append(media, domain.MediaVideo)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	perCall, ok := b.last[callID]
	if !ok {
		perCall = make(map[domain.MediaType]int)
		b.last[callID] = perCall
	}

	var out []domain.BitrateDirective
	for _, m := range media {
		d := b.ComputeDirective(callID, m, tier)
		if prev, seen := perCall[m]; seen && prev == d.TargetBps {
			continue
		}
		perCall[m] = d.TargetBps
		out = append(out, d)

		b.logger.Debugw("bitrate directive computed",
			"call_id", callID,
			"media", m,
			"tier", tier,
			"target_bps", d.TargetBps,
		)
	}
	return out
}

// Forget drops cached targets for an ended call.
func (b *BitrateService) Forget(callID domain.CallID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.last, callID)
}
