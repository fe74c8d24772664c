package domain

import "time"

// QualityTier is a discrete classification of one call leg's network health.
type QualityTier string

const (
	TierExcellent QualityTier = "excellent"
	TierGood      QualityTier = "good"
	TierFair      QualityTier = "fair"
	TierPoor      QualityTier = "poor"
	TierCritical  QualityTier = "critical"
)

// tierRank orders tiers from best to worst for comparisons.
var tierRank = map[QualityTier]int{
	TierExcellent: 0,
	TierGood:      1,
	TierFair:      2,
	TierPoor:      3,
	TierCritical:  4,
}

// Worse reports whether a is a worse tier than b.
func (a QualityTier) Worse(b QualityTier) bool {
	return tierRank[a] > tierRank[b]
}

// WorstOf returns the worse of the two tiers.
func WorstOf(a, b QualityTier) QualityTier {
	if a.Worse(b) {
		return a
	}
	return b
}

// QualitySample is one periodic network-quality report for a call leg.
// Ephemeral: only the newest sample per leg is retained.
type QualitySample struct {
	CallID          CallID
	Reporter        UserID
	RoundTripTimeMs int64
	PacketLossRatio float64
	Timestamp       time.Time
}

type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// BitrateDirective caps and targets a client's encoder output rate.
// Derived on every tier change, never persisted.
type BitrateDirective struct {
	CallID    CallID    `json:"call_id"`
	MediaType MediaType `json:"media_type"`
	MinBps    int       `json:"min_bps"`
	MaxBps    int       `json:"max_bps"`
	TargetBps int       `json:"target_bps"`
}
