package services

import (
	"sync"
	"testing"
	"time"

	"callnet/internal/core/domain"
	"callnet/pkg/config"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestQualityService() *QualityService {
	return NewQualityService(config.DefaultConfig(), zap.NewNop().Sugar())
}

func sample(rttMs int64, loss float64) domain.QualitySample {
	return domain.QualitySample{
		CallID:          "call-1",
		Reporter:        "alice",
		RoundTripTimeMs: rttMs,
		PacketLossRatio: loss,
		Timestamp:       time.Now(),
	}
}

func TestQualityService_Classify(t *testing.T) {
	q := newTestQualityService()

	tests := []struct {
		name string
		rtt  int64
		loss float64
		want domain.QualityTier
	}{
		{"low rtt and loss", 50, 0.005, domain.TierExcellent},
		{"at excellent boundary", 100, 0.01, domain.TierExcellent},
		{"good rtt", 150, 0.005, domain.TierGood},
		{"fair rtt good loss", 250, 0.02, domain.TierFair},
		{"poor rtt", 700, 0.0, domain.TierPoor},
		{"rtt beyond poor", 900, 0.0, domain.TierCritical},
		{"loss beyond poor", 10, 0.5, domain.TierCritical},
		{"loss drags good rtt down", 50, 0.08, domain.TierPoor},
		{"rtt drags clean loss down", 350, 0.001, domain.TierFair},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, q.Classify(sample(tt.rtt, tt.loss)))
		})
	}
}

func TestQualityService_ReportTracksChanges(t *testing.T) {
	q := newTestQualityService()

	tier, changed := q.Report(sample(50, 0.005))
	assert.Equal(t, domain.TierExcellent, tier)
	assert.True(t, changed, "first sample always counts as a change")

	_, changed = q.Report(sample(60, 0.008))
	assert.False(t, changed, "same tier, no change")

	tier, changed = q.Report(sample(500, 0.01))
	assert.Equal(t, domain.TierPoor, tier)
	assert.True(t, changed)
}

func TestQualityService_TiersArePerLeg(t *testing.T) {
	q := newTestQualityService()

	q.Report(sample(50, 0.005))

	bobSample := sample(500, 0.08)
	bobSample.Reporter = "bob"
	q.Report(bobSample)

	tier, ok := q.Tier("call-1", "alice")
	assert.True(t, ok)
	assert.Equal(t, domain.TierExcellent, tier)

	tier, ok = q.Tier("call-1", "bob")
	assert.True(t, ok)
	assert.Equal(t, domain.TierPoor, tier)
}

func TestQualityService_OnTierChangeCallback(t *testing.T) {
	q := newTestQualityService()

	var mu sync.Mutex
	var fired []domain.QualityTier
	q.OnTierChange(func(callID domain.CallID, reporter domain.UserID, tier domain.QualityTier) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, domain.CallID("call-1"), callID)
		assert.Equal(t, domain.UserID("alice"), reporter)
		fired = append(fired, tier)
	})

	q.Report(sample(50, 0.005))
	q.Report(sample(55, 0.005)) // same tier, no callback
	q.Report(sample(900, 0.2))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.QualityTier{domain.TierExcellent, domain.TierCritical}, fired)
}

func TestQualityService_ForgetDropsCallState(t *testing.T) {
	q := newTestQualityService()

	q.Report(sample(50, 0.005))
	other := sample(50, 0.005)
	other.CallID = "call-2"
	q.Report(other)

	q.Forget("call-1")

	_, ok := q.Tier("call-1", "alice")
	assert.False(t, ok)
	_, ok = q.Tier("call-2", "alice")
	assert.True(t, ok)
}

func TestQualityService_ParseRTCP(t *testing.T) {
	q := newTestQualityService()

	rr := &rtcp.ReceiverReport{
		SSRC: 1,
		Reports: []rtcp.ReceptionReport{
			{SSRC: 2, FractionLost: 64, Delay: 65536}, // 25% loss, 1s delay
			{SSRC: 3, FractionLost: 13, Delay: 3277},
		},
	}
	raw, err := rr.Marshal()
	assert.NoError(t, err)

	s, err := q.ParseRTCP("call-1", "alice", raw)
	assert.NoError(t, err)
	assert.Equal(t, domain.CallID("call-1"), s.CallID)
	assert.Equal(t, domain.UserID("alice"), s.Reporter)
	// Worst report wins.
	assert.InDelta(t, 0.25, s.PacketLossRatio, 0.001)
	assert.Equal(t, int64(1000), s.RoundTripTimeMs)
}

func TestQualityService_ParseRTCPGarbage(t *testing.T) {
	q := newTestQualityService()

	_, err := q.ParseRTCP("call-1", "alice", []byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}

func TestQualityService_ReportRTCPFeedsTier(t *testing.T) {
	q := newTestQualityService()

	rr := &rtcp.ReceiverReport{
		SSRC:    1,
		Reports: []rtcp.ReceptionReport{{SSRC: 2, FractionLost: 0, Delay: 655}}, // ~10ms
	}
	raw, err := rr.Marshal()
	assert.NoError(t, err)

	tier, changed, err := q.ReportRTCP("call-1", "alice", raw)
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.TierExcellent, tier)
}
