package monitoring

import (
	"time"

	"callnet/internal/core/domain"
	"callnet/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.CallMetrics on top of promauto
// registered collectors.
type PrometheusCollector struct {
	callsActive      prometheus.Gauge
	callsTotal       *prometheus.CounterVec
	callsEndedTotal  *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec

	callDuration prometheus.Histogram

	tierChangesTotal *prometheus.CounterVec
	directivesTotal  *prometheus.CounterVec
	deliveryFailures prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		callsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "callnet_calls_active",
			Help: "Number of live call sessions",
		}),

		callsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "callnet_calls_total",
			Help: "Total number of initiated calls",
		}, []string{"type"}),

		callsEndedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "callnet_calls_ended_total",
			Help: "Total number of ended calls by end reason",
		}, []string{"reason"}),

		transitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "callnet_transitions_total",
			Help: "State machine transition attempts by event and outcome",
		}, []string{"event", "outcome"}),

		callDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "callnet_call_duration_seconds",
			Help:    "Answer-to-end duration of completed calls",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),

		tierChangesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "callnet_quality_tier_changes_total",
			Help: "Quality tier changes by resulting tier",
		}, []string{"tier"}),

		directivesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "callnet_bitrate_directives_total",
			Help: "Bitrate directives sent by media type",
		}, []string{"media"}),

		deliveryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "callnet_notification_delivery_failures_total",
			Help: "Notifications that reached no socket of their recipient",
		}),
	}
}

var _ ports.CallMetrics = (*PrometheusCollector)(nil)

func (p *PrometheusCollector) CallInitiated(callType domain.CallType) {
	p.callsActive.Inc()
	p.callsTotal.WithLabelValues(string(callType)).Inc()
}

func (p *PrometheusCollector) CallEnded(reason domain.EndReason, duration time.Duration) {
	p.callsActive.Dec()
	p.callsEndedTotal.WithLabelValues(string(reason)).Inc()
	if duration > 0 {
		p.callDuration.Observe(duration.Seconds())
	}
}

func (p *PrometheusCollector) TransitionApplied(event domain.TransitionEvent, ok bool) {
	outcome := "rejected"
	if ok {
		outcome = "applied"
	}
	p.transitionsTotal.WithLabelValues(string(event), outcome).Inc()
}

func (p *PrometheusCollector) TierChanged(tier domain.QualityTier) {
	p.tierChangesTotal.WithLabelValues(string(tier)).Inc()
}

func (p *PrometheusCollector) DirectiveSent(media domain.MediaType) {
	p.directivesTotal.WithLabelValues(string(media)).Inc()
}

func (p *PrometheusCollector) DeliveryFailed() {
	p.deliveryFailures.Inc()
}
