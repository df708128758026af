package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	PassesTotal       prometheus.Counter
	PassDuration      prometheus.Histogram
	PassItems         prometheus.Histogram
	ItemsTriaged      *prometheus.CounterVec
	ItemsSkipped      *prometheus.CounterVec
	GroupingsProposed *prometheus.CounterVec
	ActionsEmitted    *prometheus.CounterVec
	ThresholdAdjusts  *prometheus.CounterVec
	ThresholdValue    *prometheus.GaugeVec
	IngestsTotal      *prometheus.CounterVec
	FeedbackTotal     *prometheus.CounterVec
	DigestsSent       *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PassesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aegis_triage_passes_total",
			Help: "Total triage passes run.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_triage_pass_duration_seconds",
			Help:    "Duration of triage passes in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}),
		PassItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_triage_pass_items",
			Help:    "Work items evaluated per triage pass.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 .. ~2048
		}),
		ItemsTriaged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_work_items_triaged_total",
			Help: "Work items evaluated by triage outcome.",
		}, []string{"outcome"}),
		ItemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_work_items_skipped_total",
			Help: "Malformed work items skipped during triage, by reason.",
		}, []string{"reason"}),
		GroupingsProposed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_groupings_proposed_total",
			Help: "Smart groupings proposed, by strategy.",
		}, []string{"strategy"}),
		ActionsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_actions_emitted_total",
			Help: "Action list entries emitted, by priority.",
		}, []string{"priority"}),
		ThresholdAdjusts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_threshold_adjustments_total",
			Help: "Adaptive threshold adjustments, by threshold.",
		}, []string{"threshold"}),
		ThresholdValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aegis_threshold_value",
			Help: "Current adaptive threshold values.",
		}, []string{"threshold"}),
		IngestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_detections_ingested_total",
			Help: "Detections received at intake, by result.",
		}, []string{"result"}),
		FeedbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_feedback_total",
			Help: "Human feedback verdicts recorded, by action.",
		}, []string{"action"}),
		DigestsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_digest_notifications_total",
			Help: "Digest notifications attempted, by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.PassesTotal,
		m.PassDuration,
		m.PassItems,
		m.ItemsTriaged,
		m.ItemsSkipped,
		m.GroupingsProposed,
		m.ActionsEmitted,
		m.ThresholdAdjusts,
		m.ThresholdValue,
		m.IngestsTotal,
		m.FeedbackTotal,
		m.DigestsSent,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnItemTriaged: func(outcome string) {
			m.ItemsTriaged.WithLabelValues(outcome).Inc()
		},
		OnItemSkipped: func(reason string) {
			m.ItemsSkipped.WithLabelValues(reason).Inc()
		},
		OnGrouping: func(strategy string) {
			m.GroupingsProposed.WithLabelValues(strategy).Inc()
		},
		OnPass: func(e *PassEvent) {
			m.PassesTotal.Inc()
			m.PassDuration.Observe(e.Duration)
			m.PassItems.Observe(float64(e.Items))
		},
		OnThresholdAdjusted: func(threshold string, value float64) {
			m.ThresholdAdjusts.WithLabelValues(threshold).Inc()
			m.ThresholdValue.WithLabelValues(threshold).Set(value)
		},
	}
}
