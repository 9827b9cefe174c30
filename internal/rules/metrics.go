package rules

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"strider/internal/finding"
)

// Metrics holds the Prometheus instruments the engine records into.
type Metrics struct {
	AnalysesTotal   *prometheus.CounterVec
	RuleEvaluations *prometheus.CounterVec
	RuleDuration    *prometheus.HistogramVec
	FindingsTotal   *prometheus.CounterVec
}

// NewMetrics registers the engine's instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		AnalysesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "strider_analyses_total",
				Help: "Total number of model analyses",
			},
			[]string{"status"},
		),
		RuleEvaluations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "strider_rule_evaluations_total",
				Help: "Total number of rule evaluations",
			},
			[]string{"rule", "status"},
		),
		RuleDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strider_rule_duration_seconds",
				Help:    "Rule evaluation duration in seconds",
				Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1.0},
			},
			[]string{"rule"},
		),
		FindingsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "strider_findings_total",
				Help: "Total number of findings emitted",
			},
			[]string{"rule", "category", "severity"},
		),
	}
}

// RecordRule records one rule evaluation. A nil receiver records nothing.
func (mt *Metrics) RecordRule(rule, status string, duration time.Duration, fs []finding.Finding) {
	if mt == nil {
		return
	}
	mt.RuleEvaluations.WithLabelValues(rule, status).Inc()
	mt.RuleDuration.WithLabelValues(rule).Observe(duration.Seconds())
	for _, f := range fs {
		mt.FindingsTotal.WithLabelValues(rule, string(f.Category), string(f.Severity)).Inc()
	}
}

// RecordAnalysis records the outcome of one Analyze call.
func (mt *Metrics) RecordAnalysis(status string) {
	if mt == nil {
		return
	}
	mt.AnalysesTotal.WithLabelValues(status).Inc()
}
