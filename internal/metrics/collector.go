// Package metrics exposes the automation loop's Prometheus instrumentation.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements automation.Metrics on top of Prometheus. One
// instance registers once; the loop calls it from multiple goroutines.
type Collector struct {
	ticksDropped     prometheus.Counter
	candidateChanges prometheus.Counter
	escalations      *prometheus.CounterVec
	analysisTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	dispatches       prometheus.Counter
	verifications    *prometheus.CounterVec
}

// NewCollector registers the loop metrics with reg under the given
// namespace. Pass prometheus.DefaultRegisterer outside tests.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ticksDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_dropped_total",
			Help:      "Ticks skipped because an escalation was still in flight",
		}),
		candidateChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidate_changes_total",
			Help:      "Ticks whose text passed the local change pre-filter",
		}),
		escalations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Change-oracle consultations by verdict",
		}, []string{"verdict"}),
		analysisTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_total",
			Help:      "Full vision analyses by outcome",
		}, []string{"outcome"}),
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of full vision analyses",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		dispatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_dispatched_total",
			Help:      "UI actions handed to the extension bridge",
		}),
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Selection verification checks by result",
		}, []string{"result"}),
	}
}

// TickDropped implements automation.Metrics.
func (c *Collector) TickDropped() {
	c.ticksDropped.Inc()
}

// CandidateChange implements automation.Metrics.
func (c *Collector) CandidateChange() {
	c.candidateChanges.Inc()
}

// Escalation implements automation.Metrics.
func (c *Collector) Escalation(isNew bool) {
	verdict := "unchanged"
	if isNew {
		verdict = "new"
	}
	c.escalations.WithLabelValues(verdict).Inc()
}

// AnalysisObserved implements automation.Metrics.
func (c *Collector) AnalysisObserved(outcome string, elapsed time.Duration) {
	c.analysisTotal.WithLabelValues(outcome).Inc()
	c.analysisDuration.Observe(elapsed.Seconds())
}

// DispatchSent implements automation.Metrics.
func (c *Collector) DispatchSent(n int) {
	c.dispatches.Add(float64(n))
}

// VerificationObserved implements automation.Metrics.
func (c *Collector) VerificationObserved(ok bool) {
	result := "unconfirmed"
	if ok {
		result = "confirmed"
	}
	c.verifications.WithLabelValues(result).Inc()
}
