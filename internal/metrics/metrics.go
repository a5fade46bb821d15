// Package metrics holds the Prometheus collectors. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry           *prometheus.Registry
	probes             *prometheus.CounterVec
	scanMatches        *prometheus.CounterVec
	merges             *prometheus.CounterVec
	leads              prometheus.Gauge
	indicatorsRejected prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscout_probes_total",
			Help: "Subdomain probes by outcome.",
		}, []string{"outcome"}),
		scanMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscout_scan_matches_total",
			Help: "Page scan matches by method.",
		}, []string{"method"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscout_merges_total",
			Help: "Observation merges by result.",
		}, []string{"result"}),
		leads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadscout_leads",
			Help: "Leads currently held by the assembler.",
		}),
		indicatorsRejected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadscout_indicators_rejected",
			Help: "Indicators excluded from the current snapshot.",
		}),
	}
	reg.MustRegister(m.probes, m.scanMatches, m.merges, m.leads, m.indicatorsRejected)
	return m
}

// Handler serves the private registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Probe outcomes: found, miss, error, cancelled.
func (m *Metrics) Probe(outcome string) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ScanMatch(method string) {
	if m == nil {
		return
	}
	m.scanMatches.WithLabelValues(method).Inc()
}

// Merge results: created, updated, unchanged, rejected.
func (m *Metrics) Merge(result string) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(result).Inc()
}

func (m *Metrics) SetLeads(n int) {
	if m == nil {
		return
	}
	m.leads.Set(float64(n))
}

func (m *Metrics) SetIndicatorsRejected(n int) {
	if m == nil {
		return
	}
	m.indicatorsRejected.Set(float64(n))
}
