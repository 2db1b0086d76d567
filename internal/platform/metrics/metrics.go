package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// completionsTotal counts AI calls by protocol (analysis, triage, chat) and
	// outcome (ok, transport, contract, model).
	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medmatch",
		Subsystem: "ai",
		Name:      "completions_total",
		Help:      "AI completion calls by protocol and outcome",
	}, []string{"protocol", "outcome"})

	completionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "medmatch",
		Subsystem: "ai",
		Name:      "completion_seconds",
		Help:      "AI completion latency",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180},
	}, []string{"protocol"})

	matchedDoctors = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "medmatch",
		Subsystem: "directory",
		Name:      "matched_doctors",
		Help:      "Doctors returned per match call",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 6},
	})

	specialtyFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medmatch",
		Subsystem: "specialty",
		Name:      "fallbacks_total",
		Help:      "Specialty strings that normalized to the fallback label",
	})

	synonymEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "medmatch",
		Subsystem: "specialty",
		Name:      "synonym_entries",
		Help:      "Entries in the loaded synonym index; 0 means degraded matching",
	})
)

// ObserveCompletion records one AI call.
func ObserveCompletion(protocol, outcome string, took time.Duration) {
	completionsTotal.WithLabelValues(protocol, outcome).Inc()
	completionSeconds.WithLabelValues(protocol).Observe(took.Seconds())
}

func ObserveMatch(n int) { matchedDoctors.Observe(float64(n)) }

func IncSpecialtyFallback() { specialtyFallbacks.Inc() }

func SetSynonymEntries(n int) { synonymEntries.Set(float64(n)) }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
