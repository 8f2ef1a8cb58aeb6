package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threadbot_sessions_created_total",
		Help: "Total review sessions created",
	})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "threadbot_sessions_active",
		Help: "Review sessions currently held in memory",
	})
	Revisions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threadbot_revisions_total",
		Help: "Total successful draft revisions",
	})
	Finalizations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threadbot_finalize_total",
		Help: "Finalize attempts by result",
	}, []string{"result"})
	GenerationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threadbot_generation_errors_total",
		Help: "Total failed generation calls",
	})
	GenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "threadbot_generation_duration_seconds",
		Help:    "Generation call duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threadbot_commands_total",
		Help: "Chat commands and actions handled, by name",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(SessionsCreated, ActiveSessions, Revisions, Finalizations,
		GenerationErrors, GenerationDuration, Commands)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveGeneration records a generation call duration.
func ObserveGeneration(start time.Time) {
	GenerationDuration.Observe(time.Since(start).Seconds())
}

// IncFinalize counts a finalize attempt; result is "ok" or "error".
func IncFinalize(result string) { Finalizations.WithLabelValues(result).Inc() }

// IncCommand counts a handled chat command or button action.
func IncCommand(name string) { Commands.WithLabelValues(name).Inc() }
