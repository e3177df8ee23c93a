package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService collects scheduling counters on a private registry.
type MetricsService struct {
	registry           *prometheus.Registry
	slotsGenerated     prometheus.Counter
	unresolvedSubjects prometheus.Counter
	generationDuration prometheus.Histogram
}

// NewMetricsService registers the scheduling metrics on a fresh registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		slotsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shiksha",
			Subsystem: "scheduling",
			Name:      "slots_generated_total",
			Help:      "Timetable slots created by generation runs.",
		}),
		unresolvedSubjects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shiksha",
			Subsystem: "scheduling",
			Name:      "unresolved_subjects_total",
			Help:      "Subjects left without any slot after a generation run.",
		}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shiksha",
			Subsystem: "scheduling",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of per-class generation runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(m.slotsGenerated, m.unresolvedSubjects, m.generationDuration)
	return m
}

// ObserveGeneration records the outcome of one class generation run.
func (m *MetricsService) ObserveGeneration(slotsCreated, unresolved int, duration time.Duration) {
	m.slotsGenerated.Add(float64(slotsCreated))
	m.unresolvedSubjects.Add(float64(unresolved))
	m.generationDuration.Observe(duration.Seconds())
}

// Handler exposes the registry for the /metrics endpoint.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
