package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the
// broadcast and feed pipeline.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	eventsEmitted   *prometheus.CounterVec
	fanoutEvents    prometheus.Counter
	publishOutcomes *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	feedDuration    *prometheus.HistogramVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers the core collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	eventsEmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_events_emitted_total",
		Help: "Timeline events accepted by the emitter",
	}, []string{"visibility_scope"})

	fanoutEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_fanout_events_total",
		Help: "Timeline events derived from broadcast fan-out",
	})

	publishOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_publish_total",
		Help: "Broadcast publish attempts by outcome",
	}, []string{"outcome"})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "broadcast_sweep_duration_seconds",
		Help:    "Duration of publish sweep runs",
		Buckets: prometheus.DefBuckets,
	})

	feedDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_query_duration_seconds",
		Help:    "Duration of feed queries by viewer type",
		Buckets: prometheus.DefBuckets,
	}, []string{"viewer", "cursor"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "membership_cache_latency_seconds",
		Help:    "Latency for membership cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "membership_cache_hits_total",
		Help: "Membership cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "membership_cache_misses_total",
		Help: "Membership cache misses",
	})

	registry.MustRegister(eventsEmitted, fanoutEvents, publishOutcomes, sweepDuration, feedDuration, cacheLatency, cacheHits, cacheMisses)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		eventsEmitted:   eventsEmitted,
		fanoutEvents:    fanoutEvents,
		publishOutcomes: publishOutcomes,
		sweepDuration:   sweepDuration,
		feedDuration:    feedDuration,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the /metrics endpoint handler.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// RecordEventEmitted counts one accepted event.
func (s *MetricsService) RecordEventEmitted(scope models.VisibilityScope) {
	if s == nil {
		return
	}
	s.eventsEmitted.WithLabelValues(string(scope)).Inc()
}

// RecordFanOut counts derived events written by one publish.
func (s *MetricsService) RecordFanOut(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.fanoutEvents.Add(float64(n))
}

// RecordPublish counts a publish attempt outcome: published, skipped or failed.
func (s *MetricsService) RecordPublish(outcome string) {
	if s == nil {
		return
	}
	s.publishOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveSweep records one sweep run duration.
func (s *MetricsService) ObserveSweep(d time.Duration) {
	if s == nil {
		return
	}
	s.sweepDuration.Observe(d.Seconds())
}

// ObserveFeedQuery records one feed query duration.
func (s *MetricsService) ObserveFeedQuery(viewer models.UserType, cursored bool, d time.Duration) {
	if s == nil {
		return
	}
	s.feedDuration.WithLabelValues(string(viewer), strconv.FormatBool(cursored)).Observe(d.Seconds())
}

// RecordCacheOperation records a membership cache hit or miss.
func (s *MetricsService) RecordCacheOperation(hit bool, d time.Duration) {
	if s == nil {
		return
	}
	s.cacheLatency.Observe(d.Seconds())
	if hit {
		s.cacheHits.Inc()
	} else {
		s.cacheMisses.Inc()
	}
}
