package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyforge_api_request_duration_seconds",
			Help:    "API request duration in seconds by model and endpoint",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"model", "endpoint", "status"},
	)

	rateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyforge_rate_limiter_wait_duration_seconds",
			Help:    "Rate limiter wait duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"model"},
	)

	// Pipeline metrics
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyforge_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
		},
		[]string{"stage"},
	)

	stageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyforge_stage_outcomes_total",
			Help: "Stage results by outcome (ok, normalized, fallback)",
		},
		[]string{"stage", "outcome"},
	)

	planOverlapWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storyforge_plan_overlap_warnings_total",
			Help: "Chapter plan beats flagged as likely repetitions",
		},
	)

	activeWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storyforge_active_workers",
			Help: "Number of active workers by phase",
		},
		[]string{"phase"},
	)

	// Library metrics
	storiesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyforge_stories_persisted_total",
			Help: "Stories written to the library",
		},
		[]string{"status"},
	)

	mediaAssets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyforge_media_assets_total",
			Help: "Media assets produced by kind and source (generated, cached, placeholder)",
		},
		[]string{"kind", "source"},
	)
)

// Collector provides convenience methods for recording metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// RecordAPIRequest records an API request duration
func (c *Collector) RecordAPIRequest(model, endpoint string, duration time.Duration, success bool) {
	if c == nil {
		return
	}
	apiRequestDuration.WithLabelValues(model, endpoint, statusLabel(success)).Observe(duration.Seconds())
}

// RecordRateLimiterWait records rate limiter wait time
func (c *Collector) RecordRateLimiterWait(model string, duration time.Duration) {
	if c == nil {
		return
	}
	rateLimiterWaitDuration.WithLabelValues(model).Observe(duration.Seconds())
	if duration > 5*time.Second {
		c.logger.Debug("Long rate limiter wait", "model", model, "wait", duration)
	}
}

// RecordStage records how long a pipeline stage took
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	if c == nil {
		return
	}
	stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordOutcome counts a stage result
func (c *Collector) RecordOutcome(stage, outcome string) {
	if c == nil {
		return
	}
	stageOutcomes.WithLabelValues(stage, outcome).Inc()
}

// IncrementOverlapWarnings counts a repetition warning on the chapter plan
func (c *Collector) IncrementOverlapWarnings() {
	if c == nil {
		return
	}
	planOverlapWarnings.Inc()
}

// SetActiveWorkers sets the number of active workers
func (c *Collector) SetActiveWorkers(phase string, count int) {
	if c == nil {
		return
	}
	activeWorkers.WithLabelValues(phase).Set(float64(count))
}

// RecordPersisted counts a library write
func (c *Collector) RecordPersisted(success bool) {
	if c == nil {
		return
	}
	storiesPersisted.WithLabelValues(statusLabel(success)).Inc()
}

// RecordMediaAsset counts a produced media file
func (c *Collector) RecordMediaAsset(kind, source string) {
	if c == nil {
		return
	}
	mediaAssets.WithLabelValues(kind, source).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
