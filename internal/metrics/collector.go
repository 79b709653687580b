// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the engine's Prometheus metrics. A nil *Collector
// is valid and records nothing, so callers never need nil checks.
type Collector struct {
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec

	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec

	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	cacheMisses prometheus.Counter

	checkpointsTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector registered on the default registry
// under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Total number of workflow executions by terminal status",
		},
		[]string{"workflow", "status"},
	)
	c.executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_execution_duration_seconds",
			Help:      "Workflow execution duration",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"workflow", "status"},
	)

	c.stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_steps_total",
			Help:      "Total number of step results by terminal status",
		},
		[]string{"workflow", "step", "status"},
	)
	c.stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_step_duration_seconds",
			Help:      "Step execution duration",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"workflow", "step", "status"},
	)

	c.toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_tool_calls_total",
			Help:      "Total number of tool invocations by outcome",
		},
		[]string{"tool", "outcome"},
	)
	c.toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_tool_call_duration_seconds",
			Help:      "Tool invocation duration",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"tool", "outcome"},
	)

	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_tool_cache_hits_total",
			Help:      "Tool cache hits by tier (execution or shared)",
		},
		[]string{"tier"},
	)
	c.cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_tool_cache_misses_total",
			Help:      "Tool cache misses",
		},
	)

	c.checkpointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_checkpoints_total",
			Help:      "Checkpoints written by type",
		},
		[]string{"type"},
	)

	return c
}

// RecordExecution records a terminal workflow execution.
func (c *Collector) RecordExecution(workflow, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.executionsTotal.WithLabelValues(workflow, status).Inc()
	c.executionDuration.WithLabelValues(workflow, status).Observe(duration.Seconds())
}

// RecordStep records a terminal step result.
func (c *Collector) RecordStep(workflow, step, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.stepsTotal.WithLabelValues(workflow, step, status).Inc()
	c.stepDuration.WithLabelValues(workflow, step, status).Observe(duration.Seconds())
}

// RecordToolCall records one tool invocation.
func (c *Collector) RecordToolCall(tool, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	c.toolCallDuration.WithLabelValues(tool, outcome).Observe(duration.Seconds())
}

// RecordCacheHit records a tool cache hit for the given tier.
func (c *Collector) RecordCacheHit(tier string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a tool cache miss.
func (c *Collector) RecordCacheMiss() {
	if c == nil {
		return
	}
	c.cacheMisses.Inc()
}

// RecordCheckpoint records a written checkpoint.
func (c *Collector) RecordCheckpoint(cpType string) {
	if c == nil {
		return
	}
	c.checkpointsTotal.WithLabelValues(cpType).Inc()
}
