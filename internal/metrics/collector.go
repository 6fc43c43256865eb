// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records Prometheus metrics for the agent pipeline.
type Collector struct {
	agentProcessesTotal  *prometheus.CounterVec
	agentProcessDuration *prometheus.HistogramVec

	reasoningStepsTotal *prometheus.CounterVec

	approvalRequestsTotal *prometheus.CounterVec
	approvalWaitDuration  *prometheus.HistogramVec

	sandboxExecutionsTotal  *prometheus.CounterVec
	sandboxExecutionSeconds *prometheus.HistogramVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers the metric families under the given namespace
// on the default registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return newCollector(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWith registers on an explicit registry. Tests use this to
// avoid cross-test registration collisions.
func NewCollectorWith(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	return newCollector(namespace, reg, logger)
}

func newCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.agentProcessesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_processes_total",
			Help:      "Total number of agent process calls",
		},
		[]string{"agent_id", "status"},
	)

	c.agentProcessDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_process_duration_seconds",
			Help:      "Agent process duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"agent_id"},
	)

	c.reasoningStepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_steps_total",
			Help:      "Total number of reasoning steps produced",
		},
		[]string{"agent_id", "strategy"},
	)

	c.approvalRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_requests_total",
			Help:      "Total number of approval requests by routing outcome",
		},
		[]string{"risk", "route"},
	)

	c.approvalWaitDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "approval_wait_duration_seconds",
			Help:      "Time spent waiting for human approval",
			Buckets:   []float64{1, 5, 15, 60, 300, 900},
		},
		[]string{"risk"},
	)

	c.sandboxExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sandbox_executions_total",
			Help:      "Total number of sandboxed action executions",
		},
		[]string{"action_type", "status"},
	)

	c.sandboxExecutionSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sandbox_execution_duration_seconds",
			Help:      "Sandboxed action execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action_type"},
	)

	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordAgentProcess records one orchestrator run.
func (c *Collector) RecordAgentProcess(agentID, status string, duration time.Duration) {
	c.agentProcessesTotal.WithLabelValues(agentID, status).Inc()
	c.agentProcessDuration.WithLabelValues(agentID).Observe(duration.Seconds())
}

// RecordReasoningSteps records how many steps a reasoning pass produced.
func (c *Collector) RecordReasoningSteps(agentID, strategy string, steps int) {
	c.reasoningStepsTotal.WithLabelValues(agentID, strategy).Add(float64(steps))
}

// RecordApprovalRequest records the routing outcome of an approval request.
func (c *Collector) RecordApprovalRequest(risk, route string) {
	c.approvalRequestsTotal.WithLabelValues(risk, route).Inc()
}

// RecordApprovalWait records time spent blocked on a human decision.
func (c *Collector) RecordApprovalWait(risk string, duration time.Duration) {
	c.approvalWaitDuration.WithLabelValues(risk).Observe(duration.Seconds())
}

// RecordSandboxExecution records one sandboxed action run.
func (c *Collector) RecordSandboxExecution(actionType, status string, duration time.Duration) {
	c.sandboxExecutionsTotal.WithLabelValues(actionType, status).Inc()
	c.sandboxExecutionSeconds.WithLabelValues(actionType).Observe(duration.Seconds())
}

// RecordLLMRequest records one completion call.
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}
