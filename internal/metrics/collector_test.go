package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestCollector() *Collector {
	return NewCollectorWith("cortex_test", prometheus.NewRegistry(), zap.NewNop())
}

func TestNewCollector(t *testing.T) {
	collector := newTestCollector()

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.agentProcessesTotal)
	assert.NotNil(t, collector.reasoningStepsTotal)
	assert.NotNil(t, collector.approvalRequestsTotal)
	assert.NotNil(t, collector.sandboxExecutionsTotal)
	assert.NotNil(t, collector.llmRequestsTotal)
}

func TestCollector_RecordAgentProcess(t *testing.T) {
	collector := newTestCollector()

	collector.RecordAgentProcess("agent-1", "completed", 250*time.Millisecond)
	collector.RecordAgentProcess("agent-1", "error", 10*time.Millisecond)

	count := testutil.CollectAndCount(collector.agentProcessesTotal)
	assert.Equal(t, 2, count)

	value := testutil.ToFloat64(collector.agentProcessesTotal.WithLabelValues("agent-1", "completed"))
	assert.Equal(t, 1.0, value)
}

func TestCollector_RecordReasoningSteps(t *testing.T) {
	collector := newTestCollector()

	collector.RecordReasoningSteps("agent-1", "chain_of_thought", 3)
	collector.RecordReasoningSteps("agent-1", "chain_of_thought", 2)

	value := testutil.ToFloat64(collector.reasoningStepsTotal.WithLabelValues("agent-1", "chain_of_thought"))
	assert.Equal(t, 5.0, value)
}

func TestCollector_RecordApprovalRequest(t *testing.T) {
	collector := newTestCollector()

	collector.RecordApprovalRequest("low", "auto_approved")
	collector.RecordApprovalRequest("high", "pending")
	collector.RecordApprovalRequest("high", "pending")

	value := testutil.ToFloat64(collector.approvalRequestsTotal.WithLabelValues("high", "pending"))
	assert.Equal(t, 2.0, value)
}

func TestCollector_RecordSandboxExecution(t *testing.T) {
	collector := newTestCollector()

	collector.RecordSandboxExecution("command", "success", 5*time.Millisecond)
	collector.RecordSandboxExecution("command", "blocked", time.Millisecond)

	count := testutil.CollectAndCount(collector.sandboxExecutionsTotal)
	assert.Equal(t, 2, count)
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	collector := newTestCollector()

	collector.RecordLLMRequest("anthropic", "claude-3-haiku-20240307", "success", 500*time.Millisecond)

	count := testutil.CollectAndCount(collector.llmRequestsTotal)
	assert.Greater(t, count, 0)
}

func TestCollector_CacheCounters(t *testing.T) {
	collector := newTestCollector()

	collector.RecordCacheHit("memory")
	collector.RecordCacheHit("memory")
	collector.RecordCacheMiss("memory")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheMisses.WithLabelValues("memory")))
}
