package mlops

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateExperimentDefaultsNameFromPrompt(t *testing.T) {
	tracker := NewTracker(zap.NewNop())

	long := strings.Repeat("analyze the quarterly numbers ", 5)
	exp := tracker.CreateExperiment("", long, nil)
	assert.Len(t, exp.Name, 53)
	assert.True(t, strings.HasSuffix(exp.Name, "..."))
	assert.Equal(t, ExperimentRunning, exp.Status)
	assert.NotEmpty(t, exp.ID)

	short := tracker.CreateExperiment("", "short prompt", nil)
	assert.Equal(t, "short prompt", short.Name)

	named := tracker.CreateExperiment("baseline", "short prompt", nil)
	assert.Equal(t, "baseline", named.Name)
}

func TestExperimentLifecycle(t *testing.T) {
	tracker := NewTracker(zap.NewNop())
	exp := tracker.CreateExperiment("run-1", "p", map[string]any{"temp": 0.7})

	require.NoError(t, tracker.LogMetrics(exp.ID, map[string]float64{"accuracy": 0.91}))
	require.NoError(t, tracker.LogMetrics(exp.ID, map[string]float64{"latency_ms": 120, "accuracy": 0.93}))
	require.NoError(t, tracker.CompleteExperiment(exp.ID, false))

	got, err := tracker.GetExperiment(exp.ID)
	require.NoError(t, err)
	assert.Equal(t, ExperimentCompleted, got.Status)
	assert.InDelta(t, 0.93, got.Metrics["accuracy"], 1e-9)
	assert.InDelta(t, 120, got.Metrics["latency_ms"], 1e-9)
	require.NotNil(t, got.CompletedAt)
}

func TestExperimentFailedStatus(t *testing.T) {
	tracker := NewTracker(zap.NewNop())
	exp := tracker.CreateExperiment("run-2", "p", nil)

	require.NoError(t, tracker.CompleteExperiment(exp.ID, true))
	got, err := tracker.GetExperiment(exp.ID)
	require.NoError(t, err)
	assert.Equal(t, ExperimentFailed, got.Status)
}

func TestExperimentUnknownID(t *testing.T) {
	tracker := NewTracker(zap.NewNop())

	assert.ErrorIs(t, tracker.LogMetrics("nope", nil), ErrExperimentNotFound)
	assert.ErrorIs(t, tracker.CompleteExperiment("nope", false), ErrExperimentNotFound)
	_, err := tracker.GetExperiment("nope")
	assert.ErrorIs(t, err, ErrExperimentNotFound)
}

func TestModelRegistry(t *testing.T) {
	tracker := NewTracker(zap.NewNop())

	_, err := tracker.RegisterModel("", "1.0", StageDev, nil)
	assert.Error(t, err)
	_, err = tracker.RegisterModel("reasoner", "1.0", "canary", nil)
	assert.Error(t, err)

	_, err = tracker.RegisterModel("reasoner", "1.0", StageDev, nil)
	require.NoError(t, err)
	_, err = tracker.RegisterModel("reasoner", "1.1", StageBeta, nil)
	require.NoError(t, err)
	_, err = tracker.RegisterModel("classifier", "2.0", StageStable, nil)
	require.NoError(t, err)

	mv, err := tracker.GetModel("reasoner", "1.1")
	require.NoError(t, err)
	assert.Equal(t, StageBeta, mv.Stage)

	_, err = tracker.GetModel("reasoner", "9.9")
	assert.ErrorIs(t, err, ErrModelNotFound)

	models := tracker.ListModels()
	require.Len(t, models, 3)
	assert.Equal(t, "classifier", models[0].Name)
	assert.Equal(t, "1.0", models[1].Version)
	assert.Equal(t, "1.1", models[2].Version)
}

func TestPromoteModel(t *testing.T) {
	tracker := NewTracker(zap.NewNop())
	_, err := tracker.RegisterModel("reasoner", "1.0", StageDev, nil)
	require.NoError(t, err)

	require.NoError(t, tracker.PromoteModel("reasoner", "1.0", StageStable))
	mv, err := tracker.GetModel("reasoner", "1.0")
	require.NoError(t, err)
	assert.Equal(t, StageStable, mv.Stage)

	assert.ErrorIs(t, tracker.PromoteModel("reasoner", "2.0", StageStable), ErrModelNotFound)
	assert.Error(t, tracker.PromoteModel("reasoner", "1.0", "canary"))
}

func TestProductionMetricsAggregation(t *testing.T) {
	tracker := NewTracker(zap.NewNop())

	tracker.RecordRequest("claude-3-haiku-20240307", 100*time.Millisecond, false)
	tracker.RecordRequest("claude-3-haiku-20240307", 300*time.Millisecond, true)

	pm, ok := tracker.GetProductionMetrics("claude-3-haiku-20240307")
	require.True(t, ok)
	assert.Equal(t, int64(2), pm.Requests)
	assert.Equal(t, int64(1), pm.Errors)
	assert.InDelta(t, 200, pm.AvgLatencyMs(), 1e-9)
	assert.InDelta(t, 0.5, pm.ErrorRate(), 1e-9)

	_, ok = tracker.GetProductionMetrics("unknown")
	assert.False(t, ok)
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tracker := NewTracker(zap.NewNop())
	exp := tracker.CreateExperiment("concurrent", "p", nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tracker.LogMetrics(exp.ID, map[string]float64{"n": 1})
			tracker.RecordRequest("m", time.Millisecond, false)
		}()
	}
	wg.Wait()

	pm, ok := tracker.GetProductionMetrics("m")
	require.True(t, ok)
	assert.Equal(t, int64(20), pm.Requests)
}
