package mlops

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrExperimentNotFound is returned for unknown experiment ids.
var ErrExperimentNotFound = errors.New("experiment not found")

// ErrModelNotFound is returned for unregistered model versions.
var ErrModelNotFound = errors.New("model version not found")

const experimentNameLimit = 50

// Tracker is an in-memory experiment and model registry.
type Tracker struct {
	mu          sync.RWMutex
	experiments map[string]*Experiment
	models      map[string]*ModelVersion
	production  map[string]*ProductionMetrics
	logger      *zap.Logger
}

// NewTracker returns an empty tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		experiments: make(map[string]*Experiment),
		models:      make(map[string]*ModelVersion),
		production:  make(map[string]*ProductionMetrics),
		logger:      logger.With(zap.String("component", "mlops_tracker")),
	}
}

// CreateExperiment starts tracking a run. The name defaults to a prompt
// excerpt when empty.
func (t *Tracker) CreateExperiment(name, prompt string, config map[string]any) *Experiment {
	if name == "" {
		name = prompt
		if len(name) > experimentNameLimit {
			name = name[:experimentNameLimit] + "..."
		}
	}

	exp := &Experiment{
		ID:        uuid.NewString(),
		Name:      name,
		Prompt:    prompt,
		Config:    config,
		Metrics:   make(map[string]float64),
		Status:    ExperimentRunning,
		StartedAt: time.Now(),
	}

	t.mu.Lock()
	t.experiments[exp.ID] = exp
	t.mu.Unlock()

	t.logger.Debug("experiment created", zap.String("id", exp.ID), zap.String("name", exp.Name))
	return exp
}

// LogMetrics merges metric values into a running experiment.
func (t *Tracker) LogMetrics(id string, metrics map[string]float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	exp, ok := t.experiments[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrExperimentNotFound, id)
	}
	for k, v := range metrics {
		exp.Metrics[k] = v
	}
	return nil
}

// CompleteExperiment marks a run finished.
func (t *Tracker) CompleteExperiment(id string, failed bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	exp, ok := t.experiments[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrExperimentNotFound, id)
	}
	now := time.Now()
	exp.CompletedAt = &now
	if failed {
		exp.Status = ExperimentFailed
	} else {
		exp.Status = ExperimentCompleted
	}
	return nil
}

// GetExperiment returns a copy of one experiment.
func (t *Tracker) GetExperiment(id string) (*Experiment, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	exp, ok := t.experiments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExperimentNotFound, id)
	}
	cp := *exp
	return &cp, nil
}

// RegisterModel records a model version at a rollout stage.
func (t *Tracker) RegisterModel(name, version string, stage Stage, config map[string]any) (*ModelVersion, error) {
	if name == "" || version == "" {
		return nil, fmt.Errorf("model name and version are required")
	}
	if !stage.Valid() {
		return nil, fmt.Errorf("invalid stage: %q", stage)
	}

	mv := &ModelVersion{
		Name:         name,
		Version:      version,
		Stage:        stage,
		Config:       config,
		RegisteredAt: time.Now(),
	}

	t.mu.Lock()
	t.models[name+":"+version] = mv
	t.mu.Unlock()

	t.logger.Info("model registered",
		zap.String("model", name),
		zap.String("version", version),
		zap.String("stage", string(stage)),
	)
	return mv, nil
}

// GetModel looks up one registered version.
func (t *Tracker) GetModel(name, version string) (*ModelVersion, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	mv, ok := t.models[name+":"+version]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrModelNotFound, name, version)
	}
	cp := *mv
	return &cp, nil
}

// PromoteModel moves a registered version to a new stage.
func (t *Tracker) PromoteModel(name, version string, stage Stage) error {
	if !stage.Valid() {
		return fmt.Errorf("invalid stage: %q", stage)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	mv, ok := t.models[name+":"+version]
	if !ok {
		return fmt.Errorf("%w: %s:%s", ErrModelNotFound, name, version)
	}
	mv.Stage = stage
	return nil
}

// ListModels returns registrations sorted by name then version.
func (t *Tracker) ListModels() []ModelVersion {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ModelVersion, 0, len(t.models))
	for _, mv := range t.models {
		out = append(out, *mv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// RecordRequest folds one production request into the per-model counters.
func (t *Tracker) RecordRequest(model string, latency time.Duration, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pm, ok := t.production[model]
	if !ok {
		pm = &ProductionMetrics{Model: model}
		t.production[model] = pm
	}
	pm.Requests++
	if failed {
		pm.Errors++
	}
	pm.TotalLatencyMs += latency.Milliseconds()
	pm.LastRequestAt = time.Now()
}

// GetProductionMetrics returns the counters for one model.
func (t *Tracker) GetProductionMetrics(model string) (ProductionMetrics, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pm, ok := t.production[model]
	if !ok {
		return ProductionMetrics{}, false
	}
	return *pm, true
}
