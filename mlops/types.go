// Package mlops tracks prompt experiments and model versions in memory.
package mlops

import "time"

// ExperimentStatus is the lifecycle state of an experiment run.
type ExperimentStatus string

const (
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentFailed    ExperimentStatus = "failed"
)

// Experiment is one tracked run of a prompt or model configuration.
type Experiment struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Prompt      string             `json:"prompt"`
	Config      map[string]any     `json:"config,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Status      ExperimentStatus   `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Stage is the rollout stage of a registered model version.
type Stage string

const (
	StageDev        Stage = "dev"
	StageBeta       Stage = "beta"
	StageStable     Stage = "stable"
	StageDeprecated Stage = "deprecated"
)

// Valid reports whether s names a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageDev, StageBeta, StageStable, StageDeprecated:
		return true
	}
	return false
}

// ModelVersion is one registered model build.
type ModelVersion struct {
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	Stage        Stage          `json:"stage"`
	Config       map[string]any `json:"config,omitempty"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// ProductionMetrics aggregates live request counters per model.
type ProductionMetrics struct {
	Model         string    `json:"model"`
	Requests      int64     `json:"requests"`
	Errors        int64     `json:"errors"`
	TotalLatencyMs int64    `json:"total_latency_ms"`
	LastRequestAt time.Time `json:"last_request_at"`
}

// AvgLatencyMs returns mean request latency, zero when no requests.
func (m ProductionMetrics) AvgLatencyMs() float64 {
	if m.Requests == 0 {
		return 0
	}
	return float64(m.TotalLatencyMs) / float64(m.Requests)
}

// ErrorRate returns the fraction of failed requests.
func (m ProductionMetrics) ErrorRate() float64 {
	if m.Requests == 0 {
		return 0
	}
	return float64(m.Errors) / float64(m.Requests)
}
