// Package agent contains the orchestrator that runs the full task
// pipeline: memory recall, reasoning, retrieval, response generation,
// and risk-gated action execution.
package agent

import (
	"time"

	"github.com/cortexstack/cortex/reasoning"
	"github.com/cortexstack/cortex/types"
)

// Status is the observable lifecycle state of an agent.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusThinking        Status = "thinking"
	StatusSearching       Status = "searching"
	StatusExecuting       Status = "executing"
	StatusWaitingApproval Status = "waiting_approval"
	StatusCompleted       Status = "completed"
	StatusError           Status = "error"
)

// Config selects which pipeline stages run and how the agent identifies
// itself.
type Config struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`

	EnableMemory    bool `yaml:"enable_memory" json:"enable_memory"`
	EnableReasoning bool `yaml:"enable_reasoning" json:"enable_reasoning"`
	// EnableRAG drives collaborator wiring only; the retrieval stage
	// itself runs whenever the reasoner signals a retrieval need and a
	// retriever is attached.
	EnableRAG     bool `yaml:"enable_rag" json:"enable_rag"`
	EnableSandbox bool `yaml:"enable_sandbox" json:"enable_sandbox"`
	EnableHITL    bool `yaml:"enable_hitl" json:"enable_hitl"`

	// MaxRetries and TimeoutMs are accepted for configuration
	// compatibility but not yet applied by the pipeline.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	TimeoutMs  int `yaml:"timeout_ms" json:"timeout_ms"`
}

// DefaultConfig returns the stock pipeline configuration: memory,
// reasoning, and the sandbox on; retrieval and human approval off.
func DefaultConfig() Config {
	return Config{
		Name:            "cortex-agent",
		Model:           "claude-3-haiku-20240307",
		Temperature:     0.7,
		MaxTokens:       4096,
		EnableMemory:    true,
		EnableReasoning: true,
		EnableSandbox:   true,
		MaxRetries:      3,
		TimeoutMs:       30000,
	}
}

// State is a point-in-time snapshot of the agent. MemoryIDs holds the
// ids recalled for the current task; each recall replaces the list.
type State struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Status       Status    `json:"status"`
	CurrentTask  string    `json:"current_task,omitempty"`
	MemoryIDs    []string  `json:"memory_ids,omitempty"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Input is one task handed to the agent. Stream and MaxTokens are
// accepted but not consulted by the pipeline.
type Input struct {
	TaskID    string         `json:"task_id,omitempty"`
	Content   string         `json:"content"`
	Context   map[string]any `json:"context,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Stream    bool           `json:"stream,omitempty"`
	MaxTokens int            `json:"max_tokens,omitempty"`
}

// ActionRecord reports what happened to one proposed action.
type ActionRecord struct {
	Type     string          `json:"type"`
	Payload  any             `json:"payload"`
	Risk     types.RiskLevel `json:"risk"`
	Approved bool            `json:"approved"`
	Skipped  bool            `json:"skipped,omitempty"`
	Result   any             `json:"result,omitempty"`
}

// Output is the full result of one Process call. Pipeline failures are
// reported through Error and Status rather than a Go error. TokensUsed
// is a placeholder until generation reports real usage.
type Output struct {
	TaskID     string           `json:"task_id"`
	Input      string           `json:"input"`
	Response   string           `json:"response"`
	Model      string           `json:"model"`
	Steps      []reasoning.Step `json:"steps,omitempty"`
	MemoryIDs  []string         `json:"memory_ids,omitempty"`
	Actions    []ActionRecord   `json:"actions,omitempty"`
	TokensUsed int              `json:"tokens_used"`
	DurationMs int64            `json:"duration_ms"`
	CreatedAt  time.Time        `json:"created_at"`
	Status     Status           `json:"status"`
	Error      string           `json:"error,omitempty"`
}
