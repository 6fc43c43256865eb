// Package sandbox provides policy-checked execution for agent actions.
//
// Every action passes through the pattern-based Validator before it reaches an
// execution routine, and every failure mode is reported in-band through
// ExecutionResult rather than as a returned error.
package sandbox

import (
	"time"

	"github.com/cortexstack/cortex/types"
)

// Action is the sandbox-facing view of a proposed agent action. The
// RequiresApproval flag is informational only: the human-approval step happens
// upstream in the orchestrator, not here.
type Action struct {
	ID               string          `json:"id,omitempty"`
	Type             string          `json:"type"`
	Payload          any             `json:"payload"`
	Risk             types.RiskLevel `json:"risk"`
	RequiresApproval bool            `json:"requires_approval"`
}

// LogLevel is the severity of a sandbox log entry.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one timestamped line of the execution log. Logs accumulate
// within a single Execute call and are discarded after it returns.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// ExecutionResult reports the outcome of one Execute call.
type ExecutionResult struct {
	Success    bool       `json:"success"`
	Output     any        `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	Logs       []LogEntry `json:"logs,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

// ValidationResult is the outcome of validating a single action.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Config configures the sandbox and its validation policy. Blocked patterns
// are checked before require-approval patterns; within each list, order
// determines which reason is reported when several patterns could match.
type Config struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	MemoryLimitMB int           `yaml:"memory_limit_mb" json:"memory_limit_mb"`

	// AllowedCommands is an advisory allow-list surfaced to operators; the
	// command routine itself stays a safety stub until a container backend
	// replaces it.
	AllowedCommands []string `yaml:"allowed_commands" json:"allowed_commands"`

	BlockedPatterns         []string `yaml:"blocked_patterns" json:"blocked_patterns"`
	RequireApprovalPatterns []string `yaml:"require_approval_patterns" json:"require_approval_patterns"`

	// APICallsPerSecond bounds the placeholder API routine. Zero means the
	// default rate.
	APICallsPerSecond float64 `yaml:"api_calls_per_second" json:"api_calls_per_second"`
}

// DefaultConfig returns the stock safety policy.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		MemoryLimitMB: 512,
		AllowedCommands: []string{
			"npm install",
			"npm run",
			"git status",
			"git log",
			"ls",
			"cat",
			"head",
			"tail",
			"grep",
		},
		BlockedPatterns: []string{
			"rm -rf",
			`curl.*\|.*sh`,
			`wget.*\|.*sh`,
			"chmod 777",
			"DROP TABLE",
			"DELETE FROM",
			"sudo",
			"su ",
		},
		RequireApprovalPatterns: []string{
			"rm ",
			"mv ",
			"cp ",
			"kill",
			"pkill",
			"DROP",
			"DELETE",
		},
		APICallsPerSecond: 10,
	}
}
