// Package hitl implements the human-in-the-loop approval gate: risk-based
// auto-approval, a pending-request table with an approve/reject/poll protocol,
// and timeout-driven auto-rejection.
package hitl

import (
	"context"
	"time"

	"github.com/cortexstack/cortex/types"
)

// Status is the lifecycle state of an approval request. Stored requests
// transition only pending -> approved or pending -> rejected; auto-approved
// requests are created already approved and never transition.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusModified Status = "modified"
)

// Request is one approval case.
type Request struct {
	ID          string         `json:"id"`
	AgentID     string         `json:"agent_id"`
	Action      types.Action   `json:"action"`
	Rationale   string         `json:"rationale"`
	Context     map[string]any `json:"context,omitempty"`
	Status      Status         `json:"status"`
	RequestedAt time.Time      `json:"requested_at"`
	RespondedAt time.Time      `json:"responded_at,omitempty"`
	Response    string         `json:"response,omitempty"`
	RespondedBy string         `json:"responded_by,omitempty"`
}

// NotificationFunc delivers a pending request to a human channel (Telegram,
// Slack, console). It is awaited before RequestApproval returns.
type NotificationFunc func(ctx context.Context, request *Request) error

// Config is the approval policy.
type Config struct {
	AutoApproveLowRisk      bool          `yaml:"auto_approve_low_risk" json:"auto_approve_low_risk"`
	AutoApproveMediumRisk   bool          `yaml:"auto_approve_medium_risk" json:"auto_approve_medium_risk"`
	RequireApprovalHighRisk bool          `yaml:"require_approval_high_risk" json:"require_approval_high_risk"`
	Timeout                 time.Duration `yaml:"timeout" json:"timeout"`

	// PollInterval is the fixed delay between WaitForApproval re-checks.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// NotificationChannels is informational; delivery happens through the
	// registered NotificationFunc.
	NotificationChannels []string `yaml:"notification_channels" json:"notification_channels"`
}

// DefaultConfig returns the stock approval policy: low risk auto-approved,
// medium and high risk pending, 5 minute timeout.
func DefaultConfig() Config {
	return Config{
		AutoApproveLowRisk:      true,
		AutoApproveMediumRisk:   false,
		RequireApprovalHighRisk: true,
		Timeout:                 5 * time.Minute,
		PollInterval:            time.Second,
		NotificationChannels:    []string{"telegram"},
	}
}
