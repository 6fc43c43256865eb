package hitl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cortexstack/cortex/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRequestNotFound is returned by Approve and Reject for unknown request
// ids.
var ErrRequestNotFound = errors.New("approval request not found")

// timeoutResponse is written to requests that expire while pending.
const timeoutResponse = "Timeout: No response received"

// Manager is the approval gate. One instance may serve several agents;
// requests are independent, keyed by id, and the table is guarded by a single
// mutex.
//
// Resolved requests stay in the table so their status remains queryable;
// Purge is the explicit eviction point for long-running processes.
type Manager struct {
	config   Config
	requests map[string]*Request
	mu       sync.RWMutex
	notify   NotificationFunc
	logger   *zap.Logger
}

// NewManager creates a manager with the given policy.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config:   cfg,
		requests: make(map[string]*Request),
		logger:   logger.With(zap.String("component", "hitl")),
	}
}

// SetNotificationCallback registers the delivery function for pending
// requests.
func (m *Manager) SetNotificationCallback(fn NotificationFunc) {
	m.notify = fn
}

// RequestApproval routes an action through the risk policy. Auto-approved
// requests are synthesized on the spot, never stored and never notified;
// everything else is stored pending and handed to the notification callback.
func (m *Manager) RequestApproval(ctx context.Context, action types.Action, requestContext map[string]any) (*Request, error) {
	if action.Risk == types.RiskLow && m.config.AutoApproveLowRisk {
		return m.autoApprove(action, requestContext), nil
	}
	if action.Risk == types.RiskMedium && m.config.AutoApproveMediumRisk {
		return m.autoApprove(action, requestContext), nil
	}
	if action.Risk == types.RiskHigh && !m.config.RequireApprovalHighRisk {
		return m.autoApprove(action, requestContext), nil
	}

	request := &Request{
		ID:          uuid.NewString(),
		AgentID:     "unknown", // overwritten by the orchestrator when it owns the request
		Action:      action,
		Rationale:   generateRationale(action, requestContext),
		Context:     requestContext,
		Status:      StatusPending,
		RequestedAt: time.Now(),
	}

	m.mu.Lock()
	m.requests[request.ID] = request
	m.mu.Unlock()

	m.logger.Info("approval requested",
		zap.String("request_id", request.ID),
		zap.String("action_type", action.Type),
		zap.String("risk", string(action.Risk)),
	)

	if m.notify != nil {
		if err := m.notify(ctx, request); err != nil {
			return nil, fmt.Errorf("notification callback failed: %w", err)
		}
	}

	return request, nil
}

// GetApprovalStatus looks up a stored request by id. It does not mutate or
// remove anything.
func (m *Manager) GetApprovalStatus(requestID string) (*Request, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	request, ok := m.requests[requestID]
	return request, ok
}

// Approve resolves a stored request. An empty response defaults to
// "Approved". The request remains in the table afterwards.
func (m *Manager) Approve(requestID string, response string) error {
	if response == "" {
		response = "Approved"
	}
	return m.respond(requestID, StatusApproved, response)
}

// Reject resolves a stored request with the given reason. The request remains
// in the table afterwards.
func (m *Manager) Reject(requestID string, reason string) error {
	return m.respond(requestID, StatusRejected, reason)
}

func (m *Manager) respond(requestID string, status Status, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	request, ok := m.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}

	request.Status = status
	request.RespondedAt = time.Now()
	request.Response = response
	request.RespondedBy = "human"

	m.logger.Info("approval resolved",
		zap.String("request_id", requestID),
		zap.String("status", string(status)),
	)

	return nil
}

// WaitForApproval requests approval and, if the request comes back pending,
// polls the table at the configured interval until the request is resolved,
// removed, or the wait budget elapses. On timeout the request is rejected in
// place.
//
// Polling is cooperative rather than event-driven; another actor resolving the
// request concurrently is observed on the next tick, a worst-case latency of
// one poll interval. Human response times dwarf that granularity.
func (m *Manager) WaitForApproval(ctx context.Context, action types.Action, requestContext map[string]any, timeoutOverride time.Duration) (*Request, error) {
	request, err := m.RequestApproval(ctx, action, requestContext)
	if err != nil {
		return nil, err
	}
	if request.Status != StatusPending {
		return request, nil
	}

	timeout := m.config.Timeout
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}
	start := time.Now()
	last := request

	for time.Since(start) < timeout {
		current, ok := m.GetApprovalStatus(request.ID)
		if !ok {
			return last, nil
		}
		last = current
		if current.Status != StatusPending {
			return current, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(m.config.PollInterval):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	timedOut, ok := m.requests[request.ID]
	if !ok {
		return last, nil
	}
	if timedOut.Status == StatusPending {
		timedOut.Status = StatusRejected
		timedOut.Response = timeoutResponse
		timedOut.RespondedAt = time.Now()
		m.logger.Warn("approval request timed out",
			zap.String("request_id", request.ID),
			zap.Duration("timeout", timeout),
		)
	}
	return timedOut, nil
}

// ListPending returns the currently pending requests, optionally filtered by
// agent id.
func (m *Manager) ListPending(agentID string) []*Request {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pending := make([]*Request, 0)
	for _, request := range m.requests {
		if request.Status != StatusPending {
			continue
		}
		if agentID != "" && request.AgentID != agentID {
			continue
		}
		pending = append(pending, request)
	}
	return pending
}

// Purge removes resolved requests older than the cutoff and returns how many
// were evicted. Pending requests are never purged so in-flight waits keep
// their entries.
func (m *Manager) Purge(olderThan time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, request := range m.requests {
		if request.Status == StatusPending {
			continue
		}
		if request.RequestedAt.Before(olderThan) {
			delete(m.requests, id)
			purged++
		}
	}

	if purged > 0 {
		m.logger.Debug("purged resolved approval requests", zap.Int("count", purged))
	}
	return purged
}

func (m *Manager) autoApprove(action types.Action, requestContext map[string]any) *Request {
	now := time.Now()
	return &Request{
		ID:          uuid.NewString(),
		AgentID:     "system",
		Action:      action,
		Rationale:   generateRationale(action, requestContext),
		Context:     requestContext,
		Status:      StatusApproved,
		RequestedAt: now,
		RespondedAt: now,
		Response:    "Auto-approved (low risk)",
		RespondedBy: "system",
	}
}

func generateRationale(action types.Action, requestContext map[string]any) string {
	rationale := fmt.Sprintf("Agent wants to execute %s action.", action.Type)
	if requestContext != nil {
		if data, err := json.Marshal(requestContext); err == nil {
			rationale = fmt.Sprintf("%s Context: %s", rationale, data)
		}
	}
	return rationale
}
