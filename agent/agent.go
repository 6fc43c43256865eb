package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cortexstack/cortex/hitl"
	"github.com/cortexstack/cortex/internal/metrics"
	"github.com/cortexstack/cortex/memory"
	"github.com/cortexstack/cortex/rag"
	"github.com/cortexstack/cortex/reasoning"
	"github.com/cortexstack/cortex/sandbox"
	"github.com/cortexstack/cortex/types"
)

const memoryRecallLimit = 5

// Agent runs the task pipeline. Collaborators are optional; a stage
// whose collaborator is absent is skipped even when enabled.
type Agent struct {
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer

	memory    MemorySystem
	retriever Retriever
	reasoner  reasoning.Reasoner
	sandbox   ActionSandbox
	approvals ApprovalGate
	generate  reasoning.CompletionFunc
	collector *metrics.Collector

	mu    sync.RWMutex
	state State
}

// Option injects a collaborator into the agent.
type Option func(*Agent)

// WithMemory attaches the memory system.
func WithMemory(m MemorySystem) Option {
	return func(a *Agent) { a.memory = m }
}

// WithRetriever attaches the RAG retriever.
func WithRetriever(r Retriever) Option {
	return func(a *Agent) { a.retriever = r }
}

// WithReasoner attaches the reasoning engine.
func WithReasoner(r reasoning.Reasoner) Option {
	return func(a *Agent) { a.reasoner = r }
}

// WithSandbox attaches the action sandbox.
func WithSandbox(s ActionSandbox) Option {
	return func(a *Agent) { a.sandbox = s }
}

// WithApprovalGate attaches the human-approval gate.
func WithApprovalGate(g ApprovalGate) Option {
	return func(a *Agent) { a.approvals = g }
}

// WithGenerator attaches the response generator.
func WithGenerator(fn reasoning.CompletionFunc) Option {
	return func(a *Agent) { a.generate = fn }
}

// WithMetrics attaches the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(a *Agent) { a.collector = c }
}

// New builds an agent. Zero-valued config fields get defaults; enable
// flags are taken as given.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Agent {
	def := DefaultConfig()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = def.TimeoutMs
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Agent{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "agent"), zap.String("agent_id", cfg.ID)),
		tracer: otel.Tracer("cortex/agent"),
		state: State{
			ID:     cfg.ID,
			Name:   cfg.Name,
			Status: StatusIdle,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the agent's identifier.
func (a *Agent) ID() string { return a.cfg.ID }

// State returns a snapshot of the agent's current state.
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Agent) setStatus(status Status, task string) {
	a.mu.Lock()
	a.state.Status = status
	a.state.CurrentTask = task
	a.state.LastActiveAt = time.Now()
	a.mu.Unlock()
}

// ProcessText runs one plain-text task.
func (a *Agent) ProcessText(ctx context.Context, content string) *Output {
	return a.Process(ctx, Input{Content: content})
}

// Process runs the full pipeline for one task. It never returns a Go
// error: failures, including panics in collaborators, are reported in
// the output.
func (a *Agent) Process(ctx context.Context, input Input) (out *Output) {
	start := time.Now()
	if input.TaskID == "" {
		input.TaskID = uuid.NewString()
	}

	ctx, span := a.tracer.Start(ctx, "agent.process",
		trace.WithAttributes(
			attribute.String("agent.id", a.cfg.ID),
			attribute.String("task.id", input.TaskID),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("pipeline panicked", zap.Any("panic", r))
			out = a.fail(input, start, fmt.Sprintf("internal error: %v", r))
		}
		if a.collector != nil {
			a.collector.RecordAgentProcess(a.cfg.ID, string(out.Status), time.Since(start))
		}
		span.SetAttributes(attribute.String("agent.status", string(out.Status)))
	}()

	a.setStatus(StatusThinking, input.TaskID)
	a.logger.Info("processing task", zap.String("task_id", input.TaskID))

	taskContext := make(map[string]any, len(input.Context)+3)
	for k, v := range input.Context {
		taskContext[k] = v
	}

	if err := a.recallMemories(ctx, input, taskContext); err != nil {
		return a.fail(input, start, err.Error())
	}

	result, err := a.reason(ctx, input, taskContext)
	if err != nil {
		return a.fail(input, start, err.Error())
	}

	if result != nil && result.NeedsRAG {
		if err := a.search(ctx, input.TaskID, result.RAGQuery, taskContext); err != nil {
			return a.fail(input, start, err.Error())
		}
	}

	response, err := a.respond(ctx, input, taskContext, result)
	if err != nil {
		return a.fail(input, start, err.Error())
	}

	var records []ActionRecord
	if result != nil {
		records, err = a.runActions(ctx, input.TaskID, result)
		if err != nil {
			return a.fail(input, start, err.Error())
		}
	}

	if err := a.saveConversation(ctx, input, response); err != nil {
		return a.fail(input, start, err.Error())
	}

	a.setStatus(StatusCompleted, "")
	out = &Output{
		TaskID:     input.TaskID,
		Input:      input.Content,
		Response:   response,
		Model:      a.cfg.Model,
		MemoryIDs:  a.State().MemoryIDs,
		Actions:    records,
		DurationMs: time.Since(start).Milliseconds(),
		CreatedAt:  time.Now(),
		Status:     StatusCompleted,
	}
	if result != nil {
		out.Steps = result.Steps
	}
	return out
}

func (a *Agent) fail(input Input, start time.Time, message string) *Output {
	a.setStatus(StatusError, "")
	a.logger.Error("task failed", zap.String("task_id", input.TaskID), zap.String("error", message))
	return &Output{
		TaskID:     input.TaskID,
		Input:      input.Content,
		Model:      a.cfg.Model,
		DurationMs: time.Since(start).Milliseconds(),
		CreatedAt:  time.Now(),
		Status:     StatusError,
		Error:      message,
	}
}

// recallMemories loads relevant long-term memories into the task context.
func (a *Agent) recallMemories(ctx context.Context, input Input, taskContext map[string]any) error {
	if !a.cfg.EnableMemory || a.memory == nil {
		return nil
	}

	records, err := a.memory.Recall(ctx, input.Content, memorySearchOptions(a.cfg.ID))
	if err != nil {
		return fmt.Errorf("memory recall failed: %w", err)
	}

	// Each recall replaces the previous short-term id list.
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	a.mu.Lock()
	a.state.MemoryIDs = ids
	a.mu.Unlock()

	if len(records) > 0 {
		taskContext["relevantMemories"] = records
	}
	return nil
}

func (a *Agent) reason(ctx context.Context, input Input, taskContext map[string]any) (*reasoning.Result, error) {
	if !a.cfg.EnableReasoning || a.reasoner == nil {
		return nil, nil
	}

	result, err := a.reasoner.Think(ctx, input.Content, taskContext)
	if err != nil {
		return nil, fmt.Errorf("reasoning failed: %w", err)
	}
	if a.collector != nil {
		a.collector.RecordReasoningSteps(a.cfg.ID, string(reasoning.StrategyCoT), len(result.Steps))
	}
	return result, nil
}

// search runs the retrieval stage. A retrieval need from the reasoner
// plus an attached retriever is enough to trigger it; no separate flag
// gates this stage.
func (a *Agent) search(ctx context.Context, taskID, query string, taskContext map[string]any) error {
	if a.retriever == nil {
		return nil
	}

	a.setStatus(StatusSearching, taskID)
	results, err := a.retriever.Retrieve(ctx, query, rag.DefaultSearchOptions())
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	taskContext["searchResults"] = results
	return nil
}

func (a *Agent) respond(ctx context.Context, input Input, taskContext map[string]any, result *reasoning.Result) (string, error) {
	if a.generate == nil {
		return "Processing: " + input.Content, nil
	}

	if result != nil {
		taskContext["reasoning"] = result
	}
	prompt := buildResponsePrompt(input.Content, taskContext)
	response, err := a.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("response generation failed: %w", err)
	}
	return response, nil
}

// runActions applies the approval policy and executes what survives,
// strictly in the order the reasoner proposed. Approval is requested
// without blocking: a request that comes back pending is treated as not
// approved and stays with the gate for a human to resolve later. An
// approved action with no sandbox attached is dropped without a record.
func (a *Agent) runActions(ctx context.Context, taskID string, result *reasoning.Result) ([]ActionRecord, error) {
	var records []ActionRecord
	for _, action := range result.Actions {
		if a.cfg.EnableHITL && a.approvals != nil {
			req, err := a.approvals.RequestApproval(ctx, action, nil)
			if err != nil {
				return nil, fmt.Errorf("approval request failed: %w", err)
			}
			if a.collector != nil {
				a.collector.RecordApprovalRequest(string(action.Risk), string(req.Status))
			}
			if req.Status != hitl.StatusApproved {
				a.logger.Info("action not approved",
					zap.String("action_type", action.Type),
					zap.String("risk", string(action.Risk)),
					zap.String("status", string(req.Status)),
				)
				records = append(records, ActionRecord{
					Type:     action.Type,
					Payload:  action.Payload,
					Risk:     action.Risk,
					Approved: false,
					Skipped:  true,
				})
				continue
			}
		}

		if !a.cfg.EnableSandbox || a.sandbox == nil {
			continue
		}

		a.setStatus(StatusExecuting, taskID)
		execStart := time.Now()
		execResult := a.sandbox.Execute(ctx, sandbox.Action{
			Type:             action.Type,
			Payload:          action.Payload,
			Risk:             action.Risk,
			RequiresApproval: action.Risk == types.RiskHigh,
		})
		if a.collector != nil {
			status := "success"
			if !execResult.Success {
				status = "failed"
			}
			a.collector.RecordSandboxExecution(action.Type, status, time.Since(execStart))
		}

		records = append(records, ActionRecord{
			Type:     action.Type,
			Payload:  action.Payload,
			Risk:     action.Risk,
			Approved: true,
			Result:   execResult,
		})
	}
	return records, nil
}

// saveConversation writes the exchange back to memory.
func (a *Agent) saveConversation(ctx context.Context, input Input, response string) error {
	if !a.cfg.EnableMemory || a.memory == nil {
		return nil
	}

	_, err := a.memory.Remember(ctx, memory.Record{
		AgentID:    a.cfg.ID,
		Type:       memory.TypeConversation,
		Content:    fmt.Sprintf("User: %s\nAgent: %s", input.Content, response),
		Importance: 5,
		Metadata:   map[string]any{"taskId": input.TaskID},
	})
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

func memorySearchOptions(agentID string) memory.SearchOptions {
	return memory.SearchOptions{AgentID: agentID, Limit: memoryRecallLimit}
}

func buildResponsePrompt(content string, taskContext map[string]any) string {
	if len(taskContext) == 0 {
		return content
	}
	ctxJSON, err := json.Marshal(taskContext)
	if err != nil {
		return content
	}
	return fmt.Sprintf("Task: %s\n\nContext:\n%s", content, ctxJSON)
}
