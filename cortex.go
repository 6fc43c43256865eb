// Package cortex provides a top-level convenience entry point for
// creating agents with minimal boilerplate.
//
// Usage:
//
//	import "github.com/cortexstack/cortex"
//
//	a := cortex.New(cortex.WithSandbox(sb), cortex.WithReasoner(r))
//	out := a.ProcessText(ctx, "summarize the report")
//
// This is a thin wrapper around [agent.New] with the default
// configuration; use the agent package directly for full control.
package cortex

import (
	"go.uber.org/zap"

	"github.com/cortexstack/cortex/agent"
)

// Option configures the agent created by [New].
type Option = agent.Option

// New creates an agent with the default pipeline configuration.
func New(opts ...Option) *agent.Agent {
	return agent.New(agent.DefaultConfig(), nil, opts...)
}

// NewWithLogger creates an agent with the default configuration and an
// explicit logger.
func NewWithLogger(logger *zap.Logger, opts ...Option) *agent.Agent {
	return agent.New(agent.DefaultConfig(), logger, opts...)
}

// Re-export collaborator options so callers never need to import agent/.

// WithMemory attaches the memory system.
var WithMemory = agent.WithMemory

// WithRetriever attaches the RAG retriever.
var WithRetriever = agent.WithRetriever

// WithReasoner attaches the reasoning engine.
var WithReasoner = agent.WithReasoner

// WithSandbox attaches the action sandbox.
var WithSandbox = agent.WithSandbox

// WithApprovalGate attaches the human-approval gate.
var WithApprovalGate = agent.WithApprovalGate

// WithGenerator attaches the response generator.
var WithGenerator = agent.WithGenerator
