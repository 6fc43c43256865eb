package agent

import (
	"context"

	"github.com/cortexstack/cortex/hitl"
	"github.com/cortexstack/cortex/memory"
	"github.com/cortexstack/cortex/rag"
	"github.com/cortexstack/cortex/sandbox"
	"github.com/cortexstack/cortex/types"
)

// MemorySystem is the slice of the memory manager the pipeline uses.
type MemorySystem interface {
	Remember(ctx context.Context, rec memory.Record) (*memory.Record, error)
	Recall(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.Record, error)
}

// Retriever answers RAG queries raised by the reasoner.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts rag.SearchOptions) ([]rag.RetrievalResult, error)
}

// ActionSandbox validates and executes approved actions.
type ActionSandbox interface {
	Execute(ctx context.Context, action sandbox.Action) *sandbox.ExecutionResult
}

// ApprovalGate routes an action through the approval policy. The call
// returns immediately; a request that comes back pending stays with the
// gate for a human to resolve out of band.
type ApprovalGate interface {
	RequestApproval(ctx context.Context, action types.Action, requestContext map[string]any) (*hitl.Request, error)
}
