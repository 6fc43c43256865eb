// Package reasoning implements the chain-of-thought loop that turns one
// problem statement into a sequence of thoughts, retrieval intents and
// proposed actions.
package reasoning

import (
	"context"

	"github.com/cortexstack/cortex/types"
)

// CompletionFunc is the injected LLM completion function. When present it is
// the primary reasoning backend; when absent the reasoner falls back to
// fixed heuristic thoughts.
type CompletionFunc func(ctx context.Context, prompt string) (string, error)

// Step is one iteration of the reasoning loop. Steps are appended in order
// and never mutated after creation.
type Step struct {
	Step        int     `json:"step"`
	Thought     string  `json:"thought"`
	Action      string  `json:"action,omitempty"`
	Observation string  `json:"observation,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Result is the output of one full reasoning pass.
type Result struct {
	Steps                 []Step         `json:"steps"`
	NeedsRAG              bool           `json:"needs_rag"`
	RAGQuery              string         `json:"rag_query,omitempty"`
	Actions               []types.Action `json:"actions,omitempty"`
	RequiresHumanApproval bool           `json:"requires_human_approval"`
	FinalAnswer           string         `json:"final_answer,omitempty"`
}

// Reasoner produces a Result for one problem in the given context.
type Reasoner interface {
	Think(ctx context.Context, problem string, context map[string]any) (*Result, error)
}

// Strategy names a reasoning strategy. Only chain-of-thought is implemented;
// the others are reserved identifiers for future strategies.
type Strategy string

const (
	StrategyCoT   Strategy = "cot"
	StrategyToT   Strategy = "tot"
	StrategyReAct Strategy = "react"
)
