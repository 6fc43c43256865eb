package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cortexstack/cortex/types"
	"go.uber.org/zap"
)

const defaultMaxSteps = 5

// Keyword sets for intent detection on thought text. All checks are
// case-insensitive substring matches.
var (
	ragIndicators    = []string{"search", "find", "look up", "retrieve", "what is", "how to", "?", "information"}
	actionIndicators = []string{"execute", "run", "call", "api", "function", "do", "create", "update", "delete"}
	actionTypes      = []string{"execute", "api", "search", "compute", "format"}
	highRiskWords    = []string{"delete", "drop", "remove", "destroy", "cancel", "refund"}
	mediumRiskWords  = []string{"update", "write", "create", "send", "execute"}
	conclusionWords  = []string{"therefore", "conclusion", "final", "answer", "solved", "done"}
)

var ragQueryPattern = regexp.MustCompile(`(?i)(?:search|find|look up)\s+(?:for\s+)?(.+)`)

// Fallback thoughts used when no completion function is injected, rotated by
// step index.
var simpleThoughtTemplates = []string{
	`Step %d: Analyzing "%s"`,
	"Step %d: Breaking down the problem",
	"Step %d: Looking for patterns",
	"Step %d: Considering options",
	"Step %d: Evaluating approaches",
}

// Config configures a ChainOfThought reasoner.
type Config struct {
	// MaxSteps bounds the loop. Non-positive values fall back to the default
	// of 5.
	MaxSteps int

	// Completion is the optional LLM backend.
	Completion CompletionFunc

	Logger *zap.Logger
}

// ChainOfThought is the iterative chain-of-thought reasoner. It produces
// thoughts one step at a time, detects retrieval and action intents in each
// thought, and stops early when a thought reads as a conclusion.
type ChainOfThought struct {
	maxSteps int
	complete CompletionFunc
	logger   *zap.Logger
}

// NewChainOfThought creates a reasoner from cfg.
func NewChainOfThought(cfg Config) *ChainOfThought {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainOfThought{
		maxSteps: maxSteps,
		complete: cfg.Completion,
		logger:   logger.With(zap.String("component", "reasoner")),
	}
}

// Think runs the reasoning loop for one problem. It always produces between 1
// and MaxSteps steps; it returns an error only when the injected completion
// function fails.
func (r *ChainOfThought) Think(ctx context.Context, problem string, reasoningContext map[string]any) (*Result, error) {
	steps := make([]Step, 0, r.maxSteps)
	currentProblem := problem

	var needsRAG bool
	var ragQuery string
	var actions []types.Action

	for i := 0; i < r.maxSteps; i++ {
		var thought, action, observation string

		if r.complete != nil {
			prompt := r.buildPrompt(currentProblem, reasoningContext, steps)
			response, err := r.complete(ctx, prompt)
			if err != nil {
				return nil, fmt.Errorf("completion failed at step %d: %w", i+1, err)
			}
			thought, action, observation = parseResponse(response)
		} else {
			thought = simpleThought(currentProblem, i)
		}

		steps = append(steps, Step{
			Step:        i + 1,
			Thought:     thought,
			Action:      action,
			Observation: observation,
			Confidence:  confidence(len(steps)),
		})

		if needsRetrieval(thought) {
			needsRAG = true
			ragQuery = extractRAGQuery(thought)
		}

		if needsAction(thought) {
			actions = append(actions, types.Action{
				Type:    extractActionType(thought),
				Payload: map[string]any{"raw": thought},
				Risk:    assessRisk(thought),
			})
		}

		if concluded(thought) {
			break
		}

		currentProblem = nextProblem(currentProblem, observation)
	}

	result := &Result{
		Steps:                 steps,
		NeedsRAG:              needsRAG,
		RAGQuery:              ragQuery,
		Actions:               actions,
		RequiresHumanApproval: anyHighRisk(actions),
	}
	if len(steps) > 0 {
		result.FinalAnswer = steps[len(steps)-1].Thought
	}

	r.logger.Debug("reasoning finished",
		zap.Int("steps", len(steps)),
		zap.Bool("needs_rag", result.NeedsRAG),
		zap.Int("actions", len(actions)),
	)

	return result, nil
}

func (r *ChainOfThought) buildPrompt(problem string, reasoningContext map[string]any, steps []Step) string {
	var contextStr string
	if len(reasoningContext) > 0 {
		if data, err := json.Marshal(reasoningContext); err == nil {
			contextStr = fmt.Sprintf("\nContext: %s", data)
		}
	}

	var stepsStr string
	if len(steps) > 0 {
		thoughts := make([]string, len(steps))
		for i, s := range steps {
			thoughts[i] = s.Thought
		}
		stepsStr = fmt.Sprintf("\nPrevious thoughts: %s", strings.Join(thoughts, " -> "))
	}

	return fmt.Sprintf(`Problem: %s%s%s

Think step by step. For each step:
1. Analyze the current state
2. Decide what to think about next
3. Determine if you need to search for information or take action
4. Provide your thought, and optionally an action and observation

Respond in JSON format:
{
  "thought": "your reasoning",
  "action": "search:query" or "execute:tool:args" or null,
  "observation": "result of action" or null
}`, problem, contextStr, stepsStr)
}

// parseResponse decodes the completion output. A response that is not valid
// JSON, or valid JSON without a thought field, degrades to using the raw text
// as the thought.
func parseResponse(response string) (thought, action, observation string) {
	var parsed struct {
		Thought     string `json:"thought"`
		Action      string `json:"action"`
		Observation string `json:"observation"`
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return response, "", ""
	}
	if parsed.Thought == "" {
		return response, "", ""
	}
	return parsed.Thought, parsed.Action, parsed.Observation
}

func simpleThought(problem string, step int) string {
	template := simpleThoughtTemplates[step%len(simpleThoughtTemplates)]
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, step+1, problem)
	}
	return fmt.Sprintf(template, step+1)
}

// confidence starts at 0.5 and grows by 0.1 per prior step, capped at 0.9. It
// never reaches 1.0.
func confidence(priorSteps int) float64 {
	if priorSteps == 0 {
		return 0.5
	}
	c := 0.5 + float64(priorSteps)*0.1
	if c > 0.9 {
		return 0.9
	}
	return c
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func needsRetrieval(thought string) bool {
	return containsAny(thought, ragIndicators)
}

func extractRAGQuery(thought string) string {
	if m := ragQueryPattern.FindStringSubmatch(thought); m != nil {
		return m[1]
	}
	return thought
}

func needsAction(thought string) bool {
	return containsAny(thought, actionIndicators)
}

func extractActionType(thought string) string {
	lower := strings.ToLower(thought)
	for _, t := range actionTypes {
		if strings.Contains(lower, t) {
			return t
		}
	}
	return "unknown"
}

// assessRisk classifies a thought's risk; high-risk keywords take precedence
// over medium-risk ones.
func assessRisk(thought string) types.RiskLevel {
	if containsAny(thought, highRiskWords) {
		return types.RiskHigh
	}
	if containsAny(thought, mediumRiskWords) {
		return types.RiskMedium
	}
	return types.RiskLow
}

func concluded(thought string) bool {
	return containsAny(thought, conclusionWords)
}

func nextProblem(current, observation string) string {
	if observation != "" {
		return fmt.Sprintf("%s\nObservation: %s", current, observation)
	}
	return current
}

func anyHighRisk(actions []types.Action) bool {
	for _, a := range actions {
		if a.Risk == types.RiskHigh {
			return true
		}
	}
	return false
}
