package reasoning

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cortexstack/cortex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestThink_HeuristicFallback(t *testing.T) {
	r := NewChainOfThought(Config{})

	result, err := r.Think(context.Background(), "What is the capital of France?", nil)
	require.NoError(t, err)

	// "what is" and "?" are retrieval indicators.
	assert.True(t, result.NeedsRAG)
	assert.NotEmpty(t, result.RAGQuery)

	assert.GreaterOrEqual(t, len(result.Steps), 1)
	assert.LessOrEqual(t, len(result.Steps), defaultMaxSteps)
	assert.Equal(t, result.Steps[len(result.Steps)-1].Thought, result.FinalAnswer)
}

func TestThink_HeuristicNeverProducesActionsOrObservationsFields(t *testing.T) {
	r := NewChainOfThought(Config{MaxSteps: 3})

	result, err := r.Think(context.Background(), "summarize the report", nil)
	require.NoError(t, err)

	for _, s := range result.Steps {
		assert.Empty(t, s.Action)
		assert.Empty(t, s.Observation)
	}
}

func TestThink_ConfidenceBoundsAndMonotonicity(t *testing.T) {
	r := NewChainOfThought(Config{MaxSteps: 10})

	result, err := r.Think(context.Background(), "summarize the report", nil)
	require.NoError(t, err)

	prev := 0.0
	for i, s := range result.Steps {
		assert.Greater(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 0.9)
		assert.GreaterOrEqual(t, s.Confidence, prev, "confidence must not decrease at step %d", i+1)
		prev = s.Confidence
	}
	assert.Equal(t, 0.5, result.Steps[0].Confidence)
}

func TestThink_EarlyConclusion(t *testing.T) {
	responses := []string{
		`{"thought": "I need to check the records"}`,
		`{"thought": "Therefore the answer is 42"}`,
		`{"thought": "should never be reached"}`,
	}
	call := 0
	llm := func(ctx context.Context, prompt string) (string, error) {
		response := responses[call]
		call++
		return response, nil
	}

	r := NewChainOfThought(Config{MaxSteps: 5, Completion: llm})
	result, err := r.Think(context.Background(), "compute the answer", nil)
	require.NoError(t, err)

	assert.Len(t, result.Steps, 2)
	assert.Equal(t, "Therefore the answer is 42", result.FinalAnswer)
}

func TestThink_NonJSONResponseBecomesThought(t *testing.T) {
	llm := func(ctx context.Context, prompt string) (string, error) {
		return "therefore plain text wins", nil
	}

	r := NewChainOfThought(Config{Completion: llm})
	result, err := r.Think(context.Background(), "anything", nil)
	require.NoError(t, err)

	require.Len(t, result.Steps, 1)
	assert.Equal(t, "therefore plain text wins", result.Steps[0].Thought)
	assert.Empty(t, result.Steps[0].Action)
}

func TestThink_JSONWithoutThoughtFallsBackToRawText(t *testing.T) {
	raw := `{"action": "search:foo", "observation": "therefore done"}`
	llm := func(ctx context.Context, prompt string) (string, error) {
		return raw, nil
	}

	r := NewChainOfThought(Config{Completion: llm})
	result, err := r.Think(context.Background(), "anything", nil)
	require.NoError(t, err)

	require.NotEmpty(t, result.Steps)
	assert.Equal(t, raw, result.Steps[0].Thought)
	assert.Empty(t, result.Steps[0].Action)
}

func TestThink_ActionDetectionAndRisk(t *testing.T) {
	tests := []struct {
		thought string
		actType string
		risk    types.RiskLevel
	}{
		{"therefore execute the cleanup script", "execute", types.RiskMedium},
		{"therefore delete the user record now", "unknown", types.RiskHigh},
		{"therefore call the billing api", "api", types.RiskLow},
		{"therefore we should drop and update the index", "unknown", types.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.thought, func(t *testing.T) {
			llm := func(ctx context.Context, prompt string) (string, error) {
				return fmt.Sprintf(`{"thought": %q}`, tt.thought), nil
			}
			r := NewChainOfThought(Config{Completion: llm})

			result, err := r.Think(context.Background(), "task", nil)
			require.NoError(t, err)
			require.Len(t, result.Actions, 1)
			assert.Equal(t, tt.actType, result.Actions[0].Type)
			assert.Equal(t, tt.risk, result.Actions[0].Risk)
			assert.Equal(t, tt.risk == types.RiskHigh, result.RequiresHumanApproval)
		})
	}
}

func TestThink_ObservationFeedsNextProblem(t *testing.T) {
	var prompts []string
	call := 0
	llm := func(ctx context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		call++
		if call == 1 {
			return `{"thought": "checking inventory", "observation": "12 units left"}`, nil
		}
		return `{"thought": "therefore restocking is not needed"}`, nil
	}

	r := NewChainOfThought(Config{Completion: llm})
	result, err := r.Think(context.Background(), "is restocking needed", nil)
	require.NoError(t, err)

	require.Len(t, result.Steps, 2)
	assert.Contains(t, prompts[1], "Observation: 12 units left")
	assert.Contains(t, prompts[1], "Previous thoughts: checking inventory")
}

func TestThink_ContextIncludedInPrompt(t *testing.T) {
	var captured string
	llm := func(ctx context.Context, prompt string) (string, error) {
		captured = prompt
		return `{"thought": "therefore the answer is in context"}`, nil
	}

	r := NewChainOfThought(Config{Completion: llm})
	_, err := r.Think(context.Background(), "task", map[string]any{"region": "eu-west-1"})
	require.NoError(t, err)

	assert.Contains(t, captured, "Context:")
	assert.Contains(t, captured, "eu-west-1")
}

func TestThink_EmptyContextOmittedFromPrompt(t *testing.T) {
	var captured string
	llm := func(ctx context.Context, prompt string) (string, error) {
		captured = prompt
		return `{"thought": "therefore nothing else is needed"}`, nil
	}

	r := NewChainOfThought(Config{Completion: llm})
	_, err := r.Think(context.Background(), "task", map[string]any{})
	require.NoError(t, err)

	assert.NotContains(t, captured, "Context:")
}

func TestThink_CompletionErrorPropagates(t *testing.T) {
	llm := func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("provider unavailable")
	}

	r := NewChainOfThought(Config{Completion: llm})
	_, err := r.Think(context.Background(), "task", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider unavailable")
}

func TestThink_RAGQueryExtraction(t *testing.T) {
	llm := func(ctx context.Context, prompt string) (string, error) {
		return `{"thought": "therefore I should search for recent sales figures"}`, nil
	}

	r := NewChainOfThought(Config{Completion: llm})
	result, err := r.Think(context.Background(), "task", nil)
	require.NoError(t, err)

	assert.True(t, result.NeedsRAG)
	assert.Equal(t, "recent sales figures", result.RAGQuery)
}

func TestThink_NonPositiveMaxStepsUsesDefault(t *testing.T) {
	r := NewChainOfThought(Config{MaxSteps: -3})
	assert.Equal(t, defaultMaxSteps, r.maxSteps)
}

// Step counts stay within [1, maxSteps] and confidences within (0, 0.9] for
// arbitrary problems and step budgets.
func TestThink_StepInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		problem := rapid.StringN(0, 200, -1).Draw(t, "problem")
		maxSteps := rapid.IntRange(1, 8).Draw(t, "maxSteps")

		r := NewChainOfThought(Config{MaxSteps: maxSteps})
		result, err := r.Think(context.Background(), problem, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Steps) < 1 || len(result.Steps) > maxSteps {
			t.Fatalf("step count %d out of [1, %d]", len(result.Steps), maxSteps)
		}
		for _, s := range result.Steps {
			if s.Confidence <= 0 || s.Confidence > 0.9 {
				t.Fatalf("confidence %f out of (0, 0.9]", s.Confidence)
			}
		}
	})
}
