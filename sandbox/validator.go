package sandbox

import (
	"encoding/json"
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// Validator classifies an action's payload against two ordered pattern lists:
// blocked (hard deny) and require-approval (soft deny). Both deny execution;
// the actual human-approval step happens in the orchestrator before the
// sandbox is ever reached.
type Validator struct {
	blocked         []compiledPattern
	requireApproval []compiledPattern
	logger          *zap.Logger
}

type compiledPattern struct {
	raw string
	re  *regexp.Regexp
}

// NewValidator compiles the configured patterns case-insensitively. A pattern
// that fails to compile is skipped with a warning; it never aborts validation.
func NewValidator(cfg Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Validator{
		logger: logger.With(zap.String("component", "sandbox_validator")),
	}
	v.blocked = compilePatterns(cfg.BlockedPatterns, v.logger)
	v.requireApproval = compilePatterns(cfg.RequireApprovalPatterns, v.logger)
	return v
}

func compilePatterns(patterns []string, logger *zap.Logger) []compiledPattern {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			logger.Warn("invalid regex pattern skipped",
				zap.String("pattern", p),
				zap.Error(err),
			)
			compiled = append(compiled, compiledPattern{raw: p})
			continue
		}
		compiled = append(compiled, compiledPattern{raw: p, re: re})
	}
	return compiled
}

// Validate serializes the action payload to canonical JSON (map keys sorted by
// encoding/json) and checks it against the blocked patterns, then the
// require-approval patterns, in list order. The first match short-circuits.
func (v *Validator) Validate(action Action) ValidationResult {
	payload := serializePayload(action.Payload)

	for _, p := range v.blocked {
		if p.re == nil {
			continue
		}
		if p.re.MatchString(payload) {
			return ValidationResult{
				Valid:  false,
				Reason: fmt.Sprintf("Blocked pattern detected: %s", p.raw),
			}
		}
	}

	for _, p := range v.requireApproval {
		if p.re == nil {
			continue
		}
		if p.re.MatchString(payload) {
			return ValidationResult{
				Valid:  false,
				Reason: fmt.Sprintf("Action requires human approval: %s", p.raw),
			}
		}
	}

	return ValidationResult{Valid: true}
}

// serializePayload renders a payload to deterministic text for matching.
// encoding/json sorts map keys, so identical payload structure always yields
// identical text.
func serializePayload(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}
