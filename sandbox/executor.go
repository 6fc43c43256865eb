package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxCommandLength bounds command payloads before the (stubbed) execution
// routine ever sees them.
const maxCommandLength = 10000

// unknownErrorMessage is reported when a recovered panic carries no usable
// error value.
const unknownErrorMessage = "Unknown error"

// SafeSandbox executes validated actions and reports a timed, logged result.
// Execute never fails out-of-band: validation rejections, malformed payloads
// and panics are all converted into ExecutionResult.Error.
type SafeSandbox struct {
	config     Config
	validator  *Validator
	apiLimiter *rate.Limiter
	logger     *zap.Logger
}

// NewSafeSandbox creates a sandbox with the given policy.
func NewSafeSandbox(cfg Config, logger *zap.Logger) *SafeSandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	perSecond := cfg.APICallsPerSecond
	if perSecond <= 0 {
		perSecond = DefaultConfig().APICallsPerSecond
	}
	return &SafeSandbox{
		config:     cfg,
		validator:  NewValidator(cfg, logger),
		apiLimiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:     logger.With(zap.String("component", "sandbox")),
	}
}

// Validate exposes the underlying policy check without executing anything.
func (s *SafeSandbox) Validate(action Action) ValidationResult {
	return s.validator.Validate(action)
}

// Execute validates and runs one action. The returned result is always
// well-formed; the caller branches on Success, never on an error value.
func (s *SafeSandbox) Execute(ctx context.Context, action Action) (result *ExecutionResult) {
	start := time.Now()
	logs := make([]LogEntry, 0, 2)

	defer func() {
		if r := recover(); r != nil {
			msg := unknownErrorMessage
			if err, ok := r.(error); ok {
				msg = err.Error()
			}
			logs = append(logs, logEntry(LogError, msg))
			s.logger.Error("sandbox execution panicked", zap.Any("panic", r))
			result = &ExecutionResult{
				Success:    false,
				Error:      msg,
				Logs:       logs,
				DurationMs: time.Since(start).Milliseconds(),
			}
		}
	}()

	validation := s.validator.Validate(action)
	if !validation.Valid {
		reason := validation.Reason
		if reason == "" {
			reason = "Action validation failed"
		}
		return &ExecutionResult{
			Success:    false,
			Error:      reason,
			Logs:       logs,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	logs = append(logs, logEntry(LogInfo, fmt.Sprintf("Executing action: %s", action.Type)))

	var output any
	var err error
	switch action.Type {
	case "command":
		output, err = s.executeCommand(action.Payload)
	case "api":
		output, err = s.executeAPICall(ctx, action.Payload)
	default:
		output = map[string]any{"message": "Action type not implemented"}
	}

	if err != nil {
		logs = append(logs, logEntry(LogError, err.Error()))
		s.logger.Warn("action execution failed",
			zap.String("type", action.Type),
			zap.Error(err),
		)
		return &ExecutionResult{
			Success:    false,
			Error:      err.Error(),
			Logs:       logs,
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	logs = append(logs, logEntry(LogInfo, "Action completed successfully"))
	s.logger.Debug("action executed",
		zap.String("type", action.Type),
		zap.Duration("duration", time.Since(start)),
	)

	return &ExecutionResult{
		Success:    true,
		Output:     output,
		Logs:       logs,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// executeCommand checks command payload shape and size, then returns a
// placeholder acknowledgment. Real command execution stays out of this
// component until a container-based backend replaces the stub.
func (s *SafeSandbox) executeCommand(payload any) (any, error) {
	command, ok := payload.(string)
	if !ok || command == "" {
		return nil, fmt.Errorf("command must be a non-empty string")
	}
	if len(command) > maxCommandLength {
		return nil, fmt.Errorf("command exceeds maximum length")
	}
	return map[string]any{
		"message": "Command execution requires Docker sandbox",
		"command": command,
	}, nil
}

// executeAPICall checks that the payload is a well-formed request object and
// returns a placeholder acknowledgment. The rate limiter is the hook for the
// production path that makes real calls.
func (s *SafeSandbox) executeAPICall(ctx context.Context, payload any) (any, error) {
	request, ok := payload.(map[string]any)
	if !ok || request == nil {
		return nil, fmt.Errorf("API request must be an object")
	}

	url, ok := request["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("API request must have a valid URL")
	}

	method, ok := request["method"].(string)
	if !ok || method == "" {
		return nil, fmt.Errorf("API request must have a valid method")
	}

	if err := s.apiLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("API rate limit wait: %w", err)
	}

	return map[string]any{
		"message": "API call logged",
		"request": request,
	}, nil
}

func logEntry(level LogLevel, message string) LogEntry {
	return LogEntry{Timestamp: time.Now(), Level: level, Message: message}
}
