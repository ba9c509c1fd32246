package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/bookday/concierge/internal/convocache"
	"github.com/bookday/concierge/internal/observability"
	"github.com/bookday/concierge/pkg/models"
)

// DefaultToolTimeout is the hard cap on one handler attempt. The pipeline
// stops waiting at the deadline; the handler keeps its context and is
// expected to notice cancellation on its own.
const DefaultToolTimeout = 30 * time.Second

// backoffSchedule holds the waits between the four attempts.
var backoffSchedule = []time.Duration{
	500 * time.Millisecond,
	1000 * time.Millisecond,
	2000 * time.Millisecond,
}

// maxAttempts counts total executions, not retries.
const maxAttempts = 4

// PipelineOptions configures a Pipeline. Zero values take defaults; Sleep is
// replaceable so backoff tests run instantly.
type PipelineOptions struct {
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Sleep   func(time.Duration)
}

// Pipeline runs one tool call end to end: gate, validate, execute with
// timeout and retry, cache the success, normalize the outcome. Every path
// returns a tool result; errors never escape to the loop.
type Pipeline struct {
	registry  *Registry
	validator *Validator
	cache     *convocache.Cache
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
	sleep     func(time.Duration)
}

func NewPipeline(registry *Registry, validator *Validator, cache *convocache.Cache, opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		registry:  registry,
		validator: validator,
		cache:     cache,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		sleep:     opts.Sleep,
	}
	if p.timeout <= 0 {
		p.timeout = DefaultToolTimeout
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.sleep == nil {
		p.sleep = time.Sleep
	}
	return p
}

// Run executes one tool call for one tenant and always returns a result the
// model can read.
func (p *Pipeline) Run(ctx context.Context, actx models.AgentContext, features models.FeatureFlags, call models.ToolCall) models.ToolResult {
	start := time.Now()
	logger := p.logger.With(
		"tool", call.Name,
		"tool_call_id", call.ID,
		"company_id", actx.CompanyID,
		"conversation_id", actx.ConversationID,
	)
	logger.Info("tool execution started")

	def, fault := p.registry.Resolve(call.Name, features)
	if fault != nil {
		logger.Warn("tool rejected", "outcome", fault.ErrorType)
		p.metrics.ObserveToolExecution(call.Name, fault.ErrorType, time.Since(start).Seconds())
		return fault.Result(call.ID)
	}

	if fault := p.validator.Validate(call.Name, call.Input); fault != nil {
		logger.Warn("tool arguments invalid", "fields", fault.Fields)
		p.metrics.ObserveToolExecution(call.Name, FaultValidation, time.Since(start).Seconds())
		return fault.Result(call.ID)
	}

	value, execErr := p.executeWithRetry(ctx, logger, def, actx, call)
	duration := time.Since(start)

	if execErr != nil {
		logger.Error("tool execution failed",
			"error", execErr,
			"duration_ms", duration.Milliseconds())
		p.metrics.ObserveToolExecution(call.Name, FaultSystem, duration.Seconds())
		return systemFault(execErr).Result(call.ID)
	}

	result := normalizeOutcome(call.ID, value)
	if result.IsError {
		// Handler-reported faults (stale slot, unknown service) are not
		// successes: nothing is cached and the outcome counts as the fault.
		logger.Warn("tool reported a fault",
			"outcome", faultType(result),
			"duration_ms", duration.Milliseconds())
		p.metrics.ObserveToolExecution(call.Name, faultType(result), duration.Seconds())
		return result
	}

	// Sole cache-write site: successful executions only, so the snapshot can
	// never describe a result the model was not shown.
	if p.cache != nil {
		p.cache.Store(actx.ConversationID, call.Name, call.Input, value)
	}

	logger.Info("tool execution succeeded", "duration_ms", duration.Milliseconds())
	p.metrics.ObserveToolExecution(call.Name, "success", duration.Seconds())
	return result
}

func (p *Pipeline) executeWithRetry(ctx context.Context, logger *slog.Logger, def *Definition, actx models.AgentContext, call models.ToolCall) (any, error) {
	var lastErr *ToolError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		value, err := p.executeWithTimeout(ctx, def, actx, call)
		if err == nil {
			return value, nil
		}

		lastErr = err.WithAttempts(attempt)

		if !err.Retryable() || ctx.Err() != nil || attempt == maxAttempts {
			break
		}

		wait := backoffSchedule[attempt-1]
		logger.Warn("tool attempt failed, retrying",
			"attempt", attempt,
			"error_type", err.Type,
			"backoff_ms", wait.Milliseconds())
		p.metrics.ObserveToolRetry(call.Name)
		p.sleep(wait)
	}
	return nil, lastErr
}

// executeWithTimeout races the handler against the attempt deadline. On
// timeout the result channel stays buffered so the late goroutine can finish
// and exit without leaking.
func (p *Pipeline) executeWithTimeout(ctx context.Context, def *Definition, actx models.AgentContext, call models.ToolCall) (any, *ToolError) {
	execCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type execResult struct {
		value any
		err   error
	}
	resultCh := make(chan execResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- execResult{err: fmt.Errorf("%w: %v\n%s", ErrToolPanic, r, debug.Stack())}
			}
		}()
		value, err := def.Handler(execCtx, actx, call.Input)
		resultCh <- execResult{value: value, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, NewToolError(call.Name, res.err).WithToolCallID(call.ID)
		}
		return res.value, nil
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, NewToolError(call.Name, ctx.Err()).
				WithType(ToolErrorTimeout).
				WithToolCallID(call.ID)
		}
		return nil, NewToolError(call.Name, fmt.Errorf("%w after %s", ErrToolTimeout, p.timeout)).
			WithType(ToolErrorTimeout).
			WithToolCallID(call.ID)
	}
}

func systemFault(err error) *Fault {
	fault := NewFault(FaultSystem, "the tool failed to complete").
		WithRecovery("apologize to the customer and offer to try again in a moment")
	if toolErr, ok := GetToolError(err); ok {
		switch toolErr.Type {
		case ToolErrorTimeout:
			fault.Message = "the tool timed out"
		case ToolErrorNetwork, ToolErrorServer, ToolErrorRateLimit:
			fault.Message = "a backend service is temporarily unavailable"
		default:
			fault.Message = toolErr.Message
		}
	}
	return fault
}
