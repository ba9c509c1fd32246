package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bookday/concierge/pkg/models"
)

// Phase identifies where in a turn the loop currently is.
type Phase string

const (
	PhasePrompting   Phase = "prompting"
	PhaseCalling     Phase = "calling"
	PhaseActing      Phase = "acting"
	PhaseTerminating Phase = "terminating"
)

// LoopError wraps a failure with its phase and iteration for diagnostics.
type LoopError struct {
	Phase     Phase
	Iteration int
	Cause     error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("loop %s (iteration %d): %v", e.Phase, e.Iteration, e.Cause)
}

func (e *LoopError) Unwrap() error {
	return e.Cause
}

// TurnResult is the outcome of processing one inbound message.
type TurnResult struct {
	// Reply is the outbound text. Empty when Handoff is set.
	Reply      string
	Handoff    bool
	Iterations int
	Usage      Usage
}

// Loop drives one conversation turn: prompt the model, execute the tools it
// asks for, feed the results back, repeat until it answers in text, hands
// off, or hits the iteration cap.
type Loop struct {
	opts LoopOptions
}

func NewLoop(opts LoopOptions) (*Loop, error) {
	if opts.Provider == nil {
		return nil, ErrNoProvider
	}
	if opts.Pipeline == nil || opts.Registry == nil || opts.Store == nil {
		return nil, errors.New("loop requires pipeline, registry, and store")
	}
	opts.applyDefaults()
	return &Loop{opts: opts}, nil
}

// Run processes one inbound message that has already been appended to the
// conversation history. It never returns an error for model or tool
// failures; those degrade into the apology reply. Only broken wiring
// surfaces as an error.
func (l *Loop) Run(ctx context.Context, company *models.Company, conv *models.Conversation, actx models.AgentContext) (*TurnResult, error) {
	logger := l.opts.Logger.With(
		"company_id", company.ID,
		"conversation_id", conv.ID,
	)

	history, err := l.opts.Store.GetHistory(ctx, conv.ID, l.opts.HistoryLimit)
	if err != nil {
		return nil, &LoopError{Phase: PhasePrompting, Cause: err}
	}

	req := &CompletionRequest{
		Model:     l.opts.Model,
		System:    l.systemPrompt(company, conv),
		Messages:  history,
		Tools:     l.opts.Registry.SpecsFor(company.Features),
		MaxTokens: l.opts.MaxTokens,
	}

	result := &TurnResult{}
	maxIters := iterationCap(company.Features, l.opts.MaxIterations)

	for iteration := 1; iteration <= maxIters; iteration++ {
		result.Iterations = iteration

		completion, err := l.opts.Provider.Complete(ctx, req)
		if err != nil {
			logger.Error("model call failed",
				"phase", PhaseCalling,
				"iteration", iteration,
				"error", err)
			// Failures are contained per iteration: retry while the cap
			// allows, apologize only when the turn is out of attempts.
			if iteration < maxIters {
				continue
			}
			l.opts.Metrics.ObserveTurn("provider_error", iteration)
			result.Reply = ApologyReply
			return result, nil
		}
		result.Usage.InputTokens += completion.Usage.InputTokens
		result.Usage.OutputTokens += completion.Usage.OutputTokens

		if len(completion.ToolCalls) == 0 {
			result.Reply = completion.Content
			l.appendAssistant(ctx, logger, conv.ID, completion, nil)
			l.opts.Metrics.ObserveTurn("replied", iteration)
			return result, nil
		}

		toolResults, handoff := l.executeCalls(ctx, actx, company, completion.ToolCalls)

		assistantMsg := l.appendAssistant(ctx, logger, conv.ID, completion, completion.ToolCalls)
		l.appendToolResults(ctx, logger, conv.ID, toolResults)

		req.Messages = append(req.Messages, assistantMsg, &models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleTool,
			ToolResults:    toolResults,
		})

		if handoff {
			result.Handoff = true
			logger.Info("turn handed off to a human", "iteration", iteration)
			l.opts.Metrics.ObserveTurn("handoff", iteration)
			return result, nil
		}
	}

	logger.Warn("iteration cap exhausted", "phase", PhaseTerminating, "cap", maxIters)
	l.opts.Metrics.ObserveTurn("cap_exhausted", maxIters)
	result.Reply = ApologyReply
	return result, nil
}

// executeCalls runs one response's tool calls sequentially in model order.
// A terminal tool stops execution; calls after it are not run.
func (l *Loop) executeCalls(ctx context.Context, actx models.AgentContext, company *models.Company, calls []models.ToolCall) ([]models.ToolResult, bool) {
	results := make([]models.ToolResult, 0, len(calls))
	for _, call := range calls {
		res := l.opts.Pipeline.Run(ctx, actx, company.Features, call)
		results = append(results, res)

		if def, ok := l.opts.Registry.Get(call.Name); ok && def.Terminal && !res.IsError {
			return results, true
		}
	}
	return results, false
}

func (l *Loop) systemPrompt(company *models.Company, conv *models.Conversation) string {
	var b strings.Builder
	if company.SystemPrompt != "" {
		b.WriteString(company.SystemPrompt)
	} else {
		fmt.Fprintf(&b, "You are the virtual receptionist for %s. Be brief, warm, and accurate.", company.Name)
	}
	if conv.Summary != "" {
		b.WriteString("\n\nConversation so far: ")
		b.WriteString(conv.Summary)
	}
	if l.opts.Cache != nil {
		if snapshot := l.opts.Cache.SchedulingSnapshotAt(conv.ID, l.opts.Now()); snapshot != "" {
			b.WriteString("\n\n")
			b.WriteString(snapshot)
		}
	}
	return b.String()
}

func (l *Loop) appendAssistant(ctx context.Context, logger *slog.Logger, conversationID string, completion *Completion, calls []models.ToolCall) *models.Message {
	msg := &models.Message{
		ConversationID: conversationID,
		Direction:      models.DirectionOutbound,
		Role:           models.RoleAssistant,
		Content:        completion.Content,
		ToolCalls:      calls,
	}
	if err := l.opts.Store.AppendMessage(ctx, conversationID, msg); err != nil {
		logger.Warn("failed to persist assistant message", "error", err)
	}
	return msg
}

func (l *Loop) appendToolResults(ctx context.Context, logger *slog.Logger, conversationID string, results []models.ToolResult) {
	if len(results) == 0 {
		return
	}
	msg := &models.Message{
		ConversationID: conversationID,
		Role:           models.RoleTool,
		ToolResults:    results,
	}
	if err := l.opts.Store.AppendMessage(ctx, conversationID, msg); err != nil {
		logger.Warn("failed to persist tool results", "error", err)
	}
}
