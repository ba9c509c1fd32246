// Package handoff implements escalation to a human operator. The tool is
// terminal: the turn ends right after it runs, with no reply text, so the
// model cannot keep talking past the escalation.
package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bookday/concierge/internal/agent"
	"github.com/bookday/concierge/pkg/models"
)

// ToolName is the registered name of the escalation tool.
const ToolName = "handoff_to_human"

const schema = `{
	"type": "object",
	"properties": {
		"reason": {
			"type": "string",
			"description": "Short summary of why a human is needed"
		}
	},
	"required": ["reason"],
	"additionalProperties": false
}`

// Notifier receives escalations. Implementations page an operator, post to a
// team channel, or in the simplest case just log.
type Notifier interface {
	NotifyHandoff(ctx context.Context, actx models.AgentContext, reason string) error
}

// LogNotifier is a Notifier that only logs.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) NotifyHandoff(ctx context.Context, actx models.AgentContext, reason string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("conversation escalated to a human",
		"company_id", actx.CompanyID,
		"conversation_id", actx.ConversationID,
		"reason", reason)
	return nil
}

// Tool wires the escalation handler.
type Tool struct {
	notifier Notifier
}

func New(notifier Notifier) *Tool {
	if notifier == nil {
		notifier = &LogNotifier{}
	}
	return &Tool{notifier: notifier}
}

func (t *Tool) Register(registry *agent.Registry) error {
	return registry.Register(&agent.Definition{
		Name:        ToolName,
		Description: "Hand the conversation to a human operator. Use when the customer asks for a person or the request is beyond your tools.",
		Schema:      json.RawMessage(schema),
		Terminal:    true,
		Handler:     t.handoff,
	})
}

type handoffArgs struct {
	Reason string `json:"reason"`
}

func (t *Tool) handoff(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
	var params handoffArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := t.notifier.NotifyHandoff(ctx, actx, params.Reason); err != nil {
		return nil, err
	}
	return map[string]string{"status": "queued", "reason": params.Reason}, nil
}
