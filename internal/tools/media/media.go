// Package media implements the send_media tool: delivering an image or
// document to the customer through the outbound channel.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bookday/concierge/internal/agent"
	"github.com/bookday/concierge/internal/channels"
	"github.com/bookday/concierge/pkg/models"
)

// ToolName is the registered name of the media tool.
const ToolName = "send_media"

// mediaFeature gates the tool per tenant.
const mediaFeature = "media"

const schema = `{
	"type": "object",
	"properties": {
		"url": {
			"type": "string",
			"format": "uri",
			"description": "Public URL of the image or document to send"
		},
		"caption": {
			"type": "string",
			"description": "Optional caption shown with the media"
		}
	},
	"required": ["url"],
	"additionalProperties": false
}`

// Tool sends media through the configured outbound channel.
type Tool struct {
	outbound channels.Outbound
	logger   *slog.Logger
}

func New(outbound channels.Outbound, logger *slog.Logger) *Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{outbound: outbound, logger: logger}
}

func (t *Tool) Register(registry *agent.Registry) error {
	return registry.Register(&agent.Definition{
		Name:             ToolName,
		Description:      "Send an image or document to the customer, for example a price list or a location map.",
		Schema:           json.RawMessage(schema),
		RequiredFeatures: []string{mediaFeature},
		Handler:          t.sendMedia,
	})
}

type sendMediaArgs struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

func (t *Tool) sendMedia(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
	var params sendMediaArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	err := t.outbound.Send(ctx, actx.ConversationID, channels.OutboundMessage{
		MediaURL: params.URL,
		Caption:  params.Caption,
	})
	if err != nil {
		return nil, fmt.Errorf("media delivery failed: %w", err)
	}

	t.logger.Info("media sent",
		"conversation_id", actx.ConversationID,
		"url", params.URL)

	return map[string]string{"status": "sent", "url": params.URL}, nil
}
