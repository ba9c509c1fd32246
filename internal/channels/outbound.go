// Package channels defines the outbound delivery seam. Real messaging
// adapters implement Outbound; the engine itself never talks to a messaging
// platform directly.
package channels

import (
	"context"
	"log/slog"
)

// OutboundMessage is one message leaving the engine.
type OutboundMessage struct {
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Outbound delivers messages to the customer on whatever channel the
// conversation lives on.
type Outbound interface {
	Send(ctx context.Context, conversationID string, msg OutboundMessage) error
}

// LogSender is an Outbound that only logs. Used by the chat CLI and tests.
type LogSender struct {
	Logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{Logger: logger}
}

func (s *LogSender) Send(ctx context.Context, conversationID string, msg OutboundMessage) error {
	s.Logger.Info("outbound message",
		"conversation_id", conversationID,
		"text", msg.Text,
		"media_url", msg.MediaURL)
	return nil
}
