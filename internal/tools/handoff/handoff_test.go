package handoff

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bookday/concierge/internal/agent"
	"github.com/bookday/concierge/pkg/models"
)

type recordingNotifier struct {
	conversations []string
	reasons       []string
}

func (n *recordingNotifier) NotifyHandoff(ctx context.Context, actx models.AgentContext, reason string) error {
	n.conversations = append(n.conversations, actx.ConversationID)
	n.reasons = append(n.reasons, reason)
	return nil
}

func TestHandoffIsTerminal(t *testing.T) {
	registry := agent.NewRegistry()
	if err := New(&recordingNotifier{}).Register(registry); err != nil {
		t.Fatalf("Register: %v", err)
	}

	def, ok := registry.Get(ToolName)
	if !ok {
		t.Fatal("handoff_to_human not registered")
	}
	if !def.Terminal {
		t.Error("handoff_to_human must be terminal")
	}
}

func TestHandoffNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	registry := agent.NewRegistry()
	if err := New(notifier).Register(registry); err != nil {
		t.Fatalf("Register: %v", err)
	}
	def, ok := registry.Get(ToolName)
	if !ok {
		t.Fatal("handoff_to_human not registered")
	}

	actx := models.AgentContext{CompanyID: "co-1", ConversationID: "conv-9"}
	value, err := def.Handler(context.Background(), actx,
		json.RawMessage(`{"reason":"customer wants a refund"}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	result := value.(map[string]string)
	if result["status"] != "queued" {
		t.Errorf("status = %v", result["status"])
	}
	if len(notifier.conversations) != 1 || notifier.conversations[0] != "conv-9" {
		t.Errorf("notified conversations = %v", notifier.conversations)
	}
	if notifier.reasons[0] != "customer wants a refund" {
		t.Errorf("reason = %q", notifier.reasons[0])
	}
}
