package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/bookday/concierge/internal/agent"
	"github.com/bookday/concierge/internal/channels"
	"github.com/bookday/concierge/internal/config"
	"github.com/bookday/concierge/internal/convocache"
	"github.com/bookday/concierge/internal/sessions"
	"github.com/bookday/concierge/pkg/models"
)

type scriptProvider struct {
	completions []*agent.Completion
	calls       int
}

func (p *scriptProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.Completion, error) {
	if p.calls >= len(p.completions) {
		return nil, errors.New("script exhausted")
	}
	c := p.completions[p.calls]
	p.calls++
	return c, nil
}

func (p *scriptProvider) Name() string { return "script" }

type recordingSender struct {
	sent []channels.OutboundMessage
	err  error
}

func (s *recordingSender) Send(ctx context.Context, conversationID string, msg channels.OutboundMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newReceptionist(t *testing.T, provider agent.ModelProvider, sender channels.Outbound) (*Receptionist, sessions.Store) {
	t.Helper()
	logger := slog.Default()

	registry := agent.NewRegistry()
	validator, err := agent.NewValidator(registry, logger)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	cache := convocache.New(convocache.Options{})
	pipeline := agent.NewPipeline(registry, validator, cache, agent.PipelineOptions{})

	store := sessions.NewMemoryStore()
	loop, err := agent.NewLoop(agent.LoopOptions{
		Provider: provider,
		Pipeline: pipeline,
		Registry: registry,
		Store:    store,
		Cache:    cache,
	})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	directory := NewDirectory([]config.CompanyConfig{{
		ID:       "co-1",
		Name:     "Glow Studio",
		Timezone: "UTC",
	}})

	recep, err := New(Options{
		Companies: directory,
		Store:     store,
		Loop:      loop,
		Outbound:  sender,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return recep, store
}

func TestHandleInbound_RepliesAndDelivers(t *testing.T) {
	provider := &scriptProvider{completions: []*agent.Completion{
		{Content: "We are open 9 to 5.", StopReason: "end_turn"},
	}}
	sender := &recordingSender{}
	recep, store := newReceptionist(t, provider, sender)

	result, err := recep.HandleInbound(context.Background(), "co-1", "client-1", "what are your hours?")
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if result.Reply != "We are open 9 to 5." {
		t.Errorf("reply = %q", result.Reply)
	}
	if len(sender.sent) != 1 || sender.sent[0].Text != "We are open 9 to 5." {
		t.Errorf("delivered = %+v", sender.sent)
	}

	conv, err := store.GetOrCreate(context.Background(), "co-1", "client-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	history, err := store.GetHistory(context.Background(), conv.ID, 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	// Inbound user message plus the assistant reply.
	if len(history) != 2 {
		t.Fatalf("history = %d messages, want 2", len(history))
	}
	if history[0].Role != models.RoleUser || history[0].Content != "what are your hours?" {
		t.Errorf("first message = %+v", history[0])
	}
	if history[1].Role != models.RoleAssistant {
		t.Errorf("second message role = %s", history[1].Role)
	}
}

func TestHandleInbound_UnknownCompany(t *testing.T) {
	provider := &scriptProvider{}
	recep, _ := newReceptionist(t, provider, &recordingSender{})

	_, err := recep.HandleInbound(context.Background(), "co-missing", "client-1", "hello")
	if err == nil {
		t.Fatal("expected an error for an unknown company")
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times for unknown company", provider.calls)
	}
}

func TestHandleInbound_DeliveryFailureSurfaces(t *testing.T) {
	provider := &scriptProvider{completions: []*agent.Completion{
		{Content: "hi there", StopReason: "end_turn"},
	}}
	recep, _ := newReceptionist(t, provider, &recordingSender{err: errors.New("connection reset")})

	_, err := recep.HandleInbound(context.Background(), "co-1", "client-1", "hello")
	if err == nil {
		t.Fatal("expected a delivery error")
	}
}

func TestHandleInbound_SameClientReusesConversation(t *testing.T) {
	provider := &scriptProvider{completions: []*agent.Completion{
		{Content: "first", StopReason: "end_turn"},
		{Content: "second", StopReason: "end_turn"},
	}}
	sender := &recordingSender{}
	recep, store := newReceptionist(t, provider, sender)

	if _, err := recep.HandleInbound(context.Background(), "co-1", "client-1", "one"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := recep.HandleInbound(context.Background(), "co-1", "client-1", "two"); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	conv, _ := store.GetOrCreate(context.Background(), "co-1", "client-1")
	history, _ := store.GetHistory(context.Background(), conv.ID, 0)
	// Two user messages and two replies in one thread.
	if len(history) != 4 {
		t.Fatalf("history = %d messages, want 4", len(history))
	}
}

func TestDirectoryBuildsFeatureFlags(t *testing.T) {
	directory := NewDirectory([]config.CompanyConfig{{
		ID:       "co-1",
		Name:     "Glow Studio",
		Timezone: "America/Sao_Paulo",
		Features: map[string]any{"scheduling": true, "max_iterations": 3},
	}})

	company, err := directory.GetCompany(context.Background(), "co-1")
	if err != nil {
		t.Fatalf("GetCompany: %v", err)
	}
	if !company.Features.Bool("scheduling") {
		t.Error("scheduling flag lost")
	}
	if company.Features.Int("max_iterations", 0) != 3 {
		t.Errorf("max_iterations = %d", company.Features.Int("max_iterations", 0))
	}
}
