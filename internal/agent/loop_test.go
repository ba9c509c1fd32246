package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bookday/concierge/internal/convocache"
	"github.com/bookday/concierge/internal/sessions"
	"github.com/bookday/concierge/pkg/models"
)

// scriptProvider replays canned completions in order. When err is set, the
// first failCalls invocations fail instead; failCalls of zero fails every
// call.
type scriptProvider struct {
	completions []*Completion
	calls       int
	served      int
	err         error
	failCalls   int
}

func (p *scriptProvider) Name() string { return "script" }

func (p *scriptProvider) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	p.calls++
	if p.err != nil && (p.failCalls == 0 || p.calls <= p.failCalls) {
		return nil, p.err
	}
	if p.served >= len(p.completions) {
		return &Completion{Content: "fallback"}, nil
	}
	c := p.completions[p.served]
	p.served++
	return c, nil
}

type loopFixture struct {
	loop     *Loop
	store    *sessions.MemoryStore
	provider *scriptProvider
	company  *models.Company
	conv     *models.Conversation
	executed *[]string
}

func newLoopFixture(t *testing.T, provider *scriptProvider, maxIterations int) *loopFixture {
	t.Helper()

	executed := &[]string{}
	registry := NewRegistry()
	registry.MustRegister(&Definition{
		Name:        "get_available_slots",
		Description: "list open slots",
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			*executed = append(*executed, "get_available_slots")
			return map[string]string{"status": "ok"}, nil
		},
	})
	registry.MustRegister(&Definition{
		Name:        "handoff_to_human",
		Description: "escalate to a person",
		Terminal:    true,
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			*executed = append(*executed, "handoff_to_human")
			return map[string]string{"status": "queued"}, nil
		},
	})

	validator, err := NewValidator(registry, nil)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	cache := convocache.New(convocache.Options{})
	pipeline := NewPipeline(registry, validator, cache, PipelineOptions{Sleep: func(time.Duration) {}})

	store := sessions.NewMemoryStore()
	conv, err := store.GetOrCreate(context.Background(), "co-1", "client-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := store.AppendMessage(context.Background(), conv.ID, &models.Message{
		Role:    models.RoleUser,
		Content: "hi, can I book a haircut?",
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	loop, err := NewLoop(LoopOptions{
		Provider:      provider,
		Pipeline:      pipeline,
		Registry:      registry,
		Store:         store,
		Cache:         cache,
		MaxIterations: maxIterations,
	})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	return &loopFixture{
		loop:     loop,
		store:    store,
		provider: provider,
		company:  &models.Company{ID: "co-1", Name: "Glow Studio"},
		conv:     conv,
		executed: executed,
	}
}

func (f *loopFixture) run(t *testing.T) *TurnResult {
	t.Helper()
	actx := models.AgentContext{CompanyID: f.company.ID, ConversationID: f.conv.ID}
	result, err := f.loop.Run(context.Background(), f.company, f.conv, actx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result
}

func TestLoop_TextReplyReturnsImmediately(t *testing.T) {
	provider := &scriptProvider{completions: []*Completion{
		{Content: "We're open 9 to 6, Monday through Saturday."},
	}}
	f := newLoopFixture(t, provider, 5)

	result := f.run(t)
	if result.Reply != "We're open 9 to 6, Monday through Saturday." {
		t.Errorf("reply = %q", result.Reply)
	}
	if result.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", result.Iterations)
	}
	if len(*f.executed) != 0 {
		t.Errorf("tools executed = %v, want none", *f.executed)
	}
}

func TestLoop_ToolRoundTripThenReply(t *testing.T) {
	provider := &scriptProvider{completions: []*Completion{
		{ToolCalls: []models.ToolCall{{ID: "tc-1", Name: "get_available_slots", Input: json.RawMessage(`{}`)}}},
		{Content: "We have Tuesday at 10am free."},
	}}
	f := newLoopFixture(t, provider, 5)

	result := f.run(t)
	if result.Reply != "We have Tuesday at 10am free." {
		t.Errorf("reply = %q", result.Reply)
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", result.Iterations)
	}
	if len(*f.executed) != 1 {
		t.Errorf("tools executed = %v, want one", *f.executed)
	}

	history, _ := f.store.GetHistory(context.Background(), f.conv.ID, 0)
	// inbound + assistant tool request + tool results + final assistant reply
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4", len(history))
	}
	if len(history[1].ToolCalls) != 1 {
		t.Errorf("assistant message lacks tool calls")
	}
	if len(history[2].ToolResults) != 1 {
		t.Errorf("tool message lacks results")
	}
}

func TestLoop_CapOfOneMeansOneModelCall(t *testing.T) {
	provider := &scriptProvider{completions: []*Completion{
		{ToolCalls: []models.ToolCall{{ID: "tc-1", Name: "get_available_slots", Input: json.RawMessage(`{}`)}}},
		{Content: "should never be requested"},
	}}
	f := newLoopFixture(t, provider, 5)
	f.company.Features = models.FeatureFlags{"max_iterations": 1}

	result := f.run(t)
	if provider.calls != 1 {
		t.Fatalf("model calls = %d, want 1", provider.calls)
	}
	if result.Reply != ApologyReply {
		t.Errorf("reply = %q, want the apology", result.Reply)
	}
}

func TestLoop_IterationCapClamped(t *testing.T) {
	if got := iterationCap(models.FeatureFlags{"max_iterations": 50}, 5); got != MaxIterations {
		t.Errorf("cap(50) = %d, want %d", got, MaxIterations)
	}
	if got := iterationCap(models.FeatureFlags{"max_iterations": 0}, 5); got != 5 {
		t.Errorf("cap(0) = %d, want the configured default", got)
	}
	if got := iterationCap(models.FeatureFlags{"max_iterations": -3}, 5); got != 5 {
		t.Errorf("cap(-3) = %d, want the configured default", got)
	}
	if got := iterationCap(nil, 0); got != MinIterations {
		t.Errorf("cap with no default = %d, want %d", got, MinIterations)
	}
	if got := iterationCap(nil, 5); got != 5 {
		t.Errorf("cap(nil) = %d, want 5", got)
	}
}

func TestLoop_HandoffTerminatesWithoutReply(t *testing.T) {
	provider := &scriptProvider{completions: []*Completion{
		{ToolCalls: []models.ToolCall{
			{ID: "tc-1", Name: "handoff_to_human", Input: json.RawMessage(`{}`)},
			{ID: "tc-2", Name: "get_available_slots", Input: json.RawMessage(`{}`)},
		}},
	}}
	f := newLoopFixture(t, provider, 5)

	result := f.run(t)
	if !result.Handoff {
		t.Fatal("expected handoff")
	}
	if result.Reply != "" {
		t.Errorf("reply = %q, want empty", result.Reply)
	}
	// The terminal tool stops the batch; the trailing call never runs.
	if len(*f.executed) != 1 || (*f.executed)[0] != "handoff_to_human" {
		t.Errorf("tools executed = %v, want only handoff_to_human", *f.executed)
	}
}

func TestLoop_ProviderFailureYieldsApology(t *testing.T) {
	provider := &scriptProvider{err: errors.New("model backend down")}
	f := newLoopFixture(t, provider, 5)

	result := f.run(t)
	if result.Reply != ApologyReply {
		t.Errorf("reply = %q, want the apology", result.Reply)
	}
	// Every iteration retries the model before giving up.
	if provider.calls != 5 {
		t.Errorf("model calls = %d, want 5", provider.calls)
	}
}

func TestLoop_ProviderFailureRetriesWithinCap(t *testing.T) {
	provider := &scriptProvider{
		err:       errors.New("model backend down"),
		failCalls: 1,
		completions: []*Completion{
			{Content: "recovered reply"},
		},
	}
	f := newLoopFixture(t, provider, 5)

	result := f.run(t)
	if provider.calls != 2 {
		t.Fatalf("model calls = %d, want 2", provider.calls)
	}
	if result.Reply != "recovered reply" {
		t.Errorf("reply = %q, want the recovered reply", result.Reply)
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", result.Iterations)
	}
}

func TestLoop_ProviderFailureOnLastIterationApologizes(t *testing.T) {
	provider := &scriptProvider{err: errors.New("model backend down")}
	f := newLoopFixture(t, provider, 1)

	result := f.run(t)
	if provider.calls != 1 {
		t.Fatalf("model calls = %d, want 1", provider.calls)
	}
	if result.Reply != ApologyReply {
		t.Errorf("reply = %q, want the apology", result.Reply)
	}
}

func TestLoop_CapExhaustionYieldsApology(t *testing.T) {
	toolOnly := &Completion{ToolCalls: []models.ToolCall{
		{ID: "tc", Name: "get_available_slots", Input: json.RawMessage(`{}`)},
	}}
	provider := &scriptProvider{completions: []*Completion{toolOnly, toolOnly, toolOnly}}
	f := newLoopFixture(t, provider, 3)

	result := f.run(t)
	if result.Reply != ApologyReply {
		t.Errorf("reply = %q, want the apology", result.Reply)
	}
	if result.Iterations != 3 {
		t.Errorf("iterations = %d, want 3", result.Iterations)
	}
}
