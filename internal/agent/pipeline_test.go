package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bookday/concierge/internal/convocache"
	"github.com/bookday/concierge/pkg/models"
)

type recordedSleeper struct {
	waits []time.Duration
}

func (r *recordedSleeper) sleep(d time.Duration) {
	r.waits = append(r.waits, d)
}

func newTestPipeline(t *testing.T, registry *Registry, cache *convocache.Cache, sleeper *recordedSleeper, timeout time.Duration) *Pipeline {
	t.Helper()
	validator, err := NewValidator(registry, nil)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	opts := PipelineOptions{Timeout: timeout}
	if sleeper != nil {
		opts.Sleep = sleeper.sleep
	}
	return NewPipeline(registry, validator, cache, opts)
}

func call(name, args string) models.ToolCall {
	return models.ToolCall{ID: "call-1", Name: name, Input: json.RawMessage(args)}
}

var testActx = models.AgentContext{CompanyID: "co-1", ConversationID: "conv-1"}

func TestPipeline_SuccessRunsOnce(t *testing.T) {
	attempts := 0
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "echo",
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			attempts++
			return map[string]string{"echo": "hi"}, nil
		},
	})
	p := newTestPipeline(t, r, nil, nil, 0)

	result := p.Run(context.Background(), testActx, nil, call("echo", `{}`))
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
	if !strings.Contains(result.Content, `"echo":"hi"`) {
		t.Errorf("content = %s", result.Content)
	}
}

func TestPipeline_NonRetryableFailsFast(t *testing.T) {
	attempts := 0
	sleeper := &recordedSleeper{}
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "flaky",
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			attempts++
			return nil, errors.New("record was not found")
		},
	})
	p := newTestPipeline(t, r, nil, sleeper, 0)

	result := p.Run(context.Background(), testActx, nil, call("flaky", `{}`))
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want exactly 1", attempts)
	}
	if len(sleeper.waits) != 0 {
		t.Fatalf("backoffs = %v, want none", sleeper.waits)
	}
}

func TestPipeline_UnclassifiedErrorFailsFast(t *testing.T) {
	attempts := 0
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "odd",
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			attempts++
			return nil, errors.New("something inexplicable happened")
		},
	})
	p := newTestPipeline(t, r, nil, &recordedSleeper{}, 0)

	result := p.Run(context.Background(), testActx, nil, call("odd", `{}`))
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestPipeline_RetryableExhaustsFourAttempts(t *testing.T) {
	attempts := 0
	sleeper := &recordedSleeper{}
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "flaky",
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			attempts++
			return nil, errors.New("connection refused")
		},
	})
	p := newTestPipeline(t, r, nil, sleeper, 0)

	result := p.Run(context.Background(), testActx, nil, call("flaky", `{}`))
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if attempts != 4 {
		t.Fatalf("attempts = %d, want 4", attempts)
	}
	want := []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond, 2000 * time.Millisecond}
	if len(sleeper.waits) != len(want) {
		t.Fatalf("backoffs = %v, want %v", sleeper.waits, want)
	}
	for i, w := range want {
		if sleeper.waits[i] != w {
			t.Errorf("backoff %d = %v, want %v", i, sleeper.waits[i], w)
		}
	}
}

func TestPipeline_RetryStopsOnSuccess(t *testing.T) {
	attempts := 0
	sleeper := &recordedSleeper{}
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "flaky",
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("503 service unavailable")
			}
			return map[string]bool{"ok": true}, nil
		},
	})
	p := newTestPipeline(t, r, nil, sleeper, 0)

	result := p.Run(context.Background(), testActx, nil, call("flaky", `{}`))
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if len(sleeper.waits) != 2 {
		t.Fatalf("backoffs = %v, want 2 waits", sleeper.waits)
	}
}

func TestPipeline_TimeoutStopsWaiting(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "slow",
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, errors.New("record was not found")
		},
	})
	p := newTestPipeline(t, r, nil, &recordedSleeper{}, 10*time.Millisecond)

	start := time.Now()
	result := p.Run(context.Background(), testActx, nil, call("slow", `{}`))
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("pipeline waited %v past the timeout", elapsed)
	}
	if !strings.Contains(result.Content, FaultSystem) {
		t.Errorf("content = %s, want a %s fault", result.Content, FaultSystem)
	}
}

func TestPipeline_PanicIsContained(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "boom",
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			panic("handler exploded")
		},
	})
	p := newTestPipeline(t, r, nil, &recordedSleeper{}, 0)

	result := p.Run(context.Background(), testActx, nil, call("boom", `{}`))
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestPipeline_UnknownToolFault(t *testing.T) {
	r := NewRegistry()
	p := newTestPipeline(t, r, nil, nil, 0)

	result := p.Run(context.Background(), testActx, nil, call("ghost", `{}`))
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(result.Content, FaultNotFound) {
		t.Errorf("content = %s, want %s", result.Content, FaultNotFound)
	}
}

func TestPipeline_DisabledToolFault(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name:             "media_tool",
		RequiredFeatures: []string{"media"},
		Handler:          noopHandler,
	})
	p := newTestPipeline(t, r, nil, nil, 0)

	result := p.Run(context.Background(), testActx, models.FeatureFlags{}, call("media_tool", `{}`))
	if !strings.Contains(result.Content, FaultNotEnabled) {
		t.Errorf("content = %s, want %s", result.Content, FaultNotEnabled)
	}
}

func TestPipeline_CacheWrittenOnSuccessOnly(t *testing.T) {
	cache := convocache.New(convocache.Options{})
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name:    "good",
		Handler: noopHandler,
	})
	r.MustRegister(&Definition{
		Name: "bad",
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			return nil, errors.New("record was not found")
		},
	})
	p := newTestPipeline(t, r, cache, &recordedSleeper{}, 0)

	p.Run(context.Background(), testActx, nil, call("good", `{}`))
	if cache.Size("conv-1") != 1 {
		t.Fatalf("cache size after success = %d, want 1", cache.Size("conv-1"))
	}

	p.Run(context.Background(), testActx, nil, call("bad", `{}`))
	if cache.Size("conv-1") != 1 {
		t.Fatalf("cache size after failure = %d, want still 1", cache.Size("conv-1"))
	}
}

func TestPipeline_FaultOutcomeNotCached(t *testing.T) {
	cache := convocache.New(convocache.Options{})
	start := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	responses := []any{
		&models.AvailabilityResult{
			ServiceID: "svc-1",
			Slots: []models.AvailabilitySlot{
				{StaffID: "staff-1", StaffName: "Ana", Start: start, End: start.Add(time.Hour)},
			},
		},
		NewFault(FaultValidation, "service svc-2 does not exist for this business"),
	}
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: convocache.AvailabilityToolName,
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			next := responses[0]
			responses = responses[1:]
			return next, nil
		},
	})
	p := newTestPipeline(t, r, cache, nil, 0)

	first := p.Run(context.Background(), testActx, nil, call(convocache.AvailabilityToolName, `{}`))
	if first.IsError {
		t.Fatalf("first run errored: %s", first.Content)
	}

	second := p.Run(context.Background(), testActx, nil, call(convocache.AvailabilityToolName, `{}`))
	if !second.IsError {
		t.Fatal("fault outcome should be an error result")
	}
	if ft := faultType(second); ft != FaultValidation {
		t.Errorf("fault type = %q, want %q", ft, FaultValidation)
	}

	// The fault is not cached, so the earlier, still-valid offer remains
	// bookable.
	if cache.Size("conv-1") != 1 {
		t.Fatalf("cache size = %d, want 1", cache.Size("conv-1"))
	}
	offered := cache.OfferedSlots("conv-1")
	if len(offered) != 1 || !offered[0].Start.Equal(start) {
		t.Fatalf("offered slots = %+v, want the earlier offer", offered)
	}
}

func TestPipeline_ErrorFieldRewriteNotCached(t *testing.T) {
	cache := convocache.New(convocache.Options{})
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name: "lax",
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			return map[string]string{"error": "backend hiccup"}, nil
		},
	})
	p := newTestPipeline(t, r, cache, nil, 0)

	result := p.Run(context.Background(), testActx, nil, call("lax", `{}`))
	if !result.IsError {
		t.Fatal("generic error payload should normalize to a fault")
	}
	if ft := faultType(result); ft != FaultSystem {
		t.Errorf("fault type = %q, want %q", ft, FaultSystem)
	}
	if cache.Size("conv-1") != 0 {
		t.Fatalf("cache size = %d, want 0", cache.Size("conv-1"))
	}
}

func TestPipeline_ValidationFaultSkipsHandler(t *testing.T) {
	attempts := 0
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name:   "strict",
		Schema: json.RawMessage(`{"type":"object","properties":{"n":{"type":"integer"}},"required":["n"]}`),
		Handler: func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
			attempts++
			return nil, nil
		},
	})
	p := newTestPipeline(t, r, nil, nil, 0)

	result := p.Run(context.Background(), testActx, nil, call("strict", `{}`))
	if !result.IsError {
		t.Fatal("expected validation fault")
	}
	if attempts != 0 {
		t.Fatalf("handler ran %d times despite invalid args", attempts)
	}
}
