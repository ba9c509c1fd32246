package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bookday/concierge/internal/agent"
	"github.com/bookday/concierge/internal/agent/providers"
	"github.com/bookday/concierge/internal/channels"
	"github.com/bookday/concierge/internal/config"
	"github.com/bookday/concierge/internal/convocache"
	"github.com/bookday/concierge/internal/observability"
	"github.com/bookday/concierge/internal/scheduling"
	"github.com/bookday/concierge/internal/service"
	"github.com/bookday/concierge/internal/sessions"
	"github.com/bookday/concierge/internal/tools/booking"
	"github.com/bookday/concierge/internal/tools/handoff"
	"github.com/bookday/concierge/internal/tools/media"
)

// engine holds the composed runtime: everything serve and chat need.
type engine struct {
	receptionist *service.Receptionist
	registry     *prometheus.Registry
}

// buildEngine composes the full engine from configuration: stores, provider,
// tool registry, pipeline, loop, and the inbound service.
func buildEngine(cfg *config.Config, outbound channels.Outbound, logger *slog.Logger) (*engine, error) {
	store, err := openSchedulingStore(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	metrics := observability.New(promRegistry)

	cache := convocache.New(convocache.Options{
		TTL:      cfg.Cache.TTL,
		Capacity: cfg.Cache.Capacity,
	})

	directory := service.NewDirectory(cfg.Companies)
	generator := scheduling.NewGenerator(store, logger)

	registry := agent.NewRegistry()
	bookingTools := booking.New(store, generator, cache, directory, logger)
	if err := bookingTools.Register(registry); err != nil {
		return nil, fmt.Errorf("register booking tools: %w", err)
	}
	if err := handoff.New(&handoff.LogNotifier{Logger: logger}).Register(registry); err != nil {
		return nil, fmt.Errorf("register handoff tool: %w", err)
	}
	if err := media.New(outbound, logger).Register(registry); err != nil {
		return nil, fmt.Errorf("register media tool: %w", err)
	}

	validator, err := agent.NewValidator(registry, logger)
	if err != nil {
		return nil, fmt.Errorf("compile tool schemas: %w", err)
	}

	pipeline := agent.NewPipeline(registry, validator, cache, agent.PipelineOptions{
		Timeout: cfg.Agent.ToolTimeout,
		Logger:  logger,
		Metrics: metrics,
	})

	sessionStore := sessions.NewMemoryStore()
	loop, err := agent.NewLoop(agent.LoopOptions{
		Provider:      provider,
		Pipeline:      pipeline,
		Registry:      registry,
		Store:         sessionStore,
		Cache:         cache,
		MaxTokens:     cfg.Agent.MaxTokens,
		HistoryLimit:  cfg.Agent.HistoryLimit,
		MaxIterations: cfg.Agent.MaxIterations,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build agent loop: %w", err)
	}

	receptionist, err := service.New(service.Options{
		Companies: directory,
		Store:     sessionStore,
		Loop:      loop,
		Outbound:  outbound,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("engine composed",
		"provider", provider.Name(),
		"database", cfg.Database.Driver,
		"companies", len(cfg.Companies),
		"tools", registry.Names())

	return &engine{
		receptionist: receptionist,
		registry:     promRegistry,
	}, nil
}

func openSchedulingStore(cfg *config.Config) (scheduling.Store, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		store, err := scheduling.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case "memory":
		return scheduling.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func buildProvider(cfg *config.Config) (agent.ModelProvider, error) {
	name := cfg.LLM.DefaultProvider
	pc, ok := cfg.LLM.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}

	switch name {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

func buildLogger(cfg *config.Config, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
