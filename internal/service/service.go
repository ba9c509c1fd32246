// Package service is the inbound entry point of the engine: it owns the
// conversation lifecycle around one agent turn. Channel adapters hand it raw
// inbound text; it locks the conversation, persists the message, runs the
// agent loop, and delivers the reply.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bookday/concierge/internal/agent"
	"github.com/bookday/concierge/internal/channels"
	"github.com/bookday/concierge/internal/config"
	"github.com/bookday/concierge/internal/sessions"
	"github.com/bookday/concierge/pkg/models"
)

// Directory resolves tenants by id. The engine holds one Company record per
// configured tenant; lookups are read-only after construction.
type Directory struct {
	mu        sync.RWMutex
	companies map[string]*models.Company
}

// NewDirectory builds a Directory from the configured tenants.
func NewDirectory(configs []config.CompanyConfig) *Directory {
	companies := make(map[string]*models.Company, len(configs))
	for _, cc := range configs {
		companies[cc.ID] = &models.Company{
			ID:           cc.ID,
			Name:         cc.Name,
			Timezone:     cc.Timezone,
			SystemPrompt: cc.SystemPrompt,
			Features:     models.FeatureFlags(cc.Features),
		}
	}
	return &Directory{companies: companies}
}

func (d *Directory) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	company, ok := d.companies[id]
	if !ok {
		return nil, fmt.Errorf("company %s not found", id)
	}
	return company, nil
}

// Receptionist processes inbound customer messages end to end.
type Receptionist struct {
	companies *Directory
	store     sessions.Store
	locker    *sessions.ConversationLocker
	loop      *agent.Loop
	outbound  channels.Outbound
	logger    *slog.Logger
}

// Options configures a Receptionist. All fields except Logger are required.
type Options struct {
	Companies *Directory
	Store     sessions.Store
	Loop      *agent.Loop
	Outbound  channels.Outbound
	Logger    *slog.Logger
}

func New(opts Options) (*Receptionist, error) {
	if opts.Companies == nil {
		return nil, fmt.Errorf("service: company directory is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("service: session store is required")
	}
	if opts.Loop == nil {
		return nil, fmt.Errorf("service: agent loop is required")
	}
	if opts.Outbound == nil {
		return nil, fmt.Errorf("service: outbound channel is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Receptionist{
		companies: opts.Companies,
		store:     opts.Store,
		locker:    sessions.NewConversationLocker(),
		loop:      opts.Loop,
		outbound:  opts.Outbound,
		logger:    logger,
	}, nil
}

// HandleInbound runs one full turn for an inbound customer message. Turns on
// the same conversation are serialized; turns on different conversations run
// concurrently.
func (r *Receptionist) HandleInbound(ctx context.Context, companyID, clientID, text string) (*agent.TurnResult, error) {
	company, err := r.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	conv, err := r.store.GetOrCreate(ctx, companyID, clientID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	if err := r.locker.Lock(ctx, conv.ID); err != nil {
		return nil, fmt.Errorf("acquire conversation lock: %w", err)
	}
	defer r.locker.Unlock(conv.ID)

	inbound := &models.Message{
		ConversationID: conv.ID,
		Direction:      models.DirectionInbound,
		Role:           models.RoleUser,
		Content:        text,
	}
	if err := r.store.AppendMessage(ctx, conv.ID, inbound); err != nil {
		return nil, fmt.Errorf("persist inbound message: %w", err)
	}

	actx := models.AgentContext{
		CompanyID:      companyID,
		ConversationID: conv.ID,
		ClientID:       clientID,
		JobID:          uuid.NewString(),
	}

	result, err := r.loop.Run(ctx, company, conv, actx)
	if err != nil {
		return nil, fmt.Errorf("agent turn: %w", err)
	}

	if result.Handoff {
		r.logger.Info("turn ended in handoff, suppressing reply",
			"company_id", companyID,
			"conversation_id", conv.ID)
		return result, nil
	}

	if result.Reply != "" {
		err := r.outbound.Send(ctx, conv.ID, channels.OutboundMessage{Text: result.Reply})
		if err != nil {
			r.logger.Error("outbound delivery failed",
				"conversation_id", conv.ID,
				"error", err)
			return result, fmt.Errorf("deliver reply: %w", err)
		}
	}

	return result, nil
}
