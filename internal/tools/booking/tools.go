// Package booking implements the scheduling tool set: availability lookup,
// appointment lifecycle, and service catalog queries.
package booking

import (
	"context"
	"log/slog"

	"github.com/bookday/concierge/internal/agent"
	"github.com/bookday/concierge/internal/convocache"
	"github.com/bookday/concierge/internal/scheduling"
	"github.com/bookday/concierge/pkg/models"
)

// schedulingFeature gates every tool in this package.
const schedulingFeature = "scheduling"

// CompanyDirectory resolves tenant records at call time.
type CompanyDirectory interface {
	GetCompany(ctx context.Context, id string) (*models.Company, error)
}

// Tools bundles the dependencies the booking handlers share.
type Tools struct {
	store     scheduling.Store
	generator *scheduling.Generator
	cache     *convocache.Cache
	companies CompanyDirectory
	logger    *slog.Logger
}

func New(store scheduling.Store, generator *scheduling.Generator, cache *convocache.Cache, companies CompanyDirectory, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{
		store:     store,
		generator: generator,
		cache:     cache,
		companies: companies,
		logger:    logger,
	}
}

// Register adds every booking tool to the registry.
func (t *Tools) Register(registry *agent.Registry) error {
	for _, def := range []*agent.Definition{
		t.availabilityDefinition(),
		t.createDefinition(),
		t.cancelDefinition(),
		t.rescheduleDefinition(),
		t.listServicesDefinition(),
		t.servicePricesDefinition(),
	} {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tools) company(ctx context.Context, actx models.AgentContext) (*models.Company, *agent.Fault) {
	company, err := t.companies.GetCompany(ctx, actx.CompanyID)
	if err != nil {
		return nil, agent.NewFault(agent.FaultSystem, "business profile unavailable")
	}
	return company, nil
}
