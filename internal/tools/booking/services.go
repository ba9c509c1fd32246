package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bookday/concierge/internal/agent"
	"github.com/bookday/concierge/internal/scheduling"
	"github.com/bookday/concierge/pkg/models"
)

const listServicesSchema = `{
	"type": "object",
	"properties": {},
	"additionalProperties": false
}`

const servicePricesSchema = `{
	"type": "object",
	"properties": {
		"service_id": {
			"type": "string",
			"format": "uuid",
			"description": "Optional: one service. Omit for the full price list."
		}
	},
	"additionalProperties": false
}`

func (t *Tools) listServicesDefinition() *agent.Definition {
	return &agent.Definition{
		Name:             "list_services",
		Description:      "List the services this business offers, with ids, durations, and prices.",
		Schema:           json.RawMessage(listServicesSchema),
		RequiredFeatures: []string{schedulingFeature},
		Handler:          t.listServices,
	}
}

func (t *Tools) servicePricesDefinition() *agent.Definition {
	return &agent.Definition{
		Name:             "get_service_prices",
		Description:      "Look up prices, for one service or the whole catalog.",
		Schema:           json.RawMessage(servicePricesSchema),
		RequiredFeatures: []string{schedulingFeature},
		Handler:          t.getServicePrices,
	}
}

type serviceSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
}

func summarize(svc *models.Service) serviceSummary {
	return serviceSummary{
		ID:              svc.ID,
		Name:            svc.Name,
		Description:     svc.Description,
		DurationMinutes: int(svc.Duration / time.Minute),
		Price:           formatPrice(svc.PriceCents, svc.Currency),
	}
}

func formatPrice(cents int64, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}

func (t *Tools) listServices(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
	services, err := t.store.ListServices(ctx, actx.CompanyID)
	if err != nil {
		return nil, err
	}
	summaries := make([]serviceSummary, 0, len(services))
	for _, svc := range services {
		summaries = append(summaries, summarize(svc))
	}
	return map[string]any{"services": summaries}, nil
}

type servicePricesArgs struct {
	ServiceID string `json:"service_id"`
}

func (t *Tools) getServicePrices(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
	var params servicePricesArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	if params.ServiceID == "" {
		return t.listServices(ctx, actx, args)
	}

	svc, err := t.store.GetService(ctx, actx.CompanyID, params.ServiceID)
	if err != nil {
		if errors.Is(err, scheduling.ErrNotFound) {
			return agent.NewFault(agent.FaultValidation,
				fmt.Sprintf("service %s does not exist for this business", params.ServiceID)).
				WithSuggestion("call list_services and use one of the returned ids"), nil
		}
		return nil, err
	}
	return map[string]any{"service": summarize(svc)}, nil
}
