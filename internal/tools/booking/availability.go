package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bookday/concierge/internal/agent"
	"github.com/bookday/concierge/internal/convocache"
	"github.com/bookday/concierge/internal/scheduling"
	"github.com/bookday/concierge/pkg/models"
)

const availabilitySchema = `{
	"type": "object",
	"properties": {
		"service_id": {
			"type": "string",
			"format": "uuid",
			"description": "Service to look up availability for"
		},
		"from_date": {
			"type": "string",
			"format": "date",
			"description": "First day of the range, YYYY-MM-DD in the business timezone"
		},
		"to_date": {
			"type": "string",
			"format": "date",
			"description": "Last day of the range, inclusive"
		},
		"staff_id": {
			"type": "string",
			"format": "uuid",
			"description": "Optional: restrict to one professional"
		}
	},
	"required": ["service_id", "from_date", "to_date"],
	"additionalProperties": false
}`

type availabilityArgs struct {
	ServiceID string `json:"service_id"`
	FromDate  string `json:"from_date"`
	ToDate    string `json:"to_date"`
	StaffID   string `json:"staff_id"`
}

func (t *Tools) availabilityDefinition() *agent.Definition {
	return &agent.Definition{
		Name:             convocache.AvailabilityToolName,
		Description:      "List open appointment slots for a service across a date range. Always call this before offering or booking times.",
		Schema:           json.RawMessage(availabilitySchema),
		OrderedPairs:     []agent.OrderedPair{{First: "from_date", Second: "to_date"}},
		RequiredFeatures: []string{schedulingFeature},
		Handler:          t.getAvailableSlots,
	}
}

func (t *Tools) getAvailableSlots(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
	var params availabilityArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	company, fault := t.company(ctx, actx)
	if fault != nil {
		return fault, nil
	}

	result, err := t.generator.Generate(ctx, company, scheduling.SlotRequest{
		ServiceID: params.ServiceID,
		FromDate:  params.FromDate,
		ToDate:    params.ToDate,
		StaffID:   params.StaffID,
	})
	if err != nil {
		var unknown *scheduling.UnknownServiceError
		if errors.As(err, &unknown) {
			return agent.NewFault(agent.FaultValidation,
				fmt.Sprintf("service %s does not exist for this business", unknown.ServiceID)).
				WithSuggestion("call list_services and use one of the returned ids"), nil
		}
		return nil, err
	}

	return result, nil
}
