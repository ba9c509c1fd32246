package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookday/concierge/internal/agent"
	"github.com/bookday/concierge/internal/scheduling"
	"github.com/bookday/concierge/pkg/models"
)

const createSchema = `{
	"type": "object",
	"properties": {
		"service_id": {
			"type": "string",
			"format": "uuid",
			"description": "Service being booked"
		},
		"staff_id": {
			"type": "string",
			"format": "uuid",
			"description": "Professional chosen from an offered slot"
		},
		"start": {
			"type": "string",
			"format": "date-time",
			"description": "Exact slot start, copied from a previously offered slot"
		},
		"notes": {
			"type": "string",
			"description": "Optional customer notes"
		}
	},
	"required": ["service_id", "staff_id", "start"],
	"additionalProperties": false
}`

const cancelSchema = `{
	"type": "object",
	"properties": {
		"appointment_id": {
			"type": "string",
			"format": "uuid",
			"description": "Appointment to cancel"
		}
	},
	"required": ["appointment_id"],
	"additionalProperties": false
}`

const rescheduleSchema = `{
	"type": "object",
	"properties": {
		"appointment_id": {
			"type": "string",
			"format": "uuid",
			"description": "Appointment to move"
		},
		"staff_id": {
			"type": "string",
			"format": "uuid",
			"description": "Professional for the new slot"
		},
		"start": {
			"type": "string",
			"format": "date-time",
			"description": "New slot start, copied from a previously offered slot"
		}
	},
	"required": ["appointment_id", "staff_id", "start"],
	"additionalProperties": false
}`

func (t *Tools) createDefinition() *agent.Definition {
	return &agent.Definition{
		Name:             "create_appointment",
		Description:      "Book one of the slots previously returned by get_available_slots. Only slots from that list can be booked.",
		Schema:           json.RawMessage(createSchema),
		RequiredFeatures: []string{schedulingFeature},
		Handler:          t.createAppointment,
	}
}

func (t *Tools) cancelDefinition() *agent.Definition {
	return &agent.Definition{
		Name:             "cancel_appointment",
		Description:      "Cancel an existing appointment by id.",
		Schema:           json.RawMessage(cancelSchema),
		RequiredFeatures: []string{schedulingFeature},
		Handler:          t.cancelAppointment,
	}
}

func (t *Tools) rescheduleDefinition() *agent.Definition {
	return &agent.Definition{
		Name:             "reschedule_appointment",
		Description:      "Move an existing appointment to a new slot previously returned by get_available_slots.",
		Schema:           json.RawMessage(rescheduleSchema),
		RequiredFeatures: []string{schedulingFeature},
		Handler:          t.rescheduleAppointment,
	}
}

type createArgs struct {
	ServiceID string `json:"service_id"`
	StaffID   string `json:"staff_id"`
	Start     string `json:"start"`
	Notes     string `json:"notes"`
}

// staleSlotFault is returned when the model books a slot it was never shown,
// or one that has expired from the context cache. The store is not touched.
func staleSlotFault() *agent.Fault {
	return agent.NewFault(agent.FaultValidation,
		"that slot was not among the ones recently offered, or the offer has expired").
		WithSuggestion("call get_available_slots again and book one of the returned slots").
		WithRecovery("tell the customer you are double-checking the calendar")
}

// offeredSlot checks the cached offers for an exact staff/start match and
// returns the matching slot.
func (t *Tools) offeredSlot(conversationID, staffID string, start time.Time) (models.AvailabilitySlot, bool) {
	for _, slot := range t.cache.OfferedSlots(conversationID) {
		if slot.StaffID == staffID && slot.Start.Equal(start) {
			return slot, true
		}
	}
	return models.AvailabilitySlot{}, false
}

func (t *Tools) createAppointment(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
	var params createArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	start, err := time.Parse(time.RFC3339, params.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid start: %w", err)
	}

	slot, ok := t.offeredSlot(actx.ConversationID, params.StaffID, start)
	if !ok {
		return staleSlotFault(), nil
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

	now := time.Now()
	appt := &models.Appointment{
		ID:        uuid.NewString(),
		CompanyID: actx.CompanyID,
		ServiceID: svc.ID,
		StaffID:   params.StaffID,
		ClientID:  actx.ClientID,
		Start:     slot.Start,
		End:       slot.End,
		Status:    models.AppointmentScheduled,
		Notes:     params.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.CreateAppointment(ctx, appt); err != nil {
		return nil, err
	}

	t.logger.Info("appointment booked",
		"company_id", actx.CompanyID,
		"appointment_id", appt.ID,
		"staff_id", appt.StaffID,
		"start", appt.Start)

	return map[string]any{
		"appointment_id": appt.ID,
		"service_name":   svc.Name,
		"staff_name":     slot.StaffName,
		"start":          appt.Start.Format(time.RFC3339),
		"end":            appt.End.Format(time.RFC3339),
		"status":         string(appt.Status),
	}, nil
}

type cancelArgs struct {
	AppointmentID string `json:"appointment_id"`
}

func (t *Tools) cancelAppointment(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
	var params cancelArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	appt, err := t.store.GetAppointment(ctx, actx.CompanyID, params.AppointmentID)
	if err != nil {
		if errors.Is(err, scheduling.ErrNotFound) {
			return agent.NewFault(agent.FaultNotFound,
				fmt.Sprintf("appointment %s does not exist", params.AppointmentID)).
				WithSuggestion("ask the customer to confirm which appointment they mean"), nil
		}
		return nil, err
	}
	if appt.Status == models.AppointmentCancelled {
		return map[string]any{
			"appointment_id": appt.ID,
			"status":         string(appt.Status),
		}, nil
	}

	appt.Status = models.AppointmentCancelled
	appt.UpdatedAt = time.Now()
	if err := t.store.UpdateAppointment(ctx, appt); err != nil {
		return nil, err
	}

	t.logger.Info("appointment cancelled",
		"company_id", actx.CompanyID,
		"appointment_id", appt.ID)

	return map[string]any{
		"appointment_id": appt.ID,
		"status":         string(appt.Status),
	}, nil
}

type rescheduleArgs struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
	Start         string `json:"start"`
}

// rescheduleAppointment is cancel plus rebook, gated on the offered slots the
// same way create is.
func (t *Tools) rescheduleAppointment(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error) {
	var params rescheduleArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	start, err := time.Parse(time.RFC3339, params.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid start: %w", err)
	}

	slot, ok := t.offeredSlot(actx.ConversationID, params.StaffID, start)
	if !ok {
		return staleSlotFault(), nil
	}

	appt, err := t.store.GetAppointment(ctx, actx.CompanyID, params.AppointmentID)
	if err != nil {
		if errors.Is(err, scheduling.ErrNotFound) {
			return agent.NewFault(agent.FaultNotFound,
				fmt.Sprintf("appointment %s does not exist", params.AppointmentID)).
				WithSuggestion("ask the customer to confirm which appointment they mean"), nil
		}
		return nil, err
	}
	if !appt.Status.Blocking() {
		return agent.NewFault(agent.FaultValidation,
			fmt.Sprintf("appointment %s is %s and cannot be moved", appt.ID, appt.Status)).
			WithSuggestion("book a new appointment instead"), nil
	}

	now := time.Now()
	appt.Status = models.AppointmentCancelled
	appt.UpdatedAt = now
	if err := t.store.UpdateAppointment(ctx, appt); err != nil {
		return nil, err
	}

	replacement := &models.Appointment{
		ID:        uuid.NewString(),
		CompanyID: actx.CompanyID,
		ServiceID: appt.ServiceID,
		StaffID:   params.StaffID,
		ClientID:  appt.ClientID,
		Start:     slot.Start,
		End:       slot.End,
		Status:    models.AppointmentScheduled,
		Notes:     appt.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.CreateAppointment(ctx, replacement); err != nil {
		return nil, err
	}

	t.logger.Info("appointment rescheduled",
		"company_id", actx.CompanyID,
		"old_appointment_id", appt.ID,
		"new_appointment_id", replacement.ID)

	return map[string]any{
		"cancelled_appointment_id": appt.ID,
		"appointment_id":           replacement.ID,
		"staff_name":               slot.StaffName,
		"start":                    replacement.Start.Format(time.RFC3339),
		"end":                      replacement.End.Format(time.RFC3339),
		"status":                   string(replacement.Status),
	}, nil
}
