package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bookday/concierge/pkg/models"
)

// SlotStep is the candidate-start granularity inside an availability window.
const SlotStep = 15 * time.Minute

// DateLayout is the wire format for availability date ranges.
const DateLayout = "2006-01-02"

// SlotRequest asks for bookable slots for one service across an inclusive
// local date range. StaffID optionally restricts the search to one
// professional.
type SlotRequest struct {
	ServiceID string
	FromDate  string
	ToDate    string
	StaffID   string
}

// Generator derives availability slots from rules, blocks, and booked
// appointments. Slots are computed on every call and never persisted.
type Generator struct {
	store  Store
	logger *slog.Logger
}

func NewGenerator(store Store, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: store, logger: logger}
}

// Generate walks each requested day in the company's timezone, expands the
// matching weekly rules into candidate slots of the service's duration at
// SlotStep granularity, and drops candidates that overlap a blocked interval
// or a blocking appointment for the same staff member.
func (g *Generator) Generate(ctx context.Context, company *models.Company, req SlotRequest) (*models.AvailabilityResult, error) {
	svc, err := g.store.GetService(ctx, company.ID, req.ServiceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &UnknownServiceError{ServiceID: req.ServiceID}
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if !svc.Active {
		return nil, &UnknownServiceError{ServiceID: req.ServiceID}
	}

	loc := company.Location()

	from, err := time.ParseInLocation(DateLayout, req.FromDate, loc)
	if err != nil {
		return nil, fmt.Errorf("parse from_date %q: %w", req.FromDate, err)
	}
	to, err := time.ParseInLocation(DateLayout, req.ToDate, loc)
	if err != nil {
		return nil, fmt.Errorf("parse to_date %q: %w", req.ToDate, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("to_date %s precedes from_date %s", req.ToDate, req.FromDate)
	}

	result := &models.AvailabilityResult{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		From:        req.FromDate,
		To:          req.ToDate,
		Timezone:    loc.String(),
	}

	staff, err := g.qualifiedStaff(ctx, company.ID, svc, req.StaffID)
	if err != nil {
		return nil, err
	}
	if len(staff) == 0 {
		result.NoStaff = true
		return result, nil
	}

	rules, err := g.store.ListRules(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	rangeEnd := to.AddDate(0, 0, 1)
	blocks, err := g.store.ListBlockedIntervals(ctx, company.ID, from, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("list blocked intervals: %w", err)
	}
	appts, err := g.store.ListAppointments(ctx, company.ID, from, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	busy := appts[:0]
	for _, a := range appts {
		if a.Status.Blocking() {
			busy = append(busy, a)
		}
	}

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		weekday := day.Weekday()
		for _, member := range staff {
			for _, rule := range rulesFor(rules, member.ID, weekday) {
				g.expandRule(result, day, member, svc.Duration, rule, blocks, busy)
			}
		}
	}

	sort.Slice(result.Slots, func(i, j int) bool {
		a, b := result.Slots[i], result.Slots[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.StaffID < b.StaffID
	})

	g.logger.Debug("availability generated",
		"company_id", company.ID,
		"service_id", svc.ID,
		"from", req.FromDate,
		"to", req.ToDate,
		"slots", len(result.Slots))

	return result, nil
}

func (g *Generator) qualifiedStaff(ctx context.Context, companyID string, svc *models.Service, staffID string) ([]*models.Staff, error) {
	active, err := g.store.ListActiveStaff(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	qualified := active
	if len(svc.StaffIDs) > 0 {
		allowed := make(map[string]bool, len(svc.StaffIDs))
		for _, id := range svc.StaffIDs {
			allowed[id] = true
		}
		qualified = qualified[:0]
		for _, member := range active {
			if allowed[member.ID] {
				qualified = append(qualified, member)
			}
		}
	}
	if staffID == "" {
		return qualified, nil
	}
	for _, member := range qualified {
		if member.ID == staffID {
			return []*models.Staff{member}, nil
		}
	}
	return nil, nil
}

// rulesFor picks the rules governing one staff member on one weekday.
// Staff-specific rules override company-wide ones entirely for that day.
func rulesFor(rules []*models.AvailabilityRule, staffID string, weekday time.Weekday) []*models.AvailabilityRule {
	var own, shared []*models.AvailabilityRule
	for _, r := range rules {
		if r.Weekday != weekday {
			continue
		}
		switch r.StaffID {
		case staffID:
			own = append(own, r)
		case "":
			shared = append(shared, r)
		}
	}
	if len(own) > 0 {
		return own
	}
	return shared
}

func (g *Generator) expandRule(result *models.AvailabilityResult, day time.Time, member *models.Staff, duration time.Duration, rule *models.AvailabilityRule, blocks []*models.BlockedInterval, busy []*models.Appointment) {
	// Rule minutes are wall-clock offsets, so the bounds are rebuilt through
	// time.Date rather than added as absolute durations. Adding a duration
	// to midnight drifts by the transition amount on DST days.
	year, month, dayOfMonth := day.Date()
	windowStart := time.Date(year, month, dayOfMonth, 0, rule.StartMinute, 0, 0, day.Location())
	windowEnd := time.Date(year, month, dayOfMonth, 0, rule.EndMinute, 0, 0, day.Location())

	for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(SlotStep) {
		end := start.Add(duration)
		if conflicts(member.ID, start, end, blocks, busy) {
			continue
		}
		result.Slots = append(result.Slots, models.AvailabilitySlot{
			StaffID:   member.ID,
			StaffName: member.Name,
			Start:     start,
			End:       end,
		})
	}
}

func conflicts(staffID string, start, end time.Time, blocks []*models.BlockedInterval, busy []*models.Appointment) bool {
	for _, b := range blocks {
		if b.StaffID != "" && b.StaffID != staffID {
			continue
		}
		if start.Before(b.End) && end.After(b.Start) {
			return true
		}
	}
	for _, a := range busy {
		if a.StaffID != staffID {
			continue
		}
		if start.Before(a.End) && end.After(a.Start) {
			return true
		}
	}
	return false
}
