package convocache

import (
	"fmt"
	"strings"
	"time"

	"github.com/bookday/concierge/pkg/models"
)

// OfferedSlots returns the slots of the freshest unexpired availability result
// recorded for the conversation, or nil when none is cached.
func (c *Cache) OfferedSlots(conversationID string) []models.AvailabilitySlot {
	return c.OfferedSlotsAt(conversationID, time.Now())
}

// OfferedSlotsAt is OfferedSlots with an explicit timestamp (for testing).
func (c *Cache) OfferedSlotsAt(conversationID string, now time.Time) []models.AvailabilitySlot {
	entries := c.RecentAt(conversationID, AvailabilityToolName, 1, now)
	if len(entries) == 0 {
		return nil
	}
	result, ok := availabilityResult(entries[0].Result)
	if !ok {
		return nil
	}
	return result.Slots
}

// SchedulingSnapshot renders the freshest unexpired availability result into a
// model-facing listing. Every slot appears with a human-readable display time
// and the exact machine fields (staff id, start, end) the model must echo back
// verbatim when booking. The same value intentionally appears under both a
// display and an exact label: the consuming model is unreliable at reusing
// opaque identifiers, and the redundancy is a correctness measure.
// Returns "" when nothing usable is cached.
func (c *Cache) SchedulingSnapshot(conversationID string) string {
	return c.SchedulingSnapshotAt(conversationID, time.Now())
}

// SchedulingSnapshotAt is SchedulingSnapshot with an explicit timestamp (for testing).
func (c *Cache) SchedulingSnapshotAt(conversationID string, now time.Time) string {
	entries := c.RecentAt(conversationID, AvailabilityToolName, 1, now)
	if len(entries) == 0 {
		return ""
	}
	result, ok := availabilityResult(entries[0].Result)
	if !ok || result.NoStaff || len(result.Slots) == 0 {
		return ""
	}

	loc := time.UTC
	if result.Timezone != "" {
		if l, err := time.LoadLocation(result.Timezone); err == nil {
			loc = l
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Previously offered availability for %s (%s to %s):\n",
		result.ServiceName, result.From, result.To)
	b.WriteString("When booking, copy staff_id, start and end exactly as listed.\n")
	for _, slot := range result.Slots {
		fmt.Fprintf(&b, "- %s with %s | staff_id=%s start=%s end=%s\n",
			slot.Start.In(loc).Format("Mon Jan 2 15:04"),
			slot.StaffName,
			slot.StaffID,
			slot.Start.Format(time.RFC3339),
			slot.End.Format(time.RFC3339),
		)
	}
	return b.String()
}

func availabilityResult(v any) (*models.AvailabilityResult, bool) {
	switch r := v.(type) {
	case *models.AvailabilityResult:
		return r, r != nil
	case models.AvailabilityResult:
		return &r, true
	default:
		return nil, false
	}
}
