package models

import "time"

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

// Blocking reports whether an appointment in this status occupies its interval.
func (s AppointmentStatus) Blocking() bool {
	return s == AppointmentScheduled || s == AppointmentConfirmed
}

// Staff is a bookable professional belonging to a company.
type Staff struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is a bookable offering with a fixed duration and price.
type Service struct {
	ID          string        `json:"id"`
	CompanyID   string        `json:"company_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Duration    time.Duration `json:"duration"`
	PriceCents  int64         `json:"price_cents"`
	Currency    string        `json:"currency"`
	Active      bool          `json:"active"`
	// StaffIDs lists the professionals qualified for this service.
	// Empty means every active staff member qualifies.
	StaffIDs []string `json:"staff_ids,omitempty"`
}

// AvailabilityRule is a recurring weekly availability template.
// StaffID is empty for company-wide rules.
type AvailabilityRule struct {
	ID        string       `json:"id"`
	CompanyID string       `json:"company_id"`
	StaffID   string       `json:"staff_id,omitempty"`
	Weekday   time.Weekday `json:"weekday"`
	// StartMinute/EndMinute are minutes after local midnight, half-open [start,end).
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// BlockedInterval is an ad hoc unavailable window.
// StaffID is empty when the block applies to every staff member.
type BlockedInterval struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	StaffID   string    `json:"staff_id,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Reason    string    `json:"reason,omitempty"`
}

// Appointment is a booked interval for one staff member and client.
type Appointment struct {
	ID        string            `json:"id"`
	CompanyID string            `json:"company_id"`
	ServiceID string            `json:"service_id"`
	StaffID   string            `json:"staff_id"`
	ClientID  string            `json:"client_id,omitempty"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	Status    AppointmentStatus `json:"status"`
	Notes     string            `json:"notes,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// AvailabilitySlot is a candidate bookable interval. Slots are derived from
// rules, blocks, and appointments on every query; they are never stored.
type AvailabilitySlot struct {
	StaffID   string    `json:"staff_id"`
	StaffName string    `json:"staff_name"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// Overlaps applies the half-open interval test against [start,end).
func (s AvailabilitySlot) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && s.End.After(start)
}

// AvailabilityResult is the payload of one availability query: the generated
// slots for a service across a date range, or an explicit marker that the
// company has no qualified professionals at all (distinct from days with no
// free slots).
type AvailabilityResult struct {
	ServiceID   string             `json:"service_id"`
	ServiceName string             `json:"service_name"`
	From        string             `json:"from"`
	To          string             `json:"to"`
	Timezone    string             `json:"timezone"`
	Slots       []AvailabilitySlot `json:"slots"`
	NoStaff     bool               `json:"no_staff,omitempty"`
}
