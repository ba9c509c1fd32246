// Package scheduling holds the availability-slot generator and the stores it
// reads rules, blocks, and appointments from.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookday/concierge/pkg/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// UnknownServiceError reports an availability or booking request against a
// service id that does not resolve to an active service for the tenant. This
// is a validation failure, not an empty result.
type UnknownServiceError struct {
	ServiceID string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("unknown service: %s", e.ServiceID)
}

// Store provides read access to availability rules, blocked intervals, staff
// and services, and write access for appointments. Tool handlers call it; the
// orchestration core itself never does.
type Store interface {
	GetService(ctx context.Context, companyID, serviceID string) (*models.Service, error)
	ListServices(ctx context.Context, companyID string) ([]*models.Service, error)

	GetStaff(ctx context.Context, companyID, staffID string) (*models.Staff, error)
	ListActiveStaff(ctx context.Context, companyID string) ([]*models.Staff, error)

	ListRules(ctx context.Context, companyID string) ([]*models.AvailabilityRule, error)
	ListBlockedIntervals(ctx context.Context, companyID string, from, to time.Time) ([]*models.BlockedInterval, error)

	GetAppointment(ctx context.Context, companyID, id string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, companyID string, from, to time.Time) ([]*models.Appointment, error)
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	UpdateAppointment(ctx context.Context, appt *models.Appointment) error
}
