package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/bookday/concierge/pkg/models"
)

// MemoryStore is an in-memory Store for tests and single-process runs.
type MemoryStore struct {
	mu           sync.RWMutex
	staff        map[string]*models.Staff
	services     map[string]*models.Service
	rules        map[string]*models.AvailabilityRule
	blocks       map[string]*models.BlockedInterval
	appointments map[string]*models.Appointment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		staff:        make(map[string]*models.Staff),
		services:     make(map[string]*models.Service),
		rules:        make(map[string]*models.AvailabilityRule),
		blocks:       make(map[string]*models.BlockedInterval),
		appointments: make(map[string]*models.Appointment),
	}
}

// PutStaff, PutService, PutRule, and PutBlock seed fixture data. The engine
// itself only writes appointments.

func (s *MemoryStore) PutStaff(member *models.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *member
	s.staff[member.ID] = &cp
}

func (s *MemoryStore) PutService(svc *models.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *svc
	s.services[svc.ID] = &cp
}

func (s *MemoryStore) PutRule(rule *models.AvailabilityRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rule
	s.rules[rule.ID] = &cp
}

func (s *MemoryStore) PutBlock(block *models.BlockedInterval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *block
	s.blocks[block.ID] = &cp
}

func (s *MemoryStore) GetService(ctx context.Context, companyID, serviceID string) (*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok || svc.CompanyID != companyID {
		return nil, ErrNotFound
	}
	cp := *svc
	return &cp, nil
}

func (s *MemoryStore) ListServices(ctx context.Context, companyID string) ([]*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Service
	for _, svc := range s.services {
		if svc.CompanyID == companyID && svc.Active {
			cp := *svc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetStaff(ctx context.Context, companyID, staffID string) (*models.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.staff[staffID]
	if !ok || member.CompanyID != companyID {
		return nil, ErrNotFound
	}
	cp := *member
	return &cp, nil
}

func (s *MemoryStore) ListActiveStaff(ctx context.Context, companyID string) ([]*models.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Staff
	for _, member := range s.staff {
		if member.CompanyID == companyID && member.Active {
			cp := *member
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRules(ctx context.Context, companyID string) ([]*models.AvailabilityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AvailabilityRule
	for _, rule := range s.rules {
		if rule.CompanyID == companyID {
			cp := *rule
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListBlockedIntervals(ctx context.Context, companyID string, from, to time.Time) ([]*models.BlockedInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BlockedInterval
	for _, block := range s.blocks {
		if block.CompanyID != companyID {
			continue
		}
		if block.Start.Before(to) && block.End.After(from) {
			cp := *block
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetAppointment(ctx context.Context, companyID, id string) (*models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appt, ok := s.appointments[id]
	if !ok || appt.CompanyID != companyID {
		return nil, ErrNotFound
	}
	cp := *appt
	return &cp, nil
}

func (s *MemoryStore) ListAppointments(ctx context.Context, companyID string, from, to time.Time) ([]*models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Appointment
	for _, appt := range s.appointments {
		if appt.CompanyID != companyID {
			continue
		}
		if appt.Start.Before(to) && appt.End.After(from) {
			cp := *appt
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[appt.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *appt
	s.appointments[appt.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateAppointment(ctx context.Context, appt *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.appointments[appt.ID]
	if !ok || existing.CompanyID != appt.CompanyID {
		return ErrNotFound
	}
	cp := *appt
	s.appointments[appt.ID] = &cp
	return nil
}
