package scheduling

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bookday/concierge/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS staff (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	name TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_staff_company ON staff(company_id);

CREATE TABLE IF NOT EXISTS services (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	duration_minutes INTEGER NOT NULL,
	price_cents INTEGER NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT 'USD',
	active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_services_company ON services(company_id);

CREATE TABLE IF NOT EXISTS service_staff (
	service_id TEXT NOT NULL,
	staff_id TEXT NOT NULL,
	PRIMARY KEY (service_id, staff_id)
);

CREATE TABLE IF NOT EXISTS availability_rules (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	staff_id TEXT NOT NULL DEFAULT '',
	weekday INTEGER NOT NULL,
	start_minute INTEGER NOT NULL,
	end_minute INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rules_company ON availability_rules(company_id);

CREATE TABLE IF NOT EXISTS blocked_intervals (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	staff_id TEXT NOT NULL DEFAULT '',
	start_at TEXT NOT NULL,
	end_at TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_blocks_company ON blocked_intervals(company_id, start_at);

CREATE TABLE IF NOT EXISTS appointments (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	service_id TEXT NOT NULL,
	staff_id TEXT NOT NULL,
	client_id TEXT NOT NULL DEFAULT '',
	start_at TEXT NOT NULL,
	end_at TEXT NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_appointments_company ON appointments(company_id, start_at);
`

// SQLiteStore is a Store backed by a local SQLite database. Instants are
// stored as RFC 3339 UTC strings so range scans order lexicographically.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeLayout keeps the fractional part fixed-width; RFC3339Nano trims
// trailing zeros, which breaks lexicographic ordering of sub-second values.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}

func (s *SQLiteStore) GetService(ctx context.Context, companyID, serviceID string) (*models.Service, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, name, description, duration_minutes, price_cents, currency, active
		 FROM services WHERE id = ? AND company_id = ?`, serviceID, companyID)
	svc, err := scanService(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadServiceStaff(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *SQLiteStore) ListServices(ctx context.Context, companyID string) ([]*models.Service, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, name, description, duration_minutes, price_cents, currency, active
		 FROM services WHERE company_id = ? AND active = 1 ORDER BY name`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	var out []*models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, svc := range out {
		if err := s.loadServiceStaff(ctx, svc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (*models.Service, error) {
	var svc models.Service
	var minutes int64
	var active int
	err := row.Scan(&svc.ID, &svc.CompanyID, &svc.Name, &svc.Description, &minutes, &svc.PriceCents, &svc.Currency, &active)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan service: %w", err)
	}
	svc.Duration = time.Duration(minutes) * time.Minute
	svc.Active = active != 0
	return &svc, nil
}

func (s *SQLiteStore) loadServiceStaff(ctx context.Context, svc *models.Service) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT staff_id FROM service_staff WHERE service_id = ?`, svc.ID)
	if err != nil {
		return fmt.Errorf("query service staff: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		svc.StaffIDs = append(svc.StaffIDs, id)
	}
	return rows.Err()
}

func (s *SQLiteStore) GetStaff(ctx context.Context, companyID, staffID string) (*models.Staff, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, name, active, created_at
		 FROM staff WHERE id = ? AND company_id = ?`, staffID, companyID)
	return scanStaff(row)
}

func (s *SQLiteStore) ListActiveStaff(ctx context.Context, companyID string) ([]*models.Staff, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, name, active, created_at
		 FROM staff WHERE company_id = ? AND active = 1 ORDER BY name`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query staff: %w", err)
	}
	defer rows.Close()

	var out []*models.Staff
	for rows.Next() {
		member, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, member)
	}
	return out, rows.Err()
}

func scanStaff(row rowScanner) (*models.Staff, error) {
	var member models.Staff
	var active int
	var createdAt string
	err := row.Scan(&member.ID, &member.CompanyID, &member.Name, &active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan staff: %w", err)
	}
	member.Active = active != 0
	member.CreatedAt, err = decodeTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode staff created_at: %w", err)
	}
	return &member, nil
}

func (s *SQLiteStore) ListRules(ctx context.Context, companyID string) ([]*models.AvailabilityRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, staff_id, weekday, start_minute, end_minute
		 FROM availability_rules WHERE company_id = ?`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []*models.AvailabilityRule
	for rows.Next() {
		var rule models.AvailabilityRule
		var weekday int
		if err := rows.Scan(&rule.ID, &rule.CompanyID, &rule.StaffID, &weekday, &rule.StartMinute, &rule.EndMinute); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.Weekday = time.Weekday(weekday)
		out = append(out, &rule)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListBlockedIntervals(ctx context.Context, companyID string, from, to time.Time) ([]*models.BlockedInterval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, staff_id, start_at, end_at, reason
		 FROM blocked_intervals WHERE company_id = ? AND start_at < ? AND end_at > ?`,
		companyID, encodeTime(to), encodeTime(from))
	if err != nil {
		return nil, fmt.Errorf("query blocked intervals: %w", err)
	}
	defer rows.Close()

	var out []*models.BlockedInterval
	for rows.Next() {
		var block models.BlockedInterval
		var startAt, endAt string
		if err := rows.Scan(&block.ID, &block.CompanyID, &block.StaffID, &startAt, &endAt, &block.Reason); err != nil {
			return nil, fmt.Errorf("scan blocked interval: %w", err)
		}
		if block.Start, err = decodeTime(startAt); err != nil {
			return nil, err
		}
		if block.End, err = decodeTime(endAt); err != nil {
			return nil, err
		}
		out = append(out, &block)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetAppointment(ctx context.Context, companyID, id string) (*models.Appointment, error) {
	row := s.db.QueryRowContext(ctx, appointmentSelect+` WHERE id = ? AND company_id = ?`, id, companyID)
	return scanAppointment(row)
}

func (s *SQLiteStore) ListAppointments(ctx context.Context, companyID string, from, to time.Time) ([]*models.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		appointmentSelect+` WHERE company_id = ? AND start_at < ? AND end_at > ? ORDER BY start_at`,
		companyID, encodeTime(to), encodeTime(from))
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var out []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

const appointmentSelect = `SELECT id, company_id, service_id, staff_id, client_id, start_at, end_at, status, notes, created_at, updated_at
	 FROM appointments`

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var appt models.Appointment
	var startAt, endAt, createdAt, updatedAt string
	err := row.Scan(&appt.ID, &appt.CompanyID, &appt.ServiceID, &appt.StaffID, &appt.ClientID,
		&startAt, &endAt, &appt.Status, &appt.Notes, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	for _, pair := range []struct {
		raw  string
		dest *time.Time
	}{{startAt, &appt.Start}, {endAt, &appt.End}, {createdAt, &appt.CreatedAt}, {updatedAt, &appt.UpdatedAt}} {
		t, err := decodeTime(pair.raw)
		if err != nil {
			return nil, fmt.Errorf("decode appointment time: %w", err)
		}
		*pair.dest = t
	}
	return &appt, nil
}

func (s *SQLiteStore) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO appointments (id, company_id, service_id, staff_id, client_id, start_at, end_at, status, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appt.ID, appt.CompanyID, appt.ServiceID, appt.StaffID, appt.ClientID,
		encodeTime(appt.Start), encodeTime(appt.End), string(appt.Status), appt.Notes,
		encodeTime(appt.CreatedAt), encodeTime(appt.UpdatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateAppointment(ctx context.Context, appt *models.Appointment) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE appointments SET service_id = ?, staff_id = ?, client_id = ?, start_at = ?, end_at = ?, status = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND company_id = ?`,
		appt.ServiceID, appt.StaffID, appt.ClientID,
		encodeTime(appt.Start), encodeTime(appt.End), string(appt.Status), appt.Notes,
		encodeTime(appt.UpdatedAt), appt.ID, appt.CompanyID)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedStaff, SeedService, SeedRule, SeedBlock load fixture rows for local
// runs and smoke tests.

func (s *SQLiteStore) SeedStaff(ctx context.Context, member *models.Staff) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO staff (id, company_id, name, active, created_at) VALUES (?, ?, ?, ?, ?)`,
		member.ID, member.CompanyID, member.Name, boolInt(member.Active), encodeTime(member.CreatedAt))
	return err
}

func (s *SQLiteStore) SeedService(ctx context.Context, svc *models.Service) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO services (id, company_id, name, description, duration_minutes, price_cents, currency, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.ID, svc.CompanyID, svc.Name, svc.Description, int64(svc.Duration/time.Minute),
		svc.PriceCents, svc.Currency, boolInt(svc.Active))
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM service_staff WHERE service_id = ?`, svc.ID); err != nil {
		return err
	}
	for _, staffID := range svc.StaffIDs {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO service_staff (service_id, staff_id) VALUES (?, ?)`, svc.ID, staffID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SeedRule(ctx context.Context, rule *models.AvailabilityRule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO availability_rules (id, company_id, staff_id, weekday, start_minute, end_minute)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.CompanyID, rule.StaffID, int(rule.Weekday), rule.StartMinute, rule.EndMinute)
	return err
}

func (s *SQLiteStore) SeedBlock(ctx context.Context, block *models.BlockedInterval) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO blocked_intervals (id, company_id, staff_id, start_at, end_at, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		block.ID, block.CompanyID, block.StaffID, encodeTime(block.Start), encodeTime(block.End), block.Reason)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
