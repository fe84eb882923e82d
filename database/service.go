package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"regsync/models"

	"github.com/apex/log"
)

// Service handles all store operations for the sync engine.
type Service struct {
	db *sql.DB
}

// NewService creates a new store service instance.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Service) DB() *sql.DB {
	return s.db
}

// ListSyncableProperties returns registry entries with a resolvable
// identifier, in stable id order.
func (s *Service) ListSyncableProperties(ctx context.Context) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, building_id, parcel_id, borough, address,
		       alerts_enabled, contact_email, contact_phone, authorities, last_synced_at
		FROM properties
		WHERE building_id <> '' OR parcel_id <> ''
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var props []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

// GetPropertyByIdentifiers resolves a property by building id or parcel id.
func (s *Service) GetPropertyByIdentifiers(ctx context.Context, buildingID, parcelID string) (*models.Property, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, building_id, parcel_id, borough, address,
		       alerts_enabled, contact_email, contact_phone, authorities, last_synced_at
		FROM properties
		WHERE (building_id <> '' AND building_id = ?) OR (parcel_id <> '' AND parcel_id = ?)
		LIMIT 1
	`, buildingID, parcelID)

	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no property found for building %q / parcel %q", buildingID, parcelID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (models.Property, error) {
	var p models.Property
	var authorities string
	var lastSynced sql.NullTime
	err := row.Scan(&p.ID, &p.BuildingID, &p.ParcelID, &p.Borough, &p.Address,
		&p.AlertsEnabled, &p.ContactEmail, &p.ContactPhone, &authorities, &lastSynced)
	if err != nil {
		return p, err
	}
	for _, a := range strings.Split(authorities, ",") {
		if a = strings.TrimSpace(a); a != "" {
			p.Authorities = append(p.Authorities, models.Authority(a))
		}
	}
	if lastSynced.Valid {
		p.LastSyncedAt = &lastSynced.Time
	}
	return p, nil
}

// ViolationSnapshot returns the stored (violation number -> status) pairs for
// a property.
func (s *Service) ViolationSnapshot(ctx context.Context, propertyID int64) (map[string]string, error) {
	return s.snapshot(ctx, "SELECT violation_number, status FROM violations WHERE property_id = ?", propertyID)
}

// ApplicationSnapshot returns the stored (application number -> status) pairs
// for a property.
func (s *Service) ApplicationSnapshot(ctx context.Context, propertyID int64) (map[string]string, error) {
	return s.snapshot(ctx, "SELECT application_number, status FROM applications WHERE property_id = ?", propertyID)
}

func (s *Service) snapshot(ctx context.Context, query string, propertyID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to take snapshot: %w", err)
	}
	defer rows.Close()

	snap := make(map[string]string)
	for rows.Next() {
		var number, status string
		if err := rows.Scan(&number, &status); err != nil {
			return nil, err
		}
		snap[number] = status
	}
	return snap, rows.Err()
}

// UpsertViolations inserts not-yet-seen violations and updates the status of
// existing rows to whatever the source reports. Only fields the engine is
// authoritative for are written on conflict; user-entered notes and the
// suppression columns are never touched here.
func (s *Service) UpsertViolations(ctx context.Context, vs []models.Violation) error {
	if len(vs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO violations
		(property_id, authority, violation_number, source_dataset, issued_date,
		 hearing_date, cure_by_date, description, severity, critical_order,
		 penalty, status, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		 status = VALUES(status),
		 hearing_date = VALUES(hearing_date),
		 penalty = VALUES(penalty),
		 last_synced_at = VALUES(last_synced_at)
	`

	for i := range vs {
		v := &vs[i]
		_, err := s.db.ExecContext(ctx, query,
			v.PropertyID, string(v.Authority), v.ViolationNumber, v.SourceDataset,
			v.IssuedDate, nullTime(v.HearingDate), nullTime(v.CureByDate),
			v.Description, v.Severity, string(v.CriticalOrder),
			v.Penalty, string(v.Status), v.LastSyncedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert violation %s: %w", v.ViolationNumber, err)
		}
	}
	return nil
}

// UpsertApplications mirrors UpsertViolations for permit/job filings.
func (s *Service) UpsertApplications(ctx context.Context, apps []models.Application) error {
	if len(apps) == 0 {
		return nil
	}

	const query = `
		INSERT INTO applications
		(property_id, authority, application_number, source_dataset, type,
		 status, filed_date, approved_date, expiration_date, estimated_cost, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		 status = VALUES(status),
		 approved_date = VALUES(approved_date),
		 expiration_date = VALUES(expiration_date),
		 last_synced_at = VALUES(last_synced_at)
	`

	for i := range apps {
		a := &apps[i]
		_, err := s.db.ExecContext(ctx, query,
			a.PropertyID, string(a.Authority), a.ApplicationNumber, a.SourceDataset,
			a.Type, a.Status, a.FiledDate, nullTime(a.ApprovedDate),
			nullTime(a.ExpirationDate), a.EstimatedCost, a.LastSyncedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert application %s: %w", a.ApplicationNumber, err)
		}
	}
	return nil
}

// OpenUnsuppressedViolations returns the suppression engine's working set:
// currently open, not-yet-suppressed violations for a property.
func (s *Service) OpenUnsuppressedViolations(ctx context.Context, propertyID int64) ([]models.Violation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT property_id, authority, violation_number, issued_date, status
		FROM violations
		WHERE property_id = ? AND status = 'open' AND suppressed = FALSE
	`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query open violations: %w", err)
	}
	defer rows.Close()

	var vs []models.Violation
	for rows.Next() {
		var v models.Violation
		var authority, status string
		var issued sql.NullTime
		if err := rows.Scan(&v.PropertyID, &authority, &v.ViolationNumber, &issued, &status); err != nil {
			return nil, err
		}
		v.Authority = models.Authority(authority)
		v.Status = models.Status(status)
		if issued.Valid {
			v.IssuedDate = issued.Time
		}
		v.Suppression = models.Active()
		vs = append(vs, v)
	}
	return vs, rows.Err()
}

// SuppressViolation sets the suppression flag and reason. One-directional:
// there is no store path that clears it.
func (s *Service) SuppressViolation(ctx context.Context, propertyID int64, authority models.Authority, number, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE violations
		SET suppressed = TRUE, suppression_reason = ?
		WHERE property_id = ? AND authority = ? AND violation_number = ? AND suppressed = FALSE
	`, reason, propertyID, string(authority), number)
	if err != nil {
		return fmt.Errorf("failed to suppress violation %s: %w", number, err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		log.Warnf("Suppressing violation %s affected %d rows", number, n)
	}
	return nil
}

// InsertChangeLog appends the property's change events in one batch insert.
func (s *Service) InsertChangeLog(ctx context.Context, entries []models.ChangeLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries)*7)
	for i := range entries {
		e := &entries[i]
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, e.PropertyID, string(e.EntityType), e.EntityID,
			string(e.ChangeType), e.PreviousValue, e.NewValue, e.Label)
	}

	query := fmt.Sprintf(`
		INSERT INTO change_log
		(property_id, entity_type, entity_id, change_type, previous_value, new_value, label)
		VALUES %s`, strings.Join(placeholders, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert change log batch: %w", err)
	}
	return nil
}

// InsertActivity records one activity entry.
func (s *Service) InsertActivity(ctx context.Context, entry models.ActivityEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (property_id, kind, message) VALUES (?, ?, ?)
	`, entry.PropertyID, entry.Kind, entry.Message)
	if err != nil {
		return fmt.Errorf("failed to insert activity entry: %w", err)
	}
	return nil
}

// RecordNotification logs the outcome the delivery gateway reported.
func (s *Service) RecordNotification(ctx context.Context, req models.NotificationRequest, status, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_log (property_id, channel, contact, status, detail)
		VALUES (?, ?, ?, ?, ?)
	`, req.PropertyID, req.Channel, req.Contact, status, detail)
	if err != nil {
		return fmt.Errorf("failed to record notification outcome: %w", err)
	}
	return nil
}

// TouchLastSynced bumps the property's last-synced timestamp, the one
// property field this engine writes.
func (s *Service) TouchLastSynced(ctx context.Context, propertyID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE properties SET last_synced_at = ? WHERE id = ?
	`, at, propertyID)
	if err != nil {
		return fmt.Errorf("failed to update last_synced_at: %w", err)
	}
	return nil
}

// PropertyLock is an acquired per-property advisory lock. GET_LOCK and
// RELEASE_LOCK are session-scoped, so the lock pins one pooled connection for
// its lifetime and the release must run on that same session.
type PropertyLock struct {
	conn *sql.Conn
	name string
}

// AcquirePropertyLock takes a per-property advisory lock so a manual trigger
// and a scheduled run cannot interleave between snapshot and insert. Returns
// a nil lock without waiting when another session holds it.
func (s *Service) AcquirePropertyLock(ctx context.Context, propertyID int64) (*PropertyLock, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to pin a connection for the property lock: %w", err)
	}

	name := lockName(propertyID)
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", name).Scan(&got); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to acquire property lock: %w", err)
	}
	if !got.Valid || got.Int64 != 1 {
		conn.Close()
		return nil, nil
	}
	return &PropertyLock{conn: conn, name: name}, nil
}

// Release releases the lock on its pinned session and returns the connection
// to the pool. RELEASE_LOCK reports 0 or NULL when the lock is not held by
// this session; that means the lock leaked and is worth a warning.
func (l *PropertyLock) Release(ctx context.Context) error {
	defer l.conn.Close()

	var released sql.NullInt64
	if err := l.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", l.name).Scan(&released); err != nil {
		return fmt.Errorf("failed to release property lock: %w", err)
	}
	if !released.Valid || released.Int64 != 1 {
		log.Warnf("Releasing %s reported the lock was not held by this session", l.name)
	}
	return nil
}

func lockName(propertyID int64) string {
	return fmt.Sprintf("regsync.property.%d", propertyID)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
