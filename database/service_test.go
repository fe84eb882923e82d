package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"regsync/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/jknair0/beforeeach"
	"github.com/shopspring/decimal"
)

var (
	store *Service
	mock  sqlmock.Sqlmock
)

func setUp() {
	var db *sql.DB
	db, mock, _ = sqlmock.New()
	store = NewService(db)
}

func tearDown() {
	store.db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func TestViolationSnapshot(t *testing.T) {
	it(func() {
		rows := sqlmock.NewRows([]string{"violation_number", "status"}).
			AddRow("111", "open").
			AddRow("222", "closed")
		mock.ExpectQuery("SELECT violation_number, status FROM violations WHERE property_id = (.+)").
			WithArgs(int64(7)).
			WillReturnRows(rows)

		snap, err := store.ViolationSnapshot(context.Background(), 7)
		if err != nil {
			t.Fatalf("ViolationSnapshot returned error: %v", err)
		}
		if len(snap) != 2 || snap["111"] != "open" || snap["222"] != "closed" {
			t.Errorf("Unexpected snapshot: %v", snap)
		}
	})
}

func TestViolationSnapshot_QueryError(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT violation_number, status FROM violations").
			WillReturnError(fmt.Errorf("test fetch error"))

		if _, err := store.ViolationSnapshot(context.Background(), 7); err == nil {
			t.Error("Expected an error from a failed snapshot query")
		}
	})
}

func TestUpsertViolations(t *testing.T) {
	it(func() {
		mock.ExpectExec("INSERT INTO violations").
			WillReturnResult(sqlmock.NewResult(1, 1))

		vs := []models.Violation{{
			PropertyID:      7,
			Authority:       models.AuthorityDOB,
			ViolationNumber: "111",
			SourceDataset:   "dob_violations_now",
			IssuedDate:      time.Now(),
			Penalty:         decimal.NewFromInt(2500),
			Status:          models.StatusOpen,
			Suppression:     models.Active(),
			LastSyncedAt:    time.Now(),
		}}

		if err := store.UpsertViolations(context.Background(), vs); err != nil {
			t.Errorf("UpsertViolations returned error: %v", err)
		}
	})
}

func TestUpsertViolations_EmptyIsNoop(t *testing.T) {
	it(func() {
		if err := store.UpsertViolations(context.Background(), nil); err != nil {
			t.Errorf("Empty upsert should be a no-op, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unexpected database traffic: %v", err)
		}
	})
}

func TestInsertChangeLog_BatchInsert(t *testing.T) {
	it(func() {
		mock.ExpectExec("INSERT INTO change_log").
			WithArgs(
				int64(7), "violation", "111", "new", "", "open", "New violation 111 (open)",
				int64(7), "violation", "222", "status_change", "open", "closed", "violation 222: open -> closed",
			).
			WillReturnResult(sqlmock.NewResult(2, 2))

		entries := []models.ChangeLogEntry{
			{PropertyID: 7, EntityType: models.EntityViolation, EntityID: "111",
				ChangeType: models.ChangeNew, NewValue: "open", Label: "New violation 111 (open)"},
			{PropertyID: 7, EntityType: models.EntityViolation, EntityID: "222",
				ChangeType: models.ChangeStatusChange, PreviousValue: "open", NewValue: "closed",
				Label: "violation 222: open -> closed"},
		}

		if err := store.InsertChangeLog(context.Background(), entries); err != nil {
			t.Errorf("InsertChangeLog returned error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Expected a single batch insert: %v", err)
		}
	})
}

func TestSuppressViolation(t *testing.T) {
	it(func() {
		mock.ExpectExec("UPDATE violations").
			WithArgs("too old", int64(7), "OATH_ECB", "111").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.SuppressViolation(context.Background(), 7, models.AuthorityOATH, "111", "too old")
		if err != nil {
			t.Errorf("SuppressViolation returned error: %v", err)
		}
	})
}

func TestPropertyLock(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT GET_LOCK(.+)").
			WithArgs("regsync.property.7").
			WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(1))
		mock.ExpectQuery("SELECT RELEASE_LOCK(.+)").
			WithArgs("regsync.property.7").
			WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

		lock, err := store.AcquirePropertyLock(context.Background(), 7)
		if err != nil {
			t.Fatalf("AcquirePropertyLock returned error: %v", err)
		}
		if lock == nil {
			t.Fatal("Expected the lock to be acquired")
		}
		if err := lock.Release(context.Background()); err != nil {
			t.Errorf("Release returned error: %v", err)
		}
	})
}

func TestPropertyLock_HeldElsewhere(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT GET_LOCK(.+)").
			WithArgs("regsync.property.7").
			WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(0))

		lock, err := store.AcquirePropertyLock(context.Background(), 7)
		if err != nil {
			t.Errorf("AcquirePropertyLock returned error: %v", err)
		}
		if lock != nil {
			t.Error("Expected no lock while another session holds it")
		}
	})
}

func TestPropertyLock_ReleaseNotHeldIsNotAnError(t *testing.T) {
	it(func() {
		handler := memory.New()
		log.SetHandler(handler)

		mock.ExpectQuery("SELECT GET_LOCK(.+)").
			WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(1))
		mock.ExpectQuery("SELECT RELEASE_LOCK(.+)").
			WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(0))

		lock, err := store.AcquirePropertyLock(context.Background(), 7)
		if err != nil || lock == nil {
			t.Fatalf("AcquirePropertyLock failed: lock=%v err=%v", lock, err)
		}
		if err := lock.Release(context.Background()); err != nil {
			t.Errorf("Release must not fail the sync when the lock leaked, got %v", err)
		}

		warned := false
		for _, entry := range handler.Entries {
			if entry.Level == log.WarnLevel && strings.Contains(entry.Message, "not held by this session") {
				warned = true
			}
		}
		if !warned {
			t.Error("Expected a warning when RELEASE_LOCK reports the lock was not held")
		}
	})
}

// recordingDriver tracks which connection each statement runs on. GET_LOCK
// is session-scoped, so the acquire and release of one property lock must
// land on the same connection even when the pool keeps nothing idle.
type recordingDriver struct {
	mu      sync.Mutex
	conns   int
	connIDs []int
	queries []string
}

func (d *recordingDriver) Open(string) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns++
	return &recordingConn{d: d, id: d.conns}, nil
}

type recordingConnector struct{ d *recordingDriver }

func (c recordingConnector) Connect(context.Context) (driver.Conn, error) { return c.d.Open("") }
func (c recordingConnector) Driver() driver.Driver                        { return c.d }

type recordingConn struct {
	d  *recordingDriver
	id int
}

func (c *recordingConn) Prepare(string) (driver.Stmt, error) {
	return nil, fmt.Errorf("recordingConn only supports QueryContext")
}
func (c *recordingConn) Close() error              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) { return nil, fmt.Errorf("not supported") }

func (c *recordingConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.d.mu.Lock()
	c.d.connIDs = append(c.d.connIDs, c.id)
	c.d.queries = append(c.d.queries, query)
	c.d.mu.Unlock()
	return &oneIntRow{}, nil
}

type oneIntRow struct{ done bool }

func (r *oneIntRow) Columns() []string { return []string{"value"} }
func (r *oneIntRow) Close() error      { return nil }
func (r *oneIntRow) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = int64(1)
	return nil
}

func TestPropertyLock_PinnedToOneSession(t *testing.T) {
	d := &recordingDriver{}
	db := sql.OpenDB(recordingConnector{d: d})
	defer db.Close()
	// No idle pool: every unpinned statement would land on a fresh connection.
	db.SetMaxIdleConns(0)

	s := NewService(db)
	lock, err := s.AcquirePropertyLock(context.Background(), 7)
	if err != nil {
		t.Fatalf("AcquirePropertyLock returned error: %v", err)
	}
	if lock == nil {
		t.Fatal("Expected the lock to be acquired")
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}

	if len(d.queries) != 2 {
		t.Fatalf("Expected 2 statements, got %d: %v", len(d.queries), d.queries)
	}
	if !strings.Contains(d.queries[0], "GET_LOCK") || !strings.Contains(d.queries[1], "RELEASE_LOCK") {
		t.Errorf("Unexpected statement order: %v", d.queries)
	}
	if d.connIDs[0] != d.connIDs[1] {
		t.Errorf("Acquire ran on connection %d but release on %d; the lock must stay on one session",
			d.connIDs[0], d.connIDs[1])
	}
}

func TestListSyncableProperties(t *testing.T) {
	it(func() {
		rows := sqlmock.NewRows([]string{
			"id", "building_id", "parcel_id", "borough", "address",
			"alerts_enabled", "contact_email", "contact_phone", "authorities", "last_synced_at",
		}).
			AddRow(1, "1001234", "1008760041", "MANHATTAN", "123 Main St", true, "a@b.c", "", "DOB,HPD", nil).
			AddRow(2, "", "3012340056", "BROOKLYN", "9 Elm St", false, "", "", "HPD", time.Now())

		mock.ExpectQuery("SELECT id, building_id, parcel_id, borough, address").
			WillReturnRows(rows)

		props, err := store.ListSyncableProperties(context.Background())
		if err != nil {
			t.Fatalf("ListSyncableProperties returned error: %v", err)
		}
		if len(props) != 2 {
			t.Fatalf("Expected 2 properties, got %d", len(props))
		}
		if len(props[0].Authorities) != 2 || props[0].Authorities[0] != models.AuthorityDOB {
			t.Errorf("Expected parsed authority list, got %v", props[0].Authorities)
		}
		if props[0].LastSyncedAt != nil {
			t.Error("Expected nil last-synced for a never-synced property")
		}
		if props[1].LastSyncedAt == nil {
			t.Error("Expected a last-synced timestamp for property 2")
		}
	})
}

func TestRecordNotification(t *testing.T) {
	it(func() {
		mock.ExpectExec("INSERT INTO notification_log").
			WithArgs(int64(7), "email", "a@b.c", "sent", "").
			WillReturnResult(sqlmock.NewResult(1, 1))

		req := models.NotificationRequest{PropertyID: 7, Channel: "email", Contact: "a@b.c"}
		if err := store.RecordNotification(context.Background(), req, "sent", ""); err != nil {
			t.Errorf("RecordNotification returned error: %v", err)
		}
	})
}
