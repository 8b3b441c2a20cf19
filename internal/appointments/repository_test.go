package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestInsertDefaultsAndPersists(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	appt := &Appointment{
		UserKey: "2025550100",
		Slot:    "Monday 10:00am",
		Worker:  "Alice",
		Name:    "Jordan",
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "2025550100", "Monday 10:00am", "Alice", "Jordan",
			"", "", "", "", "", "confirmed", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Insert(context.Background(), appt); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if appt.ID == uuid.Nil {
		t.Error("expected generated id")
	}
	if appt.Status != "confirmed" {
		t.Errorf("expected default status confirmed, got %q", appt.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInsertMapsUniqueViolationToSlotTaken(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_slot_key"})

	err := repo.Insert(context.Background(), &Appointment{Slot: "Monday 10:00am"})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSlotBookedCaseInsensitive(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM appointments WHERE lower\(slot\) = lower\(\$1\)`).
		WithArgs("MONDAY 10:00AM").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	booked, err := repo.SlotBooked(context.Background(), "MONDAY 10:00AM")
	if err != nil {
		t.Fatalf("slot lookup: %v", err)
	}
	if !booked {
		t.Error("expected slot to be booked")
	}
}

func TestCount(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM appointments`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
}

func TestListWithStatusFilter(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	created := time.Now().UTC()
	id := uuid.New()
	mock.ExpectQuery("SELECT id, user_key, slot, worker").
		WithArgs("confirmed").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_key", "slot", "worker", "name", "phone", "email",
			"address", "areas", "pet_issue", "status", "created_at",
		}).AddRow(id, "2025550100", "Monday 10:00am", "Alice", "Jordan",
			"202-555-0100", "j@example.com", "1 Main St", "3 rooms", "No", "confirmed", created))

	out, err := repo.List(context.Background(), "confirmed")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].ID != id || out[0].Slot != "Monday 10:00am" {
		t.Fatalf("unexpected rows: %+v", out)
	}
}

func TestGetNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	id := uuid.New()
	mock.ExpectQuery("SELECT id, user_key, slot, worker").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_key", "slot", "worker", "name", "phone", "email",
			"address", "areas", "pet_issue", "status", "created_at",
		}))

	_, err := repo.Get(context.Background(), id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateBuildsPartialSet(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	id := uuid.New()
	status := "pending"
	worker := "Bob"
	mock.ExpectExec(`UPDATE appointments SET worker = \$1, status = \$2 WHERE id = \$3`).
		WithArgs("Bob", "pending", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), id, UpdateFields{Worker: &worker, Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateNoFieldsIsNoop(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	if err := repo.Update(context.Background(), uuid.New(), UpdateFields{}); err != nil {
		t.Fatalf("expected noop, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	id := uuid.New()
	mock.ExpectExec("DELETE FROM appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCountByStatus(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("confirmed", 5).
			AddRow("pending", 2))

	stats, err := repo.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["confirmed"] != 5 || stats["pending"] != 2 {
		t.Errorf("unexpected stats: %v", stats)
	}
}
