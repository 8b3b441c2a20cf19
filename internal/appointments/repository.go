package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSlotTaken is returned when an insert collides with the unique index on
// the canonical slot string. The constraint is the authoritative conflict
// signal; the pre-check in the booking engine only exists for a friendlier
// early answer.
var ErrSlotTaken = errors.New("appointments: slot already booked")

// ErrNotFound is returned for lookups/updates/deletes of unknown ids.
var ErrNotFound = errors.New("appointments: not found")

// Appointment is a confirmed, persisted reservation of exactly one slot.
type Appointment struct {
	ID        uuid.UUID `json:"id"`
	UserKey   string    `json:"user"`
	Slot      string    `json:"slot"`
	Worker    string    `json:"worker"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	Areas     string    `json:"areas"`
	PetIssue  string    `json:"petIssue"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for appointments.
type Repository struct {
	db db
}

// NewRepository creates a repository backed by a pgx pool (or a mock in
// tests).
func NewRepository(db db) *Repository {
	if db == nil {
		panic("appointments: database required")
	}
	return &Repository{db: db}
}

// Insert persists a confirmed appointment. A duplicate canonical slot
// (case-insensitive) yields ErrSlotTaken.
func (r *Repository) Insert(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = "confirmed"
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (
			id, user_key, slot, worker, name, phone, email, address, areas, pet_issue, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, appt.ID, appt.UserKey, appt.Slot, appt.Worker, appt.Name, appt.Phone,
		appt.Email, appt.Address, appt.Areas, appt.PetIssue, appt.Status, appt.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

// SlotBooked reports whether any appointment already holds the slot.
// Comparison is case-insensitive on the canonical slot string.
func (r *Repository) SlotBooked(ctx context.Context, slot string) (bool, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE lower(slot) = lower($1)`,
		slot,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("appointments: slot lookup: %w", err)
	}
	return count > 0, nil
}

// Count returns the total number of persisted appointments. The booking
// engine derives round-robin worker assignment from this at commit time,
// so deletions shift future assignments; that coupling is deliberate.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM appointments`).Scan(&count); err != nil {
		return 0, fmt.Errorf("appointments: count: %w", err)
	}
	return count, nil
}

// List returns appointments newest-first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status string) ([]Appointment, error) {
	query := `
		SELECT id, user_key, slot, worker, name, phone, email, address, areas, pet_issue, status, created_at
		FROM appointments
	`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.UserKey, &a.Slot, &a.Worker, &a.Name, &a.Phone,
			&a.Email, &a.Address, &a.Areas, &a.PetIssue, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list rows: %w", err)
	}
	return out, nil
}

// Get returns one appointment by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	err := r.db.QueryRow(ctx, `
		SELECT id, user_key, slot, worker, name, phone, email, address, areas, pet_issue, status, created_at
		FROM appointments WHERE id = $1
	`, id).Scan(&a.ID, &a.UserKey, &a.Slot, &a.Worker, &a.Name, &a.Phone,
		&a.Email, &a.Address, &a.Areas, &a.PetIssue, &a.Status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return &a, nil
}

// UpdateFields is the set of admin-editable appointment fields; nil
// members are left unchanged.
type UpdateFields struct {
	Slot     *string `json:"slot"`
	Worker   *string `json:"worker"`
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email"`
	Address  *string `json:"address"`
	Areas    *string `json:"areas"`
	PetIssue *string `json:"petIssue"`
	Status   *string `json:"status"`
}

// Update applies the non-nil fields to an appointment. Moving an
// appointment onto an occupied slot yields ErrSlotTaken.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) error {
	var (
		sets []string
		args []any
	)
	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("slot", fields.Slot)
	add("worker", fields.Worker)
	add("name", fields.Name)
	add("phone", fields.Phone)
	add("email", fields.Email)
	add("address", fields.Address)
	add("areas", fields.Areas)
	add("pet_issue", fields.PetIssue)
	add("status", fields.Status)
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE appointments SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("appointments: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an appointment.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("appointments: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns appointment counts keyed by status, for the admin
// stats endpoint.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("appointments: stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("appointments: stats scan: %w", err)
		}
		out[status] = count
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
