// Package appointments persists booked appointments and orchestrates the
// calendar operations the conversational agent requests.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Appointment status lifecycle. An appointment is never deleted; cancelling
// or rescheduling only moves it between statuses so admin stats stay honest.
const (
	StatusScheduled   = "Scheduled"
	StatusRescheduled = "Rescheduled"
	StatusCancelled   = "Cancelled"
)

// ErrAppointmentNotFound is returned when no row matches the calendar event.
var ErrAppointmentNotFound = errors.New("appointments: appointment not found")

// Appointment is the persisted record of a booked visit. EventID links it to
// the calendar event so cancel and reschedule can find it later.
type Appointment struct {
	ID           uuid.UUID
	PatientName  string
	PatientAge   int
	PatientPhone string
	DoctorID     string
	Treatment    string
	StartsAt     time.Time
	Status       string
	EventID      string
	CreatedAt    time.Time
}

// repoDB is the subset of pgxpool.Pool the repository uses. Tests inject
// pgxmock through it.
type repoDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores appointments in Postgres.
type Repository struct {
	db repoDB
}

// NewRepository wraps a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pool cannot be nil")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB accepts any conforming database handle.
func NewRepositoryWithDB(db repoDB) *Repository {
	if db == nil {
		panic("appointments: db cannot be nil")
	}
	return &Repository{db: db}
}

// Create inserts a freshly booked appointment in Scheduled status.
func (r *Repository) Create(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = StatusScheduled
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO appointments (id, patient_name, patient_age, patient_phone, doctor_id, treatment, starts_at, status, event_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		appt.ID, appt.PatientName, appt.PatientAge, appt.PatientPhone,
		appt.DoctorID, appt.Treatment, appt.StartsAt, appt.Status,
		appt.EventID, appt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

// GetByEventID loads the appointment bound to a calendar event.
func (r *Repository) GetByEventID(ctx context.Context, eventID string) (*Appointment, error) {
	var appt Appointment
	err := r.db.QueryRow(ctx,
		`SELECT id, patient_name, patient_age, patient_phone, doctor_id, treatment, starts_at, status, event_id, created_at
		 FROM appointments WHERE event_id = $1`,
		eventID,
	).Scan(&appt.ID, &appt.PatientName, &appt.PatientAge, &appt.PatientPhone,
		&appt.DoctorID, &appt.Treatment, &appt.StartsAt, &appt.Status,
		&appt.EventID, &appt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get by event: %w", err)
	}
	return &appt, nil
}

// SetStatusByEvent updates the lifecycle status of the appointment bound to
// a calendar event.
func (r *Repository) SetStatusByEvent(ctx context.Context, eventID, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET status = $1 WHERE event_id = $2`,
		status, eventID,
	)
	if err != nil {
		return fmt.Errorf("appointments: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Reschedule moves the appointment bound to a calendar event to a new start
// time and marks it Rescheduled.
func (r *Repository) Reschedule(ctx context.Context, eventID string, startsAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET starts_at = $1, status = $2 WHERE event_id = $3`,
		startsAt, StatusRescheduled, eventID,
	)
	if err != nil {
		return fmt.Errorf("appointments: reschedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}
