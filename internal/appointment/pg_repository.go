package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/televita-health/scheduling/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&specialty,
		&p.Timezone,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var patientID *int64
	var bookable *bool

	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&patientID,
		&a.StartTime,
		&a.Duration,
		&a.Status,
		&bookable,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.PatientID = patientID
	a.Bookable = bookable
	return &a, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)

	return scanPatient(row)
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, timezone, active, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)

	return scanProvider(row)
}

func (r *PgRepository) ListActiveProviders(ctx context.Context) ([]Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, timezone, active, created_at, updated_at
		FROM providers
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, patient_id, start_time, duration_minutes, status, bookable, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)

	return scanAppointment(row)
}

func (r *PgRepository) ListDayAppointments(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]schedule.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, start_time, duration_minutes, status, bookable
		FROM appointments
		WHERE provider_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schedule.Appointment
	for rows.Next() {
		var a schedule.Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.StartTime, &a.Duration, &a.Status, &a.Bookable); err != nil {
			return nil, err
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListOverbookingSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]schedule.OverbookingSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time
		FROM overbooking_exceptions
		WHERE provider_id = $1
		  AND start_time >= $2
		  AND start_time < $3
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schedule.OverbookingSlot
	for rows.Next() {
		var ob schedule.OverbookingSlot
		if err := rows.Scan(&ob.StartTime); err != nil {
			return nil, err
		}
		result = append(result, ob)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Reschedule cancels the old appointment row and claims the new rows for
// the patient in one transaction. The claim update re-checks that every
// target row is still an open bookable slot; a concurrent booking makes
// the whole transaction fail with ErrAppointmentTaken.
func (r *PgRepository) Reschedule(ctx context.Context, oldID int64, newIDs []int64, patientID int64, cancelReason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reschedule tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'x', cancel_reason = $2, updated_at = now()
		WHERE id = $1
	`, oldID, cancelReason)
	if err != nil {
		return fmt.Errorf("cancel old appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}

	tag, err = tx.Exec(ctx, `
		UPDATE appointments
		SET status = '1', patient_id = $2, updated_at = now()
		WHERE id = ANY($1)
		  AND status = 'o'
		  AND (bookable IS NULL OR bookable)
	`, newIDs, patientID)
	if err != nil {
		return fmt.Errorf("claim new appointments: %w", err)
	}
	if tag.RowsAffected() != int64(len(newIDs)) {
		return ErrAppointmentTaken
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reschedule tx: %w", err)
	}

	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
