package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/televita-health/scheduling/internal/schedule"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAppointmentTaken    = errors.New("appointment slot no longer open")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id int64) (*Patient, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	ListActiveProviders(ctx context.Context) ([]Provider, error)

	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)

	// Day snapshots feeding the classification engine
	ListDayAppointments(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]schedule.Appointment, error)
	ListOverbookingSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]schedule.OverbookingSlot, error)

	// Reschedule submission: cancel the old row, claim the new one(s) for
	// the patient, atomically.
	Reschedule(ctx context.Context, oldID int64, newIDs []int64, patientID int64, cancelReason string) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
