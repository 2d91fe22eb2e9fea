package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/televita-health/scheduling/internal/schedule"
)

type Patient struct {
	ID        int64
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Timezone  string // IANA name, the provider's home display timezone
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is a stored appointment row: the engine's snapshot record
// plus its owning provider and bookkeeping columns.
type Appointment struct {
	schedule.Appointment
	ProviderID uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OverbookingException is a stored allowance for an extra slot at one
// half-hour of one provider's day.
type OverbookingException struct {
	ID         int64
	ProviderID uuid.UUID
	StartTime  time.Time
	Reason     *string
	CreatedAt  time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

// RescheduleResult reports what a completed reschedule touched.
type RescheduleResult struct {
	OldAppointmentID  int64
	NewAppointmentIDs []int64
	PatientID         int64
	NewStartTime      time.Time
}

// DayAvailabilityEntry pairs a calendar date with its computed bucket, for
// calendar-level navigation.
type DayAvailabilityEntry struct {
	Date         string // YYYY-MM-DD in the requested timezone
	Availability schedule.DayAvailability
}
