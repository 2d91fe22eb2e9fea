package schedule

import "time"

// Status is the single-character appointment state used by the upstream
// scheduling system.
type Status string

const (
	StatusOpen       Status = "o" // open, offerable if Bookable is not false
	StatusFull       Status = "f" // fully booked / confirmed
	StatusScheduled  Status = "1"
	StatusInProgress Status = "2"
	StatusCheckedOut Status = "3"
	StatusCompleted  Status = "4"
	StatusCancelled  Status = "x"
)

// Appointment is one scheduled or open unit of provider time, as fetched
// for a single calendar day. The engine treats it as an immutable snapshot.
type Appointment struct {
	ID        int64
	PatientID *int64
	StartTime time.Time
	Duration  int // minutes, 30 or 60 under normal operation
	Status    Status
	Bookable  *bool
}

// Open reports whether the appointment is an offerable open slot.
// An open row that is explicitly marked not bookable is excluded.
func (a Appointment) Open() bool {
	if a.Status != StatusOpen {
		return false
	}
	return a.Bookable == nil || *a.Bookable
}

// Booked reports whether the appointment holds a patient booking in any
// of its booked sub-states.
func (a Appointment) Booked() bool {
	switch a.Status {
	case StatusFull, StatusScheduled, StatusInProgress, StatusCheckedOut, StatusCompleted:
		return true
	}
	return false
}

// OverbookingSlot marks a half-hour that is allowed to hold an extra
// appointment beyond the normal 60-minute pairing rule. Matched by instant.
type OverbookingSlot struct {
	StartTime time.Time
}
