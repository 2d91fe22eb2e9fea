package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoMatchingSlot means a chosen instant could not be mapped back to a
// selectable appointment. The calendar items offered to the user and the
// items given to ResolveSelection disagree, which is a caller bug; it must
// surface, never be defaulted around.
var ErrNoMatchingSlot = errors.New("no selectable slot matches chosen instant")

// DefaultSelectionWindowDays bounds how far ahead a reschedule may land
// when the caller supplies no narrower window.
const DefaultSelectionWindowDays = 90

// ResolveSelection maps a user-chosen instant back to the appointment IDs a
// reschedule request must reference. A 60-minute block returns both of its
// underlying rows; a 30-minute half returns just its own.
//
// Matching is by absolute instant, never by displayed wall-clock time, so a
// timezone display toggle cannot change the outcome.
func ResolveSelection(items []CalendarItem, chosen time.Time) ([]int64, error) {
	ms := chosen.UnixMilli()

	for _, item := range items {
		pair := item.Pair()
		if pair.Top.Time != ms && pair.Middle.Time != ms {
			continue
		}

		switch v := item.(type) {
		case SixtyAvailable:
			if pair.Top.Time == ms {
				return []int64{v.Primary, v.Secondary}, nil
			}
		case ThirtySlots:
			if pair.Top.Time == ms && v.TopAppointment != nil {
				return []int64{v.TopAppointment.ID}, nil
			}
			if pair.Middle.Time == ms && v.MiddleAppointment != nil {
				return []int64{v.MiddleAppointment.ID}, nil
			}
		}

		// The hour matched but the chosen half is not selectable.
		return nil, fmt.Errorf("%w: %s is a %s slot", ErrNoMatchingSlot, chosen.Format(time.RFC3339), item.Kind())
	}

	return nil, fmt.Errorf("%w: %s", ErrNoMatchingSlot, chosen.Format(time.RFC3339))
}

// IsSelectableDate reports whether candidate falls within [min, max]
// inclusive, comparing calendar days in the candidate's location. The
// bounds carry whatever domain rule the caller enforces; none lives here.
func IsSelectableDate(candidate, min, max time.Time) bool {
	c := dateOnly(candidate)
	return !c.Before(dateOnly(min)) && !c.After(dateOnly(max))
}

// DefaultSelectionWindow returns the widest allowed reschedule window:
// today through DefaultSelectionWindowDays out.
func DefaultSelectionWindow(now time.Time) (min, max time.Time) {
	min = dateOnly(now)
	return min, min.AddDate(0, 0, DefaultSelectionWindowDays)
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
