package schedule

import "time"

// ItemKind discriminates the calendar item variants.
type ItemKind string

const (
	KindSixtyAvailable   ItemKind = "60-minute-available"
	KindSixtyBooked      ItemKind = "60-minute-appointment"
	KindSixtyUnavailable ItemKind = "60-minute-unavailable"
	KindThirtySlots      ItemKind = "30-minute-slots"
	KindConflicting      ItemKind = "has-conflicting"
)

// CalendarItem is the classification result for one clock hour. Exactly one
// variant is produced per generated hour pair.
type CalendarItem interface {
	Kind() ItemKind
	Pair() HourPair
}

// SixtyAvailable is an hour whose two open half-hour rows together form a
// bookable 60-minute block. Primary is the top-of-hour row, Secondary the
// half-hour row; rescheduling into the block consumes both.
type SixtyAvailable struct {
	HourPair
	Primary           int64
	Secondary         int64
	TopAppointment    Appointment
	MiddleAppointment Appointment
}

func (SixtyAvailable) Kind() ItemKind { return KindSixtyAvailable }

// SixtyBooked is an hour fully occupied by a single 60-minute booking.
// SamePatient is set when the booking belongs to the patient a calendar is
// being classified for, so callers can label it without re-deriving.
type SixtyBooked struct {
	HourPair
	Appointment Appointment
	SamePatient bool
}

func (SixtyBooked) Kind() ItemKind { return KindSixtyBooked }

// SixtyUnavailable is an hour with no appointment rows at all.
type SixtyUnavailable struct {
	HourPair
}

func (SixtyUnavailable) Kind() ItemKind { return KindSixtyUnavailable }

// ThirtySlots is an hour whose halves resolve independently. Either half
// may be absent; an overbooking exception produces this variant with both
// halves nil, which signals an extra slot may be offered there.
type ThirtySlots struct {
	HourPair
	TopAppointment    *Appointment
	MiddleAppointment *Appointment
	TopSamePatient    bool
	MiddleSamePatient bool
}

func (ThirtySlots) Kind() ItemKind { return KindThirtySlots }

// Conflicting is an hour where the data holds more appointment rows than
// the slot model can represent without ambiguity. It carries every row for
// the hour and takes precedence over all other classifications.
type Conflicting struct {
	HourPair
	Appointments []Appointment
}

func (Conflicting) Kind() ItemKind { return KindConflicting }

// Classify turns one day's appointment snapshot into exactly one calendar
// item per operating hour. It is total: malformed rows fall through to the
// most conservative variant rather than being rejected, and the only error
// is an invalid timezone.
//
// forPatient, when non-nil, marks booked slots already belonging to that
// patient via the SamePatient flags.
func Classify(day time.Time, tz string, appointments []Appointment, overbooking []OverbookingSlot, forPatient *int64) ([]CalendarItem, error) {
	pairs, err := GenerateHourPairs(day, tz)
	if err != nil {
		return nil, err
	}

	overbooked := make(map[int64]struct{}, len(overbooking))
	for _, ob := range overbooking {
		overbooked[ob.StartTime.UnixMilli()] = struct{}{}
	}

	items := make([]CalendarItem, 0, len(pairs))
	for _, pair := range pairs {
		items = append(items, classifyHour(pair, appointments, overbooked, forPatient))
	}

	return items, nil
}

func classifyHour(pair HourPair, appointments []Appointment, overbooked map[int64]struct{}, forPatient *int64) CalendarItem {
	top := startingAt(appointments, pair.Top.Time)
	middle := startingAt(appointments, pair.Middle.Time)

	_, middleOverbooked := overbooked[pair.Middle.Time]

	// More rows than the hour can represent: two rows on one boundary, or a
	// 60-minute booking at the top with anything at the half-hour mark.
	// Open rows are exempt from the second check: providers store an open
	// hour as a pair of rows whose recorded duration may be 60.
	if len(top) > 1 || len(middle) > 1 ||
		(len(top) == 1 && top[0].Duration == 60 && top[0].Booked() && len(middle) > 0) {
		all := make([]Appointment, 0, len(top)+len(middle))
		all = append(all, top...)
		all = append(all, middle...)
		return Conflicting{HourPair: pair, Appointments: all}
	}

	if len(top) == 0 && len(middle) == 0 {
		if middleOverbooked {
			return ThirtySlots{HourPair: pair}
		}
		return SixtyUnavailable{HourPair: pair}
	}

	if len(top) == 1 && len(middle) == 1 && top[0].Open() && middle[0].Open() {
		if middleOverbooked {
			// The pair is still offerable, but the exception permits the
			// halves to be taken independently.
			t, m := top[0], middle[0]
			return ThirtySlots{HourPair: pair, TopAppointment: &t, MiddleAppointment: &m}
		}
		return SixtyAvailable{
			HourPair:          pair,
			Primary:           top[0].ID,
			Secondary:         middle[0].ID,
			TopAppointment:    top[0],
			MiddleAppointment: middle[0],
		}
	}

	if len(top) == 1 && top[0].Booked() && top[0].Duration == 60 {
		return SixtyBooked{
			HourPair:    pair,
			Appointment: top[0],
			SamePatient: samePatient(top[0], forPatient),
		}
	}

	// Everything else: each half stands on its own, with whichever rows are
	// present carried through untouched.
	item := ThirtySlots{HourPair: pair}
	if len(top) == 1 {
		t := top[0]
		item.TopAppointment = &t
		item.TopSamePatient = t.Booked() && samePatient(t, forPatient)
	}
	if len(middle) == 1 {
		m := middle[0]
		item.MiddleAppointment = &m
		item.MiddleSamePatient = m.Booked() && samePatient(m, forPatient)
	}
	return item
}

func startingAt(appointments []Appointment, epochMilli int64) []Appointment {
	var matched []Appointment
	for _, a := range appointments {
		if a.StartTime.UnixMilli() == epochMilli {
			matched = append(matched, a)
		}
	}
	return matched
}

func samePatient(a Appointment, forPatient *int64) bool {
	return forPatient != nil && a.PatientID != nil && *a.PatientID == *forPatient
}
