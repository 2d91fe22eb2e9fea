package schedule

import (
	"fmt"
	"time"
)

// Business day boundaries in the display timezone. The last generated pair
// starts at dayEndHour-1 so the final half-hour slot ends on the hour.
const (
	dayStartHour = 7
	dayEndHour   = 19
)

// TimeSlot is a generated half-hour boundary. Time is the comparison key;
// Display is only for rendering and must never be used for matching.
type TimeSlot struct {
	Time     int64 // epoch milliseconds
	DateTime time.Time
	Display  string
}

// HourPair covers one clock hour: the top-of-hour slot and the half-hour slot.
type HourPair struct {
	Top    TimeSlot
	Middle TimeSlot
}

// Pair returns the pair itself. It exists so every calendar item variant
// that embeds HourPair satisfies the CalendarItem interface.
func (p HourPair) Pair() HourPair { return p }

// GenerateHourPairs produces the canonical timeslot pairs for one business
// day in the given IANA timezone, one pair per operating hour.
//
// The day's year, month and date are taken as given. When a viewer's
// timezone is ahead of the reference timezone the caller passes a day
// already advanced by one; no re-normalization happens here.
func GenerateHourPairs(day time.Time, tz string) ([]HourPair, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	year, month, date := day.Date()

	pairs := make([]HourPair, 0, dayEndHour-dayStartHour)
	for hour := dayStartHour; hour < dayEndHour; hour++ {
		top := time.Date(year, month, date, hour, 0, 0, 0, loc)
		middle := top.Add(30 * time.Minute)
		pairs = append(pairs, HourPair{
			Top:    newTimeSlot(top),
			Middle: newTimeSlot(middle),
		})
	}

	return pairs, nil
}

func newTimeSlot(t time.Time) TimeSlot {
	return TimeSlot{
		Time:     t.UnixMilli(),
		DateTime: t,
		Display:  t.Format("3:04 PM"),
	}
}
