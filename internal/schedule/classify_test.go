package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

func at(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	return time.Date(2026, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func open(id int64, start time.Time, duration int) Appointment {
	return Appointment{ID: id, StartTime: start, Duration: duration, Status: StatusOpen}
}

func booked(id, patientID int64, start time.Time, duration int, status Status) Appointment {
	return Appointment{ID: id, PatientID: &patientID, StartTime: start, Duration: duration, Status: status}
}

func itemAtHour(t *testing.T, items []CalendarItem, hour int) CalendarItem {
	t.Helper()
	for _, item := range items {
		if item.Pair().Top.DateTime.Hour() == hour {
			return item
		}
	}
	t.Fatalf("no calendar item for hour %d", hour)
	return nil
}

func TestClassify_SixtyAvailablePairing(t *testing.T) {
	appts := []Appointment{
		open(1, at(t, 9, 0), 60),
		open(2, at(t, 9, 30), 60),
	}

	items, err := Classify(testDay, "UTC", appts, nil, nil)
	require.NoError(t, err)

	item := itemAtHour(t, items, 9)
	avail, ok := item.(SixtyAvailable)
	require.True(t, ok, "expected SixtyAvailable, got %s", item.Kind())

	// Primary is always the top-of-hour row, secondary the half-hour row.
	assert.Equal(t, int64(1), avail.Primary)
	assert.Equal(t, int64(2), avail.Secondary)
}

func TestClassify_ConflictPrecedence(t *testing.T) {
	tests := map[string][]Appointment{
		"two rows at top of hour": {
			open(1, at(t, 10, 0), 30),
			booked(2, 77, at(t, 10, 0), 30, StatusFull),
		},
		"two rows at half hour": {
			open(1, at(t, 10, 30), 30),
			open(2, at(t, 10, 30), 30),
		},
		"sixty minute row with half hour row behind it": {
			booked(1, 77, at(t, 10, 0), 60, StatusScheduled),
			open(2, at(t, 10, 30), 30),
		},
	}

	for name, appts := range tests {
		t.Run(name, func(t *testing.T) {
			items, err := Classify(testDay, "UTC", appts, nil, nil)
			require.NoError(t, err)

			item := itemAtHour(t, items, 10)
			conflict, ok := item.(Conflicting)
			require.True(t, ok, "expected Conflicting, got %s", item.Kind())
			assert.Len(t, conflict.Appointments, len(appts))
		})
	}
}

func TestClassify_EmptyHourIsUnavailable(t *testing.T) {
	items, err := Classify(testDay, "UTC", nil, nil, nil)
	require.NoError(t, err)

	require.Len(t, items, 12)
	for _, item := range items {
		assert.Equal(t, KindSixtyUnavailable, item.Kind())
	}
}

func TestClassify_OverbookingOverridesUnavailable(t *testing.T) {
	over := []OverbookingSlot{{StartTime: at(t, 11, 30)}}

	items, err := Classify(testDay, "UTC", nil, over, nil)
	require.NoError(t, err)

	item := itemAtHour(t, items, 11)
	slots, ok := item.(ThirtySlots)
	require.True(t, ok, "expected ThirtySlots, got %s", item.Kind())
	assert.Nil(t, slots.TopAppointment)
	assert.Nil(t, slots.MiddleAppointment)

	// Neighbouring hours stay unavailable.
	assert.Equal(t, KindSixtyUnavailable, itemAtHour(t, items, 10).Kind())
	assert.Equal(t, KindSixtyUnavailable, itemAtHour(t, items, 12).Kind())
}

func TestClassify_OverbookingSplitsAvailablePair(t *testing.T) {
	appts := []Appointment{
		open(1, at(t, 9, 0), 30),
		open(2, at(t, 9, 30), 30),
	}
	over := []OverbookingSlot{{StartTime: at(t, 9, 30)}}

	items, err := Classify(testDay, "UTC", appts, over, nil)
	require.NoError(t, err)

	item := itemAtHour(t, items, 9)
	slots, ok := item.(ThirtySlots)
	require.True(t, ok, "expected ThirtySlots, got %s", item.Kind())
	require.NotNil(t, slots.TopAppointment)
	require.NotNil(t, slots.MiddleAppointment)
	assert.Equal(t, int64(1), slots.TopAppointment.ID)
	assert.Equal(t, int64(2), slots.MiddleAppointment.ID)
}

func TestClassify_SixtyMinuteBooking(t *testing.T) {
	for _, status := range []Status{StatusFull, StatusScheduled, StatusInProgress, StatusCheckedOut, StatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			appts := []Appointment{booked(5, 42, at(t, 14, 0), 60, status)}

			items, err := Classify(testDay, "UTC", appts, nil, nil)
			require.NoError(t, err)

			item := itemAtHour(t, items, 14)
			booked, ok := item.(SixtyBooked)
			require.True(t, ok, "expected SixtyBooked, got %s", item.Kind())
			assert.Equal(t, int64(5), booked.Appointment.ID)
			assert.False(t, booked.SamePatient)
		})
	}
}

func TestClassify_SamePatientFlag(t *testing.T) {
	patient := int64(42)
	appts := []Appointment{
		booked(5, patient, at(t, 14, 0), 60, StatusScheduled),
		booked(6, 99, at(t, 15, 0), 30, StatusScheduled),
		booked(7, patient, at(t, 15, 30), 30, StatusScheduled),
	}

	items, err := Classify(testDay, "UTC", appts, nil, &patient)
	require.NoError(t, err)

	sixty := itemAtHour(t, items, 14).(SixtyBooked)
	assert.True(t, sixty.SamePatient)

	thirty := itemAtHour(t, items, 15).(ThirtySlots)
	assert.False(t, thirty.TopSamePatient)
	assert.True(t, thirty.MiddleSamePatient)
}

func TestClassify_MixedHourDefaultsToThirtySlots(t *testing.T) {
	tests := map[string]struct {
		appts      []Appointment
		wantTop    bool
		wantMiddle bool
	}{
		"booked half plus open half": {
			appts: []Appointment{
				booked(1, 7, at(t, 13, 0), 30, StatusFull),
				open(2, at(t, 13, 30), 30),
			},
			wantTop:    true,
			wantMiddle: true,
		},
		"lone open half": {
			appts:   []Appointment{open(1, at(t, 13, 0), 30)},
			wantTop: true,
		},
		"lone cancelled row": {
			appts:      []Appointment{{ID: 1, StartTime: at(t, 13, 30), Duration: 30, Status: StatusCancelled}},
			wantMiddle: true,
		},
		"open pair with one half not bookable": {
			appts: []Appointment{
				open(1, at(t, 13, 0), 30),
				{ID: 2, StartTime: at(t, 13, 30), Duration: 30, Status: StatusOpen, Bookable: boolPtr(false)},
			},
			wantTop:    true,
			wantMiddle: true,
		},
		"malformed duration carried through": {
			appts:   []Appointment{booked(1, 7, at(t, 13, 0), 45, StatusFull)},
			wantTop: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			items, err := Classify(testDay, "UTC", tc.appts, nil, nil)
			require.NoError(t, err)

			item := itemAtHour(t, items, 13)
			slots, ok := item.(ThirtySlots)
			require.True(t, ok, "expected ThirtySlots, got %s", item.Kind())
			assert.Equal(t, tc.wantTop, slots.TopAppointment != nil)
			assert.Equal(t, tc.wantMiddle, slots.MiddleAppointment != nil)
		})
	}
}

func TestClassify_TotalOverAnyInput(t *testing.T) {
	appts := []Appointment{
		open(1, at(t, 9, 0), 30),
		open(1, at(t, 9, 0), 30), // duplicate row
		{ID: 2, StartTime: at(t, 10, 0), Duration: 0, Status: "z"},
		booked(3, 7, at(t, 23, 0), 60, StatusFull), // outside business hours
	}

	items, err := Classify(testDay, "UTC", appts, nil, nil)
	require.NoError(t, err)
	assert.Len(t, items, 12, "exactly one item per operating hour")
}

func TestClassify_InvalidTimezone(t *testing.T) {
	_, err := Classify(testDay, "Mars/Olympus_Mons", nil, nil, nil)
	require.Error(t, err)
}

func boolPtr(b bool) *bool { return &b }
