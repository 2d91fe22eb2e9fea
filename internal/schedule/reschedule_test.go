package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSelection_RoundTrip(t *testing.T) {
	appts := []Appointment{
		open(1, at(t, 9, 0), 60),
		open(2, at(t, 9, 30), 60),
		booked(3, 7, at(t, 10, 0), 30, StatusFull),
		open(4, at(t, 10, 30), 30),
	}

	items, err := Classify(testDay, "UTC", appts, nil, nil)
	require.NoError(t, err)

	// A 60-minute block resolves to both underlying rows.
	ids, err := ResolveSelection(items, at(t, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	// A 30-minute half resolves to just its own row.
	ids, err = ResolveSelection(items, at(t, 10, 30))
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids)

	ids, err = ResolveSelection(items, at(t, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)
}

func TestResolveSelection_InstantNotDisplayEquality(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	appts := []Appointment{
		open(1, time.Date(2026, time.March, 10, 9, 0, 0, 0, ny), 30),
		open(2, time.Date(2026, time.March, 10, 9, 30, 0, 0, ny), 30),
	}

	items, err := Classify(testDay, "America/New_York", appts, nil, nil)
	require.NoError(t, err)

	// The same instant expressed in UTC must still resolve; 9:00 AM UTC,
	// which merely shares the displayed wall-clock time, must not.
	chosen := time.Date(2026, time.March, 10, 9, 0, 0, 0, ny).UTC()
	ids, err := ResolveSelection(items, chosen)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	_, err = ResolveSelection(items, time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNoMatchingSlot)
}

func TestResolveSelection_ContractViolations(t *testing.T) {
	appts := []Appointment{
		open(1, at(t, 9, 0), 60),
		open(2, at(t, 9, 30), 60),
		booked(3, 7, at(t, 11, 0), 60, StatusScheduled),
	}

	items, err := Classify(testDay, "UTC", appts, nil, nil)
	require.NoError(t, err)

	tests := map[string]time.Time{
		"instant outside the day":             at(t, 9, 0).Add(48 * time.Hour),
		"middle of a sixty minute block":      at(t, 9, 30),
		"unavailable hour":                    at(t, 12, 0),
		"hour held by a sixty minute booking": at(t, 11, 0),
	}

	for name, chosen := range tests {
		t.Run(name, func(t *testing.T) {
			ids, err := ResolveSelection(items, chosen)
			assert.ErrorIs(t, err, ErrNoMatchingSlot)
			assert.Nil(t, ids)
		})
	}
}

func TestResolveSelection_UndefinedOverbookingHalf(t *testing.T) {
	over := []OverbookingSlot{{StartTime: at(t, 11, 30)}}

	items, err := Classify(testDay, "UTC", nil, over, nil)
	require.NoError(t, err)

	// The exception offers a slot but no appointment row backs it yet.
	_, err = ResolveSelection(items, at(t, 11, 30))
	assert.ErrorIs(t, err, ErrNoMatchingSlot)
}

func TestIsSelectableDate(t *testing.T) {
	min := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	max := time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		candidate time.Time
		want      bool
	}{
		"inside window":         {time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC), true},
		"lower bound inclusive": {min, true},
		"upper bound inclusive": {time.Date(2026, time.March, 20, 23, 59, 0, 0, time.UTC), true},
		"before window":         {time.Date(2026, time.March, 9, 23, 59, 0, 0, time.UTC), false},
		"after window":          {time.Date(2026, time.March, 21, 0, 0, 0, 0, time.UTC), false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsSelectableDate(tc.candidate, min, max))
		})
	}
}

func TestDefaultSelectionWindow(t *testing.T) {
	now := time.Date(2026, time.March, 10, 15, 42, 0, 0, time.UTC)

	min, max := DefaultSelectionWindow(now)
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), min)
	assert.Equal(t, time.Date(2026, time.June, 8, 0, 0, 0, 0, time.UTC), max)

	assert.True(t, IsSelectableDate(now, min, max))
	assert.False(t, IsSelectableDate(now.AddDate(0, 0, -1), min, max))
	assert.False(t, IsSelectableDate(max.AddDate(0, 0, 1), min, max))
}
