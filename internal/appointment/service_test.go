package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/televita-health/scheduling/internal/config"
	redisclient "github.com/televita-health/scheduling/internal/redis"
	"github.com/televita-health/scheduling/internal/schedule"
)

// Fakes

type rescheduleCall struct {
	oldID        int64
	newIDs       []int64
	patientID    int64
	cancelReason string
}

type fakeRepo struct {
	providers   map[uuid.UUID]*Provider
	appts       map[int64]*Appointment
	dayAppts    []schedule.Appointment
	overbooking []schedule.OverbookingSlot

	rescheduled   *rescheduleCall
	rescheduleErr error
	events        []EventLog
}

func (r *fakeRepo) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	return nil, ErrPatientNotFound
}

func (r *fakeRepo) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return p, nil
}

func (r *fakeRepo) ListActiveProviders(ctx context.Context) ([]Provider, error) {
	var out []Provider
	for _, p := range r.providers {
		if p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return a, nil
}

func (r *fakeRepo) ListDayAppointments(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]schedule.Appointment, error) {
	var out []schedule.Appointment
	for _, a := range r.dayAppts {
		if !a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListOverbookingSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]schedule.OverbookingSlot, error) {
	return r.overbooking, nil
}

func (r *fakeRepo) Reschedule(ctx context.Context, oldID int64, newIDs []int64, patientID int64, cancelReason string) error {
	if r.rescheduleErr != nil {
		return r.rescheduleErr
	}
	r.rescheduled = &rescheduleCall{oldID: oldID, newIDs: newIDs, patientID: patientID, cancelReason: cancelReason}
	return nil
}

func (r *fakeRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.events = append(r.events, ev)
	return nil
}

type fakeLocker struct {
	contended bool
	locked    []int64
}

func (l *fakeLocker) WithAppointmentLock(ctx context.Context, appointmentID int64, fn func(ctx context.Context) error) error {
	if l.contended {
		return redisclient.ErrLockNotAcquired
	}
	l.locked = append(l.locked, appointmentID)
	return fn(ctx)
}

type fakeCache struct {
	entries map[string]schedule.DayAvailability
	sets    int
}

func (c *fakeCache) key(providerID uuid.UUID, date string) string {
	return providerID.String() + ":" + date
}

func (c *fakeCache) Get(ctx context.Context, providerID uuid.UUID, date string) (schedule.DayAvailability, error) {
	v, ok := c.entries[c.key(providerID, date)]
	if !ok {
		return schedule.DayAvailability{}, redisclient.ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, providerID uuid.UUID, date string, v schedule.DayAvailability) error {
	c.entries[c.key(providerID, date)] = v
	c.sets++
	return nil
}

// Fixture

var (
	testProviderID = uuid.MustParse("6b1e8a62-1a39-4e51-9a4e-13bd6b1b0f01")
	testNow        = time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)
	testDay        = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
)

func slotAt(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	return time.Date(2026, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeLocker, *fakeCache) {
	t.Helper()

	patient := int64(42)
	repo := &fakeRepo{
		providers: map[uuid.UUID]*Provider{
			testProviderID: {ID: testProviderID, Name: "Dana Reyes", Timezone: "UTC", Active: true},
		},
		appts: map[int64]*Appointment{
			100: {
				Appointment: schedule.Appointment{
					ID:        100,
					PatientID: &patient,
					StartTime: slotAt(t, 10, 0),
					Duration:  30,
					Status:    schedule.StatusScheduled,
				},
				ProviderID: testProviderID,
			},
		},
		dayAppts: []schedule.Appointment{
			{ID: 1, StartTime: slotAt(t, 9, 0), Duration: 30, Status: schedule.StatusOpen},
			{ID: 2, StartTime: slotAt(t, 9, 30), Duration: 30, Status: schedule.StatusOpen},
			{ID: 3, PatientID: &patient, StartTime: slotAt(t, 10, 0), Duration: 30, Status: schedule.StatusScheduled},
		},
	}
	locker := &fakeLocker{}
	cache := &fakeCache{entries: make(map[string]schedule.DayAvailability)}

	cfg := config.Config{
		BusinessTimezone:  "UTC",
		WorkerHorizonDays: 3,
	}

	svc := NewService(repo, locker, cache, cfg, zap.NewNop())
	svc.now = func() time.Time { return testNow }

	return svc, repo, locker, cache
}

// Tests

func TestCalendar(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	items, err := svc.Calendar(context.Background(), testProviderID, testDay, "UTC", nil)
	require.NoError(t, err)
	require.Len(t, items, 12)

	byHour := make(map[int]schedule.CalendarItem)
	for _, item := range items {
		byHour[item.Pair().Top.DateTime.Hour()] = item
	}

	assert.Equal(t, schedule.KindSixtyAvailable, byHour[9].Kind())
	assert.Equal(t, schedule.KindThirtySlots, byHour[10].Kind())
	assert.Equal(t, schedule.KindSixtyUnavailable, byHour[11].Kind())
}

func TestCalendar_ProviderNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Calendar(context.Background(), uuid.New(), testDay, "UTC", nil)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestCalendar_DefaultsToProviderTimezone(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	items, err := svc.Calendar(context.Background(), testProviderID, testDay, "", nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, items[0].Pair().Top.DateTime.Location())
}

func TestCalendar_InvalidTimezone(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Calendar(context.Background(), testProviderID, testDay, "Not/AZone", nil)
	assert.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestAvailabilityRange_ComputesAndCaches(t *testing.T) {
	svc, _, _, cache := newTestService(t)

	from := testDay
	to := testDay.AddDate(0, 0, 2)

	entries, err := svc.AvailabilityRange(context.Background(), testProviderID, from, to, "UTC")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "2026-03-10", entries[0].Date)
	assert.Equal(t, schedule.AvailabilityLow, entries[0].Availability.Level)
	assert.Equal(t, 60, entries[0].Availability.OpenMinutes)
	assert.Equal(t, schedule.AvailabilityNone, entries[1].Availability.Level)
	assert.Equal(t, 3, cache.sets)

	// Second read comes from the cache.
	_, err = svc.AvailabilityRange(context.Background(), testProviderID, from, to, "UTC")
	require.NoError(t, err)
	assert.Equal(t, 3, cache.sets)
}

func TestReschedule(t *testing.T) {
	svc, repo, locker, _ := newTestService(t)

	chosen := slotAt(t, 9, 0)
	result, err := svc.Reschedule(context.Background(), 100, chosen, "UTC", "patient request")
	require.NoError(t, err)

	assert.Equal(t, int64(100), result.OldAppointmentID)
	assert.Equal(t, []int64{1, 2}, result.NewAppointmentIDs)
	assert.Equal(t, int64(42), result.PatientID)

	require.NotNil(t, repo.rescheduled)
	assert.Equal(t, []int64{1, 2}, repo.rescheduled.newIDs)
	assert.Equal(t, "patient request", repo.rescheduled.cancelReason)
	assert.Equal(t, []int64{100}, locker.locked)

	require.Len(t, repo.events, 1)
	assert.Equal(t, EventAppointmentRescheduled, repo.events[0].EventType)
}

func TestReschedule_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Reschedule(context.Background(), 999, slotAt(t, 9, 0), "UTC", "")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestReschedule_OpenRowNotReschedulable(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	repo.appts[101] = &Appointment{
		Appointment: schedule.Appointment{ID: 101, StartTime: slotAt(t, 9, 0), Duration: 30, Status: schedule.StatusOpen},
		ProviderID:  testProviderID,
	}

	_, err := svc.Reschedule(context.Background(), 101, slotAt(t, 9, 0), "UTC", "")
	assert.ErrorIs(t, err, ErrNotReschedulable)
}

func TestReschedule_OutsideWindow(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	tests := map[string]time.Time{
		"in the past":                       testNow.AddDate(0, 0, -1),
		"more than six days after original": slotAt(t, 9, 0).AddDate(0, 0, 7),
	}

	for name, chosen := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Reschedule(context.Background(), 100, chosen, "UTC", "")
			assert.ErrorIs(t, err, ErrDateOutsideWindow)
		})
	}
}

func TestReschedule_UnresolvableSelection(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	// Inside the window, but no open slot exists at 13:00.
	_, err := svc.Reschedule(context.Background(), 100, slotAt(t, 13, 0), "UTC", "")
	assert.ErrorIs(t, err, schedule.ErrNoMatchingSlot)
	assert.Nil(t, repo.rescheduled)
}

func TestReschedule_EquivalentInstantRepresentations(t *testing.T) {
	akl, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)

	// 2026-03-10 09:00 NZDT is 2026-03-09 20:00 UTC; a client may serialize
	// either form. Both must land on the same calendar day and resolve to
	// the same slot pair.
	top := time.Date(2026, time.March, 10, 9, 0, 0, 0, akl)

	newAucklandService := func(t *testing.T) (*Service, *fakeRepo) {
		t.Helper()

		patient := int64(42)
		repo := &fakeRepo{
			providers: map[uuid.UUID]*Provider{
				testProviderID: {ID: testProviderID, Name: "Tui Walker", Timezone: "Pacific/Auckland", Active: true},
			},
			appts: map[int64]*Appointment{
				100: {
					Appointment: schedule.Appointment{
						ID:        100,
						PatientID: &patient,
						StartTime: time.Date(2026, time.March, 10, 11, 0, 0, 0, akl),
						Duration:  30,
						Status:    schedule.StatusScheduled,
					},
					ProviderID: testProviderID,
				},
			},
			dayAppts: []schedule.Appointment{
				{ID: 1, StartTime: top, Duration: 30, Status: schedule.StatusOpen},
				{ID: 2, StartTime: top.Add(30 * time.Minute), Duration: 30, Status: schedule.StatusOpen},
			},
		}

		svc := NewService(repo, &fakeLocker{}, &fakeCache{entries: make(map[string]schedule.DayAvailability)}, config.Config{}, zap.NewNop())
		svc.now = func() time.Time { return testNow }
		return svc, repo
	}

	representations := map[string]time.Time{
		"local offset": top,
		"utc":          top.UTC(),
	}

	for name, chosen := range representations {
		t.Run(name, func(t *testing.T) {
			svc, repo := newAucklandService(t)

			result, err := svc.Reschedule(context.Background(), 100, chosen, "", "patient request")
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 2}, result.NewAppointmentIDs)

			require.NotNil(t, repo.rescheduled)
			assert.Equal(t, []int64{1, 2}, repo.rescheduled.newIDs)
		})
	}
}

func TestReschedule_LockContention(t *testing.T) {
	svc, repo, locker, _ := newTestService(t)
	locker.contended = true

	_, err := svc.Reschedule(context.Background(), 100, slotAt(t, 9, 0), "UTC", "")
	assert.ErrorIs(t, err, ErrRescheduleInFlight)
	assert.Nil(t, repo.rescheduled)
}

func TestReschedule_SlotTaken(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	repo.rescheduleErr = ErrAppointmentTaken

	_, err := svc.Reschedule(context.Background(), 100, slotAt(t, 9, 0), "UTC", "")
	assert.ErrorIs(t, err, ErrAppointmentTaken)
}

func TestRefreshAvailability(t *testing.T) {
	svc, _, _, cache := newTestService(t)

	err := svc.RefreshAvailability(context.Background())
	require.NoError(t, err)

	// One provider, three days of horizon.
	assert.Equal(t, 3, cache.sets)

	v, err := cache.Get(context.Background(), testProviderID, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, schedule.AvailabilityLow, v.Level)
}
