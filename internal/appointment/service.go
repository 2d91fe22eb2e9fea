package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/televita-health/scheduling/internal/config"
	"github.com/televita-health/scheduling/internal/metrics"
	redisclient "github.com/televita-health/scheduling/internal/redis"
	"github.com/televita-health/scheduling/internal/schedule"
)

const (
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventRescheduleFailed       = "RESCHEDULE_FAILED"
)

// How far a reschedule may drift from the original appointment, in days
// either direction. The engine itself only checks the bounds it is handed.
const reschedulePadDays = 6

var (
	ErrInvalidTimezone    = errors.New("invalid timezone")
	ErrNotReschedulable   = errors.New("appointment cannot be rescheduled")
	ErrDateOutsideWindow  = errors.New("chosen date is outside the allowed window")
	ErrRescheduleInFlight = errors.New("appointment is already being rescheduled, please retry")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cache  redisclient.AvailabilityCache
	cfg    config.Config
	log    *zap.Logger

	// now is swappable in tests
	now func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cache redisclient.AvailabilityCache, cfg config.Config, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cache:  cache,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Calendar classifies one provider day into calendar items. forPatient, when
// non-nil, marks booked slots already held by that patient.
func (s *Service) Calendar(ctx context.Context, providerID uuid.UUID, day time.Time, tz string, forPatient *int64) ([]schedule.CalendarItem, error) {
	provider, err := s.repo.GetProviderByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	if tz == "" {
		tz = provider.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}

	appts, overbooking, err := s.daySnapshot(ctx, providerID, day, loc)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	items, err := schedule.Classify(day, tz, appts, overbooking, forPatient)
	if err != nil {
		return nil, fmt.Errorf("classify day: %w", err)
	}
	metrics.ClassificationDuration.Observe(time.Since(start).Seconds())

	for _, item := range items {
		if item.Kind() == schedule.KindConflicting {
			metrics.ConflictingHoursTotal.Inc()
			s.log.Warn("conflicting hour in provider calendar",
				zap.String("provider_id", providerID.String()),
				zap.Time("hour", item.Pair().Top.DateTime),
			)
		}
	}

	return items, nil
}

// AvailabilityRange computes the coarse day buckets for calendar navigation
// over [from, to] inclusive, reading through the redis cache.
func (s *Service) AvailabilityRange(ctx context.Context, providerID uuid.UUID, from, to time.Time, tz string) ([]DayAvailabilityEntry, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}

	var entries []DayAvailabilityEntry
	for day := dateIn(from, loc); !day.After(dateIn(to, loc)); day = day.AddDate(0, 0, 1) {
		avail, err := s.dayAvailability(ctx, providerID, day, loc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, DayAvailabilityEntry{
			Date:         day.Format("2006-01-02"),
			Availability: avail,
		})
	}

	return entries, nil
}

func (s *Service) dayAvailability(ctx context.Context, providerID uuid.UUID, day time.Time, loc *time.Location) (schedule.DayAvailability, error) {
	date := day.Format("2006-01-02")

	cached, err := s.cache.Get(ctx, providerID, date)
	if err == nil {
		metrics.AvailabilityCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}
	if !errors.Is(err, redisclient.ErrCacheMiss) {
		// Redis being down should not take the calendar with it.
		s.log.Warn("availability cache read failed", zap.Error(err))
	}
	metrics.AvailabilityCacheLookups.WithLabelValues("miss").Inc()

	appts, _, err := s.daySnapshot(ctx, providerID, day, loc)
	if err != nil {
		return schedule.DayAvailability{}, err
	}

	avail := schedule.SummarizeDay(appts)

	if err := s.cache.Set(ctx, providerID, date, avail); err != nil {
		s.log.Warn("availability cache write failed", zap.Error(err))
	}

	return avail, nil
}

// Reschedule moves a booked appointment to the chosen instant. The chosen
// day is re-classified from the current snapshot, the instant is resolved
// back to concrete open rows, and the swap is submitted under a per
// appointment lock.
func (s *Service) Reschedule(ctx context.Context, oldID int64, chosen time.Time, tz string, cancelReason string) (*RescheduleResult, error) {
	old, err := s.repo.GetAppointmentByID(ctx, oldID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if old.PatientID == nil || !old.Booked() {
		return nil, ErrNotReschedulable
	}

	// The chosen instant arrives in whatever offset the client serialized.
	// Re-express it in the effective timezone before any calendar-day
	// arithmetic, so equal instants behave identically.
	provider, err := s.repo.GetProviderByID(ctx, old.ProviderID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if tz == "" {
		tz = provider.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	chosen = chosen.In(loc)

	minDate, maxDate := s.selectionWindow(*old, loc)
	if !schedule.IsSelectableDate(chosen, minDate, maxDate) {
		return nil, fmt.Errorf("%w: %s not in [%s, %s]",
			ErrDateOutsideWindow,
			chosen.Format("2006-01-02"),
			minDate.Format("2006-01-02"),
			maxDate.Format("2006-01-02"),
		)
	}

	items, err := s.Calendar(ctx, old.ProviderID, chosen, tz, old.PatientID)
	if err != nil {
		return nil, err
	}

	newIDs, err := schedule.ResolveSelection(items, chosen)
	if err != nil {
		// Contract violation between offered slots and resolver; surface it.
		metrics.ReschedulesTotal.WithLabelValues("unresolvable").Inc()
		return nil, fmt.Errorf("resolve selection for appointment %d: %w", oldID, err)
	}

	err = s.locker.WithAppointmentLock(ctx, oldID, func(lockCtx context.Context) error {
		if err := s.repo.Reschedule(lockCtx, oldID, newIDs, *old.PatientID, cancelReason); err != nil {
			return err
		}

		s.logEvent(lockCtx, oldID, EventAppointmentRescheduled, map[string]any{
			"new_appointment_ids": newIDs,
			"patient_id":          *old.PatientID,
			"new_start":           chosen,
			"cancel_reason":       cancelReason,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			metrics.ReschedulesTotal.WithLabelValues("in_flight").Inc()
			return nil, ErrRescheduleInFlight
		}
		if errors.Is(err, ErrAppointmentTaken) {
			metrics.ReschedulesTotal.WithLabelValues("taken").Inc()
			return nil, err
		}
		metrics.ReschedulesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.ReschedulesTotal.WithLabelValues("ok").Inc()

	return &RescheduleResult{
		OldAppointmentID:  oldID,
		NewAppointmentIDs: newIDs,
		PatientID:         *old.PatientID,
		NewStartTime:      chosen,
	}, nil
}

// RefreshAvailability recomputes and caches the day buckets for every
// active provider over the configured horizon. Run periodically by the
// availability worker.
func (s *Service) RefreshAvailability(ctx context.Context) error {
	providers, err := s.repo.ListActiveProviders(ctx)
	if err != nil {
		return fmt.Errorf("list active providers: %w", err)
	}

	today := s.now()

	for _, p := range providers {
		loc, err := time.LoadLocation(p.Timezone)
		if err != nil {
			s.log.Warn("provider has invalid timezone, skipping",
				zap.String("provider_id", p.ID.String()),
				zap.String("timezone", p.Timezone),
			)
			continue
		}

		start := dateIn(today, loc)
		for i := 0; i < s.cfg.WorkerHorizonDays; i++ {
			day := start.AddDate(0, 0, i)

			appts, _, err := s.daySnapshot(ctx, p.ID, day, loc)
			if err != nil {
				return fmt.Errorf("snapshot provider %s day %s: %w", p.ID, day.Format("2006-01-02"), err)
			}

			avail := schedule.SummarizeDay(appts)
			if err := s.cache.Set(ctx, p.ID, day.Format("2006-01-02"), avail); err != nil {
				s.log.Warn("availability cache write failed", zap.Error(err))
			}
		}
	}

	return nil
}

// daySnapshot fetches the appointment and overbooking rows covering one
// calendar day in the given location.
func (s *Service) daySnapshot(ctx context.Context, providerID uuid.UUID, day time.Time, loc *time.Location) ([]schedule.Appointment, []schedule.OverbookingSlot, error) {
	year, month, date := day.Date()
	from := time.Date(year, month, date, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)

	appts, err := s.repo.ListDayAppointments(ctx, providerID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("list day appointments: %w", err)
	}

	overbooking, err := s.repo.ListOverbookingSlots(ctx, providerID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("list overbooking slots: %w", err)
	}

	return appts, overbooking, nil
}

// selectionWindow intersects the default no-past/90-day window with the
// pad around the appointment being moved. All bounds are expressed in loc
// so the day comparison against the chosen instant is offset-independent.
func (s *Service) selectionWindow(old Appointment, loc *time.Location) (time.Time, time.Time) {
	minDate, maxDate := schedule.DefaultSelectionWindow(s.now().In(loc))

	origin := old.StartTime.In(loc)
	if padMin := origin.AddDate(0, 0, -reschedulePadDays); padMin.After(minDate) {
		minDate = padMin
	}
	if padMax := origin.AddDate(0, 0, reschedulePadDays); padMax.Before(maxDate) {
		maxDate = padMax
	}

	return minDate, maxDate
}

func (s *Service) logEvent(ctx context.Context, appointmentID int64, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("marshal event payload failed", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error("insert event log failed",
			zap.String("event_type", eventType),
			zap.Int64("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
