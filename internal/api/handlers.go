package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/televita-health/scheduling/internal/appointment"
	redisclient "github.com/televita-health/scheduling/internal/redis"
	"github.com/televita-health/scheduling/internal/schedule"
)

// SchedulingService is what the handlers need from the appointment service.
type SchedulingService interface {
	Calendar(ctx context.Context, providerID uuid.UUID, day time.Time, tz string, forPatient *int64) ([]schedule.CalendarItem, error)
	AvailabilityRange(ctx context.Context, providerID uuid.UUID, from, to time.Time, tz string) ([]appointment.DayAvailabilityEntry, error)
	Reschedule(ctx context.Context, oldID int64, chosen time.Time, tz string, cancelReason string) (*appointment.RescheduleResult, error)
}

const maxAvailabilityRangeDays = 120

func getCalendarHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		dateStr := r.URL.Query().Get("date")
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		tz := r.URL.Query().Get("tz")

		var forPatient *int64
		if raw := r.URL.Query().Get("patient_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be an integer")
				return
			}
			forPatient = &id
		}

		items, err := svc.Calendar(r.Context(), providerID, day, tz, forPatient)
		if err != nil {
			handleCalendarError(w, err)
			return
		}

		resp := CalendarResponse{
			ProviderID: providerID.String(),
			Date:       dateStr,
			Timezone:   tz,
			Items:      make([]CalendarItemResponse, 0, len(items)),
		}
		for _, item := range items {
			resp.Items = append(resp.Items, toCalendarItemResponse(item))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getAvailabilityHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
			return
		}

		from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
			return
		}
		to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
			return
		}
		if to.Before(from) {
			writeError(w, http.StatusBadRequest, "invalid_range", "to must not be before from")
			return
		}
		if to.Sub(from) > maxAvailabilityRangeDays*24*time.Hour {
			writeError(w, http.StatusBadRequest, "range_too_wide", "availability range is limited to 120 days")
			return
		}

		tz := r.URL.Query().Get("tz")
		if tz == "" {
			tz = "UTC"
		}

		entries, err := svc.AvailabilityRange(r.Context(), providerID, from, to, tz)
		if err != nil {
			handleCalendarError(w, err)
			return
		}

		resp := AvailabilityRangeResponse{
			ProviderID: providerID.String(),
			Timezone:   tz,
			Days:       make([]DayAvailabilityResponse, 0, len(entries)),
		}
		for _, e := range entries {
			resp.Days = append(resp.Days, DayAvailabilityResponse{
				Date:          e.Date,
				Level:         string(e.Availability.Level),
				OpenMinutes:   e.Availability.OpenMinutes,
				BookedMinutes: e.Availability.BookedMinutes,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func rescheduleHandler(svc SchedulingService, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oldID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be an integer")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		chosen, err := time.Parse(time.RFC3339, req.NewStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_new_start", "new_start must be an RFC 3339 instant")
			return
		}

		result, err := svc.Reschedule(r.Context(), oldID, chosen, req.Timezone, req.CancelReason)
		if err != nil {
			handleRescheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, RescheduleResponse{
			OldAppointmentID:  result.OldAppointmentID,
			NewAppointmentIDs: result.NewAppointmentIDs,
			PatientID:         result.PatientID,
			NewStartTime:      result.NewStartTime,
		})
	}
}

func handleCalendarError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidTimezone):
		writeError(w, http.StatusBadRequest, "invalid_timezone", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleRescheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidTimezone):
		writeError(w, http.StatusBadRequest, "invalid_timezone", err.Error())
	case errors.Is(err, appointment.ErrNotReschedulable):
		writeError(w, http.StatusConflict, "not_reschedulable", err.Error())
	case errors.Is(err, appointment.ErrDateOutsideWindow):
		writeError(w, http.StatusUnprocessableEntity, "date_outside_window", err.Error())
	case errors.Is(err, appointment.ErrAppointmentTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, appointment.ErrRescheduleInFlight),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "reschedule_in_flight", "appointment is already being rescheduled, please retry shortly")
	case errors.Is(err, schedule.ErrNoMatchingSlot):
		// Offered slots and resolver disagree: a bug, not user error.
		writeError(w, http.StatusInternalServerError, "unresolvable_selection", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Details: details,
	})
}
