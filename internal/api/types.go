package api

import (
	"time"

	"github.com/televita-health/scheduling/internal/schedule"
)

type SlotResponse struct {
	Time     int64     `json:"time"`
	DateTime time.Time `json:"date_time"`
	Display  string    `json:"display"`
}

type AppointmentResponse struct {
	ID        int64     `json:"id"`
	PatientID *int64    `json:"patient_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	Duration  int       `json:"duration"`
	Status    string    `json:"status"`
	Bookable  *bool     `json:"bookable,omitempty"`
}

type AppointmentIDsResponse struct {
	Primary   int64 `json:"primary"`
	Secondary int64 `json:"secondary"`
}

// CalendarItemResponse is the wire form of a calendar item. Kind selects
// which of the optional payload fields are present.
type CalendarItemResponse struct {
	Kind   string       `json:"kind"`
	Top    SlotResponse `json:"top_of_hour"`
	Middle SlotResponse `json:"middle_of_hour"`

	// 60-minute-available
	AppointmentIDs *AppointmentIDsResponse `json:"appointment_ids,omitempty"`

	// 60-minute-appointment
	Appointment *AppointmentResponse `json:"appointment,omitempty"`
	SamePatient bool                 `json:"same_patient,omitempty"`

	// 30-minute-slots
	TopAppointment    *AppointmentResponse `json:"top_appointment,omitempty"`
	MiddleAppointment *AppointmentResponse `json:"middle_appointment,omitempty"`
	TopSamePatient    bool                 `json:"top_same_patient,omitempty"`
	MiddleSamePatient bool                 `json:"middle_same_patient,omitempty"`

	// has-conflicting
	Appointments []AppointmentResponse `json:"appointments,omitempty"`
}

type CalendarResponse struct {
	ProviderID string                 `json:"provider_id"`
	Date       string                 `json:"date"`
	Timezone   string                 `json:"timezone"`
	Items      []CalendarItemResponse `json:"items"`
}

type DayAvailabilityResponse struct {
	Date          string `json:"date"`
	Level         string `json:"level"`
	OpenMinutes   int    `json:"open_minutes"`
	BookedMinutes int    `json:"booked_minutes"`
}

type AvailabilityRangeResponse struct {
	ProviderID string                    `json:"provider_id"`
	Timezone   string                    `json:"timezone"`
	Days       []DayAvailabilityResponse `json:"days"`
}

type RescheduleRequest struct {
	NewStart     string `json:"new_start" validate:"required"`
	Timezone     string `json:"timezone" validate:"omitempty,min=1"`
	CancelReason string `json:"cancel_reason" validate:"required,max=500"`
}

type RescheduleResponse struct {
	OldAppointmentID  int64     `json:"old_appointment_id"`
	NewAppointmentIDs []int64   `json:"new_appointment_ids"`
	PatientID         int64     `json:"patient_id"`
	NewStartTime      time.Time `json:"new_start_time"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlotResponse(s schedule.TimeSlot) SlotResponse {
	return SlotResponse{
		Time:     s.Time,
		DateTime: s.DateTime,
		Display:  s.Display,
	}
}

func toAppointmentResponse(a schedule.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		StartTime: a.StartTime,
		Duration:  a.Duration,
		Status:    string(a.Status),
		Bookable:  a.Bookable,
	}
}

func toAppointmentResponsePtr(a *schedule.Appointment) *AppointmentResponse {
	if a == nil {
		return nil
	}
	resp := toAppointmentResponse(*a)
	return &resp
}

func toCalendarItemResponse(item schedule.CalendarItem) CalendarItemResponse {
	pair := item.Pair()
	resp := CalendarItemResponse{
		Kind:   string(item.Kind()),
		Top:    toSlotResponse(pair.Top),
		Middle: toSlotResponse(pair.Middle),
	}

	switch v := item.(type) {
	case schedule.SixtyAvailable:
		resp.AppointmentIDs = &AppointmentIDsResponse{Primary: v.Primary, Secondary: v.Secondary}
	case schedule.SixtyBooked:
		appt := toAppointmentResponse(v.Appointment)
		resp.Appointment = &appt
		resp.SamePatient = v.SamePatient
	case schedule.ThirtySlots:
		resp.TopAppointment = toAppointmentResponsePtr(v.TopAppointment)
		resp.MiddleAppointment = toAppointmentResponsePtr(v.MiddleAppointment)
		resp.TopSamePatient = v.TopSamePatient
		resp.MiddleSamePatient = v.MiddleSamePatient
	case schedule.Conflicting:
		resp.Appointments = make([]AppointmentResponse, 0, len(v.Appointments))
		for _, a := range v.Appointments {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(a))
		}
	}

	return resp
}
