package schedule

// AvailabilityLevel is the coarse day bucket used for calendar navigation.
type AvailabilityLevel string

const (
	AvailabilityNone   AvailabilityLevel = "no-availability"
	AvailabilityLow    AvailabilityLevel = "low-availability"
	AvailabilityMedium AvailabilityLevel = "medium-availability"
	AvailabilityHigh   AvailabilityLevel = "high-availability"
)

// DayAvailability summarizes one day's appointment snapshot. BookedMinutes
// is carried for supplementary display only; the bucket depends solely on
// open minutes.
type DayAvailability struct {
	Level         AvailabilityLevel
	OpenMinutes   int
	BookedMinutes int
}

// SummarizeDay reduces a day's appointments to a single availability
// bucket. Order of the input is irrelevant.
func SummarizeDay(appointments []Appointment) DayAvailability {
	var open, booked int
	for _, a := range appointments {
		switch {
		case a.Status == StatusOpen:
			open += a.Duration
		case a.Booked():
			booked += a.Duration
		}
	}

	return DayAvailability{
		Level:         bucket(open),
		OpenMinutes:   open,
		BookedMinutes: booked,
	}
}

func bucket(openMinutes int) AvailabilityLevel {
	switch {
	case openMinutes == 0:
		return AvailabilityNone
	case openMinutes <= 60:
		return AvailabilityLow
	case openMinutes <= 120:
		return AvailabilityMedium
	default:
		return AvailabilityHigh
	}
}
