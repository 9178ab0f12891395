package calendar

import "time"

// Clinic working hours and the appointment grid.
const (
	ClinicOpenHour  = 9
	ClinicCloseHour = 18
	SlotDuration    = 30 * time.Minute
)

// maxSuggestedSlots caps how many candidate slots are offered to a patient.
const maxSuggestedSlots = 3

// Interval is a half-open busy window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// DaySlots generates every candidate slot start between clinic open and close
// on the given day, in clinic-local time, stepping by SlotDuration.
func DaySlots(day time.Time, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.Local
	}
	day = day.In(loc)

	start := time.Date(day.Year(), day.Month(), day.Day(), ClinicOpenHour, 0, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), ClinicCloseHour, 0, 0, 0, loc)

	var slots []time.Time
	for cur := start; cur.Before(end); cur = cur.Add(SlotDuration) {
		slots = append(slots, cur)
	}
	return slots
}

// AvailableSlots returns up to three open slots for the day, in chronological
// order. A slot is taken when its instant coincides with a busy interval's
// start. preferredHour, when >= 0, keeps only slots within one hour of it.
// This is a pure function of its inputs.
func AvailableSlots(day time.Time, busy []Interval, preferredHour int, loc *time.Location) []time.Time {
	var out []time.Time
	for _, slot := range DaySlots(day, loc) {
		if slotTaken(slot, busy) {
			continue
		}
		if preferredHour >= 0 {
			diff := slot.Hour() - preferredHour
			if diff < -1 || diff > 1 {
				continue
			}
		}
		out = append(out, slot)
		if len(out) == maxSuggestedSlots {
			break
		}
	}
	return out
}

func slotTaken(slot time.Time, busy []Interval) bool {
	for _, iv := range busy {
		if slot.Equal(iv.Start) {
			return true
		}
	}
	return false
}
