package appointments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dezyclinic/clinic-assistant/internal/calendar"
	"github.com/dezyclinic/clinic-assistant/internal/clinic"
	"github.com/dezyclinic/clinic-assistant/internal/conversation"
	"github.com/dezyclinic/clinic-assistant/pkg/logging"
)

// AppointmentLength is the fixed visit duration. Bookings always end this
// long after they start.
const AppointmentLength = 30 * time.Minute

// calendarGateway is the calendar surface the orchestrator drives.
type calendarGateway interface {
	Create(ctx context.Context, req calendar.EventRequest) (string, error)
	Update(ctx context.Context, eventID string, req calendar.EventRequest) error
	Cancel(ctx context.Context, calendarID, eventID string) error
	Busy(ctx context.Context, calendarID string, from, to time.Time) ([]calendar.Interval, error)
}

// appointmentStore is the persistence surface the orchestrator drives.
type appointmentStore interface {
	Create(ctx context.Context, appt *Appointment) error
	SetStatusByEvent(ctx context.Context, eventID, status string) error
	Reschedule(ctx context.Context, eventID string, startsAt time.Time) error
}

// Orchestrator turns validated conversational intents into calendar writes
// and appointment rows. Every outcome is reported as a FunctionResult so the
// conversation layer can relay it back through the agent.
type Orchestrator struct {
	gateway  calendarGateway
	store    appointmentStore
	doctors  *clinic.Directory
	location *time.Location
	logger   *logging.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// OrchestratorOption adjusts orchestrator construction.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorClock replaces the wall clock, for tests.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator wires the intent handler. The location is the clinic's
// local timezone, used to anchor slot grids and human-readable times.
func NewOrchestrator(gateway calendarGateway, store appointmentStore, doctors *clinic.Directory, location *time.Location, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if gateway == nil {
		panic("appointments: gateway cannot be nil")
	}
	if store == nil {
		panic("appointments: store cannot be nil")
	}
	if doctors == nil {
		panic("appointments: doctor directory cannot be nil")
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		gateway:  gateway,
		store:    store,
		doctors:  doctors,
		location: location,
		logger:   logger,
		tracer:   otel.Tracer("clinic.internal.appointments"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle dispatches one intent. It never returns an error; failures are
// folded into the FunctionResult for the conversation to relay.
func (o *Orchestrator) Handle(ctx context.Context, intent *conversation.Intent) conversation.FunctionResult {
	if intent == nil || intent.Intent == "" {
		return failure("Invalid data or intent missing")
	}

	ctx, span := o.tracer.Start(ctx, "appointments.handle")
	defer span.End()

	var result conversation.FunctionResult
	switch intent.Intent {
	case conversation.IntentBook:
		result = o.book(ctx, intent)
	case conversation.IntentCancel:
		result = o.cancel(ctx, intent)
	case conversation.IntentReschedule:
		result = o.reschedule(ctx, intent)
	case conversation.IntentQuerySlots:
		result = o.querySlots(ctx, intent)
	default:
		result = failure("Invalid data or intent missing")
	}

	if !result.Success {
		o.logger.Warn("intent failed", "intent", intent.Intent, "error", result.Error)
	}
	return result
}

func (o *Orchestrator) book(ctx context.Context, intent *conversation.Intent) conversation.FunctionResult {
	doctor, calendarID, res := o.resolveDoctor(intent.DoctorID)
	if res != nil {
		return *res
	}

	start, err := parseDateTime(intent.DateTime, o.location)
	if err != nil {
		return failure(fmt.Sprintf("could not understand the appointment time %q", intent.DateTime))
	}
	end := start.Add(AppointmentLength)

	eventID, err := o.gateway.Create(ctx, calendar.EventRequest{
		Summary:     fmt.Sprintf("%s Appointment for %s", intent.Treatment, intent.Name),
		Description: fmt.Sprintf("Patient: %s (age %d), phone %s", intent.Name, intent.Age, intent.Phone),
		Start:       start,
		End:         end,
		CalendarID:  calendarID,
	})
	if err != nil {
		return failureFromCalendar(err)
	}

	appt := &Appointment{
		PatientName:  intent.Name,
		PatientAge:   intent.Age,
		PatientPhone: intent.Phone,
		DoctorID:     doctor.ID,
		Treatment:    intent.Treatment,
		StartsAt:     start,
		Status:       StatusScheduled,
		EventID:      eventID,
	}
	if err := o.store.Create(ctx, appt); err != nil {
		// The calendar write landed but the record did not. Roll the event
		// back so the two stores never disagree about what is booked.
		if cancelErr := o.gateway.Cancel(ctx, calendarID, eventID); cancelErr != nil {
			o.logger.Error("failed to roll back calendar event after store error",
				"event_id", eventID, "error", cancelErr)
		}
		return failure("could not save the appointment, please try again")
	}

	o.logger.Info("appointment booked",
		"doctor_id", doctor.ID, "event_id", eventID, "starts_at", start)

	return conversation.FunctionResult{
		Success: true,
		Message: fmt.Sprintf("Appointment booked with Dr. %s on %s, and the event ID is %s.",
			doctor.Name, start.In(o.location).Format("Monday, January 2, 2006 at 3:04 PM"), eventID),
		Data: map[string]any{"eventId": eventID},
	}
}

func (o *Orchestrator) cancel(ctx context.Context, intent *conversation.Intent) conversation.FunctionResult {
	_, calendarID, res := o.resolveDoctor(intent.DoctorID)
	if res != nil {
		return *res
	}

	if err := o.gateway.Cancel(ctx, calendarID, intent.EventID); err != nil {
		return failureFromCalendar(err)
	}
	if err := o.store.SetStatusByEvent(ctx, intent.EventID, StatusCancelled); err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return failure("could not update the appointment record, please try again")
	}

	o.logger.Info("appointment cancelled", "event_id", intent.EventID)

	return conversation.FunctionResult{
		Success: true,
		Message: fmt.Sprintf("Appointment %s cancelled successfully", intent.EventID),
	}
}

func (o *Orchestrator) reschedule(ctx context.Context, intent *conversation.Intent) conversation.FunctionResult {
	_, calendarID, res := o.resolveDoctor(intent.DoctorID)
	if res != nil {
		return *res
	}

	start, err := parseDateTime(intent.DateTime, o.location)
	if err != nil {
		return failure(fmt.Sprintf("could not understand the appointment time %q", intent.DateTime))
	}
	end := start.Add(AppointmentLength)

	summary := "Rescheduled Appointment"
	if intent.Name != "" {
		summary = fmt.Sprintf("Rescheduled Appointment for %s", intent.Name)
	}
	req := calendar.EventRequest{
		Summary:    summary,
		Start:      start,
		End:        end,
		CalendarID: calendarID,
	}
	if err := o.gateway.Update(ctx, intent.EventID, req); err != nil {
		return failureFromCalendar(err)
	}
	if err := o.store.Reschedule(ctx, intent.EventID, start); err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return failure("could not update the appointment record, please try again")
	}

	o.logger.Info("appointment rescheduled", "event_id", intent.EventID, "starts_at", start)

	return conversation.FunctionResult{
		Success: true,
		Message: fmt.Sprintf("Appointment %s rescheduled successfully to %s",
			intent.EventID, start.In(o.location).Format("Monday, January 2, 2006 at 3:04 PM")),
	}
}

func (o *Orchestrator) querySlots(ctx context.Context, intent *conversation.Intent) conversation.FunctionResult {
	doctor, calendarID, res := o.resolveDoctor(intent.DoctorID)
	if res != nil {
		return *res
	}

	day, err := parseDate(intent.PreferredDate, o.location)
	if err != nil {
		return failure(fmt.Sprintf("could not understand the preferred date %q", intent.PreferredDate))
	}
	preferredHour := parsePreferredHour(intent.PreferredTime)

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, o.location)
	busy, err := o.gateway.Busy(ctx, calendarID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return failureFromCalendar(err)
	}

	slots := calendar.AvailableSlots(day, busy, preferredHour, o.location)
	if len(slots) == 0 {
		return failure(fmt.Sprintf("no available slots for Dr. %s on %s", doctor.Name, day.Format("January 2, 2006")))
	}

	formatted := make([]string, len(slots))
	for i, slot := range slots {
		formatted[i] = slot.In(o.location).Format("3:04 PM")
	}

	return conversation.FunctionResult{
		Success: true,
		Message: fmt.Sprintf("Available slots for Dr. %s on %s are %s.",
			doctor.Name, day.Format("Monday, January 2, 2006"), strings.Join(formatted, ", ")),
		Data: map[string]any{"slots": formatted},
	}
}

// resolveDoctor maps a doctor id (defaulting to jason, as the front desk
// does) to its directory entry and calendar. A nil third return means the
// lookup succeeded.
func (o *Orchestrator) resolveDoctor(doctorID string) (*clinic.Doctor, string, *conversation.FunctionResult) {
	if doctorID == "" {
		doctorID = "jason"
	}
	doctor := o.doctors.Lookup(doctorID)
	if doctor == nil {
		res := failure(fmt.Sprintf("unknown doctor %q", doctorID))
		return nil, "", &res
	}
	calendarID, ok := o.doctors.CalendarID(doctor.ID)
	if !ok {
		res := failure(fmt.Sprintf("no calendar configured for Dr. %s", doctor.Name))
		return nil, "", &res
	}
	return doctor, calendarID, nil
}

func failure(msg string) conversation.FunctionResult {
	return conversation.FunctionResult{Success: false, Error: msg}
}

// failureFromCalendar translates the calendar error taxonomy into the
// user-facing vocabulary the agent relays.
func failureFromCalendar(err error) conversation.FunctionResult {
	var verr *calendar.ValidationError
	switch {
	case errors.As(err, &verr):
		return failure(strings.Join(verr.Problems, "; "))
	case errors.Is(err, calendar.ErrSlotConflict):
		return failure("that time slot is already booked, please pick another time")
	case errors.Is(err, calendar.ErrNotFound):
		return failure("appointment not found, please check the event ID")
	case errors.Is(err, calendar.ErrAuth):
		return failure("the calendar service rejected our credentials")
	default:
		return failure("the calendar service is unavailable, please try again")
	}
}

// parseDateTime accepts the timestamp shapes the agent produces. RFC 3339 is
// the instructed format; a bare local datetime is tolerated.
func parseDateTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty datetime")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", value)
}

// parseDate accepts a calendar day, with or without a time component.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	if t, err := parseDateTime(value, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// parsePreferredHour extracts the hour from loose time phrases such as
// "10:30 AM", "3pm", or "15:00". It returns -1 when no hour can be read,
// which disables preferred-hour filtering.
func parsePreferredHour(value string) int {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return -1
	}

	pm := strings.Contains(v, "pm")
	am := strings.Contains(v, "am")
	v = strings.NewReplacer("am", "", "pm", "", ".", "", " ", "").Replace(v)

	if idx := strings.IndexByte(v, ':'); idx >= 0 {
		v = v[:idx]
	}

	hour, err := strconv.Atoi(v)
	if err != nil || hour < 0 || hour > 23 {
		return -1
	}
	if pm && hour < 12 {
		hour += 12
	}
	if am && hour == 12 {
		hour = 0
	}
	return hour
}
