package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dezyclinic/clinic-assistant/pkg/logging"
)

const (
	// conflictPad widens the conflict scan window on both sides of the
	// requested interval.
	conflictPad = time.Minute
	// pastGrace allows bookings that start slightly in the past, so a slot
	// negotiated over a few conversation turns does not expire mid-turn.
	pastGrace = 5 * time.Minute

	minEventDuration = 15 * time.Minute
	maxEventDuration = 24 * time.Hour

	conflictScanLimit = 100
)

// Event is the gateway's view of a calendar event.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Cancelled   bool
}

// EventProvider is the raw calendar backend the gateway drives. Provider
// implementations map their own error codes onto the package's taxonomy.
type EventProvider interface {
	Insert(ctx context.Context, calendarID string, ev Event) (string, error)
	Update(ctx context.Context, calendarID, eventID string, ev Event) error
	Delete(ctx context.Context, calendarID, eventID string) error
	Get(ctx context.Context, calendarID, eventID string) (*Event, error)
	List(ctx context.Context, calendarID string, from, to time.Time, max int64) ([]Event, error)
}

// EventRequest carries the parameters for creating or updating an event.
type EventRequest struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	CalendarID  string
}

// Gateway enforces validation and conflict detection in front of an
// EventProvider.
//
// Conflict prevention is check-then-insert: the gateway lists active events
// in a padded window and rejects overlaps before writing. The provider has
// no cross-call locking, so two writers racing through the check can still
// both land; the guarantee is best-effort, not linearizable.
type Gateway struct {
	provider EventProvider
	logger   *logging.Logger
	now      func() time.Time
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithClock overrides the gateway's time source.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway creates a gateway over the given provider.
func NewGateway(provider EventProvider, logger *logging.Logger, opts ...GatewayOption) *Gateway {
	if provider == nil {
		panic("calendar: provider cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Gateway{
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Create validates the request, scans for conflicts, and inserts the event.
// Returns the provider's event identifier.
func (g *Gateway) Create(ctx context.Context, req EventRequest) (string, error) {
	if err := g.validate(req); err != nil {
		return "", err
	}
	if err := g.checkConflicts(ctx, req, ""); err != nil {
		return "", err
	}

	id, err := g.provider.Insert(ctx, req.CalendarID, Event{
		Summary:     strings.TrimSpace(req.Summary),
		Description: strings.TrimSpace(req.Description),
		Start:       req.Start,
		End:         req.End,
	})
	if err != nil {
		return "", err
	}

	g.logger.Info("calendar event created", "calendar_id", req.CalendarID, "event_id", id, "start", req.Start)
	return id, nil
}

// Update validates and conflict-checks the new window, excluding the event's
// own prior slot from the scan, then updates it in place. Returns ErrNotFound
// if the event no longer exists.
func (g *Gateway) Update(ctx context.Context, eventID string, req EventRequest) error {
	if strings.TrimSpace(eventID) == "" {
		return &ValidationError{Problems: []string{"event id is required for update"}}
	}
	if err := g.validate(req); err != nil {
		return err
	}

	if _, err := g.provider.Get(ctx, req.CalendarID, eventID); err != nil {
		return err
	}
	if err := g.checkConflicts(ctx, req, eventID); err != nil {
		return err
	}

	err := g.provider.Update(ctx, req.CalendarID, eventID, Event{
		Summary:     strings.TrimSpace(req.Summary),
		Description: strings.TrimSpace(req.Description),
		Start:       req.Start,
		End:         req.End,
	})
	if err != nil {
		return err
	}

	g.logger.Info("calendar event updated", "calendar_id", req.CalendarID, "event_id", eventID, "start", req.Start)
	return nil
}

// Cancel deletes the event. Cancelling an absent or already-cancelled event
// surfaces ErrNotFound rather than succeeding silently.
func (g *Gateway) Cancel(ctx context.Context, calendarID, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return &ValidationError{Problems: []string{"event id is required for cancellation"}}
	}

	ev, err := g.provider.Get(ctx, calendarID, eventID)
	if err != nil {
		return err
	}
	if ev == nil || ev.Cancelled {
		return fmt.Errorf("calendar: cancel %s: %w", eventID, ErrNotFound)
	}

	if err := g.provider.Delete(ctx, calendarID, eventID); err != nil {
		return err
	}

	g.logger.Info("calendar event cancelled", "calendar_id", calendarID, "event_id", eventID)
	return nil
}

// List returns upcoming non-cancelled events ordered by start time ascending,
// capped at limit.
func (g *Gateway) List(ctx context.Context, calendarID string, from time.Time, limit int64) ([]Event, error) {
	if limit <= 0 {
		limit = 10
	}
	events, err := g.provider.List(ctx, calendarID, from, time.Time{}, limit)
	if err != nil {
		return nil, err
	}

	out := events[:0]
	for _, ev := range events {
		if ev.Cancelled {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Busy returns the occupied intervals between from and to, cancelled events
// excluded. Slot suggestion is built on this view.
func (g *Gateway) Busy(ctx context.Context, calendarID string, from, to time.Time) ([]Interval, error) {
	events, err := g.provider.List(ctx, calendarID, from, to, conflictScanLimit)
	if err != nil {
		return nil, err
	}

	busy := make([]Interval, 0, len(events))
	for _, ev := range events {
		if ev.Cancelled {
			continue
		}
		busy = append(busy, Interval{Start: ev.Start, End: ev.End})
	}
	return busy, nil
}

func (g *Gateway) validate(req EventRequest) error {
	var problems []string

	if strings.TrimSpace(req.Summary) == "" {
		problems = append(problems, "summary is required")
	}
	if strings.TrimSpace(req.CalendarID) == "" {
		problems = append(problems, "calendar id is required")
	}
	if req.Start.IsZero() {
		problems = append(problems, "start time is required")
	}
	if req.End.IsZero() {
		problems = append(problems, "end time is required")
	}

	if !req.Start.IsZero() && !req.End.IsZero() {
		if !req.Start.Before(req.End) {
			problems = append(problems, "end time must be after start time")
		} else {
			duration := req.End.Sub(req.Start)
			if duration < minEventDuration {
				problems = append(problems, "event duration must be at least 15 minutes")
			}
			if duration > maxEventDuration {
				problems = append(problems, "event duration cannot exceed 24 hours")
			}
		}
	}

	if !req.Start.IsZero() && req.Start.Before(g.now().Add(-pastGrace)) {
		problems = append(problems, "cannot create events in the past")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// checkConflicts lists active events in the padded window and rejects any
// overlap with [start, end). excludeID skips the event being updated.
func (g *Gateway) checkConflicts(ctx context.Context, req EventRequest, excludeID string) error {
	from := req.Start.Add(-conflictPad)
	to := req.End.Add(conflictPad)

	events, err := g.provider.List(ctx, req.CalendarID, from, to, conflictScanLimit)
	if err != nil {
		return err
	}

	for _, ev := range events {
		if ev.Cancelled || ev.ID == excludeID {
			continue
		}
		if ev.Start.IsZero() || ev.End.IsZero() {
			continue
		}
		// Two events overlap when existingStart < newEnd && newStart < existingEnd.
		if ev.Start.Before(req.End) && req.Start.Before(ev.End) {
			g.logger.Debug("slot conflict detected",
				"calendar_id", req.CalendarID,
				"conflicting_event", ev.ID,
				"requested_start", req.Start,
			)
			return fmt.Errorf("calendar: %w", ErrSlotConflict)
		}
	}
	return nil
}
