package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleProvider implements EventProvider against the Google Calendar API.
type GoogleProvider struct {
	svc      *gcal.Service
	timezone string
}

// NewGoogleProvider creates a provider authenticated from a service-account
// credentials file. timezone names the clinic's IANA zone for event bodies.
func NewGoogleProvider(ctx context.Context, credentialsFile, timezone string) (*GoogleProvider, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to create google calendar service: %w", err)
	}
	if timezone == "" {
		timezone = "America/New_York"
	}
	return &GoogleProvider{svc: svc, timezone: timezone}, nil
}

func (p *GoogleProvider) Insert(ctx context.Context, calendarID string, ev Event) (string, error) {
	created, err := p.svc.Events.Insert(calendarID, p.toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return "", mapGoogleError("insert", err)
	}
	return created.Id, nil
}

func (p *GoogleProvider) Update(ctx context.Context, calendarID, eventID string, ev Event) error {
	if _, err := p.svc.Events.Update(calendarID, eventID, p.toGoogle(ev)).Context(ctx).Do(); err != nil {
		return mapGoogleError("update", err)
	}
	return nil
}

func (p *GoogleProvider) Delete(ctx context.Context, calendarID, eventID string) error {
	if err := p.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return mapGoogleError("delete", err)
	}
	return nil
}

func (p *GoogleProvider) Get(ctx context.Context, calendarID, eventID string) (*Event, error) {
	got, err := p.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError("get", err)
	}
	ev := p.fromGoogle(got)
	return &ev, nil
}

func (p *GoogleProvider) List(ctx context.Context, calendarID string, from, to time.Time, max int64) ([]Event, error) {
	call := p.svc.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(max).
		Context(ctx)
	if !from.IsZero() {
		call = call.TimeMin(from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		call = call.TimeMax(to.Format(time.RFC3339))
	}

	res, err := call.Do()
	if err != nil {
		return nil, mapGoogleError("list", err)
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		events = append(events, p.fromGoogle(item))
	}
	return events, nil
}

func (p *GoogleProvider) toGoogle(ev Event) *gcal.Event {
	return &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: p.timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: p.timezone,
		},
		Status:       "confirmed",
		Transparency: "opaque",
	}
}

func (p *GoogleProvider) fromGoogle(item *gcal.Event) Event {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Cancelled:   item.Status == "cancelled",
	}
	if item.Start != nil {
		ev.Start = parseEventTime(item.Start)
	}
	if item.End != nil {
		ev.End = parseEventTime(item.End)
	}
	return ev
}

// parseEventTime handles both timed events (DateTime) and all-day events (Date).
func parseEventTime(edt *gcal.EventDateTime) time.Time {
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
	}
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

func mapGoogleError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("calendar: %s: %w", op, ErrAuth)
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("calendar: %s: %w", op, ErrNotFound)
		case http.StatusConflict:
			return fmt.Errorf("calendar: %s: %w", op, ErrSlotConflict)
		}
	}
	return fmt.Errorf("calendar: %s: %w: %v", op, ErrProvider, err)
}
