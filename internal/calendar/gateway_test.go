package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/dezyclinic/clinic-assistant/pkg/logging"
)

// fakeProvider keeps events in memory and behaves like a well-behaved
// calendar backend.
type fakeProvider struct {
	events map[string]Event
	nextID int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: make(map[string]Event)}
}

func (f *fakeProvider) Insert(_ context.Context, _ string, ev Event) (string, error) {
	f.nextID++
	id := fmt.Sprintf("evt-%d", f.nextID)
	ev.ID = id
	f.events[id] = ev
	return id, nil
}

func (f *fakeProvider) Update(_ context.Context, _ string, eventID string, ev Event) error {
	if _, ok := f.events[eventID]; !ok {
		return fmt.Errorf("calendar: update: %w", ErrNotFound)
	}
	ev.ID = eventID
	f.events[eventID] = ev
	return nil
}

func (f *fakeProvider) Delete(_ context.Context, _ string, eventID string) error {
	if _, ok := f.events[eventID]; !ok {
		return fmt.Errorf("calendar: delete: %w", ErrNotFound)
	}
	delete(f.events, eventID)
	return nil
}

func (f *fakeProvider) Get(_ context.Context, _ string, eventID string) (*Event, error) {
	ev, ok := f.events[eventID]
	if !ok {
		return nil, fmt.Errorf("calendar: get: %w", ErrNotFound)
	}
	return &ev, nil
}

func (f *fakeProvider) List(_ context.Context, _ string, from, to time.Time, max int64) ([]Event, error) {
	var out []Event
	for _, ev := range f.events {
		if !from.IsZero() && ev.End.Before(from) {
			continue
		}
		if !to.IsZero() && ev.Start.After(to) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if int64(len(out)) > max {
		out = out[:max]
	}
	return out, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testGateway(t *testing.T) (*Gateway, *fakeProvider, time.Time) {
	t.Helper()
	now := time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC)
	provider := newFakeProvider()
	gw := NewGateway(provider, logging.Default(), WithClock(fixedClock(now)))
	return gw, provider, now
}

func request(start, end time.Time) EventRequest {
	return EventRequest{
		Summary:    "Facelift Appointment for John Doe",
		Start:      start,
		End:        end,
		CalendarID: "cal-jason",
	}
}

func TestCreateDetectsOverlap(t *testing.T) {
	gw, _, now := testGateway(t)
	ctx := context.Background()

	aStart := now.Add(2 * time.Hour)
	if _, err := gw.Create(ctx, request(aStart, aStart.Add(30*time.Minute))); err != nil {
		t.Fatalf("create A: %v", err)
	}

	// B = [10:15, 10:45) overlaps A = [10:00, 10:30).
	bStart := aStart.Add(15 * time.Minute)
	_, err := gw.Create(ctx, request(bStart, bStart.Add(30*time.Minute)))
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("create B error = %v, want ErrSlotConflict", err)
	}
}

func TestCreateAllowsBackToBack(t *testing.T) {
	gw, _, now := testGateway(t)
	ctx := context.Background()

	aStart := now.Add(2 * time.Hour)
	if _, err := gw.Create(ctx, request(aStart, aStart.Add(30*time.Minute))); err != nil {
		t.Fatalf("create A: %v", err)
	}

	bStart := aStart.Add(30 * time.Minute)
	if _, err := gw.Create(ctx, request(bStart, bStart.Add(30*time.Minute))); err != nil {
		t.Fatalf("create back-to-back B: %v", err)
	}
}

func TestCreateValidationBoundaries(t *testing.T) {
	now := time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC)
	base := now.Add(2 * time.Hour)

	tests := []struct {
		name    string
		req     EventRequest
		wantErr bool
	}{
		{"end equals start", request(base, base), true},
		{"end before start", request(base, base.Add(-time.Hour)), true},
		{"exactly 15 minutes", request(base, base.Add(15*time.Minute)), false},
		{"14 minutes", request(base, base.Add(14*time.Minute)), true},
		{"exactly 24 hours", request(base, base.Add(24*time.Hour)), false},
		{"24 hours 1 minute", request(base, base.Add(24*time.Hour+time.Minute)), true},
		{"4 minutes in the past", request(now.Add(-4*time.Minute), now.Add(26*time.Minute)), false},
		{"6 minutes in the past", request(now.Add(-6*time.Minute), now.Add(24*time.Minute)), true},
		{"empty summary", EventRequest{Start: base, End: base.Add(time.Hour), CalendarID: "cal"}, true},
		{"empty calendar id", EventRequest{Summary: "x", Start: base, End: base.Add(time.Hour)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A fresh gateway per case keeps the accepted boundary
			// events from conflict-failing each other.
			gw := NewGateway(newFakeProvider(), logging.Default(), WithClock(fixedClock(now)))
			_, err := gw.Create(context.Background(), tt.req)
			if tt.wantErr {
				if !IsValidation(err) {
					t.Errorf("error = %v, want ValidationError", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestUpdateExcludesOwnSlotFromConflictScan(t *testing.T) {
	gw, _, now := testGateway(t)
	ctx := context.Background()

	start := now.Add(2 * time.Hour)
	id, err := gw.Create(ctx, request(start, start.Add(30*time.Minute)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Shifting the event by 15 minutes overlaps its own prior slot only.
	newStart := start.Add(15 * time.Minute)
	if err := gw.Update(ctx, id, request(newStart, newStart.Add(30*time.Minute))); err != nil {
		t.Fatalf("update within own slot: %v", err)
	}
}

func TestUpdateMissingEvent(t *testing.T) {
	gw, _, now := testGateway(t)

	start := now.Add(2 * time.Hour)
	err := gw.Update(context.Background(), "missing", request(start, start.Add(30*time.Minute)))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCancel(t *testing.T) {
	gw, _, now := testGateway(t)
	ctx := context.Background()

	start := now.Add(2 * time.Hour)
	id, err := gw.Create(ctx, request(start, start.Add(30*time.Minute)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := gw.Cancel(ctx, "cal-jason", id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// A second cancel must surface ErrNotFound, not succeed silently.
	if err := gw.Cancel(ctx, "cal-jason", id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("repeat cancel error = %v, want ErrNotFound", err)
	}
}

func TestCancelRequiresEventID(t *testing.T) {
	gw, _, _ := testGateway(t)
	if err := gw.Cancel(context.Background(), "cal-jason", " "); !IsValidation(err) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestListSkipsCancelledAndOrders(t *testing.T) {
	gw, provider, now := testGateway(t)
	ctx := context.Background()

	later := now.Add(4 * time.Hour)
	earlier := now.Add(2 * time.Hour)
	if _, err := gw.Create(ctx, request(later, later.Add(30*time.Minute))); err != nil {
		t.Fatalf("create later: %v", err)
	}
	firstID, err := gw.Create(ctx, request(earlier, earlier.Add(30*time.Minute)))
	if err != nil {
		t.Fatalf("create earlier: %v", err)
	}

	cancelled := provider.events[firstID]
	cancelled.Cancelled = true
	provider.events[firstID] = cancelled

	events, err := gw.List(ctx, "cal-jason", now, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if !events[0].Start.Equal(later) {
		t.Errorf("events[0].Start = %v, want %v", events[0].Start, later)
	}
}
