package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezyclinic/clinic-assistant/internal/agent"
	"github.com/dezyclinic/clinic-assistant/internal/calendar"
	"github.com/dezyclinic/clinic-assistant/internal/calllog"
	"github.com/dezyclinic/clinic-assistant/internal/clinic"
	"github.com/dezyclinic/clinic-assistant/internal/conversation"
)

// replayAgent returns canned replies in order, then repeats the last one.
type replayAgent struct {
	replies []string
	calls   int
}

func (a *replayAgent) Reply(_ context.Context, _ []agent.Message) (string, error) {
	i := a.calls
	if i >= len(a.replies) {
		i = len(a.replies) - 1
	}
	a.calls++
	return a.replies[i], nil
}

func newIntegrationEngine(t *testing.T, ag agent.Agent, gw *stubGateway, store *memStore) (*conversation.Engine, *conversation.SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sessions := conversation.NewSessionStore(client)
	doctors := clinic.NewDirectory(clinic.DefaultDoctors(), map[string]string{
		"jason":     "cal-jason",
		"elizabeth": "cal-elizabeth",
	})
	orch := NewOrchestrator(gw, store, doctors, time.UTC, nil)
	prompt := conversation.SystemPrompt(doctors.All())
	engine := conversation.NewEngine(sessions, ag, orch, calllog.Noop{}, nil, prompt, nil)
	return engine, sessions
}

const bookingJSON = "```json\n" +
	`{"intent": "book", "treatment": "Facelift", "dateTime": "2026-09-02T15:00:00Z", "name": "John Doe", "age": 30, "phone": "1234567890", "doctorId": "jason"}` +
	"\n```"

func TestBookingConversationEndToEnd(t *testing.T) {
	ag := &replayAgent{replies: []string{
		"Of course! What treatment would you like, and when?",
		"Could I have your name, age, and phone number?",
		bookingJSON,
	}}
	gw := &stubGateway{createID: "ev-e2e"}
	store := newMemStore()
	engine, sessions := newIntegrationEngine(t, ag, gw, store)

	ctx := context.Background()
	turns := []string{
		"I want to book a Facelift with jason tomorrow at 3pm",
		"John Doe, 30, 1234567890",
		"yes, confirm it",
	}
	var last *conversation.Response
	for _, msg := range turns {
		var err error
		last, err = engine.ProcessMessage(ctx, conversation.MessageRequest{SessionID: "e2e", Message: msg})
		require.NoError(t, err)
	}

	require.NotNil(t, last.Success)
	assert.True(t, *last.Success)
	assert.Contains(t, last.Reply, "ev-e2e")

	// Exactly one appointment, Scheduled.
	require.Len(t, store.appts, 1)
	appt := store.appts["ev-e2e"]
	require.NotNil(t, appt)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, "John Doe", appt.PatientName)

	// Success resets the pending function result.
	session, err := sessions.Load(ctx, "e2e")
	require.NoError(t, err)
	assert.Nil(t, session.LastFunctionResult)
}

func TestBookingCorrectionFlow(t *testing.T) {
	ag := &replayAgent{replies: []string{bookingJSON, bookingJSON}}
	gw := &stubGateway{createErr: calendar.ErrSlotConflict}
	store := newMemStore()
	engine, sessions := newIntegrationEngine(t, ag, gw, store)

	ctx := context.Background()
	resp, err := engine.ProcessMessage(ctx, conversation.MessageRequest{SessionID: "c1", Message: "book it"})
	require.NoError(t, err)

	require.NotNil(t, resp.Success)
	assert.False(t, *resp.Success)
	assert.True(t, resp.NeedsCorrection)
	assert.Empty(t, store.appts, "conflicted booking must not persist a record")

	session, err := sessions.Load(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, session.Turns, 2, "failed turn must still be recorded")
	require.NotNil(t, session.LastFunctionResult)

	// The slot frees up; the retry books exactly one appointment and the
	// earlier failure leaves no duplicate behind.
	gw.createErr = nil
	gw.createID = "ev-retry"
	resp, err = engine.ProcessMessage(ctx, conversation.MessageRequest{SessionID: "c1", Message: "try 4pm instead"})
	require.NoError(t, err)

	require.NotNil(t, resp.Success)
	assert.True(t, *resp.Success)
	require.Len(t, store.appts, 1)
	assert.Equal(t, StatusScheduled, store.appts["ev-retry"].Status)

	session, err = sessions.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, session.LastFunctionResult)
	assert.Len(t, session.Turns, 4, "prior turns are retained across the correction")
}
