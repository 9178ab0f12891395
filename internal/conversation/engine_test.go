package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezyclinic/clinic-assistant/internal/agent"
	"github.com/dezyclinic/clinic-assistant/internal/calllog"
)

// scriptedAgent replays canned replies in order.
type scriptedAgent struct {
	replies []string
	calls   int
	// last context passed in, for assertions on prompt assembly
	lastMessages []agent.Message
	err          error
}

func (s *scriptedAgent) Reply(_ context.Context, msgs []agent.Message) (string, error) {
	s.lastMessages = msgs
	if s.err != nil {
		return "", s.err
	}
	if s.calls >= len(s.replies) {
		return "I'm not sure how to help with that.", nil
	}
	reply := s.replies[s.calls]
	s.calls++
	return reply, nil
}

type stubHandler struct {
	result     FunctionResult
	lastIntent *Intent
}

func (h *stubHandler) Handle(_ context.Context, intent *Intent) FunctionResult {
	h.lastIntent = intent
	return h.result
}

func newTestEngine(t *testing.T, ag agent.Agent, handler IntentHandler) (*Engine, *SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewSessionStore(client)
	return NewEngine(store, ag, handler, calllog.Noop{}, nil, "You are a clinic assistant.", nil), store
}

func TestProcessMessageMissingParameters(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedAgent{}, &stubHandler{})

	_, err := engine.ProcessMessage(context.Background(), MessageRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, ErrMissingParameter)

	_, err = engine.ProcessMessage(context.Background(), MessageRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrMissingParameter)

	_, err = engine.ProcessMessage(context.Background(), MessageRequest{SessionID: "  ", Message: "hi"})
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestProcessMessagePassthrough(t *testing.T) {
	ag := &scriptedAgent{replies: []string{"Hello! How can I help you today?"}}
	engine, store := newTestEngine(t, ag, &stubHandler{})

	resp, err := engine.ProcessMessage(context.Background(), MessageRequest{SessionID: "s1", Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "Hello! How can I help you today?", resp.Reply)
	assert.Nil(t, resp.Success)
	assert.False(t, resp.NeedsCorrection)

	session, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Len(t, session.Turns, 2)
	assert.Equal(t, agent.RoleUser, session.Turns[0].Role)
	assert.Equal(t, "hi", session.Turns[0].Content)
	assert.Equal(t, agent.RoleAssistant, session.Turns[1].Role)
}

func TestProcessMessageBookingSuccess(t *testing.T) {
	ag := &scriptedAgent{replies: []string{
		"```json\n{\"intent\": \"book\", \"treatment\": \"Rhinoplasty\", \"dateTime\": \"2026-09-01T10:00:00Z\", \"name\": \"Ada\", \"age\": 34, \"phone\": \"555-0100\", \"doctorId\": \"jason\"}\n```",
	}}
	handler := &stubHandler{result: FunctionResult{
		Success: true,
		Message: "Appointment booked with Dr. Jason on Sep 1, and the event ID is ev-1.",
		Data:    map[string]any{"eventId": "ev-1"},
	}}
	engine, store := newTestEngine(t, ag, handler)

	resp, err := engine.ProcessMessage(context.Background(), MessageRequest{SessionID: "s1", Message: "book me in"})
	require.NoError(t, err)

	require.NotNil(t, resp.Success)
	assert.True(t, *resp.Success)
	assert.Contains(t, resp.Reply, "ev-1")
	assert.NotNil(t, resp.Data)

	require.NotNil(t, handler.lastIntent)
	assert.Equal(t, IntentBook, handler.lastIntent.Intent)
	assert.Equal(t, "Ada", handler.lastIntent.Name)
	assert.Equal(t, 34, handler.lastIntent.Age)

	// Success resets the pending-correction state.
	session, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, session.LastFunctionResult)
	assert.Empty(t, session.PartialData)
}

func TestProcessMessageFailureKeepsResultForNextTurn(t *testing.T) {
	ag := &scriptedAgent{replies: []string{
		"{\"intent\": \"cancel\", \"eventId\": \"ev-missing\"}",
		"It looks like that appointment could not be found. Could you check the event ID?",
	}}
	handler := &stubHandler{result: FunctionResult{Success: false, Error: "appointment not found"}}
	engine, store := newTestEngine(t, ag, handler)

	resp, err := engine.ProcessMessage(context.Background(), MessageRequest{SessionID: "s1", Message: "cancel ev-missing"})
	require.NoError(t, err)

	require.NotNil(t, resp.Success)
	assert.False(t, *resp.Success)
	assert.True(t, resp.NeedsCorrection)
	assert.Contains(t, resp.Reply, "appointment not found")

	session, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, session.LastFunctionResult)
	assert.Equal(t, "appointment not found", session.LastFunctionResult.Error)

	// The next turn's agent context carries the failure for correction.
	_, err = engine.ProcessMessage(context.Background(), MessageRequest{SessionID: "s1", Message: "hmm"})
	require.NoError(t, err)
	found := false
	for _, m := range ag.lastMessages {
		if m.Role == agent.RoleSystem && m.Content != "You are a clinic assistant." {
			assert.Contains(t, m.Content, "appointment not found")
			found = true
		}
	}
	assert.True(t, found, "expected failure context in agent messages")
}

func TestProcessMessagePartialIntentRejected(t *testing.T) {
	// Intent shape missing required fields is treated as a failed call, not a crash.
	ag := &scriptedAgent{replies: []string{
		"{\"intent\": \"book\", \"treatment\": \"Facelift\"}",
	}}
	engine, _ := newTestEngine(t, ag, &stubHandler{})

	resp, err := engine.ProcessMessage(context.Background(), MessageRequest{SessionID: "s1", Message: "book facelift"})
	require.NoError(t, err)

	require.NotNil(t, resp.Success)
	assert.False(t, *resp.Success)
	assert.True(t, resp.NeedsCorrection)
}

func TestProcessMessageAgentError(t *testing.T) {
	ag := &scriptedAgent{err: errors.New("model unavailable")}
	engine, store := newTestEngine(t, ag, &stubHandler{})

	_, err := engine.ProcessMessage(context.Background(), MessageRequest{SessionID: "s1", Message: "hi"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingParameter)

	// The failed turn must not be persisted.
	session, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	if session != nil {
		assert.Empty(t, session.Turns)
	}
}

func TestProcessMessageSystemPromptFirst(t *testing.T) {
	ag := &scriptedAgent{replies: []string{"Hello!"}}
	engine, _ := newTestEngine(t, ag, &stubHandler{})

	_, err := engine.ProcessMessage(context.Background(), MessageRequest{SessionID: "s1", Message: "hi"})
	require.NoError(t, err)

	require.NotEmpty(t, ag.lastMessages)
	assert.Equal(t, agent.RoleSystem, ag.lastMessages[0].Role)
	assert.Equal(t, "You are a clinic assistant.", ag.lastMessages[0].Content)
	last := ag.lastMessages[len(ag.lastMessages)-1]
	assert.Equal(t, agent.RoleUser, last.Role)
	assert.Equal(t, "hi", last.Content)
}
