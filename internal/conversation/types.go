// Package conversation implements the per-turn chat control loop: session
// persistence, agent context assembly, intent extraction from the agent's
// free-text replies, and routing of extracted intents to the appointment
// layer.
package conversation

import "time"

// Turn is one message of a conversation, in insertion order.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// FunctionResult is the outcome of the most recent side-effecting call,
// carried into the next agent invocation so the agent can react to a prior
// failure without losing collected fields.
type FunctionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Session is the durable state of one chat thread.
type Session struct {
	SessionID          string          `json:"sessionId"`
	Turns              []Turn          `json:"messages"`
	LastFunctionResult *FunctionResult `json:"lastFunctionResult,omitempty"`
	PartialData        map[string]any  `json:"partialData,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Append adds a turn to the session's transcript.
func (s *Session) Append(role, content string, at time.Time) {
	s.Turns = append(s.Turns, Turn{Role: role, Content: content, Timestamp: at})
}
