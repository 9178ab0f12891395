// Package agent defines the conversational agent contract: an ordered,
// role-tagged transcript in, free text out. The agent is stateless per call;
// all history is resent every turn.
package agent

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of the agent context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Agent produces a free-text reply from a transcript.
type Agent interface {
	Reply(ctx context.Context, messages []Message) (string, error)
}
