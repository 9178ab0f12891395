package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dezyclinic/clinic-assistant/internal/agent"
	"github.com/dezyclinic/clinic-assistant/internal/calllog"
	"github.com/dezyclinic/clinic-assistant/internal/observability/metrics"
	"github.com/dezyclinic/clinic-assistant/pkg/logging"
)

// ErrMissingParameter indicates the caller omitted message or session id.
// The HTTP layer maps it to a 400 before any state mutation.
var ErrMissingParameter = errors.New("conversation: message and sessionId are required")

// IntentHandler routes a validated intent to its side-effecting operation.
type IntentHandler interface {
	Handle(ctx context.Context, intent *Intent) FunctionResult
}

// MessageRequest is one inbound chat turn.
type MessageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// Response is the uniform reply for a processed turn.
type Response struct {
	Reply           string `json:"reply"`
	Success         *bool  `json:"success,omitempty"`
	Data            any    `json:"data,omitempty"`
	NeedsCorrection bool   `json:"needsCorrection,omitempty"`
}

// Engine drives one conversation turn end to end: load session, append the
// user turn, assemble the agent context, invoke the agent, extract an
// intent, orchestrate it, persist, respond. The session is saved once, after
// all mutations for the turn are computed, so a failure mid-turn leaves no
// partial state behind.
type Engine struct {
	store   *SessionStore
	agent   agent.Agent
	intents IntentHandler
	calls   calllog.Recorder
	metrics *metrics.ChatMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
	prompt  string
	now     func() time.Time
}

// NewEngine wires the conversation engine.
func NewEngine(store *SessionStore, ag agent.Agent, intents IntentHandler, calls calllog.Recorder, m *metrics.ChatMetrics, systemPrompt string, logger *logging.Logger) *Engine {
	if store == nil {
		panic("conversation: session store cannot be nil")
	}
	if ag == nil {
		panic("conversation: agent cannot be nil")
	}
	if intents == nil {
		panic("conversation: intent handler cannot be nil")
	}
	if calls == nil {
		calls = calllog.Noop{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:   store,
		agent:   ag,
		intents: intents,
		calls:   calls,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("clinic.internal.conversation.engine"),
		prompt:  systemPrompt,
		now:     time.Now,
	}
}

// ProcessMessage handles one turn. It returns ErrMissingParameter for bad
// input and a generic error for unexpected internal failures; every other
// outcome, including orchestration failures, is expressed in the Response.
func (e *Engine) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.SessionID) == "" {
		return nil, ErrMissingParameter
	}

	ctx, span := e.tracer.Start(ctx, "conversation.process_message")
	defer span.End()

	session, err := e.store.LoadOrCreate(ctx, req.SessionID)
	if err != nil {
		span.RecordError(err)
		e.metrics.ObserveTurn("error")
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}

	session.Append(agent.RoleUser, req.Message, e.now().UTC())

	msgs := BuildContext(e.prompt, session)

	agentStart := e.now()
	reply, err := e.agent.Reply(ctx, msgs)
	e.metrics.ObserveAgentLatency(e.now().Sub(agentStart).Seconds())
	if err != nil {
		span.RecordError(err)
		e.metrics.ObserveTurn("error")
		return nil, fmt.Errorf("conversation: agent: %w", err)
	}

	session.Append(agent.RoleAssistant, reply, e.now().UTC())

	resp := e.routeReply(ctx, session, reply)

	if err := e.store.Save(ctx, session); err != nil {
		span.RecordError(err)
		e.metrics.ObserveTurn("error")
		return nil, fmt.Errorf("conversation: save session: %w", err)
	}

	if err := e.calls.Record(ctx, req.Message, resp.Reply); err != nil {
		// Call logging is best-effort; the turn already succeeded.
		e.logger.Warn("failed to record call log", "session_id", req.SessionID, "error", err)
	}

	return resp, nil
}

// routeReply inspects the agent's reply for a structured intent and, when
// one is present, orchestrates it and folds the outcome into the session.
func (e *Engine) routeReply(ctx context.Context, session *Session, reply string) *Response {
	obj := ExtractJSON(reply)
	if obj == nil || asString(obj["intent"]) == "" {
		e.metrics.ObserveTurn("passthrough")
		return &Response{Reply: reply}
	}

	var result FunctionResult
	intent, err := DecodeIntent(obj)
	if err != nil {
		// The agent emitted a partial shape despite its instructions.
		// Surface it as an ordinary failure so the next turn can correct it.
		result = FunctionResult{Success: false, Error: err.Error()}
		e.logger.Warn("rejected partial intent", "session_id", session.SessionID, "error", err)
	} else {
		result = e.intents.Handle(ctx, intent)
		e.metrics.ObserveIntent(intent.Intent, result.Success)
	}

	session.LastFunctionResult = &result

	if result.Success {
		// Conversation resets to neutral after a successful action.
		session.PartialData = map[string]any{}
		session.LastFunctionResult = nil

		e.metrics.ObserveTurn("success")
		message := result.Message
		if message == "" {
			message = "Great! Your request has been processed successfully."
		}
		success := true
		return &Response{Reply: message, Success: &success, Data: result.Data}
	}

	e.metrics.ObserveTurn("failure")
	success := false
	return &Response{
		Reply:           fmt.Sprintf("I apologize, but there was an issue: %s. Please provide the correct information and I'll help you complete your request.", result.Error),
		Success:         &success,
		NeedsCorrection: true,
	}
}
