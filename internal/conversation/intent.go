package conversation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Intent tags the structured actions the agent can request.
const (
	IntentBook       = "book"
	IntentCancel     = "cancel"
	IntentReschedule = "reschedule"
	IntentQuerySlots = "query-appointments"
)

// Intent is the tagged request decoded from the agent's reply. Which fields
// are required depends on the tag; DecodeIntent enforces that.
type Intent struct {
	Intent        string `json:"intent"`
	Treatment     string `json:"treatment,omitempty"`
	DateTime      string `json:"dateTime,omitempty"`
	Name          string `json:"name,omitempty"`
	Age           int    `json:"age,omitempty"`
	Phone         string `json:"phone,omitempty"`
	DoctorID      string `json:"doctorId,omitempty"`
	EventID       string `json:"eventId,omitempty"`
	PreferredDate string `json:"preferredDate,omitempty"`
	PreferredTime string `json:"preferredTime,omitempty"`
}

// IncompleteIntentError reports an intent whose variant is known but whose
// required fields are missing. Such intents must never reach orchestration.
type IncompleteIntentError struct {
	Intent  string
	Missing []string
}

func (e *IncompleteIntentError) Error() string {
	return fmt.Sprintf("intent %q is missing required fields: %s", e.Intent, strings.Join(e.Missing, ", "))
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ExtractJSON pulls a JSON object out of the agent's free-text reply.
// Stages, first match wins: the whole text as JSON, then a ```json fenced
// block, then the first '{' to the last '}'. Returns nil when no stage
// yields an object; parse failures fall through, never propagate.
func ExtractJSON(text string) map[string]any {
	if obj := tryParseObject(text); obj != nil {
		return obj
	}

	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if obj := tryParseObject(m[1]); obj != nil {
			return obj
		}
	}

	open := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if open >= 0 && end > open {
		if obj := tryParseObject(text[open : end+1]); obj != nil {
			return obj
		}
	}

	return nil
}

func tryParseObject(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil
	}
	return obj
}

// DecodeIntent turns a raw extracted object into a validated Intent. Known
// variants must carry every required field; partial shapes are rejected with
// IncompleteIntentError rather than silently proceeding. Unknown tags pass
// through for the orchestrator to refuse.
func DecodeIntent(obj map[string]any) (*Intent, error) {
	in := &Intent{
		Intent:        asString(obj["intent"]),
		Treatment:     asString(obj["treatment"]),
		DateTime:      asString(obj["dateTime"]),
		Name:          asString(obj["name"]),
		Age:           asInt(obj["age"]),
		Phone:         asString(obj["phone"]),
		DoctorID:      asString(obj["doctorId"]),
		EventID:       asString(obj["eventId"]),
		PreferredDate: asString(obj["preferredDate"]),
		PreferredTime: asString(obj["preferredTime"]),
	}

	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	switch in.Intent {
	case IntentBook:
		require("treatment", in.Treatment)
		require("dateTime", in.DateTime)
		require("name", in.Name)
		require("phone", in.Phone)
		require("doctorId", in.DoctorID)
		if in.Age <= 0 {
			missing = append(missing, "age")
		}
	case IntentCancel:
		require("eventId", in.EventID)
	case IntentReschedule:
		require("eventId", in.EventID)
		require("dateTime", in.DateTime)
	case IntentQuerySlots:
		require("doctorId", in.DoctorID)
		require("preferredDate", in.PreferredDate)
		require("preferredTime", in.PreferredTime)
	}

	if len(missing) > 0 {
		return nil, &IncompleteIntentError{Intent: in.Intent, Missing: missing}
	}
	return in, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return 0
}
