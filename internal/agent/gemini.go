package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements Agent using Google's Gemini API.
type Gemini struct {
	client  *genai.Client
	modelID string
}

// NewGemini creates a Gemini-backed agent.
func NewGemini(ctx context.Context, apiKey, modelID string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("agent: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create gemini client: %w", err)
	}

	return &Gemini{client: client, modelID: modelID}, nil
}

// Reply sends the transcript to Gemini and returns the model's text.
// System messages become the system instruction; prior user/assistant turns
// are replayed as chat history and the final message is sent live.
func (g *Gemini) Reply(ctx context.Context, messages []Message) (string, error) {
	model := g.client.GenerativeModel(g.modelID)

	var system []string
	var chat []Message
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		chat = append(chat, msg)
	}

	if len(system) > 0 {
		model.SystemInstruction = genai.NewUserContent(genai.Text(strings.Join(system, "\n\n")))
	}

	if len(chat) == 0 {
		return "", errors.New("agent: gemini requires at least one non-system message")
	}

	cs := model.StartChat()
	for _, msg := range chat[:len(chat)-1] {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(chat[len(chat)-1].Content))
	if err != nil {
		return "", fmt.Errorf("agent: gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", errors.New("agent: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("agent: gemini returned empty content")
	}

	var reply strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			reply.WriteString(string(text))
		}
	}
	return strings.TrimSpace(reply.String()), nil
}

// Close releases resources held by the Gemini client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
