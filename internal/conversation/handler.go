package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dezyclinic/clinic-assistant/pkg/logging"
)

// Handler exposes the chat engine over HTTP.
type Handler struct {
	engine *Engine
	store  *SessionStore
	logger *logging.Logger
}

// NewHandler creates the chat HTTP handler.
func NewHandler(engine *Engine, store *SessionStore, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("conversation: engine cannot be nil")
	}
	if store == nil {
		panic("conversation: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, store: store, logger: logger}
}

// Routes returns a chi router with the chat endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.PostMessage)
	r.Get("/history/{sessionID}", h.GetHistory)
	r.Delete("/history/{sessionID}", h.DeleteHistory)
	return r
}

// PostMessage processes one chat turn.
// POST /chat
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	resp, err := h.engine.ProcessMessage(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrMissingParameter) {
			http.Error(w, `{"error": "Message and sessionId are required"}`, http.StatusBadRequest)
			return
		}
		h.logger.Error("chat turn failed", "session_id", req.SessionID, "error", err)
		http.Error(w, `{"error": "Something went wrong"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode chat response", "session_id", req.SessionID, "error", err)
	}
}

// GetHistory returns the stored transcript for a session.
// GET /chat/history/{sessionID}
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		http.Error(w, `{"error": "sessionId required"}`, http.StatusBadRequest)
		return
	}

	session, err := h.store.Load(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to load session", "session_id", sessionID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if session == nil {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		h.logger.Error("failed to encode session", "session_id", sessionID, "error", err)
	}
}

// DeleteHistory removes a session transcript.
// DELETE /chat/history/{sessionID}
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		http.Error(w, `{"error": "sessionId required"}`, http.StatusBadRequest)
		return
	}

	if err := h.store.Delete(r.Context(), sessionID); err != nil {
		h.logger.Error("failed to delete session", "session_id", sessionID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}
