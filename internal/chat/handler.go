package chat

import (
	"encoding/json"
	"net/http"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// GetState returns the current session view.
func (h *Handler) GetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewView(h.svc.State()))
}

// PostMessage submits the composer text.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	msg, err := Compose(payload.Text)
	if err != nil {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}
	if !CanSend(h.svc.State()) {
		http.Error(w, "a message is already being sent", http.StatusConflict)
		return
	}

	h.svc.Dispatch(SendRequested{Message: msg})
	h.svc.Dispatch(ComposerTyping(h.svc.Me(), ""))
	writeJSON(w, http.StatusAccepted, msg)
}

func (h *Handler) PostTyping(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Typing bool `json:"typing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if _, ok := h.svc.State().(DisplayingMessages); !ok {
		http.Error(w, "not connected", http.StatusConflict)
		return
	}
	h.svc.Dispatch(TypingReported{User: h.svc.Me(), Typing: payload.Typing})
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) PostOlder(w http.ResponseWriter, _ *http.Request) {
	if !CanLoadOlder(h.svc.State()) {
		http.Error(w, "a page is already loading", http.StatusConflict)
		return
	}
	h.svc.Dispatch(OlderPageRequested{})
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) PostRead(w http.ResponseWriter, _ *http.Request) {
	if _, ok := h.svc.State().(DisplayingMessages); !ok {
		http.Error(w, "not connected", http.StatusConflict)
		return
	}
	h.svc.Dispatch(AllRead{})
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) PostStar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID model.MessageID `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	d, ok := h.svc.State().(DisplayingMessages)
	if !ok {
		http.Error(w, "not connected", http.StatusConflict)
		return
	}
	i := model.IndexOf(d.Messages, payload.ID)
	if i < 0 {
		http.Error(w, "message not found", http.StatusNotFound)
		return
	}

	h.svc.Dispatch(StarRequested{Message: d.Messages[i]})
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
