package starred

import (
	"encoding/json"
	"net/http"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) GetBoard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *Handler) PostOlder(w http.ResponseWriter, _ *http.Request) {
	if h.svc.State().Paging != nil {
		http.Error(w, "a page is already loading", http.StatusConflict)
		return
	}
	h.svc.Dispatch(OlderRequested{})
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
