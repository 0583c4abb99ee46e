package userloader

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Vovarama1992/chat-sync/internal/model"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RequestView is the JSON shape of a Request.
type RequestView struct {
	ID     model.UserID `json:"id"`
	Status string       `json:"status"`
	Name   string       `json:"name,omitempty"`
	Error  string       `json:"error,omitempty"`
}

func NewRequestView(r Request) RequestView {
	v := RequestView{ID: IDOf(r)}
	switch r := r.(type) {
	case Pending:
		v.Status = "pending"
	case Resolved:
		v.Status = "resolved"
		v.Name = r.User.Name
	case Failed:
		v.Status = "failed"
		v.Error = r.Reason
	}
	return v
}

func (h *Handler) GetUsers(w http.ResponseWriter, _ *http.Request) {
	reqs := h.svc.State().Requests
	out := make([]RequestView, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, NewRequestView(r))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) PostTrack(w http.ResponseWriter, r *http.Request) {
	ids, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	h.svc.Dispatch(Track{IDs: ids})
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	ids, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	h.svc.Dispatch(Refresh{IDs: ids})
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) PostRetry(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	id := model.UserID(n)

	reqs := h.svc.State().Requests
	i := indexOf(reqs, id)
	if i < 0 {
		http.Error(w, "user not tracked", http.StatusNotFound)
		return
	}
	if _, failed := reqs[i].(Failed); !failed {
		http.Error(w, "lookup has not failed", http.StatusConflict)
		return
	}
	h.svc.Dispatch(Retry{ID: id})
	w.WriteHeader(http.StatusAccepted)
}

func decodeIDs(w http.ResponseWriter, r *http.Request) ([]model.UserID, bool) {
	var payload struct {
		IDs []model.UserID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return nil, false
	}
	return payload.IDs, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
