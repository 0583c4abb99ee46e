package starred

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/starred", h.GetBoard)
	r.Post("/starred/older", h.PostOlder)
}
