package chat

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.GetState)
		r.Post("/messages", h.PostMessage)
		r.Post("/typing", h.PostTyping)
		r.Post("/older", h.PostOlder)
		r.Post("/read", h.PostRead)
		r.Post("/star", h.PostStar)
	})
}
