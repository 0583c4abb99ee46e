package userloader

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.GetUsers)
		r.Post("/track", h.PostTrack)
		r.Post("/refresh", h.PostRefresh)
		r.Post("/{id}/retry", h.PostRetry)
	})
}
