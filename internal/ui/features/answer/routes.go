package answer

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers the question page, its SSE actions and the JSON API.
// Every POST route requires the CSRF header.
func SetupRoutes(router chi.Router, cfg Config) error {
	handlers := NewHandlers(cfg)

	router.Route("/questions/{id}", func(r chi.Router) {
		r.Get("/", handlers.QuestionPage)   // Full page
		r.Get("/updates", handlers.Updates) // Live re-sync
		r.With(handlers.csrf.Middleware).Group(func(r chi.Router) {
			r.Post("/answer", handlers.SubmitAnswer)
			r.Post("/answer/delete", handlers.DeleteAnswer)
			r.Post("/files/{fileID}/delete", handlers.DeleteFile)
		})
	})

	router.Route("/qa", func(r chi.Router) {
		r.Get("/csrf/", handlers.csrf.Handler)
		r.Get("/questions/{id}/answer/", handlers.APISnapshot)
		r.Get("/files/{id}/", handlers.Download)
		r.With(handlers.csrf.Middleware).Group(func(r chi.Router) {
			r.Post("/questions/{id}/answer/", handlers.APIAnswer)
			r.Post("/delete-file/{id}/", handlers.APIDeleteFile)
		})
	})

	return nil
}
