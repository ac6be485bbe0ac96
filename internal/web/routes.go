package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-recognizer/internal/web/handlers"
	"github.com/kozaktomas/face-recognizer/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	facesHandler := handlers.NewFacesHandler(s.service, s.config.MaxImageBytes)
	modelsHandler := handlers.NewModelsHandler(s.service, s.config.MaxChunkBytes)
	usersHandler := handlers.NewUsersHandler(s.users, s.service, s.config.MaxImageBytes)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.APIToken))

		// Face pipeline
		r.Post("/detect", facesHandler.Detect)
		r.Post("/recognize", facesHandler.Recognize)

		// Person registry
		r.Post("/persons", facesHandler.AddPerson)
		r.Get("/persons/count", facesHandler.CountPersons)
		r.Delete("/persons", facesHandler.ClearPersons)

		// Model provisioning
		r.Delete("/models/{name}/bytes", modelsHandler.ClearBytes)
		r.Post("/models/{name}/bytes", modelsHandler.AppendBytes)
		r.Post("/models/setup", modelsHandler.Setup)
		r.Get("/models/status", modelsHandler.Status)

		// Users
		r.Post("/users", usersHandler.Create)
		r.Get("/users/{id}", usersHandler.Get)
		r.Put("/users/{id}", usersHandler.Update)
		r.Delete("/users/{id}", usersHandler.Delete)
		r.Post("/users/{id}/verify", usersHandler.Verify)
	})
}
