package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/model"
)

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(h *Handler, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(log))
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.SignUp)
		r.Post("/login", h.Login)
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)
			r.Use(h.RequireRole(model.RoleUser))
			r.Post("/{id}/register", h.Register)
			r.Delete("/{id}/register", h.Cancel)
			r.Get("/{id}/registration", h.RegistrationStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)
			r.Use(h.RequireRole(model.RoleAdmin))
			r.Post("/", h.CreateEvent)
			r.Get("/{id}/registrations", h.ListRegistrations)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
