// Package api wires the HTTP surface of the assistant.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/perla/internal/api/handlers"
	"github.com/dvloznov/perla/internal/api/middleware"
	"github.com/dvloznov/perla/internal/jobs"
)

// Deps are the services behind the routes. Transcriber and Jobs may be nil;
// their routes are then not registered.
type Deps struct {
	Assistant   handlers.Assistant
	Sessions    handlers.Sessions
	Transcriber handlers.Transcriber
	Jobs        jobs.JobStore

	DefaultOwner   string
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter builds the chi router with every route and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.OwnerHeader, "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         3600,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Owner(d.DefaultOwner))

		ask := handlers.NewAssistantHandler(d.Assistant)
		r.Post("/ask", ask.Ask)
		r.Post("/insights", ask.Insights)

		if d.Sessions != nil {
			chat := handlers.NewChatHandler(d.Sessions, d.Assistant)
			r.Post("/chat", chat.Chat)
			r.Get("/session", chat.GetSession)
			r.Get("/sales", chat.ListSales)
			r.Post("/sales/insights", chat.Insights)
			r.Put("/selection", chat.SetSelection)
		}

		if d.Transcriber != nil {
			r.Post("/transcribe", handlers.NewTranscribeHandler(d.Transcriber).Transcribe)
		}

		if d.Jobs != nil {
			jh := handlers.NewJobsHandler(d.Jobs)
			r.Get("/jobs", jh.ListJobs)
			r.Get("/jobs/{id}", jh.GetJob)
		}
	})

	return r
}
