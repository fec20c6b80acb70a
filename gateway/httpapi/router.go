package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the gateway's chi.Router: CORS, request logging, panic
// recovery, and the two wire-protocol route groups 
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(requestLogger(deps.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "x-model-provider"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	resp := &responsesHandler{deps: deps}
	chat := &chatHandler{deps: deps}

	r.Route("/v1/responses", func(r chi.Router) {
		r.Post("/", resp.create)
		r.Get("/{id}", resp.get)
		r.Delete("/{id}", resp.delete)
		r.Get("/{id}/input_items", resp.inputItems)
	})

	r.Route("/v1/chat/completions", func(r chi.Router) {
		r.Post("/", chat.create)
		r.Get("/{id}", chat.get)
		r.Delete("/{id}", chat.delete)
	})

	r.Get("/healthz", healthz)

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
