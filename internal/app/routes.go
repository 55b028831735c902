package app

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(credentials(deps.CredentialProvider))

	// Prompt pipeline
	api.Handle("/handle-prompt", rateLimited(deps.PromptLimiter, http.HandlerFunc(deps.PromptHandler.HandlePrompt))).Methods("POST")

	// Calendar
	api.HandleFunc("/calendar/events", deps.PromptHandler.ListEvents).Methods("GET")
	api.HandleFunc("/calendar/events", deps.PromptHandler.CommitEvent).Methods("POST")
}

// NewRouter builds the router with middleware and routes.
func NewRouter(deps *Dependencies) *mux.Router {
	r := mux.NewRouter()
	SetupMiddleware(r, deps)
	RegisterRoutes(r, deps)
	return r
}
