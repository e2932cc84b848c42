// Package rest exposes matchmaking and session lifecycle over HTTP/JSON.
package rest

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/louisbranch/stylematch/internal/auth"
	"github.com/louisbranch/stylematch/internal/broadcast"
	"github.com/louisbranch/stylematch/internal/matchmaking/engine"
	"github.com/louisbranch/stylematch/internal/matchmaking/storage"
)

// Container holds the router's dependencies.
type Container struct {
	Tokens *auth.Service
	Engine *engine.Engine
	Store  storage.Store
	Hub    *broadcast.Hub
}

// NewRouter builds the API router with all endpoints.
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	authHandler := NewAuthHandler(c.Tokens)
	sessionHandler := NewSessionHandler(c.Engine, c.Store)
	eventsHandler := broadcast.NewHandler(c.Hub)
	authMW := NewAuthMiddleware(c.Tokens)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	// Public: identity bootstrap.
	v1.HandleFunc("/auth/guest", authHandler.Guest).Methods("POST")

	// Authenticated routes.
	authed := v1.NewRoute().Subrouter()
	authed.Use(authMW.RequireUser)

	authed.HandleFunc("/join", sessionHandler.Join).Methods("POST")
	authed.HandleFunc("/bot-demo", sessionHandler.BotDemo).Methods("POST")
	authed.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET")
	authed.HandleFunc("/sessions/{id}/status", sessionHandler.AdvanceStatus).Methods("POST")
	authed.HandleFunc("/sessions/{id}/rounds/{no}/complete", sessionHandler.CompleteRound).Methods("POST")

	// WebSocket event stream (token via query param).
	authed.HandleFunc("/sessions/{id}/events", eventsHandler.Events).Methods("GET")

	return r
}
