package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func setupRoutes(router *mux.Router) {
	// Lookup endpoints
	router.HandleFunc("/search", searchHandler).Methods(http.MethodGet)
	router.HandleFunc("/lyrics", lyricsHandler).Methods(http.MethodGet)
	router.HandleFunc("/find", findHandler).Methods(http.MethodGet)

	// Health and stats endpoints
	router.HandleFunc("/health", getHealthStatus)
	router.HandleFunc("/stats", getStats)
	router.HandleFunc("/circuit-breaker", getCircuitBreakerStatus)

	// Help endpoint
	router.HandleFunc("/", helpHandler)
}
