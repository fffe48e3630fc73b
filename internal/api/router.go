package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check alias for load balancers
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Owner endpoints
		r.Route("/owners", func(r chi.Router) {
			r.Post("/link", s.handleLinkOwner)
			r.Get("/{owner}/identity", s.handleOwnerIdentity)
			r.Get("/{owner}/next-sub-identity", s.handleNextSubIdentity)
			r.Get("/{owner}/devices", s.handleListOwnerDevices)
		})

		// Device endpoints. Devices are addressed two ways: by their unique
		// token (by-token routes) and by their (owner, sub-identity) pair.
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleRegisterDevice)

			r.Route("/by-token/{token}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Patch("/active", s.handleSetDeviceActive)
				r.Get("/pings", s.handleDevicePingHistory)
			})

			r.Route("/{ownerIdentity}/{subIdentity}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteDevice)
				r.Post("/ping", s.handleDevicePing)
				r.Post("/signal", s.handleDeviceSignal)
			})
		})

		// Map dashboard: last known position of every active device
		r.Get("/pings", s.handleActivePings)

		// WebSocket event feed
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
