package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	if s.config.Auth.Enabled {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.HandleLogin)
			r.Post("/refresh", s.HandleRefresh)
		})
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		if s.config.Auth.Enabled {
			r.Use(s.authMiddleware)
		}

		// Trackimo
		r.Route("/trackimo", func(r chi.Router) {
			r.Post("/connect", s.HandleTrackimoConnect)
			r.Post("/restore", s.HandleTrackimoRestore)
			r.Get("/devices", s.HandleTrackimoDevices)
			r.Route("/devices/{device_id}", func(r chi.Router) {
				r.Get("/location", s.HandleTrackimoLocation)
				r.Get("/history", s.HandleTrackimoHistory)
				r.Post("/beep", s.HandleTrackimoBeep)
				r.Post("/locate", s.HandleTrackimoLocate)
			})
		})

		// Arvento
		r.Route("/arvento", func(r chi.Router) {
			r.Post("/connect", s.HandleArventoConnect)
			r.Get("/vehicles", s.HandleArventoVehicles)
			r.Post("/vehicles", s.HandleArventoAddVehicle)
			r.Get("/vehicles/{node}/location", s.HandleArventoLocation)
			r.Get("/vehicles/plate/{license_plate}/location", s.HandleArventoLocationByPlate)
		})

		// Unified
		r.Get("/devices", s.HandleAllDevices)
		r.Get("/status", s.HandleStatus)
		r.Post("/disconnect/{provider}", s.HandleDisconnect)
	})
}
