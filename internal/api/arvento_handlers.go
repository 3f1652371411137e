package api

import (
    "encoding/json"
    "net/http"

    "github.com/go-chi/chi/v5"
    "github.com/rs/zerolog/log"

    "github.com/gps-hub/gps-hub-server/internal/providers/arvento"
)

// ========== Arvento handlers ==========

// HandleArventoConnect connects the Arvento provider. Credentials
// omitted from the request fall back to the configured defaults.
func (s *RESTServer) HandleArventoConnect(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Host     string `json:"host"`
        Username string `json:"username"`
        PIN1     string `json:"pin1"`
        PIN2     string `json:"pin2"`
        Offline  bool   `json:"offline"`
    }

    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        s.respondError(w, http.StatusBadRequest, "invalid request body")
        return
    }

    cfg := arvento.Config{
        Host:     req.Host,
        Username: req.Username,
        PIN1:     req.PIN1,
        PIN2:     req.PIN2,
        Offline:  req.Offline || s.config.Arvento.Offline,
    }
    if cfg.Host == "" {
        cfg.Host = s.config.Arvento.Host
    }
    if cfg.Username == "" {
        cfg.Username = s.config.Arvento.Username
    }
    if cfg.PIN1 == "" {
        cfg.PIN1 = s.config.Arvento.PIN1
    }
    if cfg.PIN2 == "" {
        cfg.PIN2 = s.config.Arvento.PIN2
    }

    if !cfg.Offline && (cfg.Host == "" || cfg.Username == "" || cfg.PIN1 == "" || cfg.PIN2 == "") {
        s.respondError(w, http.StatusBadRequest, "host, username, pin1 and pin2 are required")
        return
    }

    adapter := arvento.New(cfg)
    session, err := s.registry.Install(r.Context(), adapter)
    if err != nil {
        log.Error().Err(err).Msg("Arvento connect failed")
        s.respondError(w, http.StatusUnauthorized, "Arvento connection failed")
        return
    }

    s.respondJSON(w, http.StatusOK, map[string]interface{}{
        "status":     "connected",
        "provider":   "arvento",
        "session_id": session.ID.String(),
    })
}

// HandleArventoVehicles lists all registered Arvento vehicles
func (s *RESTServer) HandleArventoVehicles(w http.ResponseWriter, r *http.Request) {
    adapter, ok := s.arventoAdapter(w)
    if !ok {
        return
    }

    devices, err := adapter.Devices(r.Context())
    if err != nil {
        s.respondProviderError(w, err, "Vehicles not found")
        return
    }
    s.respondJSON(w, http.StatusOK, devices)
}

// HandleArventoAddVehicle registers a vehicle by license plate so it
// shows up in the vehicle listing
func (s *RESTServer) HandleArventoAddVehicle(w http.ResponseWriter, r *http.Request) {
    adapter, ok := s.arventoAdapter(w)
    if !ok {
        return
    }

    var req struct {
        LicensePlate string `json:"license_plate" validate:"required"`
        Name         string `json:"name"`
    }

    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        s.respondError(w, http.StatusBadRequest, "invalid request body")
        return
    }

    if err := s.validator.Validate(req); err != nil {
        s.respondError(w, http.StatusBadRequest, err.Error())
        return
    }

    device, err := adapter.AddVehicle(r.Context(), req.LicensePlate, req.Name)
    if err != nil {
        s.respondProviderError(w, err, "Vehicle not found")
        return
    }
    s.respondJSON(w, http.StatusOK, device)
}

// HandleArventoLocation fetches the latest status of a vehicle by node ID
func (s *RESTServer) HandleArventoLocation(w http.ResponseWriter, r *http.Request) {
    adapter, ok := s.arventoAdapter(w)
    if !ok {
        return
    }

    node := chi.URLParam(r, "node")
    location, err := adapter.VehicleStatus(r.Context(), node)
    if err != nil {
        s.respondProviderError(w, err, "Location not found")
        return
    }
    s.respondJSON(w, http.StatusOK, location)
}

// HandleArventoLocationByPlate fetches the latest status of a vehicle
// by license plate
func (s *RESTServer) HandleArventoLocationByPlate(w http.ResponseWriter, r *http.Request) {
    adapter, ok := s.arventoAdapter(w)
    if !ok {
        return
    }

    plate := chi.URLParam(r, "license_plate")
    location, err := adapter.LocationByPlate(r.Context(), plate)
    if err != nil {
        s.respondProviderError(w, err, "Vehicle not found")
        return
    }
    s.respondJSON(w, http.StatusOK, location)
}
