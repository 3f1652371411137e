package api

import (
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/rs/zerolog/log"

    "github.com/gps-hub/gps-hub-server/internal/providers"
    "github.com/gps-hub/gps-hub-server/internal/providers/trackimo"
)

// ========== Trackimo handlers ==========

// HandleTrackimoConnect connects the Trackimo provider. Credentials
// omitted from the request fall back to the configured defaults.
func (s *RESTServer) HandleTrackimoConnect(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Host         string `json:"host"`
        ClientID     string `json:"client_id"`
        ClientSecret string `json:"client_secret"`
        Username     string `json:"username"`
        Password     string `json:"password"`
        Offline      bool   `json:"offline"`
    }

    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        s.respondError(w, http.StatusBadRequest, "invalid request body")
        return
    }

    cfg := trackimo.Config{
        Host:         req.Host,
        ClientID:     req.ClientID,
        ClientSecret: req.ClientSecret,
        Username:     req.Username,
        Password:     req.Password,
        Offline:      req.Offline || s.config.Trackimo.Offline,
    }
    if cfg.Host == "" {
        cfg.Host = s.config.Trackimo.Host
    }
    if cfg.ClientID == "" {
        cfg.ClientID = s.config.Trackimo.ClientID
    }
    if cfg.ClientSecret == "" {
        cfg.ClientSecret = s.config.Trackimo.ClientSecret
    }
    if cfg.Username == "" {
        cfg.Username = s.config.Trackimo.Username
    }
    if cfg.Password == "" {
        cfg.Password = s.config.Trackimo.Password
    }

    if !cfg.Offline && (cfg.Username == "" || cfg.Password == "") {
        s.respondError(w, http.StatusBadRequest, "username and password are required")
        return
    }

    adapter := trackimo.New(cfg)
    session, err := s.registry.Install(r.Context(), adapter)
    if err != nil {
        log.Error().Err(err).Msg("Trackimo connect failed")
        s.respondError(w, http.StatusUnauthorized, "Trackimo authentication failed")
        return
    }

    s.respondJSON(w, http.StatusOK, map[string]interface{}{
        "status":     "connected",
        "provider":   "trackimo",
        "session_id": session.ID.String(),
        "auth":       adapter.AuthInfo(),
    })
}

// HandleTrackimoRestore restores a Trackimo session from a refresh token
func (s *RESTServer) HandleTrackimoRestore(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Host         string `json:"host"`
        ClientID     string `json:"client_id"`
        ClientSecret string `json:"client_secret"`
        RefreshToken string `json:"refresh_token" validate:"required"`
    }

    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        s.respondError(w, http.StatusBadRequest, "invalid request body")
        return
    }

    if err := s.validator.Validate(req); err != nil {
        s.respondError(w, http.StatusBadRequest, err.Error())
        return
    }

    cfg := trackimo.Config{
        Host:         req.Host,
        ClientID:     req.ClientID,
        ClientSecret: req.ClientSecret,
        RefreshToken: req.RefreshToken,
    }
    if cfg.Host == "" {
        cfg.Host = s.config.Trackimo.Host
    }
    if cfg.ClientID == "" {
        cfg.ClientID = s.config.Trackimo.ClientID
    }
    if cfg.ClientSecret == "" {
        cfg.ClientSecret = s.config.Trackimo.ClientSecret
    }

    adapter := trackimo.New(cfg)
    session, err := s.registry.Install(r.Context(), adapter)
    if err != nil {
        log.Error().Err(err).Msg("Trackimo restore failed")
        s.respondError(w, http.StatusUnauthorized, "Session restore failed")
        return
    }

    s.respondJSON(w, http.StatusOK, map[string]interface{}{
        "status":     "connected",
        "provider":   "trackimo",
        "session_id": session.ID.String(),
        "auth":       adapter.AuthInfo(),
    })
}

// HandleTrackimoDevices lists all Trackimo trackers
func (s *RESTServer) HandleTrackimoDevices(w http.ResponseWriter, r *http.Request) {
    adapter, ok := s.trackimoAdapter(w)
    if !ok {
        return
    }

    devices, err := adapter.Devices(r.Context())
    if err != nil {
        s.respondProviderError(w, err, "Devices not found")
        return
    }
    s.respondJSON(w, http.StatusOK, devices)
}

// HandleTrackimoLocation fetches the current location of one tracker
func (s *RESTServer) HandleTrackimoLocation(w http.ResponseWriter, r *http.Request) {
    adapter, ok := s.trackimoAdapter(w)
    if !ok {
        return
    }

    deviceID := chi.URLParam(r, "device_id")
    location, err := adapter.Location(r.Context(), deviceID)
    if err != nil {
        s.respondProviderError(w, err, "Location not found")
        return
    }
    s.respondJSON(w, http.StatusOK, location)
}

// HandleTrackimoHistory fetches the location trail of one tracker over
// the requested trailing window
func (s *RESTServer) HandleTrackimoHistory(w http.ResponseWriter, r *http.Request) {
    adapter, ok := s.trackimoAdapter(w)
    if !ok {
        return
    }

    deviceID := chi.URLParam(r, "device_id")

    hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
    if hours <= 0 {
        hours = 24
    }

    end := time.Now()
    opts := providers.HistoryOptions{
        Start: end.Add(-time.Duration(hours) * time.Hour),
        End:   end,
    }

    locations, err := adapter.History(r.Context(), deviceID, opts)
    if err != nil {
        s.respondProviderError(w, err, "History not found")
        return
    }
    s.respondJSON(w, http.StatusOK, locations)
}

// HandleTrackimoBeep sends a beep command to a tracker
func (s *RESTServer) HandleTrackimoBeep(w http.ResponseWriter, r *http.Request) {
    adapter, ok := s.trackimoAdapter(w)
    if !ok {
        return
    }

    deviceID := chi.URLParam(r, "device_id")
    s.respondCommandResult(w, adapter.Beep(r.Context(), deviceID))
}

// HandleTrackimoLocate requests a fresh GPS fix from a tracker
func (s *RESTServer) HandleTrackimoLocate(w http.ResponseWriter, r *http.Request) {
    adapter, ok := s.trackimoAdapter(w)
    if !ok {
        return
    }

    deviceID := chi.URLParam(r, "device_id")
    s.respondCommandResult(w, adapter.RequestLocation(r.Context(), deviceID))
}

// respondCommandResult reports a device command outcome. Command
// failures other than auth problems come back as status "failed".
func (s *RESTServer) respondCommandResult(w http.ResponseWriter, err error) {
    if errors.Is(err, providers.ErrUnauthenticated) || errors.Is(err, providers.ErrAuthFailed) {
        s.respondError(w, http.StatusUnauthorized, err.Error())
        return
    }

    status := "success"
    if err != nil {
        log.Warn().Err(err).Msg("Device command failed")
        status = "failed"
    }
    s.respondJSON(w, http.StatusOK, map[string]string{"status": status})
}
