package api

import (
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/rs/zerolog/log"

    "github.com/gps-hub/gps-hub-server/internal/models"
    "github.com/gps-hub/gps-hub-server/internal/providers"
    "github.com/gps-hub/gps-hub-server/internal/providers/arvento"
    "github.com/gps-hub/gps-hub-server/internal/providers/trackimo"
)

// ========== Auth handlers ==========

// HandleLogin handles user login
func (s *RESTServer) HandleLogin(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Username string `json:"username" validate:"required"`
        Password string `json:"password" validate:"required"`
    }

    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        s.respondError(w, http.StatusBadRequest, "invalid request body")
        return
    }

    if err := s.validator.Validate(req); err != nil {
        s.respondError(w, http.StatusBadRequest, err.Error())
        return
    }

    // Verify credentials
    if req.Username != s.config.Auth.AdminUser {
        s.respondError(w, http.StatusUnauthorized, "invalid credentials")
        return
    }
    if !s.auth.VerifyPassword(req.Password, s.config.Auth.AdminPasswordHash) {
        s.respondError(w, http.StatusUnauthorized, "invalid credentials")
        return
    }

    // Generate tokens
    accessToken, refreshToken, err := s.auth.GenerateTokenPair(req.Username)
    if err != nil {
        s.respondError(w, http.StatusInternalServerError, "failed to generate tokens")
        return
    }

    s.respondJSON(w, http.StatusOK, map[string]interface{}{
        "access_token":  accessToken,
        "refresh_token": refreshToken,
        "expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
        "token_type":    "Bearer",
    })
}

// HandleRefresh handles token refresh
func (s *RESTServer) HandleRefresh(w http.ResponseWriter, r *http.Request) {
    var req struct {
        RefreshToken string `json:"refresh_token" validate:"required"`
    }

    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        s.respondError(w, http.StatusBadRequest, "invalid request body")
        return
    }

    // Refresh token
    accessToken, refreshToken, err := s.auth.RefreshToken(req.RefreshToken)
    if err != nil {
        s.respondError(w, http.StatusUnauthorized, "invalid refresh token")
        return
    }

    s.respondJSON(w, http.StatusOK, map[string]interface{}{
        "access_token":  accessToken,
        "refresh_token": refreshToken,
        "expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
        "token_type":    "Bearer",
    })
}

// ========== Unified handlers ==========

// HandleAllDevices lists devices across all connected providers
func (s *RESTServer) HandleAllDevices(w http.ResponseWriter, r *http.Request) {
    s.respondJSON(w, http.StatusOK, s.registry.AllDevices(r.Context()))
}

// HandleStatus reports the service state and connected providers
func (s *RESTServer) HandleStatus(w http.ResponseWriter, r *http.Request) {
    sessions := s.registry.Sessions()

    connected := make([]string, 0, len(sessions))
    details := make([]map[string]interface{}, 0, len(sessions))
    for _, session := range sessions {
        name := session.Provider.Name().String()
        connected = append(connected, name)
        details = append(details, map[string]interface{}{
            "provider":     name,
            "session_id":   session.ID.String(),
            "connected_at": session.ConnectedAt,
        })
    }

    s.respondJSON(w, http.StatusOK, map[string]interface{}{
        "status":              "running",
        "connected_providers": connected,
        "sessions":            details,
        "timestamp":           time.Now().UTC(),
    })
}

// HandleDisconnect tears down the session of one provider
func (s *RESTServer) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
    name := models.Provider(chi.URLParam(r, "provider"))

    if err := s.registry.Disconnect(r.Context(), name); err != nil {
        if errors.Is(err, providers.ErrNotConnected) {
            s.respondError(w, http.StatusNotFound, fmt.Sprintf("Provider %s not connected", name))
            return
        }
        // Session is already removed, only the teardown failed
        log.Warn().Err(err).Str("provider", name.String()).Msg("Disconnect reported an error")
    }

    s.respondJSON(w, http.StatusOK, map[string]interface{}{
        "status":   "disconnected",
        "provider": name.String(),
    })
}

// ========== System handlers ==========

// HandleHealth health check handler
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
    s.respondJSON(w, http.StatusOK, map[string]interface{}{
        "status": "healthy",
        "time":   time.Now(),
    })
}

// HandleRoot root handler
func (s *RESTServer) HandleRoot(w http.ResponseWriter, r *http.Request) {
    s.respondJSON(w, http.StatusOK, map[string]interface{}{
        "service": "GPS Hub Server",
        "version": s.config.Server.Version,
        "health":  "/api/v1/health",
        "status":  "/api/v1/status",
    })
}

// ========== Helper functions ==========

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
    response, err := json.Marshal(payload)
    if err != nil {
        log.Error().Err(err).Msg("Failed to marshal response")
        w.WriteHeader(http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    w.Write(response)
}

// respondError responds with error
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
    s.respondJSON(w, status, map[string]string{
        "error": message,
    })
}

// respondProviderError maps adapter errors onto HTTP statuses
func (s *RESTServer) respondProviderError(w http.ResponseWriter, err error, notFoundMsg string) {
    switch {
    case errors.Is(err, providers.ErrNotFound):
        s.respondError(w, http.StatusNotFound, notFoundMsg)
    case errors.Is(err, providers.ErrUnauthenticated), errors.Is(err, providers.ErrAuthFailed):
        s.respondError(w, http.StatusUnauthorized, err.Error())
    case errors.Is(err, providers.ErrNotConnected):
        s.respondError(w, http.StatusBadRequest, err.Error())
    default:
        log.Error().Err(err).Msg("Provider request failed")
        s.respondError(w, http.StatusBadGateway, "provider request failed")
    }
}

// trackimoAdapter resolves the live Trackimo adapter
func (s *RESTServer) trackimoAdapter(w http.ResponseWriter) (*trackimo.Adapter, bool) {
    p, err := s.registry.Get(models.ProviderTrackimo)
    if err != nil {
        s.respondError(w, http.StatusBadRequest, "Trackimo not connected")
        return nil, false
    }
    adapter, ok := p.(*trackimo.Adapter)
    if !ok {
        s.respondError(w, http.StatusInternalServerError, "unexpected provider type")
        return nil, false
    }
    return adapter, true
}

// arventoAdapter resolves the live Arvento adapter
func (s *RESTServer) arventoAdapter(w http.ResponseWriter) (*arvento.Adapter, bool) {
    p, err := s.registry.Get(models.ProviderArvento)
    if err != nil {
        s.respondError(w, http.StatusBadRequest, "Arvento not connected")
        return nil, false
    }
    adapter, ok := p.(*arvento.Adapter)
    if !ok {
        s.respondError(w, http.StatusInternalServerError, "unexpected provider type")
        return nil, false
    }
    return adapter, true
}
