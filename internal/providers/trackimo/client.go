package trackimo

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/gps-hub/gps-hub-server/internal/observability"
    "github.com/gps-hub/gps-hub-server/internal/providers"
)

const (
    oauthRedirectURI = "https://app.trackimo.com/api/internal/v1/oauth_redirect"
    oauthScope       = "locations,notifications,devices,accounts,settings,geozones"
)

// HTTPClient is the subset of http.Client the adapter depends on
type HTTPClient interface {
    Do(req *http.Request) (*http.Response, error)
}

type requestOpts struct {
    noAuth   bool
    internal bool
    noRetry  bool
    query    url.Values
    body     interface{}
}

// statusError carries a non-2xx vendor response
type statusError struct {
    op     string
    status int
    body   string
}

func (e *statusError) Error() string {
    return fmt.Sprintf("%s: unexpected status %d", e.op, e.status)
}

type tokenResponse struct {
    AccessToken  string `json:"access_token"`
    RefreshToken string `json:"refresh_token"`
    ExpiresIn    int64  `json:"expires_in"`
}

// apiRequest issues a call against the REST API, selecting the public or
// internal base path
func (a *Adapter) apiRequest(ctx context.Context, op, method, path string, opts requestOpts, out interface{}) error {
    base := a.apiURL
    if opts.internal {
        base = a.internalURL
    }
    return a.request(ctx, op, method, base+"/"+path, opts, out)
}

// request performs one vendor call with token upkeep: a proactive refresh
// when the token is known to be expired, and a single retry after a 401.
func (a *Adapter) request(ctx context.Context, op, method, rawURL string, opts requestOpts, out interface{}) (err error) {
    defer func(start time.Time) {
        observability.ObserveProviderCall("trackimo", op, start, err)
    }(time.Now())

    if !opts.noAuth {
        a.mu.Lock()
        expired := !a.expires.IsZero() && time.Now().After(a.expires)
        a.mu.Unlock()
        if expired {
            if rerr := a.refreshAccessToken(ctx); rerr != nil {
                return rerr
            }
        }
    }

    resp, body, err := a.send(ctx, method, rawURL, opts)
    if err != nil {
        return err
    }

    if resp.StatusCode == http.StatusUnauthorized && !opts.noAuth && !opts.noRetry {
        if rerr := a.refreshAccessToken(ctx); rerr != nil {
            return rerr
        }
        resp, body, err = a.send(ctx, method, rawURL, opts)
        if err != nil {
            return err
        }
    }

    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        serr := &statusError{op: op, status: resp.StatusCode, body: excerpt(body)}
        log.Error().
            Str("provider", "trackimo").
            Str("op", op).
            Int("status", resp.StatusCode).
            Str("body", serr.body).
            Msg("Vendor API error")
        return serr
    }

    if out == nil || len(body) == 0 {
        return nil
    }
    if err := json.Unmarshal(body, out); err != nil {
        return fmt.Errorf("decode %s response: %w", op, err)
    }
    return nil
}

// send builds and executes a single HTTP request. A fresh request is built
// per attempt so the retry carries the refreshed bearer token.
func (a *Adapter) send(ctx context.Context, method, rawURL string, opts requestOpts) (*http.Response, []byte, error) {
    u := rawURL
    if len(opts.query) > 0 {
        u = rawURL + "?" + opts.query.Encode()
    }

    var reqBody io.Reader
    if opts.body != nil {
        buf, err := json.Marshal(opts.body)
        if err != nil {
            return nil, nil, fmt.Errorf("encode request body: %w", err)
        }
        reqBody = bytes.NewReader(buf)
    }

    req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
    if err != nil {
        return nil, nil, fmt.Errorf("build request: %w", err)
    }
    if opts.body != nil {
        req.Header.Set("Content-Type", "application/json")
    }
    if !opts.noAuth {
        a.mu.Lock()
        token := a.accessToken
        a.mu.Unlock()
        if token != "" {
            req.Header.Set("Authorization", "Bearer "+token)
        }
    }

    resp, err := a.HTTP.Do(req)
    if err != nil {
        return nil, nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
    }
    defer resp.Body.Close()

    body, err := io.ReadAll(resp.Body)
    if err != nil {
        return nil, nil, fmt.Errorf("read response: %w", err)
    }
    return resp, body, nil
}

// login runs the three-step Trackimo OAuth flow
func (a *Adapter) login(ctx context.Context) error {
    // Step 1: credential login, establishes the session cookie
    loginPayload := map[string]interface{}{
        "username":    a.cfg.Username,
        "password":    a.cfg.Password,
        "remember_me": true,
        "whitelabel":  "TRACKIMO",
    }
    if err := a.request(ctx, "login", http.MethodPost, a.loginURL,
        requestOpts{noAuth: true, body: loginPayload}, nil); err != nil {
        return fmt.Errorf("%w: login rejected: %v", providers.ErrAuthFailed, err)
    }

    // Step 2: authorization code
    authQuery := url.Values{
        "client_id":     {a.cfg.ClientID},
        "redirect_uri":  {oauthRedirectURI},
        "response_type": {"code"},
        "scope":         {oauthScope},
    }
    var code struct {
        Code string `json:"code"`
    }
    if err := a.apiRequest(ctx, "oauth_code", http.MethodGet, "oauth2/auth",
        requestOpts{noAuth: true, query: authQuery}, &code); err != nil {
        return fmt.Errorf("%w: authorization code request failed: %v", providers.ErrAuthFailed, err)
    }
    if code.Code == "" {
        return fmt.Errorf("%w: authorization response carried no code", providers.ErrAuthFailed)
    }

    // Step 3: exchange the code for tokens
    tokenPayload := map[string]interface{}{
        "client_id":     a.cfg.ClientID,
        "client_secret": a.cfg.ClientSecret,
        "code":          code.Code,
    }
    var tok tokenResponse
    if err := a.apiRequest(ctx, "token_exchange", http.MethodPost, "oauth2/token",
        requestOpts{noAuth: true, body: tokenPayload}, &tok); err != nil {
        return fmt.Errorf("%w: token exchange failed: %v", providers.ErrAuthFailed, err)
    }
    if tok.AccessToken == "" {
        return fmt.Errorf("%w: token exchange returned no access token", providers.ErrAuthFailed)
    }
    a.storeTokens(&tok)

    if err := a.fetchIdentity(ctx); err != nil {
        log.Warn().Err(err).Msg("Account lookup after login failed")
    }

    log.Info().Str("provider", "trackimo").Msg("Trackimo login successful")
    return nil
}

// refreshAccessToken renews the access token with the stored refresh
// token, falling back to a full login when that fails and credentials
// are available.
func (a *Adapter) refreshAccessToken(ctx context.Context) error {
    a.mu.Lock()
    refresh := a.refreshToken
    a.mu.Unlock()

    if refresh == "" {
        return a.login(ctx)
    }

    observability.TokenRefreshes.Inc()

    payload := map[string]interface{}{
        "client_id":     a.cfg.ClientID,
        "client_secret": a.cfg.ClientSecret,
        "refresh_token": refresh,
    }
    var tok tokenResponse
    err := a.apiRequest(ctx, "token_refresh", http.MethodPost, "oauth2/token/refresh",
        requestOpts{noAuth: true, body: payload}, &tok)
    if err == nil && tok.AccessToken != "" {
        a.storeTokens(&tok)
        if ierr := a.fetchIdentity(ctx); ierr != nil {
            log.Warn().Err(ierr).Msg("Account lookup after token refresh failed")
        }
        return nil
    }
    if err != nil {
        log.Error().Err(err).Msg("Token refresh failed")
    }

    if a.cfg.Username != "" && a.cfg.Password != "" {
        return a.login(ctx)
    }
    if err != nil {
        return fmt.Errorf("%w: token refresh rejected: %v", providers.ErrAuthFailed, err)
    }
    return fmt.Errorf("%w: token refresh returned no access token", providers.ErrAuthFailed)
}

// storeTokens records the token pair. The vendor reports expires_in in
// milliseconds. An absent refresh token keeps the previous one.
func (a *Adapter) storeTokens(tok *tokenResponse) {
    a.mu.Lock()
    defer a.mu.Unlock()

    a.accessToken = tok.AccessToken
    if tok.RefreshToken != "" {
        a.refreshToken = tok.RefreshToken
    }
    if tok.ExpiresIn > 0 {
        a.expires = time.Now().Add(time.Duration(tok.ExpiresIn/1000) * time.Second)
    } else {
        a.expires = time.Time{}
    }
}

// fetchIdentity resolves the account ID the device endpoints are scoped to
func (a *Adapter) fetchIdentity(ctx context.Context) error {
    var user map[string]interface{}
    err := a.apiRequest(ctx, "identity", http.MethodGet, "users/me",
        requestOpts{internal: true, noRetry: true}, &user)
    if err != nil {
        return err
    }

    id, ok := user["accountId"].(float64)
    if !ok {
        return fmt.Errorf("identity response missing accountId")
    }
    a.mu.Lock()
    a.accountID = int64(id)
    a.mu.Unlock()
    return nil
}

func excerpt(body []byte) string {
    const max = 200
    s := strings.TrimSpace(string(body))
    if len(s) > max {
        return s[:max]
    }
    return s
}
