package trackimo

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "net/http/cookiejar"
    "net/url"
    "sort"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/gps-hub/gps-hub-server/internal/models"
    "github.com/gps-hub/gps-hub-server/internal/providers"
)

const (
    defaultHost = "app.trackimo.com"

    pageSize   = 20
    beepPeriod = 2
    beepType   = 1

    mphToKmh = 1.60934
)

// Config holds the Trackimo connection settings
type Config struct {
    Host         string
    ClientID     string
    ClientSecret string
    Username     string
    Password     string
    RefreshToken string
    Offline      bool
}

// Adapter connects to the Trackimo cloud API and normalizes its data
type Adapter struct {
    providers.Hook

    cfg Config

    // HTTP performs all vendor calls. Tests swap in a stub client.
    HTTP HTTPClient

    mu           sync.Mutex
    accessToken  string
    refreshToken string
    expires      time.Time
    accountID    int64

    devMu   sync.RWMutex
    devices map[string]*models.Device

    apiURL      string
    internalURL string
    loginURL    string
}

// New creates a new Trackimo adapter
func New(cfg Config) *Adapter {
    if cfg.Host == "" {
        cfg.Host = defaultHost
    }
    base := cfg.Host
    if !strings.Contains(base, "://") {
        base = "https://" + base
    }

    // The credential login sets a session cookie that the
    // authorization code request depends on.
    jar, _ := cookiejar.New(nil)

    return &Adapter{
        cfg:         cfg,
        HTTP:        &http.Client{Timeout: 30 * time.Second, Jar: jar},
        devices:     make(map[string]*models.Device),
        apiURL:      base + "/api/v3",
        internalURL: base + "/api/internal/v1",
        loginURL:    base + "/api/internal/v2/user/login",
    }
}

// Name returns the provider identifier
func (a *Adapter) Name() models.Provider {
    return models.ProviderTrackimo
}

// Connect authenticates against the Trackimo cloud. With a refresh token
// it restores the previous session, otherwise it runs the full login flow.
func (a *Adapter) Connect(ctx context.Context) error {
    if a.cfg.Offline {
        a.loadFixtures()
        log.Info().Str("provider", "trackimo").Msg("Connected in offline demo mode")
        return nil
    }

    if a.cfg.RefreshToken != "" {
        a.mu.Lock()
        a.refreshToken = a.cfg.RefreshToken
        a.mu.Unlock()
        if err := a.refreshAccessToken(ctx); err != nil {
            return fmt.Errorf("restore session: %w", err)
        }
        return nil
    }

    if a.cfg.Username == "" || a.cfg.Password == "" {
        return fmt.Errorf("%w: username and password required", providers.ErrAuthFailed)
    }
    return a.login(ctx)
}

// Disconnect drops the session state and cached devices
func (a *Adapter) Disconnect(ctx context.Context) error {
    a.mu.Lock()
    a.accessToken = ""
    a.refreshToken = ""
    a.expires = time.Time{}
    a.accountID = 0
    a.mu.Unlock()

    a.devMu.Lock()
    a.devices = make(map[string]*models.Device)
    a.devMu.Unlock()

    log.Info().Str("provider", "trackimo").Msg("Trackimo session closed")
    return nil
}

// Devices lists all trackers on the account, pages of 20 at a time,
// and enriches them with their latest known locations.
func (a *Adapter) Devices(ctx context.Context) ([]*models.Device, error) {
    accountID, err := a.ensureAuthenticated()
    if err != nil {
        return nil, err
    }

    if a.cfg.Offline {
        return a.snapshotDevices(), nil
    }

    page := 1
    for {
        query := url.Values{
            "limit": {strconv.Itoa(pageSize)},
            "page":  {strconv.Itoa(page)},
        }
        var listing []map[string]interface{}
        if err := a.apiRequest(ctx, "devices_list", http.MethodGet,
            fmt.Sprintf("accounts/%d/devices", accountID), requestOpts{query: query}, &listing); err != nil {
            return nil, err
        }
        if len(listing) == 0 {
            break
        }

        for _, item := range listing {
            device := a.parseDevice(ctx, accountID, item)
            if device == nil {
                continue
            }
            a.devMu.Lock()
            a.devices[device.DeviceID] = device
            a.devMu.Unlock()
        }

        if len(listing) < pageSize {
            break
        }
        page++
    }

    if err := a.fetchAllLocations(ctx, accountID); err != nil {
        log.Warn().Err(err).Msg("Batch location fetch failed")
    }

    return a.snapshotDevices(), nil
}

// parseDevice builds a Device from a listing entry, fetching the detail
// record for name and SIM metadata. A failed detail call falls back to
// the listing fields.
func (a *Adapter) parseDevice(ctx context.Context, accountID int64, data map[string]interface{}) *models.Device {
    id, ok := data["deviceId"].(float64)
    if !ok || id == 0 {
        return nil
    }
    deviceID := strconv.FormatInt(int64(id), 10)

    details := data
    var detail map[string]interface{}
    err := a.apiRequest(ctx, "device_detail", http.MethodGet,
        fmt.Sprintf("accounts/%d/devices/%s", accountID, deviceID), requestOpts{}, &detail)
    if err != nil {
        log.Warn().Err(err).Str("device_id", deviceID).Msg("Device detail fetch failed")
    } else if len(detail) > 0 {
        details = detail
    }

    return &models.Device{
        DeviceID:   deviceID,
        Provider:   models.ProviderTrackimo,
        Name:       strField(details, "name"),
        IMSI:       strField(details, "imsi"),
        Status:     strField(details, "status"),
        DeviceType: strField(details, "type"),
        Raw:        models.Variables(details),
    }
}

// fetchAllLocations pulls the latest location of every cached device in
// a single batch call
func (a *Adapter) fetchAllLocations(ctx context.Context, accountID int64) error {
    a.devMu.RLock()
    ids := make([]int, 0, len(a.devices))
    for id := range a.devices {
        n, err := strconv.Atoi(id)
        if err != nil {
            continue
        }
        ids = append(ids, n)
    }
    a.devMu.RUnlock()

    if len(ids) == 0 {
        return nil
    }
    sort.Ints(ids)

    query := url.Values{
        "limit": {strconv.Itoa(len(ids))},
        "page":  {"1"},
    }
    body := map[string]interface{}{"device_ids": ids}

    var rows []map[string]interface{}
    if err := a.apiRequest(ctx, "locations_filter", http.MethodPost,
        fmt.Sprintf("accounts/%d/locations/filter", accountID), requestOpts{query: query, body: body}, &rows); err != nil {
        return err
    }

    for _, row := range rows {
        idv, ok := row["device_id"].(float64)
        if !ok {
            continue
        }
        deviceID := strconv.FormatInt(int64(idv), 10)

        a.devMu.Lock()
        device, ok := a.devices[deviceID]
        if !ok {
            a.devMu.Unlock()
            continue
        }
        loc := parseLocation(deviceID, row)
        device.LastLocation = loc
        a.devMu.Unlock()

        a.Emit(loc)
    }
    return nil
}

// Location fetches the current location of a single device
func (a *Adapter) Location(ctx context.Context, deviceID string) (*models.Location, error) {
    accountID, err := a.ensureAuthenticated()
    if err != nil {
        return nil, err
    }

    if a.cfg.Offline {
        return a.fixtureLocation(deviceID)
    }

    var row map[string]interface{}
    err = a.apiRequest(ctx, "device_location", http.MethodGet,
        fmt.Sprintf("accounts/%d/devices/%s/location", accountID, deviceID), requestOpts{}, &row)
    if err != nil {
        var serr *statusError
        if errors.As(err, &serr) && serr.status == http.StatusNotFound {
            return nil, fmt.Errorf("%w: device %s", providers.ErrNotFound, deviceID)
        }
        return nil, err
    }
    if len(row) == 0 {
        return nil, fmt.Errorf("%w: no location for device %s", providers.ErrNotFound, deviceID)
    }

    loc := parseLocation(deviceID, row)
    a.Emit(loc)
    return loc, nil
}

// History fetches the location trail of a device. The window defaults to
// the trailing 24 hours.
func (a *Adapter) History(ctx context.Context, deviceID string, opts providers.HistoryOptions) ([]*models.Location, error) {
    accountID, err := a.ensureAuthenticated()
    if err != nil {
        return nil, err
    }

    if opts.Start.IsZero() {
        opts.Start = time.Now().Add(-24 * time.Hour)
    }
    if opts.End.IsZero() {
        opts.End = time.Now()
    }
    if opts.Limit <= 0 {
        opts.Limit = 100
    }
    if opts.Page <= 0 {
        opts.Page = 1
    }

    if a.cfg.Offline {
        if _, err := a.fixtureLocation(deviceID); err != nil {
            return nil, err
        }
        return []*models.Location{}, nil
    }

    query := url.Values{
        "from":  {strconv.FormatInt(opts.Start.Unix(), 10)},
        "to":    {strconv.FormatInt(opts.End.Unix(), 10)},
        "limit": {strconv.Itoa(opts.Limit)},
        "page":  {strconv.Itoa(opts.Page)},
    }

    var rows []map[string]interface{}
    err = a.apiRequest(ctx, "device_history", http.MethodGet,
        fmt.Sprintf("accounts/%d/devices/%s/history", accountID, deviceID), requestOpts{query: query}, &rows)
    if err != nil {
        var serr *statusError
        if errors.As(err, &serr) && serr.status == http.StatusNotFound {
            return []*models.Location{}, nil
        }
        return nil, err
    }

    locations := make([]*models.Location, 0, len(rows))
    for _, row := range rows {
        locations = append(locations, parseLocation(deviceID, row))
    }
    return locations, nil
}

// Beep makes the device emit an audible beep
func (a *Adapter) Beep(ctx context.Context, deviceID string) error {
    accountID, err := a.ensureAuthenticated()
    if err != nil {
        return err
    }
    if a.cfg.Offline {
        return nil
    }

    id, err := strconv.Atoi(deviceID)
    if err != nil {
        return fmt.Errorf("%w: device %s", providers.ErrNotFound, deviceID)
    }
    body := map[string]interface{}{
        "devices":    []int{id},
        "beepPeriod": beepPeriod,
        "beepType":   beepType,
    }
    return a.apiRequest(ctx, "beep", http.MethodPost,
        fmt.Sprintf("accounts/%d/devices/ops/beep", accountID), requestOpts{body: body}, nil)
}

// RequestLocation asks the device for a fresh GPS fix
func (a *Adapter) RequestLocation(ctx context.Context, deviceID string) error {
    accountID, err := a.ensureAuthenticated()
    if err != nil {
        return err
    }
    if a.cfg.Offline {
        return nil
    }

    id, err := strconv.Atoi(deviceID)
    if err != nil {
        return fmt.Errorf("%w: device %s", providers.ErrNotFound, deviceID)
    }
    body := map[string]interface{}{
        "devices":           []int{id},
        "forceGpsRead":      true,
        "sendGsmBeforeLock": true,
    }
    return a.apiRequest(ctx, "request_location", http.MethodPost,
        fmt.Sprintf("accounts/%d/devices/ops/getLocation", accountID), requestOpts{body: body}, nil)
}

// AuthInfo is the session credential snapshot handed back to API clients
// so they can restore the session later without a password.
type AuthInfo struct {
    AccessToken  string     `json:"access_token"`
    RefreshToken string     `json:"refresh_token"`
    Expires      *time.Time `json:"expires"`
    AccountID    *int64     `json:"account_id"`
}

// AuthInfo returns the current token state
func (a *Adapter) AuthInfo() AuthInfo {
    a.mu.Lock()
    defer a.mu.Unlock()

    info := AuthInfo{
        AccessToken:  a.accessToken,
        RefreshToken: a.refreshToken,
    }
    if !a.expires.IsZero() {
        t := a.expires
        info.Expires = &t
    }
    if a.accountID != 0 {
        id := a.accountID
        info.AccountID = &id
    }
    return info
}

func (a *Adapter) ensureAuthenticated() (int64, error) {
    a.mu.Lock()
    defer a.mu.Unlock()
    if a.accountID == 0 {
        return 0, fmt.Errorf("%w: connect first", providers.ErrUnauthenticated)
    }
    return a.accountID, nil
}

func (a *Adapter) snapshotDevices() []*models.Device {
    a.devMu.RLock()
    defer a.devMu.RUnlock()

    out := make([]*models.Device, 0, len(a.devices))
    for _, d := range a.devices {
        out = append(out, d)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
    return out
}
