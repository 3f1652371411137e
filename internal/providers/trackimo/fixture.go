package trackimo

import (
    "fmt"
    "time"

    "github.com/gps-hub/gps-hub-server/internal/models"
    "github.com/gps-hub/gps-hub-server/internal/providers"
)

const offlineAccountID = 900001

// loadFixtures seeds the adapter with demo trackers so the service can be
// exercised without Trackimo credentials
func (a *Adapter) loadFixtures() {
    a.mu.Lock()
    a.accountID = offlineAccountID
    a.mu.Unlock()

    now := time.Now().UTC()
    demo := []struct {
        id       string
        name     string
        lat, lng float64
        speed    float64
        battery  int
        moving   bool
        age      time.Duration
    }{
        {"1001001", "Demo Tracker Ankara", 39.9334, 32.8597, 4.2, 87, true, 2 * time.Minute},
        {"1001002", "Demo Tracker Bursa", 40.1885, 29.0610, 0, 54, false, 9 * time.Minute},
    }

    a.devMu.Lock()
    defer a.devMu.Unlock()
    for _, d := range demo {
        d := d
        ts := now.Add(-d.age)
        name := d.name
        status := "active"
        deviceType := "universal"

        loc := &models.Location{
            DeviceID:  d.id,
            Provider:  models.ProviderTrackimo,
            Latitude:  &d.lat,
            Longitude: &d.lng,
            Speed:     &d.speed,
            Battery:   &d.battery,
            Timestamp: &ts,
            IsMoving:  d.moving,
            IsGPSFix:  true,
            Raw:       models.Variables{"demo": true},
        }
        a.devices[d.id] = &models.Device{
            DeviceID:     d.id,
            Provider:     models.ProviderTrackimo,
            Name:         &name,
            Status:       &status,
            DeviceType:   &deviceType,
            LastLocation: loc,
            Raw:          models.Variables{"demo": true},
        }
    }
}

func (a *Adapter) fixtureLocation(deviceID string) (*models.Location, error) {
    a.devMu.RLock()
    defer a.devMu.RUnlock()

    device, ok := a.devices[deviceID]
    if !ok || device.LastLocation == nil {
        return nil, fmt.Errorf("%w: device %s", providers.ErrNotFound, deviceID)
    }
    return device.LastLocation, nil
}
