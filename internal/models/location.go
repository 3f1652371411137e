package models

import (
    "time"
)

// Provider identifies a GPS tracking vendor
type Provider string

// Supported providers
const (
    ProviderTrackimo Provider = "trackimo"
    ProviderArvento  Provider = "arvento"
)

// String returns the canonical lowercase provider name
func (p Provider) String() string {
    return string(p)
}

// Valid reports whether the provider is one of the supported vendors
func (p Provider) Valid() bool {
    switch p {
    case ProviderTrackimo, ProviderArvento:
        return true
    }
    return false
}

// Location represents a point-in-time GPS observation from a vendor.
// A Location is immutable once constructed. Optional fields are pointers
// so absent vendor values serialize as explicit JSON nulls.
type Location struct {
    DeviceID  string     `json:"device_id"`
    Provider  Provider   `json:"provider"`
    Latitude  *float64   `json:"latitude"`
    Longitude *float64   `json:"longitude"`
    Altitude  *float64   `json:"altitude"`
    Speed     *float64   `json:"speed"`  // km/h, converted at parse time
    Course    *int       `json:"course"` // degrees 0-359
    Battery   *int       `json:"battery"`
    Timestamp *time.Time `json:"timestamp"`
    Address   *string    `json:"address"`
    Odometer  *float64   `json:"odometer"`
    IsMoving  bool       `json:"is_moving"`
    IsGPSFix  bool       `json:"is_gps_fix"`
    HDOP      *float64   `json:"hdop"`

    // Raw holds the vendor-native payload for diagnostics
    Raw Variables `json:"-"`
}
