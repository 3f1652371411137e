package models

// Device represents a tracked asset as currently known to its adapter.
// LastLocation is replaced wholesale on each refresh, never merged.
type Device struct {
    DeviceID     string    `json:"device_id"`
    Provider     Provider  `json:"provider"`
    Name         *string   `json:"name"`
    IMSI         *string   `json:"imsi"`
    Status       *string   `json:"status"` // vendor vocabulary, not normalized
    DeviceType   *string   `json:"device_type"`
    LastLocation *Location `json:"last_location"`

    // Raw holds the vendor-native payload for diagnostics
    Raw Variables `json:"-"`
}
