package trackimo

import (
    "strconv"
    "time"

    "github.com/gps-hub/gps-hub-server/internal/models"
)

// parseLocation normalizes one vendor location record. Fields the vendor
// omits stay nil. Speeds reported in mph are converted to km/h. The
// timestamp is "time" in unix seconds, or "updated" in unix milliseconds
// when "time" is absent.
func parseLocation(deviceID string, data map[string]interface{}) *models.Location {
    loc := &models.Location{
        DeviceID:  deviceID,
        Provider:  models.ProviderTrackimo,
        Latitude:  f64(data, "lat"),
        Longitude: f64(data, "lng"),
        Altitude:  f64(data, "altitude"),
        Battery:   intPtr(data, "battery"),
        HDOP:      f64(data, "hdop"),
        IsMoving:  boolVal(data, "moving", false),
        IsGPSFix:  boolVal(data, "gps", true),
        Raw:       models.Variables(data),
    }

    speed := f64(data, "speed")
    if speed != nil {
        if unit, _ := data["speed_unit"].(string); unit == "mph" {
            kmh := *speed * mphToKmh
            speed = &kmh
        }
    }
    loc.Speed = speed

    if ts := i64(data, "time"); ts != nil {
        t := time.Unix(*ts, 0).UTC()
        loc.Timestamp = &t
    } else if ts := i64(data, "updated"); ts != nil {
        t := time.UnixMilli(*ts).UTC()
        loc.Timestamp = &t
    }

    return loc
}

func f64(data map[string]interface{}, key string) *float64 {
    switch v := data[key].(type) {
    case float64:
        return &v
    case string:
        if f, err := strconv.ParseFloat(v, 64); err == nil {
            return &f
        }
    }
    return nil
}

func i64(data map[string]interface{}, key string) *int64 {
    if f := f64(data, key); f != nil {
        n := int64(*f)
        return &n
    }
    return nil
}

func intPtr(data map[string]interface{}, key string) *int {
    if f := f64(data, key); f != nil {
        n := int(*f)
        return &n
    }
    return nil
}

func boolVal(data map[string]interface{}, key string, def bool) bool {
    if v, ok := data[key].(bool); ok {
        return v
    }
    return def
}

func strField(data map[string]interface{}, key string) *string {
    if v, ok := data[key].(string); ok && v != "" {
        return &v
    }
    return nil
}
