package trackimo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gps-hub/gps-hub-server/internal/models"
)

func TestParseLocation_SpeedConversion(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
		want float64
	}{
		{
			name: "mph is converted to km/h",
			data: map[string]interface{}{"speed": 10.0, "speed_unit": "mph"},
			want: 16.0934,
		},
		{
			name: "km/h passes through",
			data: map[string]interface{}{"speed": 50.0, "speed_unit": "kmh"},
			want: 50.0,
		},
		{
			name: "missing unit passes through",
			data: map[string]interface{}{"speed": 25.0},
			want: 25.0,
		},
		{
			name: "zero mph stays zero",
			data: map[string]interface{}{"speed": 0.0, "speed_unit": "mph"},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := parseLocation("42", tt.data)
			require.NotNil(t, loc.Speed)
			assert.InDelta(t, tt.want, *loc.Speed, 1e-9)
		})
	}
}

func TestParseLocation_Timestamps(t *testing.T) {
	t.Run("time field is unix seconds", func(t *testing.T) {
		loc := parseLocation("42", map[string]interface{}{"time": 1715942400.0})
		require.NotNil(t, loc.Timestamp)
		assert.Equal(t, time.Unix(1715942400, 0).UTC(), *loc.Timestamp)
		assert.Equal(t, time.UTC, loc.Timestamp.Location())
	})

	t.Run("updated field is unix milliseconds", func(t *testing.T) {
		loc := parseLocation("42", map[string]interface{}{"updated": 1715942400123.0})
		require.NotNil(t, loc.Timestamp)
		assert.Equal(t, time.UnixMilli(1715942400123).UTC(), *loc.Timestamp)
	})

	t.Run("time wins over updated", func(t *testing.T) {
		loc := parseLocation("42", map[string]interface{}{
			"time":    1715942400.0,
			"updated": 1715999999999.0,
		})
		require.NotNil(t, loc.Timestamp)
		assert.Equal(t, time.Unix(1715942400, 0).UTC(), *loc.Timestamp)
	})

	t.Run("absent timestamp stays nil", func(t *testing.T) {
		loc := parseLocation("42", map[string]interface{}{"lat": 39.9})
		assert.Nil(t, loc.Timestamp)
	})
}

func TestParseLocation_OptionalFields(t *testing.T) {
	t.Run("absent values stay nil", func(t *testing.T) {
		loc := parseLocation("42", map[string]interface{}{})

		assert.Equal(t, "42", loc.DeviceID)
		assert.Equal(t, models.ProviderTrackimo, loc.Provider)
		assert.Nil(t, loc.Latitude)
		assert.Nil(t, loc.Longitude)
		assert.Nil(t, loc.Altitude)
		assert.Nil(t, loc.Speed)
		assert.Nil(t, loc.Battery)
		assert.Nil(t, loc.HDOP)
		assert.False(t, loc.IsMoving)
		assert.True(t, loc.IsGPSFix)
	})

	t.Run("present values are carried", func(t *testing.T) {
		loc := parseLocation("42", map[string]interface{}{
			"lat":      39.9334,
			"lng":      32.8597,
			"altitude": 870.5,
			"battery":  87.0,
			"hdop":     1.2,
			"moving":   true,
			"gps":      false,
		})

		require.NotNil(t, loc.Latitude)
		assert.Equal(t, 39.9334, *loc.Latitude)
		require.NotNil(t, loc.Longitude)
		assert.Equal(t, 32.8597, *loc.Longitude)
		require.NotNil(t, loc.Altitude)
		assert.Equal(t, 870.5, *loc.Altitude)
		require.NotNil(t, loc.Battery)
		assert.Equal(t, 87, *loc.Battery)
		require.NotNil(t, loc.HDOP)
		assert.Equal(t, 1.2, *loc.HDOP)
		assert.True(t, loc.IsMoving)
		assert.False(t, loc.IsGPSFix)
	})

	t.Run("numeric strings parse", func(t *testing.T) {
		loc := parseLocation("42", map[string]interface{}{"lat": "39.5", "battery": "60"})
		require.NotNil(t, loc.Latitude)
		assert.Equal(t, 39.5, *loc.Latitude)
		require.NotNil(t, loc.Battery)
		assert.Equal(t, 60, *loc.Battery)
	})

	t.Run("malformed flags fall back to defaults", func(t *testing.T) {
		loc := parseLocation("42", map[string]interface{}{
			"moving": "yes",
			"gps":    1.0,
		})
		assert.False(t, loc.IsMoving)
		assert.True(t, loc.IsGPSFix)
	})

	t.Run("raw payload is preserved", func(t *testing.T) {
		data := map[string]interface{}{"lat": 39.9, "vendor_extra": "x"}
		loc := parseLocation("42", data)
		assert.Equal(t, models.Variables(data), loc.Raw)
	})
}
