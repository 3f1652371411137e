package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Valid(t *testing.T) {
	assert.True(t, ProviderTrackimo.Valid())
	assert.True(t, ProviderArvento.Valid())
	assert.False(t, Provider("").Valid())
	assert.False(t, Provider("garmin").Valid())

	assert.Equal(t, "trackimo", ProviderTrackimo.String())
	assert.Equal(t, "arvento", ProviderArvento.String())
}

func TestLocation_SerializationRoundTrip(t *testing.T) {
	lat := 39.9334
	lng := 32.8597
	alt := 870.5
	speed := 42.7
	course := 135
	battery := 87
	hdop := 1.2
	odometer := 12500.5
	address := "Çankaya, Ankara"
	ts := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)

	original := &Location{
		DeviceID:  "1001001",
		Provider:  ProviderTrackimo,
		Latitude:  &lat,
		Longitude: &lng,
		Altitude:  &alt,
		Speed:     &speed,
		Course:    &course,
		Battery:   &battery,
		Timestamp: &ts,
		Address:   &address,
		Odometer:  &odometer,
		IsMoving:  true,
		IsGPSFix:  true,
		HDOP:      &hdop,
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Location
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, &decoded)
}

func TestLocation_AbsentFieldsSerializeAsNull(t *testing.T) {
	loc := &Location{
		DeviceID: "NODE001",
		Provider: ProviderArvento,
		Raw:      Variables{"strNode": "NODE001"},
	}

	data, err := json.Marshal(loc)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))

	// Optional fields are present with explicit nulls, never omitted
	for _, key := range []string{
		"latitude", "longitude", "altitude", "speed", "course",
		"battery", "timestamp", "address", "odometer", "hdop",
	} {
		require.Contains(t, fields, key)
		assert.Nil(t, fields[key], key)
	}

	assert.Equal(t, false, fields["is_moving"])
	assert.Equal(t, false, fields["is_gps_fix"])

	// The vendor-native payload never leaves the process
	assert.NotContains(t, fields, "Raw")
	assert.NotContains(t, fields, "strNode")
}

func TestDevice_Serialization(t *testing.T) {
	name := "Demo Tracker"
	lat := 40.1885
	loc := &Location{DeviceID: "1001002", Provider: ProviderTrackimo, Latitude: &lat, IsGPSFix: true}

	device := &Device{
		DeviceID:     "1001002",
		Provider:     ProviderTrackimo,
		Name:         &name,
		LastLocation: loc,
		Raw:          Variables{"deviceId": 1001002},
	}

	data, err := json.Marshal(device)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))

	assert.Equal(t, "1001002", fields["device_id"])
	assert.Equal(t, "trackimo", fields["provider"])
	assert.Equal(t, "Demo Tracker", fields["name"])
	assert.Nil(t, fields["imsi"])
	assert.NotContains(t, fields, "Raw")

	last, ok := fields["last_location"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 40.1885, last["latitude"])

	// A device that never reported serializes a null location
	device.LastLocation = nil
	data, err = json.Marshal(device)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "last_location")
	assert.Nil(t, fields["last_location"])
}
