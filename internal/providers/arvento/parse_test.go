package arvento

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gps-hub/gps-hub-server/internal/models"
)

func TestParseVehicleStatus_FullPacket(t *testing.T) {
	result := &Result{Packet: &StatusPacket{
		Node:        "NODE001",
		GMTDateTime: "2024-05-17T10:30:00",
		Latitude:    "40.978",
		Longitude:   "29.092",
		Speed:       "12.3",
		Address:     "Kadıköy, İstanbul",
		Course:      "45",
		Odometer:    "25010.5",
		Altitude:    "30",
	}}

	loc := parseVehicleStatus("NODE001", result)

	assert.Equal(t, "NODE001", loc.DeviceID)
	assert.Equal(t, models.ProviderArvento, loc.Provider)
	require.NotNil(t, loc.Latitude)
	assert.Equal(t, 40.978, *loc.Latitude)
	require.NotNil(t, loc.Longitude)
	assert.Equal(t, 29.092, *loc.Longitude)
	require.NotNil(t, loc.Speed)
	assert.Equal(t, 12.3, *loc.Speed)
	require.NotNil(t, loc.Course)
	assert.Equal(t, 45, *loc.Course)
	require.NotNil(t, loc.Odometer)
	assert.Equal(t, 25010.5, *loc.Odometer)
	require.NotNil(t, loc.Altitude)
	assert.Equal(t, 30.0, *loc.Altitude)
	require.NotNil(t, loc.Address)
	assert.Equal(t, "Kadıköy, İstanbul", *loc.Address)
	assert.True(t, loc.IsMoving)
	assert.True(t, loc.IsGPSFix)

	// The bare date-time form is GMT
	require.NotNil(t, loc.Timestamp)
	assert.Equal(t, time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC), *loc.Timestamp)
}

func TestParseVehicleStatus_EmptyPacket(t *testing.T) {
	loc := parseVehicleStatus("NODE001", &Result{Packet: &StatusPacket{Node: "NODE001"}})

	// Coordinates the service omits stay nil
	assert.Nil(t, loc.Latitude)
	assert.Nil(t, loc.Longitude)
	assert.Nil(t, loc.Address)
	assert.Nil(t, loc.Timestamp)

	// Padded numeric fields come back as explicit zeroes
	require.NotNil(t, loc.Speed)
	assert.Equal(t, 0.0, *loc.Speed)
	require.NotNil(t, loc.Altitude)
	assert.Equal(t, 0.0, *loc.Altitude)
	require.NotNil(t, loc.Course)
	assert.Equal(t, 0, *loc.Course)
	require.NotNil(t, loc.Odometer)
	assert.Equal(t, 0.0, *loc.Odometer)

	assert.False(t, loc.IsMoving)
	assert.True(t, loc.IsGPSFix)

	// The raw bag carries every packet field, empty or not
	for _, key := range []string{
		"strNode", "dtGMTDateTime", "dLatitude", "dLongitude",
		"dSpeed", "strAddress", "nCourse", "dOdometer", "nAltitude",
	} {
		assert.Contains(t, loc.Raw, key)
	}
}

func TestParseVehicleStatus_TimestampForms(t *testing.T) {
	t.Run("rfc3339 with offset converts to utc", func(t *testing.T) {
		result := &Result{Packet: &StatusPacket{GMTDateTime: "2024-05-17T10:30:00+03:00"}}
		loc := parseVehicleStatus("N1", result)
		require.NotNil(t, loc.Timestamp)
		assert.Equal(t, time.Date(2024, 5, 17, 7, 30, 0, 0, time.UTC), *loc.Timestamp)
	})

	t.Run("unparseable form stays nil", func(t *testing.T) {
		result := &Result{Packet: &StatusPacket{GMTDateTime: "17.05.2024 10:30"}}
		loc := parseVehicleStatus("N1", result)
		assert.Nil(t, loc.Timestamp)
	})
}

func TestParseVehicleStatus_MalformedNumbers(t *testing.T) {
	result := &Result{Packet: &StatusPacket{
		Latitude:  "not-a-number",
		Longitude: "29.092",
		Speed:     "n/a",
	}}

	loc := parseVehicleStatus("N1", result)

	assert.Nil(t, loc.Latitude)
	require.NotNil(t, loc.Longitude)
	assert.Equal(t, 29.092, *loc.Longitude)
	require.NotNil(t, loc.Speed)
	assert.Equal(t, 0.0, *loc.Speed)
	assert.False(t, loc.IsMoving)
}

func TestParseVehicleStatus_FlattenedFields(t *testing.T) {
	t.Run("nested under LastPacket", func(t *testing.T) {
		result := &Result{Fields: map[string]interface{}{
			"LastPacket": map[string]interface{}{
				"strNode":    "N9",
				"dLatitude":  "40.1",
				"dLongitude": "29.2",
				"dSpeed":     "5",
			},
		}}

		loc := parseVehicleStatus("N9", result)
		require.NotNil(t, loc.Latitude)
		assert.Equal(t, 40.1, *loc.Latitude)
		require.NotNil(t, loc.Speed)
		assert.Equal(t, 5.0, *loc.Speed)
		assert.True(t, loc.IsMoving)
	})

	t.Run("flat fields", func(t *testing.T) {
		result := &Result{Fields: map[string]interface{}{
			"dLatitude": "38.42",
			"dSpeed":    "0",
		}}

		loc := parseVehicleStatus("N9", result)
		require.NotNil(t, loc.Latitude)
		assert.Equal(t, 38.42, *loc.Latitude)
		assert.False(t, loc.IsMoving)
	})
}
