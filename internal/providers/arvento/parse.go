package arvento

import (
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gps-hub/gps-hub-server/internal/models"
)

// parseVehicleStatus normalizes one status packet. Missing coordinates
// stay nil, while altitude, speed, course and odometer default to zero
// the way the report service pads them.
func parseVehicleStatus(node string, result *Result) *models.Location {
	raw := models.Variables{
		"strNode":       result.Field("strNode"),
		"dtGMTDateTime": result.Field("dtGMTDateTime"),
		"dLatitude":     result.Field("dLatitude"),
		"dLongitude":    result.Field("dLongitude"),
		"dSpeed":        result.Field("dSpeed"),
		"strAddress":    result.Field("strAddress"),
		"nCourse":       result.Field("nCourse"),
		"dOdometer":     result.Field("dOdometer"),
		"nAltitude":     result.Field("nAltitude"),
	}

	speed := floatOrZero(result.Field("dSpeed"))
	course := intOrZero(result.Field("nCourse"))
	altitude := floatOrZero(result.Field("nAltitude"))
	odometer := floatOrZero(result.Field("dOdometer"))

	loc := &models.Location{
		DeviceID:  node,
		Provider:  models.ProviderArvento,
		Latitude:  floatOrNil(result.Field("dLatitude")),
		Longitude: floatOrNil(result.Field("dLongitude")),
		Altitude:  &altitude,
		Speed:     &speed,
		Course:    &course,
		Odometer:  &odometer,
		Timestamp: parseTimestamp(result.Field("dtGMTDateTime")),
		IsMoving:  speed > 0,
		IsGPSFix:  true,
		Raw:       raw,
	}

	if addr := result.Field("strAddress"); addr != "" {
		loc.Address = &addr
	}
	return loc
}

// parseTimestamp accepts RFC 3339 or the bare date-time form the report
// service uses, which is always GMT
func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.UTC); err == nil {
		return &t
	}
	log.Debug().Str("value", value).Msg("Unparseable packet timestamp")
	return nil
}

func floatOrNil(value string) *float64 {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Debug().Str("value", value).Msg("Unparseable packet number")
		return nil
	}
	return &f
}

func floatOrZero(value string) float64 {
	if f := floatOrNil(value); f != nil {
		return *f
	}
	return 0
}

func intOrZero(value string) int {
	return int(floatOrZero(value))
}
