// Package features turns a shipment and its current route option into the
// fixed-schema row the delay model was trained on.
package features

import (
	"math"
	"strings"
	"time"

	"github.com/Moustafa-Haydar/cargo-smart/models"
)

// Defaults substituted for missing weather observations.
const (
	DefaultTempC         = 25.0
	DefaultWindSpeed     = 10.0
	DefaultHumidity      = 60.0
	DefaultPrecipitation = 0.0
)

// Defaults used when a shipment has no scheduled time.
const (
	defaultPlannedHour   = 9
	defaultPlannedDOW    = 1
	defaultPlannedMonth  = 1
	defaultLeadTimeHours = 24
)

const earthRadiusKM = 6371.0

var conditionCodes = map[string]int{
	"Clear":  0,
	"Clouds": 1,
	"Rain":   2,
	"Snow":   3,
}

// Builder is deterministic given its clock.
type Builder struct {
	Now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{Now: time.Now}
}

// Build returns the feature row for the shipment. The route option is part
// of the contract but none of the trained columns depend on it yet.
func (b *Builder) Build(s models.ShipmentSnapshot, _ models.RouteOption) models.FeatureVector {
	fv := models.FeatureVector{
		TempC:         valueOr(s.TempC, DefaultTempC),
		WindSpeed:     valueOr(s.WindSpeed, DefaultWindSpeed),
		Humidity:      valueOr(s.Humidity, DefaultHumidity),
		Precipitation: valueOr(s.Precipitation, DefaultPrecipitation),
		HaversineKM:   ShipmentDistanceKM(s),
		PlannedHour:   defaultPlannedHour,
		PlannedDOW:    defaultPlannedDOW,
		PlannedMonth:  defaultPlannedMonth,
		LeadTimeHours: defaultLeadTimeHours,
		Condition:     EncodeCondition(s.Condition),
	}

	if s.ScheduledAt != nil && !s.ScheduledAt.IsZero() {
		at := s.ScheduledAt.UTC()
		dow := isoWeekday(at.Weekday())
		fv.PlannedHour = float64(at.Hour())
		fv.PlannedDOW = float64(dow)
		fv.PlannedMonth = float64(at.Month())
		if dow >= 6 {
			fv.IsWeekend = 1
		}
		fv.LeadTimeHours = math.Max(0, at.Sub(b.now()).Hours())
	}
	return fv
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// EncodeCondition maps a weather condition label to its training code,
// ignoring case. Unknown and empty labels encode as Clear.
func EncodeCondition(condition string) int {
	return conditionCodes[CanonicalCondition(condition)]
}

// CanonicalCondition returns the training spelling of a known label
// (Clear, Clouds, Rain, Snow) regardless of case. Other labels are only
// trimmed.
func CanonicalCondition(condition string) string {
	condition = strings.TrimSpace(condition)
	for label := range conditionCodes {
		if strings.EqualFold(label, condition) {
			return label
		}
	}
	return condition
}

// ShipmentDistanceKM is the great-circle distance between origin and
// destination, or 0 when either end is unknown.
func ShipmentDistanceKM(s models.ShipmentSnapshot) float64 {
	if s.Origin == nil || s.Destination == nil {
		return 0
	}
	return HaversineKM(*s.Origin, *s.Destination)
}

// HaversineKM is the great-circle distance between a and b in kilometres.
func HaversineKM(a, b models.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// isoWeekday returns Monday=1 .. Sunday=7.
func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return fallback
	}
	return *v
}
