package predictor

import (
	"math"
	"time"

	"github.com/Moustafa-Haydar/cargo-smart/features"
	"github.com/Moustafa-Haydar/cargo-smart/models"
)

const (
	fallbackBase       = 0.1
	fallbackCap        = 0.9
	longHaulKM         = 500.0
	heavyPrecipitation = 5.0
)

// FallbackPDelay is the rule-based delay estimate used whenever the model
// cannot answer. The result is always within [0, 0.9].
func FallbackPDelay(s models.ShipmentSnapshot, now time.Time) float64 {
	p := fallbackBase

	if s.ScheduledAt != nil {
		overdue := now.Sub(*s.ScheduledAt)
		switch s.Status {
		case models.ShipmentPlanned:
			if overdue > 0 {
				p += 0.4
			}
		case models.ShipmentEnroute:
			if overdue > 48*time.Hour {
				p += 0.3
			}
		case models.ShipmentDelivered:
			if s.DeliveredAt != nil && s.DeliveredAt.Sub(*s.ScheduledAt) > 24*time.Hour {
				p += 0.5
			}
		}
	}

	if features.ShipmentDistanceKM(s) > longHaulKM {
		p += 0.2
	}
	if s.Precipitation != nil && *s.Precipitation > heavyPrecipitation {
		p += 0.3
	}
	if c := features.CanonicalCondition(s.Condition); c != "" && c != "Clear" {
		p += 0.1
	}
	return math.Min(p, fallbackCap)
}
