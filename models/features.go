package models

// FeatureVector is the fixed 13-column input of the delay model: ten numeric
// columns followed by three integer-encoded categoricals.
type FeatureVector struct {
	TempC         float64 `json:"temp_c"`
	WindSpeed     float64 `json:"wind_speed"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	HaversineKM   float64 `json:"haversine_km"`
	PlannedHour   float64 `json:"planned_hour"`
	PlannedDOW    float64 `json:"planned_dow"`
	PlannedMonth  float64 `json:"planned_month"`
	IsWeekend     float64 `json:"is_weekend"`
	LeadTimeHours float64 `json:"lead_time_hours"`
	GPSProvider   int     `json:"gps_provider"`
	MarketRegular int     `json:"market_regular"`
	Condition     int     `json:"condition"`
}

// FeatureNames are the snapshot keys, in model column order.
var FeatureNames = []string{
	"temp_c", "wind_speed", "humidity", "precipitation",
	"haversine_km", "planned_hour", "planned_dow", "planned_month",
	"is_weekend", "lead_time_hours",
	"gps_provider", "market_regular", "condition",
}

// ModelColumns are the column names the classifier was trained with. They
// differ from FeatureNames only in the spelling of the first two categoricals.
var ModelColumns = []string{
	"temp_c", "wind_speed", "humidity", "precipitation",
	"haversine_km", "planned_hour", "planned_dow", "planned_month",
	"is_weekend", "lead_time_hours",
	"GpsProvider", "Market/Regular", "condition",
}

// Values returns the row in model column order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.TempC, f.WindSpeed, f.Humidity, f.Precipitation,
		f.HaversineKM, f.PlannedHour, f.PlannedDOW, f.PlannedMonth,
		f.IsWeekend, f.LeadTimeHours,
		float64(f.GPSProvider), float64(f.MarketRegular), float64(f.Condition),
	}
}

// Snapshot returns the named feature map recorded in the decision log.
func (f FeatureVector) Snapshot() map[string]float64 {
	vals := f.Values()
	out := make(map[string]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		out[name] = vals[i]
	}
	return out
}
