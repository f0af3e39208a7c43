package models

import "time"

const (
	ShipmentPlanned   = "PLANNED"
	ShipmentEnroute   = "ENROUTE"
	ShipmentDelivered = "DELIVERED"
	ShipmentCancelled = "CANCELLED"
)

// Shipment is the persisted shipment row. Only the columns the reroute
// engine reads or writes are mapped.
type Shipment struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	OriginLat     *float64   `gorm:"column:origin_lat" json:"origin_lat"`
	OriginLng     *float64   `gorm:"column:origin_lng" json:"origin_lng"`
	DestLat       *float64   `gorm:"column:destination_lat" json:"destination_lat"`
	DestLng       *float64   `gorm:"column:destination_lng" json:"destination_lng"`
	ScheduledAt   *time.Time `gorm:"column:scheduled_at" json:"scheduled_at"`
	DeliveredAt   *time.Time `gorm:"column:delivered_at" json:"delivered_at"`
	Status        string     `gorm:"column:status" json:"status"`
	RouteID       *string    `gorm:"column:route_id" json:"route_id"`
	VehicleID     *string    `gorm:"column:vehicle_id" json:"vehicle_id"`
	TempC         *float64   `gorm:"column:temp_c" json:"temp_c"`
	WindSpeed     *float64   `gorm:"column:wind_speed" json:"wind_speed"`
	Humidity      *float64   `gorm:"column:humidity" json:"humidity"`
	Precipitation *float64   `gorm:"column:precipitation" json:"precipitation"`
	Condition     *string    `gorm:"column:condition" json:"condition"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Shipment) TableName() string { return "shipments" }

// LatLng is a WGS84 coordinate in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ShipmentSnapshot is the read-only view of a shipment taken at the start of
// an evaluation. It is never cached between evaluations.
type ShipmentSnapshot struct {
	ID            string     `json:"id"`
	Origin        *LatLng    `json:"origin,omitempty"`
	Destination   *LatLng    `json:"destination,omitempty"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	Status        string     `json:"status"`
	RouteID       string     `json:"route_id,omitempty"`
	SegmentCount  int        `json:"segment_count"`
	TempC         *float64   `json:"temp_c,omitempty"`
	WindSpeed     *float64   `json:"wind_speed,omitempty"`
	Humidity      *float64   `json:"humidity,omitempty"`
	Precipitation *float64   `json:"precipitation,omitempty"`
	Condition     string     `json:"condition,omitempty"`
}

// Snapshot converts the row into the engine's read model.
func (s Shipment) Snapshot(segmentCount int) ShipmentSnapshot {
	snap := ShipmentSnapshot{
		ID:            s.ID,
		ScheduledAt:   s.ScheduledAt,
		DeliveredAt:   s.DeliveredAt,
		Status:        s.Status,
		SegmentCount:  segmentCount,
		TempC:         s.TempC,
		WindSpeed:     s.WindSpeed,
		Humidity:      s.Humidity,
		Precipitation: s.Precipitation,
	}
	if s.OriginLat != nil && s.OriginLng != nil {
		snap.Origin = &LatLng{Lat: *s.OriginLat, Lng: *s.OriginLng}
	}
	if s.DestLat != nil && s.DestLng != nil {
		snap.Destination = &LatLng{Lat: *s.DestLat, Lng: *s.DestLng}
	}
	if s.RouteID != nil {
		snap.RouteID = *s.RouteID
	}
	if s.Condition != nil {
		snap.Condition = *s.Condition
	}
	return snap
}

// WeatherObservation is one reading for a shipment's corridor, as received by
// the collector.
type WeatherObservation struct {
	ShipmentID    string   `json:"shipment_id"`
	TempC         *float64 `json:"temp_c"`
	WindSpeed     *float64 `json:"wind_speed"`
	Humidity      *float64 `json:"humidity"`
	Precipitation *float64 `json:"precipitation"`
	Condition     *string  `json:"condition"`
}
