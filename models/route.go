package models

import "time"

type Route struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name" json:"name"`
	Geometry  string    `gorm:"column:geometry" json:"geometry"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Route) TableName() string { return "routes" }

type RouteSegment struct {
	ID       string `gorm:"column:id;primaryKey" json:"id"`
	RouteID  string `gorm:"column:route_id" json:"route_id"`
	Seq      int    `gorm:"column:seq" json:"seq"`
	FromNode string `gorm:"column:from_node" json:"from_node"`
	ToNode   string `gorm:"column:to_node" json:"to_node"`
}

func (RouteSegment) TableName() string { return "route_segments" }

// RouteOption is one candidate path for a shipment. PDelay is attached after
// prediction and is nil until then.
type RouteOption struct {
	RouteID     string   `json:"route_id"`
	ETAMinutes  float64  `json:"eta_minutes"`
	TollCostUSD float64  `json:"toll_cost_usd"`
	Path        []string `json:"path"`
	PDelay      *float64 `json:"p_delay,omitempty"`
}

// WithPDelay returns a copy of the option carrying the given delay probability.
func (o RouteOption) WithPDelay(p float64) RouteOption {
	o.PDelay = &p
	if o.Path != nil {
		o.Path = append([]string(nil), o.Path...)
	}
	return o
}
