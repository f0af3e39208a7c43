package models

import "strings"

type Vehicle struct {
	ID       string  `gorm:"column:id;primaryKey" json:"id"`
	Plate    string  `gorm:"column:plate" json:"plate"`
	DriverID *string `gorm:"column:driver_id" json:"driver_id"`
}

func (Vehicle) TableName() string { return "vehicles" }

type Driver struct {
	ID         string  `gorm:"column:id;primaryKey" json:"id"`
	FirstName  string  `gorm:"column:first_name" json:"first_name"`
	LastName   string  `gorm:"column:last_name" json:"last_name"`
	ExternalID *string `gorm:"column:external_id" json:"external_id"`
}

func (Driver) TableName() string { return "drivers" }

// DriverInfo is the notification target resolved for a shipment.
type DriverInfo struct {
	DriverID   *string `json:"driver_id"`
	DriverName *string `json:"driver_name"`
	ExternalID *string `json:"external_id"`
}

func (d Driver) Info() DriverInfo {
	id := d.ID
	name := strings.TrimSpace(d.FirstName + " " + d.LastName)
	return DriverInfo{DriverID: &id, DriverName: &name, ExternalID: d.ExternalID}
}
