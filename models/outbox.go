package models

import (
	"encoding/json"
	"time"
)

const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// NotificationOutbox is a push notification queued inside the apply
// transaction and delivered after commit.
type NotificationOutbox struct {
	ID            string          `gorm:"column:id;primaryKey" json:"id"`
	ShipmentID    string          `gorm:"column:shipment_id" json:"shipment_id"`
	RouteID       string          `gorm:"column:route_id" json:"route_id"`
	ExternalIDs   []string        `gorm:"column:external_ids;serializer:json" json:"external_ids"`
	Payload       json.RawMessage `gorm:"column:payload;type:jsonb" json:"payload"`
	Status        string          `gorm:"column:status;index" json:"status"`
	AttemptCount  int             `gorm:"column:attempt_count" json:"attempt_count"`
	NextAttemptAt time.Time       `gorm:"column:next_attempt_at" json:"next_attempt_at"`
	LastError     *string         `gorm:"column:last_error" json:"last_error"`
	ProviderID    *string         `gorm:"column:provider_id" json:"provider_id"`
	SentAt        *time.Time      `gorm:"column:sent_at" json:"sent_at"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (NotificationOutbox) TableName() string { return "notification_outbox" }

// RouteUpdatePayload is the body of a route-applied push notification.
type RouteUpdatePayload struct {
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data"`
}
