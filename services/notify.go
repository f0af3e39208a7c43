package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Moustafa-Haydar/cargo-smart/config"
	"github.com/Moustafa-Haydar/cargo-smart/models"
)

// ErrNotificationsDisabled is returned by senders without credentials. The
// outbox does not retry it.
var ErrNotificationsDisabled = errors.New("notifications disabled")

type Sender interface {
	// Send delivers n and returns the provider's notification id.
	Send(ctx context.Context, n models.NotificationOutbox) (string, error)
}

// NewSender returns a OneSignal sender, or a disabled one when the app id or
// REST key is missing.
func NewSender(cfg config.NotifyConfig) Sender {
	if !cfg.Enabled() {
		return DisabledSender{}
	}
	return &OneSignalSender{
		appID:  cfg.OneSignalAppID,
		apiKey: cfg.OneSignalAPIKey,
		url:    cfg.OneSignalURL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type DisabledSender struct{}

func (DisabledSender) Send(context.Context, models.NotificationOutbox) (string, error) {
	return "", ErrNotificationsDisabled
}

type OneSignalSender struct {
	appID  string
	apiKey string
	url    string
	client *http.Client
}

type oneSignalRequest struct {
	AppID            string              `json:"app_id"`
	Contents         map[string]string   `json:"contents"`
	Headings         map[string]string   `json:"headings"`
	TargetChannel    string              `json:"target_channel"`
	IncludeAliases   map[string][]string `json:"include_aliases,omitempty"`
	IncludedSegments []string            `json:"included_segments,omitempty"`
	Data             map[string]string   `json:"data,omitempty"`
}

type oneSignalResponse struct {
	ID     string `json:"id"`
	Errors any    `json:"errors"`
}

func (s *OneSignalSender) Send(ctx context.Context, n models.NotificationOutbox) (string, error) {
	var payload models.RouteUpdatePayload
	if err := json.Unmarshal(n.Payload, &payload); err != nil {
		return "", fmt.Errorf("decode notification payload: %w", err)
	}

	body := oneSignalRequest{
		AppID:         s.appID,
		Contents:      map[string]string{"en": payload.Message},
		Headings:      map[string]string{"en": payload.Title},
		TargetChannel: "push",
		Data:          payload.Data,
	}
	if len(n.ExternalIDs) > 0 {
		body.IncludeAliases = map[string][]string{"external_id": n.ExternalIDs}
	} else {
		body.IncludedSegments = []string{"All"}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Basic "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("onesignal request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("onesignal returned %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	var out oneSignalResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode onesignal response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("onesignal rejected notification: %v", out.Errors)
	}
	return out.ID, nil
}

// RouteUpdateNotification builds the pending outbox row for an applied
// route. externalIDs is the caller's fallback target list.
func RouteUpdateNotification(id, shipmentID, routeID string, externalIDs []string) (models.NotificationOutbox, error) {
	short := shipmentID
	if len(short) > 8 {
		short = short[:8]
	}
	payload, err := json.Marshal(models.RouteUpdatePayload{
		Title:   "Route Updated",
		Message: fmt.Sprintf("Route proposal has been applied for shipment %s...", short),
		Data: map[string]string{
			"type":        "route_update",
			"shipment_id": shipmentID,
			"route_id":    routeID,
			"action":      "route_applied",
		},
	})
	if err != nil {
		return models.NotificationOutbox{}, err
	}
	return models.NotificationOutbox{
		ID:          id,
		ShipmentID:  shipmentID,
		RouteID:     routeID,
		ExternalIDs: externalIDs,
		Payload:     payload,
		Status:      models.OutboxPending,
	}, nil
}
