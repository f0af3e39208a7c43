package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Moustafa-Haydar/cargo-smart/metrics"
	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/store"
)

// ApplyInput names the route to apply. Exactly one of ProposedRouteID and
// Path must be set.
type ApplyInput struct {
	ProposedRouteID string   `json:"proposed_route_id"`
	Path            []string `json:"path"`
	ExternalUserIDs []string `json:"external_user_ids"`
}

type ApplyOutcome struct {
	Status            string             `json:"status"`
	ShipmentID        string             `json:"shipment_id"`
	RouteID           string             `json:"route_id"`
	RouteCreated      bool               `json:"route_created"`
	ProposalsApplied  int                `json:"proposals_applied"`
	NotificationSent  bool               `json:"notification_sent"`
	NotificationID    *string            `json:"notification_id"`
	NotificationError *string            `json:"notification_error"`
	DriverInfo        *models.DriverInfo `json:"driver_info"`
}

// Applier commits route reassignments. The push notification is queued in
// the same transaction and dispatched after commit; its failure never undoes
// the reassignment.
type Applier struct {
	store  store.Applier
	outbox *OutboxProcessor
	cache  *CacheService
	newID  func() string
	now    func() time.Time
}

func NewApplier(s store.Applier, outbox *OutboxProcessor, cache *CacheService) *Applier {
	return &Applier{store: s, outbox: outbox, cache: cache, newID: uuid.NewString, now: time.Now}
}

func (a *Applier) Apply(ctx context.Context, shipmentID string, in ApplyInput) (ApplyOutcome, error) {
	routeID := strings.TrimSpace(in.ProposedRouteID)
	hasID, hasPath := routeID != "", len(in.Path) > 0
	if shipmentID == "" {
		return ApplyOutcome{}, fmt.Errorf("%w: shipment id is required", models.ErrValidation)
	}
	if hasID == hasPath {
		return ApplyOutcome{}, fmt.Errorf("%w: provide exactly one of proposed_route_id or path", models.ErrValidation)
	}
	if !hasID {
		routeID = a.newID()
	}

	now := a.now().UTC()
	n, err := RouteUpdateNotification(a.newID(), shipmentID, routeID, in.ExternalUserIDs)
	if err != nil {
		return ApplyOutcome{}, err
	}
	n.NextAttemptAt = now
	n.CreatedAt = now
	n.UpdatedAt = now

	res, err := a.store.ApplyRoute(ctx, store.ApplyRequest{
		ShipmentID:   shipmentID,
		RouteID:      routeID,
		Path:         in.Path,
		Notification: &n,
		Now:          now,
	})
	if err != nil {
		return ApplyOutcome{}, err
	}
	metrics.RoutesApplied.Inc()
	log.Printf("route applied shipment=%s route=%s created=%t proposals=%d", shipmentID, res.RouteID, res.RouteCreated, res.ProposalsApplied)

	if res.ProposalsApplied > 0 {
		if err := a.cache.DeletePrefix(ctx, proposalsKeyPrefix); err != nil {
			log.Printf("proposal cache invalidation failed: %v", err)
		}
	}

	out := ApplyOutcome{
		Status:           "updated",
		ShipmentID:       shipmentID,
		RouteID:          res.RouteID,
		RouteCreated:     res.RouteCreated,
		ProposalsApplied: res.ProposalsApplied,
		DriverInfo:       res.Driver,
	}
	a.dispatch(ctx, res, &out)
	return out, nil
}

// dispatch attempts immediate delivery of the queued notification. Failures
// stay in the outbox for the worker.
func (a *Applier) dispatch(ctx context.Context, res store.ApplyResult, out *ApplyOutcome) {
	if res.NotificationID == "" || a.outbox == nil {
		return
	}
	n, err := a.outbox.store.GetNotification(ctx, res.NotificationID)
	if err == nil {
		n, err = a.outbox.Deliver(ctx, n, a.now().UTC())
	}
	if err != nil {
		msg := err.Error()
		out.NotificationError = &msg
		log.Printf("route notification not sent shipment=%s route=%s: %v", out.ShipmentID, res.RouteID, err)
		return
	}
	out.NotificationSent = n.Status == models.OutboxSent
	out.NotificationID = n.ProviderID
}
