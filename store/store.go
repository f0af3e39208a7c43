// Package store defines the persistence contracts of the reroute engine.
// Implementations live in memstore (in-process) and gormstore (Postgres).
package store

import (
	"context"
	"time"

	"github.com/Moustafa-Haydar/cargo-smart/models"
)

type Shipments interface {
	// ShipmentSnapshot reads the shipment fresh from storage.
	ShipmentSnapshot(ctx context.Context, shipmentID string) (models.ShipmentSnapshot, error)
	// ShipmentRoute returns the shipment's active route and its ordered
	// segments. A shipment without a route is ErrNotFound.
	ShipmentRoute(ctx context.Context, shipmentID string) (models.Route, []models.RouteSegment, error)
}

// DecisionLog is append-only apart from the approval flag.
type DecisionLog interface {
	// RecordDecision appends entry and, when proposal is non-nil, creates it
	// in the same transaction.
	RecordDecision(ctx context.Context, entry models.DecisionLogEntry, proposal *models.RouteProposal) error
	ListDecisions(ctx context.Context, shipmentID string, limit int) ([]models.DecisionLogEntry, error)
	// SetApproval sets the tri-state flag once. Setting an already-set flag
	// is ErrInvalidTransition.
	SetApproval(ctx context.Context, decisionID string, approved bool) (models.DecisionLogEntry, error)
}

type Proposals interface {
	CreateProposals(ctx context.Context, proposals []models.RouteProposal) error
	GetProposal(ctx context.Context, id string) (models.RouteProposal, error)
	// ListProposals returns proposals with the given status, newest first.
	ListProposals(ctx context.Context, status string, limit int) ([]models.RouteProposal, error)
	// TransitionProposal moves a proposal forward and mirrors approve/reject
	// onto the linked decision's approval flag when it is still unset.
	TransitionProposal(ctx context.Context, id, to string) (models.RouteProposal, error)
}

// ApplyRequest reassigns a shipment to RouteID. Path is used only when the
// route does not exist yet.
type ApplyRequest struct {
	ShipmentID string
	RouteID    string
	Path       []string
	// Notification, when set, is enqueued in the same transaction. Its
	// ExternalIDs are replaced by the driver's external id when one resolves.
	Notification *models.NotificationOutbox
	Now          time.Time
}

type ApplyResult struct {
	RouteID          string
	RouteCreated     bool
	ProposalsApplied int
	Driver           *models.DriverInfo
	NotificationID   string
	ExternalIDs      []string
}

type Applier interface {
	// ApplyRoute resolves or creates the route and reassigns the shipment
	// atomically. Concurrent applies on one shipment are last-write-wins.
	ApplyRoute(ctx context.Context, req ApplyRequest) (ApplyResult, error)
}

type Outbox interface {
	GetNotification(ctx context.Context, id string) (models.NotificationOutbox, error)
	// DueNotifications lists pending rows whose next attempt is not after now.
	DueNotifications(ctx context.Context, now time.Time, limit int) ([]models.NotificationOutbox, error)
	// ClaimNotification leases a due pending row to one sender by moving its
	// next attempt to now+lease. It reports false when the row is no longer
	// pending or another sender holds the lease.
	ClaimNotification(ctx context.Context, id string, now time.Time, lease time.Duration) (models.NotificationOutbox, bool, error)
	SaveNotification(ctx context.Context, n models.NotificationOutbox) error
}

type Store interface {
	Shipments
	DecisionLog
	Proposals
	Applier
	Outbox
}

// SegmentsFromPath turns consecutive path nodes into route segments.
func SegmentsFromPath(routeID string, path []string, newID func() string) []models.RouteSegment {
	if len(path) < 2 {
		return nil
	}
	segs := make([]models.RouteSegment, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		segs = append(segs, models.RouteSegment{
			ID:       newID(),
			RouteID:  routeID,
			Seq:      i,
			FromNode: path[i],
			ToNode:   path[i+1],
		})
	}
	return segs
}

// RouteName labels a route created by apply.
func RouteName(routeID string) string {
	short := routeID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Applied route " + short
}
