// Package routing supplies the current route option of a shipment and
// candidate alternatives to it. Callers must not depend on how a backend
// produces alternatives.
package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/Moustafa-Haydar/cargo-smart/models"
)

const (
	// MinAlternativeETA is the floor applied to every alternative's ETA.
	MinAlternativeETA = 60.0
	// SegmentMinutes approximates the travel time of one route segment.
	SegmentMinutes = 60.0
	// DefaultETAMinutes is used when the route has no segments.
	DefaultETAMinutes = 480.0
	DefaultTollUSD    = 25.0
)

type Provider interface {
	CurrentOption(ctx context.Context, shipmentID string) (models.RouteOption, error)
	// Alternatives returns 0..maxK options, each with a route id distinct
	// from the current route and from each other.
	Alternatives(ctx context.Context, shipmentID string, maxK int) ([]models.RouteOption, error)
}

// RouteSource resolves the persisted route of a shipment.
type RouteSource interface {
	ShipmentRoute(ctx context.Context, shipmentID string) (models.Route, []models.RouteSegment, error)
}

// currentFromSegments derives the current option from a persisted route.
func currentFromSegments(route models.Route, segments []models.RouteSegment) models.RouteOption {
	eta := DefaultETAMinutes
	if len(segments) > 0 {
		eta = float64(len(segments)) * SegmentMinutes
	}
	return models.RouteOption{
		RouteID:     route.ID,
		ETAMinutes:  eta,
		TollCostUSD: DefaultTollUSD,
		Path:        pathFromSegments(segments),
	}
}

func pathFromSegments(segments []models.RouteSegment) []string {
	path := make([]string, 0, len(segments)+1)
	for i, seg := range segments {
		from := seg.FromNode
		if from == "" {
			from = fmt.Sprintf("node_%d", i)
		}
		path = append(path, from)
	}
	last := fmt.Sprintf("node_%d", len(segments))
	if n := len(segments); n > 0 && segments[n-1].ToNode != "" {
		last = segments[n-1].ToNode
	}
	return append(path, last)
}

func lookupCurrent(ctx context.Context, src RouteSource, shipmentID string) (models.RouteOption, error) {
	route, segments, err := src.ShipmentRoute(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.RouteOption{}, err
		}
		return models.RouteOption{}, fmt.Errorf("%w: resolve route of shipment %s: %v", models.ErrRoutingProvider, shipmentID, err)
	}
	return currentFromSegments(route, segments), nil
}
