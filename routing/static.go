package routing

import (
	"context"
	"fmt"

	"github.com/Moustafa-Haydar/cargo-smart/models"
)

// StaticProvider returns fixed options per shipment.
type StaticProvider struct {
	Current map[string]models.RouteOption
	Alts    map[string][]models.RouteOption
	// Err, when set, is returned by every call.
	Err error
}

func (s *StaticProvider) CurrentOption(_ context.Context, shipmentID string) (models.RouteOption, error) {
	if s.Err != nil {
		return models.RouteOption{}, s.Err
	}
	opt, ok := s.Current[shipmentID]
	if !ok {
		return models.RouteOption{}, fmt.Errorf("shipment %s: %w", shipmentID, models.ErrNotFound)
	}
	return opt, nil
}

func (s *StaticProvider) Alternatives(ctx context.Context, shipmentID string, maxK int) ([]models.RouteOption, error) {
	if _, err := s.CurrentOption(ctx, shipmentID); err != nil {
		return nil, err
	}
	alts := s.Alts[shipmentID]
	if len(alts) > maxK {
		alts = alts[:maxK]
	}
	return append([]models.RouteOption(nil), alts...), nil
}
