package routing

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/Moustafa-Haydar/cargo-smart/models"
)

// GraphProvider derives the current option from the shipment's persisted
// route segments and proposes perturbed variants of it as alternatives.
type GraphProvider struct {
	src   RouteSource
	mu    sync.Mutex
	rng   *rand.Rand
	newID func() string
}

func NewGraphProvider(src RouteSource, seed uint64) *GraphProvider {
	return &GraphProvider{
		src:   src,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		newID: uuid.NewString,
	}
}

// CurrentOption derives the shipment's current option from its route segments.
func (g *GraphProvider) CurrentOption(ctx context.Context, shipmentID string) (models.RouteOption, error) {
	return lookupCurrent(ctx, g.src, shipmentID)
}

func (g *GraphProvider) Alternatives(ctx context.Context, shipmentID string, maxK int) ([]models.RouteOption, error) {
	current, err := g.CurrentOption(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if maxK <= 0 {
		return nil, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	seen := map[string]bool{current.RouteID: true}
	alts := make([]models.RouteOption, 0, maxK)
	for i := 0; i < maxK; i++ {
		id := g.newID()
		if seen[id] {
			continue
		}
		seen[id] = true

		path := make([]string, len(current.Path))
		for j := range path {
			path[j] = fmt.Sprintf("alt_node_%d", j)
		}
		alts = append(alts, models.RouteOption{
			RouteID:     id,
			ETAMinutes:  math.Max(MinAlternativeETA, current.ETAMinutes+float64(g.rng.IntN(181)-60)),
			TollCostUSD: math.Max(0, current.TollCostUSD+float64(g.rng.IntN(31)-10)),
			Path:        path,
		})
	}
	return alts, nil
}
