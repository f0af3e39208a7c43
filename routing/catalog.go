package routing

import (
	"context"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Moustafa-Haydar/cargo-smart/models"
)

// Catalog lists the known corridor alternatives for each route.
type Catalog struct {
	Routes map[string]CatalogRoute `yaml:"routes"`
}

type CatalogRoute struct {
	TollCostUSD  *float64           `yaml:"toll_cost_usd"`
	Alternatives []CatalogAlternate `yaml:"alternatives"`
}

type CatalogAlternate struct {
	RouteID     string   `yaml:"route_id"`
	ETAMinutes  float64  `yaml:"eta_minutes"`
	TollCostUSD float64  `yaml:"toll_cost_usd"`
	Path        []string `yaml:"path"`
}

func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse route catalog %s: %w", path, err)
	}
	for id, r := range c.Routes {
		for i, alt := range r.Alternatives {
			if alt.RouteID == "" {
				return nil, fmt.Errorf("route catalog: %s alternative %d has no route_id", id, i)
			}
		}
	}
	return &c, nil
}

// CatalogProvider serves alternatives from a static corridor catalog keyed
// by the shipment's current route id.
type CatalogProvider struct {
	src     RouteSource
	catalog *Catalog
}

func NewCatalogProvider(src RouteSource, catalog *Catalog) *CatalogProvider {
	if catalog == nil {
		catalog = &Catalog{}
	}
	return &CatalogProvider{src: src, catalog: catalog}
}

func (c *CatalogProvider) CurrentOption(ctx context.Context, shipmentID string) (models.RouteOption, error) {
	opt, err := lookupCurrent(ctx, c.src, shipmentID)
	if err != nil {
		return opt, err
	}
	if entry, ok := c.catalog.Routes[opt.RouteID]; ok && entry.TollCostUSD != nil {
		opt.TollCostUSD = math.Max(0, *entry.TollCostUSD)
	}
	return opt, nil
}

func (c *CatalogProvider) Alternatives(ctx context.Context, shipmentID string, maxK int) ([]models.RouteOption, error) {
	current, err := c.CurrentOption(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	entry := c.catalog.Routes[current.RouteID]

	seen := map[string]bool{current.RouteID: true}
	var alts []models.RouteOption
	for _, alt := range entry.Alternatives {
		if len(alts) >= maxK {
			break
		}
		if seen[alt.RouteID] {
			continue
		}
		seen[alt.RouteID] = true
		alts = append(alts, models.RouteOption{
			RouteID:     alt.RouteID,
			ETAMinutes:  math.Max(MinAlternativeETA, alt.ETAMinutes),
			TollCostUSD: math.Max(0, alt.TollCostUSD),
			Path:        append([]string(nil), alt.Path...),
		})
	}
	return alts, nil
}
