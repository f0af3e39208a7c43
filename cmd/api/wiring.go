package main

import (
	"fmt"
	"strings"

	"github.com/Moustafa-Haydar/cargo-smart/config"
	"github.com/Moustafa-Haydar/cargo-smart/decision"
	"github.com/Moustafa-Haydar/cargo-smart/routing"
	"github.com/Moustafa-Haydar/cargo-smart/store"
	"github.com/Moustafa-Haydar/cargo-smart/store/gormstore"
	"github.com/Moustafa-Haydar/cargo-smart/store/memstore"
)

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Server.StoreDriver {
	case "memory":
		return memstore.New(), nil
	case "postgres":
		db, err := gormstore.Open(cfg.Database.GetDSN())
		if err != nil {
			return nil, err
		}
		if err := gormstore.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return gormstore.New(db), nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Server.StoreDriver)
}

func newRoutingProvider(cfg config.EngineConfig, src routing.RouteSource) (routing.Provider, error) {
	switch strings.ToLower(cfg.RoutingProvider) {
	case "graph":
		return routing.NewGraphProvider(src, cfg.Seed()), nil
	case "catalog":
		catalog, err := routing.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		return routing.NewCatalogProvider(src, catalog), nil
	}
	return nil, fmt.Errorf("unknown ROUTING_PROVIDER %q", cfg.RoutingProvider)
}

func engineConfig(cfg config.EngineConfig) decision.Config {
	return decision.Config{
		Threshold:       cfg.Threshold,
		MaxAlternatives: cfg.MaxAlternatives,
		ImprovementEps:  cfg.ImprovementEps,
		AltDiscount:     cfg.AltDiscount,
		Weights: decision.Weights{
			ETA:    cfg.WeightETA,
			Toll:   cfg.WeightToll,
			PDelay: cfg.WeightPDelay,
		},
		Timeout:     cfg.Timeout,
		StrictAudit: cfg.StrictAudit,
	}
}
