// Command rerouter periodically asks the API to re-evaluate every active
// shipment so high-risk routes surface as proposals without a user request.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Moustafa-Haydar/cargo-smart/config"
)

var (
	shipmentsEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cargo_rerouter_shipments_evaluated_total",
		Help: "Total number of shipments evaluated by outcome action.",
	}, []string{"action"})
	evaluationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cargo_rerouter_evaluations_failed_total",
		Help: "Total number of evaluation calls that failed.",
	})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cargo_rerouter_cycle_duration_seconds",
		Help:    "Duration of a full reroute cycle.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	})
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dbPool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("db pool init failed: %v", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatalf("db ping failed: %v", err)
	}
	log.Printf("db connected")

	go serveHTTP(fmt.Sprintf(":%d", cfg.Rerouter.MetricsPort))

	ev := newEvaluator(cfg.Rerouter.APIBaseURL, cfg.Engine.Timeout+5*time.Second)
	interval := time.Duration(cfg.Rerouter.IntervalSec) * time.Second
	log.Printf("rerouter running: interval=%s api=%s batch=%d", interval, cfg.Rerouter.APIBaseURL, cfg.Rerouter.BatchSize)

	// Run first cycle immediately
	runCycle(ctx, pgxShipments{dbPool}, ev, cfg.Rerouter.BatchSize)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCycle(ctx, pgxShipments{dbPool}, ev, cfg.Rerouter.BatchSize)
		case <-ctx.Done():
			log.Printf("rerouter shutting down")
			return
		}
	}
}

type pgxShipments struct {
	pool *pgxpool.Pool
}

// ActiveShipments returns shipments that are still moving and have a route,
// least recently updated first.
func (p pgxShipments) ActiveShipments(ctx context.Context, limit int) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id
		FROM shipments
		WHERE status IN ('PLANNED', 'ENROUTE') AND route_id IS NOT NULL
		ORDER BY updated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func serveHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("metrics server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("metrics server failed: %v", err)
	}
}
