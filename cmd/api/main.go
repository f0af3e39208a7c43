package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Moustafa-Haydar/cargo-smart/config"
	"github.com/Moustafa-Haydar/cargo-smart/decision"
	"github.com/Moustafa-Haydar/cargo-smart/features"
	"github.com/Moustafa-Haydar/cargo-smart/handlers"
	"github.com/Moustafa-Haydar/cargo-smart/predictor"
	"github.com/Moustafa-Haydar/cargo-smart/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Persistence
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	log.Printf("store ready: driver=%s", cfg.Server.StoreDriver)

	// Redis is optional: without it the proposal cache and the live feed are disabled.
	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Printf("WARNING: Redis not available, running without cache: %v", err)
	}
	defer cache.Close()

	routes, err := newRoutingProvider(cfg.Engine, st)
	if err != nil {
		log.Fatalf("Failed to set up routing provider: %v", err)
	}

	holder := predictor.NewFileModelHolder(cfg.Model.Path)
	// Warm the model; a load failure is logged by the holder and answered by the fallback.
	_, _ = holder.Get()
	delays := predictor.New(holder, features.NewBuilder(), cfg.Model.Timeout)

	engine := decision.NewEngine(engineConfig(cfg.Engine), st, routes, delays, st, decision.WithPublisher(cache))

	sender := services.NewSender(cfg.Notify)
	if !cfg.Notify.Enabled() {
		log.Printf("WARNING: OneSignal credentials missing, route notifications will be marked failed")
	}
	outbox := services.NewOutboxProcessor(st, sender, services.BackoffFromConfig(cfg.Outbox)).WithLease(cfg.Outbox.ClaimLease)
	go outbox.Run(ctx, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)

	applier := services.NewApplier(st, outbox, cache)
	proposals := services.NewProposalService(st, cache)

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(cfg.CORS, handlers.NewRerouteHandler(engine, applier), handlers.NewProposalHandler(proposals), cache)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
