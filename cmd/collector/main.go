// Command collector subscribes to per-shipment weather readings over MQTT and
// keeps the weather columns of the shipments table current.
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

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Moustafa-Haydar/cargo-smart/config"
	"github.com/Moustafa-Haydar/cargo-smart/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cc := cfg.Collector

	dbPool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("db pool init failed: %v", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatalf("db ping failed: %v", err)
	}

	metricsAddr := fmt.Sprintf(":%d", cc.MetricsPort)
	go serveHTTP(metricsAddr)

	writer := pgxWeather{dbPool}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cc.MQTTBroker)
	opts.SetClientID(cc.ClientID + "-" + time.Now().Format("20060102150405"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetDefaultPublishHandler(func(client mqtt.Client, message mqtt.Message) {
		processMessage(ctx, writer, message.Topic(), message.Payload())
	})
	opts.OnConnect = func(client mqtt.Client) {
		token := client.Subscribe(cc.MQTTTopic, 0, nil)
		token.Wait()
		if token.Error() != nil {
			log.Printf("mqtt subscribe error: %v", token.Error())
			return
		}
		log.Printf("collector subscribed to topic=%s", cc.MQTTTopic)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("mqtt connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		log.Fatalf("mqtt connection failed: %v", token.Error())
	}

	log.Printf("collector running, mqtt=%s db=ok metrics=%s", cc.MQTTBroker, metricsAddr)

	<-ctx.Done()
	log.Printf("collector shutting down")
	client.Disconnect(250)
}

type pgxWeather struct {
	pool *pgxpool.Pool
}

// UpdateWeather overwrites the weather columns present in obs and leaves the
// others untouched.
func (p pgxWeather) UpdateWeather(ctx context.Context, obs models.WeatherObservation) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE shipments SET
			temp_c = COALESCE($2, temp_c),
			wind_speed = COALESCE($3, wind_speed),
			humidity = COALESCE($4, humidity),
			precipitation = COALESCE($5, precipitation),
			condition = COALESCE($6, condition),
			updated_at = NOW()
		WHERE id = $1
	`, obs.ShipmentID, obs.TempC, obs.WindSpeed, obs.Humidity, obs.Precipitation, obs.Condition)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shipment %s: %w", obs.ShipmentID, models.ErrNotFound)
	}
	return nil
}

func serveHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
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
