package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Moustafa-Haydar/cargo-smart/features"
	"github.com/Moustafa-Haydar/cargo-smart/models"
)

var (
	msgsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cargo_collector_messages_received_total",
		Help: "Total number of MQTT weather messages received by collector.",
	})
	msgsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cargo_collector_messages_stored_total",
		Help: "Total number of weather readings written to shipments.",
	})
	msgsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cargo_collector_messages_failed_total",
		Help: "Total number of messages rejected or failed to store.",
	})
)

type weatherWriter interface {
	UpdateWeather(ctx context.Context, obs models.WeatherObservation) error
}

var errEmptyReading = errors.New("reading carries no weather fields")

// parseObservation decodes one reading. The shipment id comes from the
// payload, or from the last topic level when the payload omits it.
func parseObservation(topic string, payload []byte) (models.WeatherObservation, error) {
	var obs models.WeatherObservation
	if err := json.Unmarshal(payload, &obs); err != nil {
		return obs, fmt.Errorf("invalid payload: %w", err)
	}
	if obs.ShipmentID == "" {
		if i := strings.LastIndex(topic, "/"); i >= 0 && i < len(topic)-1 {
			obs.ShipmentID = topic[i+1:]
		}
	}
	if obs.ShipmentID == "" || obs.ShipmentID == "+" || obs.ShipmentID == "#" {
		return obs, errors.New("missing shipment_id")
	}
	if obs.TempC == nil && obs.WindSpeed == nil && obs.Humidity == nil && obs.Precipitation == nil && obs.Condition == nil {
		return obs, errEmptyReading
	}
	if obs.Condition != nil {
		c := features.CanonicalCondition(*obs.Condition)
		obs.Condition = &c
	}
	return obs, nil
}

func processMessage(ctx context.Context, w weatherWriter, topic string, payload []byte) bool {
	msgsReceived.Inc()

	obs, err := parseObservation(topic, payload)
	if err != nil {
		msgsFailed.Inc()
		log.Printf("topic=%s: %v", topic, err)
		return false
	}
	if err := w.UpdateWeather(ctx, obs); err != nil {
		msgsFailed.Inc()
		log.Printf("weather update failed for shipment=%s: %v", obs.ShipmentID, err)
		return false
	}
	msgsStored.Inc()
	return true
}
