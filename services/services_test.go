package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/store/memstore"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type flakySender struct {
	calls int
	fail  int
	got   []models.NotificationOutbox
}

func (s *flakySender) Send(_ context.Context, n models.NotificationOutbox) (string, error) {
	s.calls++
	s.got = append(s.got, n)
	if s.calls <= s.fail {
		return "", errors.New("rate_limited")
	}
	return "os-123", nil
}

func seededStore() *memstore.Store {
	s := memstore.New()
	s.PutRoute(models.Route{ID: "R0"})
	s.PutDriver(models.Driver{ID: "d-1", FirstName: "Lina", LastName: "Khoury", ExternalID: ptr("driver-ext")})
	s.PutVehicle(models.Vehicle{ID: "v-1", DriverID: ptr("d-1")})
	s.PutShipment(models.Shipment{ID: "3f2a9c1e-7b44-4d0b-9a51-0c5e2e7f1a20", Status: models.ShipmentEnroute, RouteID: ptr("R0"), VehicleID: ptr("v-1")})
	s.PutShipment(models.Shipment{ID: "s-nodriver", Status: models.ShipmentPlanned})
	return s
}

func TestCacheServiceWithoutClient(t *testing.T) {
	var c *CacheService
	ctx := context.Background()
	var dest []string
	if hit, err := c.Get(ctx, "k", &dest); hit || err != nil {
		t.Errorf("Get = %v, %v; want miss", hit, err)
	}
	if err := c.Set(ctx, "k", []string{"v"}, time.Second); err != nil {
		t.Errorf("Set: %v", err)
	}
	if err := c.Publish(ctx, DecisionChannel, "x"); err != nil {
		t.Errorf("Publish: %v", err)
	}
	if ps := NewCacheServiceFromClient(nil).Subscribe(ctx, DecisionChannel); ps != nil {
		t.Error("Subscribe without client should return nil")
	}
}
