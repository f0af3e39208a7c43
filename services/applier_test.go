package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/store/memstore"
)

const shipmentID = "3f2a9c1e-7b44-4d0b-9a51-0c5e2e7f1a20"

func newApplier(s *memstore.Store, sender Sender) *Applier {
	a := NewApplier(s, NewOutboxProcessor(s, sender, Backoff{MaxAttempts: 3}), nil)
	a.now = func() time.Time { return testNow }
	return a
}

func TestApplyValidation(t *testing.T) {
	a := newApplier(seededStore(), &flakySender{})
	tests := []struct {
		name string
		in   ApplyInput
	}{
		{"neither", ApplyInput{}},
		{"blank id", ApplyInput{ProposedRouteID: "   "}},
		{"both", ApplyInput{ProposedRouteID: "R1", Path: []string{"a", "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Apply(context.Background(), shipmentID, tt.in)
			if !errors.Is(err, models.ErrValidation) {
				t.Fatalf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestApplyByRouteIDNotifiesDriver(t *testing.T) {
	s := seededStore()
	sender := &flakySender{}
	a := newApplier(s, sender)

	out, err := a.Apply(context.Background(), shipmentID, ApplyInput{ProposedRouteID: "R1"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Status != "updated" || out.RouteID != "R1" {
		t.Errorf("outcome = %+v", out)
	}
	if !out.NotificationSent || out.NotificationID == nil || *out.NotificationID != "os-123" {
		t.Errorf("notification = sent:%t id:%v err:%v", out.NotificationSent, out.NotificationID, out.NotificationError)
	}
	if out.DriverInfo == nil || *out.DriverInfo.DriverName != "Lina Khoury" {
		t.Errorf("driver = %+v", out.DriverInfo)
	}

	if len(sender.got) != 1 {
		t.Fatalf("sender calls = %d", len(sender.got))
	}
	n := sender.got[0]
	if len(n.ExternalIDs) != 1 || n.ExternalIDs[0] != "driver-ext" {
		t.Errorf("external ids = %v", n.ExternalIDs)
	}
	var payload models.RouteUpdatePayload
	if err := json.Unmarshal(n.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Title != "Route Updated" || payload.Message != "Route proposal has been applied for shipment 3f2a9c1e..." {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Data["route_id"] != "R1" || payload.Data["action"] != "route_applied" || payload.Data["type"] != "route_update" {
		t.Errorf("payload data = %v", payload.Data)
	}
}

func TestApplyByPathCreatesRoute(t *testing.T) {
	s := seededStore()
	a := newApplier(s, &flakySender{})
	ids := []string{"route-new", "notif-1"}
	a.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	out, err := a.Apply(context.Background(), shipmentID, ApplyInput{Path: []string{"a", "b", "c"}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.RouteID != "route-new" || !out.RouteCreated {
		t.Errorf("outcome = %+v", out)
	}
	if _, segs, ok := s.Route("route-new"); !ok || len(segs) != 2 {
		t.Errorf("route-new segments = %v (exists=%t)", segs, ok)
	}
	sh, _ := s.Shipment(shipmentID)
	if *sh.RouteID != "route-new" {
		t.Errorf("shipment route = %s", *sh.RouteID)
	}
}

func TestApplyNotificationFailureKeepsReassignment(t *testing.T) {
	s := seededStore()
	a := newApplier(s, &flakySender{fail: 10})

	out, err := a.Apply(context.Background(), shipmentID, ApplyInput{ProposedRouteID: "R7"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.NotificationSent || out.NotificationError == nil {
		t.Errorf("outcome = %+v", out)
	}
	sh, _ := s.Shipment(shipmentID)
	if *sh.RouteID != "R7" {
		t.Errorf("route = %s, want R7", *sh.RouteID)
	}
	due, _ := s.DueNotifications(context.Background(), testNow.Add(time.Hour), 10)
	if len(due) != 1 || due[0].AttemptCount != 1 {
		t.Errorf("notification should remain queued for retry: %+v", due)
	}
}

func TestApplyLastWriteWins(t *testing.T) {
	s := seededStore()
	a := newApplier(s, DisabledSender{})
	for _, id := range []string{"R1", "R2"} {
		if _, err := a.Apply(context.Background(), shipmentID, ApplyInput{ProposedRouteID: id}); err != nil {
			t.Fatalf("Apply(%s): %v", id, err)
		}
	}
	sh, _ := s.Shipment(shipmentID)
	if *sh.RouteID != "R2" {
		t.Errorf("route = %s, want R2", *sh.RouteID)
	}
}

func TestApplyUnknownShipment(t *testing.T) {
	a := newApplier(seededStore(), &flakySender{})
	_, err := a.Apply(context.Background(), "ghost", ApplyInput{ProposedRouteID: "R1"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
