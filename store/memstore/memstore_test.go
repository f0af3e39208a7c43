package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/store"
)

func ptr[T any](v T) *T { return &v }

func seeded() *Store {
	s := New()
	s.PutRoute(models.Route{ID: "R0"},
		models.RouteSegment{ID: "g1", RouteID: "R0", Seq: 0, FromNode: "a", ToNode: "b"},
		models.RouteSegment{ID: "g2", RouteID: "R0", Seq: 1, FromNode: "b", ToNode: "c"},
	)
	s.PutDriver(models.Driver{ID: "d-1", FirstName: "Rami", LastName: "Haddad", ExternalID: ptr("ext-1")})
	s.PutVehicle(models.Vehicle{ID: "v-1", Plate: "B 12345", DriverID: ptr("d-1")})
	s.PutShipment(models.Shipment{ID: "s-1", Status: models.ShipmentEnroute, RouteID: ptr("R0"), VehicleID: ptr("v-1")})
	s.PutShipment(models.Shipment{ID: "s-2", Status: models.ShipmentPlanned})
	return s
}

func TestShipmentSnapshotCountsSegments(t *testing.T) {
	s := seeded()
	snap, err := s.ShipmentSnapshot(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("ShipmentSnapshot: %v", err)
	}
	if snap.SegmentCount != 2 || snap.RouteID != "R0" {
		t.Errorf("snapshot = %+v", snap)
	}
	if _, err := s.ShipmentSnapshot(context.Background(), "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, _, err := s.ShipmentRoute(context.Background(), "s-2"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("shipment without route: got %v, want ErrNotFound", err)
	}
}

func TestApplyLastWriteWins(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	if _, err := s.ApplyRoute(ctx, store.ApplyRequest{ShipmentID: "s-1", RouteID: "R1"}); err != nil {
		t.Fatalf("apply R1: %v", err)
	}
	if _, err := s.ApplyRoute(ctx, store.ApplyRequest{ShipmentID: "s-1", RouteID: "R2"}); err != nil {
		t.Fatalf("apply R2: %v", err)
	}
	sh, _ := s.Shipment("s-1")
	if sh.RouteID == nil || *sh.RouteID != "R2" {
		t.Fatalf("route_id = %v, want R2", sh.RouteID)
	}
}

func TestApplyCreatesRouteOnceFromPath(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	req := store.ApplyRequest{ShipmentID: "s-1", RouteID: "R-new", Path: []string{"a", "x", "c"}}

	first, err := s.ApplyRoute(ctx, req)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !first.RouteCreated {
		t.Error("first apply should create the route")
	}
	_, segs, ok := s.Route("R-new")
	if !ok || len(segs) != 2 || segs[1].FromNode != "x" {
		t.Errorf("segments = %+v", segs)
	}

	second, err := s.ApplyRoute(ctx, req)
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if second.RouteCreated {
		t.Error("re-apply must reuse the route")
	}
}

func TestApplyUnknownShipment(t *testing.T) {
	s := seeded()
	_, err := s.ApplyRoute(context.Background(), store.ApplyRequest{ShipmentID: "ghost", RouteID: "R1"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, _, ok := s.Route("R1"); ok {
		t.Error("route must not be created when the shipment is unknown")
	}
}

func TestApplyMarksProposalsAndEnqueuesNotification(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	if err := s.CreateProposals(ctx, []models.RouteProposal{
		{ID: "p-1", ShipmentID: "s-1", ProposedRouteID: ptr("R9"), Status: models.ProposalApproved, Action: models.ActionProposeSwitch},
		{ID: "p-2", ShipmentID: "s-1", ProposedRouteID: ptr("R8"), Status: models.ProposalPending, Action: models.ActionProposeSwitch},
		{ID: "p-3", ShipmentID: "s-1", ProposedRouteID: ptr("R9"), Status: models.ProposalRejected, Action: models.ActionProposeSwitch},
	}); err != nil {
		t.Fatalf("CreateProposals: %v", err)
	}

	res, err := s.ApplyRoute(ctx, store.ApplyRequest{
		ShipmentID: "s-1",
		RouteID:    "R9",
		Now:        now,
		Notification: &models.NotificationOutbox{
			ID: "n-1", ShipmentID: "s-1", RouteID: "R9", ExternalIDs: []string{"fallback"},
			Status: models.OutboxPending, NextAttemptAt: now,
		},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.ProposalsApplied != 1 {
		t.Errorf("proposals applied = %d, want 1", res.ProposalsApplied)
	}
	if res.Driver == nil || *res.Driver.DriverName != "Rami Haddad" {
		t.Errorf("driver = %+v", res.Driver)
	}
	if len(res.ExternalIDs) != 1 || res.ExternalIDs[0] != "ext-1" {
		t.Errorf("external ids = %v, want driver id", res.ExternalIDs)
	}

	for id, want := range map[string]string{"p-1": models.ProposalApplied, "p-2": models.ProposalPending, "p-3": models.ProposalRejected} {
		p, _ := s.GetProposal(ctx, id)
		if p.Status != want {
			t.Errorf("%s status = %s, want %s", id, p.Status, want)
		}
	}

	due, err := s.DueNotifications(ctx, now, 10)
	if err != nil {
		t.Fatalf("DueNotifications: %v", err)
	}
	if len(due) != 1 || due[0].ID != "n-1" {
		t.Errorf("due = %+v", due)
	}
	if later, _ := s.DueNotifications(ctx, now.Add(-time.Second), 10); len(later) != 0 {
		t.Errorf("notification due too early: %+v", later)
	}

	claimed, ok, err := s.ClaimNotification(ctx, "n-1", now, time.Minute)
	if err != nil || !ok || !claimed.NextAttemptAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("ClaimNotification = %+v, %t, %v", claimed, ok, err)
	}
	if _, ok, _ := s.ClaimNotification(ctx, "n-1", now.Add(time.Second), time.Minute); ok {
		t.Error("second claim within the lease succeeded")
	}
	if due, _ := s.DueNotifications(ctx, now.Add(30*time.Second), 10); len(due) != 0 {
		t.Errorf("claimed notification listed as due: %+v", due)
	}
	if _, _, err := s.ClaimNotification(ctx, "n-missing", now, time.Minute); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("claim of unknown row = %v, want ErrNotFound", err)
	}
}

func TestDecisionLogAppendAndApproval(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	for _, id := range []string{"d-1", "d-2"} {
		if err := s.RecordDecision(ctx, models.DecisionLogEntry{ID: id, ShipmentID: "s-1", Action: models.ActionStick}, nil); err != nil {
			t.Fatalf("RecordDecision: %v", err)
		}
	}
	if err := s.RecordDecision(ctx, models.DecisionLogEntry{ID: "d-1"}, nil); !errors.Is(err, models.ErrPersistence) {
		t.Errorf("duplicate id: got %v, want ErrPersistence", err)
	}

	entries, _ := s.ListDecisions(ctx, "s-1", 0)
	if len(entries) != 2 || entries[0].ID != "d-2" {
		t.Fatalf("entries = %+v, want newest first", entries)
	}

	got, err := s.SetApproval(ctx, "d-1", true)
	if err != nil {
		t.Fatalf("SetApproval: %v", err)
	}
	if got.Approved == nil || !*got.Approved {
		t.Errorf("approved = %v", got.Approved)
	}
	if _, err := s.SetApproval(ctx, "d-1", false); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("second approval: got %v, want ErrInvalidTransition", err)
	}
	if _, err := s.SetApproval(ctx, "missing", true); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestRecordDecisionWithProposal(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	p := models.RouteProposal{ID: "p-1", ShipmentID: "s-1", DecisionID: ptr("d-1"), Status: models.ProposalPending}
	if err := s.RecordDecision(ctx, models.DecisionLogEntry{ID: "d-1", ShipmentID: "s-1"}, &p); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	rejected, err := s.TransitionProposal(ctx, "p-1", models.ProposalRejected)
	if err != nil {
		t.Fatalf("TransitionProposal: %v", err)
	}
	if rejected.Status != models.ProposalRejected {
		t.Errorf("status = %s", rejected.Status)
	}
	entries, _ := s.ListDecisions(ctx, "s-1", 1)
	if entries[0].Approved == nil || *entries[0].Approved {
		t.Errorf("decision approval = %v, want false", entries[0].Approved)
	}

	if _, err := s.TransitionProposal(ctx, "p-1", models.ProposalApproved); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("reopen: got %v, want ErrInvalidTransition", err)
	}
}

func TestListProposalsNewestFirst(t *testing.T) {
	s := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = s.CreateProposals(context.Background(), []models.RouteProposal{
		{ID: "old", Status: models.ProposalPending, CreatedAt: base},
		{ID: "new", Status: models.ProposalPending, CreatedAt: base.Add(time.Hour)},
		{ID: "done", Status: models.ProposalApplied, CreatedAt: base.Add(2 * time.Hour)},
	})
	got, err := s.ListProposals(context.Background(), models.ProposalPending, 0)
	if err != nil {
		t.Fatalf("ListProposals: %v", err)
	}
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Errorf("got %+v", got)
	}
}

func TestUpdateWeatherKeepsMissingFields(t *testing.T) {
	s := New()
	s.PutShipment(models.Shipment{ID: "s-1", Humidity: ptr(70.0)})
	err := s.UpdateWeather(context.Background(), models.WeatherObservation{ShipmentID: "s-1", TempC: ptr(31.5), Condition: ptr("Rain")})
	if err != nil {
		t.Fatalf("UpdateWeather: %v", err)
	}
	sh, _ := s.Shipment("s-1")
	if *sh.TempC != 31.5 || *sh.Humidity != 70 || *sh.Condition != "Rain" {
		t.Errorf("shipment = %+v", sh)
	}
}
