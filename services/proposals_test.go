package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Moustafa-Haydar/cargo-smart/models"
)

func TestNormalizeImportPayload(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{"wrapped", `{"proposals":[{"shipment_id":"s-1"},{"shipment_id":"s-2"}]}`, 2, false},
		{"bare array", `[{"shipment_id":"s-1"}]`, 1, false},
		{"string encoded", `{"proposals":"[{\"shipment_id\":\"s-1\"}]"}`, 1, false},
		{"empty", ``, 0, true},
		{"missing key", `{"items":[]}`, 0, true},
		{"scalar", `42`, 0, true},
		{"broken json", `{"proposals":[`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := NormalizeImportPayload([]byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, models.ErrValidation) {
					t.Fatalf("got %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeImportPayload: %v", err)
			}
			if len(items) != tt.want {
				t.Errorf("got %d items, want %d", len(items), tt.want)
			}
		})
	}
}

func TestImportCollectsPerItemErrors(t *testing.T) {
	s := seededStore()
	svc := NewProposalService(s, nil)

	items := []json.RawMessage{
		json.RawMessage(`{"shipment_id":"s-1","route_id":"R9","eta_minutes":300,"toll_cost_usd":12,"path":["a","b"],"p_delay":0.2}`),
		json.RawMessage(`{"route_id":"R9"}`),
		json.RawMessage(`"{\"shipment_id\":\"s-2\",\"rationale\":\"night shift corridor\"}"`),
		json.RawMessage(`{"shipment_id":"s-3","p_delay":1.5}`),
		json.RawMessage(`[1,2]`),
	}
	res, err := svc.Import(context.Background(), items)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Status != "success" || res.ProposalsCreated != 2 {
		t.Fatalf("result = %+v", res)
	}
	badIdx := []int{}
	for _, e := range res.Errors {
		badIdx = append(badIdx, e.Index)
	}
	if len(badIdx) != 3 || badIdx[0] != 1 || badIdx[1] != 3 || badIdx[2] != 4 {
		t.Errorf("error indexes = %v", badIdx)
	}
	if !strings.Contains(res.Errors[0].Error, "ShipmentID") {
		t.Errorf("missing shipment error = %q", res.Errors[0].Error)
	}

	views, err := svc.ListPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d pending, want 2", len(views))
	}
	rationales := map[string]string{}
	for _, v := range views {
		rationales[v.ShipmentID] = v.Rationale
		if v.Proposal == nil || !v.RequiresApproval {
			t.Errorf("imported proposal view = %+v", v)
		}
	}
	if rationales["s-1"] != "Imported from workflow" || rationales["s-2"] != "night shift corridor" {
		t.Errorf("rationales = %v", rationales)
	}
}

func TestImportRejectsEmptyBatch(t *testing.T) {
	svc := NewProposalService(seededStore(), nil)
	if _, err := svc.Import(context.Background(), nil); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestApproveRejectWorkflow(t *testing.T) {
	s := seededStore()
	svc := NewProposalService(s, nil)
	ctx := context.Background()

	decisionID := "d-1"
	if err := s.RecordDecision(ctx, models.DecisionLogEntry{ID: decisionID, ShipmentID: shipmentID, Action: models.ActionProposeSwitch},
		&models.RouteProposal{ID: "p-1", ShipmentID: shipmentID, DecisionID: &decisionID, Action: models.ActionProposeSwitch, Status: models.ProposalPending}); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	view, err := svc.Approve(ctx, "p-1")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if view.Status != models.ProposalApproved {
		t.Errorf("status = %s", view.Status)
	}
	if _, err := svc.Reject(ctx, "p-1"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("reject after approve: got %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Approve(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	entries, err := svc.Decisions(ctx, shipmentID, 0)
	if err != nil {
		t.Fatalf("Decisions: %v", err)
	}
	if len(entries) != 1 || entries[0].Approved == nil || !*entries[0].Approved {
		t.Errorf("decision approval not mirrored: %+v", entries)
	}
	if _, err := svc.SetDecisionApproval(ctx, decisionID, false); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("second approval: got %v, want ErrInvalidTransition", err)
	}
}
