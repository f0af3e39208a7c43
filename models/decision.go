package models

import (
	"encoding/json"
	"time"
)

const (
	ActionStick         = "stick"
	ActionProposeSwitch = "propose_switch"
)

// Decision is the outcome of one evaluation. BestAlt is nil iff Action is
// ActionStick.
type Decision struct {
	Action    string       `json:"action"`
	Current   RouteOption  `json:"current"`
	BestAlt   *RouteOption `json:"best_alt"`
	CurScore  float64      `json:"current_score"`
	BestScore *float64     `json:"best_alt_score"`
	Rationale string       `json:"rationale"`
	Timestamp time.Time    `json:"timestamp"`
}

func (d Decision) RequiresApproval() bool { return d.Action == ActionProposeSwitch }

// InputSnapshot is the input half of a decision log entry.
type InputSnapshot struct {
	Features map[string]float64 `json:"features"`
	Current  RouteOption        `json:"current"`
}

// OutputDecision is the output half of a decision log entry.
type OutputDecision struct {
	Action       string       `json:"action"`
	CurrentScore float64      `json:"current_score"`
	BestAltScore *float64     `json:"best_alt_score"`
	BestAlt      *RouteOption `json:"best_alt"`
	Rationale    string       `json:"rationale"`
}

// DecisionLogEntry is the append-only audit row of one evaluation. Approved
// is the only column written after insert.
type DecisionLogEntry struct {
	ID              string          `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
	ShipmentID      string          `gorm:"column:shipment_id;index" json:"shipment_id"`
	CurrentRouteID  *string         `gorm:"column:current_route_id" json:"current_route_id"`
	ProposedRouteID *string         `gorm:"column:proposed_route_id" json:"proposed_route_id"`
	Action          string          `gorm:"column:action" json:"action"`
	InputSnapshot   json.RawMessage `gorm:"column:input_snapshot;type:jsonb" json:"input_snapshot"`
	OutputDecision  json.RawMessage `gorm:"column:output_decision;type:jsonb" json:"output_decision"`
	Approved        *bool           `gorm:"column:approved" json:"approved"`
}

func (DecisionLogEntry) TableName() string { return "agent_decisions" }

// NewDecisionLogEntry builds the audit row for a decision. currentRouteID is
// the route the shipment had when the evaluation started.
func NewDecisionLogEntry(id, shipmentID, currentRouteID string, features map[string]float64, d Decision) (DecisionLogEntry, error) {
	in, err := json.Marshal(InputSnapshot{Features: features, Current: d.Current})
	if err != nil {
		return DecisionLogEntry{}, err
	}
	out, err := json.Marshal(OutputDecision{
		Action:       d.Action,
		CurrentScore: d.CurScore,
		BestAltScore: d.BestScore,
		BestAlt:      d.BestAlt,
		Rationale:    d.Rationale,
	})
	if err != nil {
		return DecisionLogEntry{}, err
	}
	entry := DecisionLogEntry{
		ID:             id,
		CreatedAt:      d.Timestamp,
		ShipmentID:     shipmentID,
		Action:         d.Action,
		InputSnapshot:  in,
		OutputDecision: out,
	}
	if currentRouteID != "" {
		entry.CurrentRouteID = &currentRouteID
	}
	if d.BestAlt != nil {
		proposed := d.BestAlt.RouteID
		entry.ProposedRouteID = &proposed
	}
	return entry, nil
}

// Output decodes the stored output decision.
func (e DecisionLogEntry) Output() (OutputDecision, error) {
	var out OutputDecision
	err := json.Unmarshal(e.OutputDecision, &out)
	return out, err
}
