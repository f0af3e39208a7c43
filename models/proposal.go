package models

import "time"

const (
	ProposalPending  = "pending"
	ProposalApproved = "approved"
	ProposalRejected = "rejected"
	ProposalApplied  = "applied"
)

type RouteProposal struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
	ShipmentID string    `gorm:"column:shipment_id;index" json:"shipment_id"`
	DecisionID *string   `gorm:"column:decision_id" json:"decision_id"`
	Action     string    `gorm:"column:action" json:"action"`

	CurrentRouteID     *string  `gorm:"column:current_route_id" json:"-"`
	CurrentETAMinutes  *float64 `gorm:"column:current_eta_minutes" json:"-"`
	CurrentTollCostUSD *float64 `gorm:"column:current_toll_cost_usd" json:"-"`
	CurrentPath        []string `gorm:"column:current_path;serializer:json" json:"-"`
	CurrentPDelay      *float64 `gorm:"column:current_p_delay" json:"-"`

	ProposedRouteID     *string  `gorm:"column:proposed_route_id" json:"-"`
	ProposedETAMinutes  *float64 `gorm:"column:proposed_eta_minutes" json:"-"`
	ProposedTollCostUSD *float64 `gorm:"column:proposed_toll_cost_usd" json:"-"`
	ProposedPath        []string `gorm:"column:proposed_path;serializer:json" json:"-"`
	ProposedPDelay      *float64 `gorm:"column:proposed_p_delay" json:"-"`

	Rationale        string `gorm:"column:rationale" json:"rationale"`
	RequiresApproval bool   `gorm:"column:requires_approval" json:"requires_approval"`
	Status           string `gorm:"column:status;index" json:"status"`
}

func (RouteProposal) TableName() string { return "route_proposals" }

// CanTransition reports whether a proposal may move from one status to
// another. Transitions only move forward.
func CanTransition(from, to string) bool {
	switch from {
	case ProposalPending:
		return to == ProposalApproved || to == ProposalRejected || to == ProposalApplied
	case ProposalApproved:
		return to == ProposalApplied
	}
	return false
}

// NewRouteProposal captures a propose_switch decision as a pending proposal.
func NewRouteProposal(id, shipmentID, decisionID string, d Decision) RouteProposal {
	p := RouteProposal{
		ID:               id,
		CreatedAt:        d.Timestamp,
		UpdatedAt:        d.Timestamp,
		ShipmentID:       shipmentID,
		Action:           d.Action,
		Rationale:        d.Rationale,
		RequiresApproval: d.RequiresApproval(),
		Status:           ProposalPending,
	}
	if decisionID != "" {
		p.DecisionID = &decisionID
	}
	p.setCurrent(d.Current)
	if d.BestAlt != nil {
		p.setProposed(*d.BestAlt)
	}
	return p
}

func (p *RouteProposal) setCurrent(o RouteOption) {
	id, eta, toll := o.RouteID, o.ETAMinutes, o.TollCostUSD
	p.CurrentRouteID = &id
	p.CurrentETAMinutes = &eta
	p.CurrentTollCostUSD = &toll
	p.CurrentPath = o.Path
	p.CurrentPDelay = o.PDelay
}

func (p *RouteProposal) setProposed(o RouteOption) {
	id, eta, toll := o.RouteID, o.ETAMinutes, o.TollCostUSD
	p.ProposedRouteID = &id
	p.ProposedETAMinutes = &eta
	p.ProposedTollCostUSD = &toll
	p.ProposedPath = o.Path
	p.ProposedPDelay = o.PDelay
}

// ProposalOptionView is the route half of a proposal as rendered by the API.
type ProposalOptionView struct {
	RouteID     *string  `json:"route_id"`
	ETAMinutes  *float64 `json:"eta_minutes"`
	TollCostUSD *float64 `json:"toll_cost_usd"`
	Path        []string `json:"path"`
	PDelay      *float64 `json:"p_delay"`
}

type ProposalView struct {
	ID               string              `json:"id"`
	ShipmentID       string              `json:"shipment_id"`
	Action           string              `json:"action"`
	Current          ProposalOptionView  `json:"current"`
	Proposal         *ProposalOptionView `json:"proposal"`
	Rationale        string              `json:"rationale"`
	RequiresApproval bool                `json:"requires_approval"`
	Status           string              `json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
}

func (p RouteProposal) View() ProposalView {
	v := ProposalView{
		ID:         p.ID,
		ShipmentID: p.ShipmentID,
		Action:     p.Action,
		Current: ProposalOptionView{
			RouteID:     p.CurrentRouteID,
			ETAMinutes:  p.CurrentETAMinutes,
			TollCostUSD: p.CurrentTollCostUSD,
			Path:        p.CurrentPath,
			PDelay:      p.CurrentPDelay,
		},
		Rationale:        p.Rationale,
		RequiresApproval: p.RequiresApproval,
		Status:           p.Status,
		CreatedAt:        p.CreatedAt,
	}
	if p.Action == ActionProposeSwitch {
		v.Proposal = &ProposalOptionView{
			RouteID:     p.ProposedRouteID,
			ETAMinutes:  p.ProposedETAMinutes,
			TollCostUSD: p.ProposedTollCostUSD,
			Path:        p.ProposedPath,
			PDelay:      p.ProposedPDelay,
		}
	}
	return v
}
