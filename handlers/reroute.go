package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Moustafa-Haydar/cargo-smart/decision"
	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/services"
)

type Evaluator interface {
	Evaluate(ctx context.Context, shipmentID string) (decision.Result, error)
}

type RouteApplier interface {
	Apply(ctx context.Context, shipmentID string, in services.ApplyInput) (services.ApplyOutcome, error)
}

type RerouteHandler struct {
	engine  Evaluator
	applier RouteApplier
}

func NewRerouteHandler(engine Evaluator, applier RouteApplier) *RerouteHandler {
	return &RerouteHandler{engine: engine, applier: applier}
}

type EvaluateResponse struct {
	ShipmentID       string              `json:"shipment_id"`
	Action           string              `json:"action"`
	Current          models.RouteOption  `json:"current"`
	Proposal         *models.RouteOption `json:"proposal"`
	Rationale        string              `json:"rationale"`
	RequiresApproval bool                `json:"requires_approval"`
	CurrentScore     float64             `json:"current_score"`
	BestAltScore     *float64            `json:"best_alt_score"`
	PDelay           float64             `json:"p_delay"`
	PDelaySource     string              `json:"p_delay_source"`
	DecisionID       string              `json:"decision_id"`
	ProposalID       string              `json:"proposal_id,omitempty"`
	AuditLogged      bool                `json:"audit_logged"`
}

func (h *RerouteHandler) Evaluate(c *gin.Context) {
	res, err := h.engine.Evaluate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	d := res.Decision
	c.JSON(http.StatusOK, EvaluateResponse{
		ShipmentID:       res.ShipmentID,
		Action:           d.Action,
		Current:          d.Current,
		Proposal:         d.BestAlt,
		Rationale:        d.Rationale,
		RequiresApproval: d.RequiresApproval(),
		CurrentScore:     d.CurScore,
		BestAltScore:     d.BestScore,
		PDelay:           res.PDelay,
		PDelaySource:     res.Source,
		DecisionID:       res.DecisionID,
		ProposalID:       res.ProposalID,
		AuditLogged:      res.AuditLogged,
	})
}

func (h *RerouteHandler) Apply(c *gin.Context) {
	var in services.ApplyInput
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid JSON", "error": "validation"})
		return
	}
	out, err := h.applier.Apply(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
