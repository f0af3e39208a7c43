package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/services"
)

type ProposalWorkflow interface {
	ListPending(ctx context.Context, limit int) ([]models.ProposalView, error)
	Import(ctx context.Context, items []json.RawMessage) (services.ImportResult, error)
	Approve(ctx context.Context, id string) (models.ProposalView, error)
	Reject(ctx context.Context, id string) (models.ProposalView, error)
	Decisions(ctx context.Context, shipmentID string, limit int) ([]models.DecisionLogEntry, error)
	SetDecisionApproval(ctx context.Context, decisionID string, approved bool) (models.DecisionLogEntry, error)
}

type ProposalHandler struct {
	svc ProposalWorkflow
}

func NewProposalHandler(svc ProposalWorkflow) *ProposalHandler {
	return &ProposalHandler{svc: svc}
}

func (h *ProposalHandler) List(c *gin.Context) {
	views, err := h.svc.ListPending(c.Request.Context(), ParseLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": views, "count": len(views)})
}

func (h *ProposalHandler) Import(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 4<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid JSON", "error": "validation"})
		return
	}
	items, err := services.NormalizeImportPayload(body)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.svc.Import(c.Request.Context(), items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ProposalHandler) Approve(c *gin.Context) {
	h.transition(c, h.svc.Approve)
}

func (h *ProposalHandler) Reject(c *gin.Context) {
	h.transition(c, h.svc.Reject)
}

func (h *ProposalHandler) transition(c *gin.Context, fn func(context.Context, string) (models.ProposalView, error)) {
	view, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ProposalHandler) Decisions(c *gin.Context) {
	rows, err := h.svc.Decisions(c.Request.Context(), c.Param("id"), ParseLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: rows, Count: len(rows)})
}

type approvalRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

func (h *ProposalHandler) SetApproval(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "approved must be true or false", "error": "validation"})
		return
	}
	entry, err := h.svc.SetDecisionApproval(c.Request.Context(), c.Param("id"), *req.Approved)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
