package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/store"
)

const (
	proposalListTTL   = 30 * time.Second
	importedRationale = "Imported from workflow"
)

type ProposalStore interface {
	store.Proposals
	store.DecisionLog
}

// ImportItem is one flat proposal in a bulk import.
type ImportItem struct {
	ShipmentID  string   `json:"shipment_id" validate:"required"`
	RouteID     *string  `json:"route_id"`
	ETAMinutes  *float64 `json:"eta_minutes" validate:"omitempty,gte=0"`
	TollCostUSD *float64 `json:"toll_cost_usd" validate:"omitempty,gte=0"`
	Path        []string `json:"path"`
	PDelay      *float64 `json:"p_delay" validate:"omitempty,gte=0,lte=1"`
	Rationale   *string  `json:"rationale"`
}

type ImportError struct {
	Index      int    `json:"index"`
	ShipmentID string `json:"shipment_id,omitempty"`
	Error      string `json:"error"`
}

type ImportedProposal struct {
	ID         string    `json:"id"`
	ShipmentID string    `json:"shipment_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type ImportResult struct {
	Status           string             `json:"status"`
	ProposalsCreated int                `json:"proposals_created"`
	Proposals        []ImportedProposal `json:"proposals"`
	Errors           []ImportError      `json:"errors"`
}

// ProposalService runs the human review workflow around route proposals.
type ProposalService struct {
	store    ProposalStore
	cache    *CacheService
	validate *validator.Validate
	newID    func() string
	now      func() time.Time
}

func NewProposalService(s ProposalStore, cache *CacheService) *ProposalService {
	return &ProposalService{
		store:    s,
		cache:    cache,
		validate: validator.New(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// ListPending returns pending proposals newest first.
func (s *ProposalService) ListPending(ctx context.Context, limit int) ([]models.ProposalView, error) {
	key := fmt.Sprintf("%spending:%d", proposalsKeyPrefix, limit)
	var cached []models.ProposalView
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.store.ListProposals(ctx, models.ProposalPending, limit)
	if err != nil {
		return nil, err
	}
	views := make([]models.ProposalView, 0, len(rows))
	for _, p := range rows {
		views = append(views, p.View())
	}
	if err := s.cache.Set(ctx, key, views, proposalListTTL); err != nil {
		log.Printf("proposal cache write failed: %v", err)
	}
	return views, nil
}

func (s *ProposalService) Approve(ctx context.Context, id string) (models.ProposalView, error) {
	return s.transition(ctx, id, models.ProposalApproved)
}

func (s *ProposalService) Reject(ctx context.Context, id string) (models.ProposalView, error) {
	return s.transition(ctx, id, models.ProposalRejected)
}

func (s *ProposalService) transition(ctx context.Context, id, to string) (models.ProposalView, error) {
	p, err := s.store.TransitionProposal(ctx, id, to)
	if err != nil {
		return models.ProposalView{}, err
	}
	s.invalidate(ctx)
	log.Printf("proposal %s shipment=%s -> %s", p.ID, p.ShipmentID, to)
	return p.View(), nil
}

// SetDecisionApproval records the review outcome of a logged decision.
func (s *ProposalService) SetDecisionApproval(ctx context.Context, decisionID string, approved bool) (models.DecisionLogEntry, error) {
	return s.store.SetApproval(ctx, decisionID, approved)
}

func (s *ProposalService) Decisions(ctx context.Context, shipmentID string, limit int) ([]models.DecisionLogEntry, error) {
	return s.store.ListDecisions(ctx, shipmentID, limit)
}

// Import stores externally generated proposals. Invalid items are reported
// per index and do not stop the batch.
func (s *ProposalService) Import(ctx context.Context, items []json.RawMessage) (ImportResult, error) {
	if len(items) == 0 {
		return ImportResult{}, fmt.Errorf("%w: no proposals provided", models.ErrValidation)
	}
	res := ImportResult{Status: "success", Proposals: []ImportedProposal{}, Errors: []ImportError{}}
	for idx, raw := range items {
		item, err := decodeImportItem(raw)
		if err != nil {
			res.Errors = append(res.Errors, ImportError{Index: idx, Error: err.Error()})
			continue
		}
		if err := s.validate.Struct(item); err != nil {
			res.Errors = append(res.Errors, ImportError{Index: idx, ShipmentID: item.ShipmentID, Error: "validation failed: " + err.Error()})
			continue
		}

		p := s.importedProposal(item)
		if err := s.store.CreateProposals(ctx, []models.RouteProposal{p}); err != nil {
			res.Errors = append(res.Errors, ImportError{Index: idx, ShipmentID: item.ShipmentID, Error: err.Error()})
			continue
		}
		res.Proposals = append(res.Proposals, ImportedProposal{ID: p.ID, ShipmentID: p.ShipmentID, CreatedAt: p.CreatedAt})
	}
	res.ProposalsCreated = len(res.Proposals)
	if res.ProposalsCreated > 0 {
		s.invalidate(ctx)
	}
	return res, nil
}

func (s *ProposalService) importedProposal(item ImportItem) models.RouteProposal {
	now := s.now().UTC()
	rationale := importedRationale
	if item.Rationale != nil {
		rationale = *item.Rationale
	}
	return models.RouteProposal{
		ID:                  s.newID(),
		CreatedAt:           now,
		UpdatedAt:           now,
		ShipmentID:          item.ShipmentID,
		Action:              models.ActionProposeSwitch,
		ProposedRouteID:     item.RouteID,
		ProposedETAMinutes:  item.ETAMinutes,
		ProposedTollCostUSD: item.TollCostUSD,
		ProposedPath:        item.Path,
		ProposedPDelay:      item.PDelay,
		Rationale:           rationale,
		RequiresApproval:    true,
		Status:              models.ProposalPending,
	}
}

func (s *ProposalService) invalidate(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, proposalsKeyPrefix); err != nil {
		log.Printf("proposal cache invalidation failed: %v", err)
	}
}

// decodeImportItem accepts an object or a JSON string holding one.
func decodeImportItem(raw json.RawMessage) (ImportItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return ImportItem{}, fmt.Errorf("proposal item is a string and could not be parsed")
		}
		raw = json.RawMessage(strings.TrimSpace(inner))
	}
	if len(raw) == 0 || raw[0] != '{' {
		return ImportItem{}, fmt.Errorf("proposal is not an object")
	}
	var item ImportItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return ImportItem{}, fmt.Errorf("proposal is not an object: %v", err)
	}
	return item, nil
}

// NormalizeImportPayload accepts {"proposals":[...]}, a bare array, or
// {"proposals":"<json array>"}.
func NormalizeImportPayload(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: no proposals provided", models.ErrValidation)
	}
	switch body[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON", models.ErrValidation)
		}
		return items, nil
	case '{':
		var wrapper struct {
			Proposals json.RawMessage `json:"proposals"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON", models.ErrValidation)
		}
		inner := bytes.TrimSpace(wrapper.Proposals)
		if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
			return nil, fmt.Errorf("%w: expected { \"proposals\": [...] } or an array", models.ErrValidation)
		}
		if inner[0] == '"' {
			var s string
			if err := json.Unmarshal(inner, &s); err != nil {
				return nil, fmt.Errorf("%w: 'proposals' is a string and could not be parsed", models.ErrValidation)
			}
			inner = []byte(s)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(inner, &items); err != nil {
			return nil, fmt.Errorf("%w: 'proposals' must be an array", models.ErrValidation)
		}
		return items, nil
	}
	return nil, fmt.Errorf("%w: expected { \"proposals\": [...] } or an array", models.ErrValidation)
}
