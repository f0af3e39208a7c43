// Package decision scores route options and decides, per evaluation, whether
// a shipment should stick to its route or be proposed a switch.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Moustafa-Haydar/cargo-smart/metrics"
	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/predictor"
	"github.com/Moustafa-Haydar/cargo-smart/routing"
)

type Config struct {
	Threshold       float64
	MaxAlternatives int
	ImprovementEps  float64
	// AltDiscount approximates an alternative's delay probability as
	// max(0, p_delay - AltDiscount) instead of predicting it.
	AltDiscount float64
	Weights     Weights
	// Timeout bounds the routing and model calls of one evaluation.
	Timeout time.Duration
	// StrictAudit fails the evaluation when the decision log write fails.
	StrictAudit bool
}

func DefaultConfig() Config {
	return Config{
		Threshold:       0.3,
		MaxAlternatives: 3,
		ImprovementEps:  0.05,
		AltDiscount:     0.10,
		Weights:         DefaultWeights(),
		Timeout:         5 * time.Second,
	}
}

type Snapshots interface {
	ShipmentSnapshot(ctx context.Context, shipmentID string) (models.ShipmentSnapshot, error)
}

type DelayPredictor interface {
	Predict(ctx context.Context, s models.ShipmentSnapshot, opt models.RouteOption) predictor.Prediction
}

type Recorder interface {
	RecordDecision(ctx context.Context, entry models.DecisionLogEntry, proposal *models.RouteProposal) error
}

// Publisher receives every decision after it is recorded. Failures are
// logged and ignored.
type Publisher interface {
	PublishDecision(ctx context.Context, r Result) error
}

// Result is one evaluation outcome together with its audit identifiers.
type Result struct {
	ShipmentID  string          `json:"shipment_id"`
	Decision    models.Decision `json:"decision"`
	PDelay      float64         `json:"p_delay"`
	Source      string          `json:"source"`
	DecisionID  string          `json:"decision_id"`
	ProposalID  string          `json:"proposal_id,omitempty"`
	AuditLogged bool            `json:"audit_logged"`
}

type Engine struct {
	cfg       Config
	snapshots Snapshots
	routes    routing.Provider
	predictor DelayPredictor
	recorder  Recorder
	publisher Publisher
	newID     func() string
	now       func() time.Time
}

type Option func(*Engine)

func WithPublisher(p Publisher) Option { return func(e *Engine) { e.publisher = p } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithIDs(newID func() string) Option { return func(e *Engine) { e.newID = newID } }

func NewEngine(cfg Config, snapshots Snapshots, routes routing.Provider, p DelayPredictor, recorder Recorder, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		snapshots: snapshots,
		routes:    routes,
		predictor: p,
		recorder:  recorder,
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs one decision for a shipment and records exactly one decision
// log entry for it. Routing failures return an error with nothing recorded.
func (e *Engine) Evaluate(ctx context.Context, shipmentID string) (Result, error) {
	start := time.Now()
	res, err := e.evaluate(ctx, shipmentID)
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EvaluationFailures.Inc()
		return Result{}, err
	}
	metrics.Evaluations.WithLabelValues(res.Decision.Action).Inc()
	return res, nil
}

func (e *Engine) evaluate(ctx context.Context, shipmentID string) (Result, error) {
	if shipmentID == "" {
		return Result{}, fmt.Errorf("%w: shipment id is required", models.ErrValidation)
	}
	callCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	snap, err := e.snapshots.ShipmentSnapshot(callCtx, shipmentID)
	if err != nil {
		return Result{}, err
	}
	current, err := e.routes.CurrentOption(callCtx, shipmentID)
	if err != nil {
		return Result{}, routingError(err)
	}

	pred := e.predictor.Predict(callCtx, snap, current)
	current = current.WithPDelay(pred.PDelay)
	curScore := e.cfg.Weights.Score(current, pred.PDelay)

	d := models.Decision{
		Action:   models.ActionStick,
		Current:  current,
		CurScore: curScore,
	}

	switch {
	case pred.PDelay < e.cfg.Threshold:
		d.Rationale = fmt.Sprintf("p_delay=%.2f < threshold %.2f; stay.", pred.PDelay, e.cfg.Threshold)
	default:
		alts, err := e.routes.Alternatives(callCtx, shipmentID, e.cfg.MaxAlternatives)
		if err != nil {
			return Result{}, routingError(err)
		}
		e.chooseAlternative(&d, pred.PDelay, alts)
	}
	d.Timestamp = e.now().UTC()

	res := Result{
		ShipmentID: shipmentID,
		Decision:   d,
		PDelay:     pred.PDelay,
		Source:     pred.Source,
		DecisionID: e.newID(),
	}
	if err := e.record(ctx, &res, snap.RouteID, pred.Features.Snapshot()); err != nil {
		return Result{}, err
	}
	if e.publisher != nil {
		if err := e.publisher.PublishDecision(ctx, res); err != nil {
			log.Printf("decision publish failed shipment=%s: %v", shipmentID, err)
		}
	}
	return res, nil
}

// chooseAlternative fills the high-risk branches of d.
func (e *Engine) chooseAlternative(d *models.Decision, pDelay float64, alts []models.RouteOption) {
	if len(alts) == 0 {
		d.Rationale = "High risk but no alternatives; stay."
		return
	}

	altP := pDelay - e.cfg.AltDiscount
	if altP < 0 {
		altP = 0
	}
	var best models.RouteOption
	var bestScore float64
	for i, alt := range alts {
		s := e.cfg.Weights.Score(alt, altP)
		if i == 0 || s > bestScore {
			best, bestScore = alt.WithPDelay(altP), s
		}
	}
	d.BestScore = &bestScore

	improvement := Improvement(d.CurScore, bestScore)
	if improvement >= e.cfg.ImprovementEps {
		d.Action = models.ActionProposeSwitch
		d.BestAlt = &best
		d.Rationale = fmt.Sprintf("p_delay=%.2f ≥ threshold; alt improves score %.1f%%. Alt ETA %.0fm (Δ%+.0fm).",
			pDelay, improvement*100, best.ETAMinutes, best.ETAMinutes-d.Current.ETAMinutes)
		return
	}
	d.Rationale = fmt.Sprintf("Alternatives exist but improvement %.1f%% < %.0f%%; insufficient improvement, stay.",
		improvement*100, e.cfg.ImprovementEps*100)
}

// record writes the decision log entry, and the pending proposal for a
// switch, in one call. A failed write is logged and counted unless the
// engine runs with StrictAudit.
func (e *Engine) record(ctx context.Context, res *Result, currentRouteID string, features map[string]float64) error {
	entry, err := models.NewDecisionLogEntry(res.DecisionID, res.ShipmentID, currentRouteID, features, res.Decision)
	if err != nil {
		return fmt.Errorf("%w: encode decision: %v", models.ErrPersistence, err)
	}
	var proposal *models.RouteProposal
	if res.Decision.RequiresApproval() {
		p := models.NewRouteProposal(e.newID(), res.ShipmentID, res.DecisionID, res.Decision)
		proposal = &p
	}

	if err := e.recorder.RecordDecision(ctx, entry, proposal); err != nil {
		metrics.AuditWriteFailures.Inc()
		if e.cfg.StrictAudit {
			if errors.Is(err, models.ErrPersistence) {
				return err
			}
			return fmt.Errorf("%w: %v", models.ErrPersistence, err)
		}
		log.Printf("decision log write failed shipment=%s decision=%s: %v", res.ShipmentID, res.DecisionID, err)
		return nil
	}
	res.AuditLogged = true
	if proposal != nil {
		res.ProposalID = proposal.ID
	}
	return nil
}

func routingError(err error) error {
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrRoutingProvider) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrRoutingProvider, err)
}
