// Package predictor estimates the probability that a shipment arrives late
// on its current route.
package predictor

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/Moustafa-Haydar/cargo-smart/features"
	"github.com/Moustafa-Haydar/cargo-smart/metrics"
	"github.com/Moustafa-Haydar/cargo-smart/models"
)

const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

type Prediction struct {
	PDelay   float64
	Features models.FeatureVector
	Source   string
	// Reason is set when Source is SourceFallback.
	Reason string
}

// Predictor never fails: any model problem degrades to FallbackPDelay.
type Predictor struct {
	holder  *ModelHolder
	builder *features.Builder
	timeout time.Duration
	now     func() time.Time
}

func New(holder *ModelHolder, builder *features.Builder, timeout time.Duration) *Predictor {
	p := &Predictor{holder: holder, builder: builder, timeout: timeout, now: time.Now}
	if builder != nil && builder.Now != nil {
		p.now = builder.Now
	}
	return p
}

func (p *Predictor) Predict(ctx context.Context, s models.ShipmentSnapshot, opt models.RouteOption) Prediction {
	fv := p.builder.Build(s, opt)

	prob, err := p.modelProbability(ctx, fv.Values())
	if err != nil {
		pd := FallbackPDelay(s, p.now())
		metrics.Predictions.WithLabelValues(SourceFallback).Inc()
		log.Printf("predictor: fallback heuristic shipment=%s p_delay=%.3f reason=%v", s.ID, pd, err)
		return Prediction{PDelay: pd, Features: fv, Source: SourceFallback, Reason: err.Error()}
	}

	metrics.Predictions.WithLabelValues(SourceModel).Inc()
	log.Printf("predictor: model path shipment=%s p_delay=%.3f", s.ID, prob)
	return Prediction{PDelay: prob, Features: fv, Source: SourceModel}
}

type inference struct {
	p   float64
	err error
}

func (p *Predictor) modelProbability(ctx context.Context, row []float64) (float64, error) {
	if p.holder == nil {
		return 0, fmt.Errorf("%w: no model configured", models.ErrModelUnavailable)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	done := make(chan inference, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- inference{err: fmt.Errorf("%w: inference panic: %v", models.ErrModelUnavailable, r)}
			}
		}()
		v, err := p.infer(row)
		done <- inference{p: v, err: err}
	}()

	select {
	case res := <-done:
		return res.p, res.err
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", models.ErrModelUnavailable, ctx.Err())
	}
}

func (p *Predictor) infer(row []float64) (float64, error) {
	m, err := p.holder.Get()
	if err != nil {
		return 0, err
	}

	var v float64
	if pm, ok := m.(ProbaClassifier); ok {
		v, err = pm.PredictProba(row)
	} else {
		v, err = m.Predict(row)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite probability", models.ErrModelUnavailable)
	}
	return math.Max(0, math.Min(1, v)), nil
}
