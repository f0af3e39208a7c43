package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxInFlight caps concurrent evaluate calls against the API.
const maxInFlight = 4

type shipmentLister interface {
	ActiveShipments(ctx context.Context, limit int) ([]string, error)
}

type evaluateResult struct {
	Action     string  `json:"action"`
	PDelay     float64 `json:"p_delay"`
	ProposalID string  `json:"proposal_id"`
}

type evaluator struct {
	baseURL string
	client  *http.Client
}

func newEvaluator(baseURL string, timeout time.Duration) *evaluator {
	return &evaluator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *evaluator) evaluateURL(shipmentID string) string {
	return e.baseURL + "/api/v1/shipments/" + url.PathEscape(shipmentID) + "/evaluate"
}

func (e *evaluator) Evaluate(ctx context.Context, shipmentID string) (evaluateResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.evaluateURL(shipmentID), nil)
	if err != nil {
		return evaluateResult{}, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return evaluateResult{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return evaluateResult{}, fmt.Errorf("evaluate %s: status %d: %s", shipmentID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out evaluateResult
	if err := json.Unmarshal(body, &out); err != nil {
		return evaluateResult{}, fmt.Errorf("evaluate %s: decode response: %w", shipmentID, err)
	}
	return out, nil
}

type cycleStats struct {
	evaluated int64
	proposals int64
	failed    int64
}

// runCycle evaluates one batch of active shipments. A failing shipment is
// counted and skipped; it never aborts the cycle.
func runCycle(ctx context.Context, lister shipmentLister, ev *evaluator, batch int) cycleStats {
	start := time.Now()
	defer func() {
		cycleDuration.Observe(time.Since(start).Seconds())
	}()

	var stats cycleStats
	ids, err := lister.ActiveShipments(ctx, batch)
	if err != nil {
		evaluationsFailed.Inc()
		log.Printf("query active shipments failed: %v", err)
		return stats
	}
	if len(ids) == 0 {
		log.Printf("no active shipments, skipping")
		return stats
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for _, id := range ids {
		g.Go(func() error {
			res, err := ev.Evaluate(gctx, id)
			if err != nil {
				atomic.AddInt64(&stats.failed, 1)
				evaluationsFailed.Inc()
				log.Printf("evaluate failed for shipment=%s: %v", id, err)
				return nil
			}
			atomic.AddInt64(&stats.evaluated, 1)
			shipmentsEvaluated.WithLabelValues(res.Action).Inc()
			if res.ProposalID != "" {
				atomic.AddInt64(&stats.proposals, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("reroute cycle completed: %d shipments, %d evaluated, %d proposals, %d failed (%.2fs)",
		len(ids), stats.evaluated, stats.proposals, stats.failed, time.Since(start).Seconds())
	return stats
}
