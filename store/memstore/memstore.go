// Package memstore is the in-process implementation of store.Store, used for
// local runs and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.Mutex

	shipments map[string]models.Shipment
	routes    map[string]models.Route
	segments  map[string][]models.RouteSegment
	vehicles  map[string]models.Vehicle
	drivers   map[string]models.Driver
	decisions []models.DecisionLogEntry
	proposals []models.RouteProposal
	outbox    map[string]models.NotificationOutbox

	newID func() string
	now   func() time.Time
}

func New() *Store {
	return &Store{
		shipments: make(map[string]models.Shipment),
		routes:    make(map[string]models.Route),
		segments:  make(map[string][]models.RouteSegment),
		vehicles:  make(map[string]models.Vehicle),
		drivers:   make(map[string]models.Driver),
		outbox:    make(map[string]models.NotificationOutbox),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

func (s *Store) PutShipment(sh models.Shipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipments[sh.ID] = sh
}

// Shipment returns the stored row as-is.
func (s *Store) Shipment(id string) (models.Shipment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shipments[id]
	return sh, ok
}

func (s *Store) PutRoute(r models.Route, segs ...models.RouteSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[r.ID] = r
	s.segments[r.ID] = append([]models.RouteSegment(nil), segs...)
}

func (s *Store) Route(id string) (models.Route, []models.RouteSegment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routes[id]
	return r, append([]models.RouteSegment(nil), s.segments[id]...), ok
}

func (s *Store) PutVehicle(v models.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[v.ID] = v
}

func (s *Store) PutDriver(d models.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[d.ID] = d
}

// UpdateWeather overwrites the weather columns that are present in obs.
func (s *Store) UpdateWeather(_ context.Context, obs models.WeatherObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shipments[obs.ShipmentID]
	if !ok {
		return fmt.Errorf("shipment %s: %w", obs.ShipmentID, models.ErrNotFound)
	}
	if obs.TempC != nil {
		sh.TempC = obs.TempC
	}
	if obs.WindSpeed != nil {
		sh.WindSpeed = obs.WindSpeed
	}
	if obs.Humidity != nil {
		sh.Humidity = obs.Humidity
	}
	if obs.Precipitation != nil {
		sh.Precipitation = obs.Precipitation
	}
	if obs.Condition != nil {
		sh.Condition = obs.Condition
	}
	sh.UpdatedAt = s.now()
	s.shipments[sh.ID] = sh
	return nil
}

func (s *Store) ShipmentSnapshot(_ context.Context, shipmentID string) (models.ShipmentSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shipments[shipmentID]
	if !ok {
		return models.ShipmentSnapshot{}, fmt.Errorf("shipment %s: %w", shipmentID, models.ErrNotFound)
	}
	count := 0
	if sh.RouteID != nil {
		count = len(s.segments[*sh.RouteID])
	}
	return sh.Snapshot(count), nil
}

func (s *Store) ShipmentRoute(_ context.Context, shipmentID string) (models.Route, []models.RouteSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shipments[shipmentID]
	if !ok {
		return models.Route{}, nil, fmt.Errorf("shipment %s: %w", shipmentID, models.ErrNotFound)
	}
	if sh.RouteID == nil {
		return models.Route{}, nil, fmt.Errorf("route of shipment %s: %w", shipmentID, models.ErrNotFound)
	}
	r, ok := s.routes[*sh.RouteID]
	if !ok {
		return models.Route{}, nil, fmt.Errorf("route %s: %w", *sh.RouteID, models.ErrNotFound)
	}
	return r, append([]models.RouteSegment(nil), s.segments[r.ID]...), nil
}

func (s *Store) RecordDecision(_ context.Context, entry models.DecisionLogEntry, proposal *models.RouteProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decisionIndex(entry.ID) >= 0 {
		return fmt.Errorf("%w: decision %s already recorded", models.ErrPersistence, entry.ID)
	}
	if proposal != nil && s.proposalIndex(proposal.ID) >= 0 {
		return fmt.Errorf("%w: proposal %s already exists", models.ErrPersistence, proposal.ID)
	}
	s.decisions = append(s.decisions, entry)
	if proposal != nil {
		s.proposals = append(s.proposals, *proposal)
	}
	return nil
}

func (s *Store) ListDecisions(_ context.Context, shipmentID string, limit int) ([]models.DecisionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.DecisionLogEntry{}
	for i := len(s.decisions) - 1; i >= 0; i-- {
		if s.decisions[i].ShipmentID != shipmentID {
			continue
		}
		out = append(out, s.decisions[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) SetApproval(_ context.Context, decisionID string, approved bool) (models.DecisionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.decisionIndex(decisionID)
	if i < 0 {
		return models.DecisionLogEntry{}, fmt.Errorf("decision %s: %w", decisionID, models.ErrNotFound)
	}
	if s.decisions[i].Approved != nil {
		return models.DecisionLogEntry{}, fmt.Errorf("%w: decision %s already reviewed", models.ErrInvalidTransition, decisionID)
	}
	s.decisions[i].Approved = &approved
	return s.decisions[i], nil
}

func (s *Store) CreateProposals(_ context.Context, proposals []models.RouteProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range proposals {
		if s.proposalIndex(p.ID) >= 0 {
			return fmt.Errorf("%w: proposal %s already exists", models.ErrPersistence, p.ID)
		}
	}
	s.proposals = append(s.proposals, proposals...)
	return nil
}

func (s *Store) GetProposal(_ context.Context, id string) (models.RouteProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.proposalIndex(id)
	if i < 0 {
		return models.RouteProposal{}, fmt.Errorf("proposal %s: %w", id, models.ErrNotFound)
	}
	return s.proposals[i], nil
}

func (s *Store) ListProposals(_ context.Context, status string, limit int) ([]models.RouteProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.RouteProposal{}
	for i := len(s.proposals) - 1; i >= 0; i-- {
		if status == "" || s.proposals[i].Status == status {
			out = append(out, s.proposals[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TransitionProposal(_ context.Context, id, to string) (models.RouteProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.proposalIndex(id)
	if i < 0 {
		return models.RouteProposal{}, fmt.Errorf("proposal %s: %w", id, models.ErrNotFound)
	}
	p := &s.proposals[i]
	if !models.CanTransition(p.Status, to) {
		return models.RouteProposal{}, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = s.now()
	if p.DecisionID != nil && (to == models.ProposalApproved || to == models.ProposalRejected) {
		if d := s.decisionIndex(*p.DecisionID); d >= 0 && s.decisions[d].Approved == nil {
			approved := to == models.ProposalApproved
			s.decisions[d].Approved = &approved
		}
	}
	return *p, nil
}

func (s *Store) ApplyRoute(_ context.Context, req store.ApplyRequest) (store.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.RouteID == "" {
		return store.ApplyResult{}, fmt.Errorf("%w: route id is required", models.ErrValidation)
	}
	sh, ok := s.shipments[req.ShipmentID]
	if !ok {
		return store.ApplyResult{}, fmt.Errorf("shipment %s: %w", req.ShipmentID, models.ErrNotFound)
	}
	now := req.Now
	if now.IsZero() {
		now = s.now()
	}

	res := store.ApplyResult{RouteID: req.RouteID}
	if _, exists := s.routes[req.RouteID]; !exists {
		s.routes[req.RouteID] = models.Route{ID: req.RouteID, Name: store.RouteName(req.RouteID), CreatedAt: now}
		s.segments[req.RouteID] = store.SegmentsFromPath(req.RouteID, req.Path, s.newID)
		res.RouteCreated = true
	}

	routeID := req.RouteID
	sh.RouteID = &routeID
	sh.UpdatedAt = now
	s.shipments[sh.ID] = sh

	for i := range s.proposals {
		p := &s.proposals[i]
		if p.ShipmentID != sh.ID || p.ProposedRouteID == nil || *p.ProposedRouteID != routeID {
			continue
		}
		if models.CanTransition(p.Status, models.ProposalApplied) {
			p.Status = models.ProposalApplied
			p.UpdatedAt = now
			res.ProposalsApplied++
		}
	}

	res.Driver = s.driverFor(sh)
	if req.Notification != nil {
		n := *req.Notification
		if res.Driver != nil && res.Driver.ExternalID != nil && *res.Driver.ExternalID != "" {
			n.ExternalIDs = []string{*res.Driver.ExternalID}
		}
		s.outbox[n.ID] = n
		res.NotificationID = n.ID
		res.ExternalIDs = n.ExternalIDs
	}
	return res, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (models.NotificationOutbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.outbox[id]
	if !ok {
		return models.NotificationOutbox{}, fmt.Errorf("notification %s: %w", id, models.ErrNotFound)
	}
	return n, nil
}

func (s *Store) DueNotifications(_ context.Context, now time.Time, limit int) ([]models.NotificationOutbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.NotificationOutbox{}
	for _, n := range s.outbox {
		if n.Status != models.OutboxPending || n.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ClaimNotification(_ context.Context, id string, now time.Time, lease time.Duration) (models.NotificationOutbox, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.outbox[id]
	if !ok {
		return models.NotificationOutbox{}, false, fmt.Errorf("notification %s: %w", id, models.ErrNotFound)
	}
	if n.Status != models.OutboxPending || n.NextAttemptAt.After(now) {
		return n, false, nil
	}
	n.NextAttemptAt = now.Add(lease)
	n.UpdatedAt = now
	s.outbox[id] = n
	return n, true, nil
}

func (s *Store) SaveNotification(_ context.Context, n models.NotificationOutbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outbox[n.ID]; !ok {
		return fmt.Errorf("notification %s: %w", n.ID, models.ErrNotFound)
	}
	s.outbox[n.ID] = n
	return nil
}

func (s *Store) driverFor(sh models.Shipment) *models.DriverInfo {
	if sh.VehicleID == nil {
		return nil
	}
	v, ok := s.vehicles[*sh.VehicleID]
	if !ok || v.DriverID == nil {
		return nil
	}
	d, ok := s.drivers[*v.DriverID]
	if !ok {
		return nil
	}
	info := d.Info()
	return &info
}

func (s *Store) decisionIndex(id string) int {
	for i := range s.decisions {
		if s.decisions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) proposalIndex(id string) int {
	for i := range s.proposals {
		if s.proposals[i].ID == id {
			return i
		}
	}
	return -1
}
