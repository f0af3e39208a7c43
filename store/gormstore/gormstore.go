// Package gormstore implements store.Store on Postgres through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	db    *gorm.DB
	newID func() string
	now   func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, newID: uuid.NewString, now: time.Now}
}

// Open connects to Postgres and pings it.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables owned by the reroute engine. Shipments, routes
// and fleet tables belong to the wider platform and are not migrated here.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.DecisionLogEntry{}, &models.RouteProposal{}, &models.NotificationOutbox{})
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) ShipmentSnapshot(ctx context.Context, shipmentID string) (models.ShipmentSnapshot, error) {
	db := s.db.WithContext(ctx)
	var sh models.Shipment
	if err := db.First(&sh, "id = ?", shipmentID).Error; err != nil {
		return models.ShipmentSnapshot{}, notFound(err, "shipment", shipmentID)
	}
	var count int64
	if sh.RouteID != nil {
		if err := db.Model(&models.RouteSegment{}).Where("route_id = ?", *sh.RouteID).Count(&count).Error; err != nil {
			return models.ShipmentSnapshot{}, fmt.Errorf("%w: count segments: %v", models.ErrPersistence, err)
		}
	}
	return sh.Snapshot(int(count)), nil
}

func (s *Store) ShipmentRoute(ctx context.Context, shipmentID string) (models.Route, []models.RouteSegment, error) {
	db := s.db.WithContext(ctx)
	var sh models.Shipment
	if err := db.Select("id", "route_id").First(&sh, "id = ?", shipmentID).Error; err != nil {
		return models.Route{}, nil, notFound(err, "shipment", shipmentID)
	}
	if sh.RouteID == nil {
		return models.Route{}, nil, fmt.Errorf("route of shipment %s: %w", shipmentID, models.ErrNotFound)
	}
	var route models.Route
	if err := db.First(&route, "id = ?", *sh.RouteID).Error; err != nil {
		return models.Route{}, nil, notFound(err, "route", *sh.RouteID)
	}
	var segs []models.RouteSegment
	if err := db.Where("route_id = ?", route.ID).Order("seq ASC").Find(&segs).Error; err != nil {
		return models.Route{}, nil, fmt.Errorf("%w: load segments: %v", models.ErrPersistence, err)
	}
	return route, segs, nil
}

func (s *Store) RecordDecision(ctx context.Context, entry models.DecisionLogEntry, proposal *models.RouteProposal) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if proposal != nil {
			return tx.Create(proposal).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: record decision: %v", models.ErrPersistence, err)
	}
	return nil
}

func (s *Store) ListDecisions(ctx context.Context, shipmentID string, limit int) ([]models.DecisionLogEntry, error) {
	q := s.db.WithContext(ctx).Where("shipment_id = ?", shipmentID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.DecisionLogEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list decisions: %v", models.ErrPersistence, err)
	}
	return rows, nil
}

func (s *Store) SetApproval(ctx context.Context, decisionID string, approved bool) (models.DecisionLogEntry, error) {
	var entry models.DecisionLogEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DecisionLogEntry{}).
			Where("id = ? AND approved IS NULL", decisionID).
			Update("approved", approved)
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&entry, "id = ?", decisionID).Error; err != nil {
			return notFound(err, "decision", decisionID)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: decision %s already reviewed", models.ErrInvalidTransition, decisionID)
		}
		return nil
	})
	if err != nil {
		return models.DecisionLogEntry{}, classify(err)
	}
	return entry, nil
}

func (s *Store) CreateProposals(ctx context.Context, proposals []models.RouteProposal) error {
	if len(proposals) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&proposals).Error; err != nil {
		return fmt.Errorf("%w: create proposals: %v", models.ErrPersistence, err)
	}
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id string) (models.RouteProposal, error) {
	var p models.RouteProposal
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return models.RouteProposal{}, notFound(err, "proposal", id)
	}
	return p, nil
}

func (s *Store) ListProposals(ctx context.Context, status string, limit int) ([]models.RouteProposal, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.RouteProposal
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list proposals: %v", models.ErrPersistence, err)
	}
	return rows, nil
}

func (s *Store) TransitionProposal(ctx context.Context, id, to string) (models.RouteProposal, error) {
	var p models.RouteProposal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error; err != nil {
			return notFound(err, "proposal", id)
		}
		if !models.CanTransition(p.Status, to) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, p.Status, to)
		}
		p.Status = to
		p.UpdatedAt = s.now()
		if err := tx.Model(&p).Select("status", "updated_at").Updates(&p).Error; err != nil {
			return err
		}
		if p.DecisionID != nil && (to == models.ProposalApproved || to == models.ProposalRejected) {
			return tx.Model(&models.DecisionLogEntry{}).
				Where("id = ? AND approved IS NULL", *p.DecisionID).
				Update("approved", to == models.ProposalApproved).Error
		}
		return nil
	})
	if err != nil {
		return models.RouteProposal{}, classify(err)
	}
	return p, nil
}

func (s *Store) ApplyRoute(ctx context.Context, req store.ApplyRequest) (store.ApplyResult, error) {
	if req.RouteID == "" {
		return store.ApplyResult{}, fmt.Errorf("%w: route id is required", models.ErrValidation)
	}
	now := req.Now
	if now.IsZero() {
		now = s.now()
	}

	res := store.ApplyResult{RouteID: req.RouteID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sh models.Shipment
		if err := tx.First(&sh, "id = ?", req.ShipmentID).Error; err != nil {
			return notFound(err, "shipment", req.ShipmentID)
		}

		route := models.Route{ID: req.RouteID, Name: store.RouteName(req.RouteID), CreatedAt: now}
		created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&route)
		if created.Error != nil {
			return created.Error
		}
		if created.RowsAffected > 0 {
			res.RouteCreated = true
			if segs := store.SegmentsFromPath(req.RouteID, req.Path, s.newID); len(segs) > 0 {
				if err := tx.Create(&segs).Error; err != nil {
					return err
				}
			}
		}

		if err := tx.Model(&models.Shipment{}).Where("id = ?", sh.ID).
			Updates(map[string]any{"route_id": req.RouteID, "updated_at": now}).Error; err != nil {
			return err
		}

		applied := tx.Model(&models.RouteProposal{}).
			Where("shipment_id = ? AND proposed_route_id = ? AND status IN ?", sh.ID, req.RouteID,
				[]string{models.ProposalPending, models.ProposalApproved}).
			Updates(map[string]any{"status": models.ProposalApplied, "updated_at": now})
		if applied.Error != nil {
			return applied.Error
		}
		res.ProposalsApplied = int(applied.RowsAffected)

		driver, err := driverFor(tx, sh)
		if err != nil {
			return err
		}
		res.Driver = driver

		if req.Notification != nil {
			n := *req.Notification
			if driver != nil && driver.ExternalID != nil && *driver.ExternalID != "" {
				n.ExternalIDs = []string{*driver.ExternalID}
			}
			if err := tx.Create(&n).Error; err != nil {
				return err
			}
			res.NotificationID = n.ID
			res.ExternalIDs = n.ExternalIDs
		}
		return nil
	})
	if err != nil {
		return store.ApplyResult{}, classify(err)
	}
	return res, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (models.NotificationOutbox, error) {
	var n models.NotificationOutbox
	if err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return models.NotificationOutbox{}, notFound(err, "notification", id)
	}
	return n, nil
}

func (s *Store) DueNotifications(ctx context.Context, now time.Time, limit int) ([]models.NotificationOutbox, error) {
	q := s.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.OutboxPending, now).
		Order("next_attempt_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.NotificationOutbox
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list due notifications: %v", models.ErrPersistence, err)
	}
	return rows, nil
}

func (s *Store) ClaimNotification(ctx context.Context, id string, now time.Time, lease time.Duration) (models.NotificationOutbox, bool, error) {
	var (
		n       models.NotificationOutbox
		claimed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.NotificationOutbox{}).
			Where("id = ? AND status = ? AND next_attempt_at <= ?", id, models.OutboxPending, now).
			Updates(map[string]any{"next_attempt_at": now.Add(lease), "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		claimed = res.RowsAffected == 1
		if err := tx.First(&n, "id = ?", id).Error; err != nil {
			return notFound(err, "notification", id)
		}
		return nil
	})
	if err != nil {
		return models.NotificationOutbox{}, false, classify(err)
	}
	return n, claimed, nil
}

func (s *Store) SaveNotification(ctx context.Context, n models.NotificationOutbox) error {
	if err := s.db.WithContext(ctx).Save(&n).Error; err != nil {
		return fmt.Errorf("%w: save notification: %v", models.ErrPersistence, err)
	}
	return nil
}

func driverFor(tx *gorm.DB, sh models.Shipment) (*models.DriverInfo, error) {
	if sh.VehicleID == nil {
		return nil, nil
	}
	var v models.Vehicle
	if err := tx.First(&v, "id = ?", *sh.VehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if v.DriverID == nil {
		return nil, nil
	}
	var d models.Driver
	if err := tx.First(&d, "id = ?", *v.DriverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	info := d.Info()
	return &info, nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return fmt.Errorf("%w: load %s %s: %v", models.ErrPersistence, kind, id, err)
}

// classify keeps taxonomy errors and wraps everything else as a persistence
// failure.
func classify(err error) error {
	for _, known := range []error{models.ErrNotFound, models.ErrInvalidTransition, models.ErrValidation, models.ErrPersistence} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", models.ErrPersistence, err)
}
