package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Moustafa-Haydar/cargo-smart/config"
	"github.com/Moustafa-Haydar/cargo-smart/decision"
)

// DecisionChannel carries every evaluation outcome as JSON.
const DecisionChannel = "cargo:decisions"

const proposalsKeyPrefix = "proposals:"

type CacheService struct {
	client *redis.Client
}

func NewCacheService(cfg config.RedisConfig) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	var lastErr error
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return &CacheService{client: client}, nil
		}
		log.Printf("redis ping attempt %d/5 failed: %v", i+1, lastErr)
		time.Sleep(2 * time.Second)
	}

	_ = client.Close()
	return &CacheService{}, fmt.Errorf("redis ping failed after 5 attempts: %w", lastErr)
}

// NewCacheServiceFromClient wraps an existing client. A nil client yields a
// no-op cache.
func NewCacheServiceFromClient(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

func (s *CacheService) Available() bool {
	return s != nil && s.client != nil
}

// Get decodes the cached value into dest and reports whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !s.Available() {
		return false, nil
	}
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// DeletePrefix removes every key starting with prefix.
func (s *CacheService) DeletePrefix(ctx context.Context, prefix string) error {
	if !s.Available() {
		return nil
	}
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *CacheService) Publish(ctx context.Context, channel string, message any) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Subscribe returns nil when no Redis client is configured.
func (s *CacheService) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if !s.Available() {
		return nil
	}
	return s.client.Subscribe(ctx, channel)
}

// PublishDecision implements decision.Publisher and invalidates cached
// proposal listings when the decision created a proposal.
func (s *CacheService) PublishDecision(ctx context.Context, r decision.Result) error {
	if r.ProposalID != "" {
		if err := s.DeletePrefix(ctx, proposalsKeyPrefix); err != nil {
			log.Printf("proposal cache invalidation failed: %v", err)
		}
	}
	return s.Publish(ctx, DecisionChannel, DecisionEvent{
		Type:       "decision",
		ShipmentID: r.ShipmentID,
		DecisionID: r.DecisionID,
		ProposalID: r.ProposalID,
		Action:     r.Decision.Action,
		PDelay:     r.PDelay,
		Rationale:  r.Decision.Rationale,
		Timestamp:  r.Decision.Timestamp,
	})
}

// DecisionEvent is the message published on DecisionChannel.
type DecisionEvent struct {
	Type       string    `json:"type"`
	ShipmentID string    `json:"shipment_id"`
	DecisionID string    `json:"decision_id"`
	ProposalID string    `json:"proposal_id,omitempty"`
	Action     string    `json:"action"`
	PDelay     float64   `json:"p_delay"`
	Rationale  string    `json:"rationale"`
	Timestamp  time.Time `json:"timestamp"`
}

func (s *CacheService) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}
