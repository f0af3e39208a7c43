package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Moustafa-Haydar/cargo-smart/config"
	"github.com/Moustafa-Haydar/cargo-smart/metrics"
	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/store"
)

type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func BackoffFromConfig(cfg config.OutboxConfig) Backoff {
	return Backoff{Base: cfg.BaseBackoff, Max: cfg.MaxBackoff, MaxAttempts: cfg.MaxAttempts}
}

// Next returns the delay after the given number of failed attempts:
// base, 2*base, 4*base, ... capped at Max.
func (b Backoff) Next(attempts int) time.Duration {
	base, max := b.Base, b.Max
	if base <= 0 {
		base = 5 * time.Second
	}
	if max <= 0 {
		max = 5 * time.Minute
	}
	if attempts <= 0 {
		return base
	}
	if attempts > 30 {
		return max
	}
	d := base << attempts
	if d > max || d <= 0 {
		return max
	}
	return d
}

// DefaultClaimLease is how long a claimed notification is hidden from other
// senders. It must outlast one provider call.
const DefaultClaimLease = time.Minute

// ErrNotificationClaimed means another sender holds the row's lease or has
// already finished with it.
var ErrNotificationClaimed = errors.New("notification claimed by another sender")

type OutboxProcessor struct {
	store   store.Outbox
	sender  Sender
	backoff Backoff
	lease   time.Duration
}

func NewOutboxProcessor(s store.Outbox, sender Sender, backoff Backoff) *OutboxProcessor {
	return &OutboxProcessor{store: s, sender: sender, backoff: backoff, lease: DefaultClaimLease}
}

// WithLease overrides the claim lease. Non-positive values keep the default.
func (p *OutboxProcessor) WithLease(d time.Duration) *OutboxProcessor {
	if d > 0 {
		p.lease = d
	}
	return p
}

// Deliver claims one pending notification, sends it and persists the
// outcome. The returned error is the delivery error, if any;
// ErrNotificationClaimed means nothing was sent.
func (p *OutboxProcessor) Deliver(ctx context.Context, n models.NotificationOutbox, now time.Time) (models.NotificationOutbox, error) {
	if n.Status != models.OutboxPending {
		return n, nil
	}
	claimed, ok, err := p.store.ClaimNotification(ctx, n.ID, now, p.lease)
	if err != nil {
		return n, fmt.Errorf("claim notification %s: %w", n.ID, err)
	}
	if !ok {
		return claimed, ErrNotificationClaimed
	}
	n = claimed

	providerID, sendErr := p.sender.Send(ctx, n)

	n.AttemptCount++
	n.UpdatedAt = now
	switch {
	case sendErr == nil:
		n.Status = models.OutboxSent
		n.ProviderID = &providerID
		n.SentAt = &now
		n.LastError = nil
		metrics.Notifications.WithLabelValues("sent").Inc()
	case errors.Is(sendErr, ErrNotificationsDisabled) || n.AttemptCount >= p.maxAttempts():
		msg := sendErr.Error()
		n.Status = models.OutboxFailed
		n.LastError = &msg
		metrics.Notifications.WithLabelValues("failed").Inc()
	default:
		msg := sendErr.Error()
		n.LastError = &msg
		n.NextAttemptAt = now.Add(p.backoff.Next(n.AttemptCount - 1))
		metrics.Notifications.WithLabelValues("retry").Inc()
	}

	if err := p.store.SaveNotification(ctx, n); err != nil {
		return n, fmt.Errorf("save notification %s: %w", n.ID, err)
	}
	return n, sendErr
}

// ProcessDue delivers every due notification and returns how many were
// attempted.
func (p *OutboxProcessor) ProcessDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	due, err := p.store.DueNotifications(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, n := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		_, err := p.Deliver(ctx, n, now)
		if errors.Is(err, ErrNotificationClaimed) {
			continue
		}
		if err != nil {
			log.Printf("outbox: notification=%s attempt=%d failed: %v", n.ID, n.AttemptCount+1, err)
		}
		processed++
	}
	return processed, nil
}

// Run polls for due notifications until ctx is cancelled.
func (p *OutboxProcessor) Run(ctx context.Context, interval time.Duration, limit int) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := p.ProcessDue(ctx, now.UTC(), limit); err != nil && ctx.Err() == nil {
				log.Printf("outbox: poll failed: %v", err)
			}
		}
	}
}

func (p *OutboxProcessor) maxAttempts() int {
	if p.backoff.MaxAttempts <= 0 {
		return 8
	}
	return p.backoff.MaxAttempts
}
