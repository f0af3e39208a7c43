package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Moustafa-Haydar/cargo-smart/models"
	"github.com/Moustafa-Haydar/cargo-smart/store"
)

func TestBackoffNext(t *testing.T) {
	b := Backoff{Base: 5 * time.Second, Max: 5 * time.Minute}
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{5, 160 * time.Second},
		{6, 5 * time.Minute},
		{40, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := b.Next(tt.attempts); got != tt.want {
			t.Errorf("Next(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func enqueue(t *testing.T, s store.Applier, shipmentID string) string {
	t.Helper()
	n, err := RouteUpdateNotification("n-1", shipmentID, "R5", nil)
	if err != nil {
		t.Fatalf("RouteUpdateNotification: %v", err)
	}
	n.NextAttemptAt = testNow
	res, err := s.ApplyRoute(context.Background(), store.ApplyRequest{ShipmentID: shipmentID, RouteID: "R5", Notification: &n, Now: testNow})
	if err != nil {
		t.Fatalf("ApplyRoute: %v", err)
	}
	return res.NotificationID
}

func TestProcessDueRetryThenSuccess(t *testing.T) {
	s := seededStore()
	id := enqueue(t, s, "s-nodriver")
	sender := &flakySender{fail: 1}
	p := NewOutboxProcessor(s, sender, Backoff{Base: 5 * time.Second, Max: time.Minute, MaxAttempts: 5})
	ctx := context.Background()

	if n, err := p.ProcessDue(ctx, testNow, 10); err != nil || n != 1 {
		t.Fatalf("first pass = %d, %v", n, err)
	}
	rec, _ := s.GetNotification(ctx, id)
	if rec.Status != models.OutboxPending || rec.AttemptCount != 1 || rec.LastError == nil {
		t.Fatalf("after failure: %+v", rec)
	}
	if !rec.NextAttemptAt.Equal(testNow.Add(5 * time.Second)) {
		t.Errorf("next attempt = %v", rec.NextAttemptAt)
	}

	if n, _ := p.ProcessDue(ctx, testNow.Add(time.Second), 10); n != 0 {
		t.Errorf("notification retried before backoff elapsed")
	}

	if n, err := p.ProcessDue(ctx, testNow.Add(5*time.Second), 10); err != nil || n != 1 {
		t.Fatalf("retry pass = %d, %v", n, err)
	}
	rec, _ = s.GetNotification(ctx, id)
	if rec.Status != models.OutboxSent || rec.ProviderID == nil || *rec.ProviderID != "os-123" || rec.SentAt == nil {
		t.Errorf("after success: %+v", rec)
	}
}

func TestDeliverGivesUp(t *testing.T) {
	tests := []struct {
		name   string
		sender Sender
		passes int
	}{
		{"disabled sender fails immediately", DisabledSender{}, 1},
		{"max attempts reached", &flakySender{fail: 100}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seededStore()
			id := enqueue(t, s, "s-nodriver")
			p := NewOutboxProcessor(s, tt.sender, Backoff{Base: time.Second, Max: time.Second, MaxAttempts: 2})

			now := testNow
			for i := 0; i < tt.passes; i++ {
				if _, err := p.ProcessDue(context.Background(), now, 10); err != nil {
					t.Fatalf("ProcessDue: %v", err)
				}
				now = now.Add(time.Minute)
			}
			rec, _ := s.GetNotification(context.Background(), id)
			if rec.Status != models.OutboxFailed {
				t.Errorf("status = %s, want failed", rec.Status)
			}
			if n, _ := p.ProcessDue(context.Background(), now.Add(time.Hour), 10); n != 0 {
				t.Errorf("failed notification was picked up again")
			}
		})
	}
}

// blockingSender holds every Send until release is closed.
type blockingSender struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (s *blockingSender) Send(context.Context, models.NotificationOutbox) (string, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()
	if first {
		close(s.started)
	}
	<-s.release
	return "os-slow", nil
}

func TestWorkerSkipsNotificationInFlight(t *testing.T) {
	s := seededStore()
	sender := &blockingSender{started: make(chan struct{}), release: make(chan struct{})}
	a := newApplier(s, sender)

	type result struct {
		out ApplyOutcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := a.Apply(context.Background(), shipmentID, ApplyInput{ProposedRouteID: "R1"})
		done <- result{out, err}
	}()
	<-sender.started

	worker := NewOutboxProcessor(s, sender, Backoff{MaxAttempts: 3})
	for _, at := range []time.Duration{0, 5 * time.Second, 30 * time.Second} {
		if n, err := worker.ProcessDue(context.Background(), testNow.Add(at), 10); err != nil || n != 0 {
			t.Errorf("worker at +%s processed %d, %v; want 0 while the send is in flight", at, n, err)
		}
	}
	close(sender.release)

	res := <-done
	if res.err != nil {
		t.Fatalf("Apply: %v", res.err)
	}
	if !res.out.NotificationSent {
		t.Errorf("notification error = %v", res.out.NotificationError)
	}
	if sender.calls != 1 {
		t.Errorf("provider calls = %d, want 1", sender.calls)
	}
	if n, _ := worker.ProcessDue(context.Background(), testNow.Add(time.Hour), 10); n != 0 {
		t.Errorf("sent notification was picked up again")
	}
}

func TestExpiredClaimIsRetried(t *testing.T) {
	s := seededStore()
	id := enqueue(t, s, "s-nodriver")
	ctx := context.Background()

	// A sender that claimed the row and never reported back.
	if _, ok, err := s.ClaimNotification(ctx, id, testNow, time.Minute); err != nil || !ok {
		t.Fatalf("ClaimNotification = %t, %v", ok, err)
	}

	sender := &flakySender{}
	p := NewOutboxProcessor(s, sender, Backoff{MaxAttempts: 3}).WithLease(time.Minute)
	if n, _ := p.ProcessDue(ctx, testNow.Add(30*time.Second), 10); n != 0 || sender.calls != 0 {
		t.Fatalf("leased row delivered early: processed=%d calls=%d", n, sender.calls)
	}
	if n, err := p.ProcessDue(ctx, testNow.Add(time.Minute), 10); err != nil || n != 1 {
		t.Fatalf("after lease expiry processed=%d, %v", n, err)
	}
	rec, _ := s.GetNotification(ctx, id)
	if rec.Status != models.OutboxSent || sender.calls != 1 {
		t.Errorf("status = %s, calls = %d", rec.Status, sender.calls)
	}
}

func TestDeliverLosesClaim(t *testing.T) {
	s := seededStore()
	id := enqueue(t, s, "s-nodriver")
	ctx := context.Background()
	n, _ := s.GetNotification(ctx, id)

	if _, ok, _ := s.ClaimNotification(ctx, id, testNow, time.Minute); !ok {
		t.Fatal("first claim failed")
	}
	sender := &flakySender{}
	p := NewOutboxProcessor(s, sender, Backoff{MaxAttempts: 3})
	if _, err := p.Deliver(ctx, n, testNow); !errors.Is(err, ErrNotificationClaimed) {
		t.Fatalf("Deliver() error = %v, want ErrNotificationClaimed", err)
	}
	if sender.calls != 0 {
		t.Errorf("provider calls = %d, want 0", sender.calls)
	}
}
