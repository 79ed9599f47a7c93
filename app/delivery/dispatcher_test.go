package delivery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/newsdigest/app/database"
)

type mockSender struct {
	failures int
	calls    int
	lastTo   []string
}

func (m *mockSender) Send(ctx context.Context, recipients []string, subject, htmlBody string) error {
	m.calls++
	m.lastTo = recipients
	if m.calls <= m.failures {
		return errors.New("connection refused")
	}
	return nil
}

type mockDigestRepo struct {
	database.DigestRepository
	attempts []database.DeliveryAttempt
}

func (m *mockDigestRepo) RecordDeliveryAttempt(attempt database.DeliveryAttempt) error {
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *mockDigestRepo) GetDeliveryAttempts(digestID string) ([]database.DeliveryAttempt, error) {
	return m.attempts, nil
}

func noBackoff(attempt int) time.Duration { return 0 }

func testDigest() *database.Digest {
	return &database.Digest{ID: "digest-1", CycleID: "cycle-1", Subject: "News digest", Body: "<html></html>"}
}

func TestDeliverFirstTry(t *testing.T) {
	sender := &mockSender{}
	repo := &mockDigestRepo{}
	dispatcher := NewDispatcher(sender, repo, []string{"a@example.com", "b@example.com"}, 3, time.Second, noBackoff)

	if err := dispatcher.Deliver(context.Background(), testDigest()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if sender.calls != 1 {
		t.Errorf("Expected 1 send, got %d", sender.calls)
	}
	if len(sender.lastTo) != 2 {
		t.Errorf("Expected 2 recipients, got %d", len(sender.lastTo))
	}
	if len(repo.attempts) != 1 {
		t.Fatalf("Expected 1 recorded attempt, got %d", len(repo.attempts))
	}
	if !repo.attempts[0].Success || repo.attempts[0].Attempt != 1 {
		t.Errorf("Unexpected attempt record: %+v", repo.attempts[0])
	}
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	sender := &mockSender{failures: 2}
	repo := &mockDigestRepo{}
	dispatcher := NewDispatcher(sender, repo, []string{"a@example.com"}, 3, time.Second, noBackoff)

	if err := dispatcher.Deliver(context.Background(), testDigest()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if sender.calls != 3 {
		t.Errorf("Expected 3 sends, got %d", sender.calls)
	}
	if len(repo.attempts) != 3 {
		t.Fatalf("Expected 3 recorded attempts, got %d", len(repo.attempts))
	}
	if repo.attempts[0].Success || repo.attempts[0].Error != "connection refused" {
		t.Errorf("Unexpected first attempt: %+v", repo.attempts[0])
	}
	if !repo.attempts[2].Success || repo.attempts[2].Attempt != 3 {
		t.Errorf("Unexpected final attempt: %+v", repo.attempts[2])
	}
}

func TestDeliverExhaustsRetries(t *testing.T) {
	sender := &mockSender{failures: 10}
	repo := &mockDigestRepo{}
	dispatcher := NewDispatcher(sender, repo, []string{"a@example.com"}, 2, time.Second, noBackoff)

	err := dispatcher.Deliver(context.Background(), testDigest())
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Expected attempt count in error, got: %v", err)
	}

	if sender.calls != 3 {
		t.Errorf("Expected 3 sends, got %d", sender.calls)
	}
	for i, attempt := range repo.attempts {
		if attempt.Success {
			t.Errorf("Expected attempt %d to be recorded as failed", i+1)
		}
	}
}

func TestDeliverResendContinuesNumbering(t *testing.T) {
	sender := &mockSender{}
	repo := &mockDigestRepo{attempts: []database.DeliveryAttempt{
		{DigestID: "digest-1", Attempt: 1, Error: "connection refused"},
		{DigestID: "digest-1", Attempt: 2, Error: "connection refused"},
	}}
	dispatcher := NewDispatcher(sender, repo, []string{"a@example.com"}, 3, time.Second, noBackoff)

	if err := dispatcher.Deliver(context.Background(), testDigest()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	last := repo.attempts[len(repo.attempts)-1]
	if last.Attempt != 3 {
		t.Errorf("Expected resend to continue at attempt 3, got %d", last.Attempt)
	}
}

func TestDeliverNoRecipients(t *testing.T) {
	dispatcher := NewDispatcher(&mockSender{}, &mockDigestRepo{}, nil, 3, time.Second, noBackoff)

	if err := dispatcher.Deliver(context.Background(), testDigest()); err == nil {
		t.Fatal("Expected error without recipients")
	}
}

func TestDeliverStopsOnCancel(t *testing.T) {
	sender := &mockSender{failures: 10}
	repo := &mockDigestRepo{}
	dispatcher := NewDispatcher(sender, repo, []string{"a@example.com"}, 5, time.Second, func(int) time.Duration {
		return time.Hour
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := dispatcher.Deliver(ctx, testDigest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
	if sender.calls != 1 {
		t.Errorf("Expected a single send before cancellation, got %d", sender.calls)
	}
}
