package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/newsdigest/app/database"
)

// BackoffFunc returns how long to wait before retry number attempt
// (1-based). Injected so tests run without sleeping.
type BackoffFunc func(attempt int) time.Duration

func DefaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// Dispatcher sends assembled digests over a Sender, retrying failed
// sends up to a bounded budget. Every attempt, successful or not, is
// recorded so operators can reconstruct what happened to a digest.
type Dispatcher struct {
	sender     Sender
	digestRepo database.DigestRepository
	recipients []string
	maxRetries int
	timeout    time.Duration
	backoff    BackoffFunc
}

func NewDispatcher(sender Sender, digestRepo database.DigestRepository, recipients []string, maxRetries int, timeout time.Duration, backoff BackoffFunc) *Dispatcher {
	if backoff == nil {
		backoff = DefaultBackoff
	}

	return &Dispatcher{
		sender:     sender,
		digestRepo: digestRepo,
		recipients: recipients,
		maxRetries: maxRetries,
		timeout:    timeout,
		backoff:    backoff,
	}
}

// Deliver sends the digest to all configured recipients. Attempt numbers
// continue from any previously recorded attempts, so a manual resend
// extends the same history instead of restarting it.
func (d *Dispatcher) Deliver(ctx context.Context, digest *database.Digest) error {
	if len(d.recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	prior, err := d.digestRepo.GetDeliveryAttempts(digest.ID)
	if err != nil {
		return fmt.Errorf("failed to load delivery attempts: %w", err)
	}

	var lastErr error

	for try := 0; try <= d.maxRetries; try++ {
		if try > 0 {
			select {
			case <-time.After(d.backoff(try)):
			case <-ctx.Done():
				return fmt.Errorf("delivery interrupted: %w", ctx.Err())
			}
		}

		attempt := database.DeliveryAttempt{
			DigestID:    digest.ID,
			Attempt:     len(prior) + try + 1,
			AttemptedAt: time.Now().UTC(),
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		sendErr := d.sender.Send(attemptCtx, d.recipients, digest.Subject, digest.Body)
		cancel()
		if sendErr == nil {
			attempt.Success = true
		} else {
			attempt.Error = sendErr.Error()
		}

		if err := d.digestRepo.RecordDeliveryAttempt(attempt); err != nil {
			slog.Warn("Failed to record delivery attempt", "digest_id", digest.ID, "error", err)
		}

		if sendErr == nil {
			slog.Info("Digest delivered", "digest_id", digest.ID, "recipients", len(d.recipients), "attempt", attempt.Attempt)
			return nil
		}

		lastErr = sendErr
		slog.Warn("Delivery attempt failed", "digest_id", digest.ID, "attempt", attempt.Attempt, "error", sendErr)
	}

	return fmt.Errorf("delivery failed after %d attempts: %w", d.maxRetries+1, lastErr)
}
