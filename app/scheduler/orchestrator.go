package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/newsdigest/app/database"
	"github.com/lysyi3m/newsdigest/app/fetch"
	"github.com/lysyi3m/newsdigest/app/sources"
)

// AdapterFactory builds the fetch adapter for one source. Injected so
// tests can substitute stub adapters.
type AdapterFactory func(src *sources.Config) (fetch.Adapter, error)

// BackoffFunc returns how long to wait before retry number attempt
// (1-based).
type BackoffFunc func(attempt int) time.Duration

func DefaultBackoff(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

// Result is the outcome of one fetch pass. Accepted holds the newly
// stored items per source; Failures holds the final error per source
// that could not be fetched or stored. A source can appear in both maps
// when storage failed partway through its batch.
type Result struct {
	Accepted  map[string][]database.Item
	Failures  map[string]error
	Attempted int
}

func (r *Result) ItemsNew() int {
	total := 0
	for _, items := range r.Accepted {
		total += len(items)
	}
	return total
}

// Orchestrator runs the fetch stage of a cycle: every enabled source is
// fetched on its own worker, failures are isolated per source, and
// retryable errors get a bounded number of additional attempts.
type Orchestrator struct {
	itemRepo     database.ItemRepository
	newAdapter   AdapterFactory
	workerCount  int
	maxRetries   int
	fetchTimeout time.Duration
	backoff      BackoffFunc
}

func NewOrchestrator(itemRepo database.ItemRepository, newAdapter AdapterFactory,
	workerCount, maxRetries int, fetchTimeout time.Duration, backoff BackoffFunc) *Orchestrator {
	if backoff == nil {
		backoff = DefaultBackoff
	}

	return &Orchestrator{
		itemRepo:     itemRepo,
		newAdapter:   newAdapter,
		workerCount:  workerCount,
		maxRetries:   maxRetries,
		fetchTimeout: fetchTimeout,
		backoff:      backoff,
	}
}

func (o *Orchestrator) Run(ctx context.Context, srcs []*sources.Config) *Result {
	result := &Result{
		Accepted:  make(map[string][]database.Item),
		Failures:  make(map[string]error),
		Attempted: len(srcs),
	}

	workers := o.workerCount
	if workers > len(srcs) {
		workers = len(srcs)
	}
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, src := range srcs {
		wg.Add(1)
		go func(src *sources.Config) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			accepted, err := o.processSource(ctx, src)

			mu.Lock()
			defer mu.Unlock()
			if len(accepted) > 0 {
				result.Accepted[src.ID] = accepted
			}
			if err != nil {
				result.Failures[src.ID] = err
			}
		}(src)
	}

	wg.Wait()
	return result
}

// processSource fetches one source and stores the new items. Items
// accepted before a storage error are kept; the error still marks the
// source as failed for this cycle.
func (o *Orchestrator) processSource(ctx context.Context, src *sources.Config) ([]database.Item, error) {
	checkpoint, err := o.itemRepo.LatestCheckpoint(src.ID)
	if err != nil {
		return nil, err
	}

	adapter, err := o.newAdapter(src)
	if err != nil {
		return nil, err
	}

	raw, err := o.fetchWithRetry(ctx, src, adapter, checkpoint)
	if err != nil {
		return nil, err
	}

	accepted, err := o.itemRepo.FilterNew(src.ID, raw)
	if err != nil {
		return accepted, err
	}

	slog.Debug("Source fetched", "source", src.ID, "candidates", len(raw), "new", len(accepted))
	return accepted, nil
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, src *sources.Config, adapter fetch.Adapter, checkpoint *time.Time) ([]fetch.RawItem, error) {
	var lastErr error

	for try := 0; try <= o.maxRetries; try++ {
		if try > 0 {
			select {
			case <-time.After(o.backoff(try)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
		raw, err := adapter.Fetch(attemptCtx, checkpoint)
		cancel()

		if err == nil {
			return raw, nil
		}
		lastErr = err

		var fetchErr *fetch.Error
		if !errors.As(err, &fetchErr) || !fetchErr.Retryable {
			break
		}

		slog.Warn("Fetch attempt failed, retrying", "source", src.ID, "attempt", try+1, "error", err)
	}

	return nil, lastErr
}
