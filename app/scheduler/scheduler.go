package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/newsdigest/app/cfg"
	"github.com/lysyi3m/newsdigest/app/database"
	"github.com/lysyi3m/newsdigest/app/sources"
)

// Scheduler drives the pipeline: on every tick it runs one cycle
// (fetch, store, assemble, deliver) and records the outcome. At most
// one cycle runs at a time; the storage-level guard in StartCycle also
// protects against a second process on the same database.
type Scheduler struct {
	sourcesCache *sources.Cache
	cycleRepo    database.CycleRepository
	digestRepo   database.DigestRepository
	fetcher      FetchRunner
	builder      DigestBuilder
	deliverer    DigestDeliverer
	interval     time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func NewScheduler(sourcesCache *sources.Cache, cycleRepo database.CycleRepository,
	digestRepo database.DigestRepository, fetcher FetchRunner, builder DigestBuilder,
	deliverer DigestDeliverer) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		sourcesCache: sourcesCache,
		cycleRepo:    cycleRepo,
		digestRepo:   digestRepo,
		fetcher:      fetcher,
		builder:      builder,
		deliverer:    deliverer,
		interval:     time.Duration(cfg.Get().ScheduleInterval) * time.Second,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runCycleLogged()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.runCycleLogged()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) runCycleLogged() {
	run, err := s.RunCycle(s.ctx)
	if err != nil {
		if errors.Is(err, database.ErrCycleRunning) {
			slog.Info("Previous cycle still running, skipping tick")
			return
		}
		slog.Error("Cycle failed to run", "error", err)
		return
	}
	if run != nil {
		slog.Info("Cycle finished", "cycle_id", run.ID, "status", string(run.Status),
			"sources", run.SourcesAttempted, "items_new", run.ItemsNew, "delivery", string(run.DeliveryStatus))
	}
}

// RunCycle executes one full cycle and finalizes its record. The
// returned run reflects the persisted outcome.
func (s *Scheduler) RunCycle(ctx context.Context) (*database.CycleRun, error) {
	run, err := s.cycleRepo.StartCycle()
	if err != nil {
		return nil, err
	}

	srcs := s.sourcesCache.GetEnabledConfigs()
	slog.Debug("Cycle started", "cycle_id", run.ID, "sources", len(srcs))

	result := s.fetcher.Run(ctx, srcs)

	for sourceID, fetchErr := range result.Failures {
		slog.Warn("Source failed", "cycle_id", run.ID, "source", sourceID, "error", fetchErr)
		if err := s.cycleRepo.RecordSourceFailure(run.ID, sourceID, fetchErr.Error()); err != nil {
			slog.Warn("Failed to record source failure", "cycle_id", run.ID, "source", sourceID, "error", err)
		}
	}

	run.SourcesAttempted = result.Attempted
	run.ItemsNew = result.ItemsNew()
	run.DeliveryStatus = database.DeliveryStatusNone

	allFailed := len(srcs) > 0 && len(result.Failures) == len(srcs)

	deliveryFailed := false
	if !allFailed {
		deliveryFailed, err = s.publishDigest(ctx, run, srcs, result)
		if err != nil {
			run.Status = database.CycleStatusFailed
			s.finalize(run)
			return run, err
		}
	}

	switch {
	case allFailed || deliveryFailed:
		run.Status = database.CycleStatusFailed
	case len(result.Failures) > 0:
		run.Status = database.CycleStatusPartialFailure
	default:
		run.Status = database.CycleStatusSucceeded
	}

	s.finalize(run)
	return run, nil
}

// publishDigest assembles, stores and delivers the cycle's digest.
// A nil digest (nothing new this cycle) is not an error and delivers
// nothing. Delivery failure is reported separately from hard errors so
// the cycle record still carries the stored digest ID.
func (s *Scheduler) publishDigest(ctx context.Context, run *database.CycleRun, srcs []*sources.Config, result *Result) (deliveryFailed bool, err error) {
	digest, digestItems, err := s.builder.Build(ctx, run.ID, srcs, result.Accepted)
	if err != nil {
		return false, err
	}
	if digest == nil {
		slog.Debug("No new items, skipping digest", "cycle_id", run.ID)
		return false, nil
	}

	if err := s.digestRepo.StoreDigest(digest, digestItems); err != nil {
		return false, err
	}
	run.DigestID = &digest.ID

	if err := s.deliverer.Deliver(ctx, digest); err != nil {
		slog.Error("Digest delivery failed", "cycle_id", run.ID, "digest_id", digest.ID, "error", err)
		run.DeliveryStatus = database.DeliveryStatusFailed
		return true, nil
	}

	run.DeliveryStatus = database.DeliveryStatusDelivered
	return false, nil
}

func (s *Scheduler) finalize(run *database.CycleRun) {
	if err := s.cycleRepo.FinalizeCycle(run); err != nil {
		slog.Error("Failed to finalize cycle", "cycle_id", run.ID, "error", err)
	}
}
