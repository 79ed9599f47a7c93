package database

import (
	"errors"
	"time"

	"github.com/lysyi3m/newsdigest/app/fetch"
)

// ErrCycleRunning is returned by StartCycle when another cycle is still
// in the running state.
var ErrCycleRunning = errors.New("a cycle is already running")

type ItemRepository interface {
	// FilterNew persists the not-yet-seen items from raw and returns
	// them, preserving input order. Already-stored items are skipped.
	// On a storage error the items accepted so far are returned along
	// with the error.
	FilterNew(sourceID string, raw []fetch.RawItem) ([]Item, error)

	// LatestCheckpoint returns the newest published_at (falling back to
	// ingested_at) among the source's stored items, or nil if none.
	LatestCheckpoint(sourceID string) (*time.Time, error)

	GetItemCount() (int, error)
}

type CycleRepository interface {
	// StartCycle creates a new running cycle, or returns ErrCycleRunning
	// if one exists. The check and insert are a single guarded statement.
	StartCycle() (*CycleRun, error)

	// RecoverStaleCycles finalizes cycles left in the running state by a
	// previous process, so a crash mid-cycle never wedges the scheduler.
	// Returns the number of cycles recovered.
	RecoverStaleCycles() (int, error)

	RecordSourceFailure(cycleID, sourceID, message string) error
	FinalizeCycle(run *CycleRun) error

	GetRecentCycles(limit int) ([]CycleRun, error)
	GetSourceFailures(cycleID string) ([]SourceFailure, error)
	GetCycleCount() (int, error)
}

type DigestRepository interface {
	StoreDigest(digest *Digest, items []DigestItem) error
	GetDigest(digestID string) (*Digest, error)
	GetDigestByCycle(cycleID string) (*Digest, error)

	RecordDeliveryAttempt(attempt DeliveryAttempt) error
	GetDeliveryAttempts(digestID string) ([]DeliveryAttempt, error)

	GetDigestCount() (int, error)
}
