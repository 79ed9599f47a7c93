package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type cycleRepository struct {
	db *DB
}

func NewCycleRepository(db *DB) CycleRepository {
	return &cycleRepository{db: db}
}

// StartCycle performs a guarded check-and-set: the insert only succeeds
// when no other cycle is in the running state, so at most one cycle runs
// at a time even if two triggers race.
func (r *cycleRepository) StartCycle() (*CycleRun, error) {
	run := &CycleRun{
		ID:             uuid.NewString(),
		StartedAt:      time.Now().UTC(),
		Status:         CycleStatusRunning,
		DeliveryStatus: DeliveryStatusNone,
	}

	res, err := r.db.Exec(`
		INSERT INTO cycle_runs (id, started_at, status, delivery_status)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM cycle_runs WHERE status = ?)
	`, run.ID, run.StartedAt, run.Status, run.DeliveryStatus, CycleStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to start cycle: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check cycle insert result: %w", err)
	}
	if affected == 0 {
		return nil, ErrCycleRunning
	}

	return run, nil
}

// RecoverStaleCycles marks any cycle still in the running state as
// failed. Only a crashed process can leave such a row behind; it would
// otherwise block StartCycle forever. Called once at startup, before the
// scheduler takes over.
func (r *cycleRepository) RecoverStaleCycles() (int, error) {
	res, err := r.db.Exec(`
		UPDATE cycle_runs
		SET status = ?, finished_at = ?
		WHERE status = ?
	`, CycleStatusFailed, time.Now().UTC(), CycleStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale cycles: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check recovery result: %w", err)
	}

	return int(affected), nil
}

func (r *cycleRepository) RecordSourceFailure(cycleID, sourceID, message string) error {
	_, err := r.db.Exec(`
		INSERT INTO cycle_source_failures (cycle_id, source_id, error)
		VALUES (?, ?, ?)
		ON CONFLICT (cycle_id, source_id) DO UPDATE SET error = excluded.error
	`, cycleID, sourceID, message)
	if err != nil {
		return fmt.Errorf("failed to record source failure: %w", err)
	}
	return nil
}

func (r *cycleRepository) FinalizeCycle(run *CycleRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now

	_, err := r.db.Exec(`
		UPDATE cycle_runs
		SET finished_at = ?, status = ?, sources_attempted = ?, items_new = ?,
		    digest_id = ?, delivery_status = ?
		WHERE id = ?
	`, run.FinishedAt, run.Status, run.SourcesAttempted, run.ItemsNew,
		run.DigestID, run.DeliveryStatus, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finalize cycle: %w", err)
	}

	return nil
}

func (r *cycleRepository) GetRecentCycles(limit int) ([]CycleRun, error) {
	rows, err := r.db.Query(`
		SELECT id, started_at, finished_at, status, sources_attempted,
		       items_new, digest_id, delivery_status
		FROM cycle_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent cycles: %w", err)
	}
	defer rows.Close()

	var runs []CycleRun
	for rows.Next() {
		var run CycleRun
		var finishedAt sql.NullTime
		var digestID sql.NullString

		err := rows.Scan(&run.ID, &run.StartedAt, &finishedAt, &run.Status,
			&run.SourcesAttempted, &run.ItemsNew, &digestID, &run.DeliveryStatus)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle row: %w", err)
		}

		if finishedAt.Valid {
			t := finishedAt.Time
			run.FinishedAt = &t
		}
		if digestID.Valid {
			id := digestID.String
			run.DigestID = &id
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle rows: %w", err)
	}

	return runs, nil
}

func (r *cycleRepository) GetSourceFailures(cycleID string) ([]SourceFailure, error) {
	rows, err := r.db.Query(`
		SELECT cycle_id, source_id, error
		FROM cycle_source_failures
		WHERE cycle_id = ?
		ORDER BY source_id
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get source failures: %w", err)
	}
	defer rows.Close()

	var failures []SourceFailure
	for rows.Next() {
		var f SourceFailure
		if err := rows.Scan(&f.CycleID, &f.SourceID, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan failure row: %w", err)
		}
		failures = append(failures, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failure rows: %w", err)
	}

	return failures, nil
}

func (r *cycleRepository) GetCycleCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM cycle_runs").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get cycle count: %w", err)
	}
	return count, nil
}
