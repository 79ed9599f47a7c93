package database

import (
	"database/sql"
	"fmt"
)

type digestRepository struct {
	db *DB
}

func NewDigestRepository(db *DB) DigestRepository {
	return &digestRepository{db: db}
}

func (r *digestRepository) StoreDigest(digest *Digest, items []DigestItem) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO digests (id, cycle_id, generated_at, subject, body, item_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, digest.ID, digest.CycleID, digest.GeneratedAt, digest.Subject, digest.Body, digest.ItemCount)
	if err != nil {
		return fmt.Errorf("failed to store digest: %w", err)
	}

	for _, item := range items {
		_, err = tx.Exec(`
			INSERT INTO digest_items (digest_id, item_id, position, summary)
			VALUES (?, ?, ?, ?)
		`, item.DigestID, item.ItemID, item.Position, item.Summary)
		if err != nil {
			return fmt.Errorf("failed to store digest item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit digest: %w", err)
	}

	return nil
}

func (r *digestRepository) GetDigest(digestID string) (*Digest, error) {
	return r.getDigest("id", digestID)
}

func (r *digestRepository) GetDigestByCycle(cycleID string) (*Digest, error) {
	return r.getDigest("cycle_id", cycleID)
}

func (r *digestRepository) getDigest(column, value string) (*Digest, error) {
	var digest Digest
	err := r.db.QueryRow(`
		SELECT id, cycle_id, generated_at, subject, body, item_count
		FROM digests
		WHERE `+column+` = ?
	`, value).Scan(&digest.ID, &digest.CycleID, &digest.GeneratedAt,
		&digest.Subject, &digest.Body, &digest.ItemCount)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get digest: %w", err)
	}

	return &digest, nil
}

func (r *digestRepository) RecordDeliveryAttempt(attempt DeliveryAttempt) error {
	_, err := r.db.Exec(`
		INSERT INTO delivery_attempts (digest_id, attempt, attempted_at, success, error)
		VALUES (?, ?, ?, ?, ?)
	`, attempt.DigestID, attempt.Attempt, attempt.AttemptedAt, attempt.Success, attempt.Error)
	if err != nil {
		return fmt.Errorf("failed to record delivery attempt: %w", err)
	}
	return nil
}

func (r *digestRepository) GetDeliveryAttempts(digestID string) ([]DeliveryAttempt, error) {
	rows, err := r.db.Query(`
		SELECT digest_id, attempt, attempted_at, success, error
		FROM delivery_attempts
		WHERE digest_id = ?
		ORDER BY attempt
	`, digestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []DeliveryAttempt
	for rows.Next() {
		var a DeliveryAttempt
		if err := rows.Scan(&a.DigestID, &a.Attempt, &a.AttemptedAt, &a.Success, &a.Error); err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempt rows: %w", err)
	}

	return attempts, nil
}

func (r *digestRepository) GetDigestCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM digests").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get digest count: %w", err)
	}
	return count, nil
}
