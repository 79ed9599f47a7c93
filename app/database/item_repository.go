package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/newsdigest/app/fetch"
)

type itemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) ItemRepository {
	return &itemRepository{db: db}
}

// FilterNew inserts each raw item under the (source_id, external_id)
// uniqueness constraint. The conflict clause makes the check and the
// write one atomic statement, so concurrent inserts of the same item
// cannot produce duplicates and a retried fetch is idempotent.
func (r *itemRepository) FilterNew(sourceID string, raw []fetch.RawItem) ([]Item, error) {
	var accepted []Item

	for _, ri := range raw {
		if ri.ExternalID == "" {
			continue
		}

		item := Item{
			ID:          uuid.NewString(),
			SourceID:    sourceID,
			ExternalID:  ri.ExternalID,
			Title:       ri.Title,
			URL:         ri.URL,
			Excerpt:     ri.Excerpt,
			PublishedAt: normalizeUTC(ri.PublishedAt),
			IngestedAt:  time.Now().UTC(),
		}

		res, err := r.db.Exec(`
			INSERT INTO items (id, source_id, external_id, title, url, excerpt, published_at, ingested_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source_id, external_id) DO NOTHING
		`, item.ID, item.SourceID, item.ExternalID, item.Title, item.URL, item.Excerpt,
			item.PublishedAt, item.IngestedAt)
		if err != nil {
			return accepted, fmt.Errorf("failed to store item %s/%s: %w", sourceID, ri.ExternalID, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return accepted, fmt.Errorf("failed to check insert result: %w", err)
		}
		if affected == 0 {
			// Already seen in an earlier cycle.
			continue
		}

		accepted = append(accepted, item)
	}

	return accepted, nil
}

func (r *itemRepository) LatestCheckpoint(sourceID string) (*time.Time, error) {
	var publishedAt sql.NullTime
	var ingestedAt time.Time

	err := r.db.QueryRow(`
		SELECT published_at, ingested_at
		FROM items
		WHERE source_id = ?
		ORDER BY COALESCE(published_at, ingested_at) DESC
		LIMIT 1
	`, sourceID).Scan(&publishedAt, &ingestedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest checkpoint: %w", err)
	}

	checkpoint := ingestedAt
	if publishedAt.Valid {
		checkpoint = publishedAt.Time
	}
	checkpoint = checkpoint.UTC()

	return &checkpoint, nil
}

func (r *itemRepository) GetItemCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM items").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

func normalizeUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
