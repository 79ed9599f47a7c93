package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/newsdigest/app/database"
	"github.com/lysyi3m/newsdigest/app/sources"
)

// Summarizer produces a short description for one item. Unavailability
// is a valid outcome: the assembler falls back to the raw excerpt/title
// and never lets summarization block digest creation.
type Summarizer interface {
	Summarize(ctx context.Context, title, excerpt string) (string, error)
}

type Assembler struct {
	summarizer Summarizer // nil disables summarization
	renderer   *Renderer
}

func NewAssembler(summarizer Summarizer) *Assembler {
	return &Assembler{
		summarizer: summarizer,
		renderer:   NewRenderer(),
	}
}

// Build assembles the digest for one cycle. Items are grouped by source
// in configuration order and sorted newest-first within each group.
// Returns nil when there are no items; that cycle delivers nothing.
func (a *Assembler) Build(ctx context.Context, cycleID string, srcs []*sources.Config, accepted map[string][]database.Item) (*database.Digest, []database.DigestItem, error) {
	total := 0
	for _, items := range accepted {
		total += len(items)
	}
	if total == 0 {
		return nil, nil, nil
	}

	digestID := uuid.NewString()

	var groups []Group
	var digestItems []database.DigestItem
	position := 0

	for _, src := range srcs {
		items := accepted[src.ID]
		if len(items) == 0 {
			continue
		}

		sorted := make([]database.Item, len(items))
		copy(sorted, items)
		sort.SliceStable(sorted, func(i, j int) bool {
			return effectiveTime(sorted[i]).After(effectiveTime(sorted[j]))
		})

		group := Group{Label: src.Label}
		for _, item := range sorted {
			summary := a.summarize(ctx, item)

			group.Items = append(group.Items, GroupItem{
				Title:       item.Title,
				URL:         item.URL,
				Summary:     summary,
				PublishedAt: item.PublishedAt,
			})

			digestItems = append(digestItems, database.DigestItem{
				DigestID: digestID,
				ItemID:   item.ID,
				Position: position,
				Summary:  summary,
			})
			position++
		}

		groups = append(groups, group)
	}

	generatedAt := time.Now().UTC()
	subject := fmt.Sprintf("News digest: %s (%d new)", generatedAt.Format("Mon, 02 Jan 2006"), total)

	body, err := a.renderer.Run(subject, groups)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render digest: %w", err)
	}

	digest := &database.Digest{
		ID:          digestID,
		CycleID:     cycleID,
		GeneratedAt: generatedAt,
		Subject:     subject,
		Body:        body,
		ItemCount:   total,
	}

	return digest, digestItems, nil
}

func (a *Assembler) summarize(ctx context.Context, item database.Item) string {
	if a.summarizer == nil {
		return fallbackSummary(item)
	}

	summary, err := a.summarizer.Summarize(ctx, item.Title, item.Excerpt)
	if err != nil || summary == "" {
		slog.Warn("Summarization failed, using raw text", "item_id", item.ID, "error", err)
		return fallbackSummary(item)
	}

	return summary
}

func fallbackSummary(item database.Item) string {
	if item.Excerpt != "" {
		return item.Excerpt
	}
	return item.Title
}

func effectiveTime(item database.Item) time.Time {
	if item.PublishedAt != nil {
		return *item.PublishedAt
	}
	return item.IngestedAt
}
