package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lysyi3m/newsdigest/app/sources"
)

// Adapter fetches raw candidate items for one configured source.
// checkpoint is the most recent successfully processed timestamp for the
// source; nil means first run, in which case adapters fetch a bounded
// recent window rather than full history. Adapters are pure reads: no
// dedup, no retries, no shared state.
type Adapter interface {
	Fetch(ctx context.Context, checkpoint *time.Time) ([]RawItem, error)
}

// NewAdapter dispatches on the source kind.
func NewAdapter(src *sources.Config, client *http.Client, userAgent string, lookback time.Duration) (Adapter, error) {
	switch src.Kind {
	case sources.KindBlog:
		return NewBlogAdapter(src, client, userAgent, lookback), nil
	case sources.KindVideo:
		return NewVideoAdapter(src, client, userAgent, lookback), nil
	default:
		return nil, fmt.Errorf("no adapter for source kind %q", src.Kind)
	}
}

// cutoff computes the earliest accepted publish time for a fetch.
func cutoff(checkpoint *time.Time, lookback time.Duration) time.Time {
	if checkpoint != nil {
		return *checkpoint
	}
	return time.Now().UTC().Add(-lookback)
}
