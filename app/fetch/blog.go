package fetch

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/newsdigest/app/sources"
)

// BlogAdapter fetches a blog's RSS/Atom feed and maps entries newer than
// the checkpoint to raw items. The entry GUID (falling back to the link)
// is the external identifier.
type BlogAdapter struct {
	src        *sources.Config
	httpClient *http.Client
	parser     *gofeed.Parser
	extractor  *ExcerptExtractor
	userAgent  string
	lookback   time.Duration
}

func NewBlogAdapter(src *sources.Config, client *http.Client, userAgent string, lookback time.Duration) *BlogAdapter {
	return &BlogAdapter{
		src:        src,
		httpClient: client,
		parser:     gofeed.NewParser(),
		extractor:  NewExcerptExtractor(),
		userAgent:  userAgent,
		lookback:   lookback,
	}
}

func (a *BlogAdapter) Fetch(ctx context.Context, checkpoint *time.Time) ([]RawItem, error) {
	data, err := fetchURL(ctx, a.httpClient, a.src.FeedURL, a.userAgent, a.src.ID)
	if err != nil {
		return nil, err
	}

	feed, err := a.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, newError(a.src.ID, ErrorKindMalformed, false, fmt.Errorf("failed to parse feed: %w", err))
	}

	since := cutoff(checkpoint, a.lookback)

	var items []RawItem
	for _, entry := range feed.Items {
		if len(items) >= a.src.Settings.MaxItems {
			break
		}

		publishedAt := entryPublishedAt(entry)
		if publishedAt != nil && !publishedAt.After(since) {
			continue
		}

		item := RawItem{
			ExternalID:  cmp.Or(entry.GUID, entry.Link),
			Title:       entry.Title,
			URL:         entry.Link,
			Excerpt:     cmp.Or(entry.Description, entry.Content),
			PublishedAt: publishedAt,
		}

		if item.Excerpt == "" && a.src.Settings.ExtractExcerpt && entry.Link != "" {
			excerpt, err := a.extractExcerpt(ctx, entry.Link)
			if err != nil {
				slog.Debug("Excerpt extraction failed", "source", a.src.ID, "url", entry.Link, "error", err)
			} else {
				item.Excerpt = excerpt
			}
		}

		items = append(items, item)
	}

	return items, nil
}

func (a *BlogAdapter) extractExcerpt(ctx context.Context, pageURL string) (string, error) {
	data, err := fetchURL(ctx, a.httpClient, pageURL, a.userAgent, a.src.ID)
	if err != nil {
		return "", err
	}
	return a.extractor.Run(data)
}

func entryPublishedAt(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed
	}
	return entry.UpdatedParsed
}

// fetchURL performs a GET and maps transport and HTTP status failures to
// typed fetch errors.
func fetchURL(ctx context.Context, client *http.Client, url, userAgent, sourceID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, newError(sourceID, ErrorKindNetwork, false, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, newError(sourceID, ErrorKindNetwork, true, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newError(sourceID, ErrorKindAuth, false, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, newError(sourceID, ErrorKindRateLimit, true, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status))
	case resp.StatusCode >= 500:
		return nil, newError(sourceID, ErrorKindNetwork, true, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status))
	default:
		return nil, newError(sourceID, ErrorKindNetwork, false, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(sourceID, ErrorKindNetwork, true, fmt.Errorf("failed to read response body: %w", err))
	}

	return data, nil
}
