package fetch

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/newsdigest/app/sources"
)

// A YouTube channel ID always starts with "UC" and is 24 characters total.
var channelIDRe = regexp.MustCompile(`^UC[\w-]{22}$`)

// The channel page embeds the canonical channel URL in its HTML.
var canonicalChannelRe = regexp.MustCompile(`youtube\.com/channel/(UC[\w-]{22})`)

const videoFeedURL = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"

const transcriptURL = "https://www.youtube.com/api/timedtext?lang=en&v=%s"

// VideoAdapter fetches recent uploads of a video platform channel via its
// public RSS feed. The configured channel may be a channel ID (UC...), an
// @handle, or a legacy username; handles and usernames are resolved once
// by scraping the channel page and the result is kept for later cycles.
type VideoAdapter struct {
	src        *sources.Config
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	lookback   time.Duration

	channelID string
}

func NewVideoAdapter(src *sources.Config, client *http.Client, userAgent string, lookback time.Duration) *VideoAdapter {
	return &VideoAdapter{
		src:        src,
		httpClient: client,
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		lookback:   lookback,
	}
}

func (a *VideoAdapter) Fetch(ctx context.Context, checkpoint *time.Time) ([]RawItem, error) {
	channelID, err := a.resolveChannelID(ctx)
	if err != nil {
		return nil, err
	}

	data, err := fetchURL(ctx, a.httpClient, fmt.Sprintf(videoFeedURL, channelID), a.userAgent, a.src.ID)
	if err != nil {
		return nil, err
	}

	feed, err := a.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, newError(a.src.ID, ErrorKindMalformed, false, fmt.Errorf("failed to parse video feed: %w", err))
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

		videoID := extractVideoID(entry)
		if videoID == "" {
			continue
		}

		excerpt := videoDescription(entry)
		if a.src.Settings.Transcript {
			transcript, err := a.fetchTranscript(ctx, videoID)
			if err != nil {
				slog.Debug("Transcript unavailable, using description",
					"source", a.src.ID, "video", videoID, "error", err)
			} else {
				excerpt = transcript
			}
		}

		items = append(items, RawItem{
			ExternalID:  videoID,
			Title:       entry.Title,
			URL:         entry.Link,
			Excerpt:     excerpt,
			PublishedAt: publishedAt,
		})
	}

	return items, nil
}

func (a *VideoAdapter) resolveChannelID(ctx context.Context) (string, error) {
	if a.channelID != "" {
		return a.channelID, nil
	}

	channel := a.src.Channel
	if channelIDRe.MatchString(channel) {
		a.channelID = channel
		return channel, nil
	}

	// Handles (@name) and legacy usernames share the same canonical URL form.
	pageURL := "https://www.youtube.com/" + channel
	if channel[0] != '@' {
		pageURL = "https://www.youtube.com/@" + channel
	}

	data, err := fetchURL(ctx, a.httpClient, pageURL, a.userAgent, a.src.ID)
	if err != nil {
		return "", err
	}

	match := canonicalChannelRe.FindSubmatch(data)
	if match == nil {
		return "", newError(a.src.ID, ErrorKindMalformed, false,
			fmt.Errorf("could not extract a channel ID from %q", pageURL))
	}

	a.channelID = string(match[1])
	return a.channelID, nil
}

type timedTextTrack struct {
	Texts []string `xml:"text"`
}

// fetchTranscript pulls the English timed-text track for a video and
// flattens it into a single excerpt, capped at the excerpt length.
// Videos without captions return an empty body from the endpoint.
func (a *VideoAdapter) fetchTranscript(ctx context.Context, videoID string) (string, error) {
	data, err := fetchURL(ctx, a.httpClient, fmt.Sprintf(transcriptURL, videoID), a.userAgent, a.src.ID)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", fmt.Errorf("no transcript available")
	}

	var track timedTextTrack
	if err := xml.Unmarshal(data, &track); err != nil {
		return "", fmt.Errorf("failed to parse transcript: %w", err)
	}

	// Caption text arrives HTML-entity encoded on top of the XML encoding.
	text := html.UnescapeString(strings.Join(track.Texts, " "))
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", fmt.Errorf("transcript track is empty")
	}

	return truncateAtWord(text, maxExcerptLength), nil
}

// extractVideoID reads the yt:videoId feed extension, falling back to the
// v= query parameter of the entry link.
func extractVideoID(entry *gofeed.Item) string {
	if ext, ok := entry.Extensions["yt"]["videoId"]; ok && len(ext) > 0 {
		return ext[0].Value
	}

	if entry.Link != "" {
		if u, err := url.Parse(entry.Link); err == nil {
			if v := u.Query().Get("v"); v != "" {
				return v
			}
		}
	}

	return ""
}

// videoDescription prefers the media:group description over the plain
// entry description, matching what the feed actually carries.
func videoDescription(entry *gofeed.Item) string {
	if groups, ok := entry.Extensions["media"]["group"]; ok && len(groups) > 0 {
		if descs, ok := groups[0].Children["description"]; ok && len(descs) > 0 && descs[0].Value != "" {
			return descs[0].Value
		}
	}
	return entry.Description
}
