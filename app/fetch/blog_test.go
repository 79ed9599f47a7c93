package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lysyi3m/newsdigest/app/sources"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Test Blog</title>
  <link>https://example.com</link>
  <item>
    <guid>post-1</guid>
    <title>First Post</title>
    <link>https://example.com/post-1</link>
    <description>First post description</description>
    <pubDate>Mon, 03 Jul 2023 10:00:00 +0000</pubDate>
  </item>
  <item>
    <guid>post-2</guid>
    <title>Second Post</title>
    <link>https://example.com/post-2</link>
    <description>Second post description</description>
    <pubDate>Sat, 01 Jul 2023 10:00:00 +0000</pubDate>
  </item>
</channel>
</rss>`

func blogSource(feedURL string) *sources.Config {
	return &sources.Config{
		ID:      "test-blog",
		Kind:    sources.KindBlog,
		Label:   "Test Blog",
		FeedURL: feedURL,
		Settings: sources.ConfigSettings{
			Enabled:  true,
			MaxItems: 50,
		},
	}
}

func TestBlogAdapterFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleFeed)
	}))
	defer server.Close()

	adapter := NewBlogAdapter(blogSource(server.URL), server.Client(), "test-agent", 24*time.Hour)

	// Checkpoint before both posts: everything comes back.
	checkpoint := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	items, err := adapter.Fetch(context.Background(), &checkpoint)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ExternalID != "post-1" {
		t.Errorf("Expected external ID 'post-1', got '%s'", items[0].ExternalID)
	}
	if items[0].Title != "First Post" {
		t.Errorf("Expected title 'First Post', got '%s'", items[0].Title)
	}
	if items[0].Excerpt != "First post description" {
		t.Errorf("Unexpected excerpt: %s", items[0].Excerpt)
	}
	if items[0].PublishedAt == nil {
		t.Error("Expected published timestamp to be set")
	}
}

func TestBlogAdapterCheckpointFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleFeed)
	}))
	defer server.Close()

	adapter := NewBlogAdapter(blogSource(server.URL), server.Client(), "test-agent", 24*time.Hour)

	// Checkpoint after post-2 but before post-1: only post-1 is new.
	checkpoint := time.Date(2023, 7, 2, 0, 0, 0, 0, time.UTC)
	items, err := adapter.Fetch(context.Background(), &checkpoint)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].ExternalID != "post-1" {
		t.Errorf("Expected only 'post-1', got '%s'", items[0].ExternalID)
	}
}

func TestBlogAdapterMaxItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleFeed)
	}))
	defer server.Close()

	src := blogSource(server.URL)
	src.Settings.MaxItems = 1

	adapter := NewBlogAdapter(src, server.Client(), "test-agent", 24*time.Hour)

	checkpoint := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	items, err := adapter.Fetch(context.Background(), &checkpoint)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item with max_items=1, got %d", len(items))
	}
}

func TestBlogAdapterErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantKind      ErrorKind
		wantRetryable bool
	}{
		{"server error", http.StatusInternalServerError, ErrorKindNetwork, true},
		{"rate limited", http.StatusTooManyRequests, ErrorKindRateLimit, true},
		{"unauthorized", http.StatusUnauthorized, ErrorKindAuth, false},
		{"forbidden", http.StatusForbidden, ErrorKindAuth, false},
		{"not found", http.StatusNotFound, ErrorKindNetwork, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			adapter := NewBlogAdapter(blogSource(server.URL), server.Client(), "test-agent", 24*time.Hour)

			_, err := adapter.Fetch(context.Background(), nil)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}

			var fetchErr *Error
			if !errors.As(err, &fetchErr) {
				t.Fatalf("Expected *fetch.Error, got %T", err)
			}
			if fetchErr.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, fetchErr.Kind)
			}
			if fetchErr.Retryable != tt.wantRetryable {
				t.Errorf("Expected retryable=%v, got %v", tt.wantRetryable, fetchErr.Retryable)
			}
			if fetchErr.SourceID != "test-blog" {
				t.Errorf("Expected source 'test-blog', got '%s'", fetchErr.SourceID)
			}
		})
	}
}

func TestBlogAdapterMalformedFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer server.Close()

	adapter := NewBlogAdapter(blogSource(server.URL), server.Client(), "test-agent", 24*time.Hour)

	_, err := adapter.Fetch(context.Background(), nil)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected *fetch.Error, got %T", err)
	}
	if fetchErr.Kind != ErrorKindMalformed {
		t.Errorf("Expected kind malformed, got %s", fetchErr.Kind)
	}
	if fetchErr.Retryable {
		t.Error("Malformed feed should not be retryable")
	}
}
