package fetch

import (
	"fmt"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

const maxExcerptLength = 500

// ExcerptExtractor produces a short plain-text excerpt from an article
// page, used when a feed entry carries no description of its own.
type ExcerptExtractor struct{}

func NewExcerptExtractor() *ExcerptExtractor {
	return &ExcerptExtractor{}
}

func (e *ExcerptExtractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.TrimSpace(strings.Join(strings.Fields(article.TextContent), " "))
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	return truncateAtWord(text, maxExcerptLength), nil
}

func truncateAtWord(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := s[:limit]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
