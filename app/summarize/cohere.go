package summarize

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

const preamble = "You write one-or-two sentence summaries of news items for a personal email digest. Be factual and concise; no preamble, no markdown."

// CohereSummarizer generates short item descriptions via the Cohere chat
// API. It satisfies digest.Summarizer; callers treat any error as
// "unavailable" and fall back to raw text.
type CohereSummarizer struct {
	client *cohereclient.Client
	model  string
}

func NewCohereSummarizer(apiKey, model string, httpClient *http.Client) *CohereSummarizer {
	return &CohereSummarizer{
		client: cohereclient.NewClient(
			cohereclient.WithToken(apiKey),
			cohereclient.WithHTTPClient(httpClient),
		),
		model: model,
	}
}

func (s *CohereSummarizer) Summarize(ctx context.Context, title, excerpt string) (string, error) {
	message := "Title: " + title
	if excerpt != "" {
		message += "\n\n" + excerpt
	}

	resp, err := s.client.Chat(ctx, &cohere.ChatRequest{
		Message:  message,
		Model:    &s.model,
		Preamble: stringPtr(preamble),
	})
	if err != nil {
		return "", fmt.Errorf("cohere chat error: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("cohere returned an empty summary")
	}

	return text, nil
}

func stringPtr(s string) *string {
	return &s
}
