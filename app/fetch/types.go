package fetch

import (
	"fmt"
	"time"
)

// RawItem is a single piece of content as reported by a source, before
// deduplication. ExternalID is the source-assigned stable identifier
// (video ID, post GUID or URL).
type RawItem struct {
	ExternalID  string
	Title       string
	URL         string
	Excerpt     string
	PublishedAt *time.Time
}

type ErrorKind string

const (
	ErrorKindNetwork   ErrorKind = "network"
	ErrorKindAuth      ErrorKind = "auth"
	ErrorKindMalformed ErrorKind = "malformed"
	ErrorKindRateLimit ErrorKind = "rate_limit"
)

// Error is a typed fetch failure. Adapters never retry internally;
// Retryable tells the orchestrator whether another attempt makes sense.
type Error struct {
	SourceID  string
	Kind      ErrorKind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s failed (%s): %v", e.SourceID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(sourceID string, kind ErrorKind, retryable bool, err error) *Error {
	return &Error{SourceID: sourceID, Kind: kind, Retryable: retryable, Err: err}
}
