package database

import (
	"time"
)

// Item is a stored piece of content. The (SourceID, ExternalID) pair is
// the dedup key; rows are write-once and never modified by later cycles.
type Item struct {
	ID          string
	SourceID    string
	ExternalID  string
	Title       string
	URL         string
	Excerpt     string
	PublishedAt *time.Time // as reported by the source, may be absent
	IngestedAt  time.Time
}

type CycleStatus string

const (
	CycleStatusRunning        CycleStatus = "running"
	CycleStatusSucceeded      CycleStatus = "succeeded"
	CycleStatusPartialFailure CycleStatus = "partial_failure"
	CycleStatusFailed         CycleStatus = "failed"
)

type DeliveryStatus string

const (
	DeliveryStatusNone      DeliveryStatus = "none"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// CycleRun records one execution of the full pipeline.
type CycleRun struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       *time.Time
	Status           CycleStatus
	SourcesAttempted int
	ItemsNew         int
	DigestID         *string
	DeliveryStatus   DeliveryStatus
}

// SourceFailure records why one source failed during a cycle.
type SourceFailure struct {
	CycleID  string
	SourceID string
	Error    string
}

// Digest is the assembled output for one cycle. Body is the rendered
// HTML; the structured item list lives in digest_items.
type Digest struct {
	ID          string
	CycleID     string
	GeneratedAt time.Time
	Subject     string
	Body        string
	ItemCount   int
}

type DigestItem struct {
	DigestID string
	ItemID   string
	Position int
	Summary  string
}

type DeliveryAttempt struct {
	DigestID    string
	Attempt     int
	AttemptedAt time.Time
	Success     bool
	Error       string
}
