package scheduler

import (
	"context"

	"github.com/lysyi3m/newsdigest/app/database"
	"github.com/lysyi3m/newsdigest/app/sources"
)

// FetchRunner executes one fetch pass over the enabled sources.
type FetchRunner interface {
	Run(ctx context.Context, srcs []*sources.Config) *Result
}

// DigestBuilder assembles a digest from the cycle's accepted items.
// Implementations return a nil digest when there is nothing to send.
type DigestBuilder interface {
	Build(ctx context.Context, cycleID string, srcs []*sources.Config, accepted map[string][]database.Item) (*database.Digest, []database.DigestItem, error)
}

// DigestDeliverer sends an assembled digest to the configured recipients.
type DigestDeliverer interface {
	Deliver(ctx context.Context, digest *database.Digest) error
}
