package api

import (
	"context"

	"github.com/lysyi3m/newsdigest/app/database"
	"github.com/lysyi3m/newsdigest/app/sources"
)

type DelivererInterface interface {
	Deliver(ctx context.Context, digest *database.Digest) error
}

type Handler struct {
	sourcesCache *sources.Cache
	itemRepo     database.ItemRepository
	cycleRepo    database.CycleRepository
	digestRepo   database.DigestRepository
	deliverer    DelivererInterface
}
