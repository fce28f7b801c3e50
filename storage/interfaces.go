package storage

import (
	"context"

	"github.com/lym-afla/Encar/models"
)

// Store is the persistent-store collaborator: listing upserts plus the
// observation state used for change detection. Each call is atomic; the core
// never needs multi-record transactions across calls.
type Store interface {
	UpsertListing(ctx context.Context, l *models.Listing) error
	GetObservedIDs(ctx context.Context) ([]string, error)
	SetObservedIDs(ctx context.Context, ids []string) error
	Close() error
}
