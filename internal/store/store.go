// Package store defines the persistence port for earthquakes and fetch logs.
package store

import (
	"context"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// Store persists canonical earthquakes keyed by ID.
//
// Upsert is insert-or-replace: a later write for the same ID overwrites the
// required fields, overwrites optional fields only when the new value is
// present, and keeps the RecordedAt of the first insert. Applying the same
// batch twice, in any order, leaves the same rows.
//
// Implementations report an unreachable backend as *domain.StoreUnavailableError
// and a missing row as domain.ErrNotFound.
type Store interface {
	Upsert(ctx context.Context, eq domain.Earthquake) error
	// QueryAll returns rows ordered by OccurredAt descending and the total
	// number of rows matching the filter before limit/offset.
	QueryAll(ctx context.Context, filter domain.QueryFilter) ([]domain.Earthquake, int, error)
	GetByID(ctx context.Context, id string) (domain.Earthquake, error)
	AppendFetchLog(ctx context.Context, entry domain.FetchLog) error

	Ping(ctx context.Context) error
	Close() error
}
