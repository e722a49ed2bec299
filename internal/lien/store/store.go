// Package store defines the persistence interfaces for the lien engine.
// Implementations exist in memory (tests, single-node) and on PostgreSQL.
package store

import (
	"context"

	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
)

// ListFilter narrows a lien listing. Zero values mean "no constraint".
type ListFilter struct {
	Status *models.Status
	State  string
	County string
	MinAPR uint16
	MaxAPR uint16
}

// Page bounds a listing. Limit <= 0 falls back to the implementation default.
type Page struct {
	Limit  int
	Offset int
}

// RegistryStore persists the singleton registry.
//
// Execute is the registry serialization point: the callback receives the
// current registry under the store's lock (mutex or SELECT FOR UPDATE) and
// its mutations commit only when the callback returns nil. Concurrent
// issuances therefore never assign the same id and fee totals never lose
// updates.
type RegistryStore interface {
	// Create stores the singleton. Returns sentinel.ErrConflict if a
	// registry already exists.
	Create(ctx context.Context, registry *models.Registry) error

	// Get returns the registry, or sentinel.ErrNotFound before
	// initialization.
	Get(ctx context.Context) (*models.Registry, error)

	// Execute runs fn with exclusive access to the registry. The context
	// passed to fn carries the store's transaction, if any, so nested store
	// calls commit or roll back together.
	Execute(ctx context.Context, fn func(ctx context.Context, registry *models.Registry) error) (*models.Registry, error)
}

// LienStore persists lien records keyed by id. Records on distinct ids are
// independent; implementations may serialize per record or globally.
type LienStore interface {
	// Create stores a new record. Returns sentinel.ErrConflict on a
	// duplicate id.
	Create(ctx context.Context, record *models.LienRecord) error

	// Get returns a record, or sentinel.ErrNotFound.
	Get(ctx context.Context, lienID id.LienID) (*models.LienRecord, error)

	// List returns matching records ordered by id, plus the total match
	// count before pagination.
	List(ctx context.Context, filter ListFilter, page Page) ([]*models.LienRecord, int, error)

	// Execute atomically validates and mutates one record under its lock.
	// The mutation commits only when validate returns nil.
	Execute(ctx context.Context, lienID id.LienID, validate func(*models.LienRecord) error, apply func(*models.LienRecord)) (*models.LienRecord, error)

	// Settle destroys the record iff fn returns nil, under the record's
	// lock. fn performs the settlement guards and the fund transfer; a
	// failed fn leaves the record untouched.
	Settle(ctx context.Context, lienID id.LienID, fn func(*models.LienRecord) error) error

	// Delete removes a record unconditionally. Used to unwind a partially
	// committed issuance when the fee transfer fails.
	Delete(ctx context.Context, lienID id.LienID) error
}
