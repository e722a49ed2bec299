package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/sentinel"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/tx"
)

// Postgres persists the registry singleton in PostgreSQL. A CHECK-constrained
// boolean primary key keeps the table at one row; Execute takes a row lock so
// concurrent issuances serialize on the database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the registry table if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS lien_registry (
			singleton            boolean PRIMARY KEY DEFAULT true CHECK (singleton),
			admin_account        uuid NOT NULL,
			fee_account          uuid NOT NULL,
			next_lien_id         bigint NOT NULL DEFAULT 0,
			total_fees_collected bigint NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate lien_registry: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, registry *models.Registry) error {
	if registry == nil {
		return fmt.Errorf("registry is required")
	}
	query := `
		INSERT INTO lien_registry (singleton, admin_account, fee_account, next_lien_id, total_fees_collected)
		VALUES (true, $1, $2, $3, $4)
		ON CONFLICT (singleton) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		uuid.UUID(registry.AdminAccount),
		uuid.UUID(registry.FeeAccount),
		int64(registry.NextLienID),
		int64(registry.TotalFeesCollected),
	)
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context) (*models.Registry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT admin_account, fee_account, next_lien_id, total_fees_collected
		FROM lien_registry WHERE singleton
	`)
	return scanRegistry(row)
}

// Execute reads the registry FOR UPDATE inside a transaction, runs fn with
// the transaction in fn's context, and writes the counters back on success.
// Lien store calls made with fn's context join the same transaction.
func (s *Postgres) Execute(ctx context.Context, fn func(ctx context.Context, registry *models.Registry) error) (*models.Registry, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin registry tx: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	row := dbtx.QueryRowContext(ctx, `
		SELECT admin_account, fee_account, next_lien_id, total_fees_collected
		FROM lien_registry WHERE singleton
		FOR UPDATE
	`)
	registry, err := scanRegistry(row)
	if err != nil {
		return nil, err
	}

	if err := fn(tx.WithTx(ctx, dbtx), registry); err != nil {
		return nil, err
	}

	_, err = dbtx.ExecContext(ctx, `
		UPDATE lien_registry
		SET next_lien_id = $1, total_fees_collected = $2
		WHERE singleton
	`, int64(registry.NextLienID), int64(registry.TotalFeesCollected))
	if err != nil {
		return nil, fmt.Errorf("update registry: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registry tx: %w", err)
	}
	return registry, nil
}

func scanRegistry(row *sql.Row) (*models.Registry, error) {
	var (
		admin, fee uuid.UUID
		nextID     int64
		totalFees  int64
	)
	if err := row.Scan(&admin, &fee, &nextID, &totalFees); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan registry: %w", err)
	}
	return &models.Registry{
		AdminAccount:       id.AccountID(admin),
		FeeAccount:         id.AccountID(fee),
		NextLienID:         uint64(nextID),
		TotalFeesCollected: uint64(totalFees),
	}, nil
}
