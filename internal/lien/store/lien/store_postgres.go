package lien

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	"github.com/taxlien-online/taxlien-nft/internal/lien/store"
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/sentinel"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/tx"
)

const selectColumns = `id, state, county, parcel_id, face_amount, property_value, apr, issue_date, status, investor, invested_amount, redemption_date`

// Postgres persists lien records in PostgreSQL. Execute and Settle lock the
// record row FOR UPDATE, so validate-then-mutate and guard-then-destroy are
// atomic against concurrent settlement attempts on the same lien.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed lien store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the lien_records table if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS lien_records (
			id              bigint PRIMARY KEY,
			state           text NOT NULL,
			county          text NOT NULL,
			parcel_id       text NOT NULL,
			face_amount     bigint NOT NULL,
			property_value  bigint NOT NULL,
			apr             integer NOT NULL,
			issue_date      bigint NOT NULL,
			status          text NOT NULL,
			investor        uuid NOT NULL,
			invested_amount bigint NOT NULL,
			redemption_date bigint NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate lien_records: %w", err)
	}
	return nil
}

// querier abstracts *sql.DB and *sql.Tx so writes join a surrounding
// registry transaction carried in context.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) querier {
	if dbtx, ok := tx.From(ctx); ok {
		return dbtx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, record *models.LienRecord) error {
	if record == nil {
		return fmt.Errorf("lien record is required")
	}
	query := `
		INSERT INTO lien_records (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		int64(record.ID),
		record.State,
		record.County,
		record.ParcelID,
		int64(record.FaceAmount),
		int64(record.PropertyValue),
		int32(record.APR),
		record.IssueDate,
		string(record.Status),
		uuid.UUID(record.Investor),
		int64(record.InvestedAmount),
		record.RedemptionDate,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create lien record: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, lienID id.LienID) (*models.LienRecord, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM lien_records WHERE id = $1`, int64(lienID))
	return scanRecord(row)
}

func (s *Postgres) List(ctx context.Context, filter store.ListFilter, page store.Page) ([]*models.LienRecord, int, error) {
	where, args := buildFilter(filter)

	var total int
	countQuery := `SELECT count(*) FROM lien_records` + where
	if err := s.conn(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count lien records: %w", err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	query := fmt.Sprintf(`SELECT `+selectColumns+` FROM lien_records%s ORDER BY id LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := s.conn(ctx).QueryContext(ctx, query, append(args, limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list lien records: %w", err)
	}
	defer rows.Close()

	var records []*models.LienRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list lien records: %w", err)
	}
	return records, total, nil
}

func (s *Postgres) Execute(ctx context.Context, lienID id.LienID, validate func(*models.LienRecord) error, apply func(*models.LienRecord)) (*models.LienRecord, error) {
	var updated *models.LienRecord
	err := s.withRowLock(ctx, lienID, func(dbtx *sql.Tx, record *models.LienRecord) error {
		if err := validate(record); err != nil {
			return err
		}
		apply(record)
		_, err := dbtx.ExecContext(ctx, `
			UPDATE lien_records
			SET status = $1, redemption_date = $2
			WHERE id = $3
		`, string(record.Status), record.RedemptionDate, int64(lienID))
		if err != nil {
			return fmt.Errorf("update lien record: %w", err)
		}
		updated = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Postgres) Settle(ctx context.Context, lienID id.LienID, fn func(*models.LienRecord) error) error {
	return s.withRowLock(ctx, lienID, func(dbtx *sql.Tx, record *models.LienRecord) error {
		if err := fn(record); err != nil {
			return err
		}
		if _, err := dbtx.ExecContext(ctx, `DELETE FROM lien_records WHERE id = $1`, int64(lienID)); err != nil {
			return fmt.Errorf("settle lien record: %w", err)
		}
		return nil
	})
}

func (s *Postgres) Delete(ctx context.Context, lienID id.LienID) error {
	result, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM lien_records WHERE id = $1`, int64(lienID))
	if err != nil {
		return fmt.Errorf("delete lien record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete lien record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// withRowLock locks the record FOR UPDATE in its own transaction and commits
// only when fn succeeds. Settlement runs here rather than in the surrounding
// registry transaction because settlement never touches the registry.
func (s *Postgres) withRowLock(ctx context.Context, lienID id.LienID, fn func(dbtx *sql.Tx, record *models.LienRecord) error) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lien tx: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	row := dbtx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM lien_records WHERE id = $1 FOR UPDATE`, int64(lienID))
	record, err := scanRecord(row)
	if err != nil {
		return err
	}
	if err := fn(dbtx, record); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit lien tx: %w", err)
	}
	return nil
}

func buildFilter(filter store.ListFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.State != "" {
		add("state = $%d", filter.State)
	}
	if filter.County != "" {
		add("county = $%d", filter.County)
	}
	if filter.MinAPR != 0 {
		add("apr >= $%d", int32(filter.MinAPR))
	}
	if filter.MaxAPR != 0 {
		add("apr <= $%d", int32(filter.MaxAPR))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.LienRecord, error) {
	var (
		record   models.LienRecord
		recordID int64
		face     int64
		value    int64
		apr      int32
		status   string
		investor uuid.UUID
		invested int64
	)
	err := row.Scan(
		&recordID,
		&record.State,
		&record.County,
		&record.ParcelID,
		&face,
		&value,
		&apr,
		&record.IssueDate,
		&status,
		&investor,
		&invested,
		&record.RedemptionDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan lien record: %w", err)
	}
	record.ID = id.LienID(recordID)
	record.FaceAmount = uint64(face)
	record.PropertyValue = uint64(value)
	record.APR = uint16(apr)
	record.Status = models.Status(status)
	record.Investor = id.AccountID(investor)
	record.InvestedAmount = uint64(invested)
	return &record, nil
}
