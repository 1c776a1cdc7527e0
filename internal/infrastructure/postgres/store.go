package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pricetrail/backend/internal/domain"
)

const connectTimeout = 5 * time.Second

const schemaSQL = `
CREATE TABLE IF NOT EXISTS crawls (
    id           BIGSERIAL PRIMARY KEY,
    title        TEXT NOT NULL,
    price        DOUBLE PRECISION NOT NULL CHECK (price >= 0),
    url          TEXT NOT NULL,
    code         TEXT NOT NULL,
    date         TEXT NOT NULL,
    site         TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    published_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS crawls_site_date_idx ON crawls (site, date);
`

const selectColumns = `id, title, price, url, code, date, site, created_at, updated_at, published_at`

// Open creates a pgx pool for dsn and checks connectivity
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Printf("[Postgres] connected (max conns %d)", cfg.MaxConns)
	return pool, nil
}

// Store is a PriceStore backed by the crawls table
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the crawls table and its scope index if missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// buildFindQuery renders the select for a filter with positional args
func buildFindQuery(filter domain.RecordFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Site != "" {
		args = append(args, filter.Site)
		conds = append(conds, fmt.Sprintf("site = $%d", len(args)))
	}
	if filter.Date != "" {
		args = append(args, filter.Date)
		conds = append(conds, fmt.Sprintf("date = $%d", len(args)))
	}

	q := "SELECT " + selectColumns + " FROM crawls"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY date, id"
	return q, args
}

// FindRecords returns all rows matching the filter, oldest day first
func (s *Store) FindRecords(ctx context.Context, filter domain.RecordFilter) ([]domain.PriceRecord, error) {
	q, args := buildFindQuery(filter)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreRead, err)
	}
	defer rows.Close()

	records := make([]domain.PriceRecord, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreRead, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreRead, err)
	}
	return records, nil
}

// CreateRecord inserts a row and returns it with id and timestamps
func (s *Store) CreateRecord(ctx context.Context, record domain.PriceRecord) (*domain.PriceRecord, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO crawls (title, price, url, code, date, site)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+selectColumns,
		record.Title, record.Price, record.URL, record.Code, record.Date, record.Site)

	created, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err)
	}
	return &created, nil
}

// DeleteRecord removes a row by id; deleting a missing id is not an error
func (s *Store) DeleteRecord(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM crawls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete %d: %v", domain.ErrStoreWrite, id, err)
	}
	if tag.RowsAffected() == 0 {
		log.Printf("[Postgres] delete of missing id %d ignored", id)
	}
	return nil
}

func scanRecord(row pgx.Row) (domain.PriceRecord, error) {
	var (
		r                               domain.PriceRecord
		id                              int64
		createdAt, updatedAt, published time.Time
	)
	err := row.Scan(&id, &r.Title, &r.Price, &r.URL, &r.Code, &r.Date, &r.Site, &createdAt, &updatedAt, &published)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, fmt.Errorf("no row returned: %w", err)
		}
		return r, err
	}
	r.ID = int(id)
	r.CreatedAt = &createdAt
	r.UpdatedAt = &updatedAt
	r.PublishedAt = &published
	return r, nil
}
