package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS comparisons (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	label      TEXT NOT NULL DEFAULT '',
	source_a   TEXT NOT NULL DEFAULT '',
	source_b   TEXT NOT NULL DEFAULT '',
	as_of      TEXT NOT NULL DEFAULT '',
	summary    JSONB NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_comparisons_created_at ON comparisons(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_comparisons_label ON comparisons(label);
`

// Migrate creates the comparisons table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveComparison inserts c under a new ID.
func (s *PostgresStore) SaveComparison(ctx context.Context, c model.Comparison) (*model.Comparison, error) {
	if err := checkSavable(c); err != nil {
		return nil, err
	}
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()
	c.Summary = c.Result.Summary

	summaryJSON, err := json.Marshal(c.Summary)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal summary")
	}
	resultJSON, err := json.Marshal(c.Result)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal result")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO comparisons (id, label, source_a, source_b, as_of, summary, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Label, c.SourceA, c.SourceB, c.AsOf, summaryJSON, resultJSON, c.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert comparison")
	}
	return &c, nil
}

// GetComparison fetches a comparison with its full result.
func (s *PostgresStore) GetComparison(ctx context.Context, id string) (*model.Comparison, error) {
	var c model.Comparison
	var summaryJSON, resultJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, label, source_a, source_b, as_of, summary, result, created_at FROM comparisons WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Label, &c.SourceA, &c.SourceB, &c.AsOf, &summaryJSON, &resultJSON, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get comparison %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get comparison %s", id)
	}

	if err := json.Unmarshal(summaryJSON, &c.Summary); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal summary")
	}
	c.Result = &model.ComparisonResult{}
	if err := json.Unmarshal(resultJSON, c.Result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result")
	}
	return &c, nil
}

// ListComparisons returns stored comparisons newest first.
func (s *PostgresStore) ListComparisons(ctx context.Context, filter ListFilter) ([]model.Comparison, error) {
	query := `SELECT id, label, source_a, source_b, as_of, summary, created_at FROM comparisons WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Label != "" {
		query += fmt.Sprintf(` AND label = $%d`, argIdx)
		args = append(args, filter.Label)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list comparisons")
	}
	defer rows.Close()

	out := []model.Comparison{}
	for rows.Next() {
		var c model.Comparison
		var summaryJSON []byte
		if err := rows.Scan(&c.ID, &c.Label, &c.SourceA, &c.SourceB, &c.AsOf, &summaryJSON, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan comparison")
		}
		if err := json.Unmarshal(summaryJSON, &c.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list comparisons iterate")
}
