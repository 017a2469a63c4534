package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS comparisons (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	source_a   TEXT NOT NULL DEFAULT '',
	source_b   TEXT NOT NULL DEFAULT '',
	as_of      TEXT NOT NULL DEFAULT '',
	summary    TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_comparisons_created_at ON comparisons(created_at);
CREATE INDEX IF NOT EXISTS idx_comparisons_label ON comparisons(label);
`

// Migrate creates the comparisons table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveComparison inserts c under a new ID.
func (s *SQLiteStore) SaveComparison(ctx context.Context, c model.Comparison) (*model.Comparison, error) {
	if err := checkSavable(c); err != nil {
		return nil, err
	}
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()
	c.Summary = c.Result.Summary

	summaryJSON, err := json.Marshal(c.Summary)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal summary")
	}
	resultJSON, err := json.Marshal(c.Result)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comparisons (id, label, source_a, source_b, as_of, summary, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Label, c.SourceA, c.SourceB, c.AsOf, string(summaryJSON), string(resultJSON), c.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert comparison")
	}
	return &c, nil
}

// GetComparison fetches a comparison with its full result.
func (s *SQLiteStore) GetComparison(ctx context.Context, id string) (*model.Comparison, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, source_a, source_b, as_of, summary, result, created_at
		 FROM comparisons WHERE id = ?`,
		id,
	)

	var c model.Comparison
	var summaryJSON, resultJSON string
	err := row.Scan(&c.ID, &c.Label, &c.SourceA, &c.SourceB, &c.AsOf, &summaryJSON, &resultJSON, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get comparison %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get comparison %s", id)
	}
	if err := json.Unmarshal([]byte(summaryJSON), &c.Summary); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal summary")
	}
	c.Result = &model.ComparisonResult{}
	if err := json.Unmarshal([]byte(resultJSON), c.Result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	return &c, nil
}

// ListComparisons returns stored comparisons newest first.
func (s *SQLiteStore) ListComparisons(ctx context.Context, filter ListFilter) ([]model.Comparison, error) {
	query := `SELECT id, label, source_a, source_b, as_of, summary, created_at FROM comparisons WHERE 1=1`
	var args []any

	if filter.Label != "" {
		query += ` AND label = ?`
		args = append(args, filter.Label)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list comparisons")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Comparison{}
	for rows.Next() {
		var c model.Comparison
		var summaryJSON string
		if err := rows.Scan(&c.ID, &c.Label, &c.SourceA, &c.SourceB, &c.AsOf, &summaryJSON, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan comparison")
		}
		if err := json.Unmarshal([]byte(summaryJSON), &c.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list comparisons iterate")
}
