// Package store persists comparison runs in SQLite or Postgres.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// ErrNotFound is returned when a comparison ID does not exist.
var ErrNotFound = eris.New("store: comparison not found")

// ListFilter specifies criteria for listing comparisons.
type ListFilter struct {
	Label  string `json:"label,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for comparison runs.
type Store interface {
	// SaveComparison assigns an ID and creation time to c and stores it
	// with its full result.
	SaveComparison(ctx context.Context, c model.Comparison) (*model.Comparison, error)
	GetComparison(ctx context.Context, id string) (*model.Comparison, error)
	// ListComparisons returns newest first, without results.
	ListComparisons(ctx context.Context, filter ListFilter) ([]model.Comparison, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(f ListFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

func checkSavable(c model.Comparison) error {
	if c.Result == nil {
		return eris.New("store: comparison has no result")
	}
	return nil
}
