package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS comparisons`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveComparison(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO comparisons`).
		WithArgs(pgxmock.AnyArg(), "cliente 1", "planilha.xlsx", "cnis.pdf", "2024-06-30",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	saved, err := s.SaveComparison(context.Background(), sampleComparison("cliente 1"))
	require.NoError(t, err)
	assert.Len(t, saved.ID, 36)
	assert.Equal(t, 1, saved.Summary.Matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveComparison_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO comparisons`).
		WillReturnError(errors.New("connection reset"))

	_, err := s.SaveComparison(context.Background(), sampleComparison("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert comparison")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetComparison(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	rows := mock.NewRows([]string{"id", "label", "source_a", "source_b", "as_of", "summary", "result", "created_at"}).
		AddRow("abc", "cliente", "a.xlsx", "b.pdf", "",
			[]byte(`{"total_a":2,"matched":1}`),
			[]byte(`{"matches":[{"period_a_index":1,"period_b_index":0,"match_tier":"high"}],"summary":{"total_a":2}}`),
			now)
	mock.ExpectQuery(`SELECT id, label, source_a, source_b, as_of, summary, result, created_at FROM comparisons WHERE id = \$1`).
		WithArgs("abc").
		WillReturnRows(rows)

	got, err := s.GetComparison(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "cliente", got.Label)
	assert.Equal(t, 2, got.Summary.TotalA)
	assert.Equal(t, now, got.CreatedAt)
	require.NotNil(t, got.Result)
	require.Len(t, got.Result.Matches, 1)
	assert.Equal(t, 1, got.Result.Matches[0].PeriodAIndex)
	assert.Equal(t, model.TierHigh, got.Result.Matches[0].Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetComparison_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM comparisons WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetComparison(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListComparisons(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	rows := mock.NewRows([]string{"id", "label", "source_a", "source_b", "as_of", "summary", "created_at"}).
		AddRow("2", "cliente", "a.xlsx", "b.pdf", "", []byte(`{"matched":3}`), now).
		AddRow("1", "cliente", "a.xlsx", "b.pdf", "", []byte(`{"matched":1}`), now.Add(-time.Hour))
	mock.ExpectQuery(`FROM comparisons WHERE true AND label = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("cliente", 10, 5).
		WillReturnRows(rows)

	list, err := s.ListComparisons(context.Background(), ListFilter{Label: "cliente", Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2", list[0].ID)
	assert.Equal(t, 3, list[0].Summary.Matched)
	assert.Nil(t, list[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListComparisons_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$1$`).
		WithArgs(defaultListLimit).
		WillReturnRows(mock.NewRows([]string{"id", "label", "source_a", "source_b", "as_of", "summary", "created_at"}))

	list, err := s.ListComparisons(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	closed := false
	s := &PostgresStore{closeFn: func() { closed = true }}
	require.NoError(t, s.Close())
	assert.True(t, closed)

	assert.NoError(t, (&PostgresStore{}).Close())
}
