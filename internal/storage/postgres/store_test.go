package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpipe/marketpipe/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestBuildQuery(t *testing.T) {
	spec := upsertSpec{
		table:    "daily_prices",
		columns:  []string{"symbol", "date", "close"},
		conflict: []string{"symbol", "date"},
		pageSize: 2,
	}
	assert.Equal(t,
		"INSERT INTO daily_prices (symbol, date, close) VALUES ($1, $2, $3), ($4, $5, $6)"+
			" ON CONFLICT (symbol, date) DO UPDATE SET close = EXCLUDED.close",
		spec.buildQuery(2))

	spec.lastUpdated = true
	assert.Equal(t,
		"INSERT INTO daily_prices (symbol, date, close) VALUES ($1, $2, $3)"+
			" ON CONFLICT (symbol, date) DO UPDATE SET close = EXCLUDED.close, last_updated = CURRENT_TIMESTAMP",
		spec.buildQuery(1))
}

func TestBulkUpsertPages(t *testing.T) {
	store, mock := newMockStore(t)

	spec := upsertSpec{
		table:    "t",
		columns:  []string{"a", "b"},
		conflict: []string{"a"},
		pageSize: 2,
	}
	rows := [][]any{{"1", "x"}, {"2", "y"}, {"3", "z"}}

	mock.ExpectBegin()
	mock.ExpectExec(spec.buildQuery(2)).
		WithArgs("1", "x", "2", "y").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(spec.buildQuery(1)).
		WithArgs("3", "z").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.inTx(context.Background(), func(tx *sqlx.Tx) error {
		return bulkUpsert(context.Background(), tx, spec, rows)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDailyPrices(t *testing.T) {
	store, mock := newMockStore(t)

	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	closePx := 187.15
	volume := int64(1000)

	mock.ExpectBegin()
	mock.ExpectExec(dailyPricesSpec.buildQuery(1)).
		WithArgs("AAPL", date, nil, nil, nil, closePx, volume).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.UpsertDailyPrices(context.Background(), []models.DailyPrice{{
		Symbol: "AAPL",
		Date:   date,
		Close:  &closePx,
		Volume: &volume,
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	boom := errors.New("deadlock detected")
	mock.ExpectBegin()
	mock.ExpectExec(stocksSpec.buildQuery(1)).WillReturnError(boom)
	mock.ExpectRollback()

	err := store.UpsertStocks(context.Background(), []models.StockListing{{Symbol: "AAPL"}})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEmptyInputIsNoop(t *testing.T) {
	store, mock := newMockStore(t)

	require.NoError(t, store.UpsertDailyPrices(context.Background(), nil))
	require.NoError(t, store.UpsertStocks(context.Background(), nil))
	require.NoError(t, store.UpsertNewsStocks(context.Background(), nil))

	ids, err := store.UpsertNewsArticles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertNewsArticlesReturnsIDMap(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(newsArticlesSpec.buildQuery(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(selectNewsIDsByURL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "url"}).
			AddRow(int64(11), "https://example.com/a").
			AddRow(int64(12), "https://example.com/b"))
	mock.ExpectCommit()

	ids, err := store.UpsertNewsArticles(context.Background(), []models.NewsArticle{
		{URL: "https://example.com/a"},
		{URL: "https://example.com/b"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		"https://example.com/a": 11,
		"https://example.com/b": 12,
	}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
