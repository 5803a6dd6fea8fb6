package transactions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transactionRowColumns = []string{
	"id", "user_id", "occurred_at", "description", "raw_description",
	"merchant", "amount_cents", "currency", "category_id", "slug",
	"category_source", "import_job_id", "created_at", "updated_at",
}

func transactionRow(id, userID uuid.UUID, description string, cents int64, slug *string) []any {
	now := time.Now()
	return []any{
		id, userID, now, description, description,
		(*string)(nil), cents, "EUR", (*uuid.UUID)(nil), slug,
		(*string)(nil), (*uuid.UUID)(nil), now, now,
	}
}

func TestListPaginates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT count").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	slug := "groceries"
	mock.ExpectQuery("SELECT(.|\n)*FROM transactions").
		WithArgs(userID, 2, 10).
		WillReturnRows(pgxmock.NewRows(transactionRowColumns).
			AddRow(transactionRow(uuid.New(), userID, "LIDL LISBOA", -2350, &slug)...).
			AddRow(transactionRow(uuid.New(), userID, "UBER TRIP", -850, nil)...))

	txs, total, err := repo.List(context.Background(), userID, ListFilter{Limit: 2, Offset: 10})
	require.NoError(t, err)

	assert.Equal(t, 42, total)
	require.Len(t, txs, 2)
	assert.Equal(t, "LIDL LISBOA", txs[0].Description)
	assert.Equal(t, "groceries", *txs[0].CategorySlug)
	assert.Nil(t, txs[1].CategorySlug)
}

func TestListAppliesFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	userID := uuid.New()
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT count").
		WithArgs(userID, "groceries", "%lidl%", from).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery("SELECT(.|\n)*ILIKE").
		WithArgs(userID, "groceries", "%lidl%", from, 50, 0).
		WillReturnRows(pgxmock.NewRows(transactionRowColumns))

	_, total, err := repo.List(context.Background(), userID, ListFilter{
		CategorySlug: "groceries",
		Search:       "lidl",
		From:         &from,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertCommitsAllRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	userID := uuid.New()
	occurred := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	txs := []NewTransaction{
		{OccurredAt: occurred, Description: "LIDL", RawDescription: "LIDL LISBOA", AmountCents: -2350, Currency: "EUR"},
		{OccurredAt: occurred, Description: "PAYCHECK", RawDescription: "PAYCHECK", AmountCents: 150000, Currency: "EUR"},
	}

	mock.ExpectBegin()
	for _, tx := range txs {
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(userID, tx.OccurredAt, tx.Description, tx.RawDescription, (*string)(nil),
				tx.AmountCents, tx.Currency, (*uuid.UUID)(nil), (*string)(nil), (*uuid.UUID)(nil)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	inserted, err := repo.BulkInsert(context.Background(), userID, txs)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertRollsBackOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = repo.BulkInsert(context.Background(), userID, []NewTransaction{{Description: "x", Currency: "EUR"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertEmptyIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	inserted, err := repo.BulkInsert(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCategoryMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	userID, id := uuid.New(), uuid.New()
	catID := uuid.New()

	mock.ExpectExec("UPDATE transactions").
		WithArgs(userID, id, &catID, "user").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateCategory(context.Background(), userID, id, &catID, "user")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestCategorySpending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	userID := uuid.New()
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery("SELECT(.|\n)*GROUP BY").
		WithArgs(userID, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"slug", "name", "total", "currency", "count"}).
			AddRow("groceries", "Groceries", int64(45000), "EUR", 12).
			AddRow("uncategorized", "Uncategorized", int64(900), "USD", 1))

	spends, err := repo.CategorySpending(context.Background(), userID, from, to)
	require.NoError(t, err)

	require.Len(t, spends, 2)
	assert.Equal(t, "groceries", spends[0].CategorySlug)
	assert.Equal(t, int64(45000), spends[0].TotalCents)
	assert.Equal(t, "EUR", spends[0].Currency)
	assert.Equal(t, 12, spends[0].Count)
	assert.Equal(t, "USD", spends[1].Currency)
}

func TestActiveUserIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	a, b := uuid.New(), uuid.New()
	since := time.Now().AddDate(0, 0, -7)

	mock.ExpectQuery("SELECT DISTINCT user_id").
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(a).AddRow(b))

	ids, err := repo.ActiveUserIDs(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)
}
