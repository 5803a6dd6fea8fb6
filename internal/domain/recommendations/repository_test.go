package recommendations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)
	userID := uuid.New()
	slug := "groceries"
	expiresAt := time.Now().Add(7 * 24 * time.Hour)

	recs := []Recommendation{
		{Title: "Trim subscriptions", Message: "msg1", Priority: "high", ExpiresAt: expiresAt},
		{Title: "Meal plan", Message: "msg2", Priority: "medium", CategorySlug: &slug, ExpiresAt: expiresAt},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE recommendations SET active = FALSE").
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec("INSERT INTO recommendations").
		WithArgs(userID, "Trim subscriptions", "msg1", "high", (*string)(nil), expiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO recommendations").
		WithArgs(userID, "Meal plan", "msg2", "medium", &slug, expiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceActive(context.Background(), userID, recs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceActiveRollsBackOnInsertFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE recommendations SET active = FALSE").
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("INSERT INTO recommendations").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = repo.ReplaceActive(context.Background(), userID, []Recommendation{
		{Title: "t", Message: "m", Priority: "low", ExpiresAt: time.Now()},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)
	userID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "title", "message", "priority", "category_slug", "active", "expires_at", "created_at",
	}).AddRow(uuid.New(), userID, "Trim subscriptions", "msg", "high", (*string)(nil), true, now.Add(time.Hour), now)

	mock.ExpectQuery("SELECT id, user_id, title, message").
		WithArgs(userID).
		WillReturnRows(rows)

	recs, err := repo.ListActive(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Trim subscriptions", recs[0].Title)
	assert.True(t, recs[0].Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}
