// Package recommendations runs the savings-advice agent and stores its
// output.
package recommendations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Recommendation is one saved piece of advice.
type Recommendation struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Priority     string    `json:"priority"` // low | medium | high
	CategorySlug *string   `json:"category,omitempty"`
	Active       bool      `json:"active"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type Repo interface {
	ReplaceActive(ctx context.Context, userID uuid.UUID, recs []Recommendation) error
	ListActive(ctx context.Context, userID uuid.UUID) ([]Recommendation, error)
}

type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repository struct {
	db DBTX
}

var _ Repo = (*Repository)(nil)

func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// ReplaceActive expires the user's current recommendations and inserts the
// new set in one transaction, so readers never see a mixed set.
func (r *Repository) ReplaceActive(ctx context.Context, userID uuid.UUID, recs []Recommendation) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE recommendations SET active = FALSE
		WHERE user_id = $1 AND active`, userID); err != nil {
		return fmt.Errorf("expiring recommendations: %w", err)
	}

	const insert = `
		INSERT INTO recommendations (user_id, title, message, priority, category_slug, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, rec := range recs {
		if _, err := tx.Exec(ctx, insert,
			userID, rec.Title, rec.Message, rec.Priority, rec.CategorySlug, rec.ExpiresAt,
		); err != nil {
			return fmt.Errorf("inserting recommendation: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListActive(ctx context.Context, userID uuid.UUID) ([]Recommendation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, title, message, priority, category_slug, active, expires_at, created_at
		FROM recommendations
		WHERE user_id = $1 AND active AND expires_at > now()
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing recommendations: %w", err)
	}
	defer rows.Close()

	var out []Recommendation
	for rows.Next() {
		var rec Recommendation
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Title, &rec.Message, &rec.Priority,
			&rec.CategorySlug, &rec.Active, &rec.ExpiresAt, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning recommendation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
