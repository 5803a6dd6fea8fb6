// Package categories manages the canonical category list: seeded defaults
// plus per-user additions.
package categories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Category labels transactions. Default categories have a NULL user_id.
type Category struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Name      string     `json:"name"`
	Slug      string     `json:"slug"`
	IsDefault bool       `json:"is_default"`
	CreatedAt time.Time  `json:"created_at"`
}

// Repo is the persistence surface for categories.
type Repo interface {
	List(ctx context.Context, userID uuid.UUID) ([]Category, error)
	GetBySlug(ctx context.Context, userID uuid.UUID, slug string) (*Category, error)
	Create(ctx context.Context, userID uuid.UUID, name, slug string) (*Category, error)
}

// DBTX is the subset of pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db DBTX
}

var _ Repo = (*Repository)(nil)

func NewPostgresRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, name, slug, is_default, created_at
		FROM categories
		WHERE user_id IS NULL OR user_id = $1
		ORDER BY is_default DESC, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Slug, &c.IsDefault, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetBySlug(ctx context.Context, userID uuid.UUID, slug string) (*Category, error) {
	var c Category
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, name, slug, is_default, created_at
		FROM categories
		WHERE slug = $2 AND (user_id IS NULL OR user_id = $1)
		ORDER BY user_id NULLS LAST
		LIMIT 1`, userID, slug).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Slug, &c.IsDefault, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) Create(ctx context.Context, userID uuid.UUID, name, slug string) (*Category, error) {
	var c Category
	err := r.db.QueryRow(ctx, `
		INSERT INTO categories (user_id, name, slug)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, user_id, name, slug, is_default, created_at`,
		userID, name, slug).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Slug, &c.IsDefault, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	return &c, nil
}
