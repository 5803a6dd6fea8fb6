package categorization

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Rule is a user-defined pattern to category mapping. UserID is nil for
// rules shipped with the seed data.
type Rule struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	Pattern      string     `json:"pattern"`
	CategorySlug string     `json:"category"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Merchant is a globally known merchant name with its usual category.
type Merchant struct {
	ID           uuid.UUID
	Name         string
	CategorySlug string
}

type Repo interface {
	ListRules(ctx context.Context, userID uuid.UUID) ([]Rule, error)
	ListMerchants(ctx context.Context) ([]Merchant, error)
	CreateRule(ctx context.Context, userID uuid.UUID, pattern, categorySlug string) (*Rule, error)
}

type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db DBTX
}

var _ Repo = (*Repository)(nil)

func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListRules(ctx context.Context, userID uuid.UUID) ([]Rule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, pattern, category_slug, created_at
		FROM category_rules
		WHERE user_id IS NULL OR user_id = $1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.UserID, &rule.Pattern, &rule.CategorySlug, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *Repository) ListMerchants(ctx context.Context) ([]Merchant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, category_slug
		FROM merchants
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	defer rows.Close()

	var merchants []Merchant
	for rows.Next() {
		var m Merchant
		if err := rows.Scan(&m.ID, &m.Name, &m.CategorySlug); err != nil {
			return nil, fmt.Errorf("scan merchant: %w", err)
		}
		merchants = append(merchants, m)
	}
	return merchants, rows.Err()
}

func (r *Repository) CreateRule(ctx context.Context, userID uuid.UUID, pattern, categorySlug string) (*Rule, error) {
	var rule Rule
	err := r.db.QueryRow(ctx, `
		INSERT INTO category_rules (user_id, pattern, category_slug)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, pattern) DO UPDATE SET category_slug = EXCLUDED.category_slug
		RETURNING id, user_id, pattern, category_slug, created_at`,
		userID, pattern, categorySlug,
	).Scan(&rule.ID, &rule.UserID, &rule.Pattern, &rule.CategorySlug, &rule.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	return &rule, nil
}
