// Package transactions owns the transaction store: listing, search,
// category spend aggregates and the embedding column.
package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Transaction is one statement line after import.
type Transaction struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	OccurredAt     time.Time  `json:"occurred_at"`
	Description    string     `json:"description"`
	RawDescription string     `json:"raw_description"`
	Merchant       *string    `json:"merchant,omitempty"`
	AmountCents    int64      `json:"amount_cents"`
	Currency       string     `json:"currency"`
	CategoryID     *uuid.UUID `json:"category_id,omitempty"`
	CategorySlug   *string    `json:"category,omitempty"`
	CategorySource *string    `json:"category_source,omitempty"`
	ImportJobID    *uuid.UUID `json:"import_job_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewTransaction is the insert payload produced by the importers.
type NewTransaction struct {
	OccurredAt     time.Time
	Description    string
	RawDescription string
	Merchant       *string
	AmountCents    int64
	Currency       string
	CategoryID     *uuid.UUID
	CategorySource *string
	ImportJobID    *uuid.UUID
}

// ListFilter narrows and pages a transaction listing.
type ListFilter struct {
	Limit        int
	Offset       int
	CategorySlug string
	Search       string
	From         *time.Time
	To           *time.Time
}

// CategorySpend is an aggregate over a date range. Currency is the most
// frequent currency among the aggregated rows.
type CategorySpend struct {
	CategorySlug string `json:"category"`
	CategoryName string `json:"category_name"`
	TotalCents   int64  `json:"total_cents"`
	Currency     string `json:"currency"`
	Count        int    `json:"count"`
}

// Enhancement is the LLM's cleanup for one transaction.
type Enhancement struct {
	TransactionID uuid.UUID
	Description   string
	CategoryID    *uuid.UUID
	Source        string
}

// Repo is the persistence surface for transactions.
type Repo interface {
	List(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]Transaction, int, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*Transaction, error)
	BulkInsert(ctx context.Context, userID uuid.UUID, txs []NewTransaction) (int, error)
	UpdateCategory(ctx context.Context, userID, id uuid.UUID, categoryID *uuid.UUID, source string) error
	ApplyEnhancements(ctx context.Context, userID uuid.UUID, enhancements []Enhancement) error
	ListUncategorized(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error)
	ListRecentCategorized(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error)
	CategorySpending(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]CategorySpend, error)
	Search(ctx context.Context, userID uuid.UUID, query string, from, to *time.Time, limit int) ([]Transaction, error)
	SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, limit int) ([]Transaction, error)
	ListMissingEmbedding(ctx context.Context, limit int) ([]Transaction, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	ActiveUserIDs(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// DBTX is the subset of pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository is the Postgres implementation.
type Repository struct {
	db DBTX
}

var _ Repo = (*Repository)(nil)

func NewPostgresRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

const transactionColumns = `
	t.id, t.user_id, t.occurred_at, t.description, t.raw_description,
	t.merchant, t.amount_cents, t.currency, t.category_id, c.slug,
	t.category_source, t.import_job_id, t.created_at, t.updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.OccurredAt, &t.Description, &t.RawDescription,
		&t.Merchant, &t.AmountCents, &t.Currency, &t.CategoryID, &t.CategorySlug,
		&t.CategorySource, &t.ImportJobID, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) List(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]Transaction, int, error) {
	where := `WHERE t.user_id = $1`
	args := []any{userID}

	if filter.CategorySlug != "" {
		args = append(args, filter.CategorySlug)
		where += fmt.Sprintf(" AND c.slug = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND t.description ILIKE $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(" AND t.occurred_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(" AND t.occurred_at <= $%d", len(args))
	}

	var total int
	countQuery := `SELECT count(*) FROM transactions t LEFT JOIN categories c ON c.id = t.category_id ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting transactions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		%s
		ORDER BY t.occurred_at DESC, t.created_at DESC
		LIMIT $%d OFFSET $%d`, transactionColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing transactions: %w", err)
	}

	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (r *Repository) GetByID(ctx context.Context, userID, id uuid.UUID) (*Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND t.id = $2`, transactionColumns)

	t, err := scanTransaction(r.db.QueryRow(ctx, query, userID, id))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) BulkInsert(ctx context.Context, userID uuid.UUID, txs []NewTransaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insert = `
		INSERT INTO transactions (
			user_id, occurred_at, description, raw_description, merchant,
			amount_cents, currency, category_id, category_source, import_job_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	inserted := 0
	for _, t := range txs {
		if _, err := tx.Exec(ctx, insert,
			userID, t.OccurredAt, t.Description, t.RawDescription, t.Merchant,
			t.AmountCents, t.Currency, t.CategoryID, t.CategorySource, t.ImportJobID,
		); err != nil {
			return 0, fmt.Errorf("inserting transaction: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing insert: %w", err)
	}
	return inserted, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, userID, id uuid.UUID, categoryID *uuid.UUID, source string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET category_id = $3, category_source = $4, updated_at = now()
		WHERE user_id = $1 AND id = $2`,
		userID, id, categoryID, source)
	if err != nil {
		return fmt.Errorf("updating category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) ApplyEnhancements(ctx context.Context, userID uuid.UUID, enhancements []Enhancement) error {
	if len(enhancements) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning enhancement transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const update = `
		UPDATE transactions
		SET description = $3,
			category_id = COALESCE($4, category_id),
			category_source = CASE WHEN $4 IS NOT NULL THEN $5 ELSE category_source END,
			updated_at = now()
		WHERE user_id = $1 AND id = $2`

	for _, e := range enhancements {
		if _, err := tx.Exec(ctx, update, userID, e.TransactionID, e.Description, e.CategoryID, e.Source); err != nil {
			return fmt.Errorf("applying enhancement: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListUncategorized(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND t.category_id IS NULL
		ORDER BY t.created_at DESC
		LIMIT $2`, transactionColumns)

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing uncategorized: %w", err)
	}
	return collectTransactions(rows)
}

func (r *Repository) ListRecentCategorized(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1
		ORDER BY t.occurred_at DESC
		LIMIT $2`, transactionColumns)

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing categorized history: %w", err)
	}
	return collectTransactions(rows)
}

func (r *Repository) CategorySpending(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]CategorySpend, error) {
	rows, err := r.db.Query(ctx, `
		SELECT COALESCE(c.slug, 'uncategorized'),
			COALESCE(c.name, 'Uncategorized'),
			COALESCE(sum(-t.amount_cents), 0),
			mode() WITHIN GROUP (ORDER BY t.currency),
			count(*)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1
			AND t.occurred_at >= $2 AND t.occurred_at <= $3
			AND t.amount_cents < 0
		GROUP BY 1, 2
		ORDER BY 3 DESC`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregating category spending: %w", err)
	}
	defer rows.Close()

	var out []CategorySpend
	for rows.Next() {
		var s CategorySpend
		if err := rows.Scan(&s.CategorySlug, &s.CategoryName, &s.TotalCents, &s.Currency, &s.Count); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) Search(ctx context.Context, userID uuid.UUID, query string, from, to *time.Time, limit int) ([]Transaction, error) {
	where := `WHERE t.user_id = $1 AND (t.description ILIKE $2 OR t.merchant ILIKE $2)`
	args := []any{userID, "%" + query + "%"}

	if from != nil {
		args = append(args, *from)
		where += fmt.Sprintf(" AND t.occurred_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += fmt.Sprintf(" AND t.occurred_at <= $%d", len(args))
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	args = append(args, limit)

	sql := fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		%s
		ORDER BY t.occurred_at DESC
		LIMIT $%d`, transactionColumns, where, len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("searching transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *Repository) SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND t.embedding IS NOT NULL
		ORDER BY t.embedding <=> $2
		LIMIT $3`, transactionColumns)

	rows, err := r.db.Query(ctx, query, userID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("searching similar transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *Repository) ListMissingEmbedding(ctx context.Context, limit int) ([]Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.embedding IS NULL
		ORDER BY t.created_at DESC
		LIMIT $1`, transactionColumns)

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transactions without embeddings: %w", err)
	}
	return collectTransactions(rows)
}

func (r *Repository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	_, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET embedding = $2, embedded_at = now()
		WHERE id = $1`,
		id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("updating embedding: %w", err)
	}
	return nil
}

func (r *Repository) ActiveUserIDs(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT user_id FROM transactions WHERE created_at >= $1`, since)
	if err != nil {
		return nil, fmt.Errorf("listing active users: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
