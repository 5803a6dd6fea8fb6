package transactions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennypilot/internal/domain/categories"
	"github.com/FACorreiaa/pennypilot/internal/llm"
)

// Page is a paginated transaction listing.
type Page struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}

// Service exposes transaction reads and category corrections.
type Service struct {
	repo       Repo
	categories *categories.Service
	embedder   llm.Embedder
	logger     *slog.Logger
}

func NewService(repo Repo, cats *categories.Service, embedder llm.Embedder, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		categories: cats,
		embedder:   embedder,
		logger:     logger,
	}
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, filter ListFilter) (*Page, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	txs, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	return &Page{
		Transactions: txs,
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}, nil
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetByID(ctx, userID, id)
}

// UpdateCategory reassigns a transaction to the category named by slug.
// An empty slug clears the category.
func (s *Service) UpdateCategory(ctx context.Context, userID, id uuid.UUID, slug string) error {
	var categoryID *uuid.UUID
	if slug != "" {
		cat, err := s.categories.Resolve(ctx, userID, slug)
		if err != nil {
			return err
		}
		if cat == nil {
			return fmt.Errorf("unknown category %q", slug)
		}
		categoryID = &cat.ID
	}
	return s.repo.UpdateCategory(ctx, userID, id, categoryID, "manual")
}

// Search finds transactions by text, or by embedding similarity when
// semantic is set and an embedder is configured. Semantic search degrades
// to text search if the query embedding fails.
func (s *Service) Search(ctx context.Context, userID uuid.UUID, query string, semantic bool, limit int) ([]Transaction, error) {
	if semantic && s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, query)
		if err == nil {
			return s.repo.SearchSimilar(ctx, userID, vec, limit)
		}
		s.logger.Warn("semantic search fell back to text",
			slog.String("query", query), slog.Any("error", err))
	}
	return s.repo.Search(ctx, userID, query, nil, nil, limit)
}

func (s *Service) CategorySpending(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]CategorySpend, error) {
	return s.repo.CategorySpending(ctx, userID, from, to)
}
