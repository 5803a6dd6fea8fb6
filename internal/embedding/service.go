// Package embedding backfills vector embeddings for transactions so the
// semantic search and enhancer context queries have something to match on.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennypilot/internal/domain/transactions"
	"github.com/FACorreiaa/pennypilot/internal/llm"
	"github.com/FACorreiaa/pennypilot/pkg/metrics"
)

// Store is the slice of the transaction repository the backfill needs.
type Store interface {
	ListMissingEmbedding(ctx context.Context, limit int) ([]transactions.Transaction, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
}

type Service struct {
	store     Store
	embedder  llm.Embedder
	batchSize int
	logger    *slog.Logger
}

func NewService(store Store, embedder llm.Embedder, batchSize int, logger *slog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger.With("component", "embedding"),
	}
}

// Backfill embeds one batch of transactions that have no embedding yet.
// Individual row failures are logged and retried on the next poll.
func (s *Service) Backfill(ctx context.Context) error {
	rows, err := s.store.ListMissingEmbedding(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("list missing embeddings: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = row.Description
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch of %d: %w", len(texts), err)
	}
	if len(vectors) != len(rows) {
		return fmt.Errorf("embed batch returned %d vectors for %d rows", len(vectors), len(rows))
	}

	stored := 0
	for i, row := range rows {
		if err := s.store.UpdateEmbedding(ctx, row.ID, vectors[i]); err != nil {
			s.logger.Warn("storing embedding", "transaction_id", row.ID, "error", err)
			continue
		}
		stored++
	}

	metrics.EmbeddingsBackfilledTotal.Add(float64(stored))
	s.logger.Info("embedding backfill", "batch", len(rows), "stored", stored)
	return nil
}
