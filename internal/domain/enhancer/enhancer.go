// Package enhancer cleans up imported transactions: readable descriptions
// and categories for the rows the rule/merchant pre-pass could not handle.
// Enhancement is best effort. When the model fails, rows stay as imported
// and the next run picks them up again.
package enhancer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennypilot/internal/domain/categories"
	"github.com/FACorreiaa/pennypilot/internal/domain/categorization"
	"github.com/FACorreiaa/pennypilot/internal/domain/transactions"
	"github.com/FACorreiaa/pennypilot/internal/llm"
	"github.com/FACorreiaa/pennypilot/pkg/money"
)

const (
	batchLimit    = 50
	historyLimit  = 40
	neighborLimit = 5
)

// TransactionStore is the slice of the transaction repository the enhancer
// reads and writes.
type TransactionStore interface {
	ListUncategorized(ctx context.Context, userID uuid.UUID, limit int) ([]transactions.Transaction, error)
	ListRecentCategorized(ctx context.Context, userID uuid.UUID, limit int) ([]transactions.Transaction, error)
	SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, limit int) ([]transactions.Transaction, error)
	ApplyEnhancements(ctx context.Context, userID uuid.UUID, enhancements []transactions.Enhancement) error
}

// Categorizer is the rule/merchant pre-pass.
type Categorizer interface {
	Match(ctx context.Context, userID uuid.UUID, description string) (*categorization.Match, error)
}

// Resolver maps model category names back to canonical categories.
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, name string) (*categories.Category, error)
	List(ctx context.Context, userID uuid.UUID) ([]categories.Category, error)
}

type Service struct {
	store       TransactionStore
	categorizer Categorizer
	resolver    Resolver
	client      llm.Client
	embedder    llm.Embedder
	logger      *slog.Logger
}

func New(
	store TransactionStore,
	categorizer Categorizer,
	resolver Resolver,
	client llm.Client,
	embedder llm.Embedder,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:       store,
		categorizer: categorizer,
		resolver:    resolver,
		client:      client,
		embedder:    embedder,
		logger:      logger.With("component", "enhancer"),
	}
}

// EnhanceUncategorized processes one batch of uncategorized transactions
// for a user. Rows the rule pre-pass resolves never reach the model.
func (s *Service) EnhanceUncategorized(ctx context.Context, userID uuid.UUID) error {
	rows, err := s.store.ListUncategorized(ctx, userID, batchLimit)
	if err != nil {
		return fmt.Errorf("list uncategorized: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	var enhancements []transactions.Enhancement
	var pending []transactions.Transaction

	for _, row := range rows {
		match, err := s.categorizer.Match(ctx, userID, row.Description)
		if err != nil {
			s.logger.Warn("pre-pass match failed", "error", err)
			pending = append(pending, row)
			continue
		}
		if match == nil {
			pending = append(pending, row)
			continue
		}

		cat, err := s.resolver.Resolve(ctx, userID, match.CategorySlug)
		if err != nil || cat == nil {
			pending = append(pending, row)
			continue
		}
		enhancements = append(enhancements, transactions.Enhancement{
			TransactionID: row.ID,
			Description:   row.Description,
			CategoryID:    &cat.ID,
			Source:        match.Source,
		})
	}

	if len(pending) > 0 {
		llmEnhancements, err := s.enhanceWithModel(ctx, userID, pending)
		if err != nil {
			// Rows stay untouched. The heuristic results still apply.
			s.logger.Warn("model enhancement failed, leaving rows as imported",
				"user_id", userID, "pending", len(pending), "error", err)
		} else {
			enhancements = append(enhancements, llmEnhancements...)
		}
	}

	if len(enhancements) == 0 {
		return nil
	}

	if err := s.store.ApplyEnhancements(ctx, userID, enhancements); err != nil {
		return fmt.Errorf("apply enhancements: %w", err)
	}

	s.logger.Info("enhanced transactions",
		"user_id", userID,
		"total", len(rows),
		"enhanced", len(enhancements))
	return nil
}

var enhanceSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"transactions": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":          map[string]interface{}{"type": "string"},
					"description": map[string]interface{}{"type": "string"},
					"category":    map[string]interface{}{"type": "string"},
				},
				"required": []string{"id", "description", "category"},
			},
		},
	},
	"required": []string{"transactions"},
}

type enhancedRow struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

const enhanceSystemPrompt = `You clean up bank transaction descriptions and assign categories.
Rewrite each raw description as a short human-readable merchant or purpose
(e.g. "COMPRA 0472 LIDL AMADORA REF992" becomes "Lidl"). Pick the category from the
provided list only. Use "other" when nothing fits. Return one entry per input id.`

func (s *Service) enhanceWithModel(ctx context.Context, userID uuid.UUID, pending []transactions.Transaction) ([]transactions.Enhancement, error) {
	prompt, err := s.buildPrompt(ctx, userID, pending)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.CompleteJSON(ctx, enhanceSystemPrompt, prompt, enhanceSchema)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Transactions []enhancedRow `json:"transactions"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("decode enhancement response: %w", err)
	}

	byID := make(map[uuid.UUID]transactions.Transaction, len(pending))
	for _, row := range pending {
		byID[row.ID] = row
	}

	var out []transactions.Enhancement
	for _, row := range parsed.Transactions {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			continue
		}
		original, ok := byID[id]
		if !ok {
			// The model must not invent transaction ids.
			continue
		}

		e := transactions.Enhancement{
			TransactionID: id,
			Description:   original.Description,
			Source:        "llm",
		}
		if desc := strings.TrimSpace(row.Description); desc != "" {
			e.Description = desc
		}
		if cat, err := s.resolver.Resolve(ctx, userID, row.Category); err == nil && cat != nil {
			e.CategoryID = &cat.ID
		}
		out = append(out, e)
	}
	return out, nil
}

// buildPrompt gives the model the user's category list, recently categorized
// rows as examples, similar past transactions found by embedding, and the
// batch to enhance.
func (s *Service) buildPrompt(ctx context.Context, userID uuid.UUID, pending []transactions.Transaction) (string, error) {
	var sb strings.Builder

	cats, err := s.resolver.List(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list categories: %w", err)
	}
	sb.WriteString("Available categories: ")
	for i, c := range cats {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.Slug)
	}
	sb.WriteString("\n")

	history, err := s.store.ListRecentCategorized(ctx, userID, historyLimit)
	if err != nil {
		s.logger.Warn("loading categorization history", "error", err)
	}
	if len(history) > 0 {
		sb.WriteString("\nRecently categorized transactions (examples of this user's spending):\n")
		for _, h := range history {
			slug := "other"
			if h.CategorySlug != nil {
				slug = *h.CategorySlug
			}
			fmt.Fprintf(&sb, "- %s | %s | %s\n",
				h.Description, money.New(h.AmountCents, h.Currency).String(), slug)
		}
	}

	s.appendNeighbors(ctx, userID, pending, &sb)

	sb.WriteString("\nTransactions to enhance:\n")
	for _, row := range pending {
		fmt.Fprintf(&sb, "- id=%s | %s | %s\n",
			row.ID, row.RawDescription, money.New(row.AmountCents, row.Currency).String())
	}
	return sb.String(), nil
}

// appendNeighbors adds embedding-nearest categorized transactions for the
// batch. Embedding failures only cost context, never the run.
func (s *Service) appendNeighbors(ctx context.Context, userID uuid.UUID, pending []transactions.Transaction, sb *strings.Builder) {
	texts := make([]string, len(pending))
	for i, row := range pending {
		texts[i] = row.Description
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.logger.Warn("embedding batch for context", "error", err)
		return
	}

	seen := make(map[uuid.UUID]bool)
	var lines []string
	for _, vec := range vectors {
		neighbors, err := s.store.SearchSimilar(ctx, userID, vec, neighborLimit)
		if err != nil {
			s.logger.Warn("searching similar transactions", "error", err)
			continue
		}
		for _, n := range neighbors {
			if n.CategorySlug == nil || seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			lines = append(lines, fmt.Sprintf("- %s | %s", n.Description, *n.CategorySlug))
		}
	}

	if len(lines) > 0 {
		sb.WriteString("\nSimilar past transactions:\n")
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteString("\n")
	}
}
