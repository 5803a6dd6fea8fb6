package enhancer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pennypilot/internal/domain/categories"
	"github.com/FACorreiaa/pennypilot/internal/domain/categorization"
	"github.com/FACorreiaa/pennypilot/internal/domain/transactions"
	"github.com/FACorreiaa/pennypilot/internal/llm"
)

type stubStore struct {
	uncategorized []transactions.Transaction
	history       []transactions.Transaction
	applied       []transactions.Enhancement
	applyErr      error
}

func (s *stubStore) ListUncategorized(context.Context, uuid.UUID, int) ([]transactions.Transaction, error) {
	return s.uncategorized, nil
}

func (s *stubStore) ListRecentCategorized(context.Context, uuid.UUID, int) ([]transactions.Transaction, error) {
	return s.history, nil
}

func (s *stubStore) SearchSimilar(context.Context, uuid.UUID, []float32, int) ([]transactions.Transaction, error) {
	return nil, nil
}

func (s *stubStore) ApplyEnhancements(_ context.Context, _ uuid.UUID, enhancements []transactions.Enhancement) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied = append(s.applied, enhancements...)
	return nil
}

type stubCategorizer struct {
	matches map[string]*categorization.Match
}

func (s *stubCategorizer) Match(_ context.Context, _ uuid.UUID, description string) (*categorization.Match, error) {
	for needle, match := range s.matches {
		if strings.Contains(description, needle) {
			return match, nil
		}
	}
	return nil, nil
}

type stubResolver struct {
	categories map[string]*categories.Category
}

func (s *stubResolver) Resolve(_ context.Context, _ uuid.UUID, name string) (*categories.Category, error) {
	return s.categories[name], nil
}

func (s *stubResolver) List(context.Context, uuid.UUID) ([]categories.Category, error) {
	var out []categories.Category
	for _, c := range s.categories {
		out = append(out, *c)
	}
	return out, nil
}

type stubLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *stubLLM) Complete(context.Context, string, string) (string, error) {
	return "", errors.New("not used")
}

func (s *stubLLM) CompleteJSON(_ context.Context, _, prompt string, _ map[string]interface{}) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func (s *stubLLM) DescribeImage(context.Context, string, string, string, []byte, map[string]interface{}) (string, error) {
	return "", errors.New("not used")
}

func (s *stubLLM) Chat(context.Context, string, []llm.Content, []llm.ToolDefinition) (*llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

type stubEmbedder struct{ err error }

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, s.err
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return 2 }

func uncategorizedRow(id uuid.UUID, desc string) transactions.Transaction {
	return transactions.Transaction{
		ID:             id,
		Description:    desc,
		RawDescription: desc,
		AmountCents:    -1000,
		Currency:       "EUR",
	}
}

func TestEnhanceHeuristicOnly(t *testing.T) {
	groceries := &categories.Category{ID: uuid.New(), Slug: "groceries", Name: "Groceries"}
	rowID := uuid.New()

	store := &stubStore{uncategorized: []transactions.Transaction{
		uncategorizedRow(rowID, "COMPRA LIDL AMADORA"),
	}}
	client := &stubLLM{}

	svc := New(store,
		&stubCategorizer{matches: map[string]*categorization.Match{
			"LIDL": {Merchant: "Lidl", CategorySlug: "groceries", Source: "merchant"},
		}},
		&stubResolver{categories: map[string]*categories.Category{"groceries": groceries}},
		client, &stubEmbedder{}, slog.Default())

	require.NoError(t, svc.EnhanceUncategorized(context.Background(), uuid.New()))

	require.Len(t, store.applied, 1)
	assert.Equal(t, rowID, store.applied[0].TransactionID)
	assert.Equal(t, groceries.ID, *store.applied[0].CategoryID)
	assert.Equal(t, "merchant", store.applied[0].Source)
	assert.Empty(t, client.prompts, "model must not run when the pre-pass covers everything")
}

func TestEnhanceWithModel(t *testing.T) {
	subs := &categories.Category{ID: uuid.New(), Slug: "subscriptions", Name: "Subscriptions"}
	rowID := uuid.New()

	store := &stubStore{uncategorized: []transactions.Transaction{
		uncategorizedRow(rowID, "DD NFLX 889921 SEPA"),
	}}
	client := &stubLLM{
		response: fmt.Sprintf(`{"transactions":[{"id":"%s","description":"Netflix","category":"subscriptions"}]}`, rowID),
	}

	svc := New(store,
		&stubCategorizer{},
		&stubResolver{categories: map[string]*categories.Category{"subscriptions": subs}},
		client, &stubEmbedder{}, slog.Default())

	require.NoError(t, svc.EnhanceUncategorized(context.Background(), uuid.New()))

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "DD NFLX 889921 SEPA")
	assert.Contains(t, client.prompts[0], "subscriptions")

	require.Len(t, store.applied, 1)
	assert.Equal(t, "Netflix", store.applied[0].Description)
	assert.Equal(t, subs.ID, *store.applied[0].CategoryID)
	assert.Equal(t, "llm", store.applied[0].Source)
}

func TestEnhanceModelFailureLeavesRows(t *testing.T) {
	store := &stubStore{uncategorized: []transactions.Transaction{
		uncategorizedRow(uuid.New(), "MYSTERY CHARGE"),
	}}
	client := &stubLLM{err: errors.New("boom")}

	svc := New(store, &stubCategorizer{}, &stubResolver{}, client, &stubEmbedder{}, slog.Default())

	require.NoError(t, svc.EnhanceUncategorized(context.Background(), uuid.New()),
		"model failure is logged, not returned")
	assert.Empty(t, store.applied)
}

func TestEnhanceIgnoresInventedIDs(t *testing.T) {
	subs := &categories.Category{ID: uuid.New(), Slug: "subscriptions", Name: "Subscriptions"}
	rowID := uuid.New()

	store := &stubStore{uncategorized: []transactions.Transaction{
		uncategorizedRow(rowID, "DD NFLX 889921"),
	}}
	client := &stubLLM{
		response: fmt.Sprintf(
			`{"transactions":[{"id":"%s","description":"Netflix","category":"subscriptions"},{"id":"%s","description":"Fake","category":"subscriptions"}]}`,
			rowID, uuid.New()),
	}

	svc := New(store, &stubCategorizer{},
		&stubResolver{categories: map[string]*categories.Category{"subscriptions": subs}},
		client, &stubEmbedder{}, slog.Default())

	require.NoError(t, svc.EnhanceUncategorized(context.Background(), uuid.New()))
	require.Len(t, store.applied, 1)
	assert.Equal(t, rowID, store.applied[0].TransactionID)
}

func TestEnhanceNothingToDo(t *testing.T) {
	store := &stubStore{}
	svc := New(store, &stubCategorizer{}, &stubResolver{}, &stubLLM{}, &stubEmbedder{}, slog.Default())
	require.NoError(t, svc.EnhanceUncategorized(context.Background(), uuid.New()))
	assert.Empty(t, store.applied)
}
