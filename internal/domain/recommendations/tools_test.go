package recommendations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pennypilot/internal/domain/transactions"
)

type mixedCurrencyReader struct{}

func (mixedCurrencyReader) Search(_ context.Context, _ uuid.UUID, _ string, _, _ *time.Time, _ int) ([]transactions.Transaction, error) {
	return nil, nil
}

func (mixedCurrencyReader) CategorySpending(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]transactions.CategorySpend, error) {
	return []transactions.CategorySpend{
		{CategorySlug: "groceries", CategoryName: "Groceries", TotalCents: 45000, Currency: "USD", Count: 12},
		{CategorySlug: "travel", CategoryName: "Travel", TotalCents: 30000, Count: 3},
	}, nil
}

// Aggregates carry the dominant currency of their rows; the tool result must
// echo it instead of assuming euros.
func TestCategorySpendingToolKeepsRowCurrency(t *testing.T) {
	registry := newToolRegistry(mixedCurrencyReader{}, uuid.New())

	out, err := registry.categorySpending(context.Background(), map[string]interface{}{
		"from": "2025-01-01",
		"to":   "2025-01-31",
	})
	require.NoError(t, err)

	assert.Contains(t, out, `"currency":"USD"`)
	// Rows without a currency fall back to EUR.
	assert.Contains(t, out, `"currency":"EUR"`)
	assert.Contains(t, out, `"total_spent":"450.00"`)
}
