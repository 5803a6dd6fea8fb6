package recommendations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennypilot/internal/domain/transactions"
	"github.com/FACorreiaa/pennypilot/internal/llm"
	"github.com/FACorreiaa/pennypilot/pkg/money"
)

// TransactionReader is the read-only data surface the agent's tools query.
type TransactionReader interface {
	Search(ctx context.Context, userID uuid.UUID, query string, from, to *time.Time, limit int) ([]transactions.Transaction, error)
	CategorySpending(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]transactions.CategorySpend, error)
}

const (
	toolSearchTransactions  = "search_transactions"
	toolGetCategorySpending = "get_category_spending"
)

// toolRegistry executes the agent's read-only tools for one user. Tool
// errors are reported back to the model rather than aborting the run.
type toolRegistry struct {
	reader TransactionReader
	userID uuid.UUID
}

func newToolRegistry(reader TransactionReader, userID uuid.UUID) *toolRegistry {
	return &toolRegistry{reader: reader, userID: userID}
}

func toolDefinitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name: toolSearchTransactions,
			Description: "Search the user's transactions by keyword. Matches descriptions and " +
				"merchant names. Returns up to 25 matches with date, description, amount and category.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Keyword to search for, e.g. a merchant name",
					},
					"from": map[string]interface{}{
						"type":        "string",
						"description": "Start date (YYYY-MM-DD), optional",
					},
					"to": map[string]interface{}{
						"type":        "string",
						"description": "End date (YYYY-MM-DD), optional",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name: toolGetCategorySpending,
			Description: "Total spending per category over a date range. Returns category, " +
				"total spent and transaction count, largest first.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"from": map[string]interface{}{
						"type":        "string",
						"description": "Start date (YYYY-MM-DD)",
					},
					"to": map[string]interface{}{
						"type":        "string",
						"description": "End date (YYYY-MM-DD)",
					},
				},
				"required": []string{"from", "to"},
			},
		},
	}
}

// execute runs one tool call and wraps the outcome as a function response.
func (t *toolRegistry) execute(ctx context.Context, call llm.ToolCall) llm.FunctionResponse {
	content, err := t.dispatch(ctx, call)
	response := map[string]interface{}{"content": content}
	if err != nil {
		response["content"] = err.Error()
		response["is_error"] = true
	}
	return llm.FunctionResponse{Name: call.Name, Response: response}
}

func (t *toolRegistry) dispatch(ctx context.Context, call llm.ToolCall) (string, error) {
	switch call.Name {
	case toolSearchTransactions:
		return t.searchTransactions(ctx, call.Args)
	case toolGetCategorySpending:
		return t.categorySpending(ctx, call.Args)
	default:
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
}

func (t *toolRegistry) searchTransactions(ctx context.Context, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	from, err := optionalDate(args, "from")
	if err != nil {
		return "", err
	}
	to, err := optionalDate(args, "to")
	if err != nil {
		return "", err
	}

	txs, err := t.reader.Search(ctx, t.userID, query, from, to, 25)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(txs) == 0 {
		return "No transactions matched.", nil
	}

	type row struct {
		Date        string `json:"date"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
		Category    string `json:"category,omitempty"`
	}
	rows := make([]row, 0, len(txs))
	for _, tx := range txs {
		r := row{
			Date:        tx.OccurredAt.Format("2006-01-02"),
			Description: tx.Description,
			Amount:      money.New(tx.AmountCents, tx.Currency).String(),
		}
		if tx.CategorySlug != nil {
			r.Category = *tx.CategorySlug
		}
		rows = append(rows, r)
	}
	return marshalToolResult(rows)
}

func (t *toolRegistry) categorySpending(ctx context.Context, args map[string]interface{}) (string, error) {
	from, err := requiredDate(args, "from")
	if err != nil {
		return "", err
	}
	to, err := requiredDate(args, "to")
	if err != nil {
		return "", err
	}

	spending, err := t.reader.CategorySpending(ctx, t.userID, from, to)
	if err != nil {
		return "", fmt.Errorf("spending aggregation failed: %w", err)
	}
	if len(spending) == 0 {
		return "No spending in that period.", nil
	}

	type row struct {
		Category string `json:"category"`
		Total    string `json:"total_spent"`
		Currency string `json:"currency"`
		Count    int    `json:"transactions"`
	}
	rows := make([]row, 0, len(spending))
	for _, s := range spending {
		currency := s.Currency
		if currency == "" {
			currency = money.EUR
		}
		rows = append(rows, row{
			Category: s.CategorySlug,
			Total:    money.New(s.TotalCents, currency).String(),
			Currency: currency,
			Count:    s.Count,
		})
	}
	return marshalToolResult(rows)
}

func marshalToolResult(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(b), nil
}

func optionalDate(args map[string]interface{}, key string) (*time.Time, error) {
	raw, _ := args[key].(string)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	return &t, nil
}

func requiredDate(args map[string]interface{}, key string) (time.Time, error) {
	raw, _ := args[key].(string)
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	return t, nil
}
