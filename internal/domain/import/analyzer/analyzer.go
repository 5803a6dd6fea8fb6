// Package analyzer turns a sniffed statement layout into a column mapping.
// Header heuristics handle most banks; when they cannot identify the
// required columns the model gets the headers and a few sample rows and
// proposes a mapping, which is then validated before use.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FACorreiaa/pennypilot/internal/domain/import/sniffer"
	"github.com/FACorreiaa/pennypilot/internal/llm"
)

// Mapping is the persisted column mapping for a statement layout. The JSON
// form is what bank_mappings.mapping stores.
type Mapping struct {
	DateCol     int    `json:"date_col"`
	DescCol     int    `json:"desc_col"`
	AmountCol   int    `json:"amount_col"`
	DebitCol    int    `json:"debit_col"`
	CreditCol   int    `json:"credit_col"`
	CategoryCol int    `json:"category_col"`
	European    bool   `json:"european_format"`
	DayFirst    bool   `json:"day_first"`
	Currency    string `json:"currency,omitempty"`
	// Source is "heuristic", "llm" or "manual".
	Source string `json:"source"`
}

// Complete reports whether the mapping can drive an import.
func (m Mapping) Complete() bool {
	if m.DateCol < 0 || m.DescCol < 0 {
		return false
	}
	return m.AmountCol >= 0 || (m.DebitCol >= 0 && m.CreditCol >= 0)
}

type Analyzer struct {
	client llm.Client
	logger *slog.Logger
}

func New(client llm.Client, logger *slog.Logger) *Analyzer {
	return &Analyzer{client: client, logger: logger.With("component", "analyzer")}
}

// Analyze derives a mapping from a detection. The heuristic guess wins when
// it is complete; the model is only consulted for layouts the vocabulary
// does not cover.
func (a *Analyzer) Analyze(ctx context.Context, det *sniffer.Detection) (*Mapping, error) {
	guess := sniffer.GuessColumns(det.Headers)
	if guess.Complete() {
		return &Mapping{
			DateCol:     guess.Date,
			DescCol:     guess.Desc,
			AmountCol:   guess.Amount,
			DebitCol:    guess.Debit,
			CreditCol:   guess.Credit,
			CategoryCol: guess.Category,
			European:    det.Dialect.European,
			DayFirst:    det.Dialect.DayFirst,
			Currency:    det.Dialect.Currency,
			Source:      "heuristic",
		}, nil
	}

	a.logger.Info("header heuristics incomplete, asking model",
		"headers", det.Headers)

	mapping, err := a.askModel(ctx, det)
	if err != nil {
		return nil, fmt.Errorf("analyze columns: %w", err)
	}
	if !mapping.Complete() {
		return nil, fmt.Errorf("analyze columns: model mapping incomplete for headers %v", det.Headers)
	}
	mapping.Source = "llm"
	if mapping.Currency == "" {
		mapping.Currency = det.Dialect.Currency
	}
	return mapping, nil
}

const analyzeSystemPrompt = `You map bank statement CSV columns to transaction fields.
Given the header row and sample data rows, identify which 0-based column index holds each field.
Use -1 for fields that are not present. A statement has either a single signed amount column,
or separate debit and credit columns. Set european_format to true when amounts use comma
decimals, and day_first to true when dates are day-first.`

var mappingSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"date_col":        map[string]interface{}{"type": "integer"},
		"desc_col":        map[string]interface{}{"type": "integer"},
		"amount_col":      map[string]interface{}{"type": "integer"},
		"debit_col":       map[string]interface{}{"type": "integer"},
		"credit_col":      map[string]interface{}{"type": "integer"},
		"category_col":    map[string]interface{}{"type": "integer"},
		"european_format": map[string]interface{}{"type": "boolean"},
		"day_first":       map[string]interface{}{"type": "boolean"},
		"currency":        map[string]interface{}{"type": "string"},
	},
	"required": []string{"date_col", "desc_col", "amount_col", "debit_col", "credit_col"},
}

func (a *Analyzer) askModel(ctx context.Context, det *sniffer.Detection) (*Mapping, error) {
	var sb strings.Builder
	sb.WriteString("Headers: ")
	sb.WriteString(strings.Join(det.Headers, " | "))
	sb.WriteString("\nSample rows:\n")
	for _, row := range det.SampleRows {
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteString("\n")
	}

	raw, err := a.client.CompleteJSON(ctx, analyzeSystemPrompt, sb.String(), mappingSchema)
	if err != nil {
		return nil, err
	}

	// Absent optional columns must read as "not present", not column 0.
	mapping := Mapping{AmountCol: -1, DebitCol: -1, CreditCol: -1, CategoryCol: -1}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &mapping); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	return &mapping, nil
}
