// Package parser turns statement rows into transactions. Simple exports
// with recognizable headers go through the gocsv struct path; everything
// else is parsed by column index using the analyzed mapping.
package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/pennypilot/internal/domain/import/analyzer"
	"github.com/FACorreiaa/pennypilot/pkg/money"
)

// ParsedTransaction is one normalized statement row. AmountCents is
// negative for money going out.
type ParsedTransaction struct {
	OccurredAt     time.Time
	Description    string
	RawDescription string
	AmountCents    int64
	Currency       string
	Category       string
	Line           int
}

// RowError points at the statement line that failed.
type RowError struct {
	Line    int
	Field   string
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d, %s: %s", e.Line, e.Field, e.Message)
}

// Result carries the parsed rows with per-row failures kept separate, so a
// few bad lines never sink the whole import.
type Result struct {
	Transactions []ParsedTransaction
	Errors       []RowError
	TotalRows    int
	SkippedRows  int
}

// Config drives the mapping-based parse.
type Config struct {
	Delimiter rune
	HeaderRow int
	Mapping   analyzer.Mapping
	Currency  string
}

// fastRow is the gocsv struct for plain "Date,Description,Amount" exports.
// gocsv matches by header name, so aliases cover the common variants.
type fastRow struct {
	Date        string `csv:"date"`
	Data        string `csv:"data"`
	Description string `csv:"description"`
	Descricao   string `csv:"descrição"`
	Amount      string `csv:"amount"`
	Valor       string `csv:"valor"`
}

// FastParse handles simple single-amount statements without a mapping.
// The dialect still matters: dayFirst disambiguates dates like 01/02/2025.
func FastParse(r io.Reader, dayFirst, european bool, currency string) (*Result, error) {
	var rows []fastRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	result := &Result{Transactions: make([]ParsedTransaction, 0, len(rows))}
	result.TotalRows = len(rows)

	for i, row := range rows {
		line := i + 2 // 1-indexed after the header
		dateStr := firstNonEmpty(row.Date, row.Data)
		desc := firstNonEmpty(row.Description, row.Descricao)
		amountStr := firstNonEmpty(row.Amount, row.Valor)

		if dateStr == "" && desc == "" && amountStr == "" {
			result.SkippedRows++
			continue
		}

		tx, rowErr := buildTransaction(line, dateStr, desc, amountStr, "", "", "", dayFirst, european, currency)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Transactions = append(result.Transactions, *tx)
	}
	return result, nil
}

// Parse reads statement bytes using an explicit column mapping.
func Parse(data []byte, cfg Config) (*Result, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = cfg.Delimiter
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	// Consume everything up to and including the header row.
	for i := 0; i <= cfg.HeaderRow; i++ {
		if _, err := r.Read(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
	}

	result := &Result{}
	line := cfg.HeaderRow + 2

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Field: "row", Message: err.Error()})
			line++
			continue
		}
		result.TotalRows++

		field := func(idx int) string {
			if idx < 0 || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		dateStr := field(cfg.Mapping.DateCol)
		if dateStr == "" {
			result.SkippedRows++
			line++
			continue
		}

		tx, rowErr := buildTransaction(
			line,
			dateStr,
			field(cfg.Mapping.DescCol),
			field(cfg.Mapping.AmountCol),
			field(cfg.Mapping.DebitCol),
			field(cfg.Mapping.CreditCol),
			field(cfg.Mapping.CategoryCol),
			cfg.Mapping.DayFirst,
			cfg.Mapping.European,
			cfg.Currency,
		)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			line++
			continue
		}

		result.Transactions = append(result.Transactions, *tx)
		line++
	}

	return result, nil
}

func buildTransaction(line int, dateStr, desc, amountStr, debitStr, creditStr, category string, dayFirst, european bool, currency string) (*ParsedTransaction, *RowError) {
	occurredAt, err := ParseDate(dateStr, dayFirst)
	if err != nil {
		return nil, &RowError{Line: line, Field: "date", Message: err.Error()}
	}

	if desc == "" {
		return nil, &RowError{Line: line, Field: "description", Message: "missing description"}
	}

	if currency == "" {
		currency = money.EUR
	}

	var cents int64
	switch {
	case amountStr != "":
		cents, err = parseSignedAmount(amountStr, european, currency)
		if err != nil {
			return nil, &RowError{Line: line, Field: "amount", Message: err.Error()}
		}
	case debitStr != "" || creditStr != "":
		cents, err = parseDebitCredit(debitStr, creditStr, european, currency)
		if err != nil {
			return nil, &RowError{Line: line, Field: "amount", Message: err.Error()}
		}
	default:
		return nil, &RowError{Line: line, Field: "amount", Message: "no amount"}
	}

	return &ParsedTransaction{
		OccurredAt:     occurredAt,
		Description:    CleanDescription(desc),
		RawDescription: desc,
		AmountCents:    cents,
		Currency:       currency,
		Category:       category,
		Line:           line,
	}, nil
}

func parseSignedAmount(s string, european bool, currency string) (int64, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}

	m, err := money.NewFromString(s, currency, european)
	if err != nil {
		return 0, err
	}
	cents := m.Amount()
	if negative {
		cents = -cents
	}
	return cents, nil
}

// parseDebitCredit maps double-entry columns onto a signed amount: debits
// go negative regardless of how the bank signs them.
func parseDebitCredit(debitStr, creditStr string, european bool, currency string) (int64, error) {
	if debitStr != "" {
		cents, err := parseSignedAmount(debitStr, european, currency)
		if err != nil {
			return 0, err
		}
		if cents != 0 {
			if cents > 0 {
				cents = -cents
			}
			return cents, nil
		}
	}

	if creditStr != "" {
		cents, err := parseSignedAmount(creditStr, european, currency)
		if err != nil {
			return 0, err
		}
		if cents < 0 {
			cents = -cents
		}
		return cents, nil
	}

	return 0, nil
}

var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
}

var dayFirstFormats = []string{
	"02/01/2006", "02-01-2006", "02.01.2006", "02/01/2006 15:04",
}

var monthFirstFormats = []string{
	"01/02/2006", "01-02-2006", "01/02/2006 15:04",
}

// ParseDate tries ISO formats first, then the regional order indicated by
// dayFirst, then the opposite order as a last resort.
func ParseDate(s string, dayFirst bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	ordered := append([]string{}, dateFormats...)
	if dayFirst {
		ordered = append(ordered, dayFirstFormats...)
		ordered = append(ordered, monthFirstFormats...)
	} else {
		ordered = append(ordered, monthFirstFormats...)
		ordered = append(ordered, dayFirstFormats...)
	}

	for _, format := range ordered {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %s", s)
}

// CleanDescription collapses runs of whitespace.
func CleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
