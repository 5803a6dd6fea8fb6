package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pennypilot/internal/domain/import/analyzer"
)

func TestFastParse(t *testing.T) {
	csvData := "Date,Description,Amount\n" +
		"2025-01-15,COMPRA   LIDL REF 1,-23.45\n" +
		"2025-01-16,SALARY,1500.00\n" +
		"not-a-date,BROKEN,1.00\n"

	result, err := FastParse(strings.NewReader(csvData), false, false, "EUR")
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRows)
	require.Len(t, result.Transactions, 2)
	require.Len(t, result.Errors, 1)

	tx := result.Transactions[0]
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), tx.OccurredAt)
	assert.Equal(t, "COMPRA LIDL REF 1", tx.Description)
	assert.Equal(t, int64(-2345), tx.AmountCents)
	assert.Equal(t, "EUR", tx.Currency)

	assert.Equal(t, int64(150000), result.Transactions[1].AmountCents)
	assert.Equal(t, "date", result.Errors[0].Field)
	assert.Equal(t, 4, result.Errors[0].Line)
}

// Ambiguous slash dates must follow the sniffed dialect on the fast path
// too: 01/02/2025 is January 2 in a month-first export and February 1 in a
// day-first one.
func TestFastParseHonorsDateDialect(t *testing.T) {
	csvData := "Date,Description,Amount\n" +
		"01/02/2025,COFFEE,-4.50\n"

	monthFirst, err := FastParse(strings.NewReader(csvData), false, false, "USD")
	require.NoError(t, err)
	require.Len(t, monthFirst.Transactions, 1)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), monthFirst.Transactions[0].OccurredAt)

	dayFirst, err := FastParse(strings.NewReader(csvData), true, false, "EUR")
	require.NoError(t, err)
	require.Len(t, dayFirst.Transactions, 1)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), dayFirst.Transactions[0].OccurredAt)
}

func TestParseDoubleEntryEuropean(t *testing.T) {
	data := []byte("Extrato de conta\n" +
		"Data Mov.;Descrição;Débito;Crédito;Saldo\n" +
		"15-01-2025;COMPRA LIDL;23,45;;1.000,00\n" +
		"16-01-2025;ORDENADO;;1.500,00;2.500,00\n" +
		";;;;\n")

	cfg := Config{
		Delimiter: ';',
		HeaderRow: 1,
		Currency:  "EUR",
		Mapping: analyzer.Mapping{
			DateCol: 0, DescCol: 1, AmountCol: -1, DebitCol: 2, CreditCol: 3,
			CategoryCol: -1, European: true, DayFirst: true,
		},
	}

	result, err := Parse(data, cfg)
	require.NoError(t, err)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, 1, result.SkippedRows)

	assert.Equal(t, int64(-2345), result.Transactions[0].AmountCents, "debit goes negative")
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), result.Transactions[0].OccurredAt)
	assert.Equal(t, int64(150000), result.Transactions[1].AmountCents, "credit stays positive")
}

func TestParseNegativeParentheses(t *testing.T) {
	data := []byte("Date,Description,Amount\n" +
		"2025-01-15,FEE,(12.00)\n")

	cfg := Config{
		Delimiter: ',',
		HeaderRow: 0,
		Mapping:   analyzer.Mapping{DateCol: 0, DescCol: 1, AmountCol: 2, DebitCol: -1, CreditCol: -1, CategoryCol: -1},
	}

	result, err := Parse(data, cfg)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, int64(-1200), result.Transactions[0].AmountCents)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input    string
		dayFirst bool
		want     time.Time
	}{
		{"2025-03-09", false, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"09/03/2025", true, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"03/09/2025", false, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"25.12.2024", true, time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)},
		// Day over 12 disambiguates even with the wrong hint.
		{"25/12/2024", false, time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input, tt.dayFirst)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseDate("yesterday", true)
	assert.Error(t, err)
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "COMPRA LIDL AMADORA", CleanDescription("  COMPRA\t LIDL   AMADORA "))
}
