package money

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cents    int64
		currency string
		want     int64
	}{
		{"positive cents", 1234, EUR, 1234},
		{"zero", 0, EUR, 0},
		{"negative cents", -5000, EUR, -5000},
		{"large amount", 999999999, EUR, 999999999},
		{"dollars", 1000, USD, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.cents, tt.currency)
			assert.Equal(t, tt.want, m.Amount())
			assert.Equal(t, tt.currency, m.Currency())
		})
	}
}

func TestNewFromDecimal(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   int64
	}{
		{"precise decimal", "123.45", 12345},
		{"many decimals", "99.999", 10000},
		{"whole number", "500", 50000},
		{"negative", "-25.50", -2550},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := decimal.NewFromString(tt.amount)
			m := NewFromDecimal(d, EUR)
			assert.Equal(t, tt.want, m.Amount())
		})
	}
}

func TestNewFromString(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		european bool
		want     int64
		wantErr  bool
	}{
		{"simple", "123.45", USD, false, 12345, false},
		{"with comma thousands", "1,234.56", USD, false, 123456, false},
		{"european format", "1.234,56", EUR, true, 123456, false},
		{"with dollar sign", "$99.99", USD, false, 9999, false},
		{"with euro sign", "€50,00", EUR, true, 5000, false},
		{"with spaces", "  100.00  ", USD, false, 10000, false},
		{"invalid", "abc", USD, false, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewFromString(tt.amount, tt.currency, tt.european)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Amount())
		})
	}
}

func TestAdd(t *testing.T) {
	tests := []struct {
		name    string
		a       *Money
		b       *Money
		want    int64
		wantErr bool
	}{
		{"positive + positive", New(1000, EUR), New(500, EUR), 1500, false},
		{"positive + negative", New(1000, EUR), New(-300, EUR), 700, false},
		{"with zero", New(1000, EUR), Zero(EUR), 1000, false},
		{"nil + value", nil, New(500, EUR), 500, false},
		{"different currencies", New(100, USD), New(100, EUR), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.a.Add(tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Amount())
		})
	}
}

func TestPercentageOf(t *testing.T) {
	part := New(2500, EUR)
	whole := New(10000, EUR)

	pct := part.PercentageOf(whole)
	assert.True(t, pct.Equal(decimal.NewFromInt(25)))

	assert.True(t, part.PercentageOf(Zero(EUR)).IsZero())
}

func TestString(t *testing.T) {
	assert.Equal(t, "123.45", New(12345, EUR).String())
	assert.Equal(t, "-7.00", New(-700, EUR).String())
}

func TestJSONRoundTrip(t *testing.T) {
	m := New(12345, EUR)
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, float64(12345), result["amount"])
	assert.Equal(t, "EUR", result["currency"])

	var back Money
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 9999, "currency": "EUR"}`), &back))
	assert.Equal(t, int64(9999), back.Amount())
}

func TestNilSafety(t *testing.T) {
	var m *Money

	assert.Equal(t, int64(0), m.Amount())
	assert.Equal(t, "", m.Currency())
	assert.True(t, m.IsZero())
	assert.False(t, m.IsPositive())
	assert.False(t, m.IsNegative())
	assert.Equal(t, "0.00", m.String())
	assert.True(t, m.ToDecimal().IsZero())
	assert.Equal(t, int64(0), m.Abs().Amount())
	assert.Equal(t, int64(0), m.Negate().Amount())
}

func TestTestDataGenerator(t *testing.T) {
	gen := NewTestDataGenerator(42)

	t.Run("expense lines are negative", func(t *testing.T) {
		tx := gen.Transaction(EUR)
		assert.NotEmpty(t, tx.Description)
		assert.NotEmpty(t, tx.Category)
		assert.True(t, tx.Amount.IsNegative())
	})

	t.Run("income lines are positive", func(t *testing.T) {
		tx := gen.IncomeTransaction(EUR)
		assert.Equal(t, "income", tx.Category)
		assert.True(t, tx.Amount.IsPositive())
	})

	t.Run("mixed statement", func(t *testing.T) {
		txs := gen.Transactions(EUR, 40)
		assert.Len(t, txs, 40)
	})

	t.Run("csv statement renders header and rows", func(t *testing.T) {
		csv := gen.CSVStatement(gen.Transactions(EUR, 5))
		lines := strings.Split(strings.TrimSpace(csv), "\n")
		assert.Equal(t, "Date,Description,Amount", lines[0])
		assert.Len(t, lines, 6)
	})
}
