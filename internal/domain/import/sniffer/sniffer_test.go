package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const portugueseStatement = "Consultar saldos e movimentos\n" +
	"Conta: 1234567890\n" +
	"Data Mov.;Data Valor;Descrição;Débito;Crédito;Saldo\n" +
	"15-01-2025;15-01-2025;COMPRA LIDL AMADORA;23,45;;1.234,56 EUR\n" +
	"16-01-2025;16-01-2025;TRANSFERENCIA ORDENADO;;1.500,00;2.711,11 EUR\n"

const simpleStatement = "Date,Description,Amount\n" +
	"2025-01-15,GROCERY STORE,-23.45\n" +
	"2025-01-16,SALARY,1500.00\n"

func TestDetectPortugueseStatement(t *testing.T) {
	d, err := Detect([]byte(portugueseStatement))
	require.NoError(t, err)

	assert.Equal(t, ';', int32(d.Delimiter))
	assert.Equal(t, 2, d.HeaderRow)
	assert.Equal(t, []string{"Data Mov.", "Data Valor", "Descrição", "Débito", "Crédito", "Saldo"}, d.Headers)
	assert.Len(t, d.SampleRows, 2)
	assert.True(t, d.Dialect.European)
	assert.True(t, d.Dialect.DayFirst)
	assert.Equal(t, "EUR", d.Dialect.Currency)
}

func TestDetectSimpleStatement(t *testing.T) {
	d, err := Detect([]byte(simpleStatement))
	require.NoError(t, err)

	assert.Equal(t, ',', int32(d.Delimiter))
	assert.Equal(t, 0, d.HeaderRow)
	assert.False(t, d.Dialect.European)
}

func TestDetectBOMAndCRLF(t *testing.T) {
	data := "\uFEFFDate,Description,Amount\r\n2025-01-15,COFFEE,-2.50\r\n"
	d, err := Detect([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "Date", d.Headers[0])
}

func TestDetectEmpty(t *testing.T) {
	_, err := Detect([]byte("   \n  "))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestGuessColumns(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    ColumnGuess
	}{
		{
			name:    "english single amount",
			headers: []string{"Date", "Description", "Amount", "Balance"},
			want:    ColumnGuess{Date: 0, Desc: 1, Amount: 2, Debit: -1, Credit: -1, Category: -1},
		},
		{
			name:    "portuguese double entry",
			headers: []string{"Data Mov.", "Descrição", "Débito", "Crédito", "Saldo"},
			want:    ColumnGuess{Date: 0, Desc: 1, Amount: -1, Debit: 2, Credit: 3, Category: -1},
		},
		{
			name:    "unrecognized",
			headers: []string{"A", "B", "C"},
			want:    ColumnGuess{Date: -1, Desc: -1, Amount: -1, Debit: -1, Credit: -1, Category: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GuessColumns(tt.headers))
		})
	}
}

func TestColumnGuessComplete(t *testing.T) {
	assert.True(t, ColumnGuess{Date: 0, Desc: 1, Amount: 2, Debit: -1, Credit: -1}.Complete())
	assert.True(t, ColumnGuess{Date: 0, Desc: 1, Amount: -1, Debit: 2, Credit: 3}.Complete())
	assert.False(t, ColumnGuess{Date: 0, Desc: 1, Amount: -1, Debit: 2, Credit: -1}.Complete())
	assert.False(t, ColumnGuess{Date: -1, Desc: 1, Amount: 2}.Complete())
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint([]string{"Data Mov.", "Descrição", "Débito"})
	b := Fingerprint([]string{"data mov", "descrição", "débito"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Fingerprint([]string{"Date", "Description", "Amount"}))
}
