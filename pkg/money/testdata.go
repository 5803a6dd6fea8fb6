package money

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// TestDataGenerator produces realistic statement data for tests.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a generator with a specific seed for
// reproducibility.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

// TestTransaction is a generated bank statement line.
type TestTransaction struct {
	ID          uuid.UUID
	Date        time.Time
	Description string
	Merchant    string
	Amount      *Money
	Category    string
}

var merchantPool = []struct {
	name     string
	category string
}{
	{"LIDL", "groceries"},
	{"CONTINENTE", "groceries"},
	{"PINGO DOCE", "groceries"},
	{"UBER EATS", "dining-out"},
	{"MCDONALDS", "dining-out"},
	{"UBER", "transport"},
	{"GALP", "transport"},
	{"NETFLIX", "subscriptions"},
	{"SPOTIFY", "subscriptions"},
	{"EDP", "utilities"},
	{"VODAFONE", "utilities"},
	{"AMAZON", "shopping"},
	{"ZARA", "shopping"},
	{"FARMACIA CENTRAL", "health"},
	{"RYANAIR", "travel"},
}

// Transaction generates a single expense line.
func (g *TestDataGenerator) Transaction(currency string) TestTransaction {
	m := merchantPool[g.faker.Number(0, len(merchantPool)-1)]
	amount := g.RandomAmount(currency, 150, 25000).Negate()

	ref := g.faker.DigitN(6)
	return TestTransaction{
		ID:          uuid.New(),
		Date:        g.faker.DateRange(time.Now().AddDate(0, -3, 0), time.Now()),
		Description: fmt.Sprintf("COMPRA %s REF %s", m.name, ref),
		Merchant:    m.name,
		Amount:      amount,
		Category:    m.category,
	}
}

// IncomeTransaction generates a salary-style credit line.
func (g *TestDataGenerator) IncomeTransaction(currency string) TestTransaction {
	return TestTransaction{
		ID:          uuid.New(),
		Date:        g.faker.DateRange(time.Now().AddDate(0, -3, 0), time.Now()),
		Description: "TRANSFERENCIA ORDENADO " + strings.ToUpper(g.faker.Company()),
		Merchant:    "",
		Amount:      g.RandomAmount(currency, 100000, 400000),
		Category:    "income",
	}
}

// Transactions generates a mixed month of statement lines.
func (g *TestDataGenerator) Transactions(currency string, count int) []TestTransaction {
	txs := make([]TestTransaction, 0, count)
	for i := 0; i < count; i++ {
		if i%20 == 0 {
			txs = append(txs, g.IncomeTransaction(currency))
			continue
		}
		txs = append(txs, g.Transaction(currency))
	}
	return txs
}

// RandomAmount generates a Money value within a cent range.
func (g *TestDataGenerator) RandomAmount(currency string, minCents, maxCents int64) *Money {
	if minCents > maxCents {
		minCents, maxCents = maxCents, minCents
	}
	cents := g.faker.Int64() % (maxCents - minCents + 1)
	if cents < 0 {
		cents = -cents
	}
	return New(minCents+cents, currency)
}

// CSVStatement renders transactions as a bank-export CSV with the given
// header names, for importer tests.
func (g *TestDataGenerator) CSVStatement(txs []TestTransaction) string {
	var b strings.Builder
	b.WriteString("Date,Description,Amount\n")
	for _, tx := range txs {
		b.WriteString(fmt.Sprintf("%s,%q,%s\n",
			tx.Date.Format("2006-01-02"), tx.Description, tx.Amount.String()))
	}
	return b.String()
}
