// Package money provides currency-safe amounts on integer minor units,
// with parsing tolerant of the formats bank statements use.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
)

// Money wraps go-money for safe arithmetic and shopspring/decimal
// for precise conversions.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units (cents) and currency code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal converts a decimal amount into minor units.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(EUR)
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()

	return New(cents, currencyCode)
}

// NewFromString parses a statement amount like "100.50", "1,234.56" or the
// European "1.234,56" into Money.
func NewFromString(amount string, currencyCode string, europeanFormat bool) (*Money, error) {
	amount = strings.TrimSpace(amount)
	amount = strings.ReplaceAll(amount, " ", "")

	for _, sym := range []string{"$", "€", "£"} {
		amount = strings.ReplaceAll(amount, sym, "")
	}

	if europeanFormat {
		amount = strings.ReplaceAll(amount, ".", "")
		amount = strings.ReplaceAll(amount, ",", ".")
	} else {
		amount = strings.ReplaceAll(amount, ",", "")
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	return NewFromDecimal(d, currencyCode), nil
}

// Zero returns a zero Money value for the given currency
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the amount in minor units (cents)
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

func (m *Money) IsPositive() bool {
	return m != nil && m.m != nil && m.m.IsPositive()
}

func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Abs returns the absolute value
func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return Zero(EUR)
	}
	return &Money{m: m.m.Absolute()}
}

// Negate returns the negated value
func (m *Money) Negate() *Money {
	if m == nil || m.m == nil {
		return Zero(EUR)
	}
	return &Money{m: m.m.Negative()}
}

// Add adds two Money values. Returns error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}

	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Display returns a locale-formatted string like "€1,234.56".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "€0.00"
	}
	return m.m.Display()
}

// String returns the amount as a plain decimal string (e.g. "1234.56"),
// the form used in LLM prompts and API responses.
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(2)
}

// ToDecimal converts to major units with full precision.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	divisor := decimal.New(1, int32(currency.Fraction))
	return d.Div(divisor)
}

func (m *Money) ToFloat64() float64 {
	return m.ToDecimal().InexactFloat64()
}

// PercentageOf reports what percentage this amount is of total
// (e.g. 25.5 for 25.5%). Used by the spending pulse.
func (m *Money) PercentageOf(total *Money) decimal.Decimal {
	if m == nil || m.m == nil || total == nil || total.m == nil || total.IsZero() {
		return decimal.Zero
	}

	part := m.ToDecimal()
	whole := total.ToDecimal()

	return part.Div(whole).Mul(decimal.NewFromInt(100))
}

func (m *Money) MarshalJSON() ([]byte, error) {
	if m == nil || m.m == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(map[string]interface{}{
		"amount":   m.Amount(),
		"currency": m.Currency(),
		"display":  m.Display(),
	})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.m = money.New(v.Amount, v.Currency)
	return nil
}
