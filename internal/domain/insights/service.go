// Package insights computes the spending pulse shown on the dashboard and
// the model-written monthly summary.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/pennypilot/internal/domain/transactions"
	"github.com/FACorreiaa/pennypilot/internal/llm"
	"github.com/FACorreiaa/pennypilot/pkg/money"
)

// Pulse is the current month at a glance. LastMonthCents covers the previous
// month through the same day, so PacePercent (current/last, 100 = on track)
// is meaningful even early in the month.
type Pulse struct {
	MonthStart       time.Time                   `json:"month_start"`
	TotalSpentCents  int64                       `json:"total_spent_cents"`
	LastMonthCents   int64                       `json:"last_month_cents"`
	ChangePercent    float64                     `json:"change_percent"`
	PacePercent      float64                     `json:"pace_percent"`
	Currency         string                      `json:"currency"`
	TopCategories    []transactions.CategorySpend `json:"top_categories"`
	BiggestIncrease  *CategoryDelta              `json:"biggest_increase,omitempty"`
	BiggestDecrease  *CategoryDelta              `json:"biggest_decrease,omitempty"`
}

// CategoryDelta is a month-over-month movement in one category.
type CategoryDelta struct {
	CategorySlug string `json:"category"`
	CategoryName string `json:"category_name"`
	DeltaCents   int64  `json:"delta_cents"`
}

// Summary is the model-written monthly recap.
type Summary struct {
	MonthStart time.Time `json:"month_start"`
	Text       string    `json:"text"`
}

// Reader is the aggregate surface insights read from.
type Reader interface {
	CategorySpending(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]transactions.CategorySpend, error)
}

type Service struct {
	reader Reader
	client llm.Client
	logger *slog.Logger
}

func NewService(reader Reader, client llm.Client, logger *slog.Logger) *Service {
	return &Service{reader: reader, client: client, logger: logger.With("component", "insights")}
}

// Pulse compares the month containing ref, through ref's day, with the same
// stretch of the previous month.
func (s *Service) Pulse(ctx context.Context, userID uuid.UUID, ref time.Time) (*Pulse, error) {
	monthStart, _ := monthBounds(ref)
	prevStart, prevEnd := previousMonthThrough(monthStart, ref.Day())

	current, err := s.reader.CategorySpending(ctx, userID, monthStart, endOfDay(ref))
	if err != nil {
		return nil, fmt.Errorf("current month spending: %w", err)
	}
	previous, err := s.reader.CategorySpending(ctx, userID, prevStart, prevEnd)
	if err != nil {
		return nil, fmt.Errorf("previous month spending: %w", err)
	}

	pulse := &Pulse{MonthStart: monthStart, Currency: dominantCurrency(current), TopCategories: topN(current, 5)}
	for _, c := range current {
		pulse.TotalSpentCents += c.TotalCents
	}
	for _, c := range previous {
		pulse.LastMonthCents += c.TotalCents
	}

	if pulse.LastMonthCents > 0 {
		delta := decimal.NewFromInt(pulse.TotalSpentCents - pulse.LastMonthCents)
		pulse.ChangePercent, _ = delta.
			Div(decimal.NewFromInt(pulse.LastMonthCents)).
			Mul(decimal.NewFromInt(100)).
			Round(1).Float64()
	}

	switch {
	case pulse.LastMonthCents > 0:
		pulse.PacePercent, _ = decimal.NewFromInt(pulse.TotalSpentCents).
			Div(decimal.NewFromInt(pulse.LastMonthCents)).
			Mul(decimal.NewFromInt(100)).
			Round(1).Float64()
	case pulse.TotalSpentCents > 0:
		pulse.PacePercent = 100
	}

	pulse.BiggestIncrease, pulse.BiggestDecrease = categoryDeltas(current, previous)
	return pulse, nil
}

const summarySystemPrompt = `You write a short monthly spending recap for a personal budget app.
Two or three sentences, friendly but concrete: name the biggest categories and the most
notable month-over-month change with amounts. No advice, no greetings, no markdown.`

// MonthlySummary has the model narrate the pulse. Model failures degrade to
// a plain computed sentence so the dashboard never breaks.
func (s *Service) MonthlySummary(ctx context.Context, userID uuid.UUID, ref time.Time) (*Summary, error) {
	pulse, err := s.Pulse(ctx, userID, ref)
	if err != nil {
		return nil, err
	}

	text, err := s.client.Complete(ctx, summarySystemPrompt, pulsePrompt(pulse))
	if err != nil {
		s.logger.Warn("summary generation failed, using fallback", "user_id", userID, "error", err)
		text = fallbackSummary(pulse)
	}

	return &Summary{MonthStart: pulse.MonthStart, Text: strings.TrimSpace(text)}, nil
}

func pulsePrompt(p *Pulse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Month: %s\n", p.MonthStart.Format("January 2006"))
	fmt.Fprintf(&sb, "Total spent: %s (same stretch last month %s, change %.1f%%, pace %.1f%%)\n",
		money.New(p.TotalSpentCents, p.Currency).String(),
		money.New(p.LastMonthCents, p.Currency).String(),
		p.ChangePercent, p.PacePercent)
	sb.WriteString("Top categories:\n")
	for _, c := range p.TopCategories {
		currency := c.Currency
		if currency == "" {
			currency = p.Currency
		}
		fmt.Fprintf(&sb, "- %s: %s over %d transactions\n",
			c.CategoryName, money.New(c.TotalCents, currency).String(), c.Count)
	}
	if p.BiggestIncrease != nil {
		fmt.Fprintf(&sb, "Biggest increase: %s up %s\n",
			p.BiggestIncrease.CategoryName, money.New(p.BiggestIncrease.DeltaCents, p.Currency).String())
	}
	if p.BiggestDecrease != nil {
		fmt.Fprintf(&sb, "Biggest decrease: %s down %s\n",
			p.BiggestDecrease.CategoryName, money.New(-p.BiggestDecrease.DeltaCents, p.Currency).String())
	}
	return sb.String()
}

func fallbackSummary(p *Pulse) string {
	spent := money.New(p.TotalSpentCents, p.Currency).Display()
	if len(p.TopCategories) == 0 {
		return fmt.Sprintf("You spent %s in %s.", spent, p.MonthStart.Format("January"))
	}
	return fmt.Sprintf("You spent %s in %s, most of it on %s.",
		spent, p.MonthStart.Format("January"), strings.ToLower(p.TopCategories[0].CategoryName))
}

func monthBounds(ref time.Time) (time.Time, time.Time) {
	year, month, _ := ref.Date()
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// previousMonthThrough bounds the month before monthStart up to the given
// day of month, clamped when the previous month is shorter.
func previousMonthThrough(monthStart time.Time, day int) (time.Time, time.Time) {
	prevStart, prevFullEnd := monthBounds(monthStart.AddDate(0, 0, -1))
	if last := prevFullEnd.Day(); day > last {
		day = last
	}
	return prevStart, prevStart.AddDate(0, 0, day).Add(-time.Nanosecond)
}

func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// dominantCurrency takes the currency of the largest aggregate, since
// CategorySpending orders by total descending. Empty spending defaults to EUR.
func dominantCurrency(spending []transactions.CategorySpend) string {
	for _, s := range spending {
		if s.Currency != "" {
			return s.Currency
		}
	}
	return money.EUR
}

func topN(spending []transactions.CategorySpend, n int) []transactions.CategorySpend {
	if len(spending) > n {
		return spending[:n]
	}
	return spending
}

// categoryDeltas finds the largest month-over-month rise and fall.
func categoryDeltas(current, previous []transactions.CategorySpend) (*CategoryDelta, *CategoryDelta) {
	prevBySlug := make(map[string]int64, len(previous))
	names := make(map[string]string, len(previous)+len(current))
	for _, c := range previous {
		prevBySlug[c.CategorySlug] = c.TotalCents
		names[c.CategorySlug] = c.CategoryName
	}

	deltas := make(map[string]int64)
	for _, c := range current {
		deltas[c.CategorySlug] = c.TotalCents - prevBySlug[c.CategorySlug]
		names[c.CategorySlug] = c.CategoryName
	}
	// Categories that disappeared entirely still count as decreases.
	for slug, prev := range prevBySlug {
		if _, ok := deltas[slug]; !ok {
			deltas[slug] = -prev
		}
	}

	var increase, decrease *CategoryDelta
	for slug, delta := range deltas {
		switch {
		case delta > 0 && (increase == nil || delta > increase.DeltaCents):
			increase = &CategoryDelta{CategorySlug: slug, CategoryName: names[slug], DeltaCents: delta}
		case delta < 0 && (decrease == nil || delta < decrease.DeltaCents):
			decrease = &CategoryDelta{CategorySlug: slug, CategoryName: names[slug], DeltaCents: delta}
		}
	}
	return increase, decrease
}
