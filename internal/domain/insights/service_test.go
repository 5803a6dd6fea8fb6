package insights

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pennypilot/internal/domain/transactions"
	"github.com/FACorreiaa/pennypilot/internal/llm"
)

type fakeReader struct {
	byMonth map[string][]transactions.CategorySpend
	windows [][2]time.Time
}

func (f *fakeReader) CategorySpending(_ context.Context, _ uuid.UUID, from, to time.Time) ([]transactions.CategorySpend, error) {
	f.windows = append(f.windows, [2]time.Time{from, to})
	return f.byMonth[from.Format("2006-01")], nil
}

type fakeClient struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeClient) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func (f *fakeClient) CompleteJSON(context.Context, string, string, map[string]interface{}) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeClient) DescribeImage(context.Context, string, string, string, []byte, map[string]interface{}) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeClient) Chat(context.Context, string, []llm.Content, []llm.ToolDefinition) (*llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

func testService(reader *fakeReader, client *fakeClient) *Service {
	return NewService(reader, client, slog.Default())
}

func spends() *fakeReader {
	return &fakeReader{byMonth: map[string][]transactions.CategorySpend{
		"2025-02": {
			{CategorySlug: "groceries", CategoryName: "Groceries", TotalCents: 45000, Currency: "EUR", Count: 12},
			{CategorySlug: "restaurants", CategoryName: "Restaurants", TotalCents: 20000, Currency: "EUR", Count: 6},
		},
		"2025-01": {
			{CategorySlug: "groceries", CategoryName: "Groceries", TotalCents: 30000, Currency: "EUR", Count: 10},
			{CategorySlug: "transport", CategoryName: "Transport", TotalCents: 10000, Currency: "EUR", Count: 8},
		},
	}}
}

func TestPulse(t *testing.T) {
	reader := spends()
	svc := testService(reader, &fakeClient{})
	ref := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)

	pulse, err := svc.Pulse(context.Background(), uuid.New(), ref)
	require.NoError(t, err)

	assert.Equal(t, int64(65000), pulse.TotalSpentCents)
	assert.Equal(t, int64(40000), pulse.LastMonthCents)
	assert.InDelta(t, 62.5, pulse.ChangePercent, 0.01)
	assert.InDelta(t, 162.5, pulse.PacePercent, 0.01)
	assert.Equal(t, "EUR", pulse.Currency)

	require.NotNil(t, pulse.BiggestIncrease)
	assert.Equal(t, "restaurants", pulse.BiggestIncrease.CategorySlug)
	assert.Equal(t, int64(20000), pulse.BiggestIncrease.DeltaCents)

	require.NotNil(t, pulse.BiggestDecrease)
	assert.Equal(t, "transport", pulse.BiggestDecrease.CategorySlug)
	assert.Equal(t, int64(-10000), pulse.BiggestDecrease.DeltaCents)

	// Both windows stop at the 14th so mid-month pulses compare like stretches.
	require.Len(t, reader.windows, 2)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), reader.windows[0][0])
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), reader.windows[0][1])
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), reader.windows[1][0])
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), reader.windows[1][1])
}

func TestPulseClampsShortPreviousMonth(t *testing.T) {
	reader := spends()
	svc := testService(reader, &fakeClient{})

	_, err := svc.Pulse(context.Background(), uuid.New(), time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// February has no 31st; the previous window ends with the month.
	require.Len(t, reader.windows, 2)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), reader.windows[1][0])
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), reader.windows[1][1])
}

func TestPulseEmptyMonths(t *testing.T) {
	svc := testService(&fakeReader{byMonth: map[string][]transactions.CategorySpend{}}, &fakeClient{})

	pulse, err := svc.Pulse(context.Background(), uuid.New(), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, pulse.TotalSpentCents)
	assert.Zero(t, pulse.ChangePercent)
	assert.Zero(t, pulse.PacePercent)
	assert.Nil(t, pulse.BiggestIncrease)
}

func TestPulsePaceWithoutBaseline(t *testing.T) {
	reader := &fakeReader{byMonth: map[string][]transactions.CategorySpend{
		"2025-02": {{CategorySlug: "groceries", CategoryName: "Groceries", TotalCents: 12000, Currency: "EUR", Count: 4}},
	}}
	svc := testService(reader, &fakeClient{})

	pulse, err := svc.Pulse(context.Background(), uuid.New(), time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, pulse.LastMonthCents)
	assert.InDelta(t, 100.0, pulse.PacePercent, 0.01)
}

func TestMonthlySummary(t *testing.T) {
	client := &fakeClient{response: "February was pricey: groceries hit 450.00."}
	svc := testService(spends(), client)

	summary, err := svc.MonthlySummary(context.Background(), uuid.New(), time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "February was pricey: groceries hit 450.00.", summary.Text)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "February 2025")
	assert.Contains(t, client.prompts[0], "Groceries")
	assert.Contains(t, client.prompts[0], "450.00")
}

func TestMonthlySummaryFallsBack(t *testing.T) {
	client := &fakeClient{err: errors.New("model down")}
	svc := testService(spends(), client)

	summary, err := svc.MonthlySummary(context.Background(), uuid.New(), time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err, "model failure must not break the dashboard")
	assert.Contains(t, summary.Text, "February")
	assert.Contains(t, summary.Text, "groceries")
}
