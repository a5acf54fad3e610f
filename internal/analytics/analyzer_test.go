package analytics

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/backend/internal/ledger"
)

// demoLedger builds a deterministic ledger spanning roughly three
// months with salary credits, mood and weekend structure.
func demoLedger(n int) []ledger.Record {
	rng := rand.New(rand.NewSource(99))
	categories := []string{"Food", "Transport", "Shopping", "Bills"}
	moods := []string{"Happy", "Neutral", "Stressed"}
	locations := []string{"Home", "Downtown", "Mall"}

	recs := make([]ledger.Record, 0, n)
	balance := 40000.0
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := start.AddDate(0, 0, i/2).Add(time.Duration(9+(i%2)*8) * time.Hour)
		if ts.Day() == 1 && i%2 == 0 {
			balance += 30000
		}
		amount := 100 + rng.Float64()*400
		balance -= amount
		event := "None"
		if i%17 == 0 {
			event = "Birthday"
		}
		recs = append(recs, ledger.Record{
			Date:          ts.Format("2006-01-02"),
			Time:          ts.Format("15:04:05"),
			Merchant:      fmt.Sprintf("Merchant-%d", i%7),
			Amount:        fmt.Sprintf("%.2f", amount),
			Category:      categories[i%len(categories)],
			Mood:          moods[i%len(moods)],
			Location:      locations[i%len(locations)],
			CalendarEvent: event,
			GroupID:       fmt.Sprintf("%d", 1+i%2),
			BalanceAfter:  fmt.Sprintf("%.2f", balance),
		})
	}
	return recs
}

func TestAnalyzerNotReady(t *testing.T) {
	a := NewAnalyzer(testLogger())

	_, err := a.Summary()
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = a.Predictions()
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = a.Forecasts()
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = a.Recommendations()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestAnalyzerRun(t *testing.T) {
	a := NewAnalyzer(testLogger())
	recs := demoLedger(160)
	require.NoError(t, a.Run(context.Background(), recs))

	t.Run("summary covers the ledger", func(t *testing.T) {
		s, err := a.Summary()
		require.NoError(t, err)
		assert.Equal(t, 160, s.TotalTransactions)
		assert.Equal(t, "2024-01-01", s.DateRange.Start)
		assert.Greater(t, s.Spending.Total, 0.0)
		assert.GreaterOrEqual(t, s.Spending.Max, s.Spending.Median)
		assert.GreaterOrEqual(t, s.Risk.AverageScore, 0.0)
		assert.LessOrEqual(t, s.Risk.AverageScore, 1.0)
	})

	t.Run("summary is idempotent", func(t *testing.T) {
		s1, err := a.Summary()
		require.NoError(t, err)
		s2, err := a.Summary()
		require.NoError(t, err)
		assert.Equal(t, s1, s2)
	})

	t.Run("predictions annotate every transaction", func(t *testing.T) {
		preds, err := a.Predictions()
		require.NoError(t, err)
		require.Len(t, preds, 160)
		assert.Equal(t, 0, preds[0].TransactionID)
		assert.NotEmpty(t, preds[0].Merchant)
		assert.NotEqual(t, PersonaUnknown, preds[0].Persona)
	})

	t.Run("categories pick a top spender", func(t *testing.T) {
		c, err := a.Categories()
		require.NoError(t, err)
		assert.NotEmpty(t, c.TopCategory)
		assert.Contains(t, c.Categories, c.TopCategory)
		assert.InDelta(t, c.Categories[c.TopCategory].Total, c.TopSpending, 1e-9)
	})

	t.Run("time patterns cover the splits", func(t *testing.T) {
		tp, err := a.TimePatterns()
		require.NoError(t, err)
		assert.Greater(t, tp.DailyAverage, 0.0)
		assert.LessOrEqual(t, len(tp.DailyTrend), 30)
		assert.NotEmpty(t, tp.WeeklyPattern)
		assert.Contains(t, tp.MonthlyTrend, "2024-01")
	})

	t.Run("merchants are capped at ten", func(t *testing.T) {
		m, err := a.Merchants()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(m.TopMerchants), 10)
		assert.NotEmpty(t, m.TopMerchants)
	})

	t.Run("personas come from the fixed set", func(t *testing.T) {
		p, err := a.Personas()
		require.NoError(t, err)
		assert.NotEmpty(t, p.DominantPersona)
		for name := range p.Personas {
			assert.NotEqual(t, PersonaUnknown, name)
		}
	})

	t.Run("risk analysis reports a trend", func(t *testing.T) {
		r, err := a.RiskAnalysis()
		require.NoError(t, err)
		assert.Contains(t, []string{"increasing", "decreasing"}, r.RiskTrend)
		assert.NotEmpty(t, r.RiskByCategory)
	})

	t.Run("forecasts include a primary series", func(t *testing.T) {
		f, err := a.Forecasts()
		require.NoError(t, err)
		require.NotNil(t, f.Primary)
		assert.Equal(t, len(f.Primary.Dates), len(f.Primary.Predicted))
		require.NotNil(t, f.Balance)
		assert.Len(t, f.Balance.ProjectedBalance, len(f.Primary.Predicted))
	})

	t.Run("recommendations are never empty", func(t *testing.T) {
		recs, err := a.Recommendations()
		require.NoError(t, err)
		assert.NotEmpty(t, recs)
	})
}

func TestAnalyzerSmallLedgerDegrades(t *testing.T) {
	a := NewAnalyzer(testLogger())
	require.NoError(t, a.Run(context.Background(), demoLedger(20)))

	t.Run("summary still works", func(t *testing.T) {
		s, err := a.Summary()
		require.NoError(t, err)
		assert.Equal(t, 20, s.TotalTransactions)
		assert.Zero(t, s.Anomalies.Count)
	})

	t.Run("personas stay unknown", func(t *testing.T) {
		preds, err := a.Predictions()
		require.NoError(t, err)
		for _, p := range preds {
			assert.Equal(t, PersonaUnknown, p.Persona)
			assert.Zero(t, p.PredictedRisk)
			assert.False(t, p.IsAnomaly)
		}
	})
}

func TestAnalyzerInvalidLedger(t *testing.T) {
	a := NewAnalyzer(testLogger())
	err := a.Run(context.Background(), nil)
	var dataErr *DataError
	assert.ErrorAs(t, err, &dataErr)

	_, err = a.Summary()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestAnalyzerCancelledContext(t *testing.T) {
	a := NewAnalyzer(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Run(ctx, demoLedger(60))
	assert.ErrorIs(t, err, context.Canceled)
}
