package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dailyConstant(start time.Time, days int, amount float64) []DailyPoint {
	points := make([]DailyPoint, days)
	for i := range points {
		points[i] = DailyPoint{
			Date:   start.AddDate(0, 0, i),
			Amount: amount,
		}
	}
	return points
}

func TestRemainingDaysInMonth(t *testing.T) {
	cases := []struct {
		name string
		date time.Time
		want int
	}{
		{"mid february leap year", time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC), 14},
		{"mid february common year", time.Date(2023, 2, 15, 10, 0, 0, 0, time.UTC), 13},
		{"last day floors at one", time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC), 1},
		{"first of month", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), 29},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, remainingDaysInMonth(tc.date))
		})
	}
}

func TestProjectBalance(t *testing.T) {
	t.Run("applies the recursion", func(t *testing.T) {
		projected, end, minBal, negFrac := projectBalance(1000, 0, []float64{50, 50, 50})
		assert.Equal(t, []float64{950, 900, 850}, projected)
		assert.Equal(t, 850.0, end)
		assert.Equal(t, 850.0, minBal)
		assert.Zero(t, negFrac)
	})

	t.Run("income offsets expenses", func(t *testing.T) {
		projected, end, _, _ := projectBalance(100, 30, []float64{20, 20})
		assert.Equal(t, []float64{110, 120}, projected)
		assert.Equal(t, 120.0, end)
	})

	t.Run("counts days below zero", func(t *testing.T) {
		_, _, minBal, negFrac := projectBalance(100, 0, []float64{60, 60, 10, 10})
		assert.Equal(t, -40.0, minBal)
		assert.Equal(t, 0.75, negFrac)
	})
}

func TestPrepareDaily(t *testing.T) {
	f := NewForecaster(testLogger())
	day1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 20, 0, 0, 0, time.UTC)

	rows := []FeatureRow{
		{Txn: Txn{DateTime: day1, Amount: 100, BalanceAfter: 900}, RiskScore: 0.2},
		{Txn: Txn{DateTime: day1.Add(3 * time.Hour), Amount: 50, BalanceAfter: 850}, RiskScore: 0.4},
		{Txn: Txn{DateTime: day2, Amount: 70, BalanceAfter: 780}, RiskScore: 0.6},
	}

	daily := f.PrepareDaily(rows)
	require.Len(t, daily, 2)
	assert.Equal(t, 150.0, daily[0].Amount)
	assert.Equal(t, 850.0, daily[0].Balance)
	assert.InDelta(t, 0.3, daily[0].Risk, 1e-9)
	assert.Equal(t, 70.0, daily[1].Amount)
}

func TestSeasonalTrendModel(t *testing.T) {
	m := newSeasonalTrendModel()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("needs two points", func(t *testing.T) {
		_, err := m.Forecast(dailyConstant(start, 1, 100), 5)
		var insufficient *InsufficientDataError
		assert.ErrorAs(t, err, &insufficient)
	})

	t.Run("flat series forecasts flat", func(t *testing.T) {
		fc, err := m.Forecast(dailyConstant(start, 30, 100), 7)
		require.NoError(t, err)
		require.Len(t, fc.Predicted, 7)
		require.Len(t, fc.Dates, 7)
		assert.Equal(t, 7, fc.HorizonDays)
		for i, v := range fc.Predicted {
			assert.InDelta(t, 100, v, 1e-6)
			assert.InDelta(t, v, fc.LowerBound[i], 1e-6)
			assert.InDelta(t, v, fc.UpperBound[i], 1e-6)
		}
		assert.InDelta(t, 700, fc.Total, 1e-4)
		assert.InDelta(t, 100, fc.DailyAvg, 1e-6)
	})

	t.Run("dates continue from the last observation", func(t *testing.T) {
		fc, err := m.Forecast(dailyConstant(start, 10, 50), 3)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-11", fc.Dates[0])
		assert.Equal(t, "2024-03-13", fc.Dates[2])
	})

	t.Run("never forecasts negative spend", func(t *testing.T) {
		// Steeply declining series drives the trend below zero.
		points := make([]DailyPoint, 20)
		for i := range points {
			points[i] = DailyPoint{Date: start.AddDate(0, 0, i), Amount: float64(200 - i*20)}
		}
		fc, err := m.Forecast(points, 10)
		require.NoError(t, err)
		for i := range fc.Predicted {
			assert.GreaterOrEqual(t, fc.Predicted[i], 0.0)
			assert.GreaterOrEqual(t, fc.LowerBound[i], 0.0)
		}
	})
}

func TestAutoregressiveModel(t *testing.T) {
	m := newAutoregressiveModel()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("needs sixty days", func(t *testing.T) {
		_, err := m.Forecast(dailyConstant(start, 59, 100), 5)
		var insufficient *InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, 60, insufficient.Min)
	})

	t.Run("flat series forecasts flat", func(t *testing.T) {
		fc, err := m.Forecast(dailyConstant(start, 70, 100), 5)
		require.NoError(t, err)
		require.Len(t, fc.Predicted, 5)
		for _, v := range fc.Predicted {
			assert.InDelta(t, 100, v, 1.0)
		}
	})
}

func TestForecastBalance(t *testing.T) {
	f := NewForecaster(testLogger())
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := []FeatureRow{
		{Txn: Txn{DateTime: start, Amount: 100, BalanceAfter: 1000}},
		{Txn: Txn{DateTime: start.AddDate(0, 0, 1), Amount: 50, BalanceAfter: 950}, BalanceChange: -50},
	}
	expenses := &ForecastSeries{
		Dates:     []string{"2024-03-03", "2024-03-04"},
		Predicted: []float64{100, 100},
	}

	t.Run("projects from the latest balance", func(t *testing.T) {
		bf, err := f.ForecastBalance(rows, expenses)
		require.NoError(t, err)
		assert.Equal(t, []float64{850, 750}, bf.ProjectedBalance)
		assert.Equal(t, 750.0, bf.EndBalance)
		assert.Equal(t, 750.0, bf.MinBalance)
		assert.Zero(t, bf.RiskOfNegative)
	})

	t.Run("requires an expense forecast", func(t *testing.T) {
		_, err := f.ForecastBalance(rows, nil)
		var fcErr *ForecastError
		assert.ErrorAs(t, err, &fcErr)
	})
}

func TestEstimateDailyIncome(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []FeatureRow{
		{Txn: Txn{DateTime: start, Amount: 50}, BalanceChange: -50},
		{Txn: Txn{DateTime: start.AddDate(0, 0, 1), Amount: 0}, BalanceChange: 3000}, // salary
		{Txn: Txn{DateTime: start.AddDate(0, 0, 2), Amount: 80}, BalanceChange: -80},
	}
	// One credit of 3000 spread over three distinct days.
	assert.InDelta(t, 1000, estimateDailyIncome(rows), 1e-9)

	assert.Zero(t, estimateDailyIncome([]FeatureRow{
		{Txn: Txn{DateTime: start, Amount: 50}, BalanceChange: -50},
	}))
}

func TestForecastCategories(t *testing.T) {
	f := NewForecaster(testLogger())
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var rows []FeatureRow
	// "Food" has 20 daily observations, "Travel" only 5.
	for i := 0; i < 20; i++ {
		rows = append(rows, FeatureRow{Txn: Txn{
			DateTime: start.AddDate(0, 0, i),
			Category: "Food",
			Amount:   100,
		}})
	}
	for i := 0; i < 5; i++ {
		rows = append(rows, FeatureRow{Txn: Txn{
			DateTime: start.AddDate(0, 0, i),
			Category: "Travel",
			Amount:   500,
		}})
	}

	out := f.ForecastCategories(rows, 7)
	require.Contains(t, out, "Food")
	assert.NotContains(t, out, "Travel")
	assert.InDelta(t, 700, out["Food"].Total, 1.0)
	assert.InDelta(t, 100, out["Food"].DailyAvg, 0.5)
}

func TestForecasterRun(t *testing.T) {
	f := NewForecaster(testLogger())

	t.Run("empty rows produce empty bundle", func(t *testing.T) {
		bundle := f.Run(nil)
		assert.Nil(t, bundle.Primary)
		assert.Nil(t, bundle.Secondary)
		assert.Nil(t, bundle.Balance)
		assert.Empty(t, bundle.Categories)
	})

	t.Run("short history degrades secondary only", func(t *testing.T) {
		start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		var rows []FeatureRow
		for i := 0; i < 20; i++ {
			rows = append(rows, FeatureRow{Txn: Txn{
				DateTime:     start.AddDate(0, 0, i),
				Category:     "Food",
				Amount:       100,
				BalanceAfter: 5000 - float64(i)*100,
			}})
		}

		bundle := f.Run(rows)
		require.NotNil(t, bundle.Primary)
		assert.Nil(t, bundle.Secondary)
		require.NotNil(t, bundle.Balance)
		assert.Contains(t, bundle.Categories, "Food")
	})
}
