package analytics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moodRows(mood string, amounts ...float64) []FeatureRow {
	rows := make([]FeatureRow, len(amounts))
	for i, a := range amounts {
		rows[i] = FeatureRow{Txn: Txn{Mood: mood, Amount: a}}
	}
	return rows
}

func TestAnalyzeMoodImpact(t *testing.T) {
	t.Run("wide mood gap fires", func(t *testing.T) {
		rows := append(moodRows("Excited", 150, 150), moodRows("Calm", 100, 100)...)
		insights := AnalyzeMoodImpact(rows)
		require.Len(t, insights, 1)
		assert.Contains(t, insights[0], "50% more when feeling 'Excited' compared to 'Calm'")
	})

	t.Run("narrow gap stays quiet", func(t *testing.T) {
		rows := append(moodRows("Excited", 120), moodRows("Calm", 100)...)
		assert.Empty(t, AnalyzeMoodImpact(rows))
	})

	t.Run("stress threshold is strict", func(t *testing.T) {
		// Stressed avg 150, calm avg 100: overall 125, ratio exactly 1.2.
		rows := append(moodRows("Stressed", 150, 150), moodRows("Calm", 100, 100)...)
		for _, insight := range AnalyzeMoodImpact(rows) {
			assert.NotContains(t, insight, "Stress spending")
		}
	})

	t.Run("stress spending fires above the threshold", func(t *testing.T) {
		rows := append(moodRows("Stressed", 200, 200), moodRows("Calm", 100, 100)...)
		insights := AnalyzeMoodImpact(rows)
		found := false
		for _, insight := range insights {
			if strings.HasPrefix(insight, "Stress spending") {
				found = true
			}
		}
		assert.True(t, found, "expected a stress spending insight, got %v", insights)
	})
}

func weekRows(weekend bool, amounts ...float64) []FeatureRow {
	rows := make([]FeatureRow, len(amounts))
	for i, a := range amounts {
		rows[i] = FeatureRow{Txn: Txn{Amount: a}, IsWeekend: weekend}
	}
	return rows
}

func TestAnalyzeTemporalPatterns(t *testing.T) {
	t.Run("weekend premium fires", func(t *testing.T) {
		rows := append(weekRows(true, 150, 150), weekRows(false, 100, 100)...)
		insights := AnalyzeTemporalPatterns(rows)
		require.NotEmpty(t, insights)
		assert.Contains(t, insights[0], "Weekend pattern")
		assert.Contains(t, insights[0], "50%")
	})

	t.Run("threshold is strict", func(t *testing.T) {
		// Exactly 1.25x stays quiet.
		rows := append(weekRows(true, 125), weekRows(false, 100)...)
		for _, insight := range AnalyzeTemporalPatterns(rows) {
			assert.NotContains(t, insight, "Weekend pattern")
		}
	})

	t.Run("late evening peak fires", func(t *testing.T) {
		rows := []FeatureRow{
			{Txn: Txn{Amount: 500}, Hour: 21},
			{Txn: Txn{Amount: 50}, Hour: 9},
			{Txn: Txn{Amount: 40}, Hour: 12},
			{Txn: Txn{Amount: 30}, Hour: 15},
		}
		insights := AnalyzeTemporalPatterns(rows)
		require.NotEmpty(t, insights)
		assert.Contains(t, insights[len(insights)-1], "Night spending")
	})

	t.Run("daytime peaks stay quiet", func(t *testing.T) {
		rows := []FeatureRow{
			{Txn: Txn{Amount: 500}, Hour: 9},
			{Txn: Txn{Amount: 400}, Hour: 12},
			{Txn: Txn{Amount: 300}, Hour: 15},
			{Txn: Txn{Amount: 10}, Hour: 22},
		}
		for _, insight := range AnalyzeTemporalPatterns(rows) {
			assert.NotContains(t, insight, "Night spending")
		}
	})
}

func TestAnalyzeLocationPatterns(t *testing.T) {
	t.Run("dominant location fires", func(t *testing.T) {
		rows := []FeatureRow{
			{Txn: Txn{Location: "Mall", Amount: 900}},
			{Txn: Txn{Location: "Home", Amount: 100}},
		}
		insights := AnalyzeLocationPatterns(rows)
		require.Len(t, insights, 1)
		assert.Contains(t, insights[0], "90% of spending occurs at 'Mall'")
	})

	t.Run("single location stays quiet", func(t *testing.T) {
		rows := []FeatureRow{{Txn: Txn{Location: "Home", Amount: 100}}}
		assert.Empty(t, AnalyzeLocationPatterns(rows))
	})

	t.Run("balanced spending stays quiet", func(t *testing.T) {
		rows := []FeatureRow{
			{Txn: Txn{Location: "Mall", Amount: 100}},
			{Txn: Txn{Location: "Home", Amount: 100}},
			{Txn: Txn{Location: "Office", Amount: 100}},
		}
		assert.Empty(t, AnalyzeLocationPatterns(rows))
	})
}

func TestAnalyzeGroupSpending(t *testing.T) {
	t.Run("outlier group fires", func(t *testing.T) {
		rows := []FeatureRow{
			{Txn: Txn{GroupID: 1, Amount: 100}},
			{Txn: Txn{GroupID: 2, Amount: 500}},
		}
		insights := AnalyzeGroupSpending(rows)
		require.Len(t, insights, 1)
		assert.Contains(t, insights[0], "group 2")
	})

	t.Run("single group stays quiet", func(t *testing.T) {
		rows := []FeatureRow{
			{Txn: Txn{GroupID: 1, Amount: 100}},
			{Txn: Txn{GroupID: 1, Amount: 500}},
		}
		assert.Empty(t, AnalyzeGroupSpending(rows))
	})
}

func TestAnalyzeCalendarEvents(t *testing.T) {
	t.Run("event heavy spending fires", func(t *testing.T) {
		rows := []FeatureRow{
			{Txn: Txn{CalendarEvent: "Holiday", Amount: 300}},
			{Txn: Txn{CalendarEvent: "None", Amount: 700}},
		}
		insights := AnalyzeCalendarEvents(rows)
		require.Len(t, insights, 1)
		assert.Contains(t, insights[0], "30% of spending is linked to events")
	})

	t.Run("no events stays quiet", func(t *testing.T) {
		rows := []FeatureRow{{Txn: Txn{CalendarEvent: "None", Amount: 100}}}
		assert.Empty(t, AnalyzeCalendarEvents(rows))
	})
}

func TestAnalyzeMerchantLoyalty(t *testing.T) {
	t.Run("one-time merchants fire", func(t *testing.T) {
		rows := []FeatureRow{
			{Txn: Txn{Merchant: "A", Amount: 10}},
			{Txn: Txn{Merchant: "B", Amount: 10}},
			{Txn: Txn{Merchant: "C", Amount: 10}},
		}
		insights := AnalyzeMerchantLoyalty(rows)
		require.Len(t, insights, 1)
		assert.Contains(t, insights[0], "100% are one-time merchants")
	})

	t.Run("loyal visits stay quiet", func(t *testing.T) {
		rows := []FeatureRow{
			{Txn: Txn{Merchant: "A", Amount: 10}},
			{Txn: Txn{Merchant: "A", Amount: 10}},
			{Txn: Txn{Merchant: "B", Amount: 10}},
			{Txn: Txn{Merchant: "B", Amount: 10}},
		}
		assert.Empty(t, AnalyzeMerchantLoyalty(rows))
	})
}

func TestStabilityScore(t *testing.T) {
	t.Run("steady finances score well", func(t *testing.T) {
		// Constant balance and spend with zero risk: 25+25+25+0.
		var rows []FeatureRow
		for i := 0; i < 10; i++ {
			rows = append(rows, FeatureRow{Txn: Txn{Amount: 100, BalanceAfter: 5000}})
		}
		assert.InDelta(t, 75, StabilityScore(rows), 1e-9)
	})

	t.Run("savings add the final component", func(t *testing.T) {
		rows := []FeatureRow{
			{Txn: Txn{Amount: 0, BalanceAfter: 5000}, BalanceChange: 1000},
			{Txn: Txn{Amount: 0, BalanceAfter: 5000}},
		}
		// Zero spend leaves the consistency component at half credit and
		// the fully saved income adds the whole savings component.
		assert.InDelta(t, 87.5, StabilityScore(rows), 1e-9)
	})
}

func TestAllInsights(t *testing.T) {
	var rows []FeatureRow
	for i := 0; i < 10; i++ {
		rows = append(rows, FeatureRow{Txn: Txn{
			Merchant:      "Cafe",
			Mood:          "Happy",
			Location:      "Home",
			CalendarEvent: "None",
			GroupID:       1,
			Amount:        100,
			BalanceAfter:  5000,
		}})
	}

	insights := AllInsights(rows)
	require.NotEmpty(t, insights)
	last := insights[len(insights)-1]
	assert.Contains(t, last, "Financial stability score: 75/100")
	assert.Contains(t, last, "Good")
}
