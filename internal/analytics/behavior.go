package analytics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Behavioral insight thresholds. All comparisons are strict, so a ratio
// sitting exactly on a threshold produces no insight.
const (
	moodGapRatio      = 1.3
	stressRatio       = 1.2
	weekendRatio      = 1.25
	locationSharePct  = 40.0
	groupGapRatio     = 1.3
	eventSharePct     = 25.0
	loyaltyMinVisits  = 2.0
	lateEveningHour   = 20
	peakHourCount     = 3
	stabilityGoodBand = 60.0
	stabilityTopBand  = 80.0
)

// AnalyzeMoodImpact reports emotional spending patterns: a wide gap
// between the most and least expensive moods, and elevated spending
// while stressed.
func AnalyzeMoodImpact(rows []FeatureRow) []string {
	var insights []string
	moodAvg := groupMean(rows, func(r *FeatureRow) string { return r.Mood })

	if len(moodAvg) > 1 {
		maxMood, maxAvg := extremeKey(moodAvg, true)
		minMood, minAvg := extremeKey(moodAvg, false)
		if maxAvg > minAvg*moodGapRatio {
			diffPct := (maxAvg - minAvg) / minAvg * 100
			insights = append(insights, fmt.Sprintf(
				"Mood impact: you spend %.0f%% more when feeling '%s' compared to '%s', a possible emotional spending pattern.",
				diffPct, maxMood, minMood))
		}
	}

	if stressedAvg, ok := moodAvg["Stressed"]; ok {
		overallAvg := meanAmount(rows)
		if stressedAvg > overallAvg*stressRatio {
			insights = append(insights, fmt.Sprintf(
				"Stress spending: average transaction when stressed (%.2f) is %.0f%% higher than normal.",
				stressedAvg, (stressedAvg/overallAvg-1)*100))
		}
	}
	return insights
}

// AnalyzeTemporalPatterns reports weekend premiums and concentration of
// spend in the late evening hours.
func AnalyzeTemporalPatterns(rows []FeatureRow) []string {
	var insights []string

	var weekendSum, weekdaySum float64
	var weekendN, weekdayN int
	hourSum := make(map[int]float64)
	for i := range rows {
		if rows[i].IsWeekend {
			weekendSum += rows[i].Amount
			weekendN++
		} else {
			weekdaySum += rows[i].Amount
			weekdayN++
		}
		hourSum[rows[i].Hour] += rows[i].Amount
	}

	if weekendN > 0 && weekdayN > 0 {
		weekendAvg := weekendSum / float64(weekendN)
		weekdayAvg := weekdaySum / float64(weekdayN)
		if weekendAvg > weekdayAvg*weekendRatio {
			diffPct := (weekendAvg - weekdayAvg) / weekdayAvg * 100
			insights = append(insights, fmt.Sprintf(
				"Weekend pattern: weekend spending (%.2f) is %.0f%% higher than weekdays, likely leisure driven.",
				weekendAvg, diffPct))
		}
	}

	for _, h := range peakHours(hourSum, peakHourCount) {
		if h >= lateEveningHour {
			insights = append(insights,
				"Night spending: most impulse purchases occur between 8 PM and 11 PM. Consider delaying non-essential purchases to the next day.")
			break
		}
	}
	return insights
}

// AnalyzeLocationPatterns reports when one location dominates total
// spend.
func AnalyzeLocationPatterns(rows []FeatureRow) []string {
	locSum := make(map[string]float64)
	var total float64
	for i := range rows {
		locSum[rows[i].Location] += rows[i].Amount
		total += rows[i].Amount
	}
	if len(locSum) < 2 || total == 0 {
		return nil
	}

	topLocation, topSum := extremeKey(locSum, true)
	topPct := topSum / total * 100
	if topPct > locationSharePct {
		return []string{fmt.Sprintf(
			"Location concentration: %.0f%% of spending occurs at '%s'. Consider local alternatives to diversify.",
			topPct, topLocation)}
	}
	return nil
}

// AnalyzeGroupSpending reports a group whose average contribution sits
// well above the cross-group average.
func AnalyzeGroupSpending(rows []FeatureRow) []string {
	type acc struct {
		sum float64
		n   int
	}
	groups := make(map[float64]*acc)
	for i := range rows {
		a, ok := groups[rows[i].GroupID]
		if !ok {
			a = &acc{}
			groups[rows[i].GroupID] = a
		}
		a.sum += rows[i].Amount
		a.n++
	}
	if len(groups) < 2 {
		return nil
	}

	ids := make([]float64, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Float64s(ids)

	var meanOfMeans float64
	maxID, maxMean := ids[0], -1.0
	for _, id := range ids {
		m := groups[id].sum / float64(groups[id].n)
		meanOfMeans += m
		if m > maxMean {
			maxID, maxMean = id, m
		}
	}
	meanOfMeans /= float64(len(ids))

	if maxMean > meanOfMeans*groupGapRatio {
		return []string{fmt.Sprintf(
			"Group expenses: your contribution in group %g (%.2f) exceeds the average. Track shared expenses transparently.",
			maxID, maxMean)}
	}
	return nil
}

// AnalyzeCalendarEvents reports the share of spend tied to calendar
// events. Rows whose event is "None" do not count as event spend.
func AnalyzeCalendarEvents(rows []FeatureRow) []string {
	var eventSum, total float64
	seen := false
	for i := range rows {
		total += rows[i].Amount
		if rows[i].CalendarEvent != "None" {
			eventSum += rows[i].Amount
			seen = true
		}
	}
	if !seen || total == 0 {
		return nil
	}

	eventPct := eventSum / total * 100
	if eventPct > eventSharePct {
		return []string{fmt.Sprintf(
			"Calendar events: %.0f%% of spending is linked to events such as holidays and birthdays. Pre-plan budgets for recurring events.",
			eventPct)}
	}
	return nil
}

// AnalyzeMerchantLoyalty reports exploratory spending: mostly one-off
// merchants rather than repeat visits.
func AnalyzeMerchantLoyalty(rows []FeatureRow) []string {
	visits := make(map[string]int)
	for i := range rows {
		visits[rows[i].Merchant]++
	}
	if len(visits) == 0 {
		return nil
	}

	avgVisits := float64(len(rows)) / float64(len(visits))
	if avgVisits >= loyaltyMinVisits {
		return nil
	}
	oneTime := 0
	for _, n := range visits {
		if n == 1 {
			oneTime++
		}
	}
	return []string{fmt.Sprintf(
		"Merchant variety: %.0f%% are one-time merchants. High variety may indicate exploratory spending.",
		float64(oneTime)/float64(len(visits))*100)}
}

// StabilityScore is a 0-100 composite of balance stability, spending
// consistency, risk management and savings rate, 25 points each.
func StabilityScore(rows []FeatureRow) float64 {
	balances := make([]float64, len(rows))
	amounts := make([]float64, len(rows))
	risks := make([]float64, len(rows))
	for i := range rows {
		balances[i] = rows[i].BalanceAfter
		amounts[i] = rows[i].Amount
		risks[i] = rows[i].RiskScore
	}

	score := coefficientScore(balances, 1)*25 +
		coefficientScore(amounts, 2)*25 +
		maxf(0, 1-stat.Mean(risks, nil))*25

	var totalIncome float64
	for i := range rows {
		if rows[i].BalanceChange > rows[i].Amount {
			totalIncome += rows[i].BalanceChange
		}
	}
	var savingsRate float64
	if totalIncome > 0 {
		savingsRate = (totalIncome - sum(amounts)) / totalIncome
	}
	return score + maxf(0, savingsRate*100)*0.25
}

// coefficientScore maps a coefficient of variation to [0, 1]; a
// non-positive mean counts as maximally unstable.
func coefficientScore(vals []float64, divisor float64) float64 {
	mean := stat.Mean(vals, nil)
	cv := 1.0
	if mean > 0 {
		var std float64
		if len(vals) > 1 {
			std = stat.StdDev(vals, nil)
		}
		cv = std / mean
	}
	return maxf(0, 1-cv/divisor)
}

// AllInsights runs every behavioral analysis in fixed order and appends
// the stability score line.
func AllInsights(rows []FeatureRow) []string {
	var insights []string
	insights = append(insights, AnalyzeMoodImpact(rows)...)
	insights = append(insights, AnalyzeTemporalPatterns(rows)...)
	insights = append(insights, AnalyzeLocationPatterns(rows)...)
	insights = append(insights, AnalyzeGroupSpending(rows)...)
	insights = append(insights, AnalyzeCalendarEvents(rows)...)
	insights = append(insights, AnalyzeMerchantLoyalty(rows)...)

	score := StabilityScore(rows)
	band := "Needs Improvement"
	switch {
	case score >= stabilityTopBand:
		band = "Excellent"
	case score >= stabilityGoodBand:
		band = "Good"
	}
	insights = append(insights, fmt.Sprintf("Financial stability score: %.0f/100, %s", score, band))
	return insights
}

func groupMean(rows []FeatureRow, key func(*FeatureRow) string) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i := range rows {
		k := key(&rows[i])
		sums[k] += rows[i].Amount
		counts[k]++
	}
	out := make(map[string]float64, len(sums))
	for k, s := range sums {
		out[k] = s / float64(counts[k])
	}
	return out
}

// extremeKey returns the key with the largest (or smallest) value,
// breaking ties on key order so results are deterministic.
func extremeKey(m map[string]float64, largest bool) (string, float64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestVal := keys[0], m[keys[0]]
	for _, k := range keys[1:] {
		if (largest && m[k] > bestVal) || (!largest && m[k] < bestVal) {
			best, bestVal = k, m[k]
		}
	}
	return best, bestVal
}

// peakHours returns the n hours with the highest total spend.
func peakHours(hourSum map[int]float64, n int) []int {
	hours := make([]int, 0, len(hourSum))
	for h := range hourSum {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if hourSum[hours[i]] != hourSum[hours[j]] {
			return hourSum[hours[i]] > hourSum[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > n {
		hours = hours[:n]
	}
	return hours
}

func meanAmount(rows []FeatureRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	var s float64
	for i := range rows {
		s += rows[i].Amount
	}
	return s / float64(len(rows))
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
