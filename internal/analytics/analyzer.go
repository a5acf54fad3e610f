package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/finsight/backend/internal/ledger"
)

// ErrNotReady is returned by every query method before Run has
// completed successfully.
var ErrNotReady = errors.New("analysis not ready")

// highRiskThreshold marks a transaction as high risk in the reporting
// surface.
const highRiskThreshold = 0.7

// Analyzer is the full per-user pipeline: cleaning, feature
// engineering, model training, annotation, forecasting, then the query
// surface. One Analyzer serves one ledger snapshot; a changed ledger
// gets a fresh Analyzer.
type Analyzer struct {
	pre        *Preprocessor
	risk       *RiskPredictor
	anomaly    *AnomalyDetector
	persona    *PersonaClassifier
	forecaster *Forecaster
	log        zerolog.Logger

	rows      []FeatureRow
	X         [][]float64
	predicted []float64
	labels    []int
	personas  []string
	forecasts *ForecastBundle
	ready     bool
}

// NewAnalyzer wires the pipeline with its default models.
func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{
		pre:        NewPreprocessor(log),
		risk:       NewRiskPredictor(log),
		anomaly:    NewAnomalyDetector(log),
		persona:    NewPersonaClassifier(log),
		forecaster: NewForecaster(log),
		log:        log.With().Str("component", "analyzer").Logger(),
	}
}

// Run executes the pipeline over a ledger snapshot. Cleaning failures
// are fatal. Model training failures from insufficient data are not:
// the affected model degrades to its no-op behavior and the pipeline
// continues, so a ten-row ledger still produces a summary. The three
// models train concurrently, each writing only its own state.
func (a *Analyzer) Run(ctx context.Context, recs []ledger.Record) error {
	txns, err := a.pre.Clean(recs)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	X, y, rows := a.pre.PrepareDataset(txns)
	a.rows = rows
	a.X = X
	a.log.Info().
		Int("transactions", len(rows)).
		Int("features", len(FeatureColumns)).
		Msg("features engineered")

	var g errgroup.Group
	g.Go(func() error { return a.tolerateDegraded(a.risk.Train(X, y)) })
	g.Go(func() error { return a.tolerateDegraded(a.anomaly.Train(X)) })
	g.Go(func() error { return a.tolerateDegraded(a.persona.Train(X)) })
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.predicted = a.risk.Predict(X)
	a.labels = a.anomaly.Detect(X)
	a.personas = a.persona.Predict(X)

	a.forecasts = a.forecaster.Run(rows)
	a.ready = true
	a.log.Info().Msg("analysis complete")
	return nil
}

// tolerateDegraded swallows the error classes that mean "model stays a
// no-op" rather than "pipeline failed".
func (a *Analyzer) tolerateDegraded(err error) error {
	if err == nil {
		return nil
	}
	var insufficient *InsufficientDataError
	var unavailable *ModelUnavailableError
	if errors.As(err, &insufficient) || errors.As(err, &unavailable) {
		a.log.Warn().Err(err).Msg("model degraded to no-op")
		return nil
	}
	return err
}

// SummaryStats is the headline report over the processed ledger.
type SummaryStats struct {
	TotalTransactions int          `json:"total_transactions"`
	DateRange         DateRange    `json:"date_range"`
	Spending          SpendStats   `json:"spending"`
	Balance           BalanceStats `json:"balance"`
	Risk              RiskStats    `json:"risk"`
	Anomalies         AnomalyStats `json:"anomalies"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

type SpendStats struct {
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

type BalanceStats struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

type RiskStats struct {
	AverageScore       float64 `json:"average_score"`
	HighRiskCount      int     `json:"high_risk_count"`
	HighRiskPercentage float64 `json:"high_risk_percentage"`
}

type AnomalyStats struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Summary reports the headline statistics.
func (a *Analyzer) Summary() (*SummaryStats, error) {
	if !a.ready {
		return nil, ErrNotReady
	}
	rows := a.rows

	amounts := make([]float64, len(rows))
	balances := make([]float64, len(rows))
	risks := make([]float64, len(rows))
	for i := range rows {
		amounts[i] = rows[i].Amount
		balances[i] = rows[i].BalanceAfter
		risks[i] = rows[i].RiskScore
	}

	highRisk := 0
	for _, r := range risks {
		if r > highRiskThreshold {
			highRisk++
		}
	}
	anomalies := 0
	for _, l := range a.labels {
		if l == -1 {
			anomalies++
		}
	}

	n := float64(len(rows))
	first, last := rows[0].DateTime, rows[len(rows)-1].DateTime
	return &SummaryStats{
		TotalTransactions: len(rows),
		DateRange: DateRange{
			Start: first.Format("2006-01-02"),
			End:   last.Format("2006-01-02"),
			Days:  int(last.Sub(first).Hours() / 24),
		},
		Spending: SpendStats{
			Total:   sum(amounts),
			Average: stat.Mean(amounts, nil),
			Median:  median(amounts),
			Std:     sampleStd(amounts),
			Min:     minOf(amounts),
			Max:     maxOf(amounts),
		},
		Balance: BalanceStats{
			Current: balances[len(balances)-1],
			Average: stat.Mean(balances, nil),
			Min:     minOf(balances),
			Max:     maxOf(balances),
		},
		Risk: RiskStats{
			AverageScore:       stat.Mean(risks, nil),
			HighRiskCount:      highRisk,
			HighRiskPercentage: float64(highRisk) / n * 100,
		},
		Anomalies: AnomalyStats{
			Count:      anomalies,
			Percentage: float64(anomalies) / n * 100,
		},
	}, nil
}

// CategoryStats aggregates one category's spend and risk.
type CategoryStats struct {
	Total   float64 `json:"Total"`
	Average float64 `json:"Average"`
	Count   int     `json:"Count"`
	AvgRisk float64 `json:"Avg_Risk"`
}

// CategoryReport is the per-category breakdown.
type CategoryReport struct {
	Categories  map[string]CategoryStats `json:"categories"`
	TopCategory string                   `json:"top_category"`
	TopSpending float64                  `json:"top_spending"`
}

// Categories reports spend grouped by category, identifying the largest.
func (a *Analyzer) Categories() (*CategoryReport, error) {
	if !a.ready {
		return nil, ErrNotReady
	}

	type acc struct {
		total, risk float64
		n           int
	}
	groups := make(map[string]*acc)
	for i := range a.rows {
		g, ok := groups[a.rows[i].Category]
		if !ok {
			g = &acc{}
			groups[a.rows[i].Category] = g
		}
		g.total += a.rows[i].Amount
		g.risk += a.rows[i].RiskScore
		g.n++
	}

	report := &CategoryReport{Categories: make(map[string]CategoryStats, len(groups))}
	for _, cat := range sortedKeys(groups) {
		g := groups[cat]
		report.Categories[cat] = CategoryStats{
			Total:   round2(g.total),
			Average: round2(g.total / float64(g.n)),
			Count:   g.n,
			AvgRisk: round2(g.risk / float64(g.n)),
		}
		if g.total > report.TopSpending || report.TopCategory == "" {
			report.TopCategory = cat
			report.TopSpending = round2(g.total)
		}
	}
	return report, nil
}

// MoodStats aggregates one mood's spend.
type MoodStats struct {
	Average float64 `json:"Average"`
	Total   float64 `json:"Total"`
	Count   int     `json:"Count"`
}

// MoodReport relates moods to spending, with an impact score measuring
// how much the per-mood averages disperse.
type MoodReport struct {
	Moods               map[string]MoodStats `json:"moods"`
	HighestSpendingMood string               `json:"highest_spending_mood"`
	ImpactScore         float64              `json:"impact_score"`
}

// MoodImpact reports spend grouped by mood.
func (a *Analyzer) MoodImpact() (*MoodReport, error) {
	if !a.ready {
		return nil, ErrNotReady
	}

	type acc struct {
		total float64
		n     int
	}
	groups := make(map[string]*acc)
	for i := range a.rows {
		g, ok := groups[a.rows[i].Mood]
		if !ok {
			g = &acc{}
			groups[a.rows[i].Mood] = g
		}
		g.total += a.rows[i].Amount
		g.n++
	}

	report := &MoodReport{Moods: make(map[string]MoodStats, len(groups))}
	averages := make([]float64, 0, len(groups))
	best := -1.0
	for _, mood := range sortedKeys(groups) {
		g := groups[mood]
		avg := g.total / float64(g.n)
		report.Moods[mood] = MoodStats{
			Average: round2(avg),
			Total:   round2(g.total),
			Count:   g.n,
		}
		averages = append(averages, avg)
		if avg > best {
			best = avg
			report.HighestSpendingMood = mood
		}
	}
	if m := stat.Mean(averages, nil); m != 0 {
		report.ImpactScore = sampleStd(averages) / m
	}
	return report, nil
}

// TimeReport breaks spend down across the calendar.
type TimeReport struct {
	DailyAverage     float64            `json:"daily_average"`
	DailyTrend       map[string]float64 `json:"daily_trend"`
	WeeklyPattern    map[string]float64 `json:"weekly_pattern"`
	HourlyPattern    map[string]float64 `json:"hourly_pattern"`
	MonthlyTrend     map[string]float64 `json:"monthly_trend"`
	WeekendVsWeekday WeekendSplit       `json:"weekend_vs_weekday"`
}

type WeekendSplit struct {
	Weekend float64 `json:"weekend"`
	Weekday float64 `json:"weekday"`
}

var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// TimePatterns reports daily, weekly, hourly and monthly spend
// patterns. The daily trend keeps only the most recent 30 days.
func (a *Analyzer) TimePatterns() (*TimeReport, error) {
	if !a.ready {
		return nil, ErrNotReady
	}
	rows := a.rows

	dailySum := make(map[string]float64)
	var dailyOrder []string
	weekdaySum := make(map[int]float64)
	weekdayN := make(map[int]int)
	hourSum := make(map[int]float64)
	hourN := make(map[int]int)
	monthSum := make(map[string]float64)
	var weekendSum, weekdayAmtSum float64
	var weekendN, weekdayAmtN int

	for i := range rows {
		day := rows[i].DateTime.Format("2006-01-02")
		if _, ok := dailySum[day]; !ok {
			dailyOrder = append(dailyOrder, day)
		}
		dailySum[day] += rows[i].Amount
		weekdaySum[rows[i].DayOfWeek] += rows[i].Amount
		weekdayN[rows[i].DayOfWeek]++
		hourSum[rows[i].Hour] += rows[i].Amount
		hourN[rows[i].Hour]++
		monthSum[rows[i].DateTime.Format("2006-01")] += rows[i].Amount
		if rows[i].IsWeekend {
			weekendSum += rows[i].Amount
			weekendN++
		} else {
			weekdayAmtSum += rows[i].Amount
			weekdayAmtN++
		}
	}
	sort.Strings(dailyOrder)

	var dailyTotal float64
	for _, v := range dailySum {
		dailyTotal += v
	}

	trend := make(map[string]float64)
	start := 0
	if len(dailyOrder) > 30 {
		start = len(dailyOrder) - 30
	}
	for _, day := range dailyOrder[start:] {
		trend[day] = dailySum[day]
	}

	weekly := make(map[string]float64, len(weekdaySum))
	for d, s := range weekdaySum {
		weekly[dayNames[d]] = s / float64(weekdayN[d])
	}
	hourly := make(map[string]float64, len(hourSum))
	for h, s := range hourSum {
		hourly[strconv.Itoa(h)] = s / float64(hourN[h])
	}

	report := &TimeReport{
		DailyAverage:  dailyTotal / float64(len(dailySum)),
		DailyTrend:    trend,
		WeeklyPattern: weekly,
		HourlyPattern: hourly,
		MonthlyTrend:  monthSum,
	}
	if weekendN > 0 {
		report.WeekendVsWeekday.Weekend = weekendSum / float64(weekendN)
	}
	if weekdayAmtN > 0 {
		report.WeekendVsWeekday.Weekday = weekdayAmtSum / float64(weekdayAmtN)
	}
	return report, nil
}

// LocationStats aggregates one location's spend.
type LocationStats struct {
	Total   float64 `json:"Total"`
	Average float64 `json:"Average"`
	Count   int     `json:"Count"`
}

// LocationReport is the per-location breakdown.
type LocationReport struct {
	Locations   map[string]LocationStats `json:"locations"`
	TopLocation string                   `json:"top_location"`
}

// Locations reports spend grouped by location.
func (a *Analyzer) Locations() (*LocationReport, error) {
	if !a.ready {
		return nil, ErrNotReady
	}

	type acc struct {
		total float64
		n     int
	}
	groups := make(map[string]*acc)
	for i := range a.rows {
		g, ok := groups[a.rows[i].Location]
		if !ok {
			g = &acc{}
			groups[a.rows[i].Location] = g
		}
		g.total += a.rows[i].Amount
		g.n++
	}

	report := &LocationReport{Locations: make(map[string]LocationStats, len(groups))}
	best := -1.0
	for _, loc := range sortedKeys(groups) {
		g := groups[loc]
		report.Locations[loc] = LocationStats{
			Total:   round2(g.total),
			Average: round2(g.total / float64(g.n)),
			Count:   g.n,
		}
		if g.total > best {
			best = g.total
			report.TopLocation = loc
		}
	}
	return report, nil
}

// MerchantStats aggregates one merchant's spend.
type MerchantStats struct {
	Total float64 `json:"Total"`
	Count int     `json:"Count"`
}

// MerchantReport keeps the ten largest merchants by total spend.
type MerchantReport struct {
	TopMerchants map[string]MerchantStats `json:"top_merchants"`
}

// Merchants reports the top ten merchants by total spend.
func (a *Analyzer) Merchants() (*MerchantReport, error) {
	if !a.ready {
		return nil, ErrNotReady
	}

	type acc struct {
		total float64
		n     int
	}
	groups := make(map[string]*acc)
	for i := range a.rows {
		g, ok := groups[a.rows[i].Merchant]
		if !ok {
			g = &acc{}
			groups[a.rows[i].Merchant] = g
		}
		g.total += a.rows[i].Amount
		g.n++
	}

	names := sortedKeys(groups)
	sort.SliceStable(names, func(i, j int) bool {
		return groups[names[i]].total > groups[names[j]].total
	})
	if len(names) > 10 {
		names = names[:10]
	}

	report := &MerchantReport{TopMerchants: make(map[string]MerchantStats, len(names))}
	for _, name := range names {
		g := groups[name]
		report.TopMerchants[name] = MerchantStats{Total: round2(g.total), Count: g.n}
	}
	return report, nil
}

// PersonaStats aggregates one persona's spend and risk.
type PersonaStats struct {
	AvgSpending float64 `json:"Avg_Spending"`
	Count       int     `json:"Count"`
	AvgRisk     float64 `json:"Avg_Risk"`
}

// PersonaReport is the per-persona breakdown.
type PersonaReport struct {
	Personas        map[string]PersonaStats `json:"personas"`
	DominantPersona string                  `json:"dominant_persona"`
}

// Personas reports spend grouped by assigned persona.
func (a *Analyzer) Personas() (*PersonaReport, error) {
	if !a.ready {
		return nil, ErrNotReady
	}

	type acc struct {
		total, risk float64
		n           int
	}
	groups := make(map[string]*acc)
	for i := range a.rows {
		p := a.personas[i]
		g, ok := groups[p]
		if !ok {
			g = &acc{}
			groups[p] = g
		}
		g.total += a.rows[i].Amount
		g.risk += a.rows[i].RiskScore
		g.n++
	}

	report := &PersonaReport{Personas: make(map[string]PersonaStats, len(groups))}
	bestN := -1
	for _, p := range sortedKeys(groups) {
		g := groups[p]
		report.Personas[p] = PersonaStats{
			AvgSpending: round2(g.total / float64(g.n)),
			Count:       g.n,
			AvgRisk:     round2(g.risk / float64(g.n)),
		}
		if g.n > bestN {
			bestN = g.n
			report.DominantPersona = p
		}
	}
	return report, nil
}

// Prediction is one annotated transaction for the predictions surface.
type Prediction struct {
	TransactionID int     `json:"transaction_id"`
	Merchant      string  `json:"merchant"`
	Amount        float64 `json:"amount"`
	Category      string  `json:"category"`
	PredictedRisk float64 `json:"predicted_risk"`
	IsAnomaly     bool    `json:"is_anomaly"`
	Persona       string  `json:"persona"`
	Date          string  `json:"date"`
	Mood          string  `json:"mood"`
	Location      string  `json:"location"`
}

// Predictions reports every transaction with its model annotations.
func (a *Analyzer) Predictions() ([]Prediction, error) {
	if !a.ready {
		return nil, ErrNotReady
	}

	out := make([]Prediction, len(a.rows))
	for i := range a.rows {
		out[i] = Prediction{
			TransactionID: i,
			Merchant:      a.rows[i].Merchant,
			Amount:        a.rows[i].Amount,
			Category:      a.rows[i].Category,
			PredictedRisk: a.predicted[i],
			IsAnomaly:     a.labels[i] == -1,
			Persona:       a.personas[i],
			Date:          a.rows[i].DateTime.Format("2006-01-02"),
			Mood:          a.rows[i].Mood,
			Location:      a.rows[i].Location,
		}
	}
	return out, nil
}

// AnomalyDetails reports the flagged transactions with reasons.
func (a *Analyzer) AnomalyDetails() ([]AnomalyDetail, error) {
	if !a.ready {
		return nil, ErrNotReady
	}
	return a.anomaly.Details(a.rows, a.labels), nil
}

// Forecasts returns the forecast bundle produced by Run.
func (a *Analyzer) Forecasts() (*ForecastBundle, error) {
	if !a.ready {
		return nil, ErrNotReady
	}
	return a.forecasts, nil
}

// Insights returns the behavioral insight strings.
func (a *Analyzer) Insights() ([]string, error) {
	if !a.ready {
		return nil, ErrNotReady
	}
	return AllInsights(a.rows), nil
}

// Stability returns the financial stability score.
func (a *Analyzer) Stability() (float64, error) {
	if !a.ready {
		return 0, ErrNotReady
	}
	return StabilityScore(a.rows), nil
}

// RiskReport is the risk surface over the heuristic scores.
type RiskReport struct {
	AverageRisk        float64            `json:"average_risk"`
	RecentRisk         float64            `json:"recent_risk"`
	HighRiskCount      int                `json:"high_risk_count"`
	HighRiskPercentage float64            `json:"high_risk_percentage"`
	RiskTrend          string             `json:"risk_trend"`
	RiskByCategory     map[string]float64 `json:"risk_by_category"`
}

// RiskAnalysis reports aggregate risk, the recent trend over the last
// ten transactions, and risk by category.
func (a *Analyzer) RiskAnalysis() (*RiskReport, error) {
	if !a.ready {
		return nil, ErrNotReady
	}
	rows := a.rows

	risks := make([]float64, len(rows))
	catSum := make(map[string]float64)
	catN := make(map[string]int)
	highRisk := 0
	for i := range rows {
		risks[i] = rows[i].RiskScore
		catSum[rows[i].Category] += rows[i].RiskScore
		catN[rows[i].Category]++
		if rows[i].RiskScore > highRiskThreshold {
			highRisk++
		}
	}

	avg := stat.Mean(risks, nil)
	recent := tailMean(risks, 10)
	trend := "decreasing"
	if recent > avg {
		trend = "increasing"
	}

	byCategory := make(map[string]float64, len(catSum))
	for cat, s := range catSum {
		byCategory[cat] = s / float64(catN[cat])
	}
	return &RiskReport{
		AverageRisk:        avg,
		RecentRisk:         recent,
		HighRiskCount:      highRisk,
		HighRiskPercentage: float64(highRisk) / float64(len(rows)) * 100,
		RiskTrend:          trend,
		RiskByCategory:     byCategory,
	}, nil
}

// Recommendations assembles the advice list in fixed order: behavioral
// insights first, then balance, forecast, risk, anomaly and category
// items, ending with positive reinforcements. An empty list falls back
// to a single healthy-finances line.
func (a *Analyzer) Recommendations() ([]string, error) {
	if !a.ready {
		return nil, ErrNotReady
	}
	rows := a.rows
	var recs []string
	recs = append(recs, AllInsights(rows)...)

	balances := make([]float64, len(rows))
	amounts := make([]float64, len(rows))
	risks := make([]float64, len(rows))
	for i := range rows {
		balances[i] = rows[i].BalanceAfter
		amounts[i] = rows[i].Amount
		risks[i] = rows[i].RiskScore
	}
	current := balances[len(balances)-1]
	avgBalance := stat.Mean(balances, nil)

	switch {
	case current < 1000:
		recs = append(recs, fmt.Sprintf("Low balance alert (%.2f). Prioritize essential expenses.", current))
	case current < avgBalance*0.5:
		recs = append(recs, fmt.Sprintf("Balance below average (%.2f vs %.2f). Consider reducing spending.", current, avgBalance))
	}

	if f := a.forecasts; f != nil && f.Primary != nil {
		spanDays := rows[len(rows)-1].DateTime.Sub(rows[0].DateTime).Hours() / 24
		if spanDays < 1 {
			spanDays = 1
		}
		currentMonthly := sum(amounts) / spanDays * 30
		if f.Primary.Total > currentMonthly*1.2 {
			recs = append(recs, fmt.Sprintf(
				"Forecast alert: next %d day(s) spending projected at %.0f, which is %.0f%% higher than your current rate. Consider budget adjustments.",
				f.Primary.HorizonDays, f.Primary.Total, (f.Primary.Total/currentMonthly-1)*100))
		}
	}

	if f := a.forecasts; f != nil && f.Balance != nil {
		if f.Balance.EndBalance < current*0.7 {
			recs = append(recs, fmt.Sprintf(
				"Balance warning: projected end-of-month balance (%.0f) is %.0f%% lower than current. Plan accordingly.",
				f.Balance.EndBalance, (1-f.Balance.EndBalance/current)*100))
		}
		if f.Balance.MinBalance < 500 {
			recs = append(recs, fmt.Sprintf(
				"Low balance risk: balance may drop to %.0f within the remaining days of this month. Maintain an emergency buffer.",
				f.Balance.MinBalance))
		}
	}

	avgRisk := stat.Mean(risks, nil)
	recentRisk := tailMean(risks, 10)
	if recentRisk > avgRisk*1.2 {
		recs = append(recs, fmt.Sprintf(
			"Risk increasing recently (%.2f vs %.2f). Be cautious with discretionary spending.", recentRisk, avgRisk))
	}

	anomalies := 0
	for _, l := range a.labels {
		if l == -1 {
			anomalies++
		}
	}
	if anomalies > 0 {
		recs = append(recs, fmt.Sprintf("%d unusual transactions detected. Review for unauthorized activity.", anomalies))
	}

	if f := a.forecasts; f != nil && len(f.Categories) > 0 {
		topCat, topFc := topCategoryForecast(f.Categories)
		recs = append(recs, fmt.Sprintf(
			"Category forecast: '%s' expected to cost %.0f until month end (%.0f/day). Budget accordingly.",
			topCat, topFc.Total, topFc.DailyAvg))
	}

	if avgRisk < 0.4 {
		recs = append(recs, "Great risk management! Your spending patterns show good financial discipline.")
	}
	if trend := tailMean(balances, 30) - headMean(balances, 30); trend > 0 {
		recs = append(recs, fmt.Sprintf("Positive trend: balance increased by %.0f recently. Keep it up!", trend))
	}

	if len(recs) == 0 {
		recs = []string{"Your finances look healthy! Keep up the good work."}
	}
	return recs, nil
}

func topCategoryForecast(categories map[string]CategoryForecast) (string, CategoryForecast) {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	best := names[0]
	for _, name := range names[1:] {
		if categories[name].Total > categories[best].Total {
			best = name
		}
	}
	return best, categories[best]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func sampleStd(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	return stat.StdDev(vals, nil)
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func tailMean(vals []float64, n int) float64 {
	if len(vals) == 0 {
		return 0
	}
	if len(vals) > n {
		vals = vals[len(vals)-n:]
	}
	return stat.Mean(vals, nil)
}

func headMean(vals []float64, n int) float64 {
	if len(vals) == 0 {
		return 0
	}
	if len(vals) > n {
		vals = vals[:n]
	}
	return stat.Mean(vals, nil)
}
