package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DailyPoint is the ledger aggregated to one row per calendar day:
// summed spend, last known balance, mean risk.
type DailyPoint struct {
	Date    time.Time
	Amount  float64
	Balance float64
	Risk    float64
}

// ForecastSeries is a horizon-day expense forecast with optional
// uncertainty bounds. All values are clipped at zero.
type ForecastSeries struct {
	Dates       []string  `json:"dates"`
	Predicted   []float64 `json:"predicted"`
	LowerBound  []float64 `json:"lower_bound,omitempty"`
	UpperBound  []float64 `json:"upper_bound,omitempty"`
	Total       float64   `json:"total_forecast"`
	DailyAvg    float64   `json:"avg_daily"`
	HorizonDays int       `json:"horizon_days"`
}

// BalanceForecast projects the account balance across the forecast
// horizon.
type BalanceForecast struct {
	Dates            []string  `json:"dates"`
	ProjectedBalance []float64 `json:"projected_balance"`
	EndBalance       float64   `json:"end_balance"`
	MinBalance       float64   `json:"min_balance"`
	RiskOfNegative   float64   `json:"risk_of_negative"`
}

// CategoryForecast is the horizon-bounded projection for one category.
type CategoryForecast struct {
	Total    float64 `json:"total"`
	DailyAvg float64 `json:"daily_avg"`
}

// ForecastBundle collects every forecast sub-result. Each field is
// independently nil/empty when its sub-stage failed or degraded;
// consumers must treat nil as "not available", never as an error.
type ForecastBundle struct {
	Primary    *ForecastSeries             `json:"primary"`
	Secondary  *ForecastSeries             `json:"secondary"`
	Balance    *BalanceForecast            `json:"balance"`
	Categories map[string]CategoryForecast `json:"categories"`
}

// SeriesModel is a capability-checked forecasting strategy over daily
// aggregates.
type SeriesModel interface {
	Name() string
	Available() bool
	Forecast(daily []DailyPoint, horizon int) (*ForecastSeries, error)
}

// Forecaster produces the expense, balance and per-category forecasts,
// bounded to the days remaining in the calendar month of the latest
// transaction.
type Forecaster struct {
	primary   SeriesModel
	secondary SeriesModel
	log       zerolog.Logger
}

// NewForecaster creates a forecaster with the default backends: an
// additive trend-plus-weekly-seasonality primary model and an
// autoregressive secondary model used only as a cross-check.
func NewForecaster(log zerolog.Logger) *Forecaster {
	return &Forecaster{
		primary:   newSeasonalTrendModel(),
		secondary: newAutoregressiveModel(),
		log:       log.With().Str("component", "forecaster").Logger(),
	}
}

// NewForecasterWithModels creates a forecaster with explicit backends.
// Either may be nil to model an absent optional dependency.
func NewForecasterWithModels(log zerolog.Logger, primary, secondary SeriesModel) *Forecaster {
	return &Forecaster{
		primary:   primary,
		secondary: secondary,
		log:       log.With().Str("component", "forecaster").Logger(),
	}
}

// Horizon is the number of days remaining in the month of the latest
// transaction, with a floor of 1 so there is always a minimal
// projection.
func (f *Forecaster) Horizon(rows []FeatureRow) int {
	var latest time.Time
	for i := range rows {
		if rows[i].DateTime.After(latest) {
			latest = rows[i].DateTime
		}
	}
	return remainingDaysInMonth(latest)
}

func remainingDaysInMonth(t time.Time) int {
	lastDay := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 1, -1).Day()
	remaining := lastDay - t.Day()
	if remaining < 1 {
		return 1
	}
	return remaining
}

// PrepareDaily aggregates the engineered rows to one point per calendar
// day, sorted ascending.
func (f *Forecaster) PrepareDaily(rows []FeatureRow) []DailyPoint {
	type acc struct {
		amount  float64
		balance float64
		riskSum float64
		n       int
	}
	byDay := make(map[time.Time]*acc)
	var days []time.Time
	for i := range rows {
		day := civilDate(rows[i].DateTime)
		a, ok := byDay[day]
		if !ok {
			a = &acc{}
			byDay[day] = a
			days = append(days, day)
		}
		a.amount += rows[i].Amount
		a.balance = rows[i].BalanceAfter // rows are time-sorted; keep the last
		a.riskSum += rows[i].RiskScore
		a.n++
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	daily := make([]DailyPoint, len(days))
	for i, day := range days {
		a := byDay[day]
		daily[i] = DailyPoint{
			Date:    day,
			Amount:  a.amount,
			Balance: a.balance,
			Risk:    a.riskSum / float64(a.n),
		}
	}
	return daily
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ForecastExpenses runs the primary model over the daily series.
func (f *Forecaster) ForecastExpenses(daily []DailyPoint, horizon int) (*ForecastSeries, error) {
	return f.runModel(f.primary, "primary expenses", daily, horizon)
}

// ForecastSecondary runs the optional secondary model. It never
// replaces the primary forecast.
func (f *Forecaster) ForecastSecondary(daily []DailyPoint, horizon int) (*ForecastSeries, error) {
	return f.runModel(f.secondary, "secondary expenses", daily, horizon)
}

func (f *Forecaster) runModel(m SeriesModel, stage string, daily []DailyPoint, horizon int) (*ForecastSeries, error) {
	if m == nil || !m.Available() {
		name := stage
		if m != nil {
			name = m.Name()
		}
		return nil, &ModelUnavailableError{Model: name}
	}
	fc, err := m.Forecast(daily, horizon)
	if err != nil {
		var insufficient *InsufficientDataError
		if errors.As(err, &insufficient) {
			return nil, err
		}
		return nil, &ForecastError{Stage: stage, Err: err}
	}
	return fc, nil
}

// ForecastBalance projects the balance across the expense forecast.
// The daily income estimate is the sum of balance increases that exceed
// that row's spend, spread over the distinct days observed.
func (f *Forecaster) ForecastBalance(rows []FeatureRow, expenses *ForecastSeries) (*BalanceForecast, error) {
	if expenses == nil || len(expenses.Predicted) == 0 {
		return nil, &ForecastError{Stage: "balance", Err: errors.New("no expense forecast available")}
	}
	if len(rows) == 0 {
		return nil, &ForecastError{Stage: "balance", Err: errors.New("no transactions")}
	}

	currentBalance := rows[len(rows)-1].BalanceAfter
	dailyIncome := estimateDailyIncome(rows)

	projected, end, minBal, negFrac := projectBalance(currentBalance, dailyIncome, expenses.Predicted)
	return &BalanceForecast{
		Dates:            expenses.Dates,
		ProjectedBalance: projected,
		EndBalance:       end,
		MinBalance:       minBal,
		RiskOfNegative:   negFrac,
	}, nil
}

func estimateDailyIncome(rows []FeatureRow) float64 {
	var incomeSum float64
	var hasIncome bool
	days := make(map[time.Time]struct{})
	for i := range rows {
		days[civilDate(rows[i].DateTime)] = struct{}{}
		if rows[i].BalanceChange > rows[i].Amount {
			incomeSum += rows[i].BalanceChange
			hasIncome = true
		}
	}
	if !hasIncome || len(days) == 0 {
		return 0
	}
	return incomeSum / float64(len(days))
}

// projectBalance applies the balance recursion
// balance[t] = balance[t-1] + income - expense[t].
func projectBalance(start, dailyIncome float64, expenses []float64) (projected []float64, end, minBal, negFrac float64) {
	projected = make([]float64, len(expenses))
	balance := start
	minBal = math.Inf(1)
	negDays := 0
	for i, expense := range expenses {
		balance = balance + dailyIncome - expense
		projected[i] = balance
		if balance < minBal {
			minBal = balance
		}
		if balance < 0 {
			negDays++
		}
	}
	end = balance
	negFrac = float64(negDays) / float64(len(expenses))
	return projected, end, minBal, negFrac
}

// minCategoryDays is the minimum number of daily observations a
// category needs before it gets its own forecast.
const minCategoryDays = 14

// ForecastCategories refits the primary model independently per
// category. Categories with too little history are skipped; individual
// failures only drop that category. Fits run in parallel with each
// goroutine writing to its own slot.
func (f *Forecaster) ForecastCategories(rows []FeatureRow, horizon int) map[string]CategoryForecast {
	if f.primary == nil || !f.primary.Available() {
		return nil
	}

	byCategory := make(map[string][]FeatureRow)
	for i := range rows {
		byCategory[rows[i].Category] = append(byCategory[rows[i].Category], rows[i])
	}

	out := make(map[string]CategoryForecast)
	var mu sync.Mutex
	var g errgroup.Group

	for category, catRows := range byCategory {
		g.Go(func() error {
			daily := f.PrepareDaily(catRows)
			if len(daily) < minCategoryDays {
				return nil
			}
			fc, err := f.primary.Forecast(daily, horizon)
			if err != nil {
				f.log.Warn().Err(err).Str("category", category).Msg("category forecast failed")
				return nil
			}
			mu.Lock()
			out[category] = CategoryForecast{Total: fc.Total, DailyAvg: fc.DailyAvg}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}

// Run produces the full bundle. Every sub-stage fails independently:
// a failed stage logs and leaves its slot nil, and the balance and
// category stages are only attempted once a primary forecast exists.
func (f *Forecaster) Run(rows []FeatureRow) *ForecastBundle {
	bundle := &ForecastBundle{}
	if len(rows) == 0 {
		return bundle
	}

	horizon := f.Horizon(rows)
	daily := f.PrepareDaily(rows)
	f.log.Info().Int("horizon_days", horizon).Int("daily_points", len(daily)).Msg("generating forecasts")

	primary, err := f.ForecastExpenses(daily, horizon)
	if err != nil {
		f.log.Warn().Err(err).Msg("primary forecast unavailable")
	}
	bundle.Primary = primary

	secondary, err := f.ForecastSecondary(daily, horizon)
	if err != nil {
		f.log.Warn().Err(err).Msg("secondary forecast unavailable")
	}
	bundle.Secondary = secondary

	if primary != nil {
		balance, err := f.ForecastBalance(rows, primary)
		if err != nil {
			f.log.Warn().Err(err).Msg("balance forecast unavailable")
		}
		bundle.Balance = balance
		bundle.Categories = f.ForecastCategories(rows, horizon)
	}
	return bundle
}

// seasonalTrendModel is the primary backend: a linear trend over day
// offsets plus additive weekly seasonality, with symmetric bounds from
// the residual spread. Weekly seasonality only; yearly and sub-daily
// cycles are deliberately off for short personal ledgers.
type seasonalTrendModel struct{}

func newSeasonalTrendModel() *seasonalTrendModel { return &seasonalTrendModel{} }

func (m *seasonalTrendModel) Name() string    { return "seasonal_trend" }
func (m *seasonalTrendModel) Available() bool { return true }

// residualBoundZ matches a 90% two-sided normal interval.
const residualBoundZ = 1.645

func (m *seasonalTrendModel) Forecast(daily []DailyPoint, horizon int) (*ForecastSeries, error) {
	if len(daily) < 2 {
		return nil, &InsufficientDataError{Op: "seasonal trend fit", Rows: len(daily), Min: 2}
	}

	origin := daily[0].Date
	xs := make([]float64, len(daily))
	ys := make([]float64, len(daily))
	for i, d := range daily {
		xs[i] = d.Date.Sub(origin).Hours() / 24
		ys[i] = d.Amount
	}
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	// Weekly seasonality from the mean detrended residual per weekday.
	var weekdaySum [7]float64
	var weekdayN [7]int
	residuals := make([]float64, len(daily))
	for i, d := range daily {
		detrended := ys[i] - (intercept + slope*xs[i])
		wd := int(d.Date.Weekday())
		weekdaySum[wd] += detrended
		weekdayN[wd]++
		residuals[i] = detrended
	}
	var seasonal [7]float64
	for wd := range seasonal {
		if weekdayN[wd] > 0 {
			seasonal[wd] = weekdaySum[wd] / float64(weekdayN[wd])
		}
	}
	for i, d := range daily {
		residuals[i] -= seasonal[int(d.Date.Weekday())]
	}
	var spread float64
	if len(residuals) > 1 {
		spread = stat.StdDev(residuals, nil)
	}

	last := daily[len(daily)-1].Date
	fc := &ForecastSeries{HorizonDays: horizon}
	for i := 1; i <= horizon; i++ {
		date := last.AddDate(0, 0, i)
		x := date.Sub(origin).Hours() / 24
		predicted := intercept + slope*x + seasonal[int(date.Weekday())]

		fc.Dates = append(fc.Dates, date.Format("2006-01-02"))
		fc.Predicted = append(fc.Predicted, math.Max(0, predicted))
		fc.LowerBound = append(fc.LowerBound, math.Max(0, predicted-residualBoundZ*spread))
		fc.UpperBound = append(fc.UpperBound, math.Max(0, predicted+residualBoundZ*spread))
	}
	fc.Total = sum(fc.Predicted)
	fc.DailyAvg = fc.Total / float64(horizon)
	return fc, nil
}

// autoregressiveModel is the optional secondary backend: a linear
// autoregressor over a 14-day lookback, fit by ridge-regularized least
// squares and rolled out autoregressively, each predicted day feeding
// the next step's input.
type autoregressiveModel struct {
	lookback int
	minDays  int
	ridge    float64
}

func newAutoregressiveModel() *autoregressiveModel {
	return &autoregressiveModel{lookback: 14, minDays: 60, ridge: 1e-3}
}

func (m *autoregressiveModel) Name() string    { return "autoregressive" }
func (m *autoregressiveModel) Available() bool { return true }

func (m *autoregressiveModel) Forecast(daily []DailyPoint, horizon int) (*ForecastSeries, error) {
	if len(daily) < m.minDays {
		return nil, &InsufficientDataError{Op: "autoregressive fit", Rows: len(daily), Min: m.minDays}
	}

	amounts := make([]float64, len(daily))
	for i, d := range daily {
		amounts[i] = d.Amount
	}
	mean := stat.Mean(amounts, nil)
	std := stat.StdDev(amounts, nil)
	if std == 0 {
		std = 1
	}
	scaled := make([]float64, len(amounts))
	for i, v := range amounts {
		scaled[i] = (v - mean) / std
	}

	weights, err := m.fitWeights(scaled)
	if err != nil {
		return nil, fmt.Errorf("autoregressive fit failed: %w", err)
	}

	window := append([]float64(nil), scaled[len(scaled)-m.lookback:]...)
	last := daily[len(daily)-1].Date
	fc := &ForecastSeries{HorizonDays: horizon}
	for i := 1; i <= horizon; i++ {
		next := weights[0] // bias
		for j, v := range window {
			next += weights[j+1] * v
		}
		window = append(window[1:], next)

		predicted := math.Max(0, next*std+mean)
		fc.Dates = append(fc.Dates, last.AddDate(0, 0, i).Format("2006-01-02"))
		fc.Predicted = append(fc.Predicted, predicted)
	}
	fc.Total = sum(fc.Predicted)
	fc.DailyAvg = fc.Total / float64(horizon)
	return fc, nil
}

// fitWeights solves (AᵀA + λI) w = Aᵀy for the lag weights plus bias.
func (m *autoregressiveModel) fitWeights(scaled []float64) ([]float64, error) {
	n := len(scaled) - m.lookback
	cols := m.lookback + 1

	a := mat.NewDense(n, cols, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, 1)
		for j := 0; j < m.lookback; j++ {
			a.Set(i, j+1, scaled[i+j])
		}
		y.SetVec(i, scaled[i+m.lookback])
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)
	for i := 0; i < cols; i++ {
		ata.Set(i, i, ata.At(i, i)+m.ridge)
	}
	var aty mat.VecDense
	aty.MulVec(a.T(), y)

	var w mat.VecDense
	if err := w.SolveVec(&ata, &aty); err != nil {
		return nil, err
	}
	weights := make([]float64, cols)
	for i := range weights {
		weights[i] = w.AtVec(i)
	}
	return weights, nil
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}
