package analytics

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/finsight/backend/internal/ledger"
)

// Txn is one cleaned ledger row: numeric fields coerced, timestamps
// parsed, invalid rows already dropped.
type Txn struct {
	DateTime      time.Time
	Merchant      string
	Category      string
	Mood          string
	Location      string
	CalendarEvent string
	Amount        float64
	GroupID       float64
	BalanceAfter  float64
}

// FeatureRow is the fixed feature schema engineered for one
// transaction. Encoded* fields are filled by EncodeCategorical.
type FeatureRow struct {
	Txn

	Year      int
	Month     int
	Day       int
	DayOfWeek int // Monday = 0 .. Sunday = 6
	Hour      int
	IsWeekend bool
	IsNight   bool

	MonthSin, MonthCos         float64
	HourSin, HourCos           float64
	DayOfWeekSin, DayOfWeekCos float64

	AmountLog  float64
	BalanceLog float64

	RollMean7  float64
	RollStd7   float64
	RollMean30 float64

	SpendRate     float64
	BalanceChange float64

	RiskScore       float64
	HighRiskContext bool

	CategoryCode float64
	MoodCode     float64
	LocationCode float64
	EventCode    float64
	MerchantCode float64
}

// FeatureColumns is the model matrix schema, in column order. Merchant
// is label-encoded alongside the other categoricals but deliberately
// excluded from the matrix: its cardinality is near the row count, so
// as a raw label code it carries no usable signal.
var FeatureColumns = []string{
	"Amount", "Amount_Log", "Hour", "DayOfWeek", "IsWeekend", "IsNight",
	"Month_sin", "Month_cos", "Hour_sin", "Hour_cos", "DayOfWeek_sin", "DayOfWeek_cos",
	"Amount_Rolling_Mean_7", "Amount_Rolling_Std_7", "Amount_Rolling_Mean_30",
	"Spend_Rate", "Balance_After", "Balance_After_Log", "Balance_Change",
	"High_Risk_Context", "Category_Encoded", "Mood_Encoded",
	"Location_Encoded", "Calendar_Event_Encoded", "Group_ID",
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (r *FeatureRow) vector() []float64 {
	return []float64{
		r.Amount, r.AmountLog, float64(r.Hour), float64(r.DayOfWeek),
		boolToFloat(r.IsWeekend), boolToFloat(r.IsNight),
		r.MonthSin, r.MonthCos, r.HourSin, r.HourCos, r.DayOfWeekSin, r.DayOfWeekCos,
		r.RollMean7, r.RollStd7, r.RollMean30,
		r.SpendRate, r.BalanceAfter, r.BalanceLog, r.BalanceChange,
		boolToFloat(r.HighRiskContext),
		r.CategoryCode, r.MoodCode, r.LocationCode, r.EventCode, r.GroupID,
	}
}

// Matrix assembles the model matrix for the given rows in FeatureColumns
// order.
func Matrix(rows []FeatureRow) [][]float64 {
	X := make([][]float64, len(rows))
	for i := range rows {
		X[i] = rows[i].vector()
	}
	return X
}

// Preprocessor cleans raw ledger records and engineers the feature
// schema. Encoders and the scaler are refit on every PrepareDataset
// call; nothing is persisted across analysis sessions.
type Preprocessor struct {
	encoders map[string]*labelEncoder
	scaler   *standardScaler
	log      zerolog.Logger
}

// NewPreprocessor creates a preprocessor.
func NewPreprocessor(log zerolog.Logger) *Preprocessor {
	return &Preprocessor{
		encoders: make(map[string]*labelEncoder),
		log:      log.With().Str("component", "preprocessor").Logger(),
	}
}

// LoadCSV reads a ledger CSV from disk, validates the required columns
// and cleans the rows. Missing columns or an empty cleaned result are a
// DataError; I/O failures are returned as-is and are fatal.
func (p *Preprocessor) LoadCSV(path string) ([]Txn, error) {
	rows, header, err := ledger.ReadCSV(path)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, col := range ledger.Columns {
		if _, ok := header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &DataError{Reason: "missing required columns: " + strings.Join(missing, ", ")}
	}

	recs := ledger.RecordsFromRows(header, rows)
	p.log.Info().Str("path", path).Int("rows", len(recs)).Msg("loaded ledger file")
	return p.Clean(recs)
}

// Clean coerces numeric fields and applies the fill policy: balances
// are forward-filled then zero-filled, missing amounts become 0 and
// missing group IDs become 1. Rows still missing Amount or
// Balance_After after filling are dropped. An empty result is a
// DataError.
func (p *Preprocessor) Clean(recs []ledger.Record) ([]Txn, error) {
	amounts := make([]float64, len(recs))
	balances := make([]float64, len(recs))
	groups := make([]float64, len(recs))

	var invalidAmounts, invalidBalances int
	for i, rec := range recs {
		amounts[i] = coerceNumeric(rec.Amount)
		balances[i] = coerceNumeric(rec.BalanceAfter)
		groups[i] = coerceNumeric(rec.GroupID)
		if math.IsNaN(amounts[i]) {
			invalidAmounts++
		}
		if math.IsNaN(balances[i]) {
			invalidBalances++
		}
	}
	if invalidAmounts > 0 || invalidBalances > 0 {
		p.log.Warn().
			Int("invalid_amounts", invalidAmounts).
			Int("invalid_balances", invalidBalances).
			Msg("coercing invalid numeric values")
	}

	// Balance_After: forward-fill, then zero-fill leading gaps.
	last := math.NaN()
	for i := range balances {
		if math.IsNaN(balances[i]) {
			balances[i] = last
		} else {
			last = balances[i]
		}
		if math.IsNaN(balances[i]) {
			balances[i] = 0
		}
	}

	txns := make([]Txn, 0, len(recs))
	for i, rec := range recs {
		amount := amounts[i]
		if math.IsNaN(amount) {
			amount = 0
		}
		group := groups[i]
		if math.IsNaN(group) {
			group = 1
		}
		if math.IsNaN(amount) || math.IsNaN(balances[i]) {
			continue
		}
		txns = append(txns, Txn{
			DateTime:      parseDateTime(rec.Date, rec.Time),
			Merchant:      rec.Merchant,
			Category:      rec.Category,
			Mood:          rec.Mood,
			Location:      rec.Location,
			CalendarEvent: rec.CalendarEvent,
			Amount:        amount,
			GroupID:       group,
			BalanceAfter:  balances[i],
		})
	}

	if len(txns) == 0 {
		return nil, &DataError{Reason: "no valid rows remaining after cleaning"}
	}
	if dropped := len(recs) - len(txns); dropped > 0 {
		p.log.Warn().Int("dropped", dropped).Msg("removed rows with invalid critical data")
	}
	p.log.Info().Int("rows", len(txns)).Msg("ledger cleaned")
	return txns, nil
}

func coerceNumeric(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
}

func parseDateTime(date, clock string) time.Time {
	combined := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, combined); err == nil {
			return t
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(date)); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// EngineerFeatures is a pure transform from cleaned transactions to the
// feature schema. Rows come back sorted by timestamp; rolling windows
// use a minimum period of 1 so there are no leading gaps.
func (p *Preprocessor) EngineerFeatures(txns []Txn) []FeatureRow {
	rows := make([]FeatureRow, len(txns))
	for i, t := range txns {
		rows[i] = FeatureRow{Txn: t}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].DateTime.Before(rows[j].DateTime)
	})

	var amountMax, balanceMax float64
	for i := range rows {
		r := &rows[i]
		r.Year = r.DateTime.Year()
		r.Month = int(r.DateTime.Month())
		r.Day = r.DateTime.Day()
		r.DayOfWeek = (int(r.DateTime.Weekday()) + 6) % 7
		r.Hour = r.DateTime.Hour()
		r.IsWeekend = r.DayOfWeek >= 5
		r.IsNight = r.Hour >= 22 || r.Hour <= 6

		r.MonthSin = math.Sin(2 * math.Pi * float64(r.Month) / 12)
		r.MonthCos = math.Cos(2 * math.Pi * float64(r.Month) / 12)
		r.HourSin = math.Sin(2 * math.Pi * float64(r.Hour) / 24)
		r.HourCos = math.Cos(2 * math.Pi * float64(r.Hour) / 24)
		r.DayOfWeekSin = math.Sin(2 * math.Pi * float64(r.DayOfWeek) / 7)
		r.DayOfWeekCos = math.Cos(2 * math.Pi * float64(r.DayOfWeek) / 7)

		r.AmountLog = math.Log1p(math.Max(0, r.Amount))
		r.BalanceLog = math.Log1p(math.Max(0, r.BalanceAfter))

		r.SpendRate = spendRate(r.Amount, r.BalanceAfter)
		if i > 0 {
			r.BalanceChange = r.BalanceAfter - rows[i-1].BalanceAfter
		}

		if r.Amount > amountMax {
			amountMax = r.Amount
		}
		if r.BalanceAfter > balanceMax {
			balanceMax = r.BalanceAfter
		}
	}

	// Rolling amount statistics over the sorted rows.
	window := func(i, size int) []float64 {
		start := i - size + 1
		if start < 0 {
			start = 0
		}
		vals := make([]float64, 0, size)
		for j := start; j <= i; j++ {
			vals = append(vals, rows[j].Amount)
		}
		return vals
	}
	for i := range rows {
		w7 := window(i, 7)
		rows[i].RollMean7 = stat.Mean(w7, nil)
		if len(w7) > 1 {
			rows[i].RollStd7 = stat.StdDev(w7, nil)
		}
		rows[i].RollMean30 = stat.Mean(window(i, 30), nil)
	}

	// The ledger schema carries no risk column, so the heuristic target
	// is always derived here.
	if amountMax <= 0 {
		amountMax = 1
	}
	if balanceMax <= 0 {
		balanceMax = 1
	}
	for i := range rows {
		r := &rows[i]
		r.RiskScore = clip(
			r.SpendRate*0.5+
				(1-r.BalanceAfter/balanceMax)*0.3+
				(r.Amount/amountMax)*0.2,
			0, 1)
		r.HighRiskContext = r.Mood == "Stressed" || r.CalendarEvent == "Holiday" || r.IsWeekend
	}
	return rows
}

// spendRate is amount / (balance + amount) with a zero denominator
// treated as 1, clipped to [0, 1].
func spendRate(amount, balance float64) float64 {
	denom := balance + amount
	if denom == 0 {
		denom = 1
	}
	rate := amount / denom
	if math.IsNaN(rate) {
		rate = 0
	}
	return clip(rate, 0, 1)
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EncodeCategorical label-encodes Category, Mood, Location,
// Calendar_Event and Merchant. The vocabulary is rebuilt from scratch on
// every call: codes are only stable within one analysis session.
func (p *Preprocessor) EncodeCategorical(rows []FeatureRow) {
	fit := func(name string, value func(*FeatureRow) string, assign func(*FeatureRow, float64)) {
		enc := newLabelEncoder()
		for i := range rows {
			enc.observe(value(&rows[i]))
		}
		enc.fit()
		for i := range rows {
			assign(&rows[i], enc.code(value(&rows[i])))
		}
		p.encoders[name] = enc
	}
	fit("Category", func(r *FeatureRow) string { return r.Category }, func(r *FeatureRow, c float64) { r.CategoryCode = c })
	fit("Mood", func(r *FeatureRow) string { return r.Mood }, func(r *FeatureRow, c float64) { r.MoodCode = c })
	fit("Location", func(r *FeatureRow) string { return r.Location }, func(r *FeatureRow, c float64) { r.LocationCode = c })
	fit("Calendar_Event", func(r *FeatureRow) string { return r.CalendarEvent }, func(r *FeatureRow, c float64) { r.EventCode = c })
	fit("Merchant", func(r *FeatureRow) string { return r.Merchant }, func(r *FeatureRow, c float64) { r.MerchantCode = c })
}

// ScaleFeatures standardizes the matrix in place (zero mean, unit
// variance per column), fitting the scaler on this call's data.
func (p *Preprocessor) ScaleFeatures(X [][]float64) {
	p.scaler = newStandardScaler()
	p.scaler.fitTransform(X)
}

// PrepareDataset runs the full preprocessing pipeline: feature
// engineering, categorical encoding, matrix assembly and scaling. It
// returns the scaled model matrix, the unscaled risk target, and the
// engineered rows for downstream aggregate queries.
func (p *Preprocessor) PrepareDataset(txns []Txn) (X [][]float64, y []float64, rows []FeatureRow) {
	rows = p.EngineerFeatures(txns)
	p.EncodeCategorical(rows)

	X = Matrix(rows)
	y = make([]float64, len(rows))
	for i := range rows {
		y[i] = rows[i].RiskScore
	}
	p.ScaleFeatures(X)

	p.log.Info().
		Int("rows", len(rows)).
		Int("features", len(FeatureColumns)).
		Msg("dataset prepared")
	return X, y, rows
}

// labelEncoder assigns integer codes to string values by sorted order,
// matching the usual fit-time behavior of label encoders.
type labelEncoder struct {
	seen  map[string]struct{}
	codes map[string]float64
}

func newLabelEncoder() *labelEncoder {
	return &labelEncoder{
		seen:  make(map[string]struct{}),
		codes: make(map[string]float64),
	}
}

func (e *labelEncoder) observe(v string) { e.seen[v] = struct{}{} }

func (e *labelEncoder) fit() {
	values := make([]string, 0, len(e.seen))
	for v := range e.seen {
		values = append(values, v)
	}
	sort.Strings(values)
	for i, v := range values {
		e.codes[v] = float64(i)
	}
}

func (e *labelEncoder) code(v string) float64 { return e.codes[v] }

// standardScaler standardizes columns to zero mean and unit variance.
// Zero-variance columns keep scale 1 so they map to all zeros.
type standardScaler struct {
	mean  []float64
	scale []float64
}

func newStandardScaler() *standardScaler { return &standardScaler{} }

func (s *standardScaler) fitTransform(X [][]float64) {
	if len(X) == 0 {
		return
	}
	cols := len(X[0])
	s.mean = make([]float64, cols)
	s.scale = make([]float64, cols)
	n := float64(len(X))

	for j := 0; j < cols; j++ {
		var sum float64
		for i := range X {
			sum += X[i][j]
		}
		s.mean[j] = sum / n

		var sq float64
		for i := range X {
			d := X[i][j] - s.mean[j]
			sq += d * d
		}
		s.scale[j] = math.Sqrt(sq / n)
		if s.scale[j] == 0 {
			s.scale[j] = 1
		}
	}
	for i := range X {
		for j := 0; j < cols; j++ {
			X[i][j] = (X[i][j] - s.mean[j]) / s.scale[j]
		}
	}
}
