package analytics

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// maxAnomalyDetails caps the anomaly report at the first N anomalous
// rows in ledger order.
const maxAnomalyDetails = 10

// AnomalyDetail describes one anomalous transaction for the query
// surface.
type AnomalyDetail struct {
	Date     string  `json:"date"`
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Reason   string  `json:"reason"`
}

// AnomalyDetector is an isolation-forest outlier scorer with a fixed
// contamination fraction of 0.1. Untrained it flags nothing.
type AnomalyDetector struct {
	trees      []*isolationTree
	sampleSize int
	threshold  float64
	trained    bool
	log        zerolog.Logger
}

// NewAnomalyDetector creates an anomaly detector.
func NewAnomalyDetector(log zerolog.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		log: log.With().Str("component", "anomaly_detector").Logger(),
	}
}

const (
	isolationTrees         = 100
	isolationSample        = 256
	anomalyContamination   = 0.1
	nightHourLow           = 6
	nightHourHigh          = 22
	highAmountStdDevFactor = 2.0
)

// Train fits the forest on the scaled matrix. Below the row threshold
// it returns InsufficientDataError and stays a no-op.
func (d *AnomalyDetector) Train(X [][]float64) error {
	if len(X) < minModelRows {
		d.log.Warn().Int("rows", len(X)).Msg("insufficient data for anomaly detector")
		return &InsufficientDataError{Op: "anomaly training", Rows: len(X), Min: minModelRows}
	}

	rng := rand.New(rand.NewSource(randomSeed))
	d.sampleSize = isolationSample
	if d.sampleSize > len(X) {
		d.sampleSize = len(X)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(d.sampleSize))))

	d.trees = d.trees[:0]
	for t := 0; t < isolationTrees; t++ {
		idx := sampleRows(len(X), float64(d.sampleSize)/float64(len(X)), rng)
		d.trees = append(d.trees, growIsolationTree(X, idx, 0, maxDepth, rng))
	}

	// Calibrate the decision threshold so the contamination fraction of
	// the training data scores as anomalous.
	scores := make([]float64, len(X))
	for i, x := range X {
		scores[i] = d.score(x)
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	d.threshold = stat.Quantile(1-anomalyContamination, stat.Empirical, sorted, nil)
	d.trained = true

	d.log.Info().
		Int("trees", len(d.trees)).
		Float64("threshold", d.threshold).
		Msg("anomaly detector trained")
	return nil
}

// Detect returns one label per row: -1 anomalous, +1 normal. Untrained,
// every row is normal.
func (d *AnomalyDetector) Detect(X [][]float64) []int {
	labels := make([]int, len(X))
	for i := range labels {
		labels[i] = 1
	}
	if !d.trained {
		return labels
	}
	for i, x := range X {
		if d.score(x) > d.threshold {
			labels[i] = -1
		}
	}
	return labels
}

// score is the standard isolation score 2^(-E[h]/c(n)) in (0, 1];
// higher means more isolated.
func (d *AnomalyDetector) score(x []float64) float64 {
	var total float64
	for _, t := range d.trees {
		total += t.pathLength(x, 0)
	}
	avg := total / float64(len(d.trees))
	return math.Pow(2, -avg/averagePathLength(d.sampleSize))
}

// Details collects report entries for the anomalous rows, in ledger
// order, capped at maxAnomalyDetails. Selection by significance instead
// of order is a possible improvement; the current behavior matches the
// reference pipeline.
func (d *AnomalyDetector) Details(rows []FeatureRow, labels []int) []AnomalyDetail {
	st := newRowStats(rows)
	var details []AnomalyDetail
	for i, label := range labels {
		if label != -1 {
			continue
		}
		details = append(details, AnomalyDetail{
			Date:     rows[i].DateTime.Format("2006-01-02 15:04"),
			Merchant: rows[i].Merchant,
			Amount:   rows[i].Amount,
			Category: rows[i].Category,
			Reason:   d.Explain(&rows[i], st),
		})
		if len(details) == maxAnomalyDetails {
			break
		}
	}
	return details
}

// Explain ranks the candidate reasons in fixed order and joins all that
// apply. A flagged row matching none of them is a plain statistical
// outlier.
func (d *AnomalyDetector) Explain(row *FeatureRow, st *rowStats) string {
	var reasons []string
	if row.Amount > st.amountMean+highAmountStdDevFactor*st.amountStd {
		reasons = append(reasons, fmt.Sprintf("Unusually high amount (%.2f)", row.Amount))
	}
	if row.Hour < nightHourLow || row.Hour > nightHourHigh {
		reasons = append(reasons, fmt.Sprintf("Unusual time (%d:00)", row.Hour))
	}
	if catMean, ok := st.categoryMean[row.Category]; ok && row.Amount > catMean*2 {
		reasons = append(reasons, fmt.Sprintf("High for %s category", row.Category))
	}
	if len(reasons) == 0 {
		return "Statistical outlier"
	}
	return strings.Join(reasons, "; ")
}

// rowStats holds the aggregate statistics Explain compares against.
type rowStats struct {
	amountMean   float64
	amountStd    float64
	categoryMean map[string]float64
}

func newRowStats(rows []FeatureRow) *rowStats {
	amounts := make([]float64, len(rows))
	catSum := make(map[string]float64)
	catN := make(map[string]int)
	for i := range rows {
		amounts[i] = rows[i].Amount
		catSum[rows[i].Category] += rows[i].Amount
		catN[rows[i].Category]++
	}
	st := &rowStats{
		amountMean:   stat.Mean(amounts, nil),
		categoryMean: make(map[string]float64, len(catSum)),
	}
	if len(amounts) > 1 {
		st.amountStd = stat.StdDev(amounts, nil)
	}
	for cat, sum := range catSum {
		st.categoryMean[cat] = sum / float64(catN[cat])
	}
	return st
}

// isolationTree is one randomized partition tree.
type isolationTree struct {
	feature   int
	threshold float64
	left      *isolationTree
	right     *isolationTree
	size      int
	leaf      bool
}

func growIsolationTree(X [][]float64, idx []int, depth, maxDepth int, rng *rand.Rand) *isolationTree {
	if len(idx) <= 1 || depth >= maxDepth {
		return &isolationTree{leaf: true, size: len(idx)}
	}

	feature := rng.Intn(len(X[0]))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		v := X[i][feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return &isolationTree{leaf: true, size: len(idx)}
	}
	threshold := lo + rng.Float64()*(hi-lo)

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][feature] < threshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	return &isolationTree{
		feature:   feature,
		threshold: threshold,
		left:      growIsolationTree(X, leftIdx, depth+1, maxDepth, rng),
		right:     growIsolationTree(X, rightIdx, depth+1, maxDepth, rng),
	}
}

func (t *isolationTree) pathLength(x []float64, depth float64) float64 {
	if t.leaf {
		return depth + averagePathLength(t.size)
	}
	if x[t.feature] < t.threshold {
		return t.left.pathLength(x, depth+1)
	}
	return t.right.pathLength(x, depth+1)
}

// averagePathLength is c(n), the expected path length of an
// unsuccessful BST search over n points.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}
