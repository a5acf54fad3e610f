package analytics

import (
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// minModelRows is the training threshold shared by the three
// per-transaction models. Below it every model is a no-op.
const minModelRows = 50

const randomSeed = 42

// RegressorBackend is a capability-checked strategy for the risk
// regressor. Backends that cannot run in this build report
// Available() == false and the predictor falls through to the next one.
type RegressorBackend interface {
	Name() string
	Available() bool
	Fit(X [][]float64, y []float64)
	Predict(X [][]float64) []float64
}

// RiskPredictor maps feature vectors to a continuous risk score.
// Untrained (insufficient data or no backend), it predicts zero for
// every row.
type RiskPredictor struct {
	backends []RegressorBackend
	backend  RegressorBackend
	trained  bool
	log      zerolog.Logger
}

// NewRiskPredictor creates a risk predictor choosing the first
// available backend at construction time. With no backends given it
// defaults to gradient boosting with a random forest fallback.
func NewRiskPredictor(log zerolog.Logger, backends ...RegressorBackend) *RiskPredictor {
	if len(backends) == 0 {
		backends = []RegressorBackend{
			newGradientBoostingRegressor(),
			newRandomForestRegressor(),
		}
	}
	return &RiskPredictor{
		backends: backends,
		log:      log.With().Str("component", "risk_predictor").Logger(),
	}
}

// Train fits the regressor on an 80/20 split with a fixed seed and logs
// held-out MSE and R². The metrics are diagnostic only and never gate
// the pipeline. Returns InsufficientDataError below the row threshold
// and ModelUnavailableError when no backend is available; both leave
// the predictor as a zero-emitting no-op.
func (p *RiskPredictor) Train(X [][]float64, y []float64) error {
	if len(X) < minModelRows {
		p.log.Warn().Int("rows", len(X)).Msg("insufficient data for risk model")
		return &InsufficientDataError{Op: "risk training", Rows: len(X), Min: minModelRows}
	}

	for _, b := range p.backends {
		if b.Available() {
			p.backend = b
			break
		}
	}
	if p.backend == nil {
		return &ModelUnavailableError{Model: "risk regressor"}
	}

	rng := rand.New(rand.NewSource(randomSeed))
	trainIdx, testIdx := trainTestSplit(len(X), 0.2, rng)

	p.backend.Fit(subsetRows(X, trainIdx), subsetVals(y, trainIdx))
	p.trained = true

	pred := p.backend.Predict(subsetRows(X, testIdx))
	truth := subsetVals(y, testIdx)
	mse := meanSquaredError(truth, pred)
	r2 := stat.RSquaredFrom(pred, truth, nil)
	p.log.Info().
		Str("backend", p.backend.Name()).
		Float64("mse", mse).
		Float64("r2", r2).
		Msg("risk model trained")
	return nil
}

// Predict returns one risk score per row, all zeros when untrained.
func (p *RiskPredictor) Predict(X [][]float64) []float64 {
	if !p.trained {
		return make([]float64, len(X))
	}
	return p.backend.Predict(X)
}

func trainTestSplit(n int, testFrac float64, rng *rand.Rand) (train, test []int) {
	perm := rng.Perm(n)
	testN := int(math.Ceil(float64(n) * testFrac))
	return perm[testN:], perm[:testN]
}

func subsetRows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func subsetVals(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

func meanSquaredError(truth, pred []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	var sum float64
	for i := range truth {
		d := truth[i] - pred[i]
		sum += d * d
	}
	return sum / float64(len(truth))
}

// gradientBoostingRegressor is the primary backend: additive regression
// trees fit to residuals with shrinkage and row subsampling.
type gradientBoostingRegressor struct {
	nEstimators  int
	maxDepth     int
	learningRate float64
	subsample    float64

	base  float64
	trees []*regressionTree
}

func newGradientBoostingRegressor() *gradientBoostingRegressor {
	return &gradientBoostingRegressor{
		nEstimators:  200,
		maxDepth:     6,
		learningRate: 0.05,
		subsample:    0.9,
	}
}

func (g *gradientBoostingRegressor) Name() string    { return "gradient_boosting" }
func (g *gradientBoostingRegressor) Available() bool { return true }

func (g *gradientBoostingRegressor) Fit(X [][]float64, y []float64) {
	rng := rand.New(rand.NewSource(randomSeed))
	g.base = stat.Mean(y, nil)
	g.trees = g.trees[:0]

	current := make([]float64, len(y))
	for i := range current {
		current[i] = g.base
	}
	residuals := make([]float64, len(y))
	cfg := treeConfig{maxDepth: g.maxDepth, minLeaf: 2}

	for t := 0; t < g.nEstimators; t++ {
		for i := range y {
			residuals[i] = y[i] - current[i]
		}
		idx := sampleRows(len(y), g.subsample, rng)
		tree := fitTree(X, residuals, idx, cfg, rng)
		g.trees = append(g.trees, tree)
		for i := range current {
			current[i] += g.learningRate * tree.predict(X[i])
		}
	}
}

func (g *gradientBoostingRegressor) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		v := g.base
		for _, tree := range g.trees {
			v += g.learningRate * tree.predict(x)
		}
		out[i] = v
	}
	return out
}

// randomForestRegressor is the fallback backend: bootstrap-aggregated
// trees with per-split feature subsampling.
type randomForestRegressor struct {
	nEstimators int
	maxDepth    int

	trees []*regressionTree
}

func newRandomForestRegressor() *randomForestRegressor {
	return &randomForestRegressor{nEstimators: 300, maxDepth: 12}
}

func (f *randomForestRegressor) Name() string    { return "random_forest" }
func (f *randomForestRegressor) Available() bool { return true }

func (f *randomForestRegressor) Fit(X [][]float64, y []float64) {
	rng := rand.New(rand.NewSource(randomSeed))
	f.trees = f.trees[:0]
	cfg := treeConfig{maxDepth: f.maxDepth, minLeaf: 2, featureFrac: 0.33}

	for t := 0; t < f.nEstimators; t++ {
		idx := make([]int, len(y))
		for i := range idx {
			idx[i] = rng.Intn(len(y))
		}
		f.trees = append(f.trees, fitTree(X, y, idx, cfg, rng))
	}
}

func (f *randomForestRegressor) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if len(f.trees) == 0 {
		return out
	}
	for i, x := range X {
		var sum float64
		for _, tree := range f.trees {
			sum += tree.predict(x)
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out
}

func sampleRows(n int, frac float64, rng *rand.Rand) []int {
	k := int(float64(n) * frac)
	if k < 1 || k > n {
		k = n
	}
	perm := rng.Perm(n)
	return perm[:k]
}
