package analytics

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticMatrix builds a deterministic feature matrix with a linearly
// predictable target, shared by the model tests.
func syntheticMatrix(n, d int) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(7))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		X[i] = make([]float64, d)
		for j := range X[i] {
			X[i][j] = rng.NormFloat64()
		}
		y[i] = 0.4*X[i][0] - 0.2*X[i][1] + 0.05*rng.NormFloat64()
	}
	return X, y
}

func TestRiskPredictor(t *testing.T) {
	t.Run("too few rows leaves predictor inert", func(t *testing.T) {
		p := NewRiskPredictor(testLogger())
		X, y := syntheticMatrix(10, 5)

		err := p.Train(X, y)
		var insufficient *InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, 10, insufficient.Rows)
		assert.Equal(t, 50, insufficient.Min)

		for _, v := range p.Predict(X) {
			assert.Zero(t, v)
		}
	})

	t.Run("trains above the threshold", func(t *testing.T) {
		p := NewRiskPredictor(testLogger())
		X, y := syntheticMatrix(80, 5)

		require.NoError(t, p.Train(X, y))
		pred := p.Predict(X)
		require.Len(t, pred, 80)
		for _, v := range pred {
			assert.False(t, math.IsNaN(v))
		}
	})

	t.Run("learns an obvious signal", func(t *testing.T) {
		p := NewRiskPredictor(testLogger())
		X, y := syntheticMatrix(200, 5)
		require.NoError(t, p.Train(X, y))

		pred := p.Predict(X)
		mse := meanSquaredError(y, pred)
		assert.Less(t, mse, 0.1)
	})

	t.Run("no available backend", func(t *testing.T) {
		p := NewRiskPredictor(testLogger(), disabledBackend{})
		X, y := syntheticMatrix(60, 5)

		err := p.Train(X, y)
		var unavailable *ModelUnavailableError
		assert.ErrorAs(t, err, &unavailable)
		for _, v := range p.Predict(X) {
			assert.Zero(t, v)
		}
	})
}

type disabledBackend struct{}

func (disabledBackend) Name() string                    { return "disabled" }
func (disabledBackend) Available() bool                 { return false }
func (disabledBackend) Fit([][]float64, []float64)      {}
func (disabledBackend) Predict(X [][]float64) []float64 { return make([]float64, len(X)) }

func TestTrainTestSplit(t *testing.T) {
	rng := rand.New(rand.NewSource(randomSeed))
	train, test := trainTestSplit(100, 0.2, rng)

	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	seen := make(map[int]bool)
	for _, i := range append(train, test...) {
		assert.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
}

func TestRegressionTree(t *testing.T) {
	// A single split on feature 0 should be found exactly.
	X := [][]float64{{0}, {1}, {2}, {3}, {10}, {11}, {12}, {13}}
	y := []float64{1, 1, 1, 1, 5, 5, 5, 5}
	idx := []int{0, 1, 2, 3, 4, 5, 6, 7}

	tree := fitTree(X, y, idx, treeConfig{maxDepth: 3, minLeaf: 1}, rand.New(rand.NewSource(1)))
	assert.InDelta(t, 1, tree.predict([]float64{2}), 1e-9)
	assert.InDelta(t, 5, tree.predict([]float64{12}), 1e-9)
}
