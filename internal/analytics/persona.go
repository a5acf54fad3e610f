package analytics

import (
	"math"
	"math/rand"

	"github.com/rs/zerolog"
)

// PersonaLabels maps cluster index to behavioral archetype. The
// assignment is positional: nothing anchors cluster 0 to actually being
// the stable spenders. Known weakness, kept deliberately; see DESIGN.md.
var PersonaLabels = [5]string{
	"Stable Spender",
	"Impulsive Spender",
	"Goal-Driven Saver",
	"Cautious Conservative",
	"Variable Spender",
}

// PersonaUnknown is the sentinel label when the classifier is untrained.
const PersonaUnknown = "Unknown"

// PersonaClassifier assigns one of five fixed persona labels by k-means
// clustering over the scaled feature matrix.
type PersonaClassifier struct {
	centroids [][]float64
	trained   bool
	log       zerolog.Logger
}

// NewPersonaClassifier creates a persona classifier.
func NewPersonaClassifier(log zerolog.Logger) *PersonaClassifier {
	return &PersonaClassifier{
		log: log.With().Str("component", "persona_classifier").Logger(),
	}
}

const (
	personaClusters = 5
	kmeansRestarts  = 10
	kmeansMaxIter   = 100
)

// Train fits k-means with a fixed seed, keeping the best of ten
// restarts by inertia. Below the row threshold it returns
// InsufficientDataError and every prediction stays "Unknown".
func (c *PersonaClassifier) Train(X [][]float64) error {
	if len(X) < minModelRows {
		c.log.Warn().Int("rows", len(X)).Msg("insufficient data for persona classification")
		return &InsufficientDataError{Op: "persona training", Rows: len(X), Min: minModelRows}
	}

	rng := rand.New(rand.NewSource(randomSeed))
	bestInertia := math.Inf(1)
	for r := 0; r < kmeansRestarts; r++ {
		centroids, inertia := kmeansFit(X, personaClusters, kmeansMaxIter, rng)
		if inertia < bestInertia {
			bestInertia = inertia
			c.centroids = centroids
		}
	}
	c.trained = true
	c.log.Info().Float64("inertia", bestInertia).Msg("persona classifier trained")
	return nil
}

// Predict returns one persona label per row, "Unknown" for all rows
// when untrained.
func (c *PersonaClassifier) Predict(X [][]float64) []string {
	labels := make([]string, len(X))
	if !c.trained {
		for i := range labels {
			labels[i] = PersonaUnknown
		}
		return labels
	}
	for i, x := range X {
		labels[i] = PersonaLabels[nearestCentroid(c.centroids, x)]
	}
	return labels
}

// kmeansFit runs Lloyd's algorithm once from a random initialization
// and returns the centroids with the total within-cluster inertia.
func kmeansFit(X [][]float64, k, maxIter int, rng *rand.Rand) ([][]float64, float64) {
	dims := len(X[0])
	centroids := make([][]float64, k)
	perm := rng.Perm(len(X))
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), X[perm[i]]...)
	}

	assignments := make([]int, len(X))
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, x := range X {
			best := nearestCentroid(centroids, x)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dims)
		}
		for i, x := range X {
			a := assignments[i]
			counts[a]++
			for j, v := range x {
				sums[a][j] += v
			}
		}
		for i := range centroids {
			if counts[i] == 0 {
				// Re-seed an empty cluster from a random point.
				centroids[i] = append([]float64(nil), X[rng.Intn(len(X))]...)
				continue
			}
			for j := range centroids[i] {
				centroids[i][j] = sums[i][j] / float64(counts[i])
			}
		}
	}

	var inertia float64
	for i, x := range X {
		inertia += squaredDistance(centroids[assignments[i]], x)
	}
	return centroids, inertia
}

func nearestCentroid(centroids [][]float64, x []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		if d := squaredDistance(c, x); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
