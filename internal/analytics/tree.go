package analytics

import (
	"math/rand"
	"sort"
)

// regressionTree is a CART-style regressor used by both the gradient
// boosting and random forest backends. Splits minimize the summed
// squared error of the two children, with candidate thresholds drawn
// from quantiles of the node's values to bound fitting cost.
type regressionTree struct {
	feature   int
	threshold float64
	left      *regressionTree
	right     *regressionTree
	value     float64
	leaf      bool
}

const splitCandidates = 32

type treeConfig struct {
	maxDepth    int
	minLeaf     int
	featureFrac float64 // fraction of features considered per split; <=0 means all
}

func fitTree(X [][]float64, y []float64, idx []int, cfg treeConfig, rng *rand.Rand) *regressionTree {
	return growTree(X, y, idx, 0, cfg, rng)
}

func growTree(X [][]float64, y []float64, idx []int, depth int, cfg treeConfig, rng *rand.Rand) *regressionTree {
	node := &regressionTree{value: meanAt(y, idx), leaf: true}
	if len(idx) < 2*cfg.minLeaf || (cfg.maxDepth > 0 && depth >= cfg.maxDepth) {
		return node
	}

	feature, threshold, ok := bestSplit(X, y, idx, cfg, rng)
	if !ok {
		return node
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	if len(leftIdx) < cfg.minLeaf || len(rightIdx) < cfg.minLeaf {
		return node
	}

	node.leaf = false
	node.feature = feature
	node.threshold = threshold
	node.left = growTree(X, y, leftIdx, depth+1, cfg, rng)
	node.right = growTree(X, y, rightIdx, depth+1, cfg, rng)
	return node
}

func bestSplit(X [][]float64, y []float64, idx []int, cfg treeConfig, rng *rand.Rand) (int, float64, bool) {
	nFeatures := len(X[0])
	features := make([]int, nFeatures)
	for i := range features {
		features[i] = i
	}
	if cfg.featureFrac > 0 && cfg.featureFrac < 1 {
		k := int(float64(nFeatures) * cfg.featureFrac)
		if k < 1 {
			k = 1
		}
		rng.Shuffle(nFeatures, func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:k]
	}

	bestScore := nodeSSE(y, idx)
	var bestFeature int
	var bestThreshold float64
	found := false

	for _, f := range features {
		for _, t := range candidateThresholds(X, idx, f) {
			var lSum, lSq, rSum, rSq float64
			var lN, rN int
			for _, i := range idx {
				v := y[i]
				if X[i][f] <= t {
					lSum += v
					lSq += v * v
					lN++
				} else {
					rSum += v
					rSq += v * v
					rN++
				}
			}
			if lN < cfg.minLeaf || rN < cfg.minLeaf {
				continue
			}
			// SSE = sum(v^2) - n*mean^2 per child.
			score := (lSq - lSum*lSum/float64(lN)) + (rSq - rSum*rSum/float64(rN))
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = t
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func candidateThresholds(X [][]float64, idx []int, feature int) []float64 {
	seen := make(map[float64]struct{}, len(idx))
	vals := make([]float64, 0, len(idx))
	for _, i := range idx {
		v := X[i][feature]
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			vals = append(vals, v)
		}
	}
	if len(vals) < 2 {
		return nil
	}
	if len(vals) <= splitCandidates {
		return vals[:len(vals)-1]
	}
	// Quantile subsample of distinct values.
	sort.Float64s(vals)
	out := make([]float64, 0, splitCandidates)
	step := float64(len(vals)-1) / float64(splitCandidates)
	for i := 0; i < splitCandidates; i++ {
		out = append(out, vals[int(float64(i)*step)])
	}
	return out
}

func (t *regressionTree) predict(x []float64) float64 {
	node := t
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func nodeSSE(y []float64, idx []int) float64 {
	m := meanAt(y, idx)
	var sse float64
	for _, i := range idx {
		d := y[i] - m
		sse += d * d
	}
	return sse
}
