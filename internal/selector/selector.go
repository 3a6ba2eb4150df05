package selector

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/glassbox-ml/lime/internal/surrogate"
)

// Strategy names a feature-selection algorithm.
type Strategy string

const (
	ForwardSelection Strategy = "forward_selection"
	HighestWeights   Strategy = "highest_weights"
	LassoPath        Strategy = "lasso_path"
	Tree             Strategy = "tree"
)

// Strategies lists the accepted strategy names.
func Strategies() []Strategy {
	return []Strategy{ForwardSelection, HighestWeights, LassoPath, Tree}
}

// SelectionError reports an infeasible selection request.
type SelectionError struct {
	Requested int
	Available int
	Reason    string
}

func (e *SelectionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("feature selection failed: %s", e.Reason)
	}
	return fmt.Sprintf("feature selection failed: requested %d features but only %d usable",
		e.Requested, e.Available)
}

// Select picks the k design-matrix columns (restricted to usable, the
// non-degenerate features) that best explain y on the weighted perturbed
// sample. Every strategy is deterministic given identical inputs and rng
// seed; ties break toward the lower column index. The returned indices are
// ascending and distinct.
func Select(strategy Strategy, X [][]float64, y, w []float64, k int, usable []int, rng *rand.Rand) ([]int, error) {
	if len(usable) == 0 {
		return nil, &SelectionError{Requested: k, Available: 0, Reason: "no usable features"}
	}
	if k <= 0 || k > len(usable) {
		return nil, &SelectionError{Requested: k, Available: len(usable)}
	}
	if k == len(usable) {
		out := append([]int(nil), usable...)
		sort.Ints(out)
		return out, nil
	}

	var picked []int
	var err error
	switch strategy {
	case ForwardSelection:
		picked, err = forwardSelect(X, y, w, k, usable)
	case HighestWeights, "":
		picked, err = highestWeights(X, y, w, k, usable)
	case LassoPath:
		picked, err = lassoPath(X, y, w, k, usable)
	case Tree:
		picked, err = treeSelect(X, y, w, k, usable, rng)
	default:
		return nil, &SelectionError{Requested: k, Available: len(usable),
			Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}
	if err != nil {
		return nil, err
	}

	sort.Ints(picked)
	return picked, nil
}

// forwardSelect greedily adds the feature whose inclusion most improves the
// weighted-least-squares R², stopping at k features.
func forwardSelect(X [][]float64, y, w []float64, k int, usable []int) ([]int, error) {
	remaining := append([]int(nil), usable...)
	var chosen []int

	for len(chosen) < k {
		bestIdx := -1
		bestR2 := math.Inf(-1)
		for pos, cand := range remaining {
			cols := append(append([]int(nil), chosen...), cand)
			fit, err := surrogate.Ridge(X, cols, y, w, surrogate.DefaultLambda)
			if err != nil {
				continue
			}
			if fit.R2 > bestR2 {
				bestR2 = fit.R2
				bestIdx = pos
			}
		}
		if bestIdx < 0 {
			return nil, &SelectionError{Requested: k, Available: len(usable),
				Reason: "forward selection could not fit any candidate"}
		}
		chosen = append(chosen, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return chosen, nil
}

// highestWeights fits a ridge-penalized weighted regression on all usable
// features and keeps the k with largest absolute coefficient.
func highestWeights(X [][]float64, y, w []float64, k int, usable []int) ([]int, error) {
	fit, err := surrogate.Ridge(X, usable, y, w, 1e-2)
	if err != nil {
		return nil, &SelectionError{Requested: k, Available: len(usable),
			Reason: fmt.Sprintf("ridge fit failed: %v", err)}
	}

	type ranked struct {
		col int
		abs float64
	}
	rs := make([]ranked, len(usable))
	for j, c := range fit.Columns {
		rs[j] = ranked{col: c, abs: math.Abs(fit.Coefs[j])}
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].abs != rs[j].abs {
			return rs[i].abs > rs[j].abs
		}
		return rs[i].col < rs[j].col
	})

	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = rs[i].col
	}
	return out, nil
}
