package selector

import (
	"math"
	"math/rand"
	"sort"
)

// treeSelect fits a weighted regression tree on the perturbed sample and
// ranks features by their total weighted-variance reduction across splits.
// rng only breaks ties between equal-gain split candidates; given a fixed
// seed the selection is deterministic.
func treeSelect(X [][]float64, y, w []float64, k int, usable []int, rng *rand.Rand) ([]int, error) {
	const (
		maxDepth    = 6
		minSplit    = 10   // minimum rows to consider splitting a node
		minGainFrac = 1e-9 // relative gain below this is noise
	)

	rows := make([]int, len(X))
	for i := range rows {
		rows[i] = i
	}

	importance := make(map[int]float64, len(usable))
	growTree(X, y, w, rows, usable, 0, maxDepth, minSplit, minGainFrac, importance, rng)

	if len(importance) == 0 {
		return nil, &SelectionError{Requested: k, Available: len(usable),
			Reason: "tree found no informative split"}
	}

	order := append([]int(nil), usable...)
	sort.Slice(order, func(a, b int) bool {
		ia, ib := importance[order[a]], importance[order[b]]
		if ia != ib {
			return ia > ib
		}
		return order[a] < order[b]
	})

	return append([]int(nil), order[:k]...), nil
}

// growTree recursively splits rows, accumulating per-feature impurity
// reduction into importance.
func growTree(X [][]float64, y, w []float64, rows, usable []int, depth, maxDepth, minSplit int, minGainFrac float64, importance map[int]float64, rng *rand.Rand) {
	if depth >= maxDepth || len(rows) < minSplit {
		return
	}

	parentImp, parentW := weightedSSE(y, w, rows)
	if parentImp <= 0 || parentW == 0 {
		return
	}

	bestGain := 0.0
	bestFeat := -1
	bestThresh := 0.0
	var tied []int

	for _, c := range usable {
		gain, thresh, ok := bestSplitForFeature(X, y, w, rows, c)
		if !ok {
			continue
		}
		switch {
		case gain > bestGain*(1+1e-12):
			bestGain = gain
			bestFeat = c
			bestThresh = thresh
			tied = tied[:0]
		case bestFeat >= 0 && nearlyEqual(gain, bestGain):
			tied = append(tied, c)
		}
	}

	if bestFeat < 0 || bestGain < parentImp*minGainFrac {
		return
	}
	// Tie-break between equal-gain features via the seeded rng.
	if len(tied) > 0 {
		cands := append([]int{bestFeat}, tied...)
		sort.Ints(cands)
		bestFeat = cands[rng.Intn(len(cands))]
		_, bestThresh, _ = bestSplitForFeature(X, y, w, rows, bestFeat)
	}

	importance[bestFeat] += bestGain

	var left, right []int
	for _, i := range rows {
		if X[i][bestFeat] <= bestThresh {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return
	}

	growTree(X, y, w, left, usable, depth+1, maxDepth, minSplit, minGainFrac, importance, rng)
	growTree(X, y, w, right, usable, depth+1, maxDepth, minSplit, minGainFrac, importance, rng)
}

// bestSplitForFeature scans the sorted unique values of one column for the
// threshold maximizing weighted-variance reduction.
func bestSplitForFeature(X [][]float64, y, w []float64, rows []int, c int) (gain, thresh float64, ok bool) {
	ord := append([]int(nil), rows...)
	sort.Slice(ord, func(a, b int) bool { return X[ord[a]][c] < X[ord[b]][c] })

	var totW, totWY, totWYY float64
	for _, i := range ord {
		totW += w[i]
		totWY += w[i] * y[i]
		totWYY += w[i] * y[i] * y[i]
	}
	if totW == 0 {
		return 0, 0, false
	}
	parent := totWYY - totWY*totWY/totW

	var lw, lwy, lwyy float64
	best := -1.0
	for pos := 0; pos < len(ord)-1; pos++ {
		i := ord[pos]
		lw += w[i]
		lwy += w[i] * y[i]
		lwyy += w[i] * y[i] * y[i]

		// Only cut between distinct values.
		if X[ord[pos]][c] == X[ord[pos+1]][c] {
			continue
		}
		rw := totW - lw
		if lw == 0 || rw == 0 {
			continue
		}
		leftImp := lwyy - lwy*lwy/lw
		rwy := totWY - lwy
		rwyy := totWYY - lwyy
		rightImp := rwyy - rwy*rwy/rw

		g := parent - leftImp - rightImp
		if g > best {
			best = g
			thresh = (X[ord[pos]][c] + X[ord[pos+1]][c]) / 2
		}
	}
	if best <= 0 {
		return 0, 0, false
	}
	return best, thresh, true
}

// weightedSSE returns the weighted sum of squared deviations from the
// weighted mean, plus the total weight.
func weightedSSE(y, w []float64, rows []int) (float64, float64) {
	var tw, twy float64
	for _, i := range rows {
		tw += w[i]
		twy += w[i] * y[i]
	}
	if tw == 0 {
		return 0, 0
	}
	mean := twy / tw
	var sse float64
	for _, i := range rows {
		d := y[i] - mean
		sse += w[i] * d * d
	}
	return sse, tw
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12*math.Max(math.Abs(a), math.Abs(b))
}
