package selector

import (
	"math"
	"sort"
)

// lassoPath runs a weighted lasso over a decreasing penalty grid and selects
// the k features that enter the path first, i.e. whose coefficients are
// non-zero under the heaviest penalty and persist as it relaxes.
func lassoPath(X [][]float64, y, w []float64, k int, usable []int) ([]int, error) {
	n := len(X)
	f := len(usable)

	// Standardize the usable columns under the similarity weights so the
	// penalty treats features comparably.
	var wsum float64
	for _, wi := range w {
		wsum += wi
	}
	if wsum == 0 {
		return nil, &SelectionError{Requested: k, Available: f, Reason: "all similarity weights are zero"}
	}

	means := make([]float64, f)
	scales := make([]float64, f)
	for j, c := range usable {
		var m float64
		for i := 0; i < n; i++ {
			m += w[i] * X[i][c]
		}
		m /= wsum
		var v float64
		for i := 0; i < n; i++ {
			d := X[i][c] - m
			v += w[i] * d * d
		}
		v /= wsum
		means[j] = m
		if v > 0 {
			scales[j] = math.Sqrt(v)
		} else {
			scales[j] = 1 // constant column on this sample, stays at zero coef
		}
	}

	yMean := 0.0
	for i := 0; i < n; i++ {
		yMean += w[i] * y[i]
	}
	yMean /= wsum

	z := make([][]float64, n)
	r := make([]float64, n) // residuals of the centered target
	for i := 0; i < n; i++ {
		z[i] = make([]float64, f)
		for j := range usable {
			z[i][j] = (X[i][usable[j]] - means[j]) / scales[j]
		}
		r[i] = y[i] - yMean
	}

	// λmax: smallest penalty at which every coefficient is zero.
	lambdaMax := 0.0
	for j := 0; j < f; j++ {
		var g float64
		for i := 0; i < n; i++ {
			g += w[i] * z[i][j] * r[i]
		}
		lambdaMax = math.Max(lambdaMax, math.Abs(g)/wsum)
	}
	if lambdaMax == 0 {
		// Target is flat on this neighborhood; fall back to column order.
		out := append([]int(nil), usable...)
		return out[:k], nil
	}

	const (
		gridSize  = 60
		lambdaEps = 1e-3
		maxSweeps = 200
		tol       = 1e-7
	)

	beta := make([]float64, f)
	entered := make([]int, f) // grid step at which each coef first went non-zero; -1 = never
	for j := range entered {
		entered[j] = -1
	}

	// Column norms under weights (for the coordinate update denominator).
	norms := make([]float64, f)
	for j := 0; j < f; j++ {
		for i := 0; i < n; i++ {
			norms[j] += w[i] * z[i][j] * z[i][j]
		}
		norms[j] /= wsum
	}

	ratio := math.Pow(lambdaEps, 1.0/float64(gridSize-1))
	lambda := lambdaMax
	for step := 0; step < gridSize; step++ {
		// Coordinate descent with warm start from the previous λ.
		for sweep := 0; sweep < maxSweeps; sweep++ {
			maxDelta := 0.0
			for j := 0; j < f; j++ {
				if norms[j] == 0 {
					continue
				}
				var g float64
				for i := 0; i < n; i++ {
					g += w[i] * z[i][j] * r[i]
				}
				g = g/wsum + norms[j]*beta[j]

				nb := softThreshold(g, lambda) / norms[j]
				if nb != beta[j] {
					d := nb - beta[j]
					for i := 0; i < n; i++ {
						r[i] -= d * z[i][j]
					}
					maxDelta = math.Max(maxDelta, math.Abs(d))
					beta[j] = nb
				}
			}
			if maxDelta < tol {
				break
			}
		}

		for j := 0; j < f; j++ {
			if entered[j] < 0 && beta[j] != 0 {
				entered[j] = step
			}
		}

		active := 0
		for j := range entered {
			if entered[j] >= 0 {
				active++
			}
		}
		if active >= k {
			break
		}
		lambda *= ratio
	}

	// Rank by entry step ascending (earliest entry = most persistent), then
	// by column index for determinism. Features that never entered rank last.
	order := make([]int, f)
	for j := range order {
		order[j] = j
	}
	sort.Slice(order, func(a, b int) bool {
		ea, eb := entered[order[a]], entered[order[b]]
		if ea < 0 {
			ea = gridSize
		}
		if eb < 0 {
			eb = gridSize
		}
		if ea != eb {
			return ea < eb
		}
		return usable[order[a]] < usable[order[b]]
	})

	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = usable[order[i]]
	}
	return out, nil
}

func softThreshold(g, lambda float64) float64 {
	switch {
	case g > lambda:
		return g - lambda
	case g < -lambda:
		return g + lambda
	default:
		return 0
	}
}
