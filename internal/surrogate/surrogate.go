package surrogate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultLambda is the default ridge penalty for the local surrogate.
// Small on purpose: the penalty only stabilizes near-collinear perturbation
// designs, it is not a model-selection lever.
const DefaultLambda = 1e-3

// Fit is the result of fitting the weighted ridge surrogate.
type Fit struct {
	Columns   []int     // design-matrix columns the fit used, ascending
	Coefs     []float64 // signed coefficient per column, parallel to Columns
	Intercept float64
	R2        float64 // weighted R² vs the opaque model's predictions; <= 1, may be negative
	AnchorFit float64 // fitted value at row 0 (the original instance)
}

// Ridge fits a weighted ridge regression of y on the selected columns of X,
// with similarity weights w. The intercept is unpenalized. X is the full n×F
// design matrix; cols picks the feature subset.
func Ridge(X [][]float64, cols []int, y, w []float64, lambda float64) (*Fit, error) {
	n := len(X)
	k := len(cols)
	if n == 0 || n != len(y) || n != len(w) {
		return nil, fmt.Errorf("design/target/weight length mismatch: %d/%d/%d", n, len(y), len(w))
	}
	if k == 0 {
		return nil, fmt.Errorf("no columns selected")
	}
	if lambda < 0 {
		return nil, fmt.Errorf("ridge penalty must be non-negative, got %g", lambda)
	}

	// Weighted normal equations with an explicit intercept column:
	// (D'WD + λI*)β = D'Wy, where D = [1 | X[:, cols]] and I* leaves the
	// intercept unpenalized.
	p := k + 1
	a := mat.NewSymDense(p, nil)
	b := mat.NewVecDense(p, nil)

	row := make([]float64, p)
	for i := 0; i < n; i++ {
		row[0] = 1
		for j, c := range cols {
			row[j+1] = X[i][c]
		}
		wi := w[i]
		for r := 0; r < p; r++ {
			b.SetVec(r, b.AtVec(r)+wi*row[r]*y[i])
			for c := r; c < p; c++ {
				a.SetSym(r, c, a.At(r, c)+wi*row[r]*row[c])
			}
		}
	}
	for j := 1; j < p; j++ {
		a.SetSym(j, j, a.At(j, j)+lambda)
	}

	beta := mat.NewVecDense(p, nil)
	var ch mat.Cholesky
	if ok := ch.Factorize(a); ok {
		if err := ch.SolveVecTo(beta, b); err != nil {
			return nil, fmt.Errorf("ridge solve failed: %w", err)
		}
	} else {
		// Fall back to a dense solve when the Gram matrix is not PD
		// (can happen with all-zero weights on some columns).
		dense := mat.NewDense(p, p, nil)
		for r := 0; r < p; r++ {
			for c := 0; c < p; c++ {
				dense.Set(r, c, a.At(r, c))
			}
		}
		if err := beta.SolveVec(dense, b); err != nil {
			return nil, fmt.Errorf("ridge solve failed (singular design): %w", err)
		}
	}

	fit := &Fit{
		Columns:   append([]int(nil), cols...),
		Coefs:     make([]float64, k),
		Intercept: beta.AtVec(0),
	}
	for j := 0; j < k; j++ {
		fit.Coefs[j] = beta.AtVec(j + 1)
	}

	fit.R2 = weightedR2(X, cols, y, w, fit)
	fit.AnchorFit = fit.PredictRow(X[0])

	return fit, nil
}

// PredictRow evaluates the fitted surrogate on one full design-matrix row.
func (f *Fit) PredictRow(row []float64) float64 {
	out := f.Intercept
	for j, c := range f.Columns {
		out += f.Coefs[j] * row[c]
	}
	return out
}

// weightedR2 computes 1 - SS_res/SS_tot with similarity weights, against the
// opaque model's own predictions (not ground-truth labels). A negative value
// means the local surrogate is worse than the weighted mean; it is surfaced
// as-is, never clamped.
func weightedR2(X [][]float64, cols []int, y, w []float64, f *Fit) float64 {
	var wsum, ymean float64
	for i := range y {
		wsum += w[i]
		ymean += w[i] * y[i]
	}
	if wsum == 0 {
		return math.Inf(-1)
	}
	ymean /= wsum

	var ssRes, ssTot float64
	for i := range y {
		pred := f.PredictRow(X[i])
		ssRes += w[i] * (y[i] - pred) * (y[i] - pred)
		ssTot += w[i] * (y[i] - ymean) * (y[i] - ymean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return math.Inf(-1)
	}
	return 1 - ssRes/ssTot
}
