package surrogate

import (
	"math"
	"math/rand"
	"testing"
)

// linearDesign builds a design where y = 2*x0 - 3*x1 + 0.5 exactly.
func linearDesign(n int, rng *rand.Rand) (X [][]float64, y, w []float64) {
	X = make([][]float64, n)
	y = make([]float64, n)
	w = make([]float64, n)
	for i := 0; i < n; i++ {
		X[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		y[i] = 2*X[i][0] - 3*X[i][1] + 0.5
		w[i] = 0.1 + rng.Float64()
	}
	return X, y, w
}

func TestRidge_RecoversLinearTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	X, y, w := linearDesign(500, rng)

	fit, err := Ridge(X, []int{0, 1}, y, w, DefaultLambda)
	if err != nil {
		t.Fatalf("Ridge: %v", err)
	}

	if len(fit.Coefs) != 2 || len(fit.Columns) != 2 {
		t.Fatalf("expected one coefficient per selected column, got %d", len(fit.Coefs))
	}
	if math.Abs(fit.Coefs[0]-2) > 0.01 {
		t.Errorf("coef[0] = %.4f, want ~2", fit.Coefs[0])
	}
	if math.Abs(fit.Coefs[1]+3) > 0.01 {
		t.Errorf("coef[1] = %.4f, want ~-3", fit.Coefs[1])
	}
	if math.Abs(fit.Intercept-0.5) > 0.01 {
		t.Errorf("intercept = %.4f, want ~0.5", fit.Intercept)
	}
	if fit.R2 < 0.999 {
		t.Errorf("exact linear target should fit with R² ~1, got %.4f", fit.R2)
	}
	if got := fit.PredictRow(X[0]); math.Abs(got-fit.AnchorFit) > 1e-12 {
		t.Errorf("AnchorFit %.6f != PredictRow(X[0]) %.6f", fit.AnchorFit, got)
	}
}

func TestRidge_R2NeverExceedsOne(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	n := 200
	X := make([][]float64, n)
	y := make([]float64, n)
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		X[i] = []float64{rng.NormFloat64()}
		y[i] = rng.NormFloat64() // pure noise
		w[i] = 1
	}

	fit, err := Ridge(X, []int{0}, y, w, DefaultLambda)
	if err != nil {
		t.Fatalf("Ridge: %v", err)
	}
	if fit.R2 > 1 {
		t.Errorf("R² = %.4f exceeds 1", fit.R2)
	}
}

func TestRidge_WeightsFocusTheFit(t *testing.T) {
	// Two populations with different slopes; weighting one of them near
	// zero must recover the other's slope.
	n := 400
	X := make([][]float64, n)
	y := make([]float64, n)
	w := make([]float64, n)
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < n; i++ {
		x := rng.NormFloat64()
		X[i] = []float64{x}
		if i < n/2 {
			y[i] = 5 * x
			w[i] = 1
		} else {
			y[i] = -5 * x
			w[i] = 1e-9
		}
	}

	fit, err := Ridge(X, []int{0}, y, w, DefaultLambda)
	if err != nil {
		t.Fatalf("Ridge: %v", err)
	}
	if math.Abs(fit.Coefs[0]-5) > 0.05 {
		t.Errorf("coef = %.4f, want ~5 (down-weighted population ignored)", fit.Coefs[0])
	}
}

func TestRidge_PenaltyShrinksCoefficients(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	X, y, w := linearDesign(300, rng)

	small, err := Ridge(X, []int{0, 1}, y, w, 1e-6)
	if err != nil {
		t.Fatalf("Ridge: %v", err)
	}
	large, err := Ridge(X, []int{0, 1}, y, w, 1e4)
	if err != nil {
		t.Fatalf("Ridge: %v", err)
	}
	if math.Abs(large.Coefs[0]) >= math.Abs(small.Coefs[0]) {
		t.Errorf("heavy penalty should shrink coefficients: %.4f vs %.4f",
			large.Coefs[0], small.Coefs[0])
	}
}

func TestRidge_Errors(t *testing.T) {
	X := [][]float64{{1}, {2}}
	y := []float64{1, 2}
	w := []float64{1, 1}

	if _, err := Ridge(X, nil, y, w, DefaultLambda); err == nil {
		t.Error("empty column set must be rejected")
	}
	if _, err := Ridge(X, []int{0}, y[:1], w, DefaultLambda); err == nil {
		t.Error("length mismatch must be rejected")
	}
	if _, err := Ridge(X, []int{0}, y, w, -1); err == nil {
		t.Error("negative penalty must be rejected")
	}
	if _, err := Ridge(nil, []int{0}, nil, nil, DefaultLambda); err == nil {
		t.Error("empty design must be rejected")
	}
}

func TestRidge_SubsetOfColumns(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	X, y, w := linearDesign(300, rng)

	// The third design column is noise; selecting only it should fit badly.
	fit, err := Ridge(X, []int{2}, y, w, DefaultLambda)
	if err != nil {
		t.Fatalf("Ridge: %v", err)
	}
	if fit.R2 > 0.5 {
		t.Errorf("noise-only column fit suspiciously well: R² = %.4f", fit.R2)
	}
	if len(fit.Coefs) != 1 {
		t.Errorf("expected 1 coefficient, got %d", len(fit.Coefs))
	}
}
