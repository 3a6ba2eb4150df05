package selector

import (
	"errors"
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

// signalDesign builds a weighted sample where columns 1 and 3 carry all the
// signal and the rest are noise. Column 0 is degenerate (not usable).
func signalDesign(n int, rng *rand.Rand) (X [][]float64, y, w []float64, usable []int) {
	X = make([][]float64, n)
	y = make([]float64, n)
	w = make([]float64, n)
	for i := 0; i < n; i++ {
		X[i] = make([]float64, 6)
		X[i][0] = 1 // degenerate column, excluded from usable
		for j := 1; j < 6; j++ {
			X[i][j] = rng.NormFloat64()
		}
		y[i] = 4*X[i][1] - 2.5*X[i][3] + 0.05*rng.NormFloat64()
		w[i] = 0.2 + rng.Float64()
	}
	return X, y, w, []int{1, 2, 3, 4, 5}
}

func TestSelect_FindsSignalColumns(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	X, y, w, usable := signalDesign(800, rng)

	for _, strategy := range Strategies() {
		t.Run(string(strategy), func(t *testing.T) {
			picked, err := Select(strategy, X, y, w, 2, usable, rand.New(rand.NewSource(1)))
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if !reflect.DeepEqual(picked, []int{1, 3}) {
				t.Errorf("%s picked %v, want [1 3]", strategy, picked)
			}
		})
	}
}

func TestSelect_CountAndOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	X, y, w, usable := signalDesign(400, rng)

	for _, strategy := range Strategies() {
		for _, k := range []int{1, 3, 5} {
			picked, err := Select(strategy, X, y, w, k, usable, rand.New(rand.NewSource(1)))
			if err != nil {
				t.Fatalf("%s k=%d: %v", strategy, k, err)
			}
			if len(picked) != k {
				t.Errorf("%s k=%d returned %d columns", strategy, k, len(picked))
			}
			if !sort.IntsAreSorted(picked) {
				t.Errorf("%s returned unsorted columns %v", strategy, picked)
			}
			seen := make(map[int]bool)
			for _, c := range picked {
				if seen[c] {
					t.Errorf("%s returned duplicate column %d", strategy, c)
				}
				seen[c] = true
				if c == 0 {
					t.Errorf("%s picked a non-usable column", strategy)
				}
			}
		}
	}
}

func TestSelect_KEqualsUsableReturnsAll(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	X, y, w, usable := signalDesign(100, rng)

	picked, err := Select(ForwardSelection, X, y, w, len(usable), usable, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(picked, usable) {
		t.Errorf("k == usable should return all usable columns, got %v", picked)
	}
}

func TestSelect_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(24))
	X, y, w, usable := signalDesign(300, rng)

	for _, strategy := range Strategies() {
		a, err := Select(strategy, X, y, w, 3, usable, rand.New(rand.NewSource(9)))
		if err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}
		b, err := Select(strategy, X, y, w, 3, usable, rand.New(rand.NewSource(9)))
		if err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("%s is not deterministic: %v vs %v", strategy, a, b)
		}
	}
}

func TestSelect_DefaultStrategy(t *testing.T) {
	rng := rand.New(rand.NewSource(25))
	X, y, w, usable := signalDesign(300, rng)

	def, err := Select("", X, y, w, 2, usable, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	hw, err := Select(HighestWeights, X, y, w, 2, usable, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(def, hw) {
		t.Errorf("empty strategy should behave as highest_weights: %v vs %v", def, hw)
	}
}

func TestSelect_Errors(t *testing.T) {
	rng := rand.New(rand.NewSource(26))
	X, y, w, usable := signalDesign(50, rng)

	tests := []struct {
		name     string
		strategy Strategy
		k        int
		usable   []int
	}{
		{"k too large", HighestWeights, 6, usable},
		{"k zero", HighestWeights, 0, usable},
		{"no usable features", HighestWeights, 1, nil},
		{"unknown strategy", Strategy("pca"), 2, usable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Select(tt.strategy, X, y, w, tt.k, tt.usable, rand.New(rand.NewSource(1)))
			var se *SelectionError
			if !errors.As(err, &se) {
				t.Fatalf("expected SelectionError, got %v", err)
			}
		})
	}
}

func TestLassoPath_FlatTargetFallsBack(t *testing.T) {
	n := 50
	X := make([][]float64, n)
	y := make([]float64, n)
	w := make([]float64, n)
	rng := rand.New(rand.NewSource(27))
	for i := 0; i < n; i++ {
		X[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		y[i] = 3 // flat
		w[i] = 1
	}

	picked, err := Select(LassoPath, X, y, w, 2, []int{0, 1, 2}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(picked, []int{0, 1}) {
		t.Errorf("flat target should fall back to column order, got %v", picked)
	}
}
