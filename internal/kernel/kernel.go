package kernel

import (
	"fmt"
	"math"
)

// Distance names accepted by Distance. All metrics operate on the recoded
// indicator matrix, never on the raw feature rows.
const (
	Gower     = "gower"
	Euclidean = "euclidean"
	Manhattan = "manhattan"
)

// DistanceFn computes a pairwise distance between two recoded rows.
type DistanceFn func(a, b []float64) float64

// Distance resolves a distance function by name. Gower is the default used
// when name is empty.
func Distance(name string) (DistanceFn, error) {
	switch name {
	case "", Gower:
		return gowerDist, nil
	case Euclidean:
		return euclideanDist, nil
	case Manhattan:
		return manhattanDist, nil
	default:
		return nil, fmt.Errorf("unknown distance function: %q", name)
	}
}

// Distances computes the distance of every recoded row to row 0 (the anchor).
// The anchor's own distance is exactly zero.
func Distances(recoded [][]float64, fn DistanceFn) []float64 {
	out := make([]float64, len(recoded))
	if len(recoded) == 0 {
		return out
	}
	anchor := recoded[0]
	for i := 1; i < len(recoded); i++ {
		out[i] = fn(anchor, recoded[i])
	}
	return out
}

// gowerDist is the Gower coefficient distance. On the binary recoded matrix
// every dimension has range 1, so it reduces to the mean absolute difference.
func gowerDist(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(len(a))
}

func euclideanDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func manhattanDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// DefaultWidth is the default kernel width: 0.75·√F over the total feature
// count at call time, before feature selection.
func DefaultWidth(nFeatures int) float64 {
	return 0.75 * math.Sqrt(float64(nFeatures))
}

// Kernel converts raw distances into similarity weights in (0, 1].
// Smaller widths sharply down-weight distant perturbations, shrinking the
// effective local region.
type Kernel struct {
	Width float64
}

// New creates a kernel; width <= 0 falls back to DefaultWidth(nFeatures).
func New(width float64, nFeatures int) (Kernel, error) {
	if width < 0 {
		return Kernel{}, fmt.Errorf("kernel width must be positive, got %g", width)
	}
	if width == 0 {
		width = DefaultWidth(nFeatures)
	}
	if width == 0 {
		return Kernel{}, fmt.Errorf("kernel width degenerated to zero (no features)")
	}
	return Kernel{Width: width}, nil
}

// Weights maps each distance d to exp(-d²/width²). A zero distance maps to
// exactly 1, so the anchor row always carries maximal weight.
func (k Kernel) Weights(dists []float64) []float64 {
	out := make([]float64, len(dists))
	w2 := k.Width * k.Width
	for i, d := range dists {
		out[i] = math.Exp(-(d * d) / w2)
	}
	return out
}
