package profile

import (
	"fmt"
	"math"
	"sort"

	"github.com/glassbox-ml/lime/internal/dataset"
)

// DefaultBins is the default number of quantile bins for continuous features.
const DefaultBins = 4

// InvalidFeatureError reports a feature that cannot be profiled.
type InvalidFeatureError struct {
	Feature string
	Reason  string
}

func (e *InvalidFeatureError) Error() string {
	return fmt.Sprintf("invalid feature %q: %s", e.Feature, e.Reason)
}

// BinStat summarizes one quantile bin of a continuous feature.
// The bin covers [Lower, Upper); the outer bins are open-ended so that
// out-of-range values still land somewhere.
type BinStat struct {
	Lower float64 `json:"lower"` // -Inf for the first bin
	Upper float64 `json:"upper"` // +Inf for the last bin
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Prob  float64 `json:"prob"` // fraction of training rows in this bin
}

// FeatureSummary is the distribution summary of one training feature.
type FeatureSummary struct {
	Name       string             `json:"name"`
	Type       dataset.ColumnType `json:"type"`
	Degenerate bool               `json:"degenerate"`

	// Continuous features: Edges are the strictly increasing interior cut
	// points; Bins has len(Edges)+1 entries.
	Edges []float64 `json:"edges,omitempty"`
	Bins  []BinStat `json:"bins,omitempty"`

	// Categorical features: observed levels with empirical frequencies.
	Levels []string  `json:"levels,omitempty"`
	Freqs  []float64 `json:"freqs,omitempty"`
	Mode   string    `json:"mode,omitempty"` // most frequent level

	// Degenerate features reproduce this single observed value/level.
	ConstFloat float64 `json:"const_float,omitempty"`
	ConstLevel string  `json:"const_level,omitempty"`
}

// Profile holds per-feature distribution summaries built from training data.
// It is immutable after construction.
type Profile struct {
	Features []FeatureSummary
	byName   map[string]int
}

// New scans the training table and builds the profile. nBins <= 0 selects
// DefaultBins; nBins == 1 is rejected since a single bin carries no locality
// signal.
func New(tbl *dataset.Table, nBins int) (*Profile, error) {
	if tbl == nil || tbl.NumRows() == 0 {
		return nil, &InvalidFeatureError{Feature: "*", Reason: "empty training data"}
	}
	if nBins <= 0 {
		nBins = DefaultBins
	}
	if nBins < 2 {
		return nil, &InvalidFeatureError{Feature: "*", Reason: fmt.Sprintf("n_bins must be >= 2, got %d", nBins)}
	}

	p := &Profile{
		Features: make([]FeatureSummary, tbl.Schema.Len()),
		byName:   make(map[string]int, tbl.Schema.Len()),
	}

	for c := 0; c < tbl.Schema.Len(); c++ {
		name := tbl.Schema.Names[c]
		p.byName[name] = c

		var fs FeatureSummary
		var err error
		switch tbl.Schema.Types[c] {
		case dataset.Continuous:
			fs, err = summarizeContinuous(name, tbl.Floats(c), nBins)
		case dataset.Categorical:
			fs, err = summarizeCategorical(name, tbl.Levels(c))
		default:
			err = &InvalidFeatureError{Feature: name, Reason: "unsupported column type"}
		}
		if err != nil {
			return nil, err
		}
		p.Features[c] = fs
	}

	return p, nil
}

// Index returns the feature position for a name, or -1.
func (p *Profile) Index(name string) int {
	if i, ok := p.byName[name]; ok {
		return i
	}
	return -1
}

// Len returns the number of profiled features.
func (p *Profile) Len() int { return len(p.Features) }

// Usable returns the indices of non-degenerate features, ascending.
func (p *Profile) Usable() []int {
	var out []int
	for i, f := range p.Features {
		if !f.Degenerate {
			out = append(out, i)
		}
	}
	return out
}

// BinIndex locates the half-open bin containing v for a continuous feature.
// Values below the first cut point land in bin 0; values at or above the last
// cut point land in the final bin.
func (p *Profile) BinIndex(feat int, v float64) int {
	edges := p.Features[feat].Edges
	return sort.SearchFloat64s(edges, v+tiny(v))
}

// tiny nudges the search so that a value equal to a cut point lands in the
// upper bin, matching the [lower, upper) convention.
func tiny(v float64) float64 {
	if v == 0 {
		return math.SmallestNonzeroFloat64
	}
	return math.Abs(v) * 1e-12
}

// LevelIndex returns the index of a categorical level, or -1 if the level was
// never observed in training.
func (p *Profile) LevelIndex(feat int, level string) int {
	for i, l := range p.Features[feat].Levels {
		if l == level {
			return i
		}
	}
	return -1
}

func summarizeContinuous(name string, vals []float64, nBins int) (FeatureSummary, error) {
	fs := FeatureSummary{Name: name, Type: dataset.Continuous}

	minV, maxV := vals[0], vals[0]
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fs, &InvalidFeatureError{Feature: name, Reason: "non-finite value"}
		}
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	// Constant feature: retained but degenerate, perturbation reproduces it.
	if minV == maxV {
		fs.Degenerate = true
		fs.ConstFloat = minV
		return fs, nil
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	// Quantile cut points at i/nBins for i = 1..nBins-1, deduplicated so the
	// edges stay strictly increasing (heavy ties can collapse bins).
	var edges []float64
	for i := 1; i < nBins; i++ {
		q := quantile(sorted, float64(i)/float64(nBins))
		if len(edges) == 0 || q > edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}
	fs.Edges = edges

	// Per-bin mean/std and occupancy.
	k := len(edges) + 1
	sums := make([]float64, k)
	sqs := make([]float64, k)
	counts := make([]float64, k)
	for _, v := range vals {
		b := sort.SearchFloat64s(edges, v+tiny(v))
		sums[b] += v
		sqs[b] += v * v
		counts[b]++
	}

	fs.Bins = make([]BinStat, k)
	n := float64(len(vals))
	for b := 0; b < k; b++ {
		bs := BinStat{Lower: math.Inf(-1), Upper: math.Inf(1)}
		if b > 0 {
			bs.Lower = edges[b-1]
		}
		if b < k-1 {
			bs.Upper = edges[b]
		}
		if counts[b] > 0 {
			bs.Mean = sums[b] / counts[b]
			variance := sqs[b]/counts[b] - bs.Mean*bs.Mean
			if variance > 0 {
				bs.Std = math.Sqrt(variance)
			}
			bs.Prob = counts[b] / n
		}
		fs.Bins[b] = bs
	}

	return fs, nil
}

func summarizeCategorical(name string, levels []string) (FeatureSummary, error) {
	fs := FeatureSummary{Name: name, Type: dataset.Categorical}

	counts := make(map[string]int)
	for _, l := range levels {
		counts[l]++
	}

	distinct := make([]string, 0, len(counts))
	for l := range counts {
		distinct = append(distinct, l)
	}
	sort.Strings(distinct)

	if len(distinct) == 1 {
		fs.Degenerate = true
		fs.ConstLevel = distinct[0]
		return fs, nil
	}

	n := float64(len(levels))
	fs.Levels = distinct
	fs.Freqs = make([]float64, len(distinct))
	best := 0
	for i, l := range distinct {
		fs.Freqs[i] = float64(counts[l]) / n
		if counts[l] > counts[distinct[best]] {
			best = i
		}
	}
	fs.Mode = distinct[best]

	return fs, nil
}

// quantile returns the q-th quantile of sorted values with linear
// interpolation between order statistics.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
