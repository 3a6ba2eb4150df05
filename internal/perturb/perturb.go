package perturb

import (
	"fmt"
	"math/rand"

	"github.com/glassbox-ml/lime/internal/dataset"
	"github.com/glassbox-ml/lime/internal/profile"
)

// DefaultPermutations is the default neighborhood size per instance.
const DefaultPermutations = 5000

// Sample is the synthetic neighborhood of one instance. Rows are model-ready
// feature rows; Recoded is the parallel N×F indicator matrix used solely for
// distance computation (1 = same bin / same level as the instance, else 0).
// Row 0 is always the exact original instance.
type Sample struct {
	Rows    []dataset.Row
	Recoded [][]float64
}

// Sampler draws synthetic neighbor rows from a feature profile. It is
// stateless apart from the immutable profile and safe for concurrent use;
// randomness comes from the caller-supplied rng.
type Sampler struct {
	profile *profile.Profile
}

// NewSampler creates a sampler over a built profile.
func NewSampler(p *profile.Profile) *Sampler {
	return &Sampler{profile: p}
}

// Sample draws n rows around instance. The first row is the instance itself
// (the zero-distance anchor).
func (s *Sampler) Sample(instance dataset.Row, n int, rng *rand.Rand) (*Sample, error) {
	if n < 2 {
		return nil, fmt.Errorf("n_permutations must be >= 2, got %d", n)
	}
	nf := s.profile.Len()
	if len(instance) != nf {
		return nil, fmt.Errorf("instance width %d does not match profile width %d", len(instance), nf)
	}

	out := &Sample{
		Rows:    make([]dataset.Row, n),
		Recoded: make([][]float64, n),
	}

	// Anchor row: identical to the instance, recoded all-ones.
	out.Rows[0] = instance.Clone()
	ones := make([]float64, nf)
	for i := range ones {
		ones[i] = 1
	}
	out.Recoded[0] = ones

	// Resolve each feature's anchor position (bin or level) once.
	anchorBin := make([]int, nf)
	anchorLevel := make([]string, nf)
	for f := 0; f < nf; f++ {
		fs := s.profile.Features[f]
		if fs.Degenerate {
			continue
		}
		switch fs.Type {
		case dataset.Continuous:
			anchorBin[f] = s.profile.BinIndex(f, instance[f].Float)
		case dataset.Categorical:
			lvl := instance[f].Level
			if s.profile.LevelIndex(f, lvl) < 0 {
				// Unseen level: treated as the most frequent one.
				lvl = fs.Mode
			}
			anchorLevel[f] = lvl
		}
	}

	for i := 1; i < n; i++ {
		row := make(dataset.Row, nf)
		rec := make([]float64, nf)
		for f := 0; f < nf; f++ {
			fs := s.profile.Features[f]

			if fs.Degenerate {
				// Degenerate features always reproduce the observed value.
				if fs.Type == dataset.Categorical {
					row[f] = dataset.Value{Level: fs.ConstLevel}
				} else {
					row[f] = dataset.Value{Float: fs.ConstFloat}
				}
				rec[f] = 1
				continue
			}

			switch fs.Type {
			case dataset.Continuous:
				bin := drawBin(fs, rng)
				row[f] = dataset.Value{Float: drawFromBin(fs, bin, instance[f].Float, anchorBin[f], rng)}
				if bin == anchorBin[f] {
					rec[f] = 1
				}
			case dataset.Categorical:
				lvl := drawLevel(fs, rng)
				row[f] = dataset.Value{Level: lvl}
				if lvl == anchorLevel[f] {
					rec[f] = 1
				}
			}
		}
		out.Rows[i] = row
		out.Recoded[i] = rec
	}

	return out, nil
}

// drawBin samples a bin index from the profile's empirical bin occupancy.
func drawBin(fs profile.FeatureSummary, rng *rand.Rand) int {
	u := rng.Float64()
	acc := 0.0
	for b, bin := range fs.Bins {
		acc += bin.Prob
		if u < acc {
			return b
		}
	}
	return len(fs.Bins) - 1
}

// drawFromBin redraws a value from the Normal fitted to the drawn bin.
// A degenerate bin (zero spread) yields the anchor's exact value when it is
// the anchor's own bin, otherwise the bin's single observed value.
func drawFromBin(fs profile.FeatureSummary, bin int, anchorVal float64, anchorBin int, rng *rand.Rand) float64 {
	bs := fs.Bins[bin]
	if bs.Std == 0 {
		if bin == anchorBin {
			return anchorVal
		}
		return bs.Mean
	}
	return rng.NormFloat64()*bs.Std + bs.Mean
}

// drawLevel samples a level from the population frequencies. This is an
// unconditional draw, not conditioned on the instance's own level, so the
// full neighborhood is explored.
func drawLevel(fs profile.FeatureSummary, rng *rand.Rand) string {
	u := rng.Float64()
	acc := 0.0
	for i, freq := range fs.Freqs {
		acc += freq
		if u < acc {
			return fs.Levels[i]
		}
	}
	return fs.Levels[len(fs.Levels)-1]
}
