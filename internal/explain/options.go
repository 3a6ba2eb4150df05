package explain

import (
	"fmt"
	"time"

	"github.com/glassbox-ml/lime/internal/adapter"
	"github.com/glassbox-ml/lime/internal/kernel"
	"github.com/glassbox-ml/lime/internal/perturb"
	"github.com/glassbox-ml/lime/internal/selector"
)

// Options configures one Explain call. The zero value of every field selects
// the documented default; an Explainer is never mutated by options.
type Options struct {
	// NPermutations is the synthetic neighborhood size per instance
	// (default 5000).
	NPermutations int

	// DistFn names the distance over the recoded matrix (default "gower").
	DistFn string

	// KernelWidth is the similarity kernel width; 0 selects 0.75·√F with F
	// the total feature count at call time.
	KernelWidth float64

	// NFeatures is how many features the surrogate uses; 0 selects all
	// non-degenerate features.
	NFeatures int

	// FeatureSelect names the selection strategy (default highest_weights).
	FeatureSelect selector.Strategy

	// Labels / TopLabels: for classification adapters exactly one must be
	// set — explicit class columns, or the k most probable classes for the
	// instance. Regression adapters require neither.
	Labels    []string
	TopLabels int

	// Seed makes sampling and tie-breaking reproducible. 0 seeds from the
	// clock, so each run may differ.
	Seed int64

	// PredictTimeout bounds each adapter prediction call; 0 disables the
	// budget.
	PredictTimeout time.Duration

	// Workers is the instance-level parallelism (default: number of CPUs).
	Workers int
}

// withDefaults resolves zero-value fields and validates the rest against the
// model kind.
func (o Options) withDefaults(kind adapter.Kind, nFeatures, nUsable int) (Options, error) {
	if o.NPermutations == 0 {
		o.NPermutations = perturb.DefaultPermutations
	}
	if o.NPermutations < 2 {
		return o, fmt.Errorf("n_permutations must be >= 2, got %d", o.NPermutations)
	}
	if o.DistFn == "" {
		o.DistFn = kernel.Gower
	}
	if _, err := kernel.Distance(o.DistFn); err != nil {
		return o, err
	}
	if o.KernelWidth == 0 {
		o.KernelWidth = kernel.DefaultWidth(nFeatures)
	}
	if o.KernelWidth <= 0 {
		return o, fmt.Errorf("kernel_width must be positive, got %g", o.KernelWidth)
	}
	if o.NFeatures == 0 {
		o.NFeatures = nUsable
	}
	if o.FeatureSelect == "" {
		o.FeatureSelect = selector.HighestWeights
	}

	switch kind {
	case adapter.Classification:
		if (len(o.Labels) == 0) == (o.TopLabels == 0) {
			return o, &AmbiguousTargetError{Labels: len(o.Labels), TopLabels: o.TopLabels}
		}
	case adapter.Regression:
		if len(o.Labels) > 0 || o.TopLabels > 0 {
			return o, fmt.Errorf("regression models take no label arguments")
		}
	}

	if o.Workers <= 0 {
		o.Workers = defaultWorkers()
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}

	return o, nil
}
