package explain

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/glassbox-ml/lime/internal/adapter"
	"github.com/glassbox-ml/lime/internal/dataset"
	"github.com/glassbox-ml/lime/internal/kernel"
	"github.com/glassbox-ml/lime/internal/metrics"
	"github.com/glassbox-ml/lime/internal/perturb"
	"github.com/glassbox-ml/lime/internal/profile"
	"github.com/glassbox-ml/lime/internal/selector"
	"github.com/glassbox-ml/lime/internal/surrogate"
)

// Instance is one row to explain, with an optional caller-supplied identifier.
type Instance struct {
	ID  string
	Row dataset.Row
}

// FeatureWeight is one selected feature's contribution in an explanation.
// Positive weights support the explained label, negative weights contradict it.
type FeatureWeight struct {
	Feature     string  `json:"feature"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Explanation is the immutable result for one (instance, label) pair.
type Explanation struct {
	InstanceID      string          `json:"instance_id"`
	Label           string          `json:"label"`
	Features        []FeatureWeight `json:"features"`
	ModelFit        float64         `json:"model_fit"`        // weighted R² of the surrogate; may be negative
	ModelPrediction float64         `json:"model_prediction"` // opaque model's output for the instance
	LocalPrediction float64         `json:"local_prediction"` // surrogate's fitted value at the instance
}

// Result carries one instance's explanations, or the error that stopped them.
// Per-instance errors never abort the batch.
type Result struct {
	InstanceID   string
	Explanations []Explanation
	Err          error
}

// Explainer generates explanations for many instances against one trained
// model. Immutable after construction; Explain calls are independent and
// side-effect-free on its state, so it is safe for concurrent use.
type Explainer struct {
	schema   dataset.Schema
	response string
	profile  *profile.Profile
	sampler  *perturb.Sampler
	adapter  adapter.Adapter
	model    any
	kind     adapter.Kind
	metrics  *metrics.Metrics
}

// New builds an explainer from training data and an opaque model handle.
// The adapter is resolved from the registry by the model's concrete type;
// an unresolvable type fails here, before any explain call. Profiling errors
// abort construction entirely (no partial explainer is usable).
func New(training *dataset.Table, response string, model any, nBins int) (*Explainer, error) {
	ad, err := adapter.Resolve(model)
	if err != nil {
		return nil, err
	}
	kind, err := ad.ModelKind(model)
	if err != nil {
		return nil, fmt.Errorf("model kind: %w", err)
	}

	prof, err := profile.New(training, nBins)
	if err != nil {
		return nil, fmt.Errorf("profiling training data: %w", err)
	}

	return &Explainer{
		schema:   training.Schema,
		response: response,
		profile:  prof,
		sampler:  perturb.NewSampler(prof),
		adapter:  ad,
		model:    model,
		kind:     kind,
		metrics:  nil,
	}, nil
}

// WithMetrics attaches Prometheus instruments. Returns the same explainer
// for chaining; call before the first Explain.
func (e *Explainer) WithMetrics(m *metrics.Metrics) *Explainer {
	e.metrics = m
	return e
}

// Kind reports whether the underlying model classifies or regresses.
func (e *Explainer) Kind() adapter.Kind { return e.kind }

// Profile exposes the feature profile (read-only by convention).
func (e *Explainer) Profile() *profile.Profile { return e.profile }

// Schema returns the feature schema the explainer was built over.
func (e *Explainer) Schema() dataset.Schema { return e.schema }

// Explain runs the full pipeline for every instance: sample → predict →
// weight → select → fit. Results come back in input order, labels innermost.
// Instances fan out over a worker pool; cancelling ctx stops dispatching new
// instances but lets in-flight ones finish.
func (e *Explainer) Explain(ctx context.Context, instances []Instance, opts Options) ([]Result, error) {
	opts, err := opts.withDefaults(e.kind, e.profile.Len(), len(e.profile.Usable()))
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, nil
	}

	results := make([]Result, len(instances))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := opts.Workers
	if workers > len(instances) {
		workers = len(instances)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				inst := instances[i]
				id := inst.ID
				if id == "" {
					id = fmt.Sprintf("instance-%d", i+1)
				}
				// Per-instance rng derived from the seed keeps results
				// reproducible regardless of worker scheduling.
				rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
				results[i] = e.explainOne(ctx, id, inst.Row, opts, rng)
			}
		}()
	}

dispatch:
	for i := range instances {
		select {
		case <-ctx.Done():
			// Whole-batch cancellation: stop dispatching, mark the rest.
			for j := i; j < len(instances); j++ {
				id := instances[j].ID
				if id == "" {
					id = fmt.Sprintf("instance-%d", j+1)
				}
				results[j] = Result{InstanceID: id, Err: ctx.Err()}
			}
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

// explainOne runs the pipeline for a single instance.
func (e *Explainer) explainOne(ctx context.Context, id string, row dataset.Row, opts Options, rng *rand.Rand) Result {
	start := time.Now()
	res := Result{InstanceID: id}

	fail := func(err error) Result {
		res.Err = err
		if e.metrics != nil {
			e.metrics.ExplanationsFailed.Inc()
		}
		return res
	}

	if len(row) != e.schema.Len() {
		return fail(fmt.Errorf("instance width %d does not match schema width %d", len(row), e.schema.Len()))
	}

	sample, err := e.sampler.Sample(row, opts.NPermutations, rng)
	if err != nil {
		return fail(fmt.Errorf("perturbation sampling: %w", err))
	}

	frame, err := e.predict(ctx, id, sample.Rows, opts.PredictTimeout)
	if err != nil {
		return fail(err)
	}
	if err := frame.Validate(e.kind, len(sample.Rows)); err != nil {
		return fail(fmt.Errorf("model adapter output: %w", err))
	}

	distFn, _ := kernel.Distance(opts.DistFn)
	k, err := kernel.New(opts.KernelWidth, e.profile.Len())
	if err != nil {
		return fail(err)
	}
	weights := k.Weights(kernel.Distances(sample.Recoded, distFn))

	labels, err := e.targetColumns(frame, opts)
	if err != nil {
		return fail(err)
	}

	X := e.designMatrix(sample, row)
	usable := e.profile.Usable()

	for _, col := range labels {
		y := make([]float64, len(frame.Values))
		for i := range frame.Values {
			y[i] = frame.Values[i][col]
		}

		picked, err := selector.Select(opts.FeatureSelect, X, y, weights, opts.NFeatures, usable, rng)
		if err != nil {
			return fail(err)
		}
		if e.metrics != nil {
			e.metrics.SelectionsByStrategy.WithLabelValues(string(opts.FeatureSelect)).Inc()
		}

		fit, err := surrogate.Ridge(X, picked, y, weights, surrogate.DefaultLambda)
		if err != nil {
			return fail(fmt.Errorf("surrogate fit: %w", err))
		}

		exp := Explanation{
			InstanceID:      id,
			Label:           frame.Columns[col],
			ModelFit:        fit.R2,
			ModelPrediction: y[0],
			LocalPrediction: fit.AnchorFit,
		}
		for j, c := range fit.Columns {
			exp.Features = append(exp.Features, FeatureWeight{
				Feature:     e.schema.Names[c],
				Description: e.profile.Describe(c, row[c]),
				Weight:      fit.Coefs[j],
			})
		}
		res.Explanations = append(res.Explanations, exp)

		if e.metrics != nil {
			e.metrics.ExplanationsTotal.Inc()
			e.metrics.FitQuality.Observe(clamp(fit.R2, -1, 1))
		}
	}

	if e.metrics != nil {
		e.metrics.ExplainLatency.Observe(time.Since(start).Seconds())
	}
	return res
}

// predict invokes the adapter under the configured budget. A deadline hit
// maps to PredictionTimeoutError, isolated to this instance.
func (e *Explainer) predict(ctx context.Context, id string, rows []dataset.Row, budget time.Duration) (*adapter.Frame, error) {
	predCtx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		predCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	frame, err := e.adapter.PredictAsFrame(predCtx, e.model, rows)
	if err != nil {
		if budget > 0 && ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || predCtx.Err() != nil) {
			if e.metrics != nil {
				e.metrics.PredictionTimeouts.Inc()
			}
			return nil, &PredictionTimeoutError{InstanceID: id, Budget: budget}
		}
		return nil, fmt.Errorf("model prediction: %w", err)
	}
	return frame, nil
}

// targetColumns resolves which frame columns to explain, in a stable order.
func (e *Explainer) targetColumns(frame *adapter.Frame, opts Options) ([]int, error) {
	if e.kind == adapter.Regression {
		return []int{0}, nil
	}

	if len(opts.Labels) > 0 {
		cols := make([]int, 0, len(opts.Labels))
		for _, l := range opts.Labels {
			c := frame.Column(l)
			if c < 0 {
				return nil, fmt.Errorf("label %q not among model classes %v", l, frame.Columns)
			}
			cols = append(cols, c)
		}
		return cols, nil
	}

	// TopLabels: the k most probable classes for the anchor row, ties broken
	// by column order.
	n := opts.TopLabels
	if n > len(frame.Columns) {
		n = len(frame.Columns)
	}
	order := make([]int, len(frame.Columns))
	for i := range order {
		order[i] = i
	}
	anchor := frame.Values[0]
	sort.SliceStable(order, func(a, b int) bool {
		return anchor[order[a]] > anchor[order[b]]
	})
	return order[:n], nil
}

// designMatrix builds the numeric n×F matrix the selector and surrogate fit
// on: continuous features keep their sampled value, categorical features
// become a same-level-as-the-instance indicator.
func (e *Explainer) designMatrix(sample *perturb.Sample, anchor dataset.Row) [][]float64 {
	nf := e.schema.Len()
	X := make([][]float64, len(sample.Rows))

	anchorLevels := make([]string, nf)
	for f := 0; f < nf; f++ {
		if e.schema.Types[f] != dataset.Categorical {
			continue
		}
		lvl := anchor[f].Level
		if e.profile.LevelIndex(f, lvl) < 0 && !e.profile.Features[f].Degenerate {
			lvl = e.profile.Features[f].Mode
		}
		anchorLevels[f] = lvl
	}

	for i, r := range sample.Rows {
		xi := make([]float64, nf)
		for f := 0; f < nf; f++ {
			if e.schema.Types[f] == dataset.Categorical {
				if r[f].Level == anchorLevels[f] {
					xi[f] = 1
				}
				continue
			}
			xi[f] = r[f].Float
		}
		X[i] = xi
	}
	return X
}

func defaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
