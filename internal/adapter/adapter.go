package adapter

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/glassbox-ml/lime/internal/dataset"
)

// Kind classifies what a model's prediction frame looks like.
type Kind string

const (
	Classification Kind = "classification" // one probability column per class
	Regression     Kind = "regression"     // a single numeric column
)

// Frame is a prediction table: one row per input row, one named column per
// class probability (classification) or a single column (regression).
type Frame struct {
	Columns []string
	Values  [][]float64
}

// Column returns the index of a named column, or -1.
func (f *Frame) Column(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Validate checks frame shape and, for classification, that each row's
// probabilities sum to 1 within tolerance.
func (f *Frame) Validate(kind Kind, nRows int) error {
	if len(f.Values) != nRows {
		return fmt.Errorf("prediction frame has %d rows, want %d", len(f.Values), nRows)
	}
	for i, row := range f.Values {
		if len(row) != len(f.Columns) {
			return fmt.Errorf("prediction frame row %d has %d values, want %d", i, len(row), len(f.Columns))
		}
	}
	if kind == Regression && len(f.Columns) != 1 {
		return fmt.Errorf("regression frame must have exactly one column, got %d", len(f.Columns))
	}
	if kind == Classification {
		for i, row := range f.Values {
			sum := 0.0
			for _, v := range row {
				if v < -1e-9 || v > 1+1e-9 {
					return fmt.Errorf("probability out of [0,1] in frame row %d: %g", i, v)
				}
				sum += v
			}
			if math.Abs(sum-1) > 1e-6 {
				return fmt.Errorf("probabilities in frame row %d sum to %g, want 1", i, sum)
			}
		}
	}
	return nil
}

// Adapter is the capability set any pluggable model must supply. The model
// value itself stays opaque; the adapter interprets it.
type Adapter interface {
	// ModelKind reports whether the model classifies or regresses.
	ModelKind(model any) (Kind, error)
	// PredictAsFrame runs the model on feature rows and returns the
	// prediction frame. It must honor ctx cancellation and deadlines.
	PredictAsFrame(ctx context.Context, model any, rows []dataset.Row) (*Frame, error)
}

// UnsupportedModelError reports a model type with no resolvable adapter,
// naming the capability methods a custom adapter must supply.
type UnsupportedModelError struct {
	ModelType string
	Missing   []string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("no adapter registered for model type %s; register an adapter supplying %s",
		e.ModelType, strings.Join(e.Missing, " and "))
}

// capabilities are the method names a custom adapter must provide; reported
// verbatim in UnsupportedModelError so callers know what to implement.
var capabilities = []string{"ModelKind", "PredictAsFrame"}

// SelfAdapting is satisfied by model values that carry their own capability
// methods; such models need no registry entry.
type SelfAdapting interface {
	ModelKind() (Kind, error)
	PredictAsFrame(ctx context.Context, rows []dataset.Row) (*Frame, error)
}

type selfAdapter struct{}

func (selfAdapter) ModelKind(model any) (Kind, error) {
	return model.(SelfAdapting).ModelKind()
}

func (selfAdapter) PredictAsFrame(ctx context.Context, model any, rows []dataset.Row) (*Frame, error) {
	return model.(SelfAdapting).PredictAsFrame(ctx, rows)
}

// registry maps concrete model types to adapters. Process-wide, append-only:
// built-in entries are added at init, callers extend it via Register before
// constructing explainers.
var registry = struct {
	mu     sync.RWMutex
	byType map[reflect.Type]Adapter
}{byType: make(map[reflect.Type]Adapter)}

// Register binds an adapter to the concrete type of the given model value.
// Later registrations for the same type win, so callers can override a
// built-in adapter.
func Register(model any, a Adapter) {
	t := reflect.TypeOf(model)
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.byType[t] = a
}

// Resolve finds the adapter for a model by its concrete runtime type.
// Self-adapting models resolve without a registry entry.
func Resolve(model any) (Adapter, error) {
	if model == nil {
		return nil, &UnsupportedModelError{ModelType: "<nil>", Missing: capabilities}
	}

	t := reflect.TypeOf(model)
	registry.mu.RLock()
	a, ok := registry.byType[t]
	registry.mu.RUnlock()
	if ok {
		return a, nil
	}

	if _, ok := model.(SelfAdapting); ok {
		return selfAdapter{}, nil
	}

	return nil, &UnsupportedModelError{ModelType: t.String(), Missing: capabilities}
}

// RegisteredTypes lists the model types currently resolvable, sorted.
func RegisteredTypes() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make([]string, 0, len(registry.byType))
	for t := range registry.byType {
		out = append(out, t.String())
	}
	sort.Strings(out)
	return out
}
