package adapter

import (
	"context"
	"fmt"
	"math"

	"github.com/glassbox-ml/lime/internal/dataset"
)

// Built-in adapters for the bundled model flavors. Training happens outside
// this module; these types are containers for already-fitted parameters.

func init() {
	Register(&LinearModel{}, linearAdapter{})
	Register(&LogisticModel{}, logisticAdapter{})
	Register(&ForestModel{}, forestAdapter{})
	Register(&RemoteModel{}, remoteAdapter{})
}

// LinearModel is a fitted linear regressor. Continuous features contribute
// Coef·value; categorical features contribute a per-level effect.
type LinearModel struct {
	FeatureNames []string                      `json:"feature_names"`
	Coefs        []float64                     `json:"coefs"` // parallel to FeatureNames; ignored for categorical
	LevelEffects map[string]map[string]float64 `json:"level_effects,omitempty"`
	Intercept    float64                       `json:"intercept"`
	OutputName   string                        `json:"output_name,omitempty"` // frame column name, default "prediction"
}

func (m *LinearModel) score(row dataset.Row) float64 {
	z := m.Intercept
	for i := range m.FeatureNames {
		if effects, ok := m.LevelEffects[m.FeatureNames[i]]; ok {
			z += effects[row[i].Level]
			continue
		}
		z += m.Coefs[i] * row[i].Float
	}
	return z
}

type linearAdapter struct{}

func (linearAdapter) ModelKind(model any) (Kind, error) {
	return Regression, nil
}

func (linearAdapter) PredictAsFrame(ctx context.Context, model any, rows []dataset.Row) (*Frame, error) {
	m, ok := model.(*LinearModel)
	if !ok {
		return nil, fmt.Errorf("linear adapter received %T", model)
	}
	col := m.OutputName
	if col == "" {
		col = "prediction"
	}
	f := &Frame{Columns: []string{col}, Values: make([][]float64, len(rows))}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) != len(m.FeatureNames) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), len(m.FeatureNames))
		}
		f.Values[i] = []float64{m.score(row)}
	}
	return f, nil
}

// LogisticModel is a fitted softmax classifier: one weight vector and
// intercept per class. Categorical features use per-class level effects.
type LogisticModel struct {
	Classes      []string                        `json:"classes"`
	FeatureNames []string                        `json:"feature_names"`
	Weights      [][]float64                     `json:"weights"` // [class][feature]
	Intercepts   []float64                       `json:"intercepts"`
	LevelEffects []map[string]map[string]float64 `json:"level_effects,omitempty"` // per class
}

type logisticAdapter struct{}

func (logisticAdapter) ModelKind(model any) (Kind, error) {
	return Classification, nil
}

func (logisticAdapter) PredictAsFrame(ctx context.Context, model any, rows []dataset.Row) (*Frame, error) {
	m, ok := model.(*LogisticModel)
	if !ok {
		return nil, fmt.Errorf("logistic adapter received %T", model)
	}
	if len(m.Classes) < 2 {
		return nil, fmt.Errorf("logistic model needs at least 2 classes, got %d", len(m.Classes))
	}

	f := &Frame{Columns: append([]string(nil), m.Classes...), Values: make([][]float64, len(rows))}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logits := make([]float64, len(m.Classes))
		for c := range m.Classes {
			z := m.Intercepts[c]
			for j := range m.FeatureNames {
				if c < len(m.LevelEffects) && m.LevelEffects[c] != nil {
					if effects, ok := m.LevelEffects[c][m.FeatureNames[j]]; ok {
						z += effects[row[j].Level]
						continue
					}
				}
				z += m.Weights[c][j] * row[j].Float
			}
			logits[c] = z
		}
		f.Values[i] = softmax(logits)
	}
	return f, nil
}

// softmax with max-shift for numerical stability; rows sum to exactly 1 up
// to float rounding.
func softmax(logits []float64) []float64 {
	maxZ := logits[0]
	for _, z := range logits[1:] {
		maxZ = math.Max(maxZ, z)
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, z := range logits {
		out[i] = math.Exp(z - maxZ)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Stump is one fitted decision stump in a forest: numeric split on a
// continuous feature, or level-equality test on a categorical one.
type Stump struct {
	Feature   string  `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"` // continuous split: value <= threshold → LeftClass
	Level     string  `json:"level,omitempty"`     // categorical: level == Level → LeftClass
	LeftClass string  `json:"left_class"`
	RightClass string `json:"right_class"`
}

// ForestModel is a voting ensemble of fitted stumps. The class probability is
// the fraction of stumps voting for that class.
type ForestModel struct {
	Classes      []string `json:"classes"`
	FeatureNames []string `json:"feature_names"`
	Stumps       []Stump  `json:"stumps"`
}

func (m *ForestModel) vote(s Stump, row dataset.Row) string {
	for j, name := range m.FeatureNames {
		if name != s.Feature {
			continue
		}
		if s.Level != "" {
			if row[j].Level == s.Level {
				return s.LeftClass
			}
			return s.RightClass
		}
		if row[j].Float <= s.Threshold {
			return s.LeftClass
		}
		return s.RightClass
	}
	return s.RightClass
}

type forestAdapter struct{}

func (forestAdapter) ModelKind(model any) (Kind, error) {
	return Classification, nil
}

func (forestAdapter) PredictAsFrame(ctx context.Context, model any, rows []dataset.Row) (*Frame, error) {
	m, ok := model.(*ForestModel)
	if !ok {
		return nil, fmt.Errorf("forest adapter received %T", model)
	}
	if len(m.Stumps) == 0 {
		return nil, fmt.Errorf("forest model has no stumps")
	}

	classIdx := make(map[string]int, len(m.Classes))
	for i, c := range m.Classes {
		classIdx[c] = i
	}

	f := &Frame{Columns: append([]string(nil), m.Classes...), Values: make([][]float64, len(rows))}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		probs := make([]float64, len(m.Classes))
		for _, s := range m.Stumps {
			c, ok := classIdx[m.vote(s, row)]
			if !ok {
				return nil, fmt.Errorf("stump votes for unknown class %q", m.vote(s, row))
			}
			probs[c]++
		}
		for c := range probs {
			probs[c] /= float64(len(m.Stumps))
		}
		f.Values[i] = probs
	}
	return f, nil
}
