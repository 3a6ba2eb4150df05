package adapter

import (
	"encoding/json"
	"fmt"
	"os"
)

// ModelSpec is the JSON envelope the CLI loads fitted models from. Exactly
// one of the model blocks must be present.
type ModelSpec struct {
	Linear   *LinearModel   `json:"linear,omitempty"`
	Logistic *LogisticModel `json:"logistic,omitempty"`
	Forest   *ForestModel   `json:"forest,omitempty"`
	Remote   *remoteSpec    `json:"remote,omitempty"`
}

type remoteSpec struct {
	Endpoint string  `json:"endpoint"`
	Kind     Kind    `json:"kind"`
	QPS      float64 `json:"qps,omitempty"`
}

// LoadModelSpec reads a model spec file and returns the model handle.
func LoadModelSpec(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model spec: %w", err)
	}

	var spec ModelSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse model spec: %w", err)
	}

	var models []any
	if spec.Linear != nil {
		models = append(models, spec.Linear)
	}
	if spec.Logistic != nil {
		models = append(models, spec.Logistic)
	}
	if spec.Forest != nil {
		models = append(models, spec.Forest)
	}
	if spec.Remote != nil {
		models = append(models, NewRemoteModel(spec.Remote.Endpoint, spec.Remote.Kind, spec.Remote.QPS))
	}

	switch len(models) {
	case 0:
		return nil, fmt.Errorf("model spec declares no model (want one of linear/logistic/forest/remote)")
	case 1:
		return models[0], nil
	default:
		return nil, fmt.Errorf("model spec declares %d models, want exactly one", len(models))
	}
}
