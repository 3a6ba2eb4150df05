package adapter

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/glassbox-ml/lime/internal/dataset"
)

func TestResolve_Builtins(t *testing.T) {
	tests := []struct {
		name  string
		model any
		kind  Kind
	}{
		{"linear", &LinearModel{}, Regression},
		{"logistic", &LogisticModel{}, Classification},
		{"forest", &ForestModel{}, Classification},
		{"remote", &RemoteModel{Kind: Regression}, Regression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Resolve(tt.model)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			kind, err := a.ModelKind(tt.model)
			if err != nil {
				t.Fatalf("ModelKind: %v", err)
			}
			if kind != tt.kind {
				t.Errorf("kind = %s, want %s", kind, tt.kind)
			}
		})
	}
}

func TestResolve_UnsupportedModel(t *testing.T) {
	type mysteryModel struct{}

	_, err := Resolve(mysteryModel{})
	var ume *UnsupportedModelError
	if !errors.As(err, &ume) {
		t.Fatalf("expected UnsupportedModelError, got %v", err)
	}
	msg := ume.Error()
	if !strings.Contains(msg, "ModelKind") || !strings.Contains(msg, "PredictAsFrame") {
		t.Errorf("error must name the required capability methods, got %q", msg)
	}
	if !strings.Contains(ume.ModelType, "mysteryModel") {
		t.Errorf("error must name the model type, got %q", ume.ModelType)
	}

	if _, err := Resolve(nil); err == nil {
		t.Error("nil model must not resolve")
	}
}

type selfModel struct{ out float64 }

func (m selfModel) ModelKind() (Kind, error) { return Regression, nil }

func (m selfModel) PredictAsFrame(ctx context.Context, rows []dataset.Row) (*Frame, error) {
	f := &Frame{Columns: []string{"prediction"}, Values: make([][]float64, len(rows))}
	for i := range rows {
		f.Values[i] = []float64{m.out}
	}
	return f, nil
}

func TestResolve_SelfAdapting(t *testing.T) {
	a, err := Resolve(selfModel{out: 7})
	if err != nil {
		t.Fatalf("self-adapting model must resolve without registration: %v", err)
	}
	frame, err := a.PredictAsFrame(context.Background(), selfModel{out: 7}, []dataset.Row{{{Float: 1}}})
	if err != nil {
		t.Fatalf("PredictAsFrame: %v", err)
	}
	if frame.Values[0][0] != 7 {
		t.Errorf("got %g, want 7", frame.Values[0][0])
	}
}

func TestRegister_Override(t *testing.T) {
	type customModel struct{}

	Register(customModel{}, selfAdapter{})
	found := false
	for _, name := range RegisteredTypes() {
		if strings.Contains(name, "customModel") {
			found = true
		}
	}
	if !found {
		t.Error("registered type missing from RegisteredTypes")
	}
}

func TestLinearModel_Predict(t *testing.T) {
	m := &LinearModel{
		FeatureNames: []string{"age", "country"},
		Coefs:        []float64{2, 0},
		LevelEffects: map[string]map[string]float64{
			"country": {"US": 10, "DE": -5},
		},
		Intercept: 1,
	}
	a, _ := Resolve(m)
	frame, err := a.PredictAsFrame(context.Background(), m, []dataset.Row{
		{{Float: 3}, {Level: "US"}},
		{{Float: 1}, {Level: "DE"}},
	})
	if err != nil {
		t.Fatalf("PredictAsFrame: %v", err)
	}
	if err := frame.Validate(Regression, 2); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if frame.Values[0][0] != 17 { // 1 + 2*3 + 10
		t.Errorf("row 0 = %g, want 17", frame.Values[0][0])
	}
	if frame.Values[1][0] != -2 { // 1 + 2*1 - 5
		t.Errorf("row 1 = %g, want -2", frame.Values[1][0])
	}
}

func TestLogisticModel_ProbabilitiesSumToOne(t *testing.T) {
	m := &LogisticModel{
		Classes:      []string{"yes", "no", "maybe"},
		FeatureNames: []string{"x1", "x2"},
		Weights:      [][]float64{{1, -2}, {0.5, 0.5}, {-1, 1}},
		Intercepts:   []float64{0.1, -0.3, 0},
	}
	a, _ := Resolve(m)
	rows := []dataset.Row{
		{{Float: 1}, {Float: 2}},
		{{Float: -3}, {Float: 0.5}},
		{{Float: 100}, {Float: -100}}, // extreme logits must stay stable
	}
	frame, err := a.PredictAsFrame(context.Background(), m, rows)
	if err != nil {
		t.Fatalf("PredictAsFrame: %v", err)
	}
	if err := frame.Validate(Classification, len(rows)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for i, row := range frame.Values {
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("row %d probabilities sum to %g", i, sum)
		}
	}
}

func TestForestModel_VoteFractions(t *testing.T) {
	m := &ForestModel{
		Classes:      []string{"a", "b"},
		FeatureNames: []string{"x"},
		Stumps: []Stump{
			{Feature: "x", Threshold: 5, LeftClass: "a", RightClass: "b"},
			{Feature: "x", Threshold: 10, LeftClass: "a", RightClass: "b"},
			{Feature: "x", Threshold: 0, LeftClass: "a", RightClass: "b"},
			{Feature: "x", Threshold: 20, LeftClass: "a", RightClass: "b"},
		},
	}
	a, _ := Resolve(m)
	frame, err := a.PredictAsFrame(context.Background(), m, []dataset.Row{{{Float: 7}}})
	if err != nil {
		t.Fatalf("PredictAsFrame: %v", err)
	}
	// x=7: stumps with threshold 10 and 20 vote "a", the rest vote "b".
	if frame.Values[0][0] != 0.5 || frame.Values[0][1] != 0.5 {
		t.Errorf("vote fractions = %v, want [0.5 0.5]", frame.Values[0])
	}
	if err := frame.Validate(Classification, 1); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFrame_Validate(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		kind    Kind
		nRows   int
		wantErr bool
	}{
		{
			"regression single column ok",
			Frame{Columns: []string{"p"}, Values: [][]float64{{1.5}}},
			Regression, 1, false,
		},
		{
			"regression multi column rejected",
			Frame{Columns: []string{"a", "b"}, Values: [][]float64{{1, 2}}},
			Regression, 1, true,
		},
		{
			"classification sums to one",
			Frame{Columns: []string{"a", "b"}, Values: [][]float64{{0.3, 0.7}}},
			Classification, 1, false,
		},
		{
			"classification bad sum",
			Frame{Columns: []string{"a", "b"}, Values: [][]float64{{0.3, 0.5}}},
			Classification, 1, true,
		},
		{
			"row count mismatch",
			Frame{Columns: []string{"p"}, Values: [][]float64{{1}}},
			Regression, 2, true,
		},
		{
			"probability out of range",
			Frame{Columns: []string{"a", "b"}, Values: [][]float64{{1.4, -0.4}}},
			Classification, 1, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate(tt.kind, tt.nRows)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
