package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/glassbox-ml/lime/internal/adapter"
	"github.com/glassbox-ml/lime/internal/dataset"
	"github.com/glassbox-ml/lime/internal/explain"
	"github.com/glassbox-ml/lime/internal/profile"
	"github.com/glassbox-ml/lime/internal/selector"
	"github.com/glassbox-ml/lime/internal/store"
)

var (
	// Global flags
	dataPath string
	response string
	nBins    int

	// Explain flags
	modelPath     string
	instancesPath string
	outPath       string
	nPermutations int
	nFeatures     int
	featureSelect string
	distFn        string
	kernelWidth   float64
	labels        []string
	topLabels     int
	seed          int64
	timeoutStr    string
	workers       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lime",
		Short: "Local surrogate explanations for opaque predictive models",
		Long: `lime builds an explainer profile from tabular training data and fits
interpretable local surrogates around individual predictions of an opaque
model (classification or regression).`,
	}

	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "", "Training dataset (CSV with header)")
	rootCmd.PersistentFlags().StringVarP(&response, "response", "r", "", "Response column name (excluded from profiling)")
	rootCmd.PersistentFlags().IntVar(&nBins, "bins", profile.DefaultBins, "Quantile bins for continuous features")

	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(explainCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// profileCmd summarizes a dataset's feature profile.
func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Build and print the feature profile of a training dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := loadTraining()
			if err != nil {
				return err
			}
			prof, err := profile.New(tbl, nBins)
			if err != nil {
				return err
			}

			fmt.Printf("Profiled %d rows, %d features (%d bins)\n\n", tbl.NumRows(), prof.Len(), nBins)
			for _, fs := range prof.Features {
				switch {
				case fs.Degenerate && fs.Type == dataset.Categorical:
					fmt.Printf("%-24s categorical  DEGENERATE (constant level %q)\n", fs.Name, fs.ConstLevel)
				case fs.Degenerate:
					fmt.Printf("%-24s continuous   DEGENERATE (constant value %g)\n", fs.Name, fs.ConstFloat)
				case fs.Type == dataset.Categorical:
					fmt.Printf("%-24s categorical  %d levels, mode %q\n", fs.Name, len(fs.Levels), fs.Mode)
				default:
					fmt.Printf("%-24s continuous   %d bins, edges %v\n", fs.Name, len(fs.Bins), roundAll(fs.Edges))
				}
			}
			return nil
		},
	}
}

// explainCmd runs the full pipeline for instances read from a CSV file.
func explainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain model predictions for instances from a CSV file",
		RunE:  runExplain,
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Model spec file (JSON)")
	cmd.Flags().StringVarP(&instancesPath, "instances", "i", "", "Instances to explain (CSV, same feature columns)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output CSV path (default: stdout)")
	cmd.Flags().IntVar(&nPermutations, "permutations", 0, "Synthetic neighborhood size (default 5000)")
	cmd.Flags().IntVarP(&nFeatures, "features", "k", 0, "Features per explanation (default: all usable)")
	cmd.Flags().StringVar(&featureSelect, "select", "", "Selection strategy: forward_selection|highest_weights|lasso_path|tree")
	cmd.Flags().StringVar(&distFn, "dist", "", "Distance function: gower|euclidean|manhattan")
	cmd.Flags().Float64Var(&kernelWidth, "kernel-width", 0, "Similarity kernel width (default 0.75*sqrt(F))")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "Class label(s) to explain (classification)")
	cmd.Flags().IntVar(&topLabels, "top-labels", 0, "Explain the k most probable classes (classification)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for reproducibility (0 = nondeterministic)")
	cmd.Flags().StringVar(&timeoutStr, "predict-timeout", "", "Per-call model prediction budget (Go duration)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel instances (default: CPUs)")

	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("instances")

	return cmd
}

func runExplain(cmd *cobra.Command, args []string) error {
	tbl, err := loadTraining()
	if err != nil {
		return err
	}

	model, err := adapter.LoadModelSpec(modelPath)
	if err != nil {
		return err
	}

	explainer, err := explain.New(tbl, response, model, nBins)
	if err != nil {
		return err
	}

	instTbl, _, err := dataset.LoadCSV(instancesPath, response)
	if err != nil {
		// Instance files may omit the response column entirely.
		if instTbl, _, err = dataset.LoadCSV(instancesPath, ""); err != nil {
			return fmt.Errorf("load instances: %w", err)
		}
	}
	if err := sameSchema(tbl.Schema, instTbl.Schema); err != nil {
		return err
	}

	instances := make([]explain.Instance, instTbl.NumRows())
	for i, row := range instTbl.Rows {
		instances[i] = explain.Instance{Row: row}
	}

	opts := explain.Options{
		NPermutations: nPermutations,
		DistFn:        distFn,
		KernelWidth:   kernelWidth,
		NFeatures:     nFeatures,
		FeatureSelect: selector.Strategy(featureSelect),
		Labels:        labels,
		TopLabels:     topLabels,
		Seed:          seed,
		Workers:       workers,
	}
	if timeoutStr != "" {
		d, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid --predict-timeout: %w", err)
		}
		opts.PredictTimeout = d
	}

	results, err := explainer.Explain(context.Background(), instances, opts)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "instance %s failed: %v\n", r.InstanceID, r.Err)
		}
	}

	if err := writeRecords(store.Flatten(results)); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d instances failed", failed, len(results))
	}
	return nil
}

func loadTraining() (*dataset.Table, error) {
	if dataPath == "" {
		return nil, fmt.Errorf("--data is required")
	}
	if response == "" {
		return nil, fmt.Errorf("--response is required")
	}
	tbl, _, err := dataset.LoadCSV(dataPath, response)
	if err != nil {
		return nil, fmt.Errorf("load training data: %w", err)
	}
	return tbl, nil
}

func sameSchema(a, b dataset.Schema) error {
	if a.Len() != b.Len() {
		return fmt.Errorf("instance columns (%d) do not match training columns (%d)", b.Len(), a.Len())
	}
	for i := range a.Names {
		if a.Names[i] != b.Names[i] || a.Types[i] != b.Types[i] {
			return fmt.Errorf("instance column %d (%s %s) does not match training column (%s %s)",
				i, b.Names[i], b.Types[i], a.Names[i], a.Types[i])
		}
	}
	return nil
}

func writeRecords(recs []store.Record) error {
	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	defer w.Flush()

	if err := w.Write([]string{"instance_id", "label", "feature_description", "feature_weight", "model_fit", "model_prediction"}); err != nil {
		return err
	}
	for _, r := range recs {
		err := w.Write([]string{
			r.InstanceID, r.Label, r.Feature,
			strconv.FormatFloat(r.Weight, 'g', -1, 64),
			strconv.FormatFloat(r.ModelFit, 'g', -1, 64),
			strconv.FormatFloat(r.ModelPrediction, 'g', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func roundAll(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = math.Round(v*1000) / 1000
	}
	return out
}
