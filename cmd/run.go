package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cwbudde/homfit/internal/homest"
	"github.com/cwbudde/homfit/internal/matchio"
	"github.com/cwbudde/homfit/internal/opt"
	"github.com/cwbudde/homfit/internal/refine"
	"github.com/spf13/cobra"
)

var (
	matchesPath string
	outPath     string
	method      string
	iters       int
	threshold   float64
	seed        int64
	backend     string
	workers     int
	doRefine    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run single-shot homography estimation",
	Long:  `Estimates a homography from a correspondence file and writes the result as JSON.`,
	RunE:  runEstimation,
}

func init() {
	runCmd.Flags().StringVar(&matchesPath, "matches", "", "Correspondence file path, CSV or JSON (required)")
	runCmd.Flags().StringVar(&outPath, "out", "", "Output JSON path (default stdout)")
	runCmd.Flags().StringVar(&method, "method", "ransac", "Estimation method: ransac, lmeds")
	runCmd.Flags().IntVar(&iters, "iters", 1000, "Number of random hypotheses")
	runCmd.Flags().Float64Var(&threshold, "threshold", 3.0, "Inlier distance threshold in pixels")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	runCmd.Flags().StringVar(&backend, "backend", "cpu", "Estimator backend: cpu, opencl")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Worker goroutines (0 = all CPUs)")
	runCmd.Flags().BoolVar(&doRefine, "refine", false, "Polish the winning model with the mayfly optimizer")

	runCmd.MarkFlagRequired("matches")
	rootCmd.AddCommand(runCmd)
}

// runOutput is the JSON document the run command emits.
type runOutput struct {
	*homest.Result
	Refinement *refine.Result `json:"refinement,omitempty"`
}

func runEstimation(cmd *cobra.Command, args []string) error {
	slog.Info("Starting estimation", "matches", matchesPath, "method", method, "iters", iters, "backend", backend)

	matches, err := matchio.Load(matchesPath)
	if err != nil {
		return err
	}

	slog.Info("Loaded correspondences", "count", matches.Len())

	m, err := homest.ParseMethod(method)
	if err != nil {
		return err
	}

	estimator, cleanup, err := homest.NewEstimatorForBackend(backend)
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to create estimator: %w", err)
	}
	defer cleanup()

	start := time.Now()
	result, err := estimator.Estimate(matches, m, homest.Options{
		Iterations:      iters,
		InlierThreshold: threshold,
		Seed:            seed,
		Workers:         workers,
	})
	if err != nil {
		return fmt.Errorf("estimation failed: %w", err)
	}
	elapsed := time.Since(start)

	output := runOutput{Result: result}

	if doRefine {
		cfg := refine.DefaultConfig()
		cfg.Seed = seed
		optimizer := opt.NewMayfly(cfg.Iterations, cfg.PopSize, cfg.Seed)
		refined := refine.Refine(result.H, matches, threshold, optimizer, cfg)
		output.Refinement = &refined
		if refined.Improved {
			output.H = refined.H
		}
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	} else {
		fmt.Println(string(data))
	}

	slog.Info("Estimation complete",
		"elapsed", elapsed,
		"inliers", result.Inliers,
		"n_samples", result.NSamples,
		"best_iter", result.BestIter,
	)

	if outPath != "" {
		fmt.Printf("Wrote %s (%d/%d inliers, iteration %d)\n", outPath, result.Inliers, result.NSamples, result.BestIter)
	}

	return nil
}
