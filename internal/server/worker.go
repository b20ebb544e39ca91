package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/homfit/internal/homest"
	"github.com/cwbudde/homfit/internal/matchio"
	"github.com/cwbudde/homfit/internal/opt"
	"github.com/cwbudde/homfit/internal/refine"
	"github.com/cwbudde/homfit/internal/store"
)

// runJob executes an estimation job in the background. Results are
// persisted to recordStore; the stage-timing trace is written under
// dataDir when it is non-empty.
func runJob(ctx context.Context, jm *JobManager, recordStore store.Store, dataDir, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateRunning,
		Timestamp: time.Now(),
	})

	slog.Info("Starting job", "job_id", jobID, "matches", job.Config.MatchesPath, "method", job.Config.Method)

	matches, err := matchio.Load(job.Config.MatchesPath)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load matches: %w", err))
		return err
	}

	slog.Info("Loaded correspondences", "job_id", jobID, "count", matches.Len())

	method, err := homest.ParseMethod(job.Config.Method)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	estimator, cleanup, err := homest.NewEstimatorForBackend(job.Config.Backend)
	if err != nil {
		cleanup()
		markJobFailed(jm, jobID, fmt.Errorf("failed to create estimator: %w", err))
		return err
	}
	defer cleanup()

	// Check for cancellation before the expensive part
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	start := time.Now()
	result, err := estimator.Estimate(matches, method, homest.Options{
		Iterations:      job.Config.Iterations,
		InlierThreshold: job.Config.Threshold,
		Seed:            job.Config.Seed,
	})
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("estimation failed: %w", err))
		return err
	}
	elapsed := time.Since(start)

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	record := store.NewRecord(jobID, result, job.Config)

	if job.Config.Refine {
		cfg := refine.DefaultConfig()
		optimizer := opt.NewMayfly(cfg.Iterations, cfg.PopSize, cfg.Seed)
		refined := refine.Refine(result.H, matches, job.Config.Threshold, optimizer, cfg)
		if refined.Improved {
			record.H = refined.H
			record.RefinedError = refined.FinalError
			slog.Info("Refinement improved model",
				"job_id", jobID,
				"initial_error", refined.InitialError,
				"final_error", refined.FinalError,
			)
		}
	}

	if err := recordStore.SaveRecord(jobID, record); err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to save record: %w", err))
		return err
	}

	if dataDir != "" {
		if err := writeTrace(dataDir, jobID, result); err != nil {
			// Trace is an auxiliary artifact; the record already landed
			slog.Warn("Failed to write trace", "job_id", jobID, "error", err)
		}
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.H = record.H
		j.Inliers = result.Inliers
		j.NSamples = result.NSamples
		j.BestIter = result.BestIter
		j.MinMedian = result.MinMedian
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"inliers", result.Inliers,
		"n_samples", result.NSamples,
		"best_iter", result.BestIter,
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCompleted,
		Inliers:   result.Inliers,
		Timestamp: time.Now(),
	})

	return nil
}

// writeTrace records per-stage wall-clock durations as a JSONL trace.
func writeTrace(dataDir, jobID string, result *homest.Result) error {
	tw, err := store.NewTraceWriter(dataDir, jobID)
	if err != nil {
		return err
	}
	defer tw.Close()

	now := time.Now()
	entries := []store.TraceEntry{
		{Stage: "build", DurationMS: ms(result.Timings.Build), Timestamp: now},
		{Stage: "evaluate", DurationMS: ms(result.Timings.Evaluate), Timestamp: now},
		{Stage: "reduce", DurationMS: ms(result.Timings.Reduce), Timestamp: now},
		{Stage: "select", DurationMS: ms(result.Timings.Select), Inliers: result.Inliers, Timestamp: now},
	}
	for _, e := range entries {
		if err := tw.Write(e); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateFailed,
		Timestamp: endTime,
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCancelled,
		Timestamp: endTime,
	})
	slog.Info("Job cancelled", "job_id", jobID)
}
