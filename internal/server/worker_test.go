package server

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/homfit/internal/geom"
	"github.com/cwbudde/homfit/internal/store"
)

// writeTestMatches writes a CSV correspondence file generated from a known
// homography, with a few gross outliers mixed in.
func writeTestMatches(t *testing.T, path string, n, outliers int) geom.Homography {
	t.Helper()

	h := geom.Homography{1.2, 0.05, 3, -0.02, 0.9, -4, 2e-4, -1e-4, 1}
	rng := rand.New(rand.NewSource(7))

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	for i := 0; i < n; i++ {
		src := geom.Point2D{X: rng.Float64() * 200, Y: rng.Float64() * 200}
		dst := h.Apply(src)
		if i < outliers {
			dst.X += 100 + rng.Float64()*100
			dst.Y -= 100
		}
		fmt.Fprintf(f, "%f,%f,%f,%f\n", src.X, src.Y, dst.X, dst.Y)
	}
	return h
}

func TestRunJob_Completes(t *testing.T) {
	tmpDir := t.TempDir()
	matchesPath := filepath.Join(tmpDir, "matches.csv")
	trueH := writeTestMatches(t, matchesPath, 100, 5)

	jm := NewJobManager()
	recordStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	job := jm.CreateJob(JobConfig{
		MatchesPath: matchesPath,
		Method:      "ransac",
		Iterations:  300,
		Threshold:   3.0,
		Seed:        42,
		Backend:     "cpu",
	})

	if err := runJob(context.Background(), jm, recordStore, tmpDir, job.ID); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateCompleted {
		t.Fatalf("Expected completed state, got %s (error: %s)", got.State, got.Error)
	}
	if got.Inliers < 90 {
		t.Errorf("Expected at least 90 inliers, got %d", got.Inliers)
	}
	if got.EndTime == nil {
		t.Error("EndTime should be set")
	}

	// Estimated model should be close to the generator
	probe := geom.Point2D{X: 50, Y: 50}
	if d := got.H.Apply(probe).Distance(trueH.Apply(probe)); d > 1.0 {
		t.Errorf("Estimated model deviates by %f at probe point", d)
	}

	// Record must be persisted
	record, err := recordStore.LoadRecord(job.ID)
	if err != nil {
		t.Fatalf("LoadRecord failed: %v", err)
	}
	if record.Inliers != got.Inliers {
		t.Errorf("Record inliers = %d, job inliers = %d", record.Inliers, got.Inliers)
	}
	if err := record.Validate(); err != nil {
		t.Errorf("Persisted record failed validation: %v", err)
	}

	// Trace must hold the four pipeline stages
	tr, err := store.NewTraceReader(tmpDir, job.ID)
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("Expected 4 trace entries, got %d", len(entries))
	}
	if entries[0].Stage != "build" || entries[3].Stage != "select" {
		t.Errorf("Unexpected stage order: %v, %v", entries[0].Stage, entries[3].Stage)
	}
}

func TestRunJob_WithRefinement(t *testing.T) {
	tmpDir := t.TempDir()
	matchesPath := filepath.Join(tmpDir, "matches.csv")
	writeTestMatches(t, matchesPath, 60, 0)

	jm := NewJobManager()
	recordStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	job := jm.CreateJob(JobConfig{
		MatchesPath: matchesPath,
		Method:      "lmeds",
		Iterations:  200,
		Threshold:   3.0,
		Seed:        1,
		Backend:     "cpu",
		Refine:      true,
	})

	if err := runJob(context.Background(), jm, recordStore, tmpDir, job.ID); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateCompleted {
		t.Fatalf("Expected completed state, got %s (error: %s)", got.State, got.Error)
	}
	if !got.H.IsFinite() {
		t.Error("Completed job holds a non-finite model")
	}
}

func TestRunJob_MissingMatches(t *testing.T) {
	tmpDir := t.TempDir()

	jm := NewJobManager()
	recordStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	job := jm.CreateJob(JobConfig{
		MatchesPath: filepath.Join(tmpDir, "missing.csv"),
		Method:      "ransac",
		Iterations:  10,
		Threshold:   3.0,
		Backend:     "cpu",
	})

	if err := runJob(context.Background(), jm, recordStore, tmpDir, job.ID); err == nil {
		t.Fatal("Expected error for missing matches file")
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateFailed {
		t.Errorf("Expected failed state, got %s", got.State)
	}
	if got.Error == "" {
		t.Error("Failed job should carry an error message")
	}
}

func TestRunJob_UnknownBackend(t *testing.T) {
	tmpDir := t.TempDir()
	matchesPath := filepath.Join(tmpDir, "matches.csv")
	writeTestMatches(t, matchesPath, 20, 0)

	jm := NewJobManager()
	recordStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	job := jm.CreateJob(JobConfig{
		MatchesPath: matchesPath,
		Method:      "ransac",
		Iterations:  10,
		Threshold:   3.0,
		Backend:     "quantum",
	})

	if err := runJob(context.Background(), jm, recordStore, tmpDir, job.ID); err == nil {
		t.Fatal("Expected error for unknown backend")
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateFailed {
		t.Errorf("Expected failed state, got %s", got.State)
	}
}
