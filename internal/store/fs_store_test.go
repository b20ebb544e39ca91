package store

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/homfit/internal/geom"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}

	return store, tempDir
}

// createTestRecord creates a record with test data.
func createTestRecord(jobID string) *Record {
	return &Record{
		JobID:     jobID,
		H:         geom.Homography{1.1, 0.02, 4, -0.01, 0.95, -2, 1e-4, -5e-5, 1},
		Inliers:   87,
		NSamples:  100,
		BestIter:  42,
		Timestamp: time.Now(),
		Config: JobConfig{
			MatchesPath: "testdata/matches.csv",
			Method:      "ransac",
			Iterations:  500,
			Threshold:   3.0,
			Seed:        42,
			Backend:     "cpu",
		},
	}
}

func TestNewFSStore(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store == nil {
		t.Fatal("Expected non-nil store")
	}

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveRecord(t *testing.T) {
	store, tempDir := setupTestStore(t)

	jobID := "test-job-123"
	record := createTestRecord(jobID)

	if err := store.SaveRecord(jobID, record); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "jobs", jobID, "record.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Record file was not created at %s", expectedPath)
	}

	// Verify no temp file remains
	tempPath := expectedPath + ".tmp"
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Errorf("Temp file should not exist after save: %s", tempPath)
	}
}

func TestSaveRecord_EmptyJobID(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveRecord("", createTestRecord("any-id")); err == nil {
		t.Fatal("Expected error for empty jobID")
	}
}

func TestSaveRecord_NilRecord(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveRecord("job", nil); err == nil {
		t.Fatal("Expected error for nil record")
	}
}

func TestLoadRecord_RoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)

	jobID := "round-trip-job"
	saved := createTestRecord(jobID)
	if err := store.SaveRecord(jobID, saved); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}

	loaded, err := store.LoadRecord(jobID)
	if err != nil {
		t.Fatalf("LoadRecord failed: %v", err)
	}

	if loaded.H != saved.H {
		t.Errorf("H mismatch: got %v, want %v", loaded.H, saved.H)
	}
	if loaded.Inliers != saved.Inliers {
		t.Errorf("Inliers = %d, want %d", loaded.Inliers, saved.Inliers)
	}
	if loaded.Config != saved.Config {
		t.Errorf("Config mismatch: got %+v, want %+v", loaded.Config, saved.Config)
	}
}

func TestLoadRecord_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadRecord("no-such-job")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestListRecords(t *testing.T) {
	store, _ := setupTestStore(t)

	// Empty store lists cleanly
	infos, err := store.ListRecords()
	if err != nil {
		t.Fatalf("ListRecords failed on empty store: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("Expected no records, got %d", len(infos))
	}

	for _, id := range []string{"job-a", "job-b", "job-c"} {
		if err := store.SaveRecord(id, createTestRecord(id)); err != nil {
			t.Fatalf("SaveRecord(%s) failed: %v", id, err)
		}
	}

	infos, err = store.ListRecords()
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(infos))
	}
	for _, info := range infos {
		if info.Method != "ransac" || info.Inliers != 87 {
			t.Errorf("Unexpected metadata for %s: %+v", info.JobID, info)
		}
	}
}

func TestListRecords_SkipsIncompleteJobs(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveRecord("done", createTestRecord("done")); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}
	// A running job has a directory but no record yet
	if err := os.MkdirAll(filepath.Join(tempDir, "jobs", "running"), 0755); err != nil {
		t.Fatal(err)
	}

	infos, err := store.ListRecords()
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(infos) != 1 || infos[0].JobID != "done" {
		t.Fatalf("Expected only the finished job, got %+v", infos)
	}
}

func TestDeleteRecord(t *testing.T) {
	store, tempDir := setupTestStore(t)

	jobID := "doomed-job"
	if err := store.SaveRecord(jobID, createTestRecord(jobID)); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}

	if err := store.DeleteRecord(jobID); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tempDir, "jobs", jobID)); !os.IsNotExist(err) {
		t.Error("Job directory should be removed")
	}

	if err := store.DeleteRecord(jobID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRecordValidate(t *testing.T) {
	valid := createTestRecord("valid")
	if err := valid.Validate(); err != nil {
		t.Fatalf("Valid record failed validation: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Record)
	}{
		{"empty job id", func(r *Record) { r.JobID = "" }},
		{"non-finite model", func(r *Record) { r.H[0] = math.NaN() }},
		{"negative inliers", func(r *Record) { r.Inliers = -1 }},
		{"too few samples", func(r *Record) { r.NSamples = 3 }},
		{"inliers exceed samples", func(r *Record) { r.Inliers = 101 }},
		{"negative best iter", func(r *Record) { r.BestIter = -1 }},
		{"zero timestamp", func(r *Record) { r.Timestamp = time.Time{} }},
		{"empty method", func(r *Record) { r.Config.Method = "" }},
		{"zero iterations", func(r *Record) { r.Config.Iterations = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := createTestRecord("mutated")
			tc.mutate(r)
			if err := r.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
