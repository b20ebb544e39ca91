package store

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestTraceWriteRead(t *testing.T) {
	baseDir := t.TempDir()
	jobID := "trace-job"

	tw, err := NewTraceWriter(baseDir, jobID)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	stages := []TraceEntry{
		{Stage: "build", DurationMS: 1.5, Timestamp: time.Now()},
		{Stage: "evaluate", DurationMS: 12.3, Timestamp: time.Now()},
		{Stage: "reduce", DurationMS: 0.4, Timestamp: time.Now()},
		{Stage: "select", DurationMS: 0.1, Inliers: 87, Timestamp: time.Now()},
	}
	for _, e := range stages {
		if err := tw.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, jobID)
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != len(stages) {
		t.Fatalf("Expected %d entries, got %d", len(stages), len(entries))
	}
	for i, e := range entries {
		if e.Stage != stages[i].Stage {
			t.Errorf("Entry %d stage = %q, want %q", i, e.Stage, stages[i].Stage)
		}
	}
	if entries[3].Inliers != 87 {
		t.Errorf("Select stage inliers = %d, want 87", entries[3].Inliers)
	}

	// Reader is exhausted
	if _, err := tr.Read(); err != io.EOF {
		t.Errorf("Expected io.EOF after ReadAll, got %v", err)
	}
}

func TestTraceFlushDurability(t *testing.T) {
	baseDir := t.TempDir()
	jobID := "flush-job"

	tw, err := NewTraceWriter(baseDir, jobID)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	defer tw.Close()

	if err := tw.Write(TraceEntry{Stage: "build", DurationMS: 1, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Entry must be visible before Close
	tr, err := NewTraceReader(baseDir, jobID)
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry after flush, got %d", len(entries))
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "missing-job")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
