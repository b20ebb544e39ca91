package server

import (
	"testing"
)

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	config := JobConfig{
		MatchesPath: "testdata/matches.csv",
		Method:      "ransac",
		Iterations:  100,
		Threshold:   3.0,
		Seed:        42,
		Backend:     "cpu",
	}

	job := jm.CreateJob(config)

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Expected pending state, got %s", job.State)
	}
	if job.Config != config {
		t.Error("Job config should match input")
	}
	if job.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(JobConfig{MatchesPath: "m.csv"})

	got, exists := jm.GetJob(job.ID)
	if !exists {
		t.Fatal("Job should exist")
	}
	if got.ID != job.ID {
		t.Error("Retrieved job ID mismatch")
	}

	if _, exists := jm.GetJob("no-such-id"); exists {
		t.Error("Nonexistent job should not be found")
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(JobConfig{MatchesPath: "m.csv"})

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Inliers = 42
	})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateRunning {
		t.Errorf("Expected running state, got %s", got.State)
	}
	if got.Inliers != 42 {
		t.Errorf("Inliers = %d, want 42", got.Inliers)
	}

	if err := jm.UpdateJob("no-such-id", func(j *Job) {}); err == nil {
		t.Error("Expected error for unknown job ID")
	}
}

func TestJobManager_GetRunningJobs(t *testing.T) {
	jm := NewJobManager()

	a := jm.CreateJob(JobConfig{MatchesPath: "a.csv"})
	jm.CreateJob(JobConfig{MatchesPath: "b.csv"})

	jm.UpdateJob(a.ID, func(j *Job) { j.State = StateRunning })

	running := jm.GetRunningJobs()
	if len(running) != 1 {
		t.Fatalf("Expected 1 running job, got %d", len(running))
	}
	if running[0].ID != a.ID {
		t.Error("Wrong job reported as running")
	}
}

func TestEventBroadcaster_SubscribeBroadcast(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job-1")
	defer eb.Unsubscribe("job-1", ch)

	event := ProgressEvent{JobID: "job-1", State: StateRunning, Stage: "evaluate"}
	eb.Broadcast(event)

	select {
	case got := <-ch:
		if got.Stage != "evaluate" {
			t.Errorf("Stage = %q, want evaluate", got.Stage)
		}
	default:
		t.Fatal("Expected buffered event")
	}
}

func TestEventBroadcaster_LateSubscriberGetsLastEvent(t *testing.T) {
	eb := NewEventBroadcaster()

	eb.Broadcast(ProgressEvent{JobID: "job-2", State: StateCompleted, Inliers: 87})

	ch := eb.Subscribe("job-2")
	defer eb.Unsubscribe("job-2", ch)

	select {
	case got := <-ch:
		if got.State != StateCompleted || got.Inliers != 87 {
			t.Errorf("Unexpected replayed event: %+v", got)
		}
	default:
		t.Fatal("Late subscriber should receive the last event")
	}
}
