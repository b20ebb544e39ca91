package store

import (
	"time"

	"github.com/cwbudde/homfit/internal/geom"
	"github.com/cwbudde/homfit/internal/homest"
)

// JobConfig holds configuration for an estimation job (record copy).
// This avoids import cycles with the server package.
type JobConfig struct {
	MatchesPath string  `json:"matchesPath"`
	Method      string  `json:"method"` // ransac, lmeds
	Iterations  int     `json:"iterations"`
	Threshold   float64 `json:"threshold"`
	Seed        int64   `json:"seed"`
	Backend     string  `json:"backend"`
	Refine      bool    `json:"refine,omitempty"`
}

// Record is the persisted outcome of an estimation job. All fields are
// serialized to JSON; the record is self-contained so results remain
// readable after the input matches file is gone.
type Record struct {
	// JobID is the unique identifier for this estimation job.
	JobID string `json:"jobId"`

	// H is the estimated homography, scale-normalized.
	H geom.Homography `json:"h"`

	// Inliers is the consensus size of the winning model.
	Inliers int `json:"inliers"`

	// NSamples is the number of correspondences the job ran on.
	NSamples int `json:"nSamples"`

	// BestIter is the hypothesis iteration that produced H.
	BestIter int `json:"bestIter"`

	// MinMedian is the winning median squared error (LMedS only).
	MinMedian float64 `json:"minMedian,omitempty"`

	// RefinedError is the post-refinement mean reprojection error,
	// present only when refinement ran and improved the model.
	RefinedError float64 `json:"refinedError,omitempty"`

	// Timings holds per-stage wall-clock durations.
	Timings homest.StageTimings `json:"timings"`

	// Timestamp records when this record was created.
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration the record was produced under.
	Config JobConfig `json:"config"`
}

// RecordInfo contains record metadata without the full model, used for
// listing without deserializing every field.
type RecordInfo struct {
	JobID     string    `json:"jobId"`
	Method    string    `json:"method"`
	Inliers   int       `json:"inliers"`
	NSamples  int       `json:"nSamples"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecord creates a record from a finished estimation result.
func NewRecord(jobID string, res *homest.Result, config JobConfig) *Record {
	return &Record{
		JobID:     jobID,
		H:         res.H,
		Inliers:   res.Inliers,
		NSamples:  res.NSamples,
		BestIter:  res.BestIter,
		MinMedian: res.MinMedian,
		Timings:   res.Timings,
		Timestamp: time.Now(),
		Config:    config,
	}
}

// ToInfo converts a full Record to its metadata-only form.
func (r *Record) ToInfo() RecordInfo {
	return RecordInfo{
		JobID:     r.JobID,
		Method:    r.Config.Method,
		Inliers:   r.Inliers,
		NSamples:  r.NSamples,
		Timestamp: r.Timestamp,
	}
}

// Validate checks that the record has usable data.
func (r *Record) Validate() error {
	if r.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if !r.H.IsFinite() {
		return &ValidationError{Field: "H", Reason: "must be finite"}
	}
	if r.Inliers < 0 {
		return &ValidationError{Field: "Inliers", Reason: "cannot be negative"}
	}
	if r.NSamples < 4 {
		return &ValidationError{Field: "NSamples", Reason: "requires at least 4 correspondences"}
	}
	if r.Inliers > r.NSamples {
		return &ValidationError{Field: "Inliers", Reason: "cannot exceed NSamples"}
	}
	if r.BestIter < 0 {
		return &ValidationError{Field: "BestIter", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.Method == "" {
		return &ValidationError{Field: "Config.Method", Reason: "cannot be empty"}
	}
	if r.Config.Iterations <= 0 {
		return &ValidationError{Field: "Config.Iterations", Reason: "must be positive"}
	}
	return nil
}

// ValidationError represents a record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
