package store

// Store defines the interface for estimation record persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if a record doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRecord atomically saves a record for the given job, overwriting
	// any existing one. Implementations should use atomic write strategies
	// (temp file + rename) to prevent corruption on failure.
	SaveRecord(jobID string, record *Record) error

	// LoadRecord retrieves the record for the given job.
	// Returns ErrNotFound if no record exists for this jobID.
	LoadRecord(jobID string) (*Record, error)

	// ListRecords returns metadata for all available records. The returned
	// slice may be empty.
	ListRecords() ([]RecordInfo, error)

	// DeleteRecord removes the record and all associated artifacts for the
	// given job, including the stage-timing trace.
	// Returns ErrNotFound if no record exists for this jobID.
	DeleteRecord(jobID string) error
}

// ErrNotFound is returned when a requested record does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing record error.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "record not found: " + e.JobID
	}
	return "record not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
