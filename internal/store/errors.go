package store

import "errors"

// Sentinel errors shared by every backend. Callers match with errors.Is;
// backends wrap these with the offending study name or trial number.
var (
	// ErrStudyNotFound indicates the named study does not exist.
	ErrStudyNotFound = errors.New("study not found")

	// ErrDuplicateStudyName indicates a create collided with an existing name.
	ErrDuplicateStudyName = errors.New("study name already exists")

	// ErrTrialNotFound indicates no trial with that number exists in the study.
	ErrTrialNotFound = errors.New("trial not found")

	// ErrTrialAlreadyFinished indicates a finalize attempt on a terminal
	// trial. This is a correctness signal and is never retried.
	ErrTrialAlreadyFinished = errors.New("trial already finished")

	// ErrConflict indicates a transient write conflict (two writers raced
	// on the same row, typically trial-number assignment). Safe to retry.
	ErrConflict = errors.New("storage conflict")
)
