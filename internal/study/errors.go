package study

import "errors"

// Sentinel errors for lifecycle operations. Validation errors are raised
// before any storage mutation, so failing calls never leave partial state.
var (
	ErrInvalidDirection      = errors.New("invalid direction")
	ErrValueCountMismatch    = errors.New("objective value count mismatch")
	ErrInvalidObjectiveValue = errors.New("objective value must be finite")
	ErrNoCompletedTrials     = errors.New("study has no completed trials")
	ErrMultiObjective        = errors.New("study is multi-objective; use BestTrials")
	ErrNoSampler             = errors.New("search space requires a sampler")
	ErrSampleOutOfRange      = errors.New("sampled value outside its distribution")
)
