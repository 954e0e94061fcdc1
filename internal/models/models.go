// Package models defines the core domain types for tansaku.
package models

import "time"

// Direction says whether an objective is minimized or maximized.
type Direction string

const (
	DirectionMinimize Direction = "minimize"
	DirectionMaximize Direction = "maximize"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionMinimize || d == DirectionMaximize
}

// TrialState represents the current state of a trial.
type TrialState string

const (
	TrialStateRunning  TrialState = "running"
	TrialStateComplete TrialState = "complete"
	TrialStateFail     TrialState = "fail"
	TrialStatePruned   TrialState = "pruned"
)

// Finished reports whether the state is terminal. Terminal trials are
// immutable.
func (s TrialState) Finished() bool {
	return s != TrialStateRunning
}

// Study is a named optimization experiment with fixed objective directions.
type Study struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Directions  []Direction    `json:"directions"`
	UserAttrs   map[string]any `json:"user_attrs,omitempty"`
	SystemAttrs map[string]any `json:"system_attrs,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// MultiObjective reports whether the study has more than one objective.
func (s *Study) MultiObjective() bool {
	return len(s.Directions) > 1
}

// ParamValue is one sampled parameter: the chosen value tagged with the
// distribution it was drawn from, so it can be validated and redisplayed.
type ParamValue struct {
	Value        any          `json:"value"`
	Distribution Distribution `json:"distribution"`
}

// Trial is one evaluation attempt within a study.
//
// Number is dense and zero-based within the study: it equals the count of
// trials created in that study before it, and is never reused. Values is
// empty unless the trial is complete, in which case its length equals the
// study's number of directions.
type Trial struct {
	ID               string                `json:"id"`
	StudyID          string                `json:"study_id"`
	Number           int64                 `json:"number"`
	State            TrialState            `json:"state"`
	Params           map[string]ParamValue `json:"params,omitempty"`
	Values           []float64             `json:"values,omitempty"`
	UserAttrs        map[string]any        `json:"user_attrs,omitempty"`
	SystemAttrs      map[string]any        `json:"system_attrs,omitempty"`
	DatetimeStart    time.Time             `json:"datetime_start"`
	DatetimeComplete *time.Time            `json:"datetime_complete,omitempty"`
}

// Duration returns the wall time from start to completion. ok is false
// while the trial is still running.
func (t *Trial) Duration() (d time.Duration, ok bool) {
	if t.DatetimeComplete == nil {
		return 0, false
	}
	return t.DatetimeComplete.Sub(t.DatetimeStart), true
}

// StudySummary is the read projection consumed by reporting tools.
// TrialCount and EarliestStart are computed over the live trial set at
// query time, not cached.
type StudySummary struct {
	Name          string      `json:"name"`
	Directions    []Direction `json:"directions"`
	TrialCount    int64       `json:"trial_count"`
	EarliestStart *time.Time  `json:"earliest_start,omitempty"`
}
