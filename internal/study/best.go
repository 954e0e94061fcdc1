package study

import (
	"context"
	"fmt"

	"github.com/tansaku-dev/tansaku/internal/models"
	"github.com/tansaku-dev/tansaku/internal/store"
)

// Selector computes the best trial (single objective) or the
// Pareto-optimal set (multi objective) over a study's completed trials.
// Both queries are pure reads and safe to run concurrently with ask/tell.
type Selector struct {
	backend store.Backend
}

// NewSelector returns a Selector over the given backend.
func NewSelector(b store.Backend) *Selector {
	return &Selector{backend: b}
}

// Best returns the completed trial with the minimal (or maximal, per the
// study direction) objective value. Ties go to the lowest trial number,
// so the result is deterministic regardless of storage iteration order.
func (s *Selector) Best(ctx context.Context, studyName string) (*models.Trial, error) {
	studyRec, completed, err := s.completed(ctx, studyName)
	if err != nil {
		return nil, err
	}
	if studyRec.MultiObjective() {
		return nil, fmt.Errorf("study %q has %d objectives: %w", studyName, len(studyRec.Directions), ErrMultiObjective)
	}

	best := completed[0]
	bestVal := normalized(best.Values[0], studyRec.Directions[0])
	for _, t := range completed[1:] {
		// Strictly better only: completed is in number order, so equal
		// values keep the earlier trial.
		if v := normalized(t.Values[0], studyRec.Directions[0]); v < bestVal {
			best, bestVal = t, v
		}
	}
	return &best, nil
}

// BestTrials returns the Pareto-optimal subset of completed trials in
// ascending number order. The dominance check is the exact O(n²) pairwise
// comparison.
func (s *Selector) BestTrials(ctx context.Context, studyName string) ([]models.Trial, error) {
	studyRec, completed, err := s.completed(ctx, studyName)
	if err != nil {
		return nil, err
	}

	var front []models.Trial
	for i := range completed {
		dominated := false
		for j := range completed {
			if i != j && dominates(completed[j].Values, completed[i].Values, studyRec.Directions) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, completed[i])
		}
	}
	return front, nil
}

// completed loads the study and its COMPLETE trials in number order.
func (s *Selector) completed(ctx context.Context, studyName string) (*models.Study, []models.Trial, error) {
	studyRec, err := s.backend.GetStudy(ctx, studyName)
	if err != nil {
		return nil, nil, err
	}
	trials, err := s.backend.ListTrials(ctx, studyRec.ID)
	if err != nil {
		return nil, nil, err
	}

	var completed []models.Trial
	for _, t := range trials {
		if t.State == models.TrialStateComplete {
			completed = append(completed, t)
		}
	}
	if len(completed) == 0 {
		return nil, nil, fmt.Errorf("study %q: %w", studyName, ErrNoCompletedTrials)
	}
	return studyRec, completed, nil
}

// normalized maps a value to lower-is-better space.
func normalized(v float64, d models.Direction) float64 {
	if d == models.DirectionMaximize {
		return -v
	}
	return v
}

// dominates reports whether a dominates b: after normalizing every
// objective to lower-is-better, each component of a is <= b's and at
// least one is strictly <.
func dominates(a, b []float64, directions []models.Direction) bool {
	strict := false
	for i, d := range directions {
		av, bv := normalized(a[i], d), normalized(b[i], d)
		if av > bv {
			return false
		}
		if av < bv {
			strict = true
		}
	}
	return strict
}
