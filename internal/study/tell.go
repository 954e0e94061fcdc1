package study

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tansaku-dev/tansaku/internal/models"
	"github.com/tansaku-dev/tansaku/internal/store"
)

// Outcome is the reported result of a trial evaluation: objective values,
// an explicit failure, or a pruning decision.
type Outcome struct {
	state  models.TrialState
	values []float64
}

// Values reports successful objective values.
func Values(vals ...float64) Outcome {
	return Outcome{state: models.TrialStateComplete, values: vals}
}

// Failed reports that the evaluation failed.
func Failed() Outcome {
	return Outcome{state: models.TrialStateFail}
}

// Pruned reports that the evaluation was stopped early by a pruner.
func Pruned() Outcome {
	return Outcome{state: models.TrialStatePruned}
}

// State returns the terminal state this outcome maps to.
func (o Outcome) State() models.TrialState { return o.state }

// Finalizer implements the tell half of the protocol. Finalization is
// exactly-once: the state transition is a compare-and-set in the backend,
// and a second tell on the same trial fails with ErrTrialAlreadyFinished.
// Failures are never retried here; the caller decides whether a fresh ask
// is appropriate.
type Finalizer struct {
	backend store.Backend
}

// NewFinalizer returns a Finalizer over the given backend.
func NewFinalizer(b store.Backend) *Finalizer {
	return &Finalizer{backend: b}
}

// Tell transitions the trial to the outcome's terminal state. Reported
// values must match the study's number of objectives and be finite;
// validation happens before any storage mutation, so a rejected tell
// leaves the trial running.
func (f *Finalizer) Tell(ctx context.Context, studyName string, number int64, outcome Outcome) error {
	studyRec, err := f.backend.GetStudy(ctx, studyName)
	if err != nil {
		return err
	}

	if outcome.state == models.TrialStateComplete {
		if len(outcome.values) != len(studyRec.Directions) {
			return fmt.Errorf("trial %d in study %q: got %d values, study has %d objectives: %w",
				number, studyName, len(outcome.values), len(studyRec.Directions), ErrValueCountMismatch)
		}
		for i, v := range outcome.values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("trial %d in study %q: value[%d] = %v: %w",
					number, studyName, i, v, ErrInvalidObjectiveValue)
			}
		}
	}

	return f.backend.FinishTrial(ctx, studyRec.ID, number, outcome.state, outcome.values, time.Now().UTC())
}
