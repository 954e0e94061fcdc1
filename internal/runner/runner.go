// Package runner drives a study locally: it asks for trials, evaluates an
// objective, and tells the results back, with a bounded worker pool. The
// storage-mediated protocol stays the source of truth, so runners in
// other processes can work the same study concurrently.
package runner

import (
	"context"
	"errors"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/tansaku-dev/tansaku/internal/models"
	"github.com/tansaku-dev/tansaku/internal/study"
)

// ErrTrialPruned is returned by an Objective to report a pruning decision
// instead of a failure.
var ErrTrialPruned = errors.New("trial pruned")

// Objective evaluates one trial and returns its objective values, in the
// order of the study's directions.
type Objective func(ctx context.Context, trial *models.Trial) ([]float64, error)

// Runner evaluates trials for one backend's studies.
type Runner struct {
	allocator *study.Allocator
	finalizer *study.Finalizer
}

// New creates a Runner from the ask and tell halves of the protocol.
func New(allocator *study.Allocator, finalizer *study.Finalizer) *Runner {
	return &Runner{allocator: allocator, finalizer: finalizer}
}

// Optimize runs nTrials evaluations of objective against the study, at
// most parallelism at a time. Objective errors finalize the trial as
// failed (or pruned, for ErrTrialPruned) and do not stop the run; only
// protocol errors abort.
func (r *Runner) Optimize(ctx context.Context, studyName string, space map[string]models.Distribution, sampler study.Sampler, nTrials, parallelism int, objective Objective) error {
	if parallelism < 1 {
		parallelism = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i := 0; i < nTrials; i++ {
		g.Go(func() error {
			trial, err := r.allocator.Ask(ctx, studyName, space, sampler)
			if err != nil {
				return err
			}

			values, err := objective(ctx, trial)
			switch {
			case errors.Is(err, ErrTrialPruned):
				log.Printf("trial %d pruned", trial.Number)
				return r.finalizer.Tell(ctx, studyName, trial.Number, study.Pruned())
			case err != nil:
				log.Printf("trial %d failed: %v", trial.Number, err)
				return r.finalizer.Tell(ctx, studyName, trial.Number, study.Failed())
			default:
				return r.finalizer.Tell(ctx, studyName, trial.Number, study.Values(values...))
			}
		})
	}
	return g.Wait()
}
