package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tansaku-dev/tansaku/internal/models"
	"github.com/tansaku-dev/tansaku/internal/sampler"
	"github.com/tansaku-dev/tansaku/internal/store"
	"github.com/tansaku-dev/tansaku/internal/study"
)

func setup(t *testing.T) (*store.Memory, *Runner) {
	t.Helper()
	backend := store.NewMemory()
	_, err := study.NewRegistry(backend).Create(context.Background(), "exp",
		[]models.Direction{models.DirectionMinimize}, false)
	require.NoError(t, err)
	return backend, New(study.NewAllocator(backend), study.NewFinalizer(backend))
}

func listTrials(t *testing.T, backend *store.Memory) []models.Trial {
	t.Helper()
	studyRec, err := backend.GetStudy(context.Background(), "exp")
	require.NoError(t, err)
	trials, err := backend.ListTrials(context.Background(), studyRec.ID)
	require.NoError(t, err)
	return trials
}

func TestOptimizeCompletesAllTrials(t *testing.T) {
	backend, r := setup(t)
	ctx := context.Background()

	space := map[string]models.Distribution{"x": models.FloatDistribution(-10, 10)}
	objective := func(ctx context.Context, trial *models.Trial) ([]float64, error) {
		x := trial.Params["x"].Value.(float64)
		return []float64{(x + 5) * (x + 5)}, nil
	}

	err := r.Optimize(ctx, "exp", space, sampler.NewRandom(1), 20, 4, objective)
	require.NoError(t, err)

	trials := listTrials(t, backend)
	require.Len(t, trials, 20)
	for _, trial := range trials {
		assert.Equal(t, models.TrialStateComplete, trial.State)
		assert.Len(t, trial.Values, 1)
	}

	// Numbers stay dense under the worker pool
	for i, trial := range trials {
		assert.EqualValues(t, i, trial.Number)
	}

	best, err := study.NewSelector(backend).Best(ctx, "exp")
	require.NoError(t, err)
	for _, trial := range trials {
		assert.LessOrEqual(t, best.Values[0], trial.Values[0])
	}
}

func TestOptimizeRecordsFailures(t *testing.T) {
	backend, r := setup(t)

	objective := func(ctx context.Context, trial *models.Trial) ([]float64, error) {
		if trial.Number%2 == 0 {
			return nil, errors.New("diverged")
		}
		return []float64{1.0}, nil
	}

	err := r.Optimize(context.Background(), "exp", nil, nil, 10, 1, objective)
	require.NoError(t, err)

	var failed, complete int
	for _, trial := range listTrials(t, backend) {
		switch trial.State {
		case models.TrialStateFail:
			failed++
		case models.TrialStateComplete:
			complete++
		}
	}
	assert.Equal(t, 5, failed)
	assert.Equal(t, 5, complete)
}

func TestOptimizeRecordsPruned(t *testing.T) {
	backend, r := setup(t)

	objective := func(ctx context.Context, trial *models.Trial) ([]float64, error) {
		return nil, ErrTrialPruned
	}

	err := r.Optimize(context.Background(), "exp", nil, nil, 3, 2, objective)
	require.NoError(t, err)

	for _, trial := range listTrials(t, backend) {
		assert.Equal(t, models.TrialStatePruned, trial.State)
		assert.Empty(t, trial.Values)
	}
}

func TestOptimizeUnknownStudy(t *testing.T) {
	_, r := setup(t)

	err := r.Optimize(context.Background(), "missing", nil, nil, 1, 1,
		func(ctx context.Context, trial *models.Trial) ([]float64, error) {
			return []float64{0}, nil
		})
	assert.ErrorIs(t, err, store.ErrStudyNotFound)
}
