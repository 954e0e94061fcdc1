package study

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tansaku-dev/tansaku/internal/models"
)

// complete allocates one trial and finalizes it with the given values,
// returning its number.
func (f *fixture) complete(t *testing.T, values ...float64) int64 {
	t.Helper()
	ctx := context.Background()
	trial, err := f.allocator.Ask(ctx, "exp", nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.finalizer.Tell(ctx, "exp", trial.Number, Values(values...)))
	return trial.Number
}

func numbers(trials []models.Trial) []int64 {
	nums := make([]int64, len(trials))
	for i, tr := range trials {
		nums[i] = tr.Number
	}
	return nums
}

func TestBestMinimize(t *testing.T) {
	f := newFixture(t, models.DirectionMinimize)
	f.complete(t, 3.0)
	want := f.complete(t, 1.0)
	f.complete(t, 2.0)

	best, err := NewSelector(f.backend).Best(context.Background(), "exp")
	require.NoError(t, err)
	assert.Equal(t, want, best.Number)
	assert.Equal(t, []float64{1.0}, best.Values)
}

func TestBestMaximize(t *testing.T) {
	f := newFixture(t, models.DirectionMaximize)
	f.complete(t, 3.0)
	want := f.complete(t, 9.0)
	f.complete(t, 2.0)

	best, err := NewSelector(f.backend).Best(context.Background(), "exp")
	require.NoError(t, err)
	assert.Equal(t, want, best.Number)
}

func TestBestTieBreaksOnLowestNumber(t *testing.T) {
	f := newFixture(t, models.DirectionMinimize)
	f.complete(t, 5.0)
	first := f.complete(t, 1.0)
	f.complete(t, 1.0)

	best, err := NewSelector(f.backend).Best(context.Background(), "exp")
	require.NoError(t, err)
	assert.Equal(t, first, best.Number)
}

func TestBestIgnoresUnfinishedTrials(t *testing.T) {
	f := newFixture(t, models.DirectionMinimize)
	ctx := context.Background()

	// Running, failed, and pruned trials never win.
	_, err := f.allocator.Ask(ctx, "exp", nil, nil)
	require.NoError(t, err)
	failed, err := f.allocator.Ask(ctx, "exp", nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.finalizer.Tell(ctx, "exp", failed.Number, Failed()))
	want := f.complete(t, 7.0)

	best, err := NewSelector(f.backend).Best(ctx, "exp")
	require.NoError(t, err)
	assert.Equal(t, want, best.Number)
}

func TestBestNoCompletedTrials(t *testing.T) {
	f := newFixture(t, models.DirectionMinimize)
	ctx := context.Background()

	selector := NewSelector(f.backend)
	_, err := selector.Best(ctx, "exp")
	assert.ErrorIs(t, err, ErrNoCompletedTrials)
	_, err = selector.BestTrials(ctx, "exp")
	assert.ErrorIs(t, err, ErrNoCompletedTrials)

	// Still no completed trial after a failure
	trial, err := f.allocator.Ask(ctx, "exp", nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.finalizer.Tell(ctx, "exp", trial.Number, Failed()))
	_, err = selector.Best(ctx, "exp")
	assert.ErrorIs(t, err, ErrNoCompletedTrials)
}

func TestBestRejectsMultiObjective(t *testing.T) {
	f := newFixture(t, models.DirectionMinimize, models.DirectionMinimize)
	f.complete(t, 1.0, 2.0)

	_, err := NewSelector(f.backend).Best(context.Background(), "exp")
	assert.ErrorIs(t, err, ErrMultiObjective)
}

func TestParetoFront(t *testing.T) {
	f := newFixture(t, models.DirectionMinimize, models.DirectionMinimize)

	// (2,3) dominates (3,3); (1,5) and (0,10) are incomparable with
	// everything else, so the front is trials 0, 1, and 3 in number order.
	n0 := f.complete(t, 1, 5)
	n1 := f.complete(t, 2, 3)
	f.complete(t, 3, 3)
	n3 := f.complete(t, 0, 10)

	front, err := NewSelector(f.backend).BestTrials(context.Background(), "exp")
	require.NoError(t, err)
	assert.Equal(t, []int64{n0, n1, n3}, numbers(front))
}

func TestParetoFrontMixedDirections(t *testing.T) {
	// Minimize cost, maximize accuracy.
	f := newFixture(t, models.DirectionMinimize, models.DirectionMaximize)

	n0 := f.complete(t, 1.0, 0.9) // cheap and accurate
	f.complete(t, 2.0, 0.9)       // dominated by n0
	n2 := f.complete(t, 0.5, 0.7) // cheaper, less accurate
	f.complete(t, 1.5, 0.6)       // dominated by n0 and n2

	front, err := NewSelector(f.backend).BestTrials(context.Background(), "exp")
	require.NoError(t, err)
	assert.Equal(t, []int64{n0, n2}, numbers(front))
}

func TestParetoFrontSingleTrial(t *testing.T) {
	f := newFixture(t, models.DirectionMinimize, models.DirectionMinimize)
	n0 := f.complete(t, 1, 1)

	front, err := NewSelector(f.backend).BestTrials(context.Background(), "exp")
	require.NoError(t, err)
	assert.Equal(t, []int64{n0}, numbers(front))
}

func TestParetoEqualValuesKeepEachOther(t *testing.T) {
	// Equal vectors do not dominate each other; both stay in the front.
	f := newFixture(t, models.DirectionMinimize, models.DirectionMinimize)
	n0 := f.complete(t, 1, 2)
	n1 := f.complete(t, 1, 2)

	front, err := NewSelector(f.backend).BestTrials(context.Background(), "exp")
	require.NoError(t, err)
	assert.Equal(t, []int64{n0, n1}, numbers(front))
}

func TestDominates(t *testing.T) {
	minmin := []models.Direction{models.DirectionMinimize, models.DirectionMinimize}

	assert.True(t, dominates([]float64{1, 1}, []float64{2, 2}, minmin))
	assert.True(t, dominates([]float64{1, 2}, []float64{1, 3}, minmin))
	assert.False(t, dominates([]float64{1, 2}, []float64{1, 2}, minmin))
	assert.False(t, dominates([]float64{1, 3}, []float64{2, 2}, minmin))
	assert.False(t, dominates([]float64{0, 10}, []float64{1, 5}, minmin))
	assert.False(t, dominates([]float64{1, 5}, []float64{0, 10}, minmin))

	maxmax := []models.Direction{models.DirectionMaximize, models.DirectionMaximize}
	assert.True(t, dominates([]float64{2, 2}, []float64{1, 1}, maxmax))
	assert.False(t, dominates([]float64{1, 1}, []float64{2, 2}, maxmax))
}
