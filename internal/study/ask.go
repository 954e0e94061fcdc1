package study

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tansaku-dev/tansaku/internal/models"
	"github.com/tansaku-dev/tansaku/internal/store"
)

// Sampler is the externally supplied sampling capability. It is invoked
// once per search-space entry and must return a value consistent with the
// distribution. Any random stream involved is owned by the sampler, not
// by this package.
type Sampler interface {
	Sample(dist models.Distribution) (any, error)
}

// Allocator implements the ask half of the protocol: it mints a new
// running trial with a race-free dense number and records the sampled
// parameters against their distributions.
type Allocator struct {
	backend store.Backend

	// Number assignment is expected to contend when many workers share
	// one backend, so conflicts are retried here rather than surfaced.
	maxRetries int
	baseDelay  time.Duration
}

// NewAllocator returns an Allocator over the given backend.
func NewAllocator(b store.Backend) *Allocator {
	return &Allocator{backend: b, maxRetries: 5, baseDelay: 10 * time.Millisecond}
}

// Ask atomically creates a new trial for the study and returns it fully
// materialized (id and number assigned). An empty search space yields a
// trial with no params, for callers that supply parameters themselves
// before reporting a result.
func (a *Allocator) Ask(ctx context.Context, studyName string, space map[string]models.Distribution, sampler Sampler) (*models.Trial, error) {
	studyRec, err := a.backend.GetStudy(ctx, studyName)
	if err != nil {
		return nil, err
	}

	params, err := sampleSpace(space, sampler)
	if err != nil {
		return nil, err
	}

	var trial *models.Trial
	err = store.WithRetry(ctx, a.maxRetries, a.baseDelay, func() error {
		t, err := a.backend.CreateTrial(ctx, studyRec.ID, params)
		if err != nil {
			return err
		}
		trial = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("allocate trial in study %q: %w", studyName, err)
	}
	return trial, nil
}

// sampleSpace draws one value per search-space entry in deterministic
// (sorted) parameter order, validating each sample against its
// distribution before anything is persisted.
func sampleSpace(space map[string]models.Distribution, sampler Sampler) (map[string]models.ParamValue, error) {
	if len(space) == 0 {
		return map[string]models.ParamValue{}, nil
	}
	if sampler == nil {
		return nil, ErrNoSampler
	}

	names := make([]string, 0, len(space))
	for name := range space {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make(map[string]models.ParamValue, len(space))
	for _, name := range names {
		dist := space[name]
		if err := dist.Validate(); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		value, err := sampler.Sample(dist)
		if err != nil {
			return nil, fmt.Errorf("sample parameter %q: %w", name, err)
		}
		if !dist.Contains(value) {
			return nil, fmt.Errorf("parameter %q value %v: %w", name, value, ErrSampleOutOfRange)
		}
		params[name] = models.ParamValue{Value: value, Distribution: dist}
	}
	return params, nil
}
