// Package sampler provides the default sampling capability: independent
// uniform draws over each distribution. The random stream is owned by the
// sampler, so a fixed seed gives reproducible parameter sequences.
package sampler

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/tansaku-dev/tansaku/internal/models"
)

// Random samples uniformly from each distribution kind. Safe for
// concurrent use; the internal rand.Rand is mutex-guarded.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a Random sampler seeded with seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Sample draws one value consistent with dist.
func (r *Random) Sample(dist models.Distribution) (any, error) {
	if err := dist.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch dist.Kind {
	case models.DistributionFloat:
		return dist.Low + r.rng.Float64()*(dist.High-dist.Low), nil
	case models.DistributionInt:
		lo, hi := int64(dist.Low), int64(dist.High)
		steps := (hi-lo)/dist.Step + 1
		return lo + dist.Step*r.rng.Int63n(steps), nil
	case models.DistributionCategorical:
		return dist.Choices[r.rng.Intn(len(dist.Choices))], nil
	default:
		return nil, fmt.Errorf("unknown distribution kind %q", dist.Kind)
	}
}
