package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// DistributionKind tags the variant of a Distribution.
type DistributionKind string

const (
	// DistributionFloat is a uniform-continuous range [Low, High].
	DistributionFloat DistributionKind = "float"
	// DistributionInt is a uniform-integer range [Low, High] walked in Step
	// increments.
	DistributionInt DistributionKind = "int"
	// DistributionCategorical is an ordered set of choices.
	DistributionCategorical DistributionKind = "categorical"
)

// Distribution is a tagged variant describing the space one parameter is
// drawn from. Exactly the fields for its Kind are meaningful; everything
// that interprets a Distribution switches exhaustively on Kind.
type Distribution struct {
	Kind    DistributionKind `json:"kind"`
	Low     float64          `json:"low,omitempty"`
	High    float64          `json:"high,omitempty"`
	Step    int64            `json:"step,omitempty"`
	Choices []any            `json:"choices,omitempty"`
}

// FloatDistribution returns a uniform-continuous distribution over [low, high].
func FloatDistribution(low, high float64) Distribution {
	return Distribution{Kind: DistributionFloat, Low: low, High: high}
}

// IntDistribution returns a uniform-integer distribution over [low, high]
// with the given step. A step of 0 is normalized to 1.
func IntDistribution(low, high, step int64) Distribution {
	if step == 0 {
		step = 1
	}
	return Distribution{Kind: DistributionInt, Low: float64(low), High: float64(high), Step: step}
}

// CategoricalDistribution returns a categorical distribution over choices.
func CategoricalDistribution(choices ...any) Distribution {
	return Distribution{Kind: DistributionCategorical, Choices: choices}
}

// Validate checks the distribution is internally consistent.
func (d Distribution) Validate() error {
	switch d.Kind {
	case DistributionFloat:
		if math.IsNaN(d.Low) || math.IsNaN(d.High) || d.Low > d.High {
			return fmt.Errorf("float distribution: invalid range [%v, %v]", d.Low, d.High)
		}
		return nil
	case DistributionInt:
		if d.Low > d.High {
			return fmt.Errorf("int distribution: invalid range [%v, %v]", d.Low, d.High)
		}
		if d.Step < 1 {
			return fmt.Errorf("int distribution: step must be >= 1, got %d", d.Step)
		}
		return nil
	case DistributionCategorical:
		if len(d.Choices) == 0 {
			return fmt.Errorf("categorical distribution: choices must be non-empty")
		}
		return nil
	default:
		return fmt.Errorf("unknown distribution kind %q", d.Kind)
	}
}

// Contains reports whether v is a value this distribution could have
// produced. Numeric values are accepted as float64 or int64; JSON
// round-trips turn both into float64.
func (d Distribution) Contains(v any) bool {
	switch d.Kind {
	case DistributionFloat:
		f, ok := asFloat(v)
		return ok && f >= d.Low && f <= d.High
	case DistributionInt:
		f, ok := asFloat(v)
		if !ok || f != math.Trunc(f) {
			return false
		}
		n := int64(f)
		lo, hi := int64(d.Low), int64(d.High)
		return n >= lo && n <= hi && (n-lo)%d.Step == 0
	case DistributionCategorical:
		for _, c := range d.Choices {
			if equalChoice(c, v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// equalChoice compares a stored choice against a candidate value, treating
// all numeric representations as equivalent. Choices that survive a JSON
// round trip come back as float64 or string.
func equalChoice(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	return a == b
}

// ParseSearchSpace decodes a JSON object mapping parameter names to
// distributions and validates every entry.
func ParseSearchSpace(data []byte) (map[string]Distribution, error) {
	space := map[string]Distribution{}
	if err := json.Unmarshal(data, &space); err != nil {
		return nil, fmt.Errorf("parse search space: %w", err)
	}
	for name, dist := range space {
		if err := dist.Validate(); err != nil {
			return nil, fmt.Errorf("search space entry %q: %w", name, err)
		}
	}
	return space, nil
}
