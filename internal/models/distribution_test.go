package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionValidate(t *testing.T) {
	assert.NoError(t, FloatDistribution(-1, 1).Validate())
	assert.NoError(t, FloatDistribution(2, 2).Validate())
	assert.Error(t, FloatDistribution(1, -1).Validate())

	assert.NoError(t, IntDistribution(1, 10, 1).Validate())
	assert.NoError(t, IntDistribution(1, 10, 3).Validate())
	assert.Error(t, IntDistribution(10, 1, 1).Validate())
	assert.Error(t, Distribution{Kind: DistributionInt, Low: 0, High: 5, Step: 0}.Validate())

	assert.NoError(t, CategoricalDistribution("a").Validate())
	assert.Error(t, CategoricalDistribution().Validate())

	assert.Error(t, Distribution{Kind: "exotic"}.Validate())
}

func TestDistributionContains(t *testing.T) {
	f := FloatDistribution(-1, 1)
	assert.True(t, f.Contains(0.0))
	assert.True(t, f.Contains(-1.0))
	assert.True(t, f.Contains(1.0))
	assert.False(t, f.Contains(1.1))
	assert.False(t, f.Contains("x"))

	// step 2 over [1, 9]: only odd values
	i := IntDistribution(1, 9, 2)
	assert.True(t, i.Contains(int64(1)))
	assert.True(t, i.Contains(int64(9)))
	assert.False(t, i.Contains(int64(2)))
	assert.False(t, i.Contains(int64(11)))
	assert.False(t, i.Contains(1.5))
	// JSON decoding yields float64 for integers
	assert.True(t, i.Contains(float64(3)))

	c := CategoricalDistribution("a", "b", 3)
	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("z"))
	// numeric choices survive a float64 round trip
	assert.True(t, c.Contains(float64(3)))
}

func TestParamValueJSONRoundTrip(t *testing.T) {
	in := ParamValue{Value: 2.5, Distribution: FloatDistribution(-10, 10)}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out ParamValue
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Distribution, out.Distribution)
	assert.True(t, out.Distribution.Contains(out.Value))
}

func TestParseSearchSpace(t *testing.T) {
	space, err := ParseSearchSpace([]byte(`{
		"x": {"kind": "float", "low": -10, "high": 10},
		"n": {"kind": "int", "low": 1, "high": 9, "step": 2},
		"opt": {"kind": "categorical", "choices": ["adam", "sgd"]}
	}`))
	require.NoError(t, err)
	require.Len(t, space, 3)
	assert.Equal(t, DistributionFloat, space["x"].Kind)
	assert.EqualValues(t, 2, space["n"].Step)
	assert.Equal(t, []any{"adam", "sgd"}, space["opt"].Choices)

	_, err = ParseSearchSpace([]byte(`{"x": {"kind": "float", "low": 10, "high": -10}}`))
	assert.Error(t, err)
	_, err = ParseSearchSpace([]byte(`not json`))
	assert.Error(t, err)
}
