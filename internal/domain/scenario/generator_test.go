package scenario

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/internal/testutil"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

var (
	costKey  = superstructure.ParamKey{Kind: superstructure.ParamSourceCost, Unit: 1}
	priceKey = superstructure.ParamKey{Kind: superstructure.ParamProductPrice, Unit: 2}
)

func TestFactorial(t *testing.T) {
	set, err := Factorial([]Parameter{
		{Key: costKey, Levels: []float64{-0.1, 0, 0.1}},
		{Key: priceKey, Levels: []float64{-0.2, 0.2}, Probabilities: []float64{0.25, 0.75}},
	})
	require.NoError(t, err)
	require.Equal(t, 6, set.Len())

	assert.Equal(t, "s1", set.Scenarios[0].ID)
	assert.Equal(t, []float64{-0.1, -0.2}, set.Scenarios[0].Deviations)
	assert.Equal(t, []float64{-0.1, 0.2}, set.Scenarios[1].Deviations)
	assert.Equal(t, []float64{0.1, 0.2}, set.Scenarios[5].Deviations)
	assert.InDelta(t, 0.25/3, set.Scenarios[0].Probability, 1e-12)
	assert.InDelta(t, 0.75/3, set.Scenarios[1].Probability, 1e-12)

	mean := set.MeanDeviations()
	assert.InDelta(t, 0, mean[0], 1e-12)
	assert.InDelta(t, 0.1, mean[1], 1e-12)

	r, c := set.Deviations().Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 2, c)
}

func TestFactorial_Rejections(t *testing.T) {
	_, err := Factorial(nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidUncertainty))

	_, err = Factorial([]Parameter{{Key: costKey}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidUncertainty))

	_, err = Factorial([]Parameter{{Key: costKey, Levels: []float64{0, 1}, Probabilities: []float64{1}}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidUncertainty))

	_, err = Factorial([]Parameter{{Key: costKey, Levels: []float64{0, 1}, Probabilities: []float64{0.5, 0.6}}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidScenario))
}

func TestMonteCarlo_IsReproducible(t *testing.T) {
	params := []Parameter{
		{Key: costKey, Distribution: distuv.Uniform{Min: -0.1, Max: 0.1}},
		{Key: priceKey, Distribution: distuv.Normal{Mu: 0, Sigma: 0.05}},
	}
	a, err := MonteCarlo(params, 50, 7)
	require.NoError(t, err)
	b, err := MonteCarlo(params, 50, 7)
	require.NoError(t, err)
	c, err := MonteCarlo(params, 50, 8)
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.Deviations(), b.Deviations()))
	assert.False(t, mat.Equal(a.Deviations(), c.Deviations()))
	for _, sc := range a.Scenarios {
		assert.GreaterOrEqual(t, sc.Deviations[0], -0.1)
		assert.LessOrEqual(t, sc.Deviations[0], 0.1)
		assert.InDelta(t, 0.02, sc.Probability, 1e-12)
	}

	_, err = MonteCarlo([]Parameter{{Key: costKey}}, 10, 1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidUncertainty))
	_, err = MonteCarlo(params, 0, 1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidUncertainty))
}

func TestFromRecord(t *testing.T) {
	t.Run("factorial", func(t *testing.T) {
		set, err := FromRecord(testutil.TwoSourceCase().Uncertainty)
		require.NoError(t, err)
		assert.Equal(t, 3, set.Len())
		assert.Equal(t, []superstructure.ParamKey{costKey}, set.Parameters)
	})
	t.Run("matrix", func(t *testing.T) {
		set, err := FromRecord(&process.UncertaintyRecord{
			Method:        "matrix",
			Parameters:    []process.UncertainParameterRecord{{Key: "source_cost[1]"}, {Key: "product_price[2]"}},
			Matrix:        [][]float64{{0.1, 0}, {-0.1, 0.05}},
			Probabilities: []float64{0.4, 0.6},
		})
		require.NoError(t, err)
		assert.Equal(t, []float64{-0.1, 0.05}, set.Scenarios[1].Deviations)
		assert.Equal(t, []float64{0.4, 0.6}, set.Probabilities())
	})
	t.Run("montecarlo", func(t *testing.T) {
		set, err := FromRecord(&process.UncertaintyRecord{
			Method:     "montecarlo",
			Samples:    4,
			Seed:       3,
			Parameters: []process.UncertainParameterRecord{{Key: "source_cost[1]", Distribution: "uniform", Low: -0.2, High: 0.2}},
		})
		require.NoError(t, err)
		assert.Equal(t, 4, set.Len())
	})

	bad := map[string]*process.UncertaintyRecord{
		"nil":            nil,
		"unknown method": {Method: "latin", Parameters: []process.UncertainParameterRecord{{Key: "source_cost[1]", Levels: []float64{0}}}},
		"bad key":        {Parameters: []process.UncertainParameterRecord{{Key: "nope[1]", Levels: []float64{0}}}},
		"ragged matrix":  {Method: "matrix", Parameters: []process.UncertainParameterRecord{{Key: "source_cost[1]"}}, Matrix: [][]float64{{0.1, 0.2}}},
		"empty matrix":   {Method: "matrix", Parameters: []process.UncertainParameterRecord{{Key: "source_cost[1]"}}},
		"bad uniform":    {Method: "montecarlo", Samples: 2, Parameters: []process.UncertainParameterRecord{{Key: "source_cost[1]", Distribution: "uniform", Low: 1, High: 1}}},
		"bad normal":     {Method: "montecarlo", Samples: 2, Parameters: []process.UncertainParameterRecord{{Key: "source_cost[1]", Distribution: "normal"}}},
		"unknown dist":   {Method: "montecarlo", Samples: 2, Parameters: []process.UncertainParameterRecord{{Key: "source_cost[1]", Distribution: "beta"}}},
	}
	for name, rec := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := FromRecord(rec)
			assert.Error(t, err)
		})
	}
}

func TestFromRecord_EmptyProbabilitiesAreUniform(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, process.EncodeCase(&buf, testutil.TwoSourceCase(), process.FormatYAML))
	rec, err := process.DecodeCase(&buf, process.FormatYAML)
	require.NoError(t, err)
	require.NotNil(t, rec.Uncertainty)

	set, err := FromRecord(rec.Uncertainty)
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())
	for _, sc := range set.Scenarios {
		assert.InDelta(t, 1.0/3, sc.Probability, 1e-12)
	}

	set, err = Factorial([]Parameter{{Key: costKey, Levels: []float64{-0.1, 0.1}, Probabilities: []float64{}}})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, set.Scenarios[0].Probability, 1e-12)

	set, err = NewSet([]superstructure.ParamKey{costKey}, mat.NewDense(4, 1, nil), []float64{})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, set.Scenarios[3].Probability, 1e-12)

	set, err = FromRecord(&process.UncertaintyRecord{
		Method:        "matrix",
		Parameters:    []process.UncertainParameterRecord{{Key: "source_cost[1]"}},
		Matrix:        [][]float64{{-0.1}, {0.1}},
		Probabilities: []float64{},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, set.Scenarios[1].Probability, 1e-12)
}

func TestSet_Materialize(t *testing.T) {
	s, err := superstructure.NewCatalog(superstructure.CatalogOptions{}, nil).Build(testutil.TwoSourceCase())
	require.NoError(t, err)
	require.NoError(t, s.Prepare())

	set, err := FromRecord(testutil.TwoSourceCase().Uncertainty)
	require.NoError(t, err)
	require.NoError(t, set.Materialize(s.View(nil)))

	assert.InDelta(t, 9, set.Scenarios[0].Patch[costKey], 1e-12)
	assert.Empty(t, set.Scenarios[1].Patch)
	assert.InDelta(t, 11, set.Scenarios[2].Patch[costKey], 1e-12)

	unknown, err := NewSet([]superstructure.ParamKey{{Kind: superstructure.ParamSourceCost, Unit: 9}}, mat.NewDense(1, 1, []float64{0.1}), nil)
	require.NoError(t, err)
	err = unknown.Materialize(s.View(nil))
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownParameter))
}
