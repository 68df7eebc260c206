package superstructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProcSynth/internal/testutil"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

func TestParseParamKey_RoundTrip(t *testing.T) {
	for _, s := range []string{
		"split[1,2,A]",
		"stoich[2,A,r1]",
		"conversion[2,r1,A]",
		"yield[4,B]",
		"composition[1,A]",
		"source_cost[1]",
		"product_price[3]",
		"utility_price[steam]",
		"distributor_fraction[2,3]",
		"electricity_price",
	} {
		k, err := ParseParamKey(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, k.String())
	}
}

func TestParseParamKey_Errors(t *testing.T) {
	for _, s := range []string{"", "cost[1]", "split[1,2]", "source_cost[x]", "split[1,2,A"} {
		_, err := ParseParamKey(s)
		assert.Error(t, err, s)
	}
	k, err := ParseParamKey("  Source_Cost[ 7 ] ")
	require.NoError(t, err)
	assert.Equal(t, ParamKey{Kind: ParamSourceCost, Unit: 7}, k)
}

func TestView_ReadsThroughOverrides(t *testing.T) {
	s := prepared(t, testutil.ReactorCase())
	base := s.View(nil)
	assert.Equal(t, 5.0, base.SourceCost(1))

	cost := ParamKey{Kind: ParamSourceCost, Unit: 1}
	v := s.View(Overrides{cost: 6})
	assert.Equal(t, 6.0, v.SourceCost(1))
	assert.Equal(t, 5.0, s.View(nil).SourceCost(1))
	u, _ := s.Unit(1)
	assert.Equal(t, 5.0, u.(*Source).Cost)

	g, ok := v.Gamma(2, "A", "r1")
	assert.True(t, ok)
	assert.Equal(t, -1.0, g)
	_, ok = v.Gamma(2, "C", "r1")
	assert.False(t, ok)

	assert.Equal(t, 0.03, v.UtilityPrice("steam", 0))
	assert.Equal(t, 9.0, v.UtilityPrice("hot-oil", 9))
	assert.Equal(t, 0.1, v.ElectricityPrice())
}

func TestValidate_UnknownParameter(t *testing.T) {
	s := prepared(t, testutil.TwoUnitCase())
	err := s.Validate(Overrides{{Kind: ParamYield, Unit: 1, Component: "A"}: 1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownParameter))
	assert.NoError(t, s.Validate(Overrides{{Kind: ParamProductPrice, Unit: 2}: 55}))
}

func TestPerturb_CostIsPlainScaling(t *testing.T) {
	s := prepared(t, testutil.TwoUnitCase())
	patch, err := s.View(nil).Perturb(ParamKey{Kind: ParamSourceCost, Unit: 1}, -0.1)
	require.NoError(t, err)
	assert.Len(t, patch, 1)
	assert.InDelta(t, 9, patch[ParamKey{Kind: ParamSourceCost, Unit: 1}], 1e-12)
}

func TestPerturb_CompositionRebalances(t *testing.T) {
	cs := testutil.TwoUnitCase()
	cs.Units[0].Composition = map[string]float64{"A": 0.6, "B": 0.3, "C": 0.1}
	s, err := NewCatalog(CatalogOptions{}, nil).Build(cs)
	require.NoError(t, err)

	patch, err := s.View(nil).Perturb(ParamKey{Kind: ParamComposition, Unit: 1, Component: "A"}, 0.5)
	require.NoError(t, err)
	v := s.View(patch)
	assert.InDelta(t, 0.9, v.Composition(1, "A"), 1e-12)
	assert.InDelta(t, 0.075, v.Composition(1, "B"), 1e-12)
	assert.InDelta(t, 0.025, v.Composition(1, "C"), 1e-12)

	// clamped at 1
	patch, err = s.View(nil).Perturb(ParamKey{Kind: ParamComposition, Unit: 1, Component: "A"}, 2)
	require.NoError(t, err)
	v = s.View(patch)
	assert.Equal(t, 1.0, v.Composition(1, "A"))
	assert.Zero(t, v.Composition(1, "B"))
}

func TestPerturb_LoneFractionRejected(t *testing.T) {
	s := prepared(t, testutil.TwoUnitCase())
	_, err := s.View(nil).Perturb(ParamKey{Kind: ParamComposition, Unit: 1, Component: "A"}, 0.1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidUncertainty))
}

func TestPerturb_StoichKeepsBalance(t *testing.T) {
	cs := testutil.ReactorCase()
	cs.Units[1].Stoichiometry = []process.StoichRecord{
		{Component: "A", Reaction: "r1", Coefficient: -1},
		{Component: "B", Reaction: "r1", Coefficient: 0.7},
		{Component: "C", Reaction: "r1", Coefficient: 0.3},
	}
	s, err := NewCatalog(CatalogOptions{}, nil).Build(cs)
	require.NoError(t, err)

	patch, err := s.View(nil).Perturb(ParamKey{Kind: ParamStoich, Unit: 2, Component: "B", Reaction: "r1"}, 0.2)
	require.NoError(t, err)
	v := s.View(patch)
	a, _ := v.Gamma(2, "A", "r1")
	b, _ := v.Gamma(2, "B", "r1")
	c, _ := v.Gamma(2, "C", "r1")
	assert.InDelta(t, 0.84, b, 1e-12)
	assert.InDelta(t, 0.16, c, 1e-12)
	assert.InDelta(t, 0, a+b+c, 1e-12)

	// A has no negative partner
	_, err = s.View(nil).Perturb(ParamKey{Kind: ParamStoich, Unit: 2, Component: "A", Reaction: "r1"}, 0.1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidUncertainty))
}

func TestPerturb_ClampsSplitAndConversion(t *testing.T) {
	s := prepared(t, testutil.ReactorCase())

	patch, err := s.View(nil).Perturb(ParamKey{Kind: ParamConversion, Unit: 2, Reaction: "r1", Component: "A"}, 0.5)
	require.NoError(t, err)
	th, _ := s.View(patch).Theta(2, "r1", "A")
	assert.Equal(t, 1.0, th)

	patch, err = s.View(nil).Perturb(ParamKey{Kind: ParamSplit, Unit: 2, Target: 3, Component: "B"}, 0.1)
	require.NoError(t, err)
	sp, _ := s.View(patch).Split(2, 3, "B")
	assert.Equal(t, 1.0, sp)

	_, err = s.View(nil).Perturb(ParamKey{Kind: ParamSplit, Unit: 2, Target: 3, Component: "Z"}, 0.1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownParameter))
}

func TestOverrides_MergeAndKeys(t *testing.T) {
	a := ParamKey{Kind: ParamSourceCost, Unit: 1}
	b := ParamKey{Kind: ParamProductPrice, Unit: 2}
	o := Overrides{a: 1}
	m := o.Merge(Overrides{a: 2, b: 3})
	assert.Equal(t, 1.0, o[a])
	assert.Equal(t, 2.0, m[a])
	assert.Equal(t, []ParamKey{b, a}, m.Keys())
}
