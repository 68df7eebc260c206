package heat

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steamUtilities() []Utility {
	return []Utility{
		{Name: "lp_steam", Temperature: 150, Cost: 0.02},
		{Name: "hp_steam", Temperature: 250, Cost: 0.03},
	}
}

func TestSortedUnique_StrictlyAscending(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		in := make([]float64, 1+rng.Intn(40))
		for i := range in {
			in[i] = float64(rng.Intn(12) * 25)
		}
		out := SortedUnique(in)
		require.NotEmpty(t, out)
		for i := 1; i < len(out); i++ {
			assert.Less(t, out[i-1], out[i], "trial %d", trial)
		}
		for _, v := range in {
			assert.Contains(t, out, v)
		}
	}
	assert.Nil(t, SortedUnique(nil))
}

func TestBuild_IndexZeroIsHottest(t *testing.T) {
	g, err := Build([]Demand{
		{Key: DemandKey{Unit: 3}, Rate: 1, Inlet: 50, Outlet: 120},
	}, steamUtilities(), nil)
	require.NoError(t, err)

	assert.Equal(t, []float64{50, 120, 150, 250}, g.Temperatures())
	assert.Equal(t, 250.0, g.Point(0))
	assert.Equal(t, 50.0, g.Point(3))
	assert.Equal(t, 0, g.Index(250))
	assert.Equal(t, -1, g.Index(99))

	ivs := g.Intervals()
	require.Len(t, ivs, 3)
	assert.Equal(t, Interval{K: 1, Upper: 250, Lower: 150, Position: PositionFirst, Cost: 0.03, Utility: "hp_steam", Matched: true}, ivs[0])
	assert.Equal(t, PositionMiddle, ivs[1].Position)
	assert.Equal(t, PositionLast, ivs[2].Position)
}

func TestBuild_DeltaQUsesCoolestSufficientUtility(t *testing.T) {
	g, err := Build([]Demand{
		{Key: DemandKey{Unit: 1}, Rate: 2, Inlet: 80, Outlet: 140},
	}, steamUtilities(), nil)
	require.NoError(t, err)

	// grid: 250,150,140,80 -> intervals (250,150],(150,140],(140,80]
	assert.Equal(t, 0.03, g.DeltaQ(1))
	assert.Equal(t, 0.02, g.DeltaQ(2))
	assert.Equal(t, 0.02, g.DeltaQ(3))
	assert.Equal(t, 0.0, g.DeltaQ(9))
}

func TestBuild_UnmatchedIntervalFallsBackToHottestUtility(t *testing.T) {
	g, err := Build([]Demand{
		{Key: DemandKey{Unit: 1}, Rate: 1, Inlet: 260, Outlet: 300},
	}, steamUtilities(), nil)
	require.NoError(t, err)

	iv, ok := g.Interval(1)
	require.True(t, ok)
	assert.Equal(t, 300.0, iv.Upper)
	assert.False(t, iv.Matched)
	assert.Equal(t, "hp_steam", iv.Utility)
}

func TestBuild_SinglePointGridHasOneInterval(t *testing.T) {
	g, err := Build([]Demand{
		{Key: DemandKey{Unit: 1}, Rate: 5, Inlet: 100, Outlet: 100},
		{Key: DemandKey{Unit: 2}, Rate: -5, Inlet: 100, Outlet: 100},
	}, nil, nil)
	require.NoError(t, err)

	ivs := g.Intervals()
	require.Len(t, ivs, 1)
	assert.Equal(t, PositionOnly, ivs[0].Position)
	b, ok := g.Beta(DemandKey{Unit: 1}, 1)
	assert.True(t, ok)
	assert.Equal(t, 1.0, b)
	b, ok = g.Beta(DemandKey{Unit: 2}, 1)
	assert.True(t, ok)
	assert.Equal(t, 1.0, b)
}

func TestBuild_EmptyInputs(t *testing.T) {
	g, err := Build(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.Intervals())
	assert.Nil(t, g.Pump())
}

func TestBuild_ZeroRateDemandHasNoBeta(t *testing.T) {
	key := DemandKey{Unit: 4}
	g, err := Build([]Demand{{Key: key, Rate: 0, Inlet: 20, Outlet: 80}}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, g.BetaIntervals(key))
	_, ok := g.Beta(key, 1)
	assert.False(t, ok)
}

func TestBuild_HeatPumpPlacement(t *testing.T) {
	g, err := Build([]Demand{
		{Key: DemandKey{Unit: 1}, Rate: 1, Inlet: 60, Outlet: 90},
	}, steamUtilities(), &PumpSpec{Inlet: 60, Outlet: 90})
	require.NoError(t, err)

	// hottest-first points: 250,150,90,60 -> pump delivers below 90 (interval 3)
	// and absorbs above 60 (interval 3)
	p := g.Pump()
	require.NotNil(t, p)
	assert.Equal(t, 3, p.Sink)
	assert.Equal(t, 3, p.Source)
}

func TestBuild_HeatPumpRejectsInvertedWindow(t *testing.T) {
	_, err := Build(nil, nil, &PumpSpec{Inlet: 90, Outlet: 60})
	assert.Error(t, err)
}

func TestPumpDuty(t *testing.T) {
	el, abs := PumpDuty(100, 4)
	assert.Equal(t, 25.0, el)
	assert.Equal(t, 75.0, abs)
	el, abs = PumpDuty(100, 0)
	assert.Zero(t, el)
	assert.Zero(t, abs)
}
