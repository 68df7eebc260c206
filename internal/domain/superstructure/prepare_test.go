package superstructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProcSynth/internal/testutil"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

func prepared(t *testing.T, cs *process.CaseRecord) *Superstructure {
	t.Helper()
	s, err := NewCatalog(CatalogOptions{}, nil).Build(cs)
	require.NoError(t, err)
	require.NoError(t, s.Prepare())
	return s
}

func TestPrepare_Connections(t *testing.T) {
	s := prepared(t, testutil.DistributorCase())
	assert.Equal(t, []Connection{{1, 2}, {2, 3}, {2, 4}}, s.Connections())
	assert.Equal(t, []int{3, 4}, s.Downstream(2))
	assert.Equal(t, []int{2}, s.Upstream(3))

	enc, ok := s.Encoder(2)
	require.True(t, ok)
	assert.Equal(t, 1, enc.Resolution())
}

func TestPrepare_ReactorDerivations(t *testing.T) {
	s := prepared(t, testutil.ReactorCase())

	assert.Equal(t, []string{"A", "B"}, s.Components)
	assert.Equal(t, []string{"r1"}, s.Reactions)
	assert.Equal(t, []string{"A"}, s.Reactants())

	// 20, 40, 80, 100, 150
	g := s.Grid()
	assert.Equal(t, []float64{20, 40, 80, 100, 150}, g.Temperatures())
	assert.Len(t, g.Intervals(), 4)

	lin, ok := s.Capex(2)
	require.True(t, ok)
	assert.Equal(t, 10, lin.Len())
	assert.Equal(t, 0.0, lin.X[0])
	assert.InDelta(t, 110, lin.X[lin.Len()-1], 1e-9)
	assert.Equal(t, 100.0, s.FlowCeiling())
}

func TestPrepare_UnknownReferences(t *testing.T) {
	cs := testutil.TwoUnitCase()
	cs.Units[0].Splits = append(cs.Units[0].Splits, process.SplitRecord{Target: 9, Component: "A", Fraction: 0})
	s, err := NewCatalog(CatalogOptions{}, nil).Build(cs)
	require.NoError(t, err)
	err = s.Prepare()
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownUnit))
	assert.True(t, errors.IsCompilationError(err))

	cs = testutil.TwoUnitCase()
	cs.Units[1].Upstream = []int{2}
	cs.Units = append(cs.Units, process.UnitRecord{ID: 3, Class: process.ClassPhysicalProcess, Upstream: []int{2}})
	s, err = NewCatalog(CatalogOptions{}, nil).Build(cs)
	require.NoError(t, err)
	assert.True(t, errors.IsCode(s.Prepare(), errors.ErrCodeInconsistentSets))

	cs = testutil.TwoUnitCase()
	cs.Units[1].WasteCategory = "sludge"
	s, err = NewCatalog(CatalogOptions{}, nil).Build(cs)
	require.NoError(t, err)
	assert.True(t, errors.IsCode(s.Prepare(), errors.ErrCodeInconsistentSets))
}

func TestPrepare_MainProductRequired(t *testing.T) {
	cs := testutil.TwoUnitCase()
	cs.Units[1].MainProduct = false
	cs.Units[1].ProductLoad = 0
	s, err := NewCatalog(CatalogOptions{}, nil).Build(cs)
	require.NoError(t, err)

	err = s.Prepare()
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingMainProduct))
	assert.True(t, errors.IsConstructionError(err))

	s.Objective = ObjectiveTAC
	assert.NoError(t, s.Prepare())
}

func TestPrepare_InvalidatedByAddUnit(t *testing.T) {
	s := prepared(t, testutil.TwoUnitCase())
	assert.True(t, s.Prepared())

	require.NoError(t, s.AddUnit(&PhysicalProcess{Common: Common{ID: 7, Name: "idle"}}))
	assert.False(t, s.Prepared())
	assert.Panics(t, func() { s.Grid() })
	assert.Equal(t, []int{7}, s.Subsets().Processes)
}

func TestPrepare_HeatPumpPlacement(t *testing.T) {
	cs := testutil.ReactorCase()
	cs.HeatPump = &process.HeatPumpRecord{COP: 3, InletTemperature: 40, OutletTemperature: 100, SpecificCost: 500, Lifetime: 15}
	s := prepared(t, cs)

	p := s.Grid().Pump()
	require.NotNil(t, p)
	// hottest first: 150, 100, 80, 40, 20
	assert.Equal(t, 2, p.Sink)
	assert.Equal(t, 3, p.Source)
}

func TestGroups(t *testing.T) {
	s := New("g")
	require.NoError(t, s.AddUnit(&PhysicalProcess{Common: Common{ID: 2, Group: "pre"}}))
	require.NoError(t, s.AddUnit(&PhysicalProcess{Common: Common{ID: 1, Group: "pre"}}))
	require.NoError(t, s.AddUnit(&PhysicalProcess{Common: Common{ID: 3}}))
	assert.Equal(t, map[string][]int{"pre": {1, 2}}, s.Groups())
	assert.Equal(t, []int{1, 2, 3}, s.IDs())
}
