package testutil

import "github.com/turtacn/ProcSynth/pkg/types/process"

// TwoUnitCase is one source of pure A feeding one product pool at 100 t/h for
// 8000 h: raw material at 10, product at 50.
func TwoUnitCase() *process.CaseRecord {
	return &process.CaseRecord{
		Name:       "two-unit",
		Objective:  "NPC",
		Mode:       "single",
		Components: []string{"A"},
		Economics:  process.EconomicsRecord{OperatingHours: 8000},
		Units: []process.UnitRecord{
			{
				ID:          1,
				Name:        "feed",
				Class:       process.ClassSource,
				Composition: map[string]float64{"A": 1},
				Cost:        10,
				LowerLimit:  100,
				UpperLimit:  100,
				Splits:      []process.SplitRecord{{Target: 2, Component: "A", Fraction: 1}},
			},
			{
				ID:          2,
				Name:        "product",
				Class:       process.ClassProductPool,
				Price:       50,
				MainProduct: true,
				ProductLoad: 100,
			},
		},
	}
}

// ReactorCase converts A to B in a costed stoichiometric reactor with heat
// and electricity demands. Unconverted A leaves as waste water.
func ReactorCase() *process.CaseRecord {
	return &process.CaseRecord{
		Name:        "reactor",
		Objective:   "TAC",
		Mode:        "single",
		CapexDetail: "rough",
		Components:  []string{"A", "B"},
		Reactions:   []string{"r1"},
		Economics: process.EconomicsRecord{
			InterestRate:     0.05,
			OperatingHours:   8000,
			ElectricityPrice: 0.1,
			CoolingPrice:     0.01,
		},
		Utilities: []process.UtilityRecord{{Name: "steam", Temperature: 150, Cost: 0.03}},
		Waste:     []process.WasteRecord{{Name: "ww", Cost: 1, GWP: 0.5}},
		Units: []process.UnitRecord{
			{
				ID:          1,
				Name:        "feed",
				Class:       process.ClassSource,
				Composition: map[string]float64{"A": 1},
				Cost:        5,
				LowerLimit:  100,
				UpperLimit:  100,
				Splits:      []process.SplitRecord{{Target: 2, Component: "A", Fraction: 1}},
			},
			{
				ID:            2,
				Name:          "reactor",
				Class:         process.ClassStoichReactor,
				Lifetime:      20,
				WasteCategory: "ww",
				Economics: &process.EconomicRecord{
					ReferenceCost:      1e6,
					ReferenceFlow:      100,
					Exponent:           0.6,
					DirectCostFactor:   0.1,
					IndirectCostFactor: 0.05,
					OMFactor:           0.02,
				},
				Heat: []process.HeatDemandRecord{
					{Rate: 0.1, InletTemperature: 20, OutletTemperature: 80},
					{Rate: -0.05, InletTemperature: 100, OutletTemperature: 40},
				},
				Electricity:   &process.DemandRecord{Rate: 0.01},
				Stoichiometry: []process.StoichRecord{{Component: "A", Reaction: "r1", Coefficient: -1}, {Component: "B", Reaction: "r1", Coefficient: 1}},
				Conversions:   []process.ConversionRecord{{Reaction: "r1", Reactant: "A", Fraction: 0.8}},
				Splits:        []process.SplitRecord{{Target: 3, Component: "B", Fraction: 1}},
			},
			{
				ID:          3,
				Name:        "product",
				Class:       process.ClassProductPool,
				Price:       40,
				MainProduct: true,
				ProductLoad: 80,
			},
		},
	}
}

// DistributorCase sends 100 t/h of A through a distributor with 0.1 steps to
// a capped premium pool and an uncapped regular pool.
func DistributorCase() *process.CaseRecord {
	return &process.CaseRecord{
		Name:       "distributor",
		Objective:  "TAC",
		Mode:       "single",
		Components: []string{"A"},
		Economics:  process.EconomicsRecord{OperatingHours: 8000},
		Units: []process.UnitRecord{
			{
				ID:          1,
				Name:        "feed",
				Class:       process.ClassSource,
				Composition: map[string]float64{"A": 1},
				Cost:        10,
				LowerLimit:  100,
				UpperLimit:  100,
				Splits:      []process.SplitRecord{{Target: 2, Component: "A", Fraction: 1}},
			},
			{ID: 2, Name: "split", Class: process.ClassDistributor, Targets: []int{3, 4}, Resolution: 1},
			{ID: 3, Name: "premium", Class: process.ClassProductPool, Price: 60, MaxProduction: 30},
			{ID: 4, Name: "regular", Class: process.ClassProductPool, Price: 40},
		},
	}
}

// TwoSourceCase offers two mutually exclusive suppliers of A for a fixed
// demand of 100 t/h. The first supplier's price is uncertain by ±10%.
func TwoSourceCase() *process.CaseRecord {
	return &process.CaseRecord{
		Name:       "two-source",
		Objective:  "NPC",
		Mode:       "2_stage_recourse",
		Components: []string{"A"},
		Economics:  process.EconomicsRecord{OperatingHours: 8000},
		Exclusive:  [][]int{{1, 3}},
		Units: []process.UnitRecord{
			{
				ID:          1,
				Name:        "supplier-1",
				Class:       process.ClassSource,
				Composition: map[string]float64{"A": 1},
				Cost:        10,
				UpperLimit:  100,
				Splits:      []process.SplitRecord{{Target: 2, Component: "A", Fraction: 1}},
			},
			{
				ID:            2,
				Name:          "product",
				Class:         process.ClassProductPool,
				Price:         50,
				MinProduction: 100,
				MaxProduction: 100,
				MainProduct:   true,
				ProductLoad:   100,
			},
			{
				ID:          3,
				Name:        "supplier-2",
				Class:       process.ClassSource,
				Composition: map[string]float64{"A": 1},
				Cost:        10.5,
				UpperLimit:  100,
				Splits:      []process.SplitRecord{{Target: 2, Component: "A", Fraction: 1}},
			},
		},
		Uncertainty: &process.UncertaintyRecord{
			Method: "factorial",
			Parameters: []process.UncertainParameterRecord{
				{Key: "source_cost[1]", Levels: []float64{-0.1, 0, 0.1}},
			},
		},
	}
}

// YieldReactorCase feeds 90 t/h of A with 10 t/h of inert I into a yield
// reactor producing B (70%) and C (30%). B is sold, C and I are discarded.
func YieldReactorCase() *process.CaseRecord {
	return &process.CaseRecord{
		Name:       "yield",
		Objective:  "TAC",
		Mode:       "single",
		Components: []string{"A", "I"},
		Economics:  process.EconomicsRecord{OperatingHours: 8000},
		Units: []process.UnitRecord{
			{
				ID:          1,
				Name:        "feed",
				Class:       process.ClassSource,
				Composition: map[string]float64{"A": 0.9, "I": 0.1},
				Cost:        5,
				LowerLimit:  100,
				UpperLimit:  100,
				Splits: []process.SplitRecord{
					{Target: 2, Component: "A", Fraction: 1},
					{Target: 2, Component: "I", Fraction: 1},
				},
			},
			{
				ID:     2,
				Name:   "reactor",
				Class:  process.ClassYieldReactor,
				Yields: map[string]float64{"B": 0.7, "C": 0.3},
				Inerts: []string{"I"},
				Splits: []process.SplitRecord{{Target: 3, Component: "B", Fraction: 1}},
			},
			{ID: 3, Name: "product", Class: process.ClassProductPool, Price: 40},
		},
	}
}

// GeneratorCase burns 10 t/h of fuel F (heating value 50) split 2:3:5 over a
// heat generator, an electricity generator and a CHP unit. Power is sold.
func GeneratorCase() *process.CaseRecord {
	return &process.CaseRecord{
		Name:          "generators",
		Objective:     "TAC",
		Mode:          "single",
		Components:    []string{"F"},
		HeatingValues: map[string]float64{"F": 50},
		Economics: process.EconomicsRecord{
			OperatingHours:       8000,
			ElectricityPrice:     0.2,
			ElectricitySellPrice: 0.1,
		},
		Units: []process.UnitRecord{
			{
				ID:          1,
				Name:        "fuel",
				Class:       process.ClassSource,
				Composition: map[string]float64{"F": 1},
				LowerLimit:  10,
				UpperLimit:  10,
				Splits: []process.SplitRecord{
					{Target: 2, Component: "F", Fraction: 0.2},
					{Target: 3, Component: "F", Fraction: 0.3},
					{Target: 4, Component: "F", Fraction: 0.5},
				},
			},
			{ID: 2, Name: "boiler", Class: process.ClassHeatGenerator, ThermalEfficiency: 0.8},
			{ID: 3, Name: "turbine", Class: process.ClassElectricityGenerator, ElectricalEfficiency: 0.4},
			{ID: 4, Name: "chp", Class: process.ClassCHP, ThermalEfficiency: 0.5, ElectricalEfficiency: 0.3},
		},
	}
}

// HeatPumpCase runs 100 t/h of A through a process that needs 0.5 of heat at
// 100 °C and rejects 0.3 at 40 °C. A heat pump with COP 3 can lift heat from
// 40 °C to 120 °C; steam at 150 °C covers the rest.
func HeatPumpCase() *process.CaseRecord {
	return &process.CaseRecord{
		Name:       "heat-pump",
		Objective:  "TAC",
		Mode:       "single",
		Components: []string{"A"},
		Economics: process.EconomicsRecord{
			OperatingHours:   8000,
			ElectricityPrice: 0.06,
			CoolingPrice:     0.01,
		},
		Utilities: []process.UtilityRecord{{Name: "steam", Temperature: 150, Cost: 0.03}},
		HeatPump:  &process.HeatPumpRecord{COP: 3, InletTemperature: 40, OutletTemperature: 120, Lifetime: 15},
		Units: []process.UnitRecord{
			{
				ID:          1,
				Name:        "feed",
				Class:       process.ClassSource,
				Composition: map[string]float64{"A": 1},
				LowerLimit:  100,
				UpperLimit:  100,
				Splits:      []process.SplitRecord{{Target: 2, Component: "A", Fraction: 1}},
			},
			{
				ID:    2,
				Name:  "column",
				Class: process.ClassPhysicalProcess,
				Heat: []process.HeatDemandRecord{
					{Rate: 0.5, InletTemperature: 100, OutletTemperature: 100},
					{Rate: -0.3, InletTemperature: 40, OutletTemperature: 40},
				},
				Splits: []process.SplitRecord{{Target: 3, Component: "A", Fraction: 1}},
			},
			{ID: 3, Name: "product", Class: process.ClassProductPool, Price: 1},
		},
	}
}

// FixedDistributorCase is DistributorCase with the split pinned at 25/75 and
// no cap on the premium pool.
func FixedDistributorCase() *process.CaseRecord {
	rec := DistributorCase()
	rec.Name = "fixed-distributor"
	rec.Units[1].Fixed = map[int]float64{3: 0.25, 4: 0.75}
	rec.Units[2].MaxProduction = 0
	return rec
}

// LinkedSourceCase is a profitable chain 1 -> 2 -> 3 next to a second source
// 4 that must sell 10 t/h into the worthless pool 5 whenever it runs.
// Selection logic tying unit 2 to source 4 is left to the caller.
func LinkedSourceCase(cost4 float64) *process.CaseRecord {
	return &process.CaseRecord{
		Name:       "linked",
		Objective:  "TAC",
		Mode:       "single",
		Components: []string{"A"},
		Economics:  process.EconomicsRecord{OperatingHours: 8000},
		Units: []process.UnitRecord{
			{
				ID:          1,
				Name:        "feed",
				Class:       process.ClassSource,
				Composition: map[string]float64{"A": 1},
				Cost:        10,
				UpperLimit:  100,
				Splits:      []process.SplitRecord{{Target: 2, Component: "A", Fraction: 1}},
			},
			{
				ID:     2,
				Name:   "process",
				Class:  process.ClassPhysicalProcess,
				Splits: []process.SplitRecord{{Target: 3, Component: "A", Fraction: 1}},
			},
			{ID: 3, Name: "product", Class: process.ClassProductPool, Price: 50},
			{
				ID:          4,
				Name:        "byproduct-feed",
				Class:       process.ClassSource,
				Composition: map[string]float64{"A": 1},
				Cost:        cost4,
				LowerLimit:  10,
				UpperLimit:  10,
				Splits:      []process.SplitRecord{{Target: 5, Component: "A", Fraction: 1}},
			},
			{ID: 5, Name: "sink", Class: process.ClassProductPool},
		},
	}
}
