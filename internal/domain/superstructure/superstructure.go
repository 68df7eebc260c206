package superstructure

import (
	"math"
	"sort"

	"github.com/turtacn/ProcSynth/internal/domain/capex"
	"github.com/turtacn/ProcSynth/internal/domain/distributor"
	"github.com/turtacn/ProcSynth/internal/domain/heat"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

// DefaultBigM is the selection-logic constant used when a unit does not set
// its own.
const DefaultBigM = 100000

// Objective is the optimization target.
type Objective string

const (
	// ObjectiveNPC minimizes net production cost per unit of main product.
	ObjectiveNPC Objective = "NPC"
	// ObjectiveNPE minimizes net production emissions per unit of main
	// product.
	ObjectiveNPE Objective = "NPE"
	// ObjectiveFWD minimizes total freshwater demand.
	ObjectiveFWD Objective = "FWD"
	// ObjectiveTAC minimizes total annualized cost.
	ObjectiveTAC Objective = "TAC"
	// ObjectiveEBIT maximizes earnings before interest and taxes.
	ObjectiveEBIT Objective = "EBIT"
)

// Valid reports whether o is known.
func (o Objective) Valid() bool {
	switch o {
	case ObjectiveNPC, ObjectiveNPE, ObjectiveFWD, ObjectiveTAC, ObjectiveEBIT:
		return true
	}
	return false
}

// NeedsMainProduct reports whether o divides by the main product load.
func (o Objective) NeedsMainProduct() bool {
	return o == ObjectiveNPC || o == ObjectiveNPE
}

// Maximized reports whether o is maximized.
func (o Objective) Maximized() bool { return o == ObjectiveEBIT }

// Mode is the optimization mode. Modes are configurations of the same
// compile/solve protocol.
type Mode string

const (
	ModeSingle           Mode = "single"
	ModeSensitivity      Mode = "sensitivity"
	ModeCrossSensitivity Mode = "cross_sensitivity"
	ModeMultiObjective   Mode = "multi_objective"
	ModeTwoStageRecourse Mode = "2_stage_recourse"
	ModeWaitAndSee       Mode = "wait_and_see"
)

// Valid reports whether m is known.
func (m Mode) Valid() bool {
	switch m {
	case ModeSingle, ModeSensitivity, ModeCrossSensitivity, ModeMultiObjective, ModeTwoStageRecourse, ModeWaitAndSee:
		return true
	}
	return false
}

// Utility is a hot utility level.
type Utility struct {
	Name        string
	Temperature float64
	Cost        float64
	GWP         float64
	FWD         float64
}

// WasteCategory prices and rates waste disposal.
type WasteCategory struct {
	Name string
	Cost float64
	GWP  float64
	FWD  float64
}

// Economics holds case-wide economic constants.
type Economics struct {
	InterestRate         float64
	OperatingHours       float64
	CostIndexYear        int
	CostIndex            map[int]float64
	ElectricityPrice     float64
	ElectricitySellPrice float64
	ChillingPrice        float64
	CoolingPrice         float64
	HENSpecificCost      float64
	HENLifetime          int
}

// Environment holds utility emission and freshwater factors.
type Environment struct {
	ElectricityGWP float64
	ElectricityFWD float64
	ChillingGWP    float64
	ChillingFWD    float64
	CoolingGWP     float64
	CoolingFWD     float64
}

// HeatPump is the optional heat pump.
type HeatPump struct {
	COP          float64
	Inlet        float64
	Outlet       float64
	SpecificCost float64
	Lifetime     int
	MaxCapacity  float64
}

// Forced requires at least one of Successors when Unit is selected.
type Forced struct {
	Unit       int
	Successors []int
}

// Subsets are the unit identifier sets the compiler iterates over. Every
// slice is ascending.
type Subsets struct {
	Sources         []int
	ProductPools    []int
	Distributors    []int
	Processes       []int
	StoichReactors  []int
	YieldReactors   []int
	HeatGenerators  []int
	PowerGenerators []int
	CHP             []int
	Costed          []int
}

// Generators returns every generator identifier, ascending.
func (s Subsets) Generators() []int {
	out := append(append(append([]int(nil), s.HeatGenerators...), s.PowerGenerators...), s.CHP...)
	sort.Ints(out)
	return out
}

// Connection is an ordered pair permitted to carry flow.
type Connection struct {
	From int
	To   int
}

// Superstructure is the candidate network of one case. It owns its units.
type Superstructure struct {
	Name      string
	Objective Objective
	Mode      Mode

	Components []string
	Reactions  []string

	Utilities     []Utility
	Waste         map[string]WasteCategory
	HeatingValues map[string]float64
	Economics     Economics
	Environment   Environment
	HeatPump      *HeatPump

	Forced    []Forced
	Exclusive [][]int

	CapexDetail    capex.Detail
	CapexTolerance float64
	DefaultBigM    float64

	units   map[int]Unit
	ids     []int
	subsets Subsets
	derived *derived
}

// derived holds the results of Prepare.
type derived struct {
	grid        *heat.Grid
	capex       map[int]*capex.Linearization
	encoders    map[int]*distributor.Encoder
	connections []Connection
	downstream  map[int][]int
	upstream    map[int][]int
	upperFlow   float64
	reactants   []string
}

// New returns an empty superstructure with default settings.
func New(name string) *Superstructure {
	return &Superstructure{
		Name:        name,
		Objective:   ObjectiveNPC,
		Mode:        ModeSingle,
		Waste:       make(map[string]WasteCategory),
		CapexDetail: capex.DetailAverage,
		DefaultBigM: DefaultBigM,
		units:       make(map[int]Unit),
	}
}

// AddUnit attaches u and registers its identifier in the subsets. Derived
// parameters are invalidated.
func (s *Superstructure) AddUnit(u Unit) error {
	id := u.Base().ID
	if _, dup := s.units[id]; dup {
		return errors.NewConstructionError(errors.ErrCodeDuplicateUnit, id, "unit %d declared twice", id)
	}
	s.units[id] = u
	s.ids = insertSorted(s.ids, id)

	sub := &s.subsets
	switch u.(type) {
	case *Source:
		sub.Sources = insertSorted(sub.Sources, id)
	case *ProductPool:
		sub.ProductPools = insertSorted(sub.ProductPools, id)
	case *Distributor:
		sub.Distributors = insertSorted(sub.Distributors, id)
	case *StoichReactor:
		sub.StoichReactors = insertSorted(sub.StoichReactors, id)
	case *YieldReactor:
		sub.YieldReactors = insertSorted(sub.YieldReactors, id)
	case *HeatGenerator:
		sub.HeatGenerators = insertSorted(sub.HeatGenerators, id)
	case *ElectricityGenerator:
		sub.PowerGenerators = insertSorted(sub.PowerGenerators, id)
	case *CombinedHeatAndPower:
		sub.CHP = insertSorted(sub.CHP, id)
	}
	if u.Kind().Processing() {
		sub.Processes = insertSorted(sub.Processes, id)
		if u.Base().Capital.Costed() {
			sub.Costed = insertSorted(sub.Costed, id)
		}
	}
	s.derived = nil
	return nil
}

func insertSorted(xs []int, v int) []int {
	i := sort.SearchInts(xs, v)
	xs = append(xs, 0)
	copy(xs[i+1:], xs[i:])
	xs[i] = v
	return xs
}

// Unit returns the unit with identifier id.
func (s *Superstructure) Unit(id int) (Unit, bool) {
	u, ok := s.units[id]
	return u, ok
}

// IDs returns every unit identifier, ascending.
func (s *Superstructure) IDs() []int { return append([]int(nil), s.ids...) }

// Units returns the units ordered by identifier.
func (s *Superstructure) Units() []Unit {
	out := make([]Unit, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.units[id])
	}
	return out
}

// Subsets returns the registered subsets.
func (s *Superstructure) Subsets() Subsets { return s.subsets }

// Groups returns the processing groups with their members, by group name.
func (s *Superstructure) Groups() map[string][]int {
	out := make(map[string][]int)
	for _, id := range s.ids {
		if g := s.units[id].Base().Group; g != "" {
			out[g] = append(out[g], id)
		}
	}
	return out
}

// MainProduct returns the main product pool, if any.
func (s *Superstructure) MainProduct() (*ProductPool, bool) {
	for _, id := range s.subsets.ProductPools {
		if p := s.units[id].(*ProductPool); p.Main {
			return p, true
		}
	}
	return nil, false
}

// BigM returns the selection constant of unit id.
func (s *Superstructure) BigM(id int) float64 {
	if u, ok := s.units[id]; ok && u.Base().BigM > 0 {
		return u.Base().BigM
	}
	if s.DefaultBigM > 0 {
		return s.DefaultBigM
	}
	return DefaultBigM
}

// FullLoadHours returns the yearly operating hours of unit id.
func (s *Superstructure) FullLoadHours(id int) float64 {
	if u, ok := s.units[id]; ok && u.Base().FullLoadHours > 0 {
		return u.Base().FullLoadHours
	}
	return s.Economics.OperatingHours
}

// ─────────────────────────────────────────────────────────────────────────────
// economics helpers
// ─────────────────────────────────────────────────────────────────────────────

// AnnuityFactor is i(1+i)^n / ((1+i)^n - 1), or 1/n without interest.
func AnnuityFactor(rate float64, years int) float64 {
	if years <= 0 {
		return 1
	}
	n := float64(years)
	if rate == 0 {
		return 1 / n
	}
	q := math.Pow(1+rate, n)
	return rate * q / (q - 1)
}

// CostIndexRatio scales a cost from refYear to the case cost-index year. A
// missing year yields 1.
func (s *Superstructure) CostIndexRatio(refYear int) float64 {
	if refYear == 0 || s.Economics.CostIndexYear == 0 || refYear == s.Economics.CostIndexYear {
		return 1
	}
	table := s.Economics.CostIndex
	if len(table) == 0 {
		table = CEPCI
	}
	from, ok1 := table[refYear]
	to, ok2 := table[s.Economics.CostIndexYear]
	if !ok1 || !ok2 || from == 0 {
		return 1
	}
	return to / from
}

// CEPCI is the Chemical Engineering Plant Cost Index by year.
var CEPCI = map[int]float64{
	2001: 394.3, 2002: 395.6, 2003: 402.0, 2004: 444.2, 2005: 468.2,
	2006: 499.6, 2007: 525.4, 2008: 575.4, 2009: 521.9, 2010: 550.8,
	2011: 585.7, 2012: 584.6, 2013: 567.3, 2014: 576.1, 2015: 556.8,
	2016: 541.7, 2017: 567.5, 2018: 603.1, 2019: 607.5, 2020: 596.2,
	2021: 708.0, 2022: 816.0,
}
