// Package superstructure holds the candidate process network: the closed set
// of unit variants, the catalog that validates raw unit records into them, and
// the Superstructure that owns the units, the case-wide sets and constants,
// and the whole-network parameters derived by Prepare (temperature grid,
// capital cost knots, connection set).
package superstructure

import (
	"sort"

	"github.com/turtacn/ProcSynth/pkg/types/process"
)

// Kind enumerates the unit variants.
type Kind int

const (
	KindSource Kind = iota
	KindProductPool
	KindDistributor
	KindPhysicalProcess
	KindStoichReactor
	KindYieldReactor
	KindHeatGenerator
	KindElectricityGenerator
	KindCHP
)

var kindClasses = map[Kind]process.UnitClass{
	KindSource:               process.ClassSource,
	KindProductPool:          process.ClassProductPool,
	KindDistributor:          process.ClassDistributor,
	KindPhysicalProcess:      process.ClassPhysicalProcess,
	KindStoichReactor:        process.ClassStoichReactor,
	KindYieldReactor:         process.ClassYieldReactor,
	KindHeatGenerator:        process.ClassHeatGenerator,
	KindElectricityGenerator: process.ClassElectricityGenerator,
	KindCHP:                  process.ClassCHP,
}

func (k Kind) String() string { return string(kindClasses[k]) }

// Processing reports whether units of this kind transform material and may
// carry capital cost and utility demands.
func (k Kind) Processing() bool {
	return k != KindSource && k != KindProductPool && k != KindDistributor
}

// RefFlow selects which side of a unit a demand or cost scales with.
type RefFlow int

const (
	RefInlet RefFlow = iota
	RefOutlet
)

func (r RefFlow) String() string {
	if r == RefOutlet {
		return process.RefOutlet
	}
	return process.RefInlet
}

// Reference is the flow a specific rate multiplies. An empty component list
// means every component.
type Reference struct {
	Flow       RefFlow
	Components []string
}

// Includes reports whether component i counts towards the reference flow.
func (r Reference) Includes(i string) bool {
	if len(r.Components) == 0 {
		return true
	}
	for _, c := range r.Components {
		if c == i {
			return true
		}
	}
	return false
}

// Demand is a specific electricity or chilling demand per unit of reference
// flow.
type Demand struct {
	Rate float64
	Reference
}

// HeatDemand is a specific heat duty between two temperatures.
type HeatDemand struct {
	Rate   float64
	Inlet  float64
	Outlet float64
	Reference
}

// CapitalCost is the capital cost tuple of a unit.
type CapitalCost struct {
	ReferenceCost  float64
	ReferenceFlow  float64
	Exponent       float64
	ReferenceYear  int
	DirectFactor   float64
	IndirectFactor float64
	// OMFactor is the yearly operating and maintenance cost as a fraction of
	// the total capital investment.
	OMFactor float64
	Reference
}

// Costed reports whether the unit carries capital cost.
func (e CapitalCost) Costed() bool { return e.ReferenceCost > 0 }

// SplitKey addresses a split fraction.
type SplitKey struct {
	Target    int
	Component string
}

// StoichKey addresses gamma(component, reaction).
type StoichKey struct {
	Component string
	Reaction  string
}

// ConversionKey addresses theta(reaction, limiting reactant).
type ConversionKey struct {
	Reaction string
	Reactant string
}

// Common is embedded by every variant.
type Common struct {
	ID            int
	Name          string
	Lifetime      int
	BigM          float64
	FullLoadHours float64
	Group         string
	WasteCategory string

	Capital     CapitalCost
	Heat        []HeatDemand
	Electricity Demand
	Chilling    Demand

	Splits   map[SplitKey]float64
	Upstream []int
}

// Base returns the shared part of a unit.
func (c *Common) Base() *Common { return c }

// Split returns the declared split fraction towards target for component i.
func (c *Common) Split(target int, i string) (float64, bool) {
	v, ok := c.Splits[SplitKey{Target: target, Component: i}]
	return v, ok
}

// SplitTargets returns the downstream units named in split keys, ascending.
func (c *Common) SplitTargets() []int {
	seen := make(map[int]bool)
	var out []int
	for k := range c.Splits {
		if !seen[k.Target] {
			seen[k.Target] = true
			out = append(out, k.Target)
		}
	}
	sort.Ints(out)
	return out
}

// Unit is the closed union of unit variants. The unexported method keeps
// implementations inside this package.
type Unit interface {
	Base() *Common
	Kind() Kind
	sealed()
}

// ─────────────────────────────────────────────────────────────────────────────
// variants
// ─────────────────────────────────────────────────────────────────────────────

// Source supplies raw material of fixed composition.
type Source struct {
	Common
	Composition map[string]float64
	Cost        float64
	LowerLimit  float64
	UpperLimit  float64
	GWP         float64
	FWD         float64
}

// ProductPool collects a product.
type ProductPool struct {
	Common
	Price         float64
	MinProduction float64
	MaxProduction float64
	Main          bool
	Load          float64
	GWPCredit     float64
	FWDCredit     float64
}

// Distributor splits its inflow among targets in decimal steps, or by fixed
// fractions when Fixed is set.
type Distributor struct {
	Common
	Targets    []int
	Resolution int
	Fixed      map[int]float64
}

// PhysicalProcess passes material through unchanged.
type PhysicalProcess struct {
	Common
}

// Reactions is the stoichiometric data of a reacting unit.
type Reactions struct {
	Gamma map[StoichKey]float64
	Theta map[ConversionKey]float64
}

// ReactionSet returns the reactions of the unit.
func (r *Reactions) ReactionSet() *Reactions { return r }

// Names returns the reactions with at least one coefficient, ascending.
func (r *Reactions) Names() []string {
	seen := make(map[string]bool)
	var out []string
	for k := range r.Gamma {
		if !seen[k.Reaction] {
			seen[k.Reaction] = true
			out = append(out, k.Reaction)
		}
	}
	sort.Strings(out)
	return out
}

// ConversionKeys returns the conversion keys sorted by reaction then reactant.
func (r *Reactions) ConversionKeys() []ConversionKey {
	out := make([]ConversionKey, 0, len(r.Theta))
	for k := range r.Theta {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reaction != out[j].Reaction {
			return out[i].Reaction < out[j].Reaction
		}
		return out[i].Reactant < out[j].Reactant
	})
	return out
}

// StoichReactor converts limiting reactants by stoichiometry.
type StoichReactor struct {
	Common
	Reactions
}

// YieldReactor maps its reactive inflow onto product yields.
type YieldReactor struct {
	Common
	Yields map[string]float64
	Inerts map[string]bool
}

// Efficiency converts fuel heating value into heat and electricity.
type Efficiency struct {
	Thermal    float64
	Electrical float64
}

// Generator is implemented by the three generator variants.
type Generator interface {
	Unit
	Efficiencies() Efficiency
	ReactionSet() *Reactions
}

// HeatGenerator burns fuel for heat.
type HeatGenerator struct {
	Common
	Reactions
	Efficiency Efficiency
}

// ElectricityGenerator burns fuel for power.
type ElectricityGenerator struct {
	Common
	Reactions
	Efficiency Efficiency
}

// CombinedHeatAndPower burns fuel for both.
type CombinedHeatAndPower struct {
	Common
	Reactions
	Efficiency Efficiency
}

func (*Source) Kind() Kind               { return KindSource }
func (*ProductPool) Kind() Kind          { return KindProductPool }
func (*Distributor) Kind() Kind          { return KindDistributor }
func (*PhysicalProcess) Kind() Kind      { return KindPhysicalProcess }
func (*StoichReactor) Kind() Kind        { return KindStoichReactor }
func (*YieldReactor) Kind() Kind         { return KindYieldReactor }
func (*HeatGenerator) Kind() Kind        { return KindHeatGenerator }
func (*ElectricityGenerator) Kind() Kind { return KindElectricityGenerator }
func (*CombinedHeatAndPower) Kind() Kind { return KindCHP }

func (*Source) sealed()               {}
func (*ProductPool) sealed()          {}
func (*Distributor) sealed()          {}
func (*PhysicalProcess) sealed()      {}
func (*StoichReactor) sealed()        {}
func (*YieldReactor) sealed()         {}
func (*HeatGenerator) sealed()        {}
func (*ElectricityGenerator) sealed() {}
func (*CombinedHeatAndPower) sealed() {}

func (g *HeatGenerator) Efficiencies() Efficiency        { return g.Efficiency }
func (g *ElectricityGenerator) Efficiencies() Efficiency { return g.Efficiency }
func (g *CombinedHeatAndPower) Efficiencies() Efficiency { return g.Efficiency }
