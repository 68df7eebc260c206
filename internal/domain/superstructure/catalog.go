package superstructure

import (
	"math"
	"sort"
	"strings"

	"github.com/turtacn/ProcSynth/internal/domain/capex"
	"github.com/turtacn/ProcSynth/internal/domain/distributor"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

const (
	// stoichTolerance bounds |Σ_i γ[i,r]| for a balanced reaction.
	stoichTolerance = 1e-6
	// fractionTolerance bounds the deviation of a composition or yield sum
	// from 1.
	fractionTolerance = 1e-6

	// neutralCost and neutralFlow replace a reference flow that is missing
	// while a reference cost is given. The pair makes capital cost negligible.
	neutralCost = 1e-6
	neutralFlow = 1e6
)

// CatalogOptions holds defaults applied to records that leave a field unset.
type CatalogOptions struct {
	DefaultBigM       float64
	DefaultResolution int
	CapexDetail       capex.Detail
	CapexTolerance    float64
}

// Catalog validates raw unit records into typed units.
type Catalog struct {
	opts   CatalogOptions
	logger logging.Logger
}

// NewCatalog creates a catalog. Zero options fall back to package defaults.
func NewCatalog(opts CatalogOptions, logger logging.Logger) *Catalog {
	if opts.DefaultBigM <= 0 {
		opts.DefaultBigM = DefaultBigM
	}
	if opts.DefaultResolution <= 0 {
		opts.DefaultResolution = distributor.DefaultResolution
	}
	if opts.CapexDetail == "" {
		opts.CapexDetail = capex.DetailAverage
	}
	return &Catalog{opts: opts, logger: logging.OrNop(logger).Named("catalog")}
}

// Build validates a whole case and returns the assembled superstructure. The
// result is not prepared yet.
func (c *Catalog) Build(cs *process.CaseRecord) (*Superstructure, error) {
	if cs == nil {
		return nil, errors.InvalidParam("case is nil")
	}
	s := New(cs.Name)
	s.DefaultBigM = c.opts.DefaultBigM
	if cs.DefaultBigM > 0 {
		s.DefaultBigM = cs.DefaultBigM
	}
	s.CapexDetail = c.opts.CapexDetail
	if cs.CapexDetail != "" {
		s.CapexDetail = capex.Detail(strings.ToLower(cs.CapexDetail))
	}
	if !s.CapexDetail.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidEconomics, "unknown capex detail").WithDetail(string(s.CapexDetail))
	}
	s.CapexTolerance = c.opts.CapexTolerance

	if cs.Objective != "" {
		s.Objective = Objective(strings.ToUpper(cs.Objective))
	}
	if !s.Objective.Valid() {
		return nil, errors.InvalidParam("unknown objective").WithDetail(cs.Objective)
	}
	if cs.Mode != "" {
		s.Mode = Mode(strings.ToLower(cs.Mode))
	}
	if !s.Mode.Valid() {
		return nil, errors.InvalidParam("unknown optimization mode").WithDetail(cs.Mode)
	}

	s.Components = append([]string(nil), cs.Components...)
	s.Reactions = append([]string(nil), cs.Reactions...)
	s.HeatingValues = make(map[string]float64, len(cs.HeatingValues))
	for k, v := range cs.HeatingValues {
		s.HeatingValues[k] = v
	}

	if err := c.economics(s, cs); err != nil {
		return nil, err
	}

	for _, u := range cs.Utilities {
		s.Utilities = append(s.Utilities, Utility{Name: u.Name, Temperature: u.Temperature, Cost: u.Cost, GWP: u.GWP, FWD: u.FWD})
	}
	for _, w := range cs.Waste {
		s.Waste[w.Name] = WasteCategory{Name: w.Name, Cost: w.Cost, GWP: w.GWP, FWD: w.FWD}
	}
	for _, f := range cs.Forced {
		s.Forced = append(s.Forced, Forced{Unit: f.Unit, Successors: append([]int(nil), f.Successors...)})
	}
	for _, g := range cs.Exclusive {
		s.Exclusive = append(s.Exclusive, append([]int(nil), g...))
	}

	if hp := cs.HeatPump; hp != nil {
		if hp.COP <= 1 {
			return nil, errors.New(errors.ErrCodeInvalidHeatPump, "heat pump COP must exceed 1").WithDetailf("cop=%g", hp.COP)
		}
		if hp.OutletTemperature <= hp.InletTemperature {
			return nil, errors.New(errors.ErrCodeInvalidHeatPump, "heat pump outlet temperature must exceed inlet").
				WithDetailf("inlet=%g outlet=%g", hp.InletTemperature, hp.OutletTemperature)
		}
		s.HeatPump = &HeatPump{
			COP:          hp.COP,
			Inlet:        hp.InletTemperature,
			Outlet:       hp.OutletTemperature,
			SpecificCost: hp.SpecificCost,
			Lifetime:     hp.Lifetime,
			MaxCapacity:  hp.MaxCapacity,
		}
	}

	// case-level defaults win over catalog defaults
	cc := *c
	cc.opts.DefaultBigM = s.DefaultBigM
	if cs.DefaultResolution > 0 {
		cc.opts.DefaultResolution = cs.DefaultResolution
	}
	for _, rec := range cs.Units {
		u, err := cc.Unit(rec)
		if err != nil {
			return nil, err
		}
		if err := s.AddUnit(u); err != nil {
			return nil, err
		}
	}

	c.logger.Info("superstructure assembled",
		logging.String("case", s.Name),
		logging.Int("units", len(s.ids)),
		logging.String("objective", string(s.Objective)),
		logging.String("mode", string(s.Mode)))
	return s, nil
}

func (c *Catalog) economics(s *Superstructure, cs *process.CaseRecord) error {
	e := cs.Economics
	if e.InterestRate < 0 {
		return errors.New(errors.ErrCodeInvalidEconomics, "interest rate must not be negative").WithDetailf("interest_rate=%g", e.InterestRate)
	}
	if e.OperatingHours < 0 || e.OperatingHours > 8760 {
		return errors.New(errors.ErrCodeInvalidEconomics, "operating hours must lie in [0, 8760]").WithDetailf("operating_hours=%g", e.OperatingHours)
	}
	s.Economics = Economics{
		InterestRate:         e.InterestRate,
		OperatingHours:       e.OperatingHours,
		CostIndexYear:        e.CostIndexYear,
		ElectricityPrice:     e.ElectricityPrice,
		ElectricitySellPrice: e.ElectricitySellPrice,
		ChillingPrice:        e.ChillingPrice,
		CoolingPrice:         e.CoolingPrice,
		HENSpecificCost:      e.HENSpecificCost,
		HENLifetime:          e.HENLifetime,
	}
	if len(e.CostIndex) > 0 {
		s.Economics.CostIndex = make(map[int]float64, len(e.CostIndex))
		for y, v := range e.CostIndex {
			s.Economics.CostIndex[y] = v
		}
	}
	env := cs.Environment
	s.Environment = Environment{
		ElectricityGWP: env.ElectricityGWP,
		ElectricityFWD: env.ElectricityFWD,
		ChillingGWP:    env.ChillingGWP,
		ChillingFWD:    env.ChillingFWD,
		CoolingGWP:     env.CoolingGWP,
		CoolingFWD:     env.CoolingFWD,
	}
	return nil
}

// Unit validates and normalizes one record.
func (c *Catalog) Unit(rec process.UnitRecord) (Unit, error) {
	common, err := c.common(rec)
	if err != nil {
		return nil, err
	}
	switch rec.Class {
	case process.ClassSource:
		return c.source(common, rec)
	case process.ClassProductPool:
		return c.productPool(common, rec)
	case process.ClassDistributor:
		return c.distributor(common, rec)
	case process.ClassPhysicalProcess:
		return &PhysicalProcess{Common: common}, nil
	case process.ClassStoichReactor:
		r, err := reactions(rec)
		if err != nil {
			return nil, err
		}
		return &StoichReactor{Common: common, Reactions: r}, nil
	case process.ClassYieldReactor:
		return c.yieldReactor(common, rec)
	case process.ClassHeatGenerator, process.ClassElectricityGenerator, process.ClassCHP:
		return c.generator(common, rec)
	default:
		return nil, errors.NewConstructionError(errors.ErrCodeUnknownProcessClass, rec.ID, "unknown process class %q", rec.Class)
	}
}

func (c *Catalog) common(rec process.UnitRecord) (Common, error) {
	if rec.ID <= 0 {
		return Common{}, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "unit identifier must be positive")
	}
	cm := Common{
		ID:            rec.ID,
		Name:          rec.Name,
		Lifetime:      rec.Lifetime,
		BigM:          rec.BigM,
		FullLoadHours: rec.FullLoadHours,
		Group:         rec.Group,
		WasteCategory: rec.WasteCategory,
		Upstream:      sortedUnique(rec.Upstream),
	}
	if cm.Name == "" {
		cm.Name = string(rec.Class)
	}
	if cm.BigM < 0 {
		return Common{}, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "big-M must not be negative")
	}
	if cm.BigM == 0 {
		cm.BigM = c.opts.DefaultBigM
	}
	if rec.FullLoadHours < 0 || rec.FullLoadHours > 8760 {
		return Common{}, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "full load hours must lie in [0, 8760]")
	}

	if e := rec.Economics; e != nil {
		ref, err := reference(rec.ID, e.ReferenceFlowType, e.ReferenceComponents)
		if err != nil {
			return Common{}, err
		}
		cm.Capital = CapitalCost{
			ReferenceCost:  e.ReferenceCost,
			ReferenceFlow:  e.ReferenceFlow,
			Exponent:       e.Exponent,
			ReferenceYear:  e.ReferenceYear,
			DirectFactor:   e.DirectCostFactor,
			IndirectFactor: e.IndirectCostFactor,
			OMFactor:       e.OMFactor,
			Reference:      ref,
		}
		if cm.Capital.ReferenceCost < 0 {
			return Common{}, errors.NewConstructionError(errors.ErrCodeInvalidEconomics, rec.ID, "reference cost must not be negative")
		}
		if cm.Capital.ReferenceCost > 0 && cm.Capital.ReferenceFlow <= 0 {
			c.logger.Warn("reference flow missing, capital cost neutralized",
				logging.UnitID(rec.ID), logging.Float64("reference_cost", e.ReferenceCost))
			cm.Capital.ReferenceCost = neutralCost
			cm.Capital.ReferenceFlow = neutralFlow
		}
		if cm.Capital.Costed() {
			if cm.Capital.Exponent <= 0 {
				cm.Capital.Exponent = 1
			}
			if cm.Lifetime <= 0 {
				return Common{}, errors.NewConstructionError(errors.ErrCodeInvalidEconomics, rec.ID, "costed unit needs a positive lifetime")
			}
		}
	}

	if len(rec.Heat) > 2 {
		return Common{}, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "at most two heat demands per unit, got %d", len(rec.Heat))
	}
	for _, h := range rec.Heat {
		ref, err := reference(rec.ID, h.ReferenceFlowType, h.ReferenceComponents)
		if err != nil {
			return Common{}, err
		}
		cm.Heat = append(cm.Heat, HeatDemand{Rate: h.Rate, Inlet: h.InletTemperature, Outlet: h.OutletTemperature, Reference: ref})
	}
	if d := rec.Electricity; d != nil {
		ref, err := reference(rec.ID, d.ReferenceFlowType, d.ReferenceComponents)
		if err != nil {
			return Common{}, err
		}
		cm.Electricity = Demand{Rate: d.Rate, Reference: ref}
	}
	if d := rec.Chilling; d != nil {
		ref, err := reference(rec.ID, d.ReferenceFlowType, d.ReferenceComponents)
		if err != nil {
			return Common{}, err
		}
		cm.Chilling = Demand{Rate: d.Rate, Reference: ref}
	}

	if len(rec.Splits) > 0 {
		cm.Splits = make(map[SplitKey]float64, len(rec.Splits))
		for _, sp := range rec.Splits {
			if sp.Fraction < 0 || sp.Fraction > 1 || math.IsNaN(sp.Fraction) {
				return Common{}, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID,
					"split fraction towards unit %d for %q must lie in [0, 1], got %g", sp.Target, sp.Component, sp.Fraction)
			}
			if sp.Target == rec.ID {
				return Common{}, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "unit splits into itself")
			}
			cm.Splits[SplitKey{Target: sp.Target, Component: sp.Component}] = sp.Fraction
		}
		sums := make(map[string]float64)
		for k, v := range cm.Splits {
			sums[k.Component] += v
		}
		for comp, sum := range sums {
			if sum > 1+fractionTolerance {
				return Common{}, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID,
					"split fractions for %q sum to %g, more than 1", comp, sum)
			}
		}
	}
	return cm, nil
}

func reference(id int, flowType string, comps []string) (Reference, error) {
	ref := Reference{Components: append([]string(nil), comps...)}
	switch strings.ToLower(flowType) {
	case "", process.RefInlet:
		ref.Flow = RefInlet
	case process.RefOutlet:
		ref.Flow = RefOutlet
	default:
		return Reference{}, errors.NewConstructionError(errors.ErrCodeInvalidUnit, id, "unknown reference flow type %q", flowType)
	}
	return ref, nil
}

func (c *Catalog) source(cm Common, rec process.UnitRecord) (Unit, error) {
	if len(rec.Composition) == 0 {
		return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "source needs a composition")
	}
	if err := checkFractions(rec.ID, "composition", rec.Composition); err != nil {
		return nil, err
	}
	upper := rec.UpperLimit
	if upper <= 0 {
		upper = math.Inf(1)
	}
	if rec.LowerLimit < 0 || rec.LowerLimit > upper {
		return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID,
			"source limits inverted: lower=%g upper=%g", rec.LowerLimit, rec.UpperLimit)
	}
	return &Source{
		Common:      cm,
		Composition: copyFloats(rec.Composition),
		Cost:        rec.Cost,
		LowerLimit:  rec.LowerLimit,
		UpperLimit:  upper,
		GWP:         rec.GWP,
		FWD:         rec.FWD,
	}, nil
}

func (c *Catalog) productPool(cm Common, rec process.UnitRecord) (Unit, error) {
	if len(cm.Splits) > 0 {
		return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "product pool must not split its flow")
	}
	maxP := rec.MaxProduction
	if maxP <= 0 {
		maxP = math.Inf(1)
	}
	if rec.MinProduction < 0 || rec.MinProduction > maxP {
		return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID,
			"product pool limits inverted: min=%g max=%g", rec.MinProduction, rec.MaxProduction)
	}
	if rec.MainProduct && rec.ProductLoad <= 0 {
		return nil, errors.NewConstructionError(errors.ErrCodeMissingMainProduct, rec.ID, "main product needs a positive product load")
	}
	return &ProductPool{
		Common:        cm,
		Price:         rec.Price,
		MinProduction: rec.MinProduction,
		MaxProduction: maxP,
		Main:          rec.MainProduct,
		Load:          rec.ProductLoad,
		GWPCredit:     rec.GWP,
		FWDCredit:     rec.FWD,
	}, nil
}

func (c *Catalog) distributor(cm Common, rec process.UnitRecord) (Unit, error) {
	targets := sortedUnique(rec.Targets)
	if len(targets) < 2 {
		return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "distributor needs at least two targets")
	}
	if len(cm.Splits) > 0 {
		return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "distributor splits through its targets, not split fractions")
	}
	res := rec.Resolution
	if res == 0 {
		res = c.opts.DefaultResolution
	}
	if res < 1 || res > distributor.MaxResolution {
		return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID,
			"distributor resolution %d outside 1..%d", res, distributor.MaxResolution)
	}
	d := &Distributor{Common: cm, Targets: targets, Resolution: res}
	if len(rec.Fixed) > 0 {
		d.Fixed = make(map[int]float64, len(rec.Fixed))
		sum := 0.0
		for t, f := range rec.Fixed {
			if f < 0 || f > 1 {
				return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "fixed fraction towards %d outside [0, 1]", t)
			}
			if !containsInt(targets, t) {
				return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "fixed fraction names unit %d which is not a target", t)
			}
			d.Fixed[t] = f
			sum += f
		}
		if math.Abs(sum-1) > fractionTolerance {
			return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "fixed fractions sum to %g, want 1", sum)
		}
	}
	return d, nil
}

func (c *Catalog) yieldReactor(cm Common, rec process.UnitRecord) (Unit, error) {
	if len(rec.Yields) == 0 {
		return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "yield reactor needs yields")
	}
	if err := checkFractions(rec.ID, "yields", rec.Yields); err != nil {
		return nil, err
	}
	y := &YieldReactor{Common: cm, Yields: copyFloats(rec.Yields), Inerts: make(map[string]bool, len(rec.Inerts))}
	for _, i := range rec.Inerts {
		y.Inerts[i] = true
	}
	return y, nil
}

func (c *Catalog) generator(cm Common, rec process.UnitRecord) (Unit, error) {
	r, err := reactions(rec)
	if err != nil {
		return nil, err
	}
	eff := Efficiency{Thermal: rec.ThermalEfficiency, Electrical: rec.ElectricalEfficiency}
	if eff.Thermal < 0 || eff.Electrical < 0 || eff.Thermal+eff.Electrical > 1+fractionTolerance {
		return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID,
			"generator efficiencies must be non-negative and sum to at most 1: thermal=%g electrical=%g", eff.Thermal, eff.Electrical)
	}
	switch rec.Class {
	case process.ClassHeatGenerator:
		if eff.Thermal == 0 {
			return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "heat generator needs a thermal efficiency")
		}
		eff.Electrical = 0
		return &HeatGenerator{Common: cm, Reactions: r, Efficiency: eff}, nil
	case process.ClassElectricityGenerator:
		if eff.Electrical == 0 {
			return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "electricity generator needs an electrical efficiency")
		}
		eff.Thermal = 0
		return &ElectricityGenerator{Common: cm, Reactions: r, Efficiency: eff}, nil
	default:
		if eff.Thermal == 0 || eff.Electrical == 0 {
			return nil, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID, "CHP needs thermal and electrical efficiencies")
		}
		return &CombinedHeatAndPower{Common: cm, Reactions: r, Efficiency: eff}, nil
	}
}

// reactions validates stoichiometry and conversions. Every reaction must
// balance to zero.
func reactions(rec process.UnitRecord) (Reactions, error) {
	r := Reactions{
		Gamma: make(map[StoichKey]float64, len(rec.Stoichiometry)),
		Theta: make(map[ConversionKey]float64, len(rec.Conversions)),
	}
	sums := make(map[string]float64)
	for _, st := range rec.Stoichiometry {
		k := StoichKey{Component: st.Component, Reaction: st.Reaction}
		if _, dup := r.Gamma[k]; dup {
			return Reactions{}, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID,
				"stoichiometric coefficient (%s, %s) declared twice", st.Component, st.Reaction)
		}
		r.Gamma[k] = st.Coefficient
		sums[st.Reaction] += st.Coefficient
	}
	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if math.Abs(sums[name]) > stoichTolerance {
			return Reactions{}, errors.NewStoichiometryError(rec.ID, name, sums[name])
		}
	}
	for _, cv := range rec.Conversions {
		if cv.Fraction < 0 || cv.Fraction > 1 {
			return Reactions{}, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID,
				"conversion of %q in reaction %q must lie in [0, 1], got %g", cv.Reactant, cv.Reaction, cv.Fraction)
		}
		if _, ok := sums[cv.Reaction]; !ok {
			return Reactions{}, errors.NewConstructionError(errors.ErrCodeInvalidUnit, rec.ID,
				"conversion names reaction %q without stoichiometry", cv.Reaction)
		}
		r.Theta[ConversionKey{Reaction: cv.Reaction, Reactant: cv.Reactant}] = cv.Fraction
	}
	return r, nil
}

func checkFractions(id int, what string, m map[string]float64) error {
	sum := 0.0
	for comp, v := range m {
		if v < 0 || math.IsNaN(v) {
			return errors.NewConstructionError(errors.ErrCodeInvalidUnit, id, "%s of %q must not be negative", what, comp)
		}
		sum += v
	}
	if math.Abs(sum-1) > fractionTolerance {
		return errors.NewConstructionError(errors.ErrCodeInvalidUnit, id, "%s sums to %g, want 1", what, sum)
	}
	return nil
}

func copyFloats(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedUnique(xs []int) []int {
	if len(xs) == 0 {
		return nil
	}
	cp := append([]int(nil), xs...)
	sort.Ints(cp)
	out := cp[:1]
	for _, v := range cp[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func containsInt(xs []int, v int) bool {
	i := sort.SearchInts(xs, v)
	return i < len(xs) && xs[i] == v
}
