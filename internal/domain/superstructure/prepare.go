package superstructure

import (
	"math"
	"sort"

	"github.com/turtacn/ProcSynth/internal/domain/capex"
	"github.com/turtacn/ProcSynth/internal/domain/distributor"
	"github.com/turtacn/ProcSynth/internal/domain/heat"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

// Prepare runs the whole-network pass: reference checks, the connection set,
// the temperature grid, capital cost knots and distributor encoders. It must
// run after every unit is attached and again after any change.
func (s *Superstructure) Prepare() error {
	if len(s.ids) == 0 {
		return errors.NewCompilationError(errors.ErrCodeInconsistentSets, "superstructure %q has no units", s.Name)
	}
	if err := s.checkReferences(); err != nil {
		return err
	}
	if err := s.RequireMainProduct(s.Objective); err != nil {
		return err
	}
	s.inferSets()

	d := &derived{
		capex:      make(map[int]*capex.Linearization),
		encoders:   make(map[int]*distributor.Encoder),
		downstream: make(map[int][]int),
		upstream:   make(map[int][]int),
	}
	d.connections = s.connect()
	for _, c := range d.connections {
		d.downstream[c.From] = append(d.downstream[c.From], c.To)
		d.upstream[c.To] = append(d.upstream[c.To], c.From)
	}
	for id := range d.upstream {
		sort.Ints(d.upstream[id])
	}
	d.reactants = s.collectReactants()

	grid, err := heat.Build(s.heatDemands(), s.heatUtilities(), s.pumpSpec())
	if err != nil {
		return err
	}
	d.grid = grid

	d.upperFlow = s.flowCeiling()
	for _, id := range s.subsets.Costed {
		u := s.units[id].Base()
		upper := math.Min(d.upperFlow, s.BigM(id))
		lin, err := capex.Linearize(
			capex.Curve{ReferenceCost: u.Capital.ReferenceCost, ReferenceFlow: u.Capital.ReferenceFlow, Exponent: u.Capital.Exponent},
			capex.Policy{Detail: s.CapexDetail, UpperFlow: upper, Tolerance: s.CapexTolerance},
		)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeInvalidEconomics, "capital cost of unit %d", id)
		}
		d.capex[id] = lin
	}
	for _, id := range s.subsets.Distributors {
		enc, err := distributor.NewEncoder(s.units[id].(*Distributor).Resolution)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeInvalidUnit, "distributor %d", id)
		}
		d.encoders[id] = enc
	}

	s.derived = d
	return nil
}

// Prepared reports whether derived parameters are current.
func (s *Superstructure) Prepared() bool { return s.derived != nil }

// RequireMainProduct fails with a construction error when obj divides by the
// main product load and no main product exists.
func (s *Superstructure) RequireMainProduct(obj Objective) error {
	if !obj.NeedsMainProduct() {
		return nil
	}
	if p, ok := s.MainProduct(); !ok || p.Load <= 0 {
		return errors.New(errors.ErrCodeMissingMainProduct, "objective needs a main product with positive load").
			WithDetail("objective=" + string(obj))
	}
	return nil
}

func (s *Superstructure) checkReferences() error {
	known := func(id int) bool { _, ok := s.units[id]; return ok }
	mains := 0
	for _, id := range s.ids {
		u := s.units[id]
		b := u.Base()
		for k := range b.Splits {
			if !known(k.Target) {
				return errors.NewCompilationError(errors.ErrCodeUnknownUnit, "unit %d splits into unknown unit %d", id, k.Target)
			}
			if _, src := s.units[k.Target].(*Source); src {
				return errors.NewCompilationError(errors.ErrCodeInconsistentSets, "unit %d splits into source %d", id, k.Target)
			}
		}
		for _, up := range b.Upstream {
			if !known(up) {
				return errors.NewCompilationError(errors.ErrCodeUnknownUnit, "unit %d names unknown upstream unit %d", id, up)
			}
			if _, src := s.units[up].(*Source); !src {
				return errors.NewCompilationError(errors.ErrCodeInconsistentSets, "upstream %d of unit %d is not a source", up, id)
			}
		}
		switch v := u.(type) {
		case *Distributor:
			for _, t := range v.Targets {
				if !known(t) {
					return errors.NewCompilationError(errors.ErrCodeUnknownUnit, "distributor %d targets unknown unit %d", id, t)
				}
				if _, src := s.units[t].(*Source); src || t == id {
					return errors.NewCompilationError(errors.ErrCodeInconsistentSets, "distributor %d cannot target unit %d", id, t)
				}
			}
		case *ProductPool:
			if v.Main {
				mains++
			}
		}
		if w := b.WasteCategory; w != "" {
			if _, ok := s.Waste[w]; !ok {
				return errors.NewCompilationError(errors.ErrCodeInconsistentSets, "unit %d names unknown waste category %q", id, w)
			}
		}
	}
	if mains > 1 {
		return errors.New(errors.ErrCodeMissingMainProduct, "more than one main product declared")
	}
	for _, f := range s.Forced {
		if !known(f.Unit) {
			return errors.NewCompilationError(errors.ErrCodeUnknownUnit, "forced connection names unknown unit %d", f.Unit)
		}
		for _, t := range f.Successors {
			if !known(t) {
				return errors.NewCompilationError(errors.ErrCodeUnknownUnit, "forced connection of unit %d names unknown unit %d", f.Unit, t)
			}
		}
	}
	for _, g := range s.Exclusive {
		for _, id := range g {
			if !known(id) {
				return errors.NewCompilationError(errors.ErrCodeUnknownUnit, "exclusive group names unknown unit %d", id)
			}
		}
	}
	return nil
}

// inferSets completes the component and reaction sets from unit data and
// keeps them sorted.
func (s *Superstructure) inferSets() {
	comps := make(map[string]bool)
	rxns := make(map[string]bool)
	for _, c := range s.Components {
		comps[c] = true
	}
	for _, r := range s.Reactions {
		rxns[r] = true
	}
	for _, id := range s.ids {
		u := s.units[id]
		for k := range u.Base().Splits {
			comps[k.Component] = true
		}
		switch v := u.(type) {
		case *Source:
			for c := range v.Composition {
				comps[c] = true
			}
		case *YieldReactor:
			for c := range v.Yields {
				comps[c] = true
			}
		}
		if g, ok := u.(interface{ ReactionSet() *Reactions }); ok {
			for k := range g.ReactionSet().Gamma {
				comps[k.Component] = true
				rxns[k.Reaction] = true
			}
		}
	}
	s.Components = sortedKeys(comps)
	s.Reactions = sortedKeys(rxns)
}

func (s *Superstructure) collectReactants() []string {
	set := make(map[string]bool)
	for _, id := range s.ids {
		if g, ok := s.units[id].(interface{ ReactionSet() *Reactions }); ok {
			for k := range g.ReactionSet().Theta {
				set[k.Reactant] = true
			}
		}
	}
	return sortedKeys(set)
}

// connect derives the connection set from split keys, distributor targets and
// upstream source lists.
func (s *Superstructure) connect() []Connection {
	seen := make(map[Connection]bool)
	var out []Connection
	add := func(c Connection) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, id := range s.ids {
		u := s.units[id]
		for _, t := range u.Base().SplitTargets() {
			add(Connection{From: id, To: t})
		}
		if d, ok := u.(*Distributor); ok {
			for _, t := range d.Targets {
				add(Connection{From: id, To: t})
			}
		}
		for _, up := range u.Base().Upstream {
			add(Connection{From: up, To: id})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

func (s *Superstructure) heatDemands() []heat.Demand {
	var out []heat.Demand
	for _, id := range s.ids {
		for slot, h := range s.units[id].Base().Heat {
			out = append(out, heat.Demand{
				Key:    heat.DemandKey{Unit: id, Slot: slot},
				Rate:   h.Rate,
				Inlet:  h.Inlet,
				Outlet: h.Outlet,
			})
		}
	}
	return out
}

func (s *Superstructure) heatUtilities() []heat.Utility {
	out := make([]heat.Utility, 0, len(s.Utilities))
	for _, u := range s.Utilities {
		out = append(out, heat.Utility{Name: u.Name, Temperature: u.Temperature, Cost: u.Cost})
	}
	return out
}

func (s *Superstructure) pumpSpec() *heat.PumpSpec {
	if s.HeatPump == nil {
		return nil
	}
	return &heat.PumpSpec{Inlet: s.HeatPump.Inlet, Outlet: s.HeatPump.Outlet}
}

// flowCeiling is the largest flow any unit can see: total finite source supply
// scaled by the widest full-load-hour ratio. Without finite supply it is the
// default big-M.
func (s *Superstructure) flowCeiling() float64 {
	supply := 0.0
	for _, id := range s.subsets.Sources {
		up := s.units[id].(*Source).UpperLimit
		if math.IsInf(up, 1) {
			return s.DefaultBigM
		}
		supply += up
	}
	if supply <= 0 {
		return s.DefaultBigM
	}
	lo, hi := math.Inf(1), 0.0
	for _, id := range s.ids {
		h := s.FullLoadHours(id)
		if h <= 0 {
			continue
		}
		lo = math.Min(lo, h)
		hi = math.Max(hi, h)
	}
	if hi > 0 && lo > 0 {
		supply *= hi / lo
	}
	return supply
}

func (s *Superstructure) mustPrepared() *derived {
	if s.derived == nil {
		panic("superstructure: derived parameters requested before Prepare")
	}
	return s.derived
}

// Grid returns the temperature grid.
func (s *Superstructure) Grid() *heat.Grid { return s.mustPrepared().grid }

// Capex returns the knot table of a costed unit.
func (s *Superstructure) Capex(id int) (*capex.Linearization, bool) {
	l, ok := s.mustPrepared().capex[id]
	return l, ok
}

// Encoder returns the digit encoder of a distributor.
func (s *Superstructure) Encoder(id int) (*distributor.Encoder, bool) {
	e, ok := s.mustPrepared().encoders[id]
	return e, ok
}

// Connections returns the connection set ordered by (From, To).
func (s *Superstructure) Connections() []Connection {
	return append([]Connection(nil), s.mustPrepared().connections...)
}

// Downstream returns the units fed by id, ascending.
func (s *Superstructure) Downstream(id int) []int { return s.mustPrepared().downstream[id] }

// Upstream returns the units feeding id, ascending.
func (s *Superstructure) Upstream(id int) []int { return s.mustPrepared().upstream[id] }

// Reactants returns the limiting reactants named by any conversion.
func (s *Superstructure) Reactants() []string { return s.mustPrepared().reactants }

// FlowCeiling returns the upper flow bound used for capital cost knots.
func (s *Superstructure) FlowCeiling() float64 { return s.mustPrepared().upperFlow }

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
