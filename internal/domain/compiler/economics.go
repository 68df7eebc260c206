package compiler

import (
	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
)

// capitalFactor converts equipment cost into total capital investment.
func (b *builder) capitalFactor(u *superstructure.Common) float64 {
	e := u.Capital
	return b.s.CostIndexRatio(e.ReferenceYear) * (1 + e.DirectFactor + e.IndirectFactor)
}

// economics emits the piecewise-linear capital cost of every costed unit and
// the yearly cost, revenue and margin aggregates.
func (b *builder) economics() {
	eco := b.s.Economics
	hours := eco.OperatingHours

	acc := milp.NewExpr(0)
	tci := milp.NewExpr(0)
	om := milp.NewExpr(0)
	for _, id := range b.s.Subsets().Costed {
		u, _ := b.s.Unit(id)
		base := u.Base()
		ec := b.capex(id, base)
		f := b.capitalFactor(base)
		af := superstructure.AnnuityFactor(eco.InterestRate, base.Lifetime)
		tci.Add(ec, f)
		acc.Add(ec, f*af)
		om.Add(ec, f*base.Capital.OMFactor)
		b.extras[key("TCI", id)] = milp.Sum(f, ec)
		b.extras[key("ACC", id)] = milp.Sum(f*af, ec)
	}
	if b.hasPump {
		hp := b.s.HeatPump
		// heat pump capital scales with its duty
		cost := b.aggregate(symHPCost, milp.Sum(hp.SpecificCost, b.hpDuty))
		tci.Add(cost, 1)
		acc.Add(cost, superstructure.AnnuityFactor(eco.InterestRate, hp.Lifetime))
	}
	b.aggregate(AggTCI, tci)
	b.aggregate(AggCapex, acc)
	b.aggregate(AggOM, om)

	rm := milp.NewExpr(0)
	for _, id := range b.s.Subsets().Sources {
		rm.Add(b.source[id], b.v.SourceCost(id)*b.s.FullLoadHours(id))
	}
	b.aggregate(AggRawMaterial, rm)

	util := milp.NewExpr(0)
	grid := b.s.Grid()
	for _, iv := range grid.Intervals() {
		price := b.v.UtilityPrice(iv.Utility, iv.Cost)
		util.Add(b.heatUtil[iv.K], price*hours)
	}
	util.Add(b.elecBuy, b.v.ElectricityPrice()*hours)
	util.Add(b.elecSell, -eco.ElectricitySellPrice*hours)
	util.Add(b.chilling, eco.ChillingPrice*hours)
	util.Add(b.cooling, eco.CoolingPrice*hours)
	b.aggregate(AggUtility, util)

	waste := milp.NewExpr(0)
	for _, id := range b.s.Subsets().Processes {
		u, _ := b.s.Unit(id)
		cat, ok := b.s.Waste[u.Base().WasteCategory]
		if !ok || cat.Cost == 0 {
			continue
		}
		for _, i := range b.comps {
			waste.Add(b.waste[unitComp{id, i}], cat.Cost*b.s.FullLoadHours(id))
		}
	}
	b.aggregate(AggWaste, waste)

	// heat recovered = heating duties not covered by hot utility
	hen := milp.NewExpr(0)
	if eco.HENSpecificCost > 0 {
		af := superstructure.AnnuityFactor(eco.InterestRate, eco.HENLifetime)
		hen.AddExpr(b.heatNeeded, eco.HENSpecificCost*af)
		for _, iv := range grid.Intervals() {
			hen.Add(b.heatUtil[iv.K], -eco.HENSpecificCost*af)
		}
	}
	b.aggregate(AggHEN, hen)

	opex := milp.NewExpr(0)
	for _, name := range []string{AggRawMaterial, AggUtility, AggOM, AggWaste, AggHEN} {
		opex.Add(b.aggregates[name], 1)
	}
	b.aggregate(AggOpex, opex)

	revenue := milp.NewExpr(0)
	for _, id := range b.s.Subsets().ProductPools {
		revenue.Add(b.product[id], b.v.ProductPrice(id)*b.s.FullLoadHours(id))
	}
	b.aggregate(AggProfit, revenue)
}

// capex emits the convex-combination encoding of the unit's cost curve and
// returns the equipment cost variable EC[u]:
//
//	Σ λ_j = Y,  Σ z_j = Y,  λ_j <= z_{j-1} + z_j,
//	ref = Σ λ_j x_j,  EC = Σ λ_j y_j
func (b *builder) capex(id int, u *superstructure.Common) milp.Var {
	lin, _ := b.s.Capex(id)
	n := lin.Len()
	lambda := make([]milp.Var, n)
	seg := make([]milp.Var, n-1)
	for j := 0; j < n; j++ {
		lambda[j] = b.bounded(key(symLambda, id, j), 0, 1)
	}
	for j := 0; j < n-1; j++ {
		seg[j] = b.m.Binary(b.prefix + key(symSegment, id, j))
	}

	sumL := milp.Sum(1, lambda...)
	sumL.Add(b.y[id], -1)
	b.con(key("CAPEX_LAMBDA", id), sumL, milp.EQ, 0)
	sumZ := milp.Sum(1, seg...)
	sumZ.Add(b.y[id], -1)
	b.con(key("CAPEX_SEGMENT", id), sumZ, milp.EQ, 0)

	for j := 0; j < n; j++ {
		e := milp.Sum(1, lambda[j])
		if j > 0 {
			e.Add(seg[j-1], -1)
		}
		if j < n-1 {
			e.Add(seg[j], -1)
		}
		b.con(key("CAPEX_ADJ", id, j), e, milp.LE, 0)
	}

	ref := b.refFlow(id, u.Capital.Reference)
	for j := 0; j < n; j++ {
		ref.Add(lambda[j], -lin.X[j])
	}
	b.con(key("CAPEX_FLOW", id), ref, milp.EQ, 0)

	ec := b.nonneg(key(symEC, id))
	cost := milp.Sum(1, ec)
	for j := 0; j < n; j++ {
		cost.Add(lambda[j], -lin.Y[j])
	}
	b.con(key("CAPEX_COST", id), cost, milp.EQ, 0)
	b.ec[id] = ec
	return ec
}

// objectiveAggregates derives TAC, EBIT and the per-product ratios from the
// cost aggregates.
func (b *builder) objectiveAggregates() {
	a := b.aggregates
	tac := milp.Sum(1, a[AggCapex], a[AggOpex])
	tac.Add(a[AggProfit], -1)
	tv := b.aggregate(AggTAC, tac)

	// straight-line depreciation over each unit's lifetime
	dep := milp.NewExpr(0)
	for _, id := range b.s.Subsets().Costed {
		u, _ := b.s.Unit(id)
		base := u.Base()
		dep.Add(b.ec[id], b.capitalFactor(base)/float64(base.Lifetime))
	}
	if b.hasPump && b.s.HeatPump.Lifetime > 0 {
		dep.Add(a[symHPCost], 1/float64(b.s.HeatPump.Lifetime))
	}
	ebit := milp.Sum(1, a[AggProfit])
	ebit.Add(a[AggOpex], -1)
	ebit.AddExpr(dep, -1)
	b.aggregate(AggEBIT, ebit)

	// NPC and NPE need a main product; without one they read as zero
	npc, npe := milp.NewExpr(0), milp.NewExpr(0)
	if p, ok := b.s.MainProduct(); ok && p.Load > 0 {
		denom := p.Load * b.s.FullLoadHours(p.ID)
		npc.Add(tv, 1/denom)
		npe.Add(a[AggGWP], 1/denom)
	}
	b.aggregate(AggNPC, npc)
	b.aggregate(AggNPE, npe)
}
