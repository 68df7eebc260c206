package compiler

import (
	"github.com/turtacn/ProcSynth/internal/domain/heat"
	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
)

// energy emits utility demands, generator production, the electricity and
// chilling balances and the heat cascade. All quantities are per hour.
func (b *builder) energy() {
	b.elecDemand = milp.NewExpr(0)
	b.chillDemand = milp.NewExpr(0)
	for _, id := range b.s.Subsets().Processes {
		u, _ := b.s.Unit(id)
		base := u.Base()
		if base.Electricity.Rate != 0 {
			b.elecDemand.AddExpr(b.refFlow(id, base.Electricity.Reference), base.Electricity.Rate)
		}
		if base.Chilling.Rate != 0 {
			b.chillDemand.AddExpr(b.refFlow(id, base.Chilling.Reference), base.Chilling.Rate)
		}
	}

	genHeat, genElec := milp.NewExpr(0), milp.NewExpr(0)
	for _, id := range b.s.Subsets().Generators() {
		u, _ := b.s.Unit(id)
		eff := u.(superstructure.Generator).Efficiencies()
		for _, i := range b.comps {
			lhv := b.s.HeatingValues[i]
			if lhv == 0 {
				continue
			}
			in := b.in[unitComp{id, i}]
			if eff.Thermal > 0 {
				genHeat.Add(in, eff.Thermal*lhv)
			}
			if eff.Electrical > 0 {
				genElec.Add(in, eff.Electrical*lhv)
			}
		}
	}
	gh := b.aggregate(symGenHeat, genHeat)
	ge := b.aggregate(symGenElec, genElec)
	b.aggregate("ELEC_DEMAND", b.elecDemand)

	var hpElec milp.Expr
	grid := b.s.Grid()
	if hp := b.s.HeatPump; hp != nil && grid.Pump() != nil {
		b.hasPump = true
		yhp := b.binary(symYHP)
		capacity := hp.MaxCapacity
		if capacity <= 0 {
			capacity = b.s.DefaultBigM
		}
		b.hpDuty = b.nonneg(symHPDuty)
		e := milp.Sum(1, b.hpDuty)
		e.Add(yhp, -capacity)
		b.con("HP_GATE", e, milp.LE, 0)
		hpElec = milp.Sum(1/hp.COP, b.hpDuty)
	}

	// ELEC_PURCHASE - ELEC_SELL = demand - generation + heat pump drive
	b.elecBuy = b.nonneg(symElecBuy)
	b.elecSell = b.nonneg(symElecSell)
	e := milp.Sum(1, b.elecBuy)
	e.Add(b.elecSell, -1)
	e.AddExpr(b.elecDemand, -1)
	e.Add(ge, 1)
	if b.hasPump {
		e.AddExpr(hpElec, -1)
	}
	b.con("ELEC_BALANCE", e, milp.EQ, 0)
	e = milp.Sum(1, b.elecSell)
	e.Add(ge, -1)
	b.con("ELEC_SELL_CAP", e, milp.LE, 0)

	b.chilling = b.nonneg(symChilling)
	e = milp.Sum(1, b.chilling)
	e.AddExpr(b.chillDemand, -1)
	b.con("CHILLING_BALANCE", e, milp.EQ, 0)

	b.cascade(grid, gh)
}

// cascade emits the heat cascade. Interval k receives the residual of k-1
// (generator heat for the first interval), released cooling duties, hot
// utility and heat pump delivery, and passes on what its heating duties and
// heat pump absorption leave. The residual of the last interval is removed
// by purchased cooling.
func (b *builder) cascade(grid *heat.Grid, genHeat milp.Var) {
	heating := make(map[int]*milp.Expr)
	cooling := make(map[int]*milp.Expr)
	intervals := grid.Intervals()
	for _, iv := range intervals {
		h, c := milp.NewExpr(0), milp.NewExpr(0)
		heating[iv.K], cooling[iv.K] = &h, &c
	}
	b.heatNeeded = milp.NewExpr(0)
	coolTotal := milp.NewExpr(0)
	for _, id := range b.s.Subsets().Processes {
		u, _ := b.s.Unit(id)
		for slot, d := range u.Base().Heat {
			if d.Rate == 0 {
				continue
			}
			ref := b.refFlow(id, d.Reference)
			dk := heat.DemandKey{Unit: id, Slot: slot}
			for _, k := range grid.BetaIntervals(dk) {
				beta, _ := grid.Beta(dk, k)
				if d.Rate > 0 {
					heating[k].AddExpr(ref, beta*d.Rate)
					b.heatNeeded.AddExpr(ref, beta*d.Rate)
				} else {
					cooling[k].AddExpr(ref, -beta*d.Rate)
					coolTotal.AddExpr(ref, -beta*d.Rate)
				}
			}
		}
	}
	b.aggregate("HEAT_DEMAND", b.heatNeeded)
	b.aggregate("COOLING_DEMAND", coolTotal)

	b.cooling = b.nonneg(symCooling)
	if len(intervals) == 0 {
		e := milp.Sum(1, b.cooling)
		e.Add(genHeat, -1)
		b.con("COOLING_BALANCE", e, milp.EQ, 0)
		return
	}

	pump := grid.Pump()
	var prev milp.Var
	for _, iv := range intervals {
		k := iv.K
		hu := b.nonneg(key(symHeatUtil, k))
		b.heatUtil[k] = hu
		res := b.nonneg(key(symResidual, k))

		// RESIDUAL[k] = inflow + cooling[k] - heating[k] + HEAT_UTILITY[k]
		e := milp.Sum(1, res)
		switch iv.Position {
		case heat.PositionFirst, heat.PositionOnly:
			e.Add(genHeat, -1)
		default:
			e.Add(prev, -1)
		}
		e.AddExpr(*cooling[k], -1)
		e.AddExpr(*heating[k], 1)
		e.Add(hu, -1)
		if b.hasPump {
			if k == pump.Sink {
				e.Add(b.hpDuty, -1)
			}
			if k == pump.Source {
				e.Add(b.hpDuty, 1-1/b.s.HeatPump.COP)
			}
		}
		b.con(key("HEAT_CASCADE", k), e, milp.EQ, 0)

		switch iv.Position {
		case heat.PositionLast, heat.PositionOnly:
			c := milp.Sum(1, b.cooling)
			c.Add(res, -1)
			b.con("COOLING_BALANCE", c, milp.EQ, 0)
		}
		prev = res
	}
}
