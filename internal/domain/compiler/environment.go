package compiler

import (
	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
)

// environment emits yearly global warming potential and freshwater demand:
// waste and source burdens plus utility factors, less the credits of sold
// electricity and of products.
func (b *builder) environment() {
	gwp := b.impact(
		func(w superstructure.WasteCategory) float64 { return w.GWP },
		func(s *superstructure.Source) float64 { return s.GWP },
		func(p *superstructure.ProductPool) float64 { return p.GWPCredit },
		func(u superstructure.Utility) float64 { return u.GWP },
		b.s.Environment.ElectricityGWP, b.s.Environment.ChillingGWP, b.s.Environment.CoolingGWP,
	)
	b.aggregate(AggGWP, gwp)

	fwd := b.impact(
		func(w superstructure.WasteCategory) float64 { return w.FWD },
		func(s *superstructure.Source) float64 { return s.FWD },
		func(p *superstructure.ProductPool) float64 { return p.FWDCredit },
		func(u superstructure.Utility) float64 { return u.FWD },
		b.s.Environment.ElectricityFWD, b.s.Environment.ChillingFWD, b.s.Environment.CoolingFWD,
	)
	b.aggregate(AggFWD, fwd)
}

func (b *builder) impact(
	waste func(superstructure.WasteCategory) float64,
	source func(*superstructure.Source) float64,
	credit func(*superstructure.ProductPool) float64,
	utility func(superstructure.Utility) float64,
	elec, chill, cool float64,
) milp.Expr {
	hours := b.s.Economics.OperatingHours
	e := milp.NewExpr(0)

	for _, id := range b.s.Subsets().Processes {
		u, _ := b.s.Unit(id)
		cat, ok := b.s.Waste[u.Base().WasteCategory]
		if !ok {
			continue
		}
		if f := waste(cat); f != 0 {
			for _, i := range b.comps {
				e.Add(b.waste[unitComp{id, i}], f*b.s.FullLoadHours(id))
			}
		}
	}
	for _, id := range b.s.Subsets().Sources {
		if f := source(mustUnit[*superstructure.Source](b.s, id)); f != 0 {
			e.Add(b.source[id], f*b.s.FullLoadHours(id))
		}
	}
	for _, id := range b.s.Subsets().ProductPools {
		if f := credit(mustUnit[*superstructure.ProductPool](b.s, id)); f != 0 {
			e.Add(b.product[id], -f*b.s.FullLoadHours(id))
		}
	}

	factors := make(map[string]float64, len(b.s.Utilities))
	for _, u := range b.s.Utilities {
		factors[u.Name] = utility(u)
	}
	for _, iv := range b.s.Grid().Intervals() {
		if f := factors[iv.Utility]; f != 0 {
			e.Add(b.heatUtil[iv.K], f*hours)
		}
	}
	e.Add(b.elecBuy, elec*hours)
	e.Add(b.elecSell, -elec*hours)
	e.Add(b.chilling, chill*hours)
	e.Add(b.cooling, cool*hours)
	return e
}
