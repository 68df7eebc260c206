package compiler

import (
	"math"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
)

func (b *builder) selection() {
	for _, id := range b.s.IDs() {
		b.y[id] = b.binary(key(symY, id))
	}
}

// flows creates the stream variables of every unit and connection.
func (b *builder) flows() {
	sub := b.s.Subsets()
	for _, id := range sub.Sources {
		src := mustUnit[*superstructure.Source](b.s, id)
		b.source[id] = b.bounded(key(symSourceFlow, id), 0, src.UpperLimit)
	}
	for _, id := range b.s.IDs() {
		u, _ := b.s.Unit(id)
		_, isSource := u.(*superstructure.Source)
		_, isPool := u.(*superstructure.ProductPool)
		for _, i := range b.comps {
			if !isSource {
				b.in[unitComp{id, i}] = b.nonneg(key(symFlowIn, id, i))
			}
			if !isPool {
				b.out[unitComp{id, i}] = b.nonneg(key(symFlowOut, id, i))
			}
			if u.Kind().Processing() {
				b.waste[unitComp{id, i}] = b.nonneg(key(symWaste, id, i))
			}
		}
	}
	for _, c := range b.s.Connections() {
		for _, i := range b.comps {
			b.flow[arc{c.From, c.To, i}] = b.nonneg(key(symFlow, c.From, c.To, i))
		}
	}
	for _, id := range sub.ProductPools {
		p := mustUnit[*superstructure.ProductPool](b.s, id)
		b.product[id] = b.bounded(key(symProduct, id), 0, p.MaxProduction)
	}
}

// balances emits inflow, conversion and waste balances together with the
// selection gates on unit flows.
func (b *builder) balances() {
	for _, id := range b.s.Subsets().Sources {
		src := mustUnit[*superstructure.Source](b.s, id)
		m := b.s.BigM(id)
		sf := b.source[id]
		gate := milp.Sum(1, sf)
		gate.Add(b.y[id], -math.Min(src.UpperLimit, m))
		b.con(key("SOURCE_MAX", id), gate, milp.LE, 0)
		low := milp.Sum(1, sf)
		low.Add(b.y[id], -src.LowerLimit)
		b.con(key("SOURCE_MIN", id), low, milp.GE, 0)
		for _, i := range b.comps {
			e := milp.Sum(1, b.out[unitComp{id, i}])
			e.Add(sf, -b.v.Composition(id, i))
			b.con(key("SOURCE_COMPOSITION", id, i), e, milp.EQ, 0)
		}
	}

	for _, id := range b.s.IDs() {
		u, _ := b.s.Unit(id)
		if _, ok := u.(*superstructure.Source); ok {
			continue
		}
		m := b.s.BigM(id)
		for _, i := range b.comps {
			in := b.in[unitComp{id, i}]
			e := milp.Sum(1, in)
			add := milp.NewExpr(0)
			for _, up := range b.s.Upstream(id) {
				r := b.hoursRatio(up, id)
				e.Add(b.flow[arc{up, id, i}], -r)
				if uu, _ := b.s.Unit(up); uu.Kind() == superstructure.KindSource {
					add.Add(b.flow[arc{up, id, i}], r)
				}
			}
			b.con(key("MASS_IN", id, i), e, milp.EQ, 0)
			if !add.Empty() {
				b.extras[key("FLOW_ADD", id, i)] = add
			}

			g := milp.Sum(1, in)
			g.Add(b.y[id], -m)
			b.con(key("GATE_IN", id, i), g, milp.LE, 0)
		}
		b.conversion(id, u)
	}

	for _, id := range b.s.Subsets().ProductPools {
		p := mustUnit[*superstructure.ProductPool](b.s, id)
		e := milp.Sum(1, b.product[id])
		for _, i := range b.comps {
			e.Add(b.in[unitComp{id, i}], -1)
		}
		b.con(key("PRODUCT_BALANCE", id), e, milp.EQ, 0)
		g := milp.Sum(1, b.product[id])
		g.Add(b.y[id], -math.Min(p.MaxProduction, b.s.BigM(id)))
		b.con(key("PRODUCT_GATE", id), g, milp.LE, 0)
		// a minimum binds only when the pool is selected
		if p.MinProduction > 0 {
			low := milp.Sum(1, b.product[id])
			low.Add(b.y[id], -p.MinProduction)
			b.con(key("PRODUCT_MIN", id), low, milp.GE, 0)
		}
	}

	// outflow leaves through connections; processes may discard the rest
	for _, id := range b.s.IDs() {
		u, _ := b.s.Unit(id)
		if _, ok := u.(*superstructure.ProductPool); ok {
			continue
		}
		for _, i := range b.comps {
			e := milp.Sum(1, b.out[unitComp{id, i}])
			for _, t := range b.s.Downstream(id) {
				e.Add(b.flow[arc{id, t, i}], -1)
			}
			if w, ok := b.waste[unitComp{id, i}]; ok {
				e.Add(w, -1)
			}
			b.con(key("MASS_OUT", id, i), e, milp.EQ, 0)
		}
	}
}

// conversion relates outflow to inflow according to the unit variant.
func (b *builder) conversion(id int, u superstructure.Unit) {
	switch v := u.(type) {
	case *superstructure.ProductPool:
		return
	case *superstructure.YieldReactor:
		for _, i := range b.comps {
			e := milp.Sum(1, b.out[unitComp{id, i}])
			if yi := b.v.Yield(id, i); yi != 0 {
				for _, j := range b.comps {
					if !v.Inerts[j] {
						e.Add(b.in[unitComp{id, j}], -yi)
					}
				}
			}
			if v.Inerts[i] {
				e.Add(b.in[unitComp{id, i}], -1)
			}
			b.con(key("YIELD", id, i), e, milp.EQ, 0)
		}
	case interface{ ReactionSet() *superstructure.Reactions }:
		rs := v.ReactionSet()
		for _, i := range b.comps {
			e := milp.Sum(1, b.out[unitComp{id, i}])
			e.Add(b.in[unitComp{id, i}], -1)
			for _, r := range rs.Names() {
				gamma, ok := b.v.Gamma(id, i, r)
				if !ok || gamma == 0 {
					continue
				}
				for _, ck := range rs.ConversionKeys() {
					if ck.Reaction != r {
						continue
					}
					theta, _ := b.v.Theta(id, r, ck.Reactant)
					if in, ok := b.in[unitComp{id, ck.Reactant}]; ok {
						e.Add(in, -gamma*theta)
					}
				}
			}
			b.con(key("STOICH", id, i), e, milp.EQ, 0)
		}
	default:
		// physical processes and distributors pass material through
		for _, i := range b.comps {
			e := milp.Sum(1, b.out[unitComp{id, i}])
			e.Add(b.in[unitComp{id, i}], -1)
			b.con(key("PASS", id, i), e, milp.EQ, 0)
		}
	}
}

// splits emits the split-fraction bounds of declared split keys and the
// selection gates of every connection.
func (b *builder) splits() {
	for _, c := range b.s.Connections() {
		u, _ := b.s.Unit(c.From)
		mFrom, mTo := b.s.BigM(c.From), b.s.BigM(c.To)
		_, isDist := u.(*superstructure.Distributor)
		declared := !isDist && len(u.Base().Splits) > 0 && containsTarget(u.Base().SplitTargets(), c.To)
		for _, i := range b.comps {
			f := b.flow[arc{c.From, c.To, i}]

			g := milp.Sum(1, f)
			g.Add(b.y[c.From], -mFrom)
			b.con(key("GATE_FROM", c.From, c.To, i), g, milp.LE, 0)
			g = milp.Sum(1, f)
			g.Add(b.y[c.To], -mTo)
			b.con(key("GATE_TO", c.From, c.To, i), g, milp.LE, 0)

			if !declared {
				continue
			}
			myu, _ := b.v.Split(c.From, c.To, i)
			out := b.out[unitComp{c.From, i}]
			// FLOW - myu*OUT <= M(1 - Y[to])
			up := milp.Sum(1, f)
			up.Add(out, -myu)
			up.Add(b.y[c.To], mTo)
			b.con(key("SPLIT_UB", c.From, c.To, i), up, milp.LE, mTo)
			// FLOW - myu*OUT >= -M(1 - Y[to])
			lo := milp.Sum(1, f)
			lo.Add(out, -myu)
			lo.Add(b.y[c.To], -mTo)
			b.con(key("SPLIT_LB", c.From, c.To, i), lo, milp.GE, -mTo)
		}
	}
}

// hoursRatio scales a flow crossing from a unit with different full load
// hours, so yearly mass is conserved.
func (b *builder) hoursRatio(from, to int) float64 {
	hf, ht := b.s.FullLoadHours(from), b.s.FullLoadHours(to)
	if hf <= 0 || ht <= 0 {
		return 1
	}
	return hf / ht
}

func containsTarget(ts []int, t int) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

// mustUnit returns unit id as T. The subsets guarantee the type.
func mustUnit[T superstructure.Unit](s *superstructure.Superstructure, id int) T {
	u, _ := s.Unit(id)
	return u.(T)
}
