package compiler

import (
	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
)

// distributors realizes each distributor's split. With fixed fractions the
// flow towards a target is fraction*outflow. Otherwise every (target, digit)
// pair gets a binary Y_DIST and a linearized product FLOW_DIST =
// Y_DIST*FLOW_OUT, and the active digit weights over all targets sum to the
// distributor's selection.
func (b *builder) distributors() {
	for _, id := range b.s.Subsets().Distributors {
		d := mustUnit[*superstructure.Distributor](b.s, id)
		if len(d.Fixed) > 0 {
			b.fixedDistributor(id, d)
			continue
		}
		enc, _ := b.s.Encoder(id)
		m := b.s.BigM(id)
		digits := enc.Digits()

		weights := milp.NewExpr(0)
		for _, t := range d.Targets {
			for _, w := range digits {
				yd := b.binary(key(symYDist, id, t, w.Index))
				weights.Add(yd, w.Float())

				// a digit towards an unselected target stays off
				g := milp.Sum(1, yd)
				g.Add(b.y[t], -1)
				b.con(key("DIST_TARGET", id, t, w.Index), g, milp.LE, 0)
			}
			for _, i := range b.comps {
				out := b.out[unitComp{id, i}]
				sum := milp.Sum(1, b.flow[arc{id, t, i}])
				for _, w := range digits {
					yd := b.shared[key(symYDist, id, t, w.Index)]
					fd := b.nonneg(key(symFlowDist, id, t, w.Index, i))
					sum.Add(fd, -w.Float())

					e := milp.Sum(1, fd)
					e.Add(yd, -m)
					b.con(key("DIST_ON", id, t, w.Index, i), e, milp.LE, 0)

					e = milp.Sum(1, fd)
					e.Add(out, -1)
					b.con(key("DIST_CAP", id, t, w.Index, i), e, milp.LE, 0)

					// FLOW_DIST >= FLOW_OUT - M(1 - Y_DIST)
					e = milp.Sum(1, fd)
					e.Add(out, -1)
					e.Add(yd, -m)
					b.con(key("DIST_LB", id, t, w.Index, i), e, milp.GE, -m)
				}
				b.con(key("DIST_FLOW", id, t, i), sum, milp.EQ, 0)
			}
		}
		weights.Add(b.y[id], -1)
		b.con(key("DIST_SUM", id), weights, milp.EQ, 0)
	}
}

func (b *builder) fixedDistributor(id int, d *superstructure.Distributor) {
	for _, t := range d.Targets {
		frac, _ := b.v.DistributorFraction(id, t)
		for _, i := range b.comps {
			e := milp.Sum(1, b.flow[arc{id, t, i}])
			e.Add(b.out[unitComp{id, i}], -frac)
			b.con(key("DIST_FIXED", id, t, i), e, milp.EQ, 0)
		}
	}
}
