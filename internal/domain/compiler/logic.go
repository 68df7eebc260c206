package compiler

import (
	"sort"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
)

// logic emits the design constraints, which touch first-stage binaries only
// and are therefore emitted once per model:
//
//	group      Y[a] = Y[b] for members of one processing group
//	forced     Y[u] <= Σ Y[successor]
//	exclusive  Σ Y[member] <= 1
func (b *builder) logic() {
	groups := b.s.Groups()
	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)
	for _, g := range names {
		members := groups[g]
		for j := 1; j < len(members); j++ {
			e := milp.Sum(1, b.y[members[j]])
			e.Add(b.y[members[0]], -1)
			b.m.AddConstraint(key("GROUP", g, members[j]), e, milp.EQ, 0)
		}
	}

	for n, f := range b.s.Forced {
		e := milp.Sum(1, b.y[f.Unit])
		for _, t := range f.Successors {
			e.Add(b.y[t], -1)
		}
		b.m.AddConstraint(key("FORCED", f.Unit, n), e, milp.LE, 0)
	}

	for n, members := range b.s.Exclusive {
		e := milp.NewExpr(0)
		for _, id := range members {
			e.Add(b.y[id], 1)
		}
		b.m.AddConstraint(key("EXCLUSIVE", n), e, milp.LE, 1)
	}
}
