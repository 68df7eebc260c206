package bnb

import (
	"math"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

type relaxStatus int

const (
	relaxOptimal relaxStatus = iota
	relaxInfeasible
	relaxUnbounded
)

// relaxation is the LP optimum of one node. obj is in minimization form.
type relaxation struct {
	status relaxStatus
	obj    float64
	x      []float64
}

// column maps an original variable onto standard-form columns:
// x = offset + sign*y[pos] - y[neg].
type column struct {
	fixed  bool
	offset float64
	sign   float64
	pos    int
	neg    int
}

type entry struct {
	col int
	val float64
}

type row struct {
	terms []entry
	rel   milp.Relation
	rhs   float64
}

// relax solves the LP relaxation of m under node bounds lb, ub. The model is
// brought to min cᵀy over y >= 0: fixed variables are substituted, finite
// lower bounds shifted, finite upper bounds become rows and free variables are
// split. stop is polled between pivots.
func relax(m *milp.Model, obj milp.Expr, sign float64, lb, ub []float64, tol float64, stop func() bool) (rel *relaxation, err error) {
	n := len(lb)
	cols := make([]column, n)
	nStd := 0
	var rows []row
	for j := 0; j < n; j++ {
		l, u := lb[j], ub[j]
		if l > u+tol {
			return &relaxation{status: relaxInfeasible}, nil
		}
		c := column{pos: -1, neg: -1, sign: 1}
		switch {
		case u-l <= tol:
			c.fixed, c.offset = true, l
		case !math.IsInf(l, -1):
			c.offset, c.pos = l, nStd
			nStd++
			if !math.IsInf(u, 1) {
				rows = append(rows, row{terms: []entry{{c.pos, 1}}, rel: milp.LE, rhs: u - l})
			}
		case !math.IsInf(u, 1):
			c.offset, c.sign, c.pos = u, -1, nStd
			nStd++
		default:
			c.pos, c.neg = nStd, nStd+1
			nStd += 2
		}
		cols[j] = c
	}

	for _, con := range m.Constraints() {
		r := row{rel: con.Rel, rhs: con.RHS}
		for _, t := range con.Expr.Terms {
			c := cols[t.Var]
			r.rhs -= t.Coef * c.offset
			if c.fixed {
				continue
			}
			r.terms = append(r.terms, entry{c.pos, t.Coef * c.sign})
			if c.neg >= 0 {
				r.terms = append(r.terms, entry{c.neg, -t.Coef})
			}
		}
		r.terms = dropTiny(r.terms)
		if len(r.terms) == 0 {
			if !constantHolds(r.rel, r.rhs, tol) {
				return &relaxation{status: relaxInfeasible}, nil
			}
			continue
		}
		rows = append(rows, r)
	}

	// standard-form cost
	cost := make([]float64, nStd)
	for _, t := range obj.Terms {
		c := cols[t.Var]
		if c.fixed {
			continue
		}
		cost[c.pos] += sign * t.Coef * c.sign
		if c.neg >= 0 {
			cost[c.neg] -= sign * t.Coef
		}
	}

	// columns untouched by any row sit at zero, or run away
	nnz := make([]int, nStd)
	for _, r := range rows {
		for _, e := range r.terms {
			nnz[e.col]++
		}
	}
	index := make([]int, nStd)
	kept := 0
	for k := 0; k < nStd; k++ {
		if nnz[k] == 0 {
			if cost[k] < -tol {
				return &relaxation{status: relaxUnbounded}, nil
			}
			index[k] = -1
			continue
		}
		index[k] = kept
		kept++
	}

	std := make([]row, len(rows))
	for i, r := range rows {
		terms := make([]entry, len(r.terms))
		for k, e := range r.terms {
			terms[k] = entry{index[e.col], e.val}
		}
		std[i] = row{terms: terms, rel: r.rel, rhs: r.rhs}
	}
	c := make([]float64, kept)
	for k := 0; k < nStd; k++ {
		if index[k] >= 0 {
			c[index[k]] = cost[k]
		}
	}

	y := make([]float64, nStd)
	if len(std) > 0 {
		status, opt, err := solveStandard(c, std, stop)
		switch {
		case err == errInterrupted:
			return nil, err
		case err != nil:
			return nil, errors.Wrap(err, errors.ErrCodeSolverFailure, "LP relaxation failed")
		case status == lpInfeasible:
			return &relaxation{status: relaxInfeasible}, nil
		case status == lpUnbounded:
			return &relaxation{status: relaxUnbounded}, nil
		}
		for k := 0; k < nStd; k++ {
			if index[k] >= 0 {
				y[k] = opt[index[k]]
			}
		}
	}

	x := make([]float64, n)
	for j, c := range cols {
		x[j] = c.offset
		if c.fixed {
			continue
		}
		x[j] += c.sign * y[c.pos]
		if c.neg >= 0 {
			x[j] -= y[c.neg]
		}
	}
	return &relaxation{status: relaxOptimal, obj: sign * obj.Eval(x), x: x}, nil
}

func dropTiny(ts []entry) []entry {
	out := ts[:0:0]
	for _, e := range ts {
		if math.Abs(e.val) > 1e-12 {
			out = append(out, e)
		}
	}
	return out
}

func constantHolds(rel milp.Relation, rhs, tol float64) bool {
	switch rel {
	case milp.LE:
		return rhs >= -tol
	case milp.GE:
		return rhs <= tol
	default:
		return math.Abs(rhs) <= tol
	}
}
