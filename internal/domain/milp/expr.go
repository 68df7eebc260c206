package milp

import "sort"

// Term is coefficient * variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression sum(Terms) + Constant. The zero value is the
// empty expression.
type Expr struct {
	Terms    []Term
	Constant float64
}

// NewExpr starts an expression from a constant.
func NewExpr(constant float64) Expr { return Expr{Constant: constant} }

// Sum builds coef * v for each v.
func Sum(coef float64, vars ...Var) Expr {
	e := Expr{Terms: make([]Term, 0, len(vars))}
	for _, v := range vars {
		e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	}
	return e
}

// Add appends coef * v and returns e for chaining.
func (e *Expr) Add(v Var, coef float64) *Expr {
	if coef != 0 {
		e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	}
	return e
}

// AddConst adds c to the constant.
func (e *Expr) AddConst(c float64) *Expr {
	e.Constant += c
	return e
}

// AddExpr adds scale * o.
func (e *Expr) AddExpr(o Expr, scale float64) *Expr {
	if scale == 0 {
		return e
	}
	for _, t := range o.Terms {
		e.Terms = append(e.Terms, Term{Var: t.Var, Coef: t.Coef * scale})
	}
	e.Constant += o.Constant * scale
	return e
}

// Empty reports whether the expression has no terms.
func (e Expr) Empty() bool { return len(e.Terms) == 0 }

// Clone copies the term slice.
func (e Expr) Clone() Expr {
	return Expr{Terms: append([]Term(nil), e.Terms...), Constant: e.Constant}
}

// Normalize merges repeated variables, drops zero coefficients and orders
// terms by variable index.
func (e Expr) Normalize() Expr {
	if len(e.Terms) == 0 {
		return Expr{Constant: e.Constant}
	}
	acc := make(map[Var]float64, len(e.Terms))
	order := make([]Var, 0, len(e.Terms))
	for _, t := range e.Terms {
		if _, seen := acc[t.Var]; !seen {
			order = append(order, t.Var)
		}
		acc[t.Var] += t.Coef
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := Expr{Terms: make([]Term, 0, len(order)), Constant: e.Constant}
	for _, v := range order {
		if c := acc[v]; c != 0 {
			out.Terms = append(out.Terms, Term{Var: v, Coef: c})
		}
	}
	return out
}

// Eval computes the expression at x.
func (e Expr) Eval(x []float64) float64 {
	s := e.Constant
	for _, t := range e.Terms {
		s += t.Coef * x[t.Var]
	}
	return s
}

// Coef returns the coefficient of v, summing repeats.
func (e Expr) Coef(v Var) float64 {
	c := 0.0
	for _, t := range e.Terms {
		if t.Var == v {
			c += t.Coef
		}
	}
	return c
}
