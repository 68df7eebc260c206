// Package milp is the solver-neutral model representation produced by the
// compiler: variables with bounds and domains, linear constraints, a linear
// objective and the Solver contract that turns a model into a Result.
package milp

import (
	"math"
	"sort"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

// Inf is an unbounded variable bound.
var Inf = math.Inf(1)

// Domain is the value domain of a variable.
type Domain int

const (
	Continuous Domain = iota
	Binary
	Integer
)

func (d Domain) String() string {
	switch d {
	case Binary:
		return "binary"
	case Integer:
		return "integer"
	default:
		return "continuous"
	}
}

// Var is a variable handle, an index into the model's variable table.
type Var int

// Variable describes one decision variable.
type Variable struct {
	Name   string
	Lower  float64
	Upper  float64
	Domain Domain
}

// Relation is the comparison of a constraint.
type Relation int

const (
	LE Relation = iota
	GE
	EQ
)

func (r Relation) String() string {
	switch r {
	case GE:
		return ">="
	case EQ:
		return "="
	default:
		return "<="
	}
}

// Constraint is Expr Rel RHS. The expression constant is always zero once the
// constraint is stored; AddConstraint moves it to the right-hand side.
type Constraint struct {
	Name string
	Expr Expr
	Rel  Relation
	RHS  float64
}

// Sense is the optimization direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Model is a mixed-integer linear program. It is not safe for concurrent
// mutation; scenario workers each build or Clone their own.
type Model struct {
	Name string

	vars     []Variable
	byName   map[string]Var
	cons     []Constraint
	conNames map[string]int
	obj      Expr
	sense    Sense
	err      error
}

// NewModel returns an empty minimization model.
func NewModel(name string) *Model {
	return &Model{
		Name:     name,
		byName:   make(map[string]Var),
		conNames: make(map[string]int),
	}
}

// Err returns the first error recorded while building the model.
func (m *Model) Err() error { return m.err }

func (m *Model) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

// AddVar adds a variable. A duplicate name records a compilation error and
// returns the existing handle.
func (m *Model) AddVar(name string, lower, upper float64, dom Domain) Var {
	if v, ok := m.byName[name]; ok {
		m.fail(errors.NewCompilationError(errors.ErrCodeDuplicateSymbol, "duplicate variable %q", name))
		return v
	}
	if dom == Binary {
		lower, upper = math.Max(lower, 0), math.Min(upper, 1)
	}
	if lower > upper {
		m.fail(errors.NewCompilationError(errors.ErrCodeInconsistentSets, "variable %q has lower bound %g above upper bound %g", name, lower, upper))
	}
	v := Var(len(m.vars))
	m.vars = append(m.vars, Variable{Name: name, Lower: lower, Upper: upper, Domain: dom})
	m.byName[name] = v
	return v
}

// Continuous adds a continuous variable.
func (m *Model) Continuous(name string, lower, upper float64) Var {
	return m.AddVar(name, lower, upper, Continuous)
}

// NonNegative adds a continuous variable in [0, +inf).
func (m *Model) NonNegative(name string) Var {
	return m.AddVar(name, 0, Inf, Continuous)
}

// Free adds a continuous variable without bounds.
func (m *Model) Free(name string) Var {
	return m.AddVar(name, -Inf, Inf, Continuous)
}

// Binary adds a 0/1 variable.
func (m *Model) Binary(name string) Var {
	return m.AddVar(name, 0, 1, Binary)
}

// Lookup finds a variable by name.
func (m *Model) Lookup(name string) (Var, bool) {
	v, ok := m.byName[name]
	return v, ok
}

// Variable returns the description of v.
func (m *Model) Variable(v Var) Variable { return m.vars[v] }

// Variables returns a copy of the variable table.
func (m *Model) Variables() []Variable { return append([]Variable(nil), m.vars...) }

// NumVars is the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// AddConstraint appends expr rel rhs. The expression is normalized and its
// constant folded into the right-hand side.
func (m *Model) AddConstraint(name string, expr Expr, rel Relation, rhs float64) {
	if _, ok := m.conNames[name]; ok {
		m.fail(errors.NewCompilationError(errors.ErrCodeDuplicateSymbol, "duplicate constraint %q", name))
		return
	}
	e := expr.Normalize()
	rhs -= e.Constant
	e.Constant = 0
	for _, t := range e.Terms {
		if int(t.Var) < 0 || int(t.Var) >= len(m.vars) {
			m.fail(errors.NewCompilationError(errors.ErrCodeInconsistentSets, "constraint %q references unknown variable %d", name, t.Var))
			return
		}
	}
	m.conNames[name] = len(m.cons)
	m.cons = append(m.cons, Constraint{Name: name, Expr: e, Rel: rel, RHS: rhs})
}

// Constraints returns the constraint list.
func (m *Model) Constraints() []Constraint { return m.cons }

// Constraint looks a constraint up by name.
func (m *Model) Constraint(name string) (Constraint, bool) {
	i, ok := m.conNames[name]
	if !ok {
		return Constraint{}, false
	}
	return m.cons[i], true
}

// NumConstraints is the number of constraints.
func (m *Model) NumConstraints() int { return len(m.cons) }

// SetObjective sets the objective.
func (m *Model) SetObjective(sense Sense, expr Expr) {
	m.sense = sense
	m.obj = expr.Normalize()
}

// Objective returns the objective sense and expression.
func (m *Model) Objective() (Sense, Expr) { return m.sense, m.obj }

// Sense returns the objective sense.
func (m *Model) Sense() Sense { return m.sense }

// ─────────────────────────────────────────────────────────────────────────────
// re-solve hooks
// ─────────────────────────────────────────────────────────────────────────────

// SetBounds changes the bounds of v.
func (m *Model) SetBounds(v Var, lower, upper float64) {
	m.vars[v].Lower, m.vars[v].Upper = lower, upper
}

// Fix pins v to value.
func (m *Model) Fix(v Var, value float64) {
	m.SetBounds(v, value, value)
}

// FixByName pins the named variable. It reports whether the variable exists.
func (m *Model) FixByName(name string, value float64) bool {
	v, ok := m.byName[name]
	if ok {
		m.Fix(v, value)
	}
	return ok
}

// Clone returns a deep copy that can be mutated independently.
func (m *Model) Clone() *Model {
	c := &Model{
		Name:     m.Name,
		vars:     append([]Variable(nil), m.vars...),
		byName:   make(map[string]Var, len(m.byName)),
		cons:     make([]Constraint, len(m.cons)),
		conNames: make(map[string]int, len(m.conNames)),
		obj:      m.obj.Clone(),
		sense:    m.sense,
		err:      m.err,
	}
	for k, v := range m.byName {
		c.byName[k] = v
	}
	for k, v := range m.conNames {
		c.conNames[k] = v
	}
	for i, con := range m.cons {
		con.Expr = con.Expr.Clone()
		c.cons[i] = con
	}
	return c
}

// ─────────────────────────────────────────────────────────────────────────────
// evaluation
// ─────────────────────────────────────────────────────────────────────────────

// Stats summarizes model size.
type Stats struct {
	Variables   int
	Binaries    int
	Integers    int
	Constraints int
	Nonzeros    int
}

// Stats counts variables, constraints and nonzeros.
func (m *Model) Stats() Stats {
	s := Stats{Variables: len(m.vars), Constraints: len(m.cons)}
	for _, v := range m.vars {
		switch v.Domain {
		case Binary:
			s.Binaries++
		case Integer:
			s.Integers++
		}
	}
	for _, c := range m.cons {
		s.Nonzeros += len(c.Expr.Terms)
	}
	return s
}

// Violation is a bound, integrality or constraint breach of a point.
type Violation struct {
	Name   string
	Amount float64
}

// Violations checks x against every bound, integrality requirement and
// constraint and returns the breaches larger than tol, sorted by name.
func (m *Model) Violations(x []float64, tol float64) []Violation {
	var out []Violation
	for i, v := range m.vars {
		val := x[i]
		if d := v.Lower - val; d > tol {
			out = append(out, Violation{Name: v.Name + ".lower", Amount: d})
		}
		if d := val - v.Upper; d > tol {
			out = append(out, Violation{Name: v.Name + ".upper", Amount: d})
		}
		if v.Domain != Continuous {
			if d := math.Abs(val - math.Round(val)); d > tol {
				out = append(out, Violation{Name: v.Name + ".integrality", Amount: d})
			}
		}
	}
	for _, c := range m.cons {
		lhs := c.Expr.Eval(x)
		var d float64
		switch c.Rel {
		case LE:
			d = lhs - c.RHS
		case GE:
			d = c.RHS - lhs
		case EQ:
			d = math.Abs(lhs - c.RHS)
		}
		if d > tol*math.Max(1, math.Abs(c.RHS)) {
			out = append(out, Violation{Name: c.Name, Amount: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
