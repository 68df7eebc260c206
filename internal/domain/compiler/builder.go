package compiler

import (
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
)

// Variable and constraint families. Names are BASE[index,...].
const (
	symY          = "Y"
	symYDist      = "Y_DIST"
	symYHP        = "Y_HP"
	symSourceFlow = "SOURCE_FLOW"
	symFlowIn     = "FLOW_IN"
	symFlowOut    = "FLOW_OUT"
	symFlow       = "FLOW"
	symFlowDist   = "FLOW_DIST"
	symWaste      = "WASTE"
	symProduct    = "PRODUCT_FLOW"
	symLambda     = "LAMBDA"
	symSegment    = "Z"
	symEC         = "EC"
	symHeatUtil   = "HEAT_UTILITY"
	symResidual   = "RESIDUAL"
	symHPDuty     = "HP_DUTY"
	symElecBuy    = "ELEC_PURCHASE"
	symElecSell   = "ELEC_SELL"
	symChilling   = "CHILLING"
	symCooling    = "COOLING"
	symGenHeat    = "GEN_HEAT"
	symGenElec    = "GEN_ELEC"
	symHPCost     = "HP_COST"
)

// key formats a composite index: key("FLOW", 1, 2, "A") = "FLOW[1,2,A]".
func key(base string, idx ...interface{}) string {
	if len(idx) == 0 {
		return base
	}
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteByte('[')
	for i, x := range idx {
		if i > 0 {
			sb.WriteByte(',')
		}
		switch v := x.(type) {
		case int:
			sb.WriteString(strconv.Itoa(v))
		case string:
			sb.WriteString(v)
		default:
			sb.WriteString("?")
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

type unitComp struct {
	unit int
	comp string
}

type arc struct {
	from, to int
	comp     string
}

// builder emits one block of the model. Second-stage symbols carry prefix;
// first-stage binaries live in shared and are created once.
type builder struct {
	m      *milp.Model
	v      superstructure.View
	s      *superstructure.Superstructure
	prefix string
	shared map[string]milp.Var
	first  []milp.Var

	comps []string

	y       map[int]milp.Var
	in      map[unitComp]milp.Var
	out     map[unitComp]milp.Var
	flow    map[arc]milp.Var
	waste   map[unitComp]milp.Var
	source  map[int]milp.Var
	product map[int]milp.Var
	ec      map[int]milp.Var

	// energy aggregates per hour, filled by energy()
	elecDemand  milp.Expr
	chillDemand milp.Expr
	heatNeeded  milp.Expr
	heatUtil    map[int]milp.Var
	elecBuy     milp.Var
	elecSell    milp.Var
	chilling    milp.Var
	cooling     milp.Var
	hpDuty      milp.Var
	hasPump     bool

	aggregates map[string]milp.Var
	// extras are reported expressions that need no variable of their own
	extras map[string]milp.Expr
}

func newBuilder(m *milp.Model, v superstructure.View, prefix string, shared map[string]milp.Var) *builder {
	if shared == nil {
		shared = make(map[string]milp.Var)
	}
	return &builder{
		m:          m,
		v:          v,
		s:          v.Superstructure(),
		prefix:     prefix,
		shared:     shared,
		comps:      v.Superstructure().Components,
		y:          make(map[int]milp.Var),
		in:         make(map[unitComp]milp.Var),
		out:        make(map[unitComp]milp.Var),
		flow:       make(map[arc]milp.Var),
		waste:      make(map[unitComp]milp.Var),
		source:     make(map[int]milp.Var),
		product:    make(map[int]milp.Var),
		ec:         make(map[int]milp.Var),
		heatUtil:   make(map[int]milp.Var),
		aggregates: make(map[string]milp.Var),
		extras:     make(map[string]milp.Expr),
	}
}

// binary returns the shared first-stage binary name, creating it once.
func (b *builder) binary(name string) milp.Var {
	v, ok := b.shared[name]
	if !ok {
		v = b.m.Binary(name)
		b.shared[name] = v
	}
	b.first = append(b.first, v)
	return v
}

func (b *builder) nonneg(name string) milp.Var { return b.m.NonNegative(b.prefix + name) }

func (b *builder) free(name string) milp.Var { return b.m.Free(b.prefix + name) }

func (b *builder) bounded(name string, lo, hi float64) milp.Var {
	return b.m.Continuous(b.prefix+name, lo, hi)
}

func (b *builder) con(name string, e milp.Expr, rel milp.Relation, rhs float64) {
	b.m.AddConstraint(b.prefix+name, e, rel, rhs)
}

// aggregate creates a free variable pinned to e.
func (b *builder) aggregate(name string, e milp.Expr) milp.Var {
	v := b.free(name)
	def := e.Clone()
	def.Add(v, -1)
	b.con("DEF_"+name, def, milp.EQ, 0)
	b.aggregates[name] = v
	return v
}

// build emits every family except the shared logic constraints.
func (b *builder) build() {
	b.selection()
	b.flows()
	b.balances()
	b.splits()
	b.distributors()
	b.energy()
	b.economics()
	b.environment()
}

func (b *builder) finish(obj superstructure.Objective) *Compiled {
	b.objectiveAggregates()
	c := &Compiled{
		Model:      b.m,
		Objective:  obj,
		FirstStage: b.first,
		prefix:     b.prefix,
		aggregates: b.aggregates,
		extras:     b.extras,
	}
	c.ObjectiveVar = b.aggregates[AggregateFor(obj)]
	return c
}

// AggregateFor names the aggregate that carries obj.
func AggregateFor(obj superstructure.Objective) string {
	switch obj {
	case superstructure.ObjectiveNPE:
		return AggNPE
	case superstructure.ObjectiveFWD:
		return AggFWD
	case superstructure.ObjectiveTAC:
		return AggTAC
	case superstructure.ObjectiveEBIT:
		return AggEBIT
	default:
		return AggNPC
	}
}

// refFlow returns the reference flow expression of unit u.
func (b *builder) refFlow(u int, ref superstructure.Reference) milp.Expr {
	side := b.in
	if ref.Flow == superstructure.RefOutlet {
		side = b.out
	}
	e := milp.NewExpr(0)
	for _, i := range b.comps {
		if !ref.Includes(i) {
			continue
		}
		if v, ok := side[unitComp{u, i}]; ok {
			e.Add(v, 1)
		}
	}
	return e
}

func sortedNames(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
