package compiler

import (
	"sort"
	"strings"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
)

// Derived result keys that have no model variable.
const (
	KeyObjective = "OBJ"
	KeyMargin    = "MARGIN"
)

// Results is the flat key to value view of a solved (sub)model: every
// variable by name, the aggregates, and derived entries such as FLOW_ADD,
// ACC and MARGIN.
type Results map[string]float64

// Collect reads r through c. Scenario blocks of an extensive form report
// their own symbols without namespace plus the shared design binaries. An
// unsolved result yields nil.
func Collect(c *Compiled, r *milp.Result) Results {
	if r == nil || !r.HasSolution {
		return nil
	}
	out := make(Results)
	first := make(map[milp.Var]bool, len(c.FirstStage))
	for _, v := range c.FirstStage {
		first[v] = true
	}
	for i, v := range c.Model.Variables() {
		switch {
		case first[milp.Var(i)]:
			out[v.Name] = r.Values[i]
		case c.prefix == "" || strings.HasPrefix(v.Name, c.prefix):
			out[strings.TrimPrefix(v.Name, c.prefix)] = r.Values[i]
		}
	}
	for name, e := range c.extras {
		out[name] = e.Eval(r.Values)
	}
	out[KeyObjective] = r.Value(c.ObjectiveVar)
	out[KeyMargin] = out[AggProfit] - out[AggRawMaterial]
	return out
}

// Get returns the value of k.
func (r Results) Get(k string) (float64, bool) {
	v, ok := r[k]
	return v, ok
}

// Keys returns every key, sorted.
func (r Results) Keys() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Family returns the entries whose key starts with base followed by '['.
func (r Results) Family(base string) Results {
	out := make(Results)
	for k, v := range r {
		if strings.HasPrefix(k, base+"[") {
			out[k] = v
		}
	}
	return out
}

// Aggregates returns the headline totals.
func (r Results) Aggregates() Results {
	out := make(Results)
	for _, k := range []string{
		AggCapex, AggTCI, AggOpex, AggProfit, AggRawMaterial, AggUtility, AggOM, AggWaste, AggHEN,
		AggTAC, AggNPC, AggEBIT, AggNPE, AggGWP, AggFWD, KeyMargin, KeyObjective,
	} {
		if v, ok := r[k]; ok {
			out[k] = v
		}
	}
	return out
}
