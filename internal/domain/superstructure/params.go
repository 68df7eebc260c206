package superstructure

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

// ParamKind names a family of uncertain or swept parameters.
type ParamKind string

const (
	ParamSplit               ParamKind = "split"
	ParamStoich              ParamKind = "stoich"
	ParamConversion          ParamKind = "conversion"
	ParamYield               ParamKind = "yield"
	ParamComposition         ParamKind = "composition"
	ParamSourceCost          ParamKind = "source_cost"
	ParamProductPrice        ParamKind = "product_price"
	ParamUtilityPrice        ParamKind = "utility_price"
	ParamDistributorFraction ParamKind = "distributor_fraction"
	ParamElectricityPrice    ParamKind = "electricity_price"
)

// ParamKey addresses one scalar parameter. Only the fields its kind uses are
// set:
//
//	split[u,target,component]      stoich[u,component,reaction]
//	conversion[u,reaction,reactant] yield[u,component]
//	composition[u,component]       source_cost[u]   product_price[u]
//	utility_price[name]            distributor_fraction[u,target]
//	electricity_price
type ParamKey struct {
	Kind      ParamKind
	Unit      int
	Target    int
	Component string
	Reaction  string
	Name      string
}

func (k ParamKey) String() string {
	switch k.Kind {
	case ParamSplit:
		return fmt.Sprintf("split[%d,%d,%s]", k.Unit, k.Target, k.Component)
	case ParamStoich:
		return fmt.Sprintf("stoich[%d,%s,%s]", k.Unit, k.Component, k.Reaction)
	case ParamConversion:
		return fmt.Sprintf("conversion[%d,%s,%s]", k.Unit, k.Reaction, k.Component)
	case ParamYield, ParamComposition:
		return fmt.Sprintf("%s[%d,%s]", k.Kind, k.Unit, k.Component)
	case ParamSourceCost, ParamProductPrice:
		return fmt.Sprintf("%s[%d]", k.Kind, k.Unit)
	case ParamUtilityPrice:
		return fmt.Sprintf("utility_price[%s]", k.Name)
	case ParamDistributorFraction:
		return fmt.Sprintf("distributor_fraction[%d,%d]", k.Unit, k.Target)
	default:
		return string(k.Kind)
	}
}

var paramArity = map[ParamKind]int{
	ParamSplit:               3,
	ParamStoich:              3,
	ParamConversion:          3,
	ParamYield:               2,
	ParamComposition:         2,
	ParamSourceCost:          1,
	ParamProductPrice:        1,
	ParamUtilityPrice:        1,
	ParamDistributorFraction: 2,
	ParamElectricityPrice:    0,
}

// ParseParamKey parses the textual form produced by ParamKey.String.
func ParseParamKey(s string) (ParamKey, error) {
	s = strings.TrimSpace(s)
	kind, args := s, []string(nil)
	if i := strings.IndexByte(s, '['); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return ParamKey{}, errors.InvalidParam("unterminated parameter key").WithDetail(s)
		}
		kind = s[:i]
		for _, a := range strings.Split(s[i+1:len(s)-1], ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}
	k := ParamKey{Kind: ParamKind(strings.ToLower(strings.TrimSpace(kind)))}
	n, ok := paramArity[k.Kind]
	if !ok {
		return ParamKey{}, errors.InvalidParam("unknown parameter kind").WithDetail(s)
	}
	if len(args) != n {
		return ParamKey{}, errors.InvalidParam("wrong number of parameter indices").WithDetailf("%s: want %d, got %d", s, n, len(args))
	}
	atoi := func(a string) (int, error) {
		v, err := strconv.Atoi(a)
		if err != nil {
			return 0, errors.InvalidParam("unit index must be an integer").WithDetail(s)
		}
		return v, nil
	}
	var err error
	switch k.Kind {
	case ParamUtilityPrice:
		k.Name = args[0]
	case ParamElectricityPrice:
	default:
		if k.Unit, err = atoi(args[0]); err != nil {
			return ParamKey{}, err
		}
	}
	switch k.Kind {
	case ParamSplit:
		if k.Target, err = atoi(args[1]); err != nil {
			return ParamKey{}, err
		}
		k.Component = args[2]
	case ParamStoich:
		k.Component, k.Reaction = args[1], args[2]
	case ParamConversion:
		k.Reaction, k.Component = args[1], args[2]
	case ParamYield, ParamComposition:
		k.Component = args[1]
	case ParamDistributorFraction:
		if k.Target, err = atoi(args[1]); err != nil {
			return ParamKey{}, err
		}
	}
	return k, nil
}

// Overrides is a sparse patch over base-case parameter values.
type Overrides map[ParamKey]float64

// Merge returns a new patch with p applied on top of o.
func (o Overrides) Merge(p Overrides) Overrides {
	out := make(Overrides, len(o)+len(p))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the patched keys ordered by their textual form.
func (o Overrides) Keys() []ParamKey {
	keys := make([]ParamKey, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// View reads parameters through a patch. The superstructure is never written.
type View struct {
	s *Superstructure
	o Overrides
}

// View returns a read view with o applied. A nil patch reads the base case.
func (s *Superstructure) View(o Overrides) View { return View{s: s, o: o} }

// Superstructure returns the base case.
func (v View) Superstructure() *Superstructure { return v.s }

// Overrides returns the patch.
func (v View) Overrides() Overrides { return v.o }

// With returns a view with p applied on top of the current patch.
func (v View) With(p Overrides) View { return View{s: v.s, o: v.o.Merge(p)} }

// BaseValue returns the unpatched value of key.
func (s *Superstructure) BaseValue(key ParamKey) (float64, error) {
	if v, ok := s.baseValue(key); ok {
		return v, nil
	}
	return 0, errors.NewCompilationError(errors.ErrCodeUnknownParameter, "parameter %s does not exist", key)
}

// Validate checks that every key of o names an existing parameter.
func (s *Superstructure) Validate(o Overrides) error {
	for _, k := range o.Keys() {
		if _, err := s.BaseValue(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Superstructure) baseValue(key ParamKey) (float64, bool) {
	if key.Kind == ParamElectricityPrice {
		return s.Economics.ElectricityPrice, true
	}
	if key.Kind == ParamUtilityPrice {
		for _, u := range s.Utilities {
			if u.Name == key.Name {
				return u.Cost, true
			}
		}
		return 0, false
	}
	u, ok := s.units[key.Unit]
	if !ok {
		return 0, false
	}
	switch key.Kind {
	case ParamSplit:
		return u.Base().Split(key.Target, key.Component)
	case ParamStoich:
		if g, ok := u.(interface{ ReactionSet() *Reactions }); ok {
			v, ok := g.ReactionSet().Gamma[StoichKey{Component: key.Component, Reaction: key.Reaction}]
			return v, ok
		}
	case ParamConversion:
		if g, ok := u.(interface{ ReactionSet() *Reactions }); ok {
			v, ok := g.ReactionSet().Theta[ConversionKey{Reaction: key.Reaction, Reactant: key.Component}]
			return v, ok
		}
	case ParamYield:
		if y, ok := u.(*YieldReactor); ok {
			v, ok := y.Yields[key.Component]
			return v, ok
		}
	case ParamComposition:
		if src, ok := u.(*Source); ok {
			v, ok := src.Composition[key.Component]
			return v, ok
		}
	case ParamSourceCost:
		if src, ok := u.(*Source); ok {
			return src.Cost, true
		}
	case ParamProductPrice:
		if p, ok := u.(*ProductPool); ok {
			return p.Price, true
		}
	case ParamDistributorFraction:
		if d, ok := u.(*Distributor); ok {
			v, ok := d.Fixed[key.Target]
			return v, ok
		}
	}
	return 0, false
}

// Value returns the patched value of key.
func (v View) Value(key ParamKey) (float64, error) {
	if x, ok := v.o[key]; ok {
		if _, err := v.s.BaseValue(key); err != nil {
			return 0, err
		}
		return x, nil
	}
	return v.s.BaseValue(key)
}

func (v View) lookup(key ParamKey) (float64, bool) {
	if x, ok := v.o[key]; ok {
		return x, true
	}
	return v.s.baseValue(key)
}

// Split returns the split fraction of unit u towards t for component i.
func (v View) Split(u, t int, i string) (float64, bool) {
	return v.lookup(ParamKey{Kind: ParamSplit, Unit: u, Target: t, Component: i})
}

// Gamma returns the stoichiometric coefficient of i in reaction r of unit u.
func (v View) Gamma(u int, i, r string) (float64, bool) {
	return v.lookup(ParamKey{Kind: ParamStoich, Unit: u, Component: i, Reaction: r})
}

// Theta returns the conversion of limiting reactant m in reaction r.
func (v View) Theta(u int, r, m string) (float64, bool) {
	return v.lookup(ParamKey{Kind: ParamConversion, Unit: u, Reaction: r, Component: m})
}

// Yield returns the yield of component i in reactor u, 0 when undeclared.
func (v View) Yield(u int, i string) float64 {
	x, _ := v.lookup(ParamKey{Kind: ParamYield, Unit: u, Component: i})
	return x
}

// Composition returns the mass fraction of i in source u, 0 when undeclared.
func (v View) Composition(u int, i string) float64 {
	x, _ := v.lookup(ParamKey{Kind: ParamComposition, Unit: u, Component: i})
	return x
}

// SourceCost returns the raw material price of source u.
func (v View) SourceCost(u int) float64 {
	x, _ := v.lookup(ParamKey{Kind: ParamSourceCost, Unit: u})
	return x
}

// ProductPrice returns the selling price of product pool u.
func (v View) ProductPrice(u int) float64 {
	x, _ := v.lookup(ParamKey{Kind: ParamProductPrice, Unit: u})
	return x
}

// UtilityPrice returns the price of the named hot utility, or fallback when
// the name is unknown.
func (v View) UtilityPrice(name string, fallback float64) float64 {
	if x, ok := v.lookup(ParamKey{Kind: ParamUtilityPrice, Name: name}); ok {
		return x
	}
	return fallback
}

// DistributorFraction returns the fixed fraction of distributor d towards t.
func (v View) DistributorFraction(d, t int) (float64, bool) {
	return v.lookup(ParamKey{Kind: ParamDistributorFraction, Unit: d, Target: t})
}

// ElectricityPrice returns the electricity purchase price.
func (v View) ElectricityPrice() float64 {
	x, _ := v.lookup(ParamKey{Kind: ParamElectricityPrice})
	return x
}

// siblings returns the keys that must move together with key to keep a
// balance, ordered by textual form.
func (v View) siblings(key ParamKey) []ParamKey {
	var out []ParamKey
	u := v.s.units[key.Unit]
	switch key.Kind {
	case ParamComposition:
		for c := range u.(*Source).Composition {
			if c != key.Component {
				out = append(out, ParamKey{Kind: ParamComposition, Unit: key.Unit, Component: c})
			}
		}
	case ParamYield:
		for c := range u.(*YieldReactor).Yields {
			if c != key.Component {
				out = append(out, ParamKey{Kind: ParamYield, Unit: key.Unit, Component: c})
			}
		}
	case ParamDistributorFraction:
		for t := range u.(*Distributor).Fixed {
			if t != key.Target {
				out = append(out, ParamKey{Kind: ParamDistributorFraction, Unit: key.Unit, Target: t})
			}
		}
	case ParamSplit:
		for k := range u.Base().Splits {
			if k.Component == key.Component && k.Target != key.Target {
				out = append(out, ParamKey{Kind: ParamSplit, Unit: key.Unit, Target: k.Target, Component: k.Component})
			}
		}
	case ParamStoich:
		self, _ := v.lookup(key)
		for k := range u.(interface{ ReactionSet() *Reactions }).ReactionSet().Gamma {
			if k.Reaction != key.Reaction || k.Component == key.Component {
				continue
			}
			sk := ParamKey{Kind: ParamStoich, Unit: key.Unit, Component: k.Component, Reaction: k.Reaction}
			if g, _ := v.lookup(sk); g*self > 0 {
				out = append(out, sk)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Perturb scales key by (1+rel) on top of the view and returns the patch that
// realizes it. Fractions that must sum to one are rebalanced over their
// siblings, stoichiometric coefficients over same-sign coefficients of the
// reaction, and split and conversion fractions are clamped to stay feasible.
func (v View) Perturb(key ParamKey, rel float64) (Overrides, error) {
	cur, err := v.Value(key)
	if err != nil {
		return nil, err
	}
	next := cur * (1 + rel)
	patch := Overrides{}

	switch key.Kind {
	case ParamComposition, ParamYield, ParamDistributorFraction:
		sibs := v.siblings(key)
		if len(sibs) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidUncertainty, "fraction without siblings cannot be perturbed").WithDetail(key.String())
		}
		next = clamp(next, 0, 1)
		rest := 0.0
		for _, sk := range sibs {
			x, _ := v.lookup(sk)
			rest += x
		}
		for _, sk := range sibs {
			x, _ := v.lookup(sk)
			if rest > 0 {
				patch[sk] = x * (1 - next) / rest
			} else {
				patch[sk] = (1 - next) / float64(len(sibs))
			}
		}

	case ParamStoich:
		sibs := v.siblings(key)
		if len(sibs) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidUncertainty, "stoichiometric coefficient has no same-sign partner to rebalance").WithDetail(key.String())
		}
		sum := 0.0
		for _, sk := range sibs {
			x, _ := v.lookup(sk)
			sum += x
		}
		scale := (sum - (next - cur)) / sum
		if scale < 0 {
			return nil, errors.New(errors.ErrCodeInvalidUncertainty, "perturbation flips the sign of a partner coefficient").
				WithDetailf("%s rel=%g", key, rel)
		}
		for _, sk := range sibs {
			x, _ := v.lookup(sk)
			patch[sk] = x * scale
		}

	case ParamSplit:
		others := 0.0
		for _, sk := range v.siblings(key) {
			x, _ := v.lookup(sk)
			others += x
		}
		next = clamp(next, 0, math.Max(0, 1-others))

	case ParamConversion:
		next = clamp(next, 0, 1)
	}

	patch[key] = next
	return patch, nil
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
