// Package heat builds the temperature grid and heat-interval tables used by
// the heat cascade: the deduplicated grid of all relevant temperatures, the
// per-demand partition coefficients (beta) and the per-interval utility cost
// (delta_q).
package heat

import (
	"fmt"
	"math"
	"sort"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

// tempEpsilon is the tolerance under which two temperatures are the same grid
// point.
const tempEpsilon = 1e-9

// DemandKey identifies one heat demand of one unit. Slot is 0 or 1; a unit
// carries at most two heat demands.
type DemandKey struct {
	Unit int
	Slot int
}

func (k DemandKey) String() string { return fmt.Sprintf("%d.%d", k.Unit, k.Slot) }

// Demand is a specific heat duty between two temperatures. Rate > 0 is a
// heating demand, Rate < 0 a cooling demand.
type Demand struct {
	Key    DemandKey
	Rate   float64
	Inlet  float64
	Outlet float64
}

// Isothermal reports whether the demand occurs at a single temperature.
func (d Demand) Isothermal() bool { return math.Abs(d.Inlet-d.Outlet) <= tempEpsilon }

// Utility is a hot utility available at a temperature for a cost per unit of
// heat.
type Utility struct {
	Name        string
	Temperature float64
	Cost        float64
}

// PumpSpec is the operating window of an optional heat pump: it lifts heat
// taken at Inlet to Outlet.
type PumpSpec struct {
	Inlet  float64
	Outlet float64
}

// Position tags where an interval sits in the cascade. Cascade constraints
// dispatch on it.
type Position int

const (
	PositionFirst Position = iota
	PositionMiddle
	PositionLast
	// PositionOnly marks a cascade with a single interval.
	PositionOnly
)

func (p Position) String() string {
	switch p {
	case PositionFirst:
		return "first"
	case PositionMiddle:
		return "middle"
	case PositionLast:
		return "last"
	default:
		return "only"
	}
}

// Interval is the band between grid point K-1 (Upper, hotter) and grid point
// K (Lower). Intervals are numbered 1..n-1 from the hottest band down.
type Interval struct {
	K        int
	Upper    float64
	Lower    float64
	Position Position
	// Cost is delta_q: the price of heat supplied into this interval.
	Cost float64
	// Utility names the hot utility that set Cost; Matched is false when no
	// utility is hot enough and the hottest one was used instead.
	Utility string
	Matched bool
}

// PumpPlacement records the cascade intervals a heat pump couples: delivered
// heat enters Sink, absorbed heat leaves Source.
type PumpPlacement struct {
	Sink   int
	Source int
}

// Grid is the derived temperature grid. It is immutable after Build.
type Grid struct {
	temps     []float64
	intervals []Interval
	beta      map[DemandKey]map[int]float64
	pump      *PumpPlacement
}

// Build collects every temperature from demands, utilities and the optional
// heat pump, and derives intervals, partition coefficients and interval costs.
func Build(demands []Demand, utilities []Utility, pump *PumpSpec) (*Grid, error) {
	var all []float64
	for _, d := range demands {
		if math.IsNaN(d.Inlet) || math.IsNaN(d.Outlet) {
			return nil, errors.InvalidParam("heat demand temperature is NaN").WithDetail("demand=" + d.Key.String())
		}
		all = append(all, d.Inlet, d.Outlet)
	}
	for _, u := range utilities {
		all = append(all, u.Temperature)
	}
	if pump != nil {
		if pump.Outlet <= pump.Inlet {
			return nil, errors.New(errors.ErrCodeInvalidHeatPump, "heat pump outlet temperature must exceed inlet").
				WithDetailf("inlet=%g outlet=%g", pump.Inlet, pump.Outlet)
		}
		all = append(all, pump.Inlet, pump.Outlet)
	}

	g := &Grid{
		temps: SortedUnique(all),
		beta:  make(map[DemandKey]map[int]float64, len(demands)),
	}
	g.intervals = buildIntervals(g.temps)
	assignCosts(g.intervals, utilities)

	for _, d := range demands {
		if d.Rate == 0 {
			continue
		}
		g.beta[d.Key] = Partition(d, g.temps)
	}

	if pump != nil {
		p, err := placePump(g.temps, *pump)
		if err != nil {
			return nil, err
		}
		g.pump = p
	}
	return g, nil
}

// SortedUnique returns the strictly ascending, deduplicated copy of temps.
func SortedUnique(temps []float64) []float64 {
	if len(temps) == 0 {
		return nil
	}
	cp := append([]float64(nil), temps...)
	sort.Float64s(cp)
	out := cp[:1]
	for _, t := range cp[1:] {
		if t-out[len(out)-1] > tempEpsilon {
			out = append(out, t)
		}
	}
	return append([]float64(nil), out...)
}

func buildIntervals(temps []float64) []Interval {
	n := len(temps)
	switch n {
	case 0:
		return nil
	case 1:
		return []Interval{{K: 1, Upper: temps[0], Lower: temps[0], Position: PositionOnly}}
	}
	out := make([]Interval, 0, n-1)
	for k := 1; k < n; k++ {
		iv := Interval{
			K:     k,
			Upper: temps[n-k],
			Lower: temps[n-1-k],
		}
		switch {
		case n == 2:
			iv.Position = PositionOnly
		case k == 1:
			iv.Position = PositionFirst
		case k == n-1:
			iv.Position = PositionLast
		default:
			iv.Position = PositionMiddle
		}
		out = append(out, iv)
	}
	return out
}

// assignCosts sets delta_q for each interval to the cost of the coolest
// utility at least as hot as the interval's upper bound.
func assignCosts(intervals []Interval, utilities []Utility) {
	if len(utilities) == 0 {
		return
	}
	us := append([]Utility(nil), utilities...)
	sort.SliceStable(us, func(i, j int) bool {
		if us[i].Temperature != us[j].Temperature {
			return us[i].Temperature < us[j].Temperature
		}
		return us[i].Cost < us[j].Cost
	})
	hottest := us[len(us)-1]
	for i := range intervals {
		iv := &intervals[i]
		iv.Cost, iv.Utility, iv.Matched = hottest.Cost, hottest.Name, false
		for _, u := range us {
			if u.Temperature >= iv.Upper-tempEpsilon {
				iv.Cost, iv.Utility, iv.Matched = u.Cost, u.Name, true
				break
			}
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// accessors
// ─────────────────────────────────────────────────────────────────────────────

// Temperatures returns the ascending grid.
func (g *Grid) Temperatures() []float64 { return append([]float64(nil), g.temps...) }

// Len is the number of grid points.
func (g *Grid) Len() int { return len(g.temps) }

// Point returns grid point k counted from the hottest (k = 0).
func (g *Grid) Point(k int) float64 { return g.temps[len(g.temps)-1-k] }

// Index returns the hottest-first index of temperature t, or -1.
func (g *Grid) Index(t float64) int { return indexOf(g.temps, t) }

// Intervals returns the heat intervals, hottest first.
func (g *Grid) Intervals() []Interval { return append([]Interval(nil), g.intervals...) }

// Interval returns interval k (1-based).
func (g *Grid) Interval(k int) (Interval, bool) {
	if k < 1 || k > len(g.intervals) {
		return Interval{}, false
	}
	return g.intervals[k-1], true
}

// DeltaQ returns the utility cost of interval k, or 0 when k is out of range.
func (g *Grid) DeltaQ(k int) float64 {
	iv, ok := g.Interval(k)
	if !ok {
		return 0
	}
	return iv.Cost
}

// Beta returns the share of a demand falling into interval k. A missing key
// means the demand does not touch the interval.
func (g *Grid) Beta(key DemandKey, k int) (float64, bool) {
	m, ok := g.beta[key]
	if !ok {
		return 0, false
	}
	v, ok := m[k]
	return v, ok
}

// BetaIntervals returns the intervals a demand touches in ascending k order.
func (g *Grid) BetaIntervals(key DemandKey) []int {
	m := g.beta[key]
	ks := make([]int, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Ints(ks)
	return ks
}

// Pump returns the heat pump placement, or nil when no pump is configured.
func (g *Grid) Pump() *PumpPlacement { return g.pump }

// indexOf returns the hottest-first index of t in ascending temps, or -1.
func indexOf(temps []float64, t float64) int {
	n := len(temps)
	i := sort.SearchFloat64s(temps, t-tempEpsilon)
	if i < n && math.Abs(temps[i]-t) <= tempEpsilon {
		return n - 1 - i
	}
	return -1
}
