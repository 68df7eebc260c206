package heat

import "math"

// Partition splits a demand across the intervals of the ascending grid temps.
// Non-isothermal demands are shared in proportion to the part of their
// temperature span each interval covers; the shares sum to 1. Isothermal
// heating lands in the interval just above its temperature, isothermal cooling
// in the interval just below, both clamped to the grid.
func Partition(d Demand, temps []float64) map[int]float64 {
	out := make(map[int]float64)
	n := len(temps)
	if n == 0 || d.Rate == 0 {
		return out
	}
	last := n - 1
	if n == 1 {
		last = 1
	}

	if d.Isothermal() {
		j := indexOf(temps, d.Inlet)
		if j < 0 {
			return out
		}
		k := j
		if d.Rate < 0 {
			k = j + 1
		}
		if k < 1 {
			k = 1
		}
		if k > last {
			k = last
		}
		out[k] = 1
		return out
	}

	// Heating spans inlet (cold) to outlet (hot). Cooling reuses the same
	// lowT/highT names with inlet and outlet swapped; the numbers come out
	// symmetric either way.
	lowT, highT := d.Inlet, d.Outlet
	if d.Rate < 0 {
		lowT, highT = d.Outlet, d.Inlet
	}
	if lowT > highT {
		lowT, highT = highT, lowT
	}
	span := highT - lowT

	for k := 1; k < n; k++ {
		upper, lower := temps[n-k], temps[n-1-k]
		overlap := math.Min(upper, highT) - math.Max(lower, lowT)
		if overlap <= tempEpsilon {
			continue
		}
		out[k] = overlap / span
	}
	return out
}
